// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package report produces the analysis report and machine-readable results
// for a completed knowledge-graph run.
package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/pdiddy/biokg-builder/pkg/types"
)

// Summarizer produces a prose summary of the graph's entities.
type Summarizer interface {
	Summarize(ctx context.Context, keyword string, entities []string) (string, error)
}

// summaryAPIURL is the Claude API endpoint. Package-level var for test substitution.
var summaryAPIURL = "https://api.anthropic.com/v1/messages"

// ClaudeSummarizer asks the Claude API to categorize the graph's entities
// and summarize the findings.
type ClaudeSummarizer struct {
	APIKey string
	Model  string
	Client *http.Client

	// MaxEntities bounds how many entity names enter the prompt (default 200).
	MaxEntities int
}

type summaryRequest struct {
	Model     string           `json:"model"`
	MaxTokens int              `json:"max_tokens"`
	System    string           `json:"system,omitempty"`
	Messages  []summaryMessage `json:"messages"`
}

type summaryMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type summaryResponse struct {
	Content []summaryContent `json:"content"`
}

type summaryContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Summarize sends the entity list to the Claude API and returns the model's
// prose summary.
func (c *ClaudeSummarizer) Summarize(ctx context.Context, keyword string, entities []string) (string, error) {
	if len(entities) == 0 {
		return "No relevant entities found.", nil
	}

	maxEntities := c.MaxEntities
	if maxEntities <= 0 {
		maxEntities = 200
	}
	listed := entities
	truncated := false
	if len(listed) > maxEntities {
		listed = listed[:maxEntities]
		truncated = true
	}
	entityText := strings.Join(listed, ", ")
	if truncated {
		entityText += "..."
	}

	prompt := fmt.Sprintf(
		"List of biomedical entities related to '%s':\n%s\n\n"+
			"Please categorize these entities and write a brief summary including: "+
			"key findings, entity categories, and research significance.",
		keyword, entityText)

	reqBody := summaryRequest{
		Model:     c.Model,
		MaxTokens: 2048,
		System:    "You are a professional biomedical research analyst.",
		Messages: []summaryMessage{
			{Role: "user", Content: prompt},
		},
	}
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, summaryAPIURL, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.APIKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling Claude API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("Claude API returned %d: %s", resp.StatusCode, string(body))
	}

	var sResp summaryResponse
	if err := json.NewDecoder(resp.Body).Decode(&sResp); err != nil {
		return "", fmt.Errorf("decoding Claude response: %w", err)
	}
	for _, block := range sResp.Content {
		if block.Type == "text" {
			return strings.TrimSpace(block.Text), nil
		}
	}
	return "", fmt.Errorf("no text content in Claude API response")
}

// placeholderSummary replaces the AI summary when summarization fails. A
// failed summary never fails the run.
const placeholderSummary = "Summary unavailable."

// summarizeOrPlaceholder runs the summarizer and degrades to a placeholder
// on failure, logging the error to w.
func summarizeOrPlaceholder(ctx context.Context, s Summarizer, keyword string, entities []string, w io.Writer) string {
	if s == nil {
		return placeholderSummary
	}
	summary, err := s.Summarize(ctx, keyword, entities)
	if err != nil {
		fmt.Fprintf(w, "warning: summary generation failed: %v\n", err)
		return placeholderSummary
	}
	return summary
}

// EntityNamesForSummary returns the graph's entity names ordered so the
// highest-degree entities come first, matching what the report highlights.
func EntityNamesForSummary(graph *types.KnowledgeGraph, top []string) []string {
	seen := make(map[string]bool, len(top))
	names := make([]string, 0, len(graph.Entities))
	for _, name := range top {
		if graph.Entity(name) != nil && !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	for _, e := range graph.Entities {
		if !seen[e.Name] {
			seen[e.Name] = true
			names = append(names, e.Name)
		}
	}
	return names
}
