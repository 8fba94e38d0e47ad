// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"text/template"

	"github.com/kaptinlin/jsonrepair"
)

// extractionPromptTmpl is the prompt sent to the Claude API for each article
// abstract. It instructs the model to extract causal relationships between
// biomedical entities as structured tuples.
var extractionPromptTmpl = template.Must(template.New("extraction").Parse(`You are a biomedical relationship extraction system. Analyze the following scientific abstract and extract causal relationships between named biomedical entities (genes, proteins, diseases, chemicals, biological processes).

For each relationship, identify:
- subject: the acting entity, exactly as written in the abstract
- subject_type: one of "gene", "protein", "disease", "chemical", "process", "other"
- object: the affected entity, exactly as written
- object_type: same vocabulary as subject_type
- relation: one of "causes", "upregulates", "downregulates", "inhibits", "activates", "correlates_with", "part_of", "other"
- polarity: "positive" if the effect increases or promotes the object, "negative" if it decreases or suppresses it, "neutral" if the direction is unclear
- evidence: the sentence from the abstract supporting the relationship

Only report relationships the abstract states or directly implies. Do not invent entities.

Respond with a JSON object containing a "tuples" array. Each element must have all fields listed above. Do not include any text outside the JSON object.

Example response:
{"tuples": [{"subject": "THBS2", "subject_type": "gene", "object": "TGFB1", "object_type": "gene", "relation": "upregulates", "polarity": "positive", "evidence": "THBS2 overexpression significantly increased TGFB1 levels."}]}

Abstract:
{{.Abstract}}
`))

// claudeAPIURL is the Claude API endpoint. Package-level var for test substitution.
var claudeAPIURL = "https://api.anthropic.com/v1/messages"

// ClaudeBackend calls the Claude API to extract relationship tuples from an
// article abstract.
type ClaudeBackend struct {
	APIKey string
	Model  string
	Client *http.Client
}

// claudeRequest is the request body for the Claude Messages API.
type claudeRequest struct {
	Model     string          `json:"model"`
	MaxTokens int             `json:"max_tokens"`
	Messages  []claudeMessage `json:"messages"`
}

// claudeMessage is a single message in the Claude API conversation.
type claudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// claudeResponse is the response body from the Claude Messages API.
type claudeResponse struct {
	Content []claudeContent `json:"content"`
}

// claudeContent is a content block in the Claude API response.
type claudeContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Extract calls the Claude API with the extraction prompt for one abstract.
// Transport and API errors are returned as-is (retryable); output that
// cannot be parsed even after repair comes back as a *ParseError.
func (c *ClaudeBackend) Extract(ctx context.Context, abstract string) (AIResponse, error) {
	prompt, err := renderPrompt(abstract)
	if err != nil {
		return AIResponse{}, fmt.Errorf("rendering prompt: %w", err)
	}

	reqBody := claudeRequest{
		Model:     c.Model,
		MaxTokens: 4096,
		Messages: []claudeMessage{
			{Role: "user", Content: prompt},
		},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return AIResponse{}, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, claudeAPIURL, bytes.NewReader(bodyBytes))
	if err != nil {
		return AIResponse{}, fmt.Errorf("creating request: %w", err)
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
		return AIResponse{}, fmt.Errorf("calling Claude API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return AIResponse{}, fmt.Errorf("Claude API returned %d: %s", resp.StatusCode, string(body))
	}

	var cResp claudeResponse
	if err := json.NewDecoder(resp.Body).Decode(&cResp); err != nil {
		return AIResponse{}, fmt.Errorf("decoding Claude response: %w", err)
	}

	for _, block := range cResp.Content {
		if block.Type != "text" {
			continue
		}
		return parseModelJSON(block.Text)
	}

	return AIResponse{}, &ParseError{Msg: "no text content in Claude API response"}
}

// parseModelJSON parses the model's JSON output into an AIResponse. Models
// occasionally emit truncated or fenced JSON; a repair pass via jsonrepair
// is attempted before the output is declared unparseable.
func parseModelJSON(text string) (AIResponse, error) {
	text = stripCodeFence(text)

	var aiResp AIResponse
	if err := json.Unmarshal([]byte(text), &aiResp); err == nil {
		return aiResp, nil
	}

	repaired, err := jsonrepair.JSONRepair(text)
	if err != nil {
		return AIResponse{}, &ParseError{Msg: fmt.Sprintf("unrepairable JSON: %v", err)}
	}
	if err := json.Unmarshal([]byte(repaired), &aiResp); err != nil {
		return AIResponse{}, &ParseError{Msg: fmt.Sprintf("invalid JSON after repair: %v", err)}
	}
	return aiResp, nil
}

// stripCodeFence removes a surrounding markdown code fence if present.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// renderPrompt executes the extraction prompt template with the given abstract.
func renderPrompt(abstract string) (string, error) {
	var buf bytes.Buffer
	if err := extractionPromptTmpl.Execute(&buf, struct{ Abstract string }{Abstract: abstract}); err != nil {
		return "", err
	}
	return buf.String(), nil
}
