// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package extract turns article abstracts into validated relationship tuples
// using a Generative AI backend. Per-article failures are isolated: malformed
// model output costs that article its tuples, never the run.
package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/pdiddy/biokg-builder/pkg/types"
)

// ErrExhausted is returned when extraction was attempted for at least one
// article and none produced a parseable response. An empty-but-successful
// extraction (articles parsed, no tuples found) is not exhaustion.
var ErrExhausted = errors.New("extraction exhausted: no usable output from any article")

// ParseError marks model output that could not be parsed into tuples.
// Parse errors are recoverable per-article and are not retried; remote
// errors are retried with backoff.
type ParseError struct {
	Msg string
}

func (e *ParseError) Error() string { return "parsing model output: " + e.Msg }

// AIBackend abstracts the Generative AI API so tests can supply a mock.
// Each implementation handles one article's text and returns the raw
// structured response.
type AIBackend interface {
	Extract(ctx context.Context, abstract string) (AIResponse, error)
}

// AIResponse is the structured response from the AI backend for one article.
type AIResponse struct {
	Tuples []AIResponseTuple `json:"tuples" yaml:"tuples"`
}

// AIResponseTuple is a single relationship observation as returned by the
// AI backend, before validation.
type AIResponseTuple struct {
	Subject     string `json:"subject" yaml:"subject"`
	SubjectType string `json:"subject_type" yaml:"subject_type"`
	Object      string `json:"object" yaml:"object"`
	ObjectType  string `json:"object_type" yaml:"object_type"`
	Relation    string `json:"relation" yaml:"relation"`
	Polarity    string `json:"polarity" yaml:"polarity"`
	Evidence    string `json:"evidence" yaml:"evidence"`
}

// validEntityTypes is the set of accepted EntityType values.
var validEntityTypes = map[types.EntityType]bool{
	types.EntityGene:     true,
	types.EntityProtein:  true,
	types.EntityDisease:  true,
	types.EntityChemical: true,
	types.EntityProcess:  true,
	types.EntityOther:    true,
}

// validRelations is the set of accepted RelationKind values.
var validRelations = map[types.RelationKind]bool{
	types.RelationCauses:         true,
	types.RelationUpregulates:    true,
	types.RelationDownregulates:  true,
	types.RelationInhibits:       true,
	types.RelationActivates:      true,
	types.RelationCorrelatesWith: true,
	types.RelationPartOf:         true,
	types.RelationOther:          true,
}

// validPolarities is the set of polarities the extractor may report.
// PolarityTied is reconciliation-only and rejected at this boundary.
var validPolarities = map[types.Polarity]bool{
	types.PolarityPositive: true,
	types.PolarityNegative: true,
	types.PolarityNeutral:  true,
}

// BatchSummary holds counts from a batch extraction run.
type BatchSummary struct {
	// Extracted counts articles that yielded at least one valid tuple.
	Extracted int
	// Empty counts articles that parsed cleanly but yielded no tuples.
	Empty int
	// Skipped counts articles with no text to analyze.
	Skipped int
	// Failed counts articles whose extraction failed after retries.
	Failed int
}

// Total returns the number of articles processed.
func (s BatchSummary) Total() int {
	return s.Extracted + s.Empty + s.Skipped + s.Failed
}

// HasFailures reports whether any articles failed.
func (s BatchSummary) HasFailures() bool {
	return s.Failed > 0
}

// articleResult is one worker's output for one article.
type articleResult struct {
	tuples []types.RawTuple
	failed bool
	empty  bool
}

// ExtractAll runs extraction for every article through a bounded worker pool
// and returns the validated tuples in article order. Workers write into
// per-article slots and the merge happens after all workers finish, so the
// output never depends on completion order.
//
// On context cancellation the tuples collected so far are returned alongside
// the context error; the caller decides whether to build a best-effort graph
// from them or discard the run.
func ExtractAll(ctx context.Context, backend AIBackend, articles []types.ArticleRecord, cfg types.ExtractionConfig, w io.Writer) ([]types.RawTuple, BatchSummary, error) {
	if w == nil {
		w = io.Discard
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = 4
	}
	if workers > len(articles) {
		workers = len(articles)
	}

	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}

	results := make([]*articleResult, len(articles))
	jobs := make(chan int)

	var mu sync.Mutex // guards warning writes to w only
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				results[idx] = extractOne(ctx, backend, articles[idx], maxRetries, &mu, w)
			}
		}()
	}

	cancelled := false
dispatch:
	for i, art := range articles {
		if strings.TrimSpace(art.Text()) == "" {
			continue // counted as skipped in the reduction pass
		}
		select {
		case jobs <- i:
		case <-ctx.Done():
			cancelled = true
			break dispatch
		}
	}
	close(jobs)
	wg.Wait()

	// Single-threaded reduction: merge per-article results in input order.
	var tuples []types.RawTuple
	var summary BatchSummary
	for i, art := range articles {
		res := results[i]
		switch {
		case res == nil:
			if strings.TrimSpace(art.Text()) == "" {
				summary.Skipped++
			}
			// Undispatched due to cancellation: not counted.
		case res.failed:
			summary.Failed++
		case res.empty:
			summary.Empty++
		default:
			summary.Extracted++
			tuples = append(tuples, res.tuples...)
		}
	}

	if cancelled {
		return tuples, summary, ctx.Err()
	}

	if summary.Failed > 0 && summary.Extracted == 0 && summary.Empty == 0 {
		return nil, summary, ErrExhausted
	}

	return tuples, summary, nil
}

// extractOne handles a single article: backend call with retry, boundary
// validation, warning output. Never returns an error; failures are recorded
// in the result so the batch can continue.
func extractOne(ctx context.Context, backend AIBackend, art types.ArticleRecord, maxRetries int, mu *sync.Mutex, w io.Writer) *articleResult {
	warnf := func(format string, args ...any) {
		mu.Lock()
		fmt.Fprintf(w, format, args...)
		mu.Unlock()
	}

	resp, err := callWithRetry(ctx, backend, art.Text(), maxRetries)
	if err != nil {
		warnf("failed  %s: %v\n", art.PMID, err)
		return &articleResult{failed: true}
	}

	tuples, warnings := convertTuples(resp.Tuples, art.PMID)
	for _, msg := range warnings {
		warnf("warning %s: %s\n", art.PMID, msg)
	}

	if len(tuples) == 0 {
		warnf("empty   %s: no relationships found\n", art.PMID)
		return &articleResult{empty: true}
	}

	warnf("extracted %s (%d tuples)\n", art.PMID, len(tuples))
	return &articleResult{tuples: tuples}
}

// backoffBase controls the base duration for exponential backoff. Tests
// override this to avoid real sleeps.
var backoffBase = time.Second

// callWithRetry calls the AI backend with exponential backoff on remote
// errors. Parse errors are returned immediately: retrying the same prompt
// on garbled-but-delivered output wastes quota without new information.
func callWithRetry(ctx context.Context, backend AIBackend, text string, maxRetries int) (AIResponse, error) {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * backoffBase
			select {
			case <-ctx.Done():
				return AIResponse{}, ctx.Err()
			case <-time.After(backoff):
			}
		}

		resp, err := backend.Extract(ctx, text)
		if err == nil {
			return resp, nil
		}

		var perr *ParseError
		if errors.As(err, &perr) {
			return AIResponse{}, err
		}
		lastErr = err
	}
	return AIResponse{}, fmt.Errorf("after %d retries: %w", maxRetries, lastErr)
}

// convertTuples validates raw AI tuples at the boundary and converts them to
// RawTuples. Invalid tuples are dropped with a warning message, not
// propagated.
func convertTuples(raw []AIResponseTuple, pmid string) ([]types.RawTuple, []string) {
	var tuples []types.RawTuple
	var warnings []string

	for i, rt := range raw {
		subject := strings.TrimSpace(rt.Subject)
		object := strings.TrimSpace(rt.Object)
		if subject == "" || object == "" {
			warnings = append(warnings, fmt.Sprintf("tuple %d: empty subject or object, dropped", i))
			continue
		}

		relation := types.RelationKind(strings.ToLower(strings.TrimSpace(rt.Relation)))
		if !validRelations[relation] {
			warnings = append(warnings, fmt.Sprintf("tuple %d: unknown relation %q, dropped", i, rt.Relation))
			continue
		}

		polarity := types.Polarity(strings.ToLower(strings.TrimSpace(rt.Polarity)))
		if polarity == "" {
			polarity = types.PolarityNeutral
		}
		if !validPolarities[polarity] {
			warnings = append(warnings, fmt.Sprintf("tuple %d: unknown polarity %q, dropped", i, rt.Polarity))
			continue
		}

		tuples = append(tuples, types.RawTuple{
			Subject:     subject,
			SubjectType: entityTypeOrOther(rt.SubjectType),
			Object:      object,
			ObjectType:  entityTypeOrOther(rt.ObjectType),
			Relation:    relation,
			Polarity:    polarity,
			Evidence:    strings.TrimSpace(rt.Evidence),
			ArticleID:   pmid,
		})
	}

	return tuples, warnings
}

// entityTypeOrOther normalizes an entity type string, defaulting to "other"
// for anything outside the known set. A bad type label is not worth dropping
// an otherwise valid tuple.
func entityTypeOrOther(s string) types.EntityType {
	et := types.EntityType(strings.ToLower(strings.TrimSpace(s)))
	if validEntityTypes[et] {
		return et
	}
	return types.EntityOther
}
