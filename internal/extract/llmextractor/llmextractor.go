// Package llmextractor adapts a text-completion backend to the
// extract.Extractor capability interface. It is the one place in the
// pipeline that parses heterogeneous LLM JSON output, per the
// re-architecture note that keeps the extraction driver itself
// provider-agnostic.
package llmextractor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/terrencegiggy/content-pipeline/internal/errs"
	"github.com/terrencegiggy/content-pipeline/internal/extract"
)

// maxBodyChars bounds how much of an artifact's body is sent to the
// completion backend per call.
const maxBodyChars = 12000

// Completer is the minimal capability a chat/completion backend must
// offer. Any provider (Anthropic, OpenAI, Google GenAI) can satisfy
// this with a thin wrapper; the extractor never imports a
// provider-specific client directly.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// RateLimitedError marks a Completer response that should be treated
// as a rate-limit condition by the extraction driver.
type RateLimitedError struct {
	Err error
}

func (e *RateLimitedError) Error() string { return fmt.Sprintf("rate limited: %v", e.Err) }
func (e *RateLimitedError) Unwrap() error { return errs.ErrRateLimited }

// Extractor adapts a Completer to extract.Extractor.
type Extractor struct {
	completer Completer
}

// New builds an Extractor backed by completer.
func New(completer Completer) *Extractor {
	return &Extractor{completer: completer}
}

func truncate(body []byte) string {
	s := string(body)
	if len(s) > maxBodyChars {
		return s[:maxBodyChars]
	}
	return s
}

const assessSystemPrompt = `You assess whether a document is substantive enough to warrant entity extraction. Respond with strict JSON: {"is_substantive": bool, "reason": string, "confidence": number between 0 and 1}.`

// Assess asks the completer whether the artifact is worth mining.
func (e *Extractor) Assess(ctx context.Context, checksum string, body []byte) (extract.AssessmentResult, error) {
	raw, err := e.completer.Complete(ctx, assessSystemPrompt, truncate(body))
	if err != nil {
		return extract.AssessmentResult{}, classify(err)
	}

	var parsed struct {
		IsSubstantive bool    `json:"is_substantive"`
		Reason        string  `json:"reason"`
		Confidence    float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(extractJSON(raw)), &parsed); err != nil {
		return extract.AssessmentResult{}, fmt.Errorf("parse assessment response for %s: %w", checksum, err)
	}
	return extract.AssessmentResult{IsSubstantive: parsed.IsSubstantive, Reason: parsed.Reason, Confidence: parsed.Confidence}, nil
}

var kindSystemPrompts = map[extract.EntityKind]string{
	extract.KindPeople:        `Extract every named person mentioned in the document. Respond with strict JSON: {"entities": [{"name": string, "role": string, "context": string}]}.`,
	extract.KindOrganizations: `Extract every named organization mentioned in the document. Respond with strict JSON: {"entities": [{"name": string, "kind": string, "context": string}]}.`,
	extract.KindConcepts:      `Extract every notable concept or topic discussed in the document. Respond with strict JSON: {"entities": [{"name": string, "summary": string}]}.`,
	extract.KindAssociations:  `Extract relationships between entities already named in the document. Respond with strict JSON: {"entities": [{"subject": string, "relation": string, "object": string}]}.`,
}

// Extract asks the completer to mine one entity family from body.
func (e *Extractor) Extract(ctx context.Context, checksum string, kind extract.EntityKind, body []byte) ([]extract.EntityRecord, error) {
	prompt, ok := kindSystemPrompts[kind]
	if !ok {
		return nil, fmt.Errorf("unsupported entity kind %q", kind)
	}

	raw, err := e.completer.Complete(ctx, prompt, truncate(body))
	if err != nil {
		return nil, classify(err)
	}

	var parsed struct {
		Entities []extract.EntityRecord `json:"entities"`
	}
	if err := json.Unmarshal([]byte(extractJSON(raw)), &parsed); err != nil {
		return nil, fmt.Errorf("parse %s extraction response for %s: %w", kind, checksum, err)
	}
	return parsed.Entities, nil
}

// classify wraps a Completer error, recognizing a RateLimitedError
// sentinel so the driver's errors.Is(err, errs.ErrRateLimited) check
// fires regardless of which provider raised it.
func classify(err error) error {
	var rl *RateLimitedError
	if errors.As(err, &rl) {
		return fmt.Errorf("%w: %v", errs.ErrRateLimited, rl.Err)
	}
	return fmt.Errorf("completion failed: %w", err)
}

// extractJSON strips a markdown code fence around raw if present —
// LLM chat backends routinely wrap JSON responses in ```json blocks
// despite being asked for strict JSON.
func extractJSON(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimSuffix(trimmed, "```")
		trimmed = strings.TrimSpace(trimmed)
	}
	return trimmed
}
