package llmextractor

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// GenAICompleter adapts Google's GenAI text-generation API to the
// Completer capability — one concrete choice for the opaque extractor
// backend, kept behind this interface so swapping providers never
// touches the driver or the JSON-parsing logic in llmextractor.go.
type GenAICompleter struct {
	client *genai.Client
	model  string
}

// NewGenAICompleter builds a GenAICompleter. model defaults to
// "gemini-2.0-flash" when empty.
func NewGenAICompleter(ctx context.Context, apiKey, model string) (*GenAICompleter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GenAI API key is required")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("create GenAI client: %w", err)
	}

	return &GenAICompleter{client: client, model: model}, nil
}

// Complete sends systemPrompt and userPrompt as a single-turn
// generation request and returns the concatenated text of the
// response's candidates.
func (g *GenAICompleter) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(userPrompt, genai.RoleUser),
	}

	result, err := g.client.Models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
	})
	if err != nil {
		if isRateLimitErr(err) {
			return "", &RateLimitedError{Err: err}
		}
		return "", fmt.Errorf("GenAI generate content failed: %w", err)
	}

	var sb strings.Builder
	for _, cand := range result.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			sb.WriteString(part.Text)
		}
	}
	return sb.String(), nil
}

// isRateLimitErr detects the GenAI SDK's 429-shaped error text. The
// SDK surfaces HTTP status via the error string rather than a typed
// sentinel, so substring matching is the grounded approach here.
func isRateLimitErr(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") || strings.Contains(msg, "rate limit") || strings.Contains(msg, "resource_exhausted")
}
