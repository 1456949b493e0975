package llm

import (
	"context"
	"encoding/json"
)

// NoopGenerator always fails, pushing every caller onto its fallback path.
// Used in development when no API key is configured.
type NoopGenerator struct{}

func (NoopGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return "", ErrEmptyResponse
}

func (NoopGenerator) GenerateJSON(ctx context.Context, prompt string) (json.RawMessage, error) {
	return nil, ErrEmptyResponse
}
