// Package llm wraps the external text-generation capability. Callers treat
// failures as recoverable: every consumer has a fixed fallback path, so errors
// from this package must never propagate past the service layer.
package llm

import (
	"context"
	"encoding/json"
	"errors"
)

var (
	// ErrQuotaExceeded signals a rate-limit or quota failure. Callers
	// substitute their fixed fallback text instead of surfacing it.
	ErrQuotaExceeded = errors.New("llm: quota or rate limit exceeded")

	// ErrEmptyResponse signals the model returned no usable candidates.
	ErrEmptyResponse = errors.New("llm: empty response from model")
)

// TextGenerator produces free text or strict-JSON output from a prompt.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	GenerateJSON(ctx context.Context, prompt string) (json.RawMessage, error)
}
