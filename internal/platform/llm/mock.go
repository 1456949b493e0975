package llm

import (
	"context"
	"encoding/json"
)

// MockGenerator is a TextGenerator test double. Responses are popped in FIFO
// order; Err, when set, is returned for every call.
type MockGenerator struct {
	Responses []string
	Err       error
	Prompts   []string
}

func (m *MockGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	m.Prompts = append(m.Prompts, prompt)
	if m.Err != nil {
		return "", m.Err
	}
	if len(m.Responses) == 0 {
		return "", ErrEmptyResponse
	}
	resp := m.Responses[0]
	m.Responses = m.Responses[1:]
	return resp, nil
}

func (m *MockGenerator) GenerateJSON(ctx context.Context, prompt string) (json.RawMessage, error) {
	txt, err := m.Generate(ctx, prompt)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(txt), nil
}
