package messaging

import (
	"context"
	"sync"
)

// SentMessage records one Send call on the mock.
type SentMessage struct {
	To   string
	Body string
}

// MockSender is a Sender test double that records every message.
type MockSender struct {
	mu         sync.Mutex
	Sent       []SentMessage
	ShouldFail bool
}

func (m *MockSender) Send(ctx context.Context, to, body string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return false
	}
	m.Sent = append(m.Sent, SentMessage{To: to, Body: body})
	return true
}

// Count returns how many messages were accepted.
func (m *MockSender) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Sent)
}
