package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// MemoryBus is an in-process Bus for tests and single-node development.
// Delivery is synchronous so tests can assert on published events without
// sleeping.
type MemoryBus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	closed   bool

	// Published records every publish in order, for test assertions.
	Published []PublishedEvent
}

type PublishedEvent struct {
	Channel string
	Payload []byte
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{handlers: make(map[string][]Handler)}
}

func (b *MemoryBus) Publish(ctx context.Context, channel string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload for %s: %w", channel, err)
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return fmt.Errorf("bus closed")
	}
	b.Published = append(b.Published, PublishedEvent{Channel: channel, Payload: data})
	hs := append([]Handler(nil), b.handlers[channel]...)
	b.mu.Unlock()

	for _, h := range hs {
		h(ctx, data)
	}
	return nil
}

func (b *MemoryBus) Subscribe(ctx context.Context, channel string, h Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return fmt.Errorf("bus closed")
	}
	b.handlers[channel] = append(b.handlers[channel], h)
	return nil
}

func (b *MemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.handlers = make(map[string][]Handler)
	return nil
}

// OnChannel returns the payloads published to one channel, in order.
func (b *MemoryBus) OnChannel(channel string) [][]byte {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out [][]byte
	for _, ev := range b.Published {
		if ev.Channel == channel {
			out = append(out, ev.Payload)
		}
	}
	return out
}
