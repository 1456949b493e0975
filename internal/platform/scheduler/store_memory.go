package scheduler

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemoryJobStore is an in-process JobStore for tests and development.
type MemoryJobStore struct {
	mu   sync.Mutex
	jobs map[string]time.Time
}

func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{jobs: make(map[string]time.Time)}
}

func (s *MemoryJobStore) Save(ctx context.Context, jobID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[jobID] = at
	return nil
}

func (s *MemoryJobStore) Delete(ctx context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, jobID)
	return nil
}

func (s *MemoryJobStore) ListByPrefix(ctx context.Context, prefix string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id := range s.jobs {
		if strings.HasPrefix(id, prefix) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}
