package memory

import (
	"context"
	"sync"

	"interview-engine-service/internal/domain"
)

// Registry collects completion hand-off records in memory. It stands in for
// the candidate registry when no Postgres connection is configured.
type Registry struct {
	mu      sync.RWMutex
	records []domain.CompletionRecord
}

func NewRegistry() *Registry {
	return &Registry{}
}

func (r *Registry) RecordCompletion(_ context.Context, record domain.CompletionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, record)
	return nil
}

// Records returns a copy of everything recorded so far.
func (r *Registry) Records() []domain.CompletionRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]domain.CompletionRecord(nil), r.records...)
}
