package record

import (
	"context"
	"sync"

	"github.com/avrek/huddle/internal/domain"
)

// MemorySink retains records in memory. Used by tests and by the REST
// debug surface when no external sink is wired.
type MemorySink struct {
	mu   sync.Mutex
	recs []domain.CallRecord
}

func NewMemorySink() *MemorySink { return &MemorySink{} }

func (s *MemorySink) Save(_ context.Context, rec domain.CallRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs = append(s.recs, rec)
	return nil
}

func (s *MemorySink) All() []domain.CallRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.CallRecord, len(s.recs))
	copy(out, s.recs)
	return out
}
