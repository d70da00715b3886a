package memory

import (
	"context"
	"sync"

	"github.com/trailsec/ragtrail/internal/storage"
)

// Store is an in-memory implementation of RecordStore
type Store struct {
	mu      sync.RWMutex
	byTrace map[string][]*storage.StoredRecord
}

// New creates a new in-memory store
func New() *Store {
	return &Store{
		byTrace: make(map[string][]*storage.StoredRecord),
	}
}

func (s *Store) SaveRecord(ctx context.Context, rec *storage.StoredRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *rec
	s.byTrace[rec.TraceID] = append(s.byTrace[rec.TraceID], &copied)
	return nil
}

func (s *Store) ListByTrace(ctx context.Context, traceID string) ([]*storage.StoredRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recs := s.byTrace[traceID]
	out := make([]*storage.StoredRecord, len(recs))
	copy(out, recs)
	return out, nil
}

func (s *Store) Close() error {
	return nil
}

var _ storage.RecordStore = (*Store)(nil)
