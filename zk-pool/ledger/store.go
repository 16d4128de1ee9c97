package ledger

import (
	"context"
	"sync"
)

// Store persists the public log.
type Store interface {
	// Append writes records atomically.
	Append(ctx context.Context, recs []Record) error

	// Truncate removes every record with Seq >= from. It rolls back an append
	// whose transaction did not settle.
	Truncate(ctx context.Context, from uint64) error

	// Load returns all records in sequence order.
	Load(ctx context.Context) ([]Record, error)

	Close() error
}

// MemoryStore keeps the log in memory.
type MemoryStore struct {
	mu      sync.Mutex
	records []Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Append(_ context.Context, recs []Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, recs...)
	return nil
}

func (s *MemoryStore) Truncate(_ context.Context, from uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.records[:0]
	for _, r := range s.records {
		if r.Seq < from {
			kept = append(kept, r)
		}
	}
	s.records = kept
	return nil
}

func (s *MemoryStore) Load(_ context.Context) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out, nil
}

func (s *MemoryStore) Close() error {
	return nil
}
