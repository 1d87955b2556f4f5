package ledger

import (
	"context"
	"sync"

	"custos/pkg/platform/sentinel"
)

// InMemoryStore keeps records in an append-only slice.
type InMemoryStore struct {
	mu      sync.RWMutex
	records []Record
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec.Sequence != uint64(len(s.records))+1 {
		return sentinel.ErrConflict
	}
	s.records = append(s.records, rec)
	return nil
}

func (s *InMemoryStore) Last(_ context.Context) (Record, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.records) == 0 {
		return Record{}, false, nil
	}
	return s.records[len(s.records)-1], true, nil
}

func (s *InMemoryStore) List(_ context.Context, filter Filter) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Record
	for _, rec := range s.records {
		if !filter.matches(rec) {
			continue
		}
		out = append(out, rec)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

// Tamper overwrites a stored record in place. Test hook only: it exists so
// chain verification tests can corrupt history without reaching into
// private state.
func (s *InMemoryStore) Tamper(sequence uint64, mutate func(*Record)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := int(sequence) - 1
	if idx < 0 || idx >= len(s.records) {
		return false
	}
	mutate(&s.records[idx])
	return true
}
