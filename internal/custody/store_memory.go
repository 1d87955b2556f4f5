package custody

import (
	"context"
	"sort"
	"sync"

	id "custos/pkg/domain"
	"custos/pkg/platform/sentinel"
)

// InMemoryStore keeps assets in a map. It is the development default and the
// unit-test store.
type InMemoryStore struct {
	mu     sync.RWMutex
	assets map[id.AssetTag]Asset
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{assets: make(map[id.AssetTag]Asset)}
}

func (s *InMemoryStore) Get(_ context.Context, tag id.AssetTag) (Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	asset, ok := s.assets[tag]
	if !ok {
		return Asset{}, sentinel.ErrNotFound
	}
	return asset, nil
}

func (s *InMemoryStore) Save(_ context.Context, asset Asset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assets[asset.Tag] = asset
	return nil
}

func (s *InMemoryStore) List(_ context.Context) ([]Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Asset, 0, len(s.assets))
	for _, a := range s.assets {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Tag < out[j].Tag })
	return out, nil
}
