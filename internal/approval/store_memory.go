package approval

import (
	"context"
	"sort"
	"sync"
	"time"

	id "custos/pkg/domain"
	"custos/pkg/platform/sentinel"
)

// InMemoryStore keeps approval requests in a map.
type InMemoryStore struct {
	mu       sync.RWMutex
	requests map[id.ApprovalID]Request
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{requests: make(map[id.ApprovalID]Request)}
}

func (s *InMemoryStore) Create(_ context.Context, req Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.requests[req.ID]; exists {
		return sentinel.ErrConflict
	}
	s.requests[req.ID] = req
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, approvalID id.ApprovalID) (Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	req, ok := s.requests[approvalID]
	if !ok {
		return Request{}, sentinel.ErrNotFound
	}
	return req, nil
}

func (s *InMemoryStore) FindPending(_ context.Context, tag id.AssetTag, requester id.UserID, action id.Action) (Request, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, req := range s.requests {
		if req.Status == StatusPending && req.AssetTag == tag && req.Requester == requester && req.Action == action {
			return req, true, nil
		}
	}
	return Request{}, false, nil
}

func (s *InMemoryStore) Resolve(_ context.Context, approvalID id.ApprovalID, resolver id.UserID, status Status, resolvedAt time.Time) (Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[approvalID]
	if !ok {
		return Request{}, sentinel.ErrNotFound
	}
	if req.Status != StatusPending {
		return Request{}, sentinel.ErrResolved
	}
	req.Status = status
	req.Resolver = &resolver
	req.ResolvedAt = &resolvedAt
	s.requests[approvalID] = req
	return req, nil
}

func (s *InMemoryStore) List(_ context.Context, status *Status) ([]Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Request, 0, len(s.requests))
	for _, req := range s.requests {
		if status != nil && req.Status != *status {
			continue
		}
		out = append(out, req)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
