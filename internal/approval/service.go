package approval

import (
	"context"
	"errors"
	"fmt"

	"custos/internal/approval/metrics"
	dErrors "custos/pkg/domain-errors"
	id "custos/pkg/domain"
	"custos/pkg/platform/sentinel"
	"custos/pkg/requestcontext"

	"custos/internal/policy"
)

type Service struct {
	store   Store
	metrics *metrics.Metrics
}

func NewService(store Store, m *metrics.Metrics) *Service {
	return &Service{store: store, metrics: m}
}

// OpenParams describes the step-up a denied-with-escalation decision left
// behind.
type OpenParams struct {
	AssetTag      id.AssetTag
	Requester     id.UserID
	Action        id.Action
	TargetUser    *id.UserID
	Site          id.SiteID
	Justification string
	Reason        policy.Reason
}

// OpenOrReuse opens a PENDING approval request, or returns the existing
// one when the same requester already has an open request for the same
// asset and action. The bool reports reuse.
func (s *Service) OpenOrReuse(ctx context.Context, params OpenParams) (Request, bool, error) {
	existing, found, err := s.store.FindPending(ctx, params.AssetTag, params.Requester, params.Action)
	if err != nil {
		return Request{}, false, fmt.Errorf("find pending approval: %w", err)
	}
	if found {
		return existing, true, nil
	}

	req := Request{
		ID:            id.NewApprovalID(),
		AssetTag:      params.AssetTag,
		Requester:     params.Requester,
		Action:        params.Action,
		TargetUser:    params.TargetUser,
		Site:          params.Site,
		Justification: params.Justification,
		Reason:        params.Reason,
		Status:        StatusPending,
		CreatedAt:     requestcontext.Now(ctx),
	}
	if err := s.store.Create(ctx, req); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			// Lost a race to a concurrent open; hand back the winner.
			winner, found, ferr := s.store.FindPending(ctx, params.AssetTag, params.Requester, params.Action)
			if ferr == nil && found {
				return winner, true, nil
			}
		}
		return Request{}, false, fmt.Errorf("create approval: %w", err)
	}
	s.metrics.IncrementOpened()
	return req, false, nil
}

func (s *Service) Get(ctx context.Context, approvalID id.ApprovalID) (Request, error) {
	req, err := s.store.Get(ctx, approvalID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return Request{}, dErrors.New(dErrors.CodeNotFound, "approval request not found")
	}
	if err != nil {
		return Request{}, fmt.Errorf("get approval: %w", err)
	}
	return req, nil
}

func (s *Service) List(ctx context.Context, status *Status) ([]Request, error) {
	return s.store.List(ctx, status)
}

// Resolve records a terminal verdict. Only PENDING requests resolve;
// a second verdict for the same request is a conflict.
func (s *Service) Resolve(ctx context.Context, approvalID id.ApprovalID, resolver id.UserID, approve bool) (Request, error) {
	status := StatusRejected
	if approve {
		status = StatusApproved
	}
	req, err := s.store.Resolve(ctx, approvalID, resolver, status, requestcontext.Now(ctx))
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return Request{}, dErrors.New(dErrors.CodeNotFound, "approval request not found")
	case errors.Is(err, sentinel.ErrResolved):
		return Request{}, dErrors.New(dErrors.CodeConflict, "approval request already resolved")
	case err != nil:
		return Request{}, fmt.Errorf("resolve approval: %w", err)
	}
	s.metrics.IncrementResolved(string(status))
	return req, nil
}
