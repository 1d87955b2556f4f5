package approval

import (
	"context"
	"time"

	id "custos/pkg/domain"
)

// Store persists approval requests. Implementations return
// sentinel.ErrNotFound for unknown ids and must make Resolve atomic: a
// request resolves exactly once (sentinel.ErrResolved afterwards).
type Store interface {
	Create(ctx context.Context, req Request) error
	Get(ctx context.Context, approvalID id.ApprovalID) (Request, error)

	// FindPending returns the open request for the same asset+requester+
	// action triple, if one exists. Used for idempotent resubmission.
	FindPending(ctx context.Context, tag id.AssetTag, requester id.UserID, action id.Action) (Request, bool, error)

	// Resolve transitions a PENDING request to a terminal status.
	Resolve(ctx context.Context, approvalID id.ApprovalID, resolver id.UserID, status Status, resolvedAt time.Time) (Request, error)

	List(ctx context.Context, status *Status) ([]Request, error)
}
