// Package approval manages step-up requests awaiting manager resolution.
package approval

import (
	"time"

	"custos/internal/policy"
	id "custos/pkg/domain"
)

// Status is an approval request's lifecycle state. PENDING is the only
// non-terminal state.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusRejected Status = "REJECTED"
)

// Request is a step-up approval awaiting (or past) manager resolution.
// Terminal once resolved; resolution re-enters the coordinator as a
// privileged continuation of the original action.
type Request struct {
	ID            id.ApprovalID
	AssetTag      id.AssetTag
	Requester     id.UserID
	Action        id.Action
	TargetUser    *id.UserID
	Site          id.SiteID
	Justification string

	// Reason is the policy rule that triggered the step-up.
	Reason policy.Reason

	Status     Status
	CreatedAt  time.Time
	Resolver   *id.UserID
	ResolvedAt *time.Time
}

// Resolved reports whether the request reached a terminal state.
func (r Request) Resolved() bool { return r.Status != StatusPending }
