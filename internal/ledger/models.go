// Package ledger is the append-only, hash-chained audit log. Every custody
// decision, approval event, and administrative status change lands here
// before the caller sees a response. Each record carries the hash of its
// predecessor, so any in-place edit, deletion, or reordering breaks the
// chain from that point forward.
package ledger

import (
	"time"

	"custos/internal/policy"
	"custos/internal/verification"
	id "custos/pkg/domain"
)

// EventType classifies what a ledger record captures.
type EventType string

const (
	EventDecision         EventType = "DECISION"
	EventApprovalResolved EventType = "APPROVAL_RESOLVED"
	EventStatusChange     EventType = "STATUS_CHANGE"
)

// Record is one immutable ledger entry. Sequence, PrevHash, and EventHash
// are assigned at append time; callers fill in everything else.
type Record struct {
	Sequence  uint64    `json:"sequence"`
	EventType EventType `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`

	Actor      id.UserID   `json:"actor_id"`
	TargetUser *id.UserID  `json:"target_user,omitempty"`
	AssetTag   id.AssetTag `json:"asset_tag"`
	Site       id.SiteID   `json:"site_id"`
	Action     id.Action   `json:"action"`

	Outcome policy.Outcome `json:"outcome"`
	Reason  policy.Reason  `json:"reason"`

	Verification verification.Summary `json:"verification"`

	PrevHash  string `json:"prev_hash"`
	EventHash string `json:"event_hash"`
}

// View is the read-model representation returned by the query API. Hashes
// are truncated for display; the full values stay in storage.
type View struct {
	Sequence  uint64    `json:"sequence"`
	EventType EventType `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
	Actor     string    `json:"actor_id"`
	AssetTag  string    `json:"asset_tag"`
	Action    string    `json:"action"`
	Outcome   string    `json:"outcome"`
	Reason    string    `json:"reason"`
	PrevHash  string    `json:"prev_hash"`
	EventHash string    `json:"event_hash"`
}

const hashViewLen = 12

func truncateHash(h string) string {
	if len(h) <= hashViewLen {
		return h
	}
	return h[:hashViewLen]
}

// ToView builds the display form of a record.
func (r Record) ToView() View {
	return View{
		Sequence:  r.Sequence,
		EventType: r.EventType,
		Timestamp: r.Timestamp,
		Actor:     r.Actor.String(),
		AssetTag:  string(r.AssetTag),
		Action:    string(r.Action),
		Outcome:   string(r.Outcome),
		Reason:    string(r.Reason),
		PrevHash:  truncateHash(r.PrevHash),
		EventHash: truncateHash(r.EventHash),
	}
}
