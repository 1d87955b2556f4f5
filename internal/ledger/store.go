package ledger

import (
	"context"

	"custos/internal/policy"
	id "custos/pkg/domain"
)

// Filter narrows a ledger query. Nil fields match everything.
type Filter struct {
	EventType *EventType
	Outcome   *policy.Outcome
	AssetTag  *id.AssetTag

	// Limit caps the result count; zero means no cap.
	Limit int
}

func (f Filter) matches(r Record) bool {
	if f.EventType != nil && r.EventType != *f.EventType {
		return false
	}
	if f.Outcome != nil && r.Outcome != *f.Outcome {
		return false
	}
	if f.AssetTag != nil && r.AssetTag != *f.AssetTag {
		return false
	}
	return true
}

// Store persists ledger records. Append must reject a sequence that already
// exists; the service serializes appends, so a duplicate means a bug or a
// second writer, and either must surface loudly.
type Store interface {
	Append(ctx context.Context, rec Record) error

	// Last returns the highest-sequence record, or false on an empty ledger.
	Last(ctx context.Context) (Record, bool, error)

	// List returns matching records in ascending sequence order.
	List(ctx context.Context, filter Filter) ([]Record, error)
}
