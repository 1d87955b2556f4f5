// Package custody owns the asset model and the state machine that is the only
// legal mutation path for an asset's custody state.
package custody

import (
	"time"

	id "custos/pkg/domain"
)

// Status is an asset's custody state.
type Status string

const (
	StatusAvailable   Status = "AVAILABLE"
	StatusCheckedOut  Status = "CHECKED_OUT"
	StatusMaintenance Status = "MAINTENANCE"
	StatusRetired     Status = "RETIRED"
)

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	switch s {
	case StatusAvailable, StatusCheckedOut, StatusMaintenance, StatusRetired:
		return true
	}
	return false
}

// Asset is the custody view of an asset. Status and custodian are mutated only
// by Transition, inside a held per-asset lease.
//
// Invariant: Status == CHECKED_OUT ⇔ Custodian != nil.
type Asset struct {
	Tag         id.AssetTag
	Sensitivity id.Sensitivity
	Status      Status
	Custodian   *id.UserID
	Site        id.SiteID

	// LastSightedAt records the most recent confirmed sighting
	// (inventory close).
	LastSightedAt *time.Time
}

// Consistent reports whether the status/custodian invariant holds.
func (a Asset) Consistent() bool {
	switch a.Status {
	case StatusCheckedOut:
		return a.Custodian != nil
	default:
		return a.Custodian == nil
	}
}
