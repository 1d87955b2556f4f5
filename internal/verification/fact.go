// Package verification defines the normalized output of the external
// network-identity and location checks, and the gatherer that collects it.
//
// A Fact is constructed once per request and passed by value from there on;
// nothing mutates it after construction. Raw provider payloads never cross
// this boundary.
package verification

import (
	id "custos/pkg/domain"
)

// Coordinates is a network-reported device position.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Fact is the per-request bundle of verification signals. Each section has a
// Checked flag: false means the provider could not be reached or timed out,
// and the policy engine must treat the check as failed, not passed.
type Fact struct {
	Provenance id.Provenance `json:"provenance"`

	// Identity binding.
	ClaimedPhone    string `json:"claimed_phone"`
	NetworkPhone    string `json:"network_phone"`
	IdentityMatch   bool   `json:"identity_match"`
	IdentityChecked bool   `json:"identity_checked"`

	// Location.
	Coordinates       Coordinates `json:"coordinates"`
	InGeofence        bool        `json:"in_geofence"`
	GeofenceDistanceM float64     `json:"geofence_distance_m"`
	LocationChecked   bool        `json:"location_checked"`

	// Risk signals.
	SimSwapRecent    bool `json:"sim_swap_recent"`
	DeviceSwapRecent bool `json:"device_swap_recent"`
	RiskChecked      bool `json:"risk_checked"`

	// MatchRate is UI telemetry reported by the location provider. It is
	// never a decision input.
	MatchRate float64 `json:"match_rate"`
}

// Summary is the compact snapshot embedded in audit records. It keeps enough
// for decision replay without retaining raw payloads or precise coordinates.
type Summary struct {
	Provenance        id.Provenance `json:"provenance"`
	IdentityMatch     bool          `json:"identity_match"`
	IdentityChecked   bool          `json:"identity_checked"`
	InGeofence        bool          `json:"in_geofence"`
	GeofenceDistanceM float64       `json:"geofence_distance_m"`
	LocationChecked   bool          `json:"location_checked"`
	SimSwapRecent     bool          `json:"sim_swap_recent"`
	DeviceSwapRecent  bool          `json:"device_swap_recent"`
	RiskChecked       bool          `json:"risk_checked"`
	MatchRate         float64       `json:"match_rate"`
}

// Summarize produces the audit snapshot of the fact.
func (f Fact) Summarize() Summary {
	return Summary{
		Provenance:        f.Provenance,
		IdentityMatch:     f.IdentityMatch,
		IdentityChecked:   f.IdentityChecked,
		InGeofence:        f.InGeofence,
		GeofenceDistanceM: f.GeofenceDistanceM,
		LocationChecked:   f.LocationChecked,
		SimSwapRecent:     f.SimSwapRecent,
		DeviceSwapRecent:  f.DeviceSwapRecent,
		RiskChecked:       f.RiskChecked,
		MatchRate:         f.MatchRate,
	}
}
