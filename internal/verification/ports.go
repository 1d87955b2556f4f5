package verification

import (
	"context"

	id "custos/pkg/domain"
)

// NumberResult is a provider's verdict on whether the claimed phone number is
// the one the network observes for the device.
type NumberResult struct {
	NetworkPhone string
	Match        bool
	Provenance   id.Provenance
}

// LocationResult is a provider's verdict on whether the device sits inside
// the site geofence.
type LocationResult struct {
	Coordinates Coordinates
	InGeofence  bool
	DistanceM   float64
	MatchRate   float64
	Provenance  id.Provenance
}

// RiskResult carries the recent-swap risk signals from the network operator.
type RiskResult struct {
	SimSwapRecent    bool
	DeviceSwapRecent bool
	Provenance       id.Provenance
}

// NumberVerifier checks claimed phone against the network-reported identity.
type NumberVerifier interface {
	VerifyNumber(ctx context.Context, claimedPhone string) (NumberResult, error)
}

// LocationVerifier checks device position against a site's geofence.
type LocationVerifier interface {
	VerifyLocation(ctx context.Context, claimedPhone string, site id.SiteID) (LocationResult, error)
}

// RiskChecker reports recent SIM-swap and device-swap events.
type RiskChecker interface {
	CheckRisk(ctx context.Context, claimedPhone string) (RiskResult, error)
}
