package verification

import (
	"context"

	id "custos/pkg/domain"
)

// MockProviders is a fixed-value provider set for development and tests. It
// replaces the old client-toggled mock object: values are set once at
// construction and immutable afterwards.
type MockProviders struct {
	Number   NumberResult
	Location LocationResult
	Risk     RiskResult

	// Err, when set, makes every provider call fail, simulating an outage.
	Err error
}

// PassingMocks returns providers where every check succeeds.
func PassingMocks(networkPhone string) *MockProviders {
	return &MockProviders{
		Number: NumberResult{
			NetworkPhone: networkPhone,
			Match:        true,
			Provenance:   id.ProvenanceMock,
		},
		Location: LocationResult{
			Coordinates: Coordinates{Latitude: 40.4168, Longitude: -3.7038},
			InGeofence:  true,
			DistanceM:   12,
			MatchRate:   98,
			Provenance:  id.ProvenanceMock,
		},
		Risk: RiskResult{Provenance: id.ProvenanceMock},
	}
}

func (m *MockProviders) VerifyNumber(ctx context.Context, claimedPhone string) (NumberResult, error) {
	if m.Err != nil {
		return NumberResult{}, m.Err
	}
	res := m.Number
	if res.NetworkPhone == "" {
		res.NetworkPhone = claimedPhone
	}
	res.Match = res.NetworkPhone == claimedPhone
	return res, nil
}

func (m *MockProviders) VerifyLocation(ctx context.Context, claimedPhone string, site id.SiteID) (LocationResult, error) {
	if m.Err != nil {
		return LocationResult{}, m.Err
	}
	return m.Location, nil
}

func (m *MockProviders) CheckRisk(ctx context.Context, claimedPhone string) (RiskResult, error) {
	if m.Err != nil {
		return RiskResult{}, m.Err
	}
	return m.Risk, nil
}
