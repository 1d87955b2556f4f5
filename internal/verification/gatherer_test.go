package verification

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "custos/pkg/domain"
)

func testGatherer(providers *MockProviders) *Gatherer {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewGatherer(providers, providers, providers, time.Second, logger, nil)
}

func TestGatherAllProvidersHealthy(t *testing.T) {
	g := testGatherer(PassingMocks("+34600111222"))

	fact, err := g.Gather(context.Background(), "+34600111222", id.SiteID(uuid.New()))
	require.NoError(t, err)

	assert.True(t, fact.IdentityChecked)
	assert.True(t, fact.IdentityMatch)
	assert.True(t, fact.LocationChecked)
	assert.True(t, fact.InGeofence)
	assert.True(t, fact.RiskChecked)
	assert.False(t, fact.SimSwapRecent)
	assert.Equal(t, id.ProvenanceMock, fact.Provenance)
}

func TestGatherNumberMismatch(t *testing.T) {
	providers := PassingMocks("+34600999999")
	g := testGatherer(providers)

	fact, err := g.Gather(context.Background(), "+34600111222", id.SiteID(uuid.New()))
	require.NoError(t, err)

	assert.True(t, fact.IdentityChecked)
	assert.False(t, fact.IdentityMatch)
	assert.Equal(t, "+34600999999", fact.NetworkPhone)
}

func TestGatherProviderOutageDegradesToUnchecked(t *testing.T) {
	providers := PassingMocks("+34600111222")
	providers.Err = errors.New("provider 503")
	g := testGatherer(providers)

	fact, err := g.Gather(context.Background(), "+34600111222", id.SiteID(uuid.New()))
	require.NoError(t, err, "provider outage must not fail the bundle")

	assert.False(t, fact.IdentityChecked)
	assert.False(t, fact.LocationChecked)
	assert.False(t, fact.RiskChecked)
}

func TestGatherHonorsCancellationBeforeStart(t *testing.T) {
	g := testGatherer(PassingMocks("+34600111222"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := g.Gather(ctx, "+34600111222", id.SiteID(uuid.New()))
	require.ErrorIs(t, err, context.Canceled)
}

type slowRisk struct{ *MockProviders }

func (s slowRisk) CheckRisk(ctx context.Context, claimedPhone string) (RiskResult, error) {
	select {
	case <-ctx.Done():
		return RiskResult{}, ctx.Err()
	case <-time.After(5 * time.Second):
		return RiskResult{}, nil
	}
}

func TestGatherTimeoutBoundsSlowProvider(t *testing.T) {
	providers := PassingMocks("+34600111222")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	g := NewGatherer(providers, providers, slowRisk{providers}, 50*time.Millisecond, logger, nil)

	start := time.Now()
	fact, err := g.Gather(context.Background(), "+34600111222", id.SiteID(uuid.New()))
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second, "gather must not wait out the slow provider")

	assert.True(t, fact.IdentityChecked)
	assert.False(t, fact.RiskChecked, "timed-out section must read as unchecked")
}
