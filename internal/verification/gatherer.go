package verification

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	vMetrics "custos/internal/verification/metrics"
	id "custos/pkg/domain"
)

// Gatherer collects a Fact from the external providers. Provider calls run in
// parallel under a single deadline; a provider failure or timeout marks its
// section unchecked rather than failing the request, so the policy engine's
// conservative default applies.
type Gatherer struct {
	numbers  NumberVerifier
	location LocationVerifier
	risk     RiskChecker
	timeout  time.Duration
	logger   *slog.Logger
	metrics  *vMetrics.Metrics
}

func NewGatherer(
	numbers NumberVerifier,
	location LocationVerifier,
	risk RiskChecker,
	timeout time.Duration,
	logger *slog.Logger,
	metrics *vMetrics.Metrics,
) *Gatherer {
	return &Gatherer{
		numbers:  numbers,
		location: location,
		risk:     risk,
		timeout:  timeout,
		logger:   logger,
		metrics:  metrics,
	}
}

// Gather builds a Fact for the given claimed phone and site. It never returns
// an error for provider failures; those degrade to unchecked sections. The
// returned error is reserved for caller cancellation before gathering began.
func (g *Gatherer) Gather(ctx context.Context, claimedPhone string, site id.SiteID) (Fact, error) {
	if err := ctx.Err(); err != nil {
		return Fact{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	// Provider outages must not fail the bundle, so every goroutine returns
	// nil and records its own outcome into the fact sections.
	grp, ctx := errgroup.WithContext(ctx)

	fact := Fact{
		ClaimedPhone: claimedPhone,
		Provenance:   id.ProvenanceProduction,
	}

	var numberRes NumberResult
	var numberOK bool
	grp.Go(func() error {
		start := time.Now()
		res, err := g.numbers.VerifyNumber(ctx, claimedPhone)
		g.metrics.ObserveProviderLatency("number", time.Since(start))
		if err != nil {
			g.metrics.IncrementUnavailable("number")
			g.warn(ctx, "number verification unavailable", err)
			return nil
		}
		numberRes, numberOK = res, true
		return nil
	})

	var locationRes LocationResult
	var locationOK bool
	grp.Go(func() error {
		start := time.Now()
		res, err := g.location.VerifyLocation(ctx, claimedPhone, site)
		g.metrics.ObserveProviderLatency("location", time.Since(start))
		if err != nil {
			g.metrics.IncrementUnavailable("location")
			g.warn(ctx, "location verification unavailable", err)
			return nil
		}
		locationRes, locationOK = res, true
		return nil
	})

	var riskRes RiskResult
	var riskOK bool
	grp.Go(func() error {
		start := time.Now()
		res, err := g.risk.CheckRisk(ctx, claimedPhone)
		g.metrics.ObserveProviderLatency("risk", time.Since(start))
		if err != nil {
			g.metrics.IncrementUnavailable("risk")
			g.warn(ctx, "risk signal check unavailable", err)
			return nil
		}
		riskRes, riskOK = res, true
		return nil
	})

	_ = grp.Wait()

	if numberOK {
		fact.NetworkPhone = numberRes.NetworkPhone
		fact.IdentityMatch = numberRes.Match
		fact.IdentityChecked = true
		fact.Provenance = numberRes.Provenance
	}
	if locationOK {
		fact.Coordinates = locationRes.Coordinates
		fact.InGeofence = locationRes.InGeofence
		fact.GeofenceDistanceM = locationRes.DistanceM
		fact.MatchRate = locationRes.MatchRate
		fact.LocationChecked = true
	}
	if riskOK {
		fact.SimSwapRecent = riskRes.SimSwapRecent
		fact.DeviceSwapRecent = riskRes.DeviceSwapRecent
		fact.RiskChecked = true
	}

	return fact, nil
}

func (g *Gatherer) warn(ctx context.Context, msg string, err error) {
	if g.logger != nil {
		g.logger.WarnContext(ctx, msg, "error", err)
	}
}
