package coordinator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"custos/internal/approval"
	"custos/internal/custody"
	"custos/internal/ledger"
	"custos/internal/lease"
	"custos/internal/policy"
	"custos/internal/verification"
	id "custos/pkg/domain"
	dErrors "custos/pkg/domain-errors"
)

type fixture struct {
	svc         *Service
	assets      *custody.InMemoryStore
	approvals   *approval.Service
	ledgerStore *ledger.InMemoryStore
	ldg         *ledger.Ledger
	site        id.SiteID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	assets := custody.NewInMemoryStore()
	ledgerStore := ledger.NewInMemoryStore()
	ldg := ledger.New(ledgerStore, nil)
	approvals := approval.NewService(approval.NewInMemoryStore(), nil)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	svc := NewService(assets, policy.NewEngine(policy.DefaultRuleSet()), approvals, ldg,
		lease.NewMemory(), time.Second, 3, logger, nil)
	return &fixture{
		svc:         svc,
		assets:      assets,
		approvals:   approvals,
		ledgerStore: ledgerStore,
		ldg:         ldg,
		site:        id.SiteID(uuid.New()),
	}
}

func (f *fixture) seedAsset(t *testing.T, tag id.AssetTag, sensitivity id.Sensitivity) {
	t.Helper()
	require.NoError(t, f.assets.Save(context.Background(), custody.Asset{
		Tag:         tag,
		Sensitivity: sensitivity,
		Status:      custody.StatusAvailable,
		Site:        f.site,
	}))
}

func passingFact() verification.Fact {
	return verification.Fact{
		Provenance:      id.ProvenanceMock,
		ClaimedPhone:    "+15550100",
		NetworkPhone:    "+15550100",
		IdentityMatch:   true,
		IdentityChecked: true,
		InGeofence:      true,
		LocationChecked: true,
		RiskChecked:     true,
	}
}

func (f *fixture) checkout(tag id.AssetTag, actor id.UserID, fact verification.Fact) (Result, error) {
	return f.svc.Execute(context.Background(), Command{
		Action:   id.ActionCheckout,
		AssetTag: tag,
		Actor:    actor,
		Role:     id.RoleEmployee,
		Site:     f.site,
		Fact:     fact,
	})
}

func (f *fixture) verifyChain(t *testing.T) ledger.VerifyReport {
	t.Helper()
	report, err := f.ldg.Verify(context.Background())
	require.NoError(t, err)
	return report
}

// HIGH-sensitivity asset with a phone mismatch: denied, state unchanged,
// denial recorded.
func TestExecute_HighSensitivityNumberMismatchDenies(t *testing.T) {
	f := newFixture(t)
	f.seedAsset(t, "AST-00001", id.SensitivityHigh)

	fact := passingFact()
	fact.NetworkPhone = "+15550199"
	fact.IdentityMatch = false

	result, err := f.checkout("AST-00001", id.UserID(uuid.New()), fact)
	require.NoError(t, err)
	assert.Equal(t, policy.OutcomeDeny, result.Decision.Outcome)
	assert.Equal(t, policy.ReasonNumberMismatch, result.Decision.Reason)
	assert.Nil(t, result.Asset)
	assert.Nil(t, result.ApprovalID)

	asset, err := f.assets.Get(context.Background(), "AST-00001")
	require.NoError(t, err)
	assert.Equal(t, custody.StatusAvailable, asset.Status)
	assert.Nil(t, asset.Custodian)

	records, err := f.ldg.List(context.Background(), ledger.Filter{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, policy.OutcomeDeny, records[0].Outcome)
}

// LOW-sensitivity asset outside the geofence: step-up with a PENDING
// approval, no state change.
func TestExecute_LowSensitivityOutsideGeofenceStepsUp(t *testing.T) {
	f := newFixture(t)
	f.seedAsset(t, "AST-00002", id.SensitivityLow)

	fact := passingFact()
	fact.InGeofence = false
	fact.GeofenceDistanceM = 412

	result, err := f.checkout("AST-00002", id.UserID(uuid.New()), fact)
	require.NoError(t, err)
	assert.Equal(t, policy.OutcomeStepUp, result.Decision.Outcome)
	assert.Equal(t, policy.ReasonOutsideGeofence, result.Decision.Reason)
	require.NotNil(t, result.ApprovalID)

	req, err := f.approvals.Get(context.Background(), *result.ApprovalID)
	require.NoError(t, err)
	assert.Equal(t, approval.StatusPending, req.Status)

	asset, err := f.assets.Get(context.Background(), "AST-00002")
	require.NoError(t, err)
	assert.Equal(t, custody.StatusAvailable, asset.Status)
}

// MEDIUM-sensitivity asset with a recent SIM swap: step-up on risk.
func TestExecute_MediumSensitivitySimSwapStepsUp(t *testing.T) {
	f := newFixture(t)
	f.seedAsset(t, "AST-00003", id.SensitivityMedium)

	fact := passingFact()
	fact.SimSwapRecent = true

	result, err := f.checkout("AST-00003", id.UserID(uuid.New()), fact)
	require.NoError(t, err)
	assert.Equal(t, policy.OutcomeStepUp, result.Decision.Outcome)
	assert.Equal(t, policy.ReasonRiskSignal, result.Decision.Reason)
}

// HIGH-sensitivity asset, all checks passing: allowed, checked out, and the
// new record links correctly into the chain.
func TestExecute_AllChecksPassingAllowsCheckout(t *testing.T) {
	f := newFixture(t)
	f.seedAsset(t, "AST-00004", id.SensitivityHigh)
	actor := id.UserID(uuid.New())

	result, err := f.checkout("AST-00004", actor, passingFact())
	require.NoError(t, err)
	assert.Equal(t, policy.OutcomeAllow, result.Decision.Outcome)
	assert.Equal(t, policy.ReasonPolicyOK, result.Decision.Reason)
	require.NotNil(t, result.Asset)
	assert.Equal(t, custody.StatusCheckedOut, result.Asset.Status)
	require.NotNil(t, result.Asset.Custodian)
	assert.Equal(t, actor, *result.Asset.Custodian)
	assert.Equal(t, uint64(1), result.Sequence)

	report := f.verifyChain(t)
	assert.True(t, report.Valid)
	assert.Equal(t, uint64(1), report.Records)
}

// Two concurrent checkouts of the same AVAILABLE asset: exactly one wins;
// the loser is rejected by the state machine, not the policy engine.
func TestExecute_ConcurrentCheckoutHasExactlyOneWinner(t *testing.T) {
	f := newFixture(t)
	f.seedAsset(t, "AST-00005", id.SensitivityLow)

	const racers = 8
	var wg sync.WaitGroup
	results := make([]Result, racers)
	errs := make([]error, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = f.checkout("AST-00005", id.UserID(uuid.New()), passingFact())
		}(i)
	}
	wg.Wait()

	var wins, invalid int
	for i := 0; i < racers; i++ {
		switch {
		case errs[i] == nil && results[i].Allowed():
			wins++
		case dErrors.HasCode(errs[i], dErrors.CodeInvalidTransition):
			invalid++
		case dErrors.HasCode(errs[i], dErrors.CodeUnavailable):
			// Lease contention exhausted its retries; also a valid loss.
			invalid++
		default:
			t.Fatalf("unexpected result %d: %+v %v", i, results[i], errs[i])
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, racers-1, invalid)

	assert.True(t, f.verifyChain(t).Valid)
}

// failingSaveStore accepts reads but refuses writes.
type failingSaveStore struct {
	*custody.InMemoryStore
}

func (f *failingSaveStore) Save(ctx context.Context, asset custody.Asset) error {
	return errors.New("disk full")
}

// When the state change cannot be persisted after an ALLOW, the decision
// record is already in the ledger: evidence survives, the asset does not
// silently change hands.
func TestExecute_SaveFailureLeavesDecisionRecord(t *testing.T) {
	inner := custody.NewInMemoryStore()
	assets := &failingSaveStore{InMemoryStore: inner}
	ledgerStore := ledger.NewInMemoryStore()
	ldg := ledger.New(ledgerStore, nil)
	approvals := approval.NewService(approval.NewInMemoryStore(), nil)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	svc := NewService(assets, policy.NewEngine(policy.DefaultRuleSet()), approvals, ldg,
		lease.NewMemory(), time.Second, 3, logger, nil)

	ctx := context.Background()
	site := id.SiteID(uuid.New())
	require.NoError(t, inner.Save(ctx, custody.Asset{
		Tag:         "AST-00017",
		Sensitivity: id.SensitivityLow,
		Status:      custody.StatusAvailable,
		Site:        site,
	}))

	_, err := svc.Execute(ctx, Command{
		Action:   id.ActionCheckout,
		AssetTag: "AST-00017",
		Actor:    id.UserID(uuid.New()),
		Role:     id.RoleEmployee,
		Site:     site,
		Fact:     passingFact(),
	})
	require.Error(t, err)

	asset, err := inner.Get(ctx, "AST-00017")
	require.NoError(t, err)
	assert.Equal(t, custody.StatusAvailable, asset.Status)

	records, err := ldg.List(ctx, ledger.Filter{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, policy.OutcomeAllow, records[0].Outcome)
}

// A lease held elsewhere for the whole retry window surfaces as
// unavailable, with no ledger record for the blocked request.
func TestExecute_HeldLeaseExhaustsRetriesAsUnavailable(t *testing.T) {
	assets := custody.NewInMemoryStore()
	ledgerStore := ledger.NewInMemoryStore()
	ldg := ledger.New(ledgerStore, nil)
	approvals := approval.NewService(approval.NewInMemoryStore(), nil)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	leases := lease.NewMemory()

	svc := NewService(assets, policy.NewEngine(policy.DefaultRuleSet()), approvals, ldg,
		leases, time.Second, 2, logger, nil)

	site := id.SiteID(uuid.New())
	require.NoError(t, assets.Save(context.Background(), custody.Asset{
		Tag:         "AST-00014",
		Sensitivity: id.SensitivityLow,
		Status:      custody.StatusAvailable,
		Site:        site,
	}))

	_, err := leases.Acquire(context.Background(), "AST-00014", time.Minute)
	require.NoError(t, err)

	_, err = svc.Execute(context.Background(), Command{
		Action:   id.ActionCheckout,
		AssetTag: "AST-00014",
		Actor:    id.UserID(uuid.New()),
		Role:     id.RoleEmployee,
		Site:     site,
		Fact:     passingFact(),
	})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnavailable))

	records, err := ldg.List(context.Background(), ledger.Filter{})
	require.NoError(t, err)
	assert.Empty(t, records)
}

// CHECKED_OUT ⇔ custodian set, observable between any two Execute calls.
func TestExecute_CustodianInvariantHolds(t *testing.T) {
	f := newFixture(t)
	f.seedAsset(t, "AST-00006", id.SensitivityLow)
	ctx := context.Background()
	alice := id.UserID(uuid.New())
	bob := id.UserID(uuid.New())

	checkInvariant := func() {
		t.Helper()
		assets, err := f.assets.List(ctx)
		require.NoError(t, err)
		for _, a := range assets {
			assert.True(t, a.Consistent(), "asset %s: status %s custodian %v", a.Tag, a.Status, a.Custodian)
		}
	}

	_, err := f.checkout("AST-00006", alice, passingFact())
	require.NoError(t, err)
	checkInvariant()

	_, err = f.svc.Execute(ctx, Command{
		Action: id.ActionTransfer, AssetTag: "AST-00006", Actor: alice,
		Role: id.RoleEmployee, Site: f.site, Target: &bob, Fact: passingFact(),
	})
	require.NoError(t, err)
	checkInvariant()

	_, err = f.svc.Execute(ctx, Command{
		Action: id.ActionReturn, AssetTag: "AST-00006", Actor: bob,
		Role: id.RoleEmployee, Site: f.site, Fact: passingFact(),
	})
	require.NoError(t, err)
	checkInvariant()
}

func TestExecute_InvalidTransitionLeavesNoRecord(t *testing.T) {
	f := newFixture(t)
	f.seedAsset(t, "AST-00007", id.SensitivityLow)

	_, err := f.svc.Execute(context.Background(), Command{
		Action: id.ActionReturn, AssetTag: "AST-00007",
		Actor: id.UserID(uuid.New()), Role: id.RoleEmployee, Site: f.site,
		Fact: passingFact(),
	})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidTransition))

	records, err := f.ldg.List(context.Background(), ledger.Filter{})
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestExecute_UnknownAssetNotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.checkout("AST-MISSING", id.UserID(uuid.New()), passingFact())
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestExecute_IdempotentStepUpResubmission(t *testing.T) {
	f := newFixture(t)
	f.seedAsset(t, "AST-00008", id.SensitivityMedium)
	actor := id.UserID(uuid.New())

	fact := passingFact()
	fact.SimSwapRecent = true

	first, err := f.checkout("AST-00008", actor, fact)
	require.NoError(t, err)
	second, err := f.checkout("AST-00008", actor, fact)
	require.NoError(t, err)

	require.NotNil(t, first.ApprovalID)
	require.NotNil(t, second.ApprovalID)
	assert.Equal(t, *first.ApprovalID, *second.ApprovalID)

	pending := approval.StatusPending
	open, err := f.approvals.List(context.Background(), &pending)
	require.NoError(t, err)
	assert.Len(t, open, 1)
}

func TestExecute_CancelledBeforeDecisionHasNoSideEffects(t *testing.T) {
	f := newFixture(t)
	f.seedAsset(t, "AST-00009", id.SensitivityLow)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.svc.Execute(ctx, Command{
		Action: id.ActionCheckout, AssetTag: "AST-00009",
		Actor: id.UserID(uuid.New()), Role: id.RoleEmployee, Site: f.site,
		Fact: passingFact(),
	})
	require.ErrorIs(t, err, context.Canceled)

	records, err := f.ldg.List(context.Background(), ledger.Filter{})
	require.NoError(t, err)
	assert.Empty(t, records)

	asset, err := f.assets.Get(context.Background(), "AST-00009")
	require.NoError(t, err)
	assert.Equal(t, custody.StatusAvailable, asset.Status)
}

func TestResolveApproval_ApprovedReplaysAction(t *testing.T) {
	f := newFixture(t)
	f.seedAsset(t, "AST-00010", id.SensitivityMedium)
	ctx := context.Background()
	actor := id.UserID(uuid.New())
	manager := id.UserID(uuid.New())

	fact := passingFact()
	fact.SimSwapRecent = true
	stepUp, err := f.checkout("AST-00010", actor, fact)
	require.NoError(t, err)
	require.NotNil(t, stepUp.ApprovalID)

	req, result, err := f.svc.ResolveApproval(ctx, *stepUp.ApprovalID, manager, id.RoleManager, true, fact)
	require.NoError(t, err)
	assert.Equal(t, approval.StatusApproved, req.Status)
	require.NotNil(t, result)
	assert.Equal(t, policy.OutcomeAllow, result.Decision.Outcome)
	assert.Equal(t, policy.ReasonStepUpApproved, result.Decision.Reason)

	asset, err := f.assets.Get(ctx, "AST-00010")
	require.NoError(t, err)
	assert.Equal(t, custody.StatusCheckedOut, asset.Status)
	require.NotNil(t, asset.Custodian)
	assert.Equal(t, actor, *asset.Custodian)

	records, err := f.ldg.List(ctx, ledger.Filter{})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, ledger.EventApprovalResolved, records[1].EventType)
	assert.Equal(t, policy.OutcomeAllow, records[1].Outcome)
	assert.True(t, f.verifyChain(t).Valid)
}

// An approved continuation whose asset left the source state while the
// approval sat pending still lands a resolution record, and the approval is
// consumed exactly once.
func TestResolveApproval_ApprovedStaleAssetRecordsResolution(t *testing.T) {
	f := newFixture(t)
	f.seedAsset(t, "AST-00015", id.SensitivityMedium)
	ctx := context.Background()
	actor := id.UserID(uuid.New())
	manager := id.UserID(uuid.New())

	fact := passingFact()
	fact.SimSwapRecent = true
	stepUp, err := f.checkout("AST-00015", actor, fact)
	require.NoError(t, err)
	require.NotNil(t, stepUp.ApprovalID)

	// Someone else checks the asset out before the manager gets to it.
	rival := id.UserID(uuid.New())
	_, err = f.checkout("AST-00015", rival, passingFact())
	require.NoError(t, err)

	req, result, err := f.svc.ResolveApproval(ctx, *stepUp.ApprovalID, manager, id.RoleManager, true, fact)
	require.NoError(t, err)
	assert.Equal(t, approval.StatusApproved, req.Status)
	require.NotNil(t, result)
	assert.Equal(t, policy.OutcomeDeny, result.Decision.Outcome)
	assert.Equal(t, policy.ReasonStateConflict, result.Decision.Reason)

	asset, err := f.assets.Get(ctx, "AST-00015")
	require.NoError(t, err)
	assert.Equal(t, custody.StatusCheckedOut, asset.Status)
	require.NotNil(t, asset.Custodian)
	assert.Equal(t, rival, *asset.Custodian)

	records, err := f.ldg.List(ctx, ledger.Filter{})
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, ledger.EventApprovalResolved, records[2].EventType)
	assert.Equal(t, policy.OutcomeDeny, records[2].Outcome)
	assert.Equal(t, policy.ReasonStateConflict, records[2].Reason)
	assert.True(t, f.verifyChain(t).Valid)

	// The verdict is terminal; a second attempt conflicts.
	_, _, err = f.svc.ResolveApproval(ctx, *stepUp.ApprovalID, manager, id.RoleManager, true, fact)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
}

// A lease held elsewhere blocks the verdict itself, leaving the approval
// pending and retryable.
func TestResolveApproval_HeldLeaseLeavesApprovalPending(t *testing.T) {
	assets := custody.NewInMemoryStore()
	ldg := ledger.New(ledger.NewInMemoryStore(), nil)
	approvals := approval.NewService(approval.NewInMemoryStore(), nil)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	leases := lease.NewMemory()
	svc := NewService(assets, policy.NewEngine(policy.DefaultRuleSet()), approvals, ldg,
		leases, time.Second, 2, logger, nil)

	ctx := context.Background()
	site := id.SiteID(uuid.New())
	require.NoError(t, assets.Save(ctx, custody.Asset{
		Tag:         "AST-00016",
		Sensitivity: id.SensitivityMedium,
		Status:      custody.StatusAvailable,
		Site:        site,
	}))

	fact := passingFact()
	fact.SimSwapRecent = true
	stepUp, err := svc.Execute(ctx, Command{
		Action:   id.ActionCheckout,
		AssetTag: "AST-00016",
		Actor:    id.UserID(uuid.New()),
		Role:     id.RoleEmployee,
		Site:     site,
		Fact:     fact,
	})
	require.NoError(t, err)
	require.NotNil(t, stepUp.ApprovalID)

	token, err := leases.Acquire(ctx, "AST-00016", time.Minute)
	require.NoError(t, err)

	manager := id.UserID(uuid.New())
	_, _, err = svc.ResolveApproval(ctx, *stepUp.ApprovalID, manager, id.RoleManager, true, fact)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnavailable))

	pending, err := approvals.Get(ctx, *stepUp.ApprovalID)
	require.NoError(t, err)
	assert.Equal(t, approval.StatusPending, pending.Status)

	// Once the contender lets go, the same verdict goes through.
	require.NoError(t, leases.Release(ctx, "AST-00016", token))
	req, result, err := svc.ResolveApproval(ctx, *stepUp.ApprovalID, manager, id.RoleManager, true, fact)
	require.NoError(t, err)
	assert.Equal(t, approval.StatusApproved, req.Status)
	require.NotNil(t, result)
	assert.Equal(t, policy.OutcomeAllow, result.Decision.Outcome)
}

func TestResolveApproval_ApprovalNeverBypassesDeny(t *testing.T) {
	f := newFixture(t)
	f.seedAsset(t, "AST-00011", id.SensitivityHigh)
	ctx := context.Background()
	actor := id.UserID(uuid.New())

	fact := passingFact()
	fact.SimSwapRecent = true
	stepUp, err := f.checkout("AST-00011", actor, fact)
	require.NoError(t, err)
	require.NotNil(t, stepUp.ApprovalID)

	// By resolution time the network reports a different number.
	denyFact := passingFact()
	denyFact.IdentityMatch = false

	req, result, err := f.svc.ResolveApproval(ctx, *stepUp.ApprovalID, id.UserID(uuid.New()), id.RoleManager, true, denyFact)
	require.NoError(t, err)
	assert.Equal(t, approval.StatusApproved, req.Status)
	require.NotNil(t, result)
	assert.Equal(t, policy.OutcomeDeny, result.Decision.Outcome)
	assert.Equal(t, policy.ReasonNumberMismatch, result.Decision.Reason)

	asset, err := f.assets.Get(ctx, "AST-00011")
	require.NoError(t, err)
	assert.Equal(t, custody.StatusAvailable, asset.Status)
}

func TestResolveApproval_RejectedLeavesAssetUntouched(t *testing.T) {
	f := newFixture(t)
	f.seedAsset(t, "AST-00012", id.SensitivityMedium)
	ctx := context.Background()

	fact := passingFact()
	fact.SimSwapRecent = true
	stepUp, err := f.checkout("AST-00012", id.UserID(uuid.New()), fact)
	require.NoError(t, err)
	require.NotNil(t, stepUp.ApprovalID)

	req, result, err := f.svc.ResolveApproval(ctx, *stepUp.ApprovalID, id.UserID(uuid.New()), id.RoleManager, false, verification.Fact{})
	require.NoError(t, err)
	assert.Equal(t, approval.StatusRejected, req.Status)
	assert.Nil(t, result)

	asset, err := f.assets.Get(ctx, "AST-00012")
	require.NoError(t, err)
	assert.Equal(t, custody.StatusAvailable, asset.Status)

	records, err := f.ldg.List(ctx, ledger.Filter{})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, ledger.EventApprovalResolved, records[1].EventType)
	assert.Equal(t, policy.OutcomeDeny, records[1].Outcome)
	assert.True(t, f.verifyChain(t).Valid)
}

func TestResolveApproval_RequiresElevatedRole(t *testing.T) {
	f := newFixture(t)
	_, _, err := f.svc.ResolveApproval(context.Background(), id.NewApprovalID(),
		id.UserID(uuid.New()), id.RoleEmployee, true, verification.Fact{})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
}

func TestResolveApproval_SecondVerdictConflicts(t *testing.T) {
	f := newFixture(t)
	f.seedAsset(t, "AST-00013", id.SensitivityMedium)
	ctx := context.Background()

	fact := passingFact()
	fact.SimSwapRecent = true
	stepUp, err := f.checkout("AST-00013", id.UserID(uuid.New()), fact)
	require.NoError(t, err)

	_, _, err = f.svc.ResolveApproval(ctx, *stepUp.ApprovalID, id.UserID(uuid.New()), id.RoleManager, false, verification.Fact{})
	require.NoError(t, err)

	_, _, err = f.svc.ResolveApproval(ctx, *stepUp.ApprovalID, id.UserID(uuid.New()), id.RoleManager, true, verification.Fact{})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
}
