// Package coordinator is the single entry point for custody operations. It
// owns per-asset serialization: one exclusive lease per asset tag for the
// duration of one Execute call, never across an approval's pending period.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"custos/internal/approval"
	"custos/internal/custody"
	"custos/internal/ledger"
	"custos/internal/lease"
	"custos/internal/policy"
	policymetrics "custos/internal/policy/metrics"
	"custos/internal/verification"
	id "custos/pkg/domain"
	dErrors "custos/pkg/domain-errors"
	"custos/pkg/platform/sentinel"
	"custos/pkg/requestcontext"
)

// Command is one requested custody operation.
type Command struct {
	Action   id.Action
	AssetTag id.AssetTag
	Actor    id.UserID
	Role     id.Role
	Site     id.SiteID

	// Target is the receiving custodian for transfers.
	Target *id.UserID

	// Justification is carried onto the approval request on STEP_UP.
	Justification string

	Fact verification.Fact

	// elevated marks a privileged continuation of an approved step-up.
	elevated bool

	// leased marks that the caller already holds the asset lease.
	leased bool
}

// Result is what the caller observes after the decision has been durably
// recorded. Asset is the post-transition state and is only set on ALLOW.
type Result struct {
	Decision   policy.Decision
	Asset      *custody.Asset
	ApprovalID *id.ApprovalID
	Sequence   uint64
}

// Allowed reports whether the operation was applied.
func (r Result) Allowed() bool { return r.Decision.Allowed() }

// Service sequences one custody operation end to end: lease, state
// validation, policy decision, state change, ledger append.
type Service struct {
	assets    custody.Store
	engine    *policy.Engine
	approvals *approval.Service
	ledger    *ledger.Ledger
	leases    lease.Keyed

	leaseTTL     time.Duration
	leaseRetries int

	logger        *slog.Logger
	policyMetrics *policymetrics.Metrics
	tracer        trace.Tracer
}

func NewService(
	assets custody.Store,
	engine *policy.Engine,
	approvals *approval.Service,
	ldg *ledger.Ledger,
	leases lease.Keyed,
	leaseTTL time.Duration,
	leaseRetries int,
	logger *slog.Logger,
	pm *policymetrics.Metrics,
) *Service {
	if leaseTTL <= 0 {
		leaseTTL = 10 * time.Second
	}
	if leaseRetries <= 0 {
		leaseRetries = 3
	}
	return &Service{
		assets:        assets,
		engine:        engine,
		approvals:     approvals,
		ledger:        ldg,
		leases:        leases,
		leaseTTL:      leaseTTL,
		leaseRetries:  leaseRetries,
		logger:        logger,
		policyMetrics: pm,
		tracer:        otel.Tracer("custos/coordinator"),
	}
}

const leaseRetryDelay = 25 * time.Millisecond

// Execute runs one custody operation. Every outcome the caller observes —
// ALLOW, DENY, STEP_UP — has already been appended to the ledger; an append
// failure fails the whole operation.
func (s *Service) Execute(ctx context.Context, cmd Command) (Result, error) {
	return s.execute(ctx, cmd, ledger.EventDecision, "")
}

func (s *Service) execute(ctx context.Context, cmd Command, eventType ledger.EventType, reasonOverride policy.Reason) (Result, error) {
	ctx, span := s.tracer.Start(ctx, "coordinator.Execute",
		trace.WithAttributes(
			attribute.String("custody.action", string(cmd.Action)),
			attribute.String("custody.asset_tag", string(cmd.AssetTag)),
		))
	defer span.End()

	if !cmd.leased {
		token, err := s.acquireLease(ctx, cmd.AssetTag)
		if err != nil {
			return Result{}, err
		}
		defer s.releaseLease(ctx, cmd.AssetTag, token)
	}

	asset, err := s.assets.Get(ctx, cmd.AssetTag)
	if errors.Is(err, sentinel.ErrNotFound) {
		return Result{}, dErrors.New(dErrors.CodeNotFound, "asset not found")
	}
	if err != nil {
		return Result{}, fmt.Errorf("load asset: %w", err)
	}

	// State validation runs before policy: a nonsensical request fails
	// fast as a logic error, not a security denial, and leaves no record.
	candidate, err := custody.Transition(asset, custody.Request{
		Action: cmd.Action,
		Actor:  cmd.Actor,
		Role:   cmd.Role,
		Target: cmd.Target,
		Now:    requestcontext.Now(ctx),
	})
	if err != nil {
		return Result{}, err
	}

	// Last exit with no side effects. Past this point the decision and its
	// ledger record always land together.
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	decision := s.engine.Decide(policy.Input{
		Sensitivity: asset.Sensitivity,
		Action:      cmd.Action,
		Fact:        cmd.Fact,
		Elevated:    cmd.elevated,
	})
	s.policyMetrics.IncrementOutcome(string(decision.Outcome), string(decision.Reason))
	span.SetAttributes(
		attribute.String("custody.outcome", string(decision.Outcome)),
		attribute.String("custody.reason", string(decision.Reason)),
	)

	result := Result{Decision: decision}

	if decision.Outcome == policy.OutcomeStepUp {
		req, reused, err := s.approvals.OpenOrReuse(ctx, approval.OpenParams{
			AssetTag:      cmd.AssetTag,
			Requester:     cmd.Actor,
			Action:        cmd.Action,
			TargetUser:    cmd.Target,
			Site:          cmd.Site,
			Justification: cmd.Justification,
			Reason:        decision.Reason,
		})
		if err != nil {
			return Result{}, err
		}
		approvalID := req.ID
		result.ApprovalID = &approvalID
		if reused {
			s.logger.InfoContext(ctx, "reusing pending approval",
				"approval_id", approvalID, "asset_tag", cmd.AssetTag)
		}
	}

	reason := decision.Reason
	if reasonOverride != "" && decision.Outcome == policy.OutcomeAllow {
		reason = reasonOverride
		result.Decision.Reason = reasonOverride
	}
	rec, err := s.ledger.Append(ctx, ledger.Record{
		EventType:    eventType,
		Actor:        cmd.Actor,
		TargetUser:   cmd.Target,
		AssetTag:     cmd.AssetTag,
		Site:         cmd.Site,
		Action:       cmd.Action,
		Outcome:      decision.Outcome,
		Reason:       reason,
		Verification: decision.Verification,
	})
	if err != nil {
		return Result{}, fmt.Errorf("record decision: %w", err)
	}
	result.Sequence = rec.Sequence

	// The record lands before the state change: a save failure leaves an
	// allowed decision with evidence, never an unrecorded custody change.
	if decision.Outcome == policy.OutcomeAllow {
		if err := s.assets.Save(ctx, candidate); err != nil {
			return Result{}, fmt.Errorf("apply transition: %w", err)
		}
		result.Asset = &candidate
	}

	s.logger.InfoContext(ctx, "custody decision",
		"action", cmd.Action,
		"asset_tag", cmd.AssetTag,
		"actor_id", cmd.Actor,
		"outcome", decision.Outcome,
		"reason", reason,
		"sequence", rec.Sequence,
	)
	return result, nil
}

func (s *Service) acquireLease(ctx context.Context, tag id.AssetTag) (string, error) {
	var lastErr error
	for attempt := 0; attempt < s.leaseRetries; attempt++ {
		token, err := s.leases.Acquire(ctx, string(tag), s.leaseTTL)
		if err == nil {
			return token, nil
		}
		if !errors.Is(err, sentinel.ErrLeaseHeld) {
			return "", fmt.Errorf("acquire lease: %w", err)
		}
		lastErr = err
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(leaseRetryDelay):
		}
	}
	return "", dErrors.Wrap(dErrors.CodeUnavailable, "asset is busy, retry shortly", lastErr)
}

func (s *Service) releaseLease(ctx context.Context, tag id.AssetTag, token string) {
	if err := s.leases.Release(context.WithoutCancel(ctx), string(tag), token); err != nil {
		s.logger.WarnContext(ctx, "lease release failed", "asset_tag", tag, "error", err)
	}
}

// RegisterAsset adds a new asset in AVAILABLE state and records the
// registration in the ledger.
func (s *Service) RegisterAsset(ctx context.Context, asset custody.Asset, actor id.UserID, role id.Role) (custody.Asset, error) {
	if !role.Elevated() {
		return custody.Asset{}, dErrors.New(dErrors.CodeForbidden, "registering assets requires an elevated role")
	}
	if !asset.Sensitivity.IsValid() {
		return custody.Asset{}, dErrors.New(dErrors.CodeInvalidInput, "unsupported sensitivity level")
	}

	token, err := s.acquireLease(ctx, asset.Tag)
	if err != nil {
		return custody.Asset{}, err
	}
	defer func() {
		_ = s.leases.Release(context.WithoutCancel(ctx), string(asset.Tag), token)
	}()

	if _, err := s.assets.Get(ctx, asset.Tag); err == nil {
		return custody.Asset{}, dErrors.New(dErrors.CodeConflict, "asset tag already registered")
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return custody.Asset{}, fmt.Errorf("check asset tag: %w", err)
	}

	asset.Status = custody.StatusAvailable
	asset.Custodian = nil
	if err := s.assets.Save(ctx, asset); err != nil {
		return custody.Asset{}, fmt.Errorf("save asset: %w", err)
	}

	if _, err := s.appendAdminRecord(ctx, asset, actor); err != nil {
		return custody.Asset{}, err
	}
	return asset, nil
}

// SetAssetStatus applies an administrative status change (maintenance,
// retirement, back to available). The change lands in the ledger like any
// custody decision.
func (s *Service) SetAssetStatus(ctx context.Context, tag id.AssetTag, status custody.Status, actor id.UserID, role id.Role) (custody.Asset, error) {
	if !role.Elevated() {
		return custody.Asset{}, dErrors.New(dErrors.CodeForbidden, "changing asset status requires an elevated role")
	}

	token, err := s.acquireLease(ctx, tag)
	if err != nil {
		return custody.Asset{}, err
	}
	defer func() {
		_ = s.leases.Release(context.WithoutCancel(ctx), string(tag), token)
	}()

	asset, err := s.assets.Get(ctx, tag)
	if errors.Is(err, sentinel.ErrNotFound) {
		return custody.Asset{}, dErrors.New(dErrors.CodeNotFound, "asset not found")
	}
	if err != nil {
		return custody.Asset{}, fmt.Errorf("load asset: %w", err)
	}

	updated, err := custody.SetStatus(asset, status)
	if err != nil {
		return custody.Asset{}, err
	}
	if err := s.assets.Save(ctx, updated); err != nil {
		return custody.Asset{}, fmt.Errorf("save asset: %w", err)
	}

	if _, err := s.appendAdminRecord(ctx, updated, actor); err != nil {
		return custody.Asset{}, err
	}
	return updated, nil
}

func (s *Service) appendAdminRecord(ctx context.Context, asset custody.Asset, actor id.UserID) (ledger.Record, error) {
	rec, err := s.ledger.Append(ctx, ledger.Record{
		EventType: ledger.EventStatusChange,
		Actor:     actor,
		AssetTag:  asset.Tag,
		Site:      asset.Site,
		Outcome:   policy.OutcomeAllow,
		Reason:    policy.ReasonAdminAction,
	})
	if err != nil {
		return ledger.Record{}, fmt.Errorf("record status change: %w", err)
	}
	s.logger.InfoContext(ctx, "asset status change",
		"asset_tag", asset.Tag,
		"status", asset.Status,
		"actor_id", actor,
		"sequence", rec.Sequence,
	)
	return rec, nil
}

// ResolveApproval records a manager's verdict on a pending step-up. On
// approval the original action re-runs as a privileged continuation that
// bypasses step-up rules but never DENY rules; on rejection the asset is
// untouched. Either way exactly one resolution record lands in the ledger.
func (s *Service) ResolveApproval(ctx context.Context, approvalID id.ApprovalID, resolver id.UserID, resolverRole id.Role, approve bool, fact verification.Fact) (approval.Request, *Result, error) {
	if !resolverRole.Elevated() {
		return approval.Request{}, nil, dErrors.New(dErrors.CodeForbidden, "resolving approvals requires an elevated role")
	}

	pending, err := s.approvals.Get(ctx, approvalID)
	if err != nil {
		return approval.Request{}, nil, err
	}

	// The asset lease is taken before the verdict lands, so a transient
	// failure here leaves the approval PENDING and retryable, and the
	// verdict plus its continuation run as one serialized unit.
	token, err := s.acquireLease(ctx, pending.AssetTag)
	if err != nil {
		return approval.Request{}, nil, err
	}
	defer s.releaseLease(ctx, pending.AssetTag, token)

	req, err := s.approvals.Resolve(ctx, approvalID, resolver, approve)
	if err != nil {
		return approval.Request{}, nil, err
	}

	if !approve {
		rec, err := s.ledger.Append(ctx, ledger.Record{
			EventType:  ledger.EventApprovalResolved,
			Actor:      resolver,
			TargetUser: &req.Requester,
			AssetTag:   req.AssetTag,
			Site:       req.Site,
			Action:     req.Action,
			Outcome:    policy.OutcomeDeny,
			Reason:     req.Reason,
		})
		if err != nil {
			return approval.Request{}, nil, fmt.Errorf("record rejection: %w", err)
		}
		s.logger.InfoContext(ctx, "approval rejected",
			"approval_id", approvalID, "asset_tag", req.AssetTag, "sequence", rec.Sequence)
		return req, nil, nil
	}

	// The continuation runs as the original requester but with the
	// resolver's authority: the approval itself is the authorization.
	result, err := s.execute(ctx, Command{
		Action:   req.Action,
		AssetTag: req.AssetTag,
		Actor:    req.Requester,
		Role:     resolverRole,
		Site:     req.Site,
		Target:   req.TargetUser,
		Fact:     fact,
		elevated: true,
		leased:   true,
	}, ledger.EventApprovalResolved, policy.ReasonStepUpApproved)
	if dErrors.HasCode(err, dErrors.CodeInvalidTransition) || dErrors.HasCode(err, dErrors.CodeNotFound) {
		// The asset moved on while the approval sat pending. The verdict
		// is already terminal, so the resolution still gets its record;
		// the action itself no longer applies.
		return s.recordStaleApproval(ctx, approvalID, req, resolver, fact)
	}
	if err != nil {
		return approval.Request{}, nil, fmt.Errorf("replay approved action: %w", err)
	}
	s.logger.InfoContext(ctx, "approval granted",
		"approval_id", approvalID, "asset_tag", req.AssetTag, "sequence", result.Sequence)
	return req, &result, nil
}

// recordStaleApproval lands the resolution record for an approved
// continuation whose asset is no longer in the source state.
func (s *Service) recordStaleApproval(ctx context.Context, approvalID id.ApprovalID, req approval.Request, resolver id.UserID, fact verification.Fact) (approval.Request, *Result, error) {
	decision := policy.Decision{
		Outcome:      policy.OutcomeDeny,
		Reason:       policy.ReasonStateConflict,
		Verification: fact.Summarize(),
	}
	rec, err := s.ledger.Append(ctx, ledger.Record{
		EventType:    ledger.EventApprovalResolved,
		Actor:        resolver,
		TargetUser:   &req.Requester,
		AssetTag:     req.AssetTag,
		Site:         req.Site,
		Action:       req.Action,
		Outcome:      decision.Outcome,
		Reason:       decision.Reason,
		Verification: decision.Verification,
	})
	if err != nil {
		return approval.Request{}, nil, fmt.Errorf("record stale approval: %w", err)
	}
	s.logger.WarnContext(ctx, "approved action no longer applies",
		"approval_id", approvalID, "asset_tag", req.AssetTag, "sequence", rec.Sequence)
	return req, &Result{Decision: decision, Sequence: rec.Sequence}, nil
}
