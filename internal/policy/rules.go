package policy

import id "custos/pkg/domain"

// RuleSet is the data-driven policy table: which checks are enabled for each
// sensitivity level, and which actions bind identity and location. It is
// loaded once at startup and read-only per decision.
type RuleSet struct {
	// IdentityBinding lists the actions that require the claimed phone to
	// match the network-reported identity.
	IdentityBinding map[id.Action]bool

	// LocationBound lists the actions that require geofence membership.
	LocationBound map[id.Action]bool

	// Sensitivity holds the per-level risk toggles.
	Sensitivity map[id.Sensitivity]SensitivityRules
}

// SensitivityRules are the toggles evaluated per sensitivity level.
type SensitivityRules struct {
	// DenyOutsideGeofence escalates a geofence miss from STEP_UP to DENY.
	DenyOutsideGeofence bool

	// StepUpOnSimSwap requires approval when a recent SIM swap is reported.
	StepUpOnSimSwap bool

	// StepUpOnDeviceSwap requires approval when a recent device swap is
	// reported.
	StepUpOnDeviceSwap bool
}

// DefaultRuleSet returns the shipped policy table. Returns skip identity
// binding: the asset is physically surrendered, so binding the actor's phone
// adds nothing. Every action is location-bound.
func DefaultRuleSet() RuleSet {
	return RuleSet{
		IdentityBinding: map[id.Action]bool{
			id.ActionCheckout:       true,
			id.ActionTransfer:       true,
			id.ActionInventoryClose: true,
		},
		LocationBound: map[id.Action]bool{
			id.ActionCheckout:       true,
			id.ActionReturn:         true,
			id.ActionTransfer:       true,
			id.ActionInventoryClose: true,
		},
		Sensitivity: map[id.Sensitivity]SensitivityRules{
			id.SensitivityHigh: {
				DenyOutsideGeofence: true,
				StepUpOnSimSwap:     true,
				StepUpOnDeviceSwap:  true,
			},
			id.SensitivityMedium: {
				StepUpOnSimSwap: true,
			},
			id.SensitivityLow: {},
		},
	}
}

// Engine evaluates custody requests against the rule set. It holds no mutable
// state; the rule set is treated as immutable after construction.
type Engine struct {
	rules RuleSet
}

func NewEngine(rules RuleSet) *Engine {
	return &Engine{rules: rules}
}

// Decide maps (sensitivity, action, fact) to a Decision. Rules are evaluated
// in a fixed order and the first match wins, since rules can conflict:
//
//  1. identity binding: mismatch is an unconditional DENY
//  2. geofence: DENY for high sensitivity, STEP_UP otherwise
//  3. risk signals: STEP_UP per sensitivity toggles
//  4. otherwise ALLOW
//
// A check whose verification section is unavailable routes to STEP_UP, never
// to a silent DENY (which would hide the cause) and never to ALLOW.
func (e *Engine) Decide(in Input) Decision {
	fact := in.Fact
	snapshot := fact.Summarize()
	level := e.rules.Sensitivity[in.Sensitivity]

	if e.rules.IdentityBinding[in.Action] {
		if !fact.IdentityChecked {
			return e.finish(in, Decision{Outcome: OutcomeStepUp, Reason: ReasonVerificationUnavailable, Verification: snapshot})
		}
		if !fact.IdentityMatch {
			// DENY is never bypassed by elevation.
			return Decision{Outcome: OutcomeDeny, Reason: ReasonNumberMismatch, Verification: snapshot}
		}
	}

	if e.rules.LocationBound[in.Action] {
		if !fact.LocationChecked {
			return e.finish(in, Decision{Outcome: OutcomeStepUp, Reason: ReasonVerificationUnavailable, Verification: snapshot})
		}
		if !fact.InGeofence {
			if level.DenyOutsideGeofence {
				return Decision{Outcome: OutcomeDeny, Reason: ReasonOutsideGeofence, Verification: snapshot}
			}
			return e.finish(in, Decision{Outcome: OutcomeStepUp, Reason: ReasonOutsideGeofence, Verification: snapshot})
		}
	}

	if level.StepUpOnSimSwap || level.StepUpOnDeviceSwap {
		if !fact.RiskChecked {
			return e.finish(in, Decision{Outcome: OutcomeStepUp, Reason: ReasonVerificationUnavailable, Verification: snapshot})
		}
		if (level.StepUpOnSimSwap && fact.SimSwapRecent) ||
			(level.StepUpOnDeviceSwap && fact.DeviceSwapRecent) {
			return e.finish(in, Decision{Outcome: OutcomeStepUp, Reason: ReasonRiskSignal, Verification: snapshot})
		}
	}

	return Decision{Outcome: OutcomeAllow, Reason: ReasonPolicyOK, Verification: snapshot}
}

// finish converts a STEP_UP into an ALLOW when the request carries elevated
// authority from a resolved approval. The original rule's reason is kept so
// the audit trail shows what was approved over.
func (e *Engine) finish(in Input, d Decision) Decision {
	if in.Elevated && d.Outcome == OutcomeStepUp {
		d.Outcome = OutcomeAllow
	}
	return d
}
