// Package policy is the custody authorization decision engine. Decide is a
// pure function: no I/O, no shared state, identical inputs always produce an
// identical Decision.
package policy

import (
	"custos/internal/verification"
	id "custos/pkg/domain"
)

// Outcome is the result class of a policy evaluation.
type Outcome string

const (
	OutcomeAllow  Outcome = "ALLOW"
	OutcomeDeny   Outcome = "DENY"
	OutcomeStepUp Outcome = "STEP_UP"
)

// Reason is a machine-checkable justification for an outcome.
type Reason string

const (
	ReasonNumberMismatch          Reason = "NUMBER_MISMATCH"
	ReasonOutsideGeofence         Reason = "OUTSIDE_GEOFENCE"
	ReasonRiskSignal              Reason = "RISK_SIGNAL"
	ReasonVerificationUnavailable Reason = "VERIFICATION_UNAVAILABLE"
	ReasonPolicyOK                Reason = "POLICY_OK"
	ReasonStepUpApproved          Reason = "STEP_UP_APPROVED"
	ReasonStateConflict           Reason = "STATE_CONFLICT"
	ReasonAdminAction             Reason = "ADMIN_ACTION"
)

// reasonMessages derives the human-readable string for each reason code.
var reasonMessages = map[Reason]string{
	ReasonNumberMismatch:          "claimed phone number does not match the network-reported identity",
	ReasonOutsideGeofence:         "device is outside the site geofence",
	ReasonRiskSignal:              "recent SIM or device swap detected",
	ReasonVerificationUnavailable: "verification provider unavailable; manager approval required",
	ReasonPolicyOK:                "all enabled checks passed",
	ReasonStepUpApproved:          "step-up approved by manager",
	ReasonStateConflict:           "asset state changed while the approval was pending",
	ReasonAdminAction:             "administrative action by elevated role",
}

// Message returns the human-readable string for the reason code.
func (r Reason) Message() string {
	if msg, ok := reasonMessages[r]; ok {
		return msg
	}
	return string(r)
}

// Decision is the immutable product of one policy evaluation. The caller
// attaches sequence and timestamp when it lands in the ledger.
type Decision struct {
	Outcome      Outcome
	Reason       Reason
	Verification verification.Summary
}

// Allowed reports whether the decision permits applying the state transition.
func (d Decision) Allowed() bool { return d.Outcome == OutcomeAllow }

// Input is everything Decide consumes.
type Input struct {
	Sensitivity id.Sensitivity
	Action      id.Action
	Fact        verification.Fact

	// Elevated marks a privileged continuation of an approved step-up.
	// It bypasses STEP_UP rules but never DENY rules.
	Elevated bool
}
