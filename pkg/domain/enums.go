package domain

import dErrors "custos/pkg/domain-errors"

// Action is a custody operation requested against an asset.
type Action string

const (
	ActionCheckout       Action = "CHECKOUT"
	ActionReturn         Action = "RETURN"
	ActionTransfer       Action = "TRANSFER"
	ActionInventoryClose Action = "INVENTORY_CLOSE"
)

var validActions = map[Action]bool{
	ActionCheckout:       true,
	ActionReturn:         true,
	ActionTransfer:       true,
	ActionInventoryClose: true,
}

// ParseAction constructs an Action from external input.
func ParseAction(s string) (Action, error) {
	a := Action(s)
	if !validActions[a] {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unsupported custody action")
	}
	return a, nil
}

func (a Action) IsValid() bool { return validActions[a] }

// Sensitivity classifies how strictly an asset's custody is policed.
type Sensitivity string

const (
	SensitivityLow    Sensitivity = "LOW"
	SensitivityMedium Sensitivity = "MEDIUM"
	SensitivityHigh   Sensitivity = "HIGH"
)

var validSensitivities = map[Sensitivity]bool{
	SensitivityLow:    true,
	SensitivityMedium: true,
	SensitivityHigh:   true,
}

// ParseSensitivity constructs a Sensitivity from external input.
func ParseSensitivity(s string) (Sensitivity, error) {
	v := Sensitivity(s)
	if !validSensitivities[v] {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unsupported sensitivity level")
	}
	return v, nil
}

func (s Sensitivity) IsValid() bool { return validSensitivities[s] }

// Role is the authenticated actor's role as asserted by the identity layer.
type Role string

const (
	RoleEmployee Role = "employee"
	RoleManager  Role = "manager"
	RoleAdmin    Role = "admin"
)

// Elevated reports whether the role may resolve approvals and act on assets
// it does not hold custody of.
func (r Role) Elevated() bool {
	return r == RoleManager || r == RoleAdmin
}

// ParseRole constructs a Role from external input. Unknown roles degrade to
// employee rather than failing: the identity layer owns role vocabulary and
// an unrecognized role must never grant elevation.
func ParseRole(s string) Role {
	switch Role(s) {
	case RoleManager:
		return RoleManager
	case RoleAdmin:
		return RoleAdmin
	default:
		return RoleEmployee
	}
}

// Provenance tags where a verification fact came from.
type Provenance string

const (
	ProvenanceMock       Provenance = "mock"
	ProvenanceSandbox    Provenance = "sandbox"
	ProvenanceProduction Provenance = "production"
)

var validProvenances = map[Provenance]bool{
	ProvenanceMock:       true,
	ProvenanceSandbox:    true,
	ProvenanceProduction: true,
}

// ParseProvenance constructs a Provenance from external input.
func ParseProvenance(s string) (Provenance, error) {
	p := Provenance(s)
	if !validProvenances[p] {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unsupported verification provenance")
	}
	return p, nil
}
