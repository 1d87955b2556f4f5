package custody

import (
	"fmt"
	"time"

	id "custos/pkg/domain"
	dErrors "custos/pkg/domain-errors"
)

// Request describes one attempted transition.
type Request struct {
	Action id.Action
	Actor  id.UserID
	Role   id.Role

	// Target is the receiving custodian for transfers.
	Target *id.UserID

	// Now is the caller-attached operation time.
	Now time.Time
}

// Transition applies one custody action to an asset and returns the updated
// copy. It is pure: the caller persists the result. Callers must only invoke
// it after the policy engine returned ALLOW.
//
// Failures are part of the error taxonomy, not policy denials:
//   - CodeInvalidTransition: the action makes no sense from the current state
//   - CodeForbidden: the actor is neither the custodian nor elevated
//   - CodeInvalidInput: a transfer without a target
func Transition(asset Asset, req Request) (Asset, error) {
	switch req.Action {
	case id.ActionCheckout:
		return checkout(asset, req)
	case id.ActionReturn:
		return returnAsset(asset, req)
	case id.ActionTransfer:
		return transfer(asset, req)
	case id.ActionInventoryClose:
		return inventoryClose(asset, req)
	default:
		return Asset{}, dErrors.New(dErrors.CodeInvalidInput, "unsupported custody action")
	}
}

func checkout(asset Asset, req Request) (Asset, error) {
	if asset.Status != StatusAvailable {
		return Asset{}, invalidTransition(asset, req.Action)
	}
	actor := req.Actor
	asset.Status = StatusCheckedOut
	asset.Custodian = &actor
	return asset, nil
}

func returnAsset(asset Asset, req Request) (Asset, error) {
	if asset.Status != StatusCheckedOut {
		return Asset{}, invalidTransition(asset, req.Action)
	}
	if err := requireCustodianOrElevated(asset, req); err != nil {
		return Asset{}, err
	}
	asset.Status = StatusAvailable
	asset.Custodian = nil
	return asset, nil
}

func transfer(asset Asset, req Request) (Asset, error) {
	if asset.Status != StatusCheckedOut {
		return Asset{}, invalidTransition(asset, req.Action)
	}
	if req.Target == nil || req.Target.IsNil() {
		return Asset{}, dErrors.New(dErrors.CodeInvalidInput, "transfer requires a target user")
	}
	if err := requireCustodianOrElevated(asset, req); err != nil {
		return Asset{}, err
	}
	target := *req.Target
	asset.Custodian = &target
	return asset, nil
}

func inventoryClose(asset Asset, req Request) (Asset, error) {
	if asset.Status != StatusCheckedOut {
		return Asset{}, invalidTransition(asset, req.Action)
	}
	// Confirmed sighting only; custody does not change.
	now := req.Now
	asset.LastSightedAt = &now
	return asset, nil
}

// SetStatus applies an administrative status change. Pure, like Transition.
// An asset in someone's hands cannot be re-statused out from under them, and
// retirement is terminal.
func SetStatus(asset Asset, status Status) (Asset, error) {
	if !status.IsValid() {
		return Asset{}, dErrors.New(dErrors.CodeInvalidInput, "unsupported asset status")
	}
	if asset.Status == StatusCheckedOut {
		return Asset{}, dErrors.New(dErrors.CodeInvalidTransition, "asset is checked out; require a return first")
	}
	if asset.Status == StatusRetired {
		return Asset{}, dErrors.New(dErrors.CodeInvalidTransition, "asset is retired")
	}
	if status == StatusCheckedOut {
		return Asset{}, dErrors.New(dErrors.CodeInvalidTransition, "custody changes go through checkout")
	}
	asset.Status = status
	return asset, nil
}

func requireCustodianOrElevated(asset Asset, req Request) error {
	if asset.Custodian != nil && *asset.Custodian == req.Actor {
		return nil
	}
	if req.Role.Elevated() {
		return nil
	}
	return dErrors.New(dErrors.CodeForbidden, "actor is not the current custodian")
}

func invalidTransition(asset Asset, action id.Action) error {
	return dErrors.New(dErrors.CodeInvalidTransition,
		fmt.Sprintf("%s is not valid for asset in state %s", action, asset.Status))
}
