// Package domain holds the shared value types of the custody core: typed
// identifiers and the enumerations that cross package boundaries.
//
// IDs are distinct types over uuid.UUID so the compiler rejects cross-type
// assignment. Construct them via the Parse functions at trust boundaries;
// direct casting bypasses validation.
package domain

import (
	"strings"

	"github.com/google/uuid"

	dErrors "custos/pkg/domain-errors"
)

// UserID identifies an actor (employee, manager, or admin).
type UserID uuid.UUID

// SiteID identifies a physical site with a geofence.
type SiteID uuid.UUID

// ApprovalID identifies a step-up approval request.
type ApprovalID uuid.UUID

// AssetTag is the human-assigned asset identifier (e.g. "AST-00042").
// Invariant: non-empty, no surrounding whitespace, at most 64 characters.
type AssetTag string

func (u UserID) IsNil() bool     { return uuid.UUID(u) == uuid.Nil }
func (u UserID) String() string  { return uuid.UUID(u).String() }
func (s SiteID) IsNil() bool     { return uuid.UUID(s) == uuid.Nil }
func (s SiteID) String() string  { return uuid.UUID(s).String() }
func (a ApprovalID) IsNil() bool { return uuid.UUID(a) == uuid.Nil }
func (a ApprovalID) String() string {
	return uuid.UUID(a).String()
}

// NewApprovalID mints a fresh approval identifier.
func NewApprovalID() ApprovalID { return ApprovalID(uuid.New()) }

func parseUUID(s, what string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, what+" cannot be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, what+" must be a valid UUID")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, what+" cannot be the nil UUID")
	}
	return u, nil
}

// ParseUserID validates and constructs a UserID from external input.
func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID(s, "user id")
	if err != nil {
		return UserID{}, err
	}
	return UserID(u), nil
}

// ParseSiteID validates and constructs a SiteID from external input.
func ParseSiteID(s string) (SiteID, error) {
	u, err := parseUUID(s, "site id")
	if err != nil {
		return SiteID{}, err
	}
	return SiteID(u), nil
}

// ParseApprovalID validates and constructs an ApprovalID from external input.
func ParseApprovalID(s string) (ApprovalID, error) {
	u, err := parseUUID(s, "approval id")
	if err != nil {
		return ApprovalID{}, err
	}
	return ApprovalID(u), nil
}

const maxAssetTagLen = 64

// ParseAssetTag validates and constructs an AssetTag from external input.
func ParseAssetTag(s string) (AssetTag, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "asset tag cannot be empty")
	}
	if strings.TrimSpace(s) != s {
		return "", dErrors.New(dErrors.CodeInvalidInput, "asset tag cannot have surrounding whitespace")
	}
	if len(s) > maxAssetTagLen {
		return "", dErrors.New(dErrors.CodeInvalidInput, "asset tag too long")
	}
	return AssetTag(s), nil
}
