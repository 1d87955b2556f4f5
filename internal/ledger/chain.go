package ledger

import (
	"time"

	"custos/internal/policy"
	"custos/internal/verification"
	id "custos/pkg/domain"
	"custos/pkg/platform/canonhash"
)

// GenesisHash seeds the chain: the first record's prev_hash. It is a fixed
// constant so independently bootstrapped ledgers produce comparable chains.
var GenesisHash = canonhash.SumString("custos-genesis")

// chainPayload is the canonical encoding a record is hashed over. Field
// order is part of the wire contract; EventHash itself is excluded. Adding
// a field here invalidates every existing chain, so extend only with a
// migration plan.
type chainPayload struct {
	Sequence     uint64               `json:"sequence"`
	EventType    EventType            `json:"event_type"`
	Timestamp    string               `json:"timestamp"`
	Actor        string               `json:"actor_id"`
	TargetUser   string               `json:"target_user"`
	AssetTag     id.AssetTag          `json:"asset_tag"`
	Site         string               `json:"site_id"`
	Action       id.Action            `json:"action"`
	Outcome      policy.Outcome       `json:"outcome"`
	Reason       policy.Reason        `json:"reason"`
	Verification verification.Summary `json:"verification"`
	PrevHash     string               `json:"prev_hash"`
}

// ComputeHash derives the record's event hash from its canonical encoding.
// It reads every field except EventHash, so recomputing over a stored
// record detects any single-field tamper.
func ComputeHash(r Record) (string, error) {
	payload := chainPayload{
		Sequence:     r.Sequence,
		EventType:    r.EventType,
		Timestamp:    r.Timestamp.UTC().Format(time.RFC3339Nano),
		Actor:        r.Actor.String(),
		AssetTag:     r.AssetTag,
		Site:         r.Site.String(),
		Action:       r.Action,
		Outcome:      r.Outcome,
		Reason:       r.Reason,
		Verification: r.Verification,
		PrevHash:     r.PrevHash,
	}
	if r.TargetUser != nil {
		payload.TargetUser = r.TargetUser.String()
	}
	sum, _, err := canonhash.SumObject(payload)
	return sum, err
}

// VerifyReport is the outcome of a full chain verification pass.
type VerifyReport struct {
	Valid   bool   `json:"valid"`
	Records uint64 `json:"records"`

	// FirstInvalidSequence is set when Valid is false: the earliest record
	// whose linkage, sequence, or hash fails to re-derive.
	FirstInvalidSequence *uint64 `json:"first_invalid_sequence,omitempty"`
}

// VerifyChain re-derives every hash from record contents alone and checks
// linkage and sequence contiguity. It trusts nothing stored: a record whose
// stored EventHash differs from the recomputed one is invalid even if its
// successor links to the stored value.
func VerifyChain(records []Record) VerifyReport {
	report := VerifyReport{Valid: true, Records: uint64(len(records))}
	prev := GenesisHash
	for i, rec := range records {
		// Failures report the expected position in the chain, not the
		// stored sequence: a record whose sequence field was tampered
		// with would otherwise report the forged number.
		want := uint64(i + 1)
		if rec.Sequence != want || rec.PrevHash != prev {
			return invalidAt(report, want)
		}
		computed, err := ComputeHash(rec)
		if err != nil || computed != rec.EventHash {
			return invalidAt(report, want)
		}
		prev = rec.EventHash
	}
	return report
}

func invalidAt(report VerifyReport, seq uint64) VerifyReport {
	report.Valid = false
	report.FirstInvalidSequence = &seq
	return report
}
