// Package canonhash computes reproducible SHA-256 digests over canonical JSON
// encodings. The ledger's tamper-evidence property depends on every
// implementation producing byte-identical encodings for the same record, so
// callers must hash structs with fixed field order, never maps.
package canonhash

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// SumObject marshals v to canonical JSON and returns the hex SHA-256 of the
// bytes along with the encoding itself.
func SumObject(v any) (string, []byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", nil, fmt.Errorf("canonical encode: %w", err)
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), b, nil
}

// SumString returns the hex SHA-256 of a string.
func SumString(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// SumBytes returns the hex SHA-256 of raw bytes.
func SumBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
