package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainDependencyRow = "cascade/dependency/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte (0x00) separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

func refObject(r EntityRef) map[string]any {
	return map[string]any{
		"kind":    string(r.Kind),
		"id":      r.ID,
		"channel": r.ChannelID,
	}
}

// DependencyRowID computes the content-addressed id of a dynamic dependency
// row. Recording the same read twice for the same root yields the same id,
// which makes persisting idempotent.
func DependencyRowID(row DependencyRow) (string, error) {
	obj := map[string]any{
		"root":               refObject(row.Root),
		"source":             refObject(row.Source),
		"source_property":    row.SourceProperty,
		"dependent":          refObject(row.Dependent),
		"dependent_property": row.DependentProperty,
		"mask":               int64(row.Mask),
		"channel":            row.ChannelID,
	}

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("DependencyRowID: failed to marshal: %w", err)
	}

	return hashWithDomain(DomainDependencyRow, canonical), nil
}

// MustDependencyRowID is like DependencyRowID but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustDependencyRowID(row DependencyRow) string {
	id, err := DependencyRowID(row)
	if err != nil {
		panic(err)
	}
	return id
}
