// Package tenant derives partition identifiers from caller-supplied
// secrets. The derived identifier is the sole isolation boundary: every
// stored record and every query is scoped by it, and the raw secret is
// never persisted.
//
// Note: hashing a shared secret yields confidentiality-by-obscurity for
// the partition key, not authentication. Anyone who knows the secret can
// read and delete the tenant's data.
package tenant

import (
	"crypto/sha256"
	"encoding/hex"

	"corag/internal/domain/entities"
)

// DeriveID maps a tenant key to its partition identifier: the hex-encoded
// SHA-256 of the secret. One-way, deterministic, collision-resistant.
func DeriveID(tenantKey string) (string, error) {
	if tenantKey == "" {
		return "", entities.ErrEmptyTenantKey
	}
	sum := sha256.Sum256([]byte(tenantKey))
	return hex.EncodeToString(sum[:]), nil
}
