package domain

import (
	"crypto/sha256"
	"encoding/hex"
)

// ContentHash computes the deduplication key for materialized dataset
// bytes: lowercase hex SHA-256 over the canonical serialized table, never
// over metadata.
func ContentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
