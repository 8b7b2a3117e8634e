// Package hashing wraps the one hash function used everywhere in the system.
//
// Keccak-256 (the Ethereum-standard variant, not NIST SHA3-256) is applied to
// canonical content, raw file bytes, and file-variant bytes alike. A single
// algorithm lets the ledger gateway, lineage tracker, and verification engine
// compare digests without knowing which producer created them.
package hashing

import (
	"golang.org/x/crypto/sha3"

	"veristamp/pkg/domain"
)

// Algorithm is the name reported in every verification result.
const Algorithm = "keccak256"

// Hash computes the Keccak-256 digest of raw bytes.
func Hash(data []byte) domain.DocumentHash {
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	return domain.FromDigest(h.Sum(nil))
}

// HashString computes the Keccak-256 digest of a UTF-8 string.
func HashString(s string) domain.DocumentHash {
	return Hash([]byte(s))
}
