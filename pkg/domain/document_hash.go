package domain

import (
	"bytes"
	"encoding/hex"
	"strings"

	dErrors "veristamp/pkg/domain-errors"
)

// DocumentHash is the 32-byte Keccak-256 digest that identifies a logical
// document. The boundary representation is a 0x-prefixed 64-hex-character
// string; internally it is a fixed-size value so comparisons are cheap and a
// zero value unambiguously means "absent".
//
// Usage: construct via ParseDocumentHash at trust boundaries or FromDigest for
// locally computed digests; direct casting bypasses validation.
type DocumentHash [32]byte

// ZeroHash is the absent-hash value.
var ZeroHash DocumentHash

// ParseDocumentHash constructs a DocumentHash from external input.
//
// Errors: returns CodeInvalidInput when the value is not a 0x-prefixed
// 64-hex-character string; no other errors are expected.
func ParseDocumentHash(s string) (DocumentHash, error) {
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return DocumentHash{}, dErrors.New(dErrors.CodeInvalidInput, "document hash must be 0x-prefixed")
	}
	raw, err := hex.DecodeString(s[2:])
	if err != nil {
		return DocumentHash{}, dErrors.New(dErrors.CodeInvalidInput, "document hash must be hex-encoded")
	}
	if len(raw) != 32 {
		return DocumentHash{}, dErrors.New(dErrors.CodeInvalidInput, "document hash must be 32 bytes")
	}
	var h DocumentHash
	copy(h[:], raw)
	return h, nil
}

// FromDigest wraps a raw 32-byte digest. Panics on wrong length because that
// indicates a programming error, not bad input.
func FromDigest(digest []byte) DocumentHash {
	if len(digest) != 32 {
		panic("domain: digest must be 32 bytes")
	}
	var h DocumentHash
	copy(h[:], digest)
	return h
}

// String returns the canonical boundary form: 0x + 64 lowercase hex characters.
func (h DocumentHash) String() string {
	return "0x" + hex.EncodeToString(h[:])
}

// IsZero reports whether the hash is absent.
func (h DocumentHash) IsZero() bool {
	return h == ZeroHash
}

// Equal reports byte equality with another hash.
func (h DocumentHash) Equal(other DocumentHash) bool {
	return bytes.Equal(h[:], other[:])
}

// MarshalText implements encoding.TextMarshaler for JSON/DB boundaries.
func (h DocumentHash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (h *DocumentHash) UnmarshalText(text []byte) error {
	parsed, err := ParseDocumentHash(string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}
