// Package document defines the LogicalDocument record and its stores. A
// logical document is the unit of issuance and verification: one primary
// content-derived hash, up to three lineage variants, and the ledger facts
// that anchor authenticity.
package document

import (
	"time"

	"veristamp/pkg/domain"
)

// Metadata is descriptive issuance data. It is set at creation and never used
// for trust decisions; the ledger record is the sole source of authenticity.
type Metadata struct {
	StudentID        string
	StudentName      string
	Program          string
	Institution      string
	DocumentType     domain.DocumentType
	DateIssued       time.Time
	OriginalFileName string
}

// LogicalDocument is the stored record for one issued document.
//
// DocumentHash is assigned once, from the canonical encoding of issuance
// metadata rather than from file bytes, so it is format-independent. The three
// variant hashes are byte-hashes of the corresponding stored files, populated
// lazily; a zero hash means "not yet computed", not "does not exist".
type LogicalDocument struct {
	DocumentHash domain.DocumentHash
	Metadata     Metadata

	ContentHash            domain.DocumentHash
	ProcessedContentHash   domain.DocumentHash
	WatermarkedContentHash domain.DocumentHash

	OriginalFilePath    string
	ProcessedFilePath   string
	WatermarkedFilePath string

	LedgerTxID        string
	LedgerBlockHeight int64

	// Verified caches "the ledger confirms DocumentHash". It is derived, not
	// authoritative; verification re-queries the ledger and the ledger wins
	// on conflict.
	Verified bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// VariantHash returns the stored file hash for a lineage variant.
func (d *LogicalDocument) VariantHash(v domain.Variant) domain.DocumentHash {
	switch v {
	case domain.VariantOriginal:
		return d.ContentHash
	case domain.VariantProcessed:
		return d.ProcessedContentHash
	case domain.VariantWatermarked:
		return d.WatermarkedContentHash
	}
	return domain.ZeroHash
}

// VariantPath returns the stored file path for a lineage variant.
func (d *LogicalDocument) VariantPath(v domain.Variant) string {
	switch v {
	case domain.VariantOriginal:
		return d.OriginalFilePath
	case domain.VariantProcessed:
		return d.ProcessedFilePath
	case domain.VariantWatermarked:
		return d.WatermarkedFilePath
	}
	return ""
}

// MatchesAnyHash reports whether h equals the primary hash or any variant hash.
func (d *LogicalDocument) MatchesAnyHash(h domain.DocumentHash) bool {
	if h.IsZero() {
		return false
	}
	return d.DocumentHash.Equal(h) ||
		d.ContentHash.Equal(h) ||
		d.ProcessedContentHash.Equal(h) ||
		d.WatermarkedContentHash.Equal(h)
}

// FieldUpdate is a partial update: nil pointers leave the column untouched.
// Stores apply it atomically at row level.
type FieldUpdate struct {
	ContentHash            *domain.DocumentHash
	ProcessedContentHash   *domain.DocumentHash
	WatermarkedContentHash *domain.DocumentHash

	OriginalFilePath    *string
	ProcessedFilePath   *string
	WatermarkedFilePath *string

	LedgerTxID        *string
	LedgerBlockHeight *int64
	Verified          *bool
}

// IsEmpty reports whether the update would change nothing.
func (u FieldUpdate) IsEmpty() bool {
	return u.ContentHash == nil &&
		u.ProcessedContentHash == nil &&
		u.WatermarkedContentHash == nil &&
		u.OriginalFilePath == nil &&
		u.ProcessedFilePath == nil &&
		u.WatermarkedFilePath == nil &&
		u.LedgerTxID == nil &&
		u.LedgerBlockHeight == nil &&
		u.Verified == nil
}

// apply mutates a record in place; shared by store implementations.
func (u FieldUpdate) apply(d *LogicalDocument) {
	if u.ContentHash != nil {
		d.ContentHash = *u.ContentHash
	}
	if u.ProcessedContentHash != nil {
		d.ProcessedContentHash = *u.ProcessedContentHash
	}
	if u.WatermarkedContentHash != nil {
		d.WatermarkedContentHash = *u.WatermarkedContentHash
	}
	if u.OriginalFilePath != nil {
		d.OriginalFilePath = *u.OriginalFilePath
	}
	if u.ProcessedFilePath != nil {
		d.ProcessedFilePath = *u.ProcessedFilePath
	}
	if u.WatermarkedFilePath != nil {
		d.WatermarkedFilePath = *u.WatermarkedFilePath
	}
	if u.LedgerTxID != nil {
		d.LedgerTxID = *u.LedgerTxID
	}
	if u.LedgerBlockHeight != nil {
		d.LedgerBlockHeight = *u.LedgerBlockHeight
	}
	if u.Verified != nil {
		d.Verified = *u.Verified
	}
}
