// Package verify decides, from an uploaded file alone, whether it is an
// authentic issued document, an unanchored one, a tampered one, or unknown.
package verify

import (
	"time"

	"veristamp/pkg/domain"
)

// Status is the terminal outcome of one verification call.
type Status string

const (
	// StatusAuthentic: the upload byte-matches a lineage variant of a
	// ledger-confirmed document.
	StatusAuthentic Status = "AUTHENTIC"

	// StatusNotFound: no document resolves from any hash or the filename
	// heuristic. A definitive negative.
	StatusNotFound Status = "NOT_FOUND"

	// StatusNotVerified: a document resolves locally but the ledger does not
	// confirm it (never registered, or the ledger could not be consulted).
	// Distinct from both NOT_FOUND and TAMPERED.
	StatusNotVerified Status = "NOT_VERIFIED"

	// StatusTampered: the document is ledger-confirmed but the upload matches
	// no variant. Always carries a classification and confidence.
	StatusTampered Status = "TAMPERED"
)

// TamperType classifies how an upload diverges from its expected variant.
type TamperType string

const (
	TamperPageModification    TamperType = "PAGE_MODIFICATION"
	TamperWatermarkMismatch   TamperType = "WATERMARK_MISMATCH"
	TamperWatermarkRemoval    TamperType = "WATERMARK_REMOVAL"
	TamperMinorModification   TamperType = "MINOR_MODIFICATION"
	TamperContentModification TamperType = "CONTENT_MODIFICATION"
	TamperStructureCorruption TamperType = "STRUCTURE_CORRUPTION"
	TamperContentReplacement  TamperType = "CONTENT_REPLACEMENT"
	TamperMajorModification   TamperType = "MAJOR_MODIFICATION"
)

// Result is the full outcome of a verification. Every result carries the
// uploaded hash and the algorithm name; the remaining fields depend on how
// far the state machine progressed.
type Result struct {
	Status    Status `json:"status"`
	Authentic bool   `json:"authentic"`
	Tampered  bool   `json:"tampered"`

	UploadedHash  domain.DocumentHash `json:"uploadedHash"`
	HashAlgorithm string              `json:"hashAlgorithm"`

	// DocumentHash identifies the resolved document; zero when NOT_FOUND.
	DocumentHash domain.DocumentHash `json:"documentHash,omitempty"`

	// MatchedVariant names the lineage variant an authentic upload matched.
	MatchedVariant domain.Variant `json:"documentType,omitempty"`

	// Confidence is 100 for authentic matches; for tampered results it is the
	// classification rule's heuristic certainty.
	Confidence int        `json:"confidence,omitempty"`
	TamperType TamperType `json:"tamperType,omitempty"`
	Message    string     `json:"message"`

	// Expected-vs-actual evidence for audit, set on tampered results.
	ExpectedHash domain.DocumentHash `json:"expectedHash,omitempty"`
	ExpectedSize int64               `json:"expectedSize,omitempty"`
	UploadedSize int64               `json:"uploadedSize,omitempty"`

	// LedgerTimestamp is when the document hash was anchored, when known.
	LedgerTimestamp *time.Time `json:"ledgerTimestamp,omitempty"`
}
