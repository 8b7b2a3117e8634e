// Package format implements per-container embedding and extraction of
// verification metadata, plus watermark rendering. The verification engine and
// watermark composer stay format-agnostic: they pick a Handler via ForContent
// and speak only through the Handler interface.
package format

import (
	"path/filepath"
	"strings"
	"time"

	"veristamp/pkg/domain"
)

// Extraction is what a handler can recover from a file's metadata. Hash is
// zero when no verification hash was embedded or it could not be parsed;
// IsWatermarked is independent of hash recovery.
type Extraction struct {
	Hash          domain.DocumentHash
	IsWatermarked bool
}

// Stamp carries the ledger facts rendered into a watermarked file.
type Stamp struct {
	Hash        domain.DocumentHash
	TxID        string
	BlockHeight int64
	VerifiedAt  time.Time
}

// Handler is the per-format capability: metadata embedding, metadata
// extraction, and watermark rendering.
//
// Contract: Extract(Embed(b, h)).Hash == h, and IsWatermarked stays false
// until RenderWatermark has been applied. Extraction relies solely on
// metadata; visual stamping is cosmetic and never load-bearing.
type Handler interface {
	// Name identifies the handler in results and logs.
	Name() string
	// SupportsMetadata reports whether Embed/Extract are meaningful for this
	// format. Passthrough returns false.
	SupportsMetadata() bool
	// Embed writes the verification hash into the file's metadata.
	Embed(file []byte, hash domain.DocumentHash) ([]byte, error)
	// Extract reads verification metadata back out.
	Extract(file []byte) Extraction
	// RenderWatermark produces the visibly stamped, watermark-marked form.
	RenderWatermark(file []byte, stamp Stamp) ([]byte, error)
}

// ForContent selects the handler for an upload. Pure function of MIME type
// and filename extension; unknown formats get the passthrough handler.
func ForContent(mimeType, filename string) Handler {
	mime := strings.ToLower(strings.TrimSpace(mimeType))
	ext := strings.ToLower(filepath.Ext(filename))

	switch {
	case mime == "application/pdf" || ext == ".pdf":
		return PDFHandler{}
	case mime == "image/png" || ext == ".png":
		return ImageHandler{}
	default:
		return PassthroughHandler{}
	}
}
