// Package lineage maintains the three-variant hash lineage of a logical
// document and resolves uploaded files back to their record.
package lineage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"veristamp/internal/document"
	"veristamp/internal/hashing"
	"veristamp/pkg/domain"
	dErrors "veristamp/pkg/domain-errors"
	"veristamp/pkg/platform/sentinel"
)

// FileReader reads stored variant files during backfill.
// *filestore.Storage satisfies it.
type FileReader interface {
	Read(path string) ([]byte, error)
}

// Tracker records variant hashes as files are produced and answers "which
// document does this hash belong to".
type Tracker struct {
	store  document.Store
	files  FileReader
	logger *slog.Logger
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithLogger sets the logger used for backfill diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracker) { t.logger = logger }
}

// NewTracker builds a Tracker over a document store and file reader.
func NewTracker(store document.Store, files FileReader, opts ...Option) *Tracker {
	t := &Tracker{
		store:  store,
		files:  files,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// RecordVariant stores the file hash and path for one lineage variant.
// Re-recording the same variant overwrites it; recording is idempotent for
// identical values.
func (t *Tracker) RecordVariant(ctx context.Context, docHash domain.DocumentHash, variant domain.Variant, fileHash domain.DocumentHash, path string) error {
	update := document.FieldUpdate{}
	switch variant {
	case domain.VariantOriginal:
		update.ContentHash = &fileHash
		update.OriginalFilePath = &path
	case domain.VariantProcessed:
		update.ProcessedContentHash = &fileHash
		update.ProcessedFilePath = &path
	case domain.VariantWatermarked:
		update.WatermarkedContentHash = &fileHash
		update.WatermarkedFilePath = &path
	default:
		return dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("unknown variant %q", variant))
	}

	if err := t.store.UpdateFields(ctx, docHash, update); err != nil {
		return fmt.Errorf("record %s variant: %w", variant, err)
	}
	return nil
}

// RecordLedgerFacts caches the ledger anchor on the local record. The cache
// is derived data; the ledger remains authoritative.
func (t *Tracker) RecordLedgerFacts(ctx context.Context, docHash domain.DocumentHash, txID string, blockHeight int64, verified bool) error {
	update := document.FieldUpdate{
		LedgerTxID:        &txID,
		LedgerBlockHeight: &blockHeight,
		Verified:          &verified,
	}
	if err := t.store.UpdateFields(ctx, docHash, update); err != nil {
		return fmt.Errorf("record ledger facts: %w", err)
	}
	return nil
}

// BackfillMissingHashes computes any variant hash whose file path is known but
// whose hash was never stored. Each variant is independent: one unreadable
// file is logged and skipped, the rest are still filled in. Returns the
// refreshed record.
func (t *Tracker) BackfillMissingHashes(ctx context.Context, doc *document.LogicalDocument) (*document.LogicalDocument, error) {
	update := document.FieldUpdate{}

	for _, v := range []domain.Variant{domain.VariantOriginal, domain.VariantProcessed, domain.VariantWatermarked} {
		path := doc.VariantPath(v)
		if path == "" || !doc.VariantHash(v).IsZero() {
			continue
		}
		data, err := t.files.Read(path)
		if err != nil {
			t.logger.WarnContext(ctx, "variant file unreadable during backfill",
				"document_hash", doc.DocumentHash,
				"variant", string(v),
				"path", path,
				"error", err)
			continue
		}
		h := hashing.Hash(data)
		switch v {
		case domain.VariantOriginal:
			update.ContentHash = &h
		case domain.VariantProcessed:
			update.ProcessedContentHash = &h
		case domain.VariantWatermarked:
			update.WatermarkedContentHash = &h
		}
	}

	if update.IsEmpty() {
		return doc, nil
	}
	if err := t.store.UpdateFields(ctx, doc.DocumentHash, update); err != nil {
		return nil, fmt.Errorf("backfill hashes: %w", err)
	}
	refreshed, err := t.store.FindByDocumentHash(ctx, doc.DocumentHash)
	if err != nil {
		return nil, fmt.Errorf("reload after backfill: %w", err)
	}
	return refreshed, nil
}

// Resolve finds the document an uploaded file belongs to. Hash match is
// authoritative; when no hash field matches, the uploaded filename is
// normalized and used as a best-effort fallback so renamed or re-exported
// copies still land on a candidate record.
func (t *Tracker) Resolve(ctx context.Context, uploadedHash domain.DocumentHash, filename string) (*document.LogicalDocument, error) {
	doc, err := t.store.FindByAnyHash(ctx, uploadedHash)
	if err == nil {
		return doc, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, fmt.Errorf("hash lookup: %w", err)
	}

	fragment := NormalizeFilename(filename)
	if fragment == "" {
		return nil, sentinel.ErrNotFound
	}
	matches, err := t.store.SearchByFilename(ctx, fragment)
	if err != nil {
		return nil, fmt.Errorf("filename lookup: %w", err)
	}
	if len(matches) == 0 {
		return nil, sentinel.ErrNotFound
	}
	t.logger.InfoContext(ctx, "resolved upload by filename fallback",
		"fragment", fragment,
		"document_hash", matches[0].DocumentHash,
		"candidates", len(matches))
	return matches[0], nil
}

// NormalizeFilename strips the decorations the issuance pipeline adds to a
// filename so a downloaded or re-shared copy still matches its record:
// the extension, a "Verified_" prefix, a "_verified" suffix, and any trailing
// underscore-separated hex fragment (a hash tail from a save-as).
func NormalizeFilename(filename string) string {
	base := filepath.Base(filename)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = strings.TrimPrefix(base, "Verified_")
	base = strings.TrimSuffix(base, "_verified")

	if i := strings.LastIndex(base, "_"); i > 0 {
		if tail := base[i+1:]; isHexFragment(tail) {
			base = base[:i]
		}
	}
	return strings.TrimSpace(base)
}

func isHexFragment(s string) bool {
	s = strings.TrimPrefix(strings.ToLower(s), "0x")
	if len(s) < 6 {
		return false
	}
	for _, r := range s {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return false
		}
	}
	return true
}
