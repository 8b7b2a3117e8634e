// Package watermark produces the third lineage variant: the processed file
// visually stamped and metadata-marked with its ledger anchor.
package watermark

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"veristamp/internal/document"
	"veristamp/internal/filestore"
	"veristamp/internal/format"
	"veristamp/internal/hashing"
	"veristamp/internal/ledger"
	"veristamp/internal/lineage"
	"veristamp/pkg/domain"
	dErrors "veristamp/pkg/domain-errors"
	"veristamp/pkg/requestcontext"
)

// FileStore is the storage surface the composer needs.
// *filestore.Storage satisfies it.
type FileStore interface {
	Read(path string) ([]byte, error)
	Write(bucket filestore.Bucket, filename string, data []byte) (string, error)
}

// Composer renders watermarked variants and records them in the lineage.
type Composer struct {
	files   FileStore
	tracker *lineage.Tracker
	logger  *slog.Logger
}

// Option configures a Composer.
type Option func(*Composer)

// WithLogger sets the composer's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Composer) { c.logger = logger }
}

// NewComposer builds a Composer.
func NewComposer(files FileStore, tracker *lineage.Tracker, opts ...Option) *Composer {
	c := &Composer{
		files:   files,
		tracker: tracker,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compose produces the watermarked file for a ledger-anchored document and
// returns its path. The output path is deterministic: the document hash with
// a _verified suffix, in the watermarked bucket.
//
// Failures are loud. A caller that cannot watermark must either abort or
// accept the document as ledger-verified-but-unwatermarked; Compose never
// silently skips the stamp. Containers without stamping support degrade to a
// byte-for-byte copy inside the format handler, which still satisfies the
// hash chain.
func (c *Composer) Compose(ctx context.Context, doc *document.LogicalDocument, receipt ledger.Receipt) (string, error) {
	if receipt.TxID == "" || receipt.BlockHeight <= 0 {
		return "", dErrors.New(dErrors.CodeInvalidInput, "watermark requires a ledger receipt with transaction id and block height")
	}
	if doc.ProcessedFilePath == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "watermark requires a processed file")
	}

	data, err := c.files.Read(doc.ProcessedFilePath)
	if err != nil {
		return "", fmt.Errorf("read processed file: %w", err)
	}

	handler := format.ForContent("", doc.ProcessedFilePath)
	stamped, err := handler.RenderWatermark(data, format.Stamp{
		Hash:        doc.DocumentHash,
		TxID:        receipt.TxID,
		BlockHeight: receipt.BlockHeight,
		VerifiedAt:  requestcontext.Now(ctx).UTC(),
	})
	if err != nil {
		return "", fmt.Errorf("render watermark: %w", err)
	}

	path, err := c.files.Write(filestore.BucketWatermarked, WatermarkedFilename(doc), stamped)
	if err != nil {
		return "", fmt.Errorf("store watermarked file: %w", err)
	}

	if err := c.tracker.RecordVariant(ctx, doc.DocumentHash, domain.VariantWatermarked, hashing.Hash(stamped), path); err != nil {
		return "", err
	}

	c.logger.InfoContext(ctx, "watermarked variant produced",
		"document_hash", doc.DocumentHash,
		"format", handler.Name(),
		"path", path,
		"tx_id", receipt.TxID)
	return path, nil
}

// WatermarkedFilename derives the deterministic output name for a document's
// watermarked variant, preserving the processed file's extension.
func WatermarkedFilename(doc *document.LogicalDocument) string {
	return doc.DocumentHash.String() + "_verified" + filepath.Ext(doc.ProcessedFilePath)
}
