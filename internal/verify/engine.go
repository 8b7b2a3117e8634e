package verify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"veristamp/internal/audit"
	"veristamp/internal/document"
	"veristamp/internal/format"
	"veristamp/internal/hashing"
	"veristamp/internal/ledger"
	"veristamp/internal/lineage"
	"veristamp/pkg/domain"
	"veristamp/pkg/platform/sentinel"
	"veristamp/pkg/requestcontext"
)

// FileReader reads stored variant files when picking the tamper comparison
// target. *filestore.Storage satisfies it.
type FileReader interface {
	Read(path string) ([]byte, error)
}

// Engine runs the verification state machine. It is safe for concurrent use;
// each Verify call is an independent unit of work.
type Engine struct {
	tracker    *lineage.Tracker
	ledger     ledger.Gateway
	files      FileReader
	thresholds Thresholds
	publisher  audit.Publisher
	logger     *slog.Logger
	tracer     trace.Tracer
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithThresholds overrides the default tamper classification cutoffs.
func WithThresholds(th Thresholds) Option {
	return func(e *Engine) { e.thresholds = th }
}

// WithAuditPublisher sets the audit sink. Defaults to a no-op.
func WithAuditPublisher(p audit.Publisher) Option {
	return func(e *Engine) { e.publisher = p }
}

// NewEngine builds a verification engine.
func NewEngine(tracker *lineage.Tracker, gw ledger.Gateway, files FileReader, opts ...Option) *Engine {
	e := &Engine{
		tracker:    tracker,
		ledger:     gw,
		files:      files,
		thresholds: DefaultThresholds(),
		publisher:  audit.NopPublisher{},
		logger:     slog.Default(),
		tracer:     otel.Tracer("veristamp/verify"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Verify decides the status of an uploaded file. It never returns an error
// for a negative outcome; errors mean the engine itself could not complete
// (store failure, context cancellation). Every call leaves one best-effort
// audit event carrying the verdict.
func (e *Engine) Verify(ctx context.Context, uploaded []byte, mimeType, filename string) (*Result, error) {
	ctx, span := e.tracer.Start(ctx, "verify.Verify")
	defer span.End()

	start := time.Now()
	result, err := e.run(ctx, span, uploaded, mimeType, filename)
	VerificationDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		e.publish(ctx, audit.ActionVerificationFailed, domain.ZeroHash, "error", err.Error())
		return nil, err
	}
	e.publish(ctx, audit.ActionDocumentVerified, result.DocumentHash, string(result.Status), string(result.TamperType))
	return result, nil
}

func (e *Engine) run(ctx context.Context, span trace.Span, uploaded []byte, mimeType, filename string) (*Result, error) {
	uploadedHash := hashing.Hash(uploaded)
	span.SetAttributes(attribute.String("uploaded_hash", uploadedHash.String()))

	handler := format.ForContent(mimeType, filename)
	var extraction format.Extraction
	if handler.SupportsMetadata() {
		extraction = handler.Extract(uploaded)
	}

	doc, err := e.resolve(ctx, uploadedHash, extraction.Hash, filename)
	if errors.Is(err, sentinel.ErrNotFound) {
		Verifications.WithLabelValues(string(StatusNotFound)).Inc()
		return &Result{
			Status:        StatusNotFound,
			UploadedHash:  uploadedHash,
			HashAlgorithm: hashing.Algorithm,
			Message:       "no issued document matches this file",
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve document: %w", err)
	}
	span.SetAttributes(attribute.String("document_hash", doc.DocumentHash.String()))

	// Ledger confirmation and hash backfill are independent; gather both.
	docHash := doc.DocumentHash
	var record ledger.Record
	var ledgerErr error
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		record, ledgerErr = e.ledger.Lookup(gctx, docHash)
		return nil
	})
	g.Go(func() error {
		refreshed, err := e.tracker.BackfillMissingHashes(gctx, doc)
		if err != nil {
			return err
		}
		doc = refreshed
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if ledgerErr != nil || !record.Exists {
		if ledgerErr != nil {
			// Fail closed: absence of the ledger is absence of proof.
			e.logger.WarnContext(ctx, "ledger unavailable during verification",
				"document_hash", doc.DocumentHash, "error", ledgerErr)
		}
		Verifications.WithLabelValues(string(StatusNotVerified)).Inc()
		return &Result{
			Status:        StatusNotVerified,
			UploadedHash:  uploadedHash,
			HashAlgorithm: hashing.Algorithm,
			DocumentHash:  doc.DocumentHash,
			Message:       "document is known but has no ledger-backed proof of authenticity",
		}, nil
	}

	anchoredAt := record.Timestamp

	// The ledger wins over the cached flag; refresh it when stale.
	if !doc.Verified {
		doc.Verified = true
		if err := e.tracker.RecordLedgerFacts(ctx, doc.DocumentHash, record.TxID, record.BlockHeight, true); err != nil {
			e.logger.WarnContext(ctx, "failed to refresh cached ledger facts",
				"document_hash", doc.DocumentHash, "error", err)
		}
	}

	if variant, ok := matchVariant(doc, uploadedHash); ok {
		Verifications.WithLabelValues(string(StatusAuthentic)).Inc()
		return &Result{
			Status:          StatusAuthentic,
			Authentic:       true,
			UploadedHash:    uploadedHash,
			HashAlgorithm:   hashing.Algorithm,
			DocumentHash:    doc.DocumentHash,
			MatchedVariant:  variant,
			Confidence:      100,
			Message:         fmt.Sprintf("document matches the %s variant and is anchored on the ledger", variant),
			LedgerTimestamp: &anchoredAt,
		}, nil
	}

	c := e.buildComparison(ctx, doc, uploaded, extraction)
	verdict := detectTampering(c, e.thresholds)

	Verifications.WithLabelValues(string(StatusTampered)).Inc()
	TamperClassifications.WithLabelValues(string(verdict.Type)).Inc()
	e.logger.InfoContext(ctx, "tampering detected",
		"document_hash", doc.DocumentHash,
		"tamper_type", string(verdict.Type),
		"confidence", verdict.Confidence)

	return &Result{
		Status:          StatusTampered,
		Tampered:        true,
		UploadedHash:    uploadedHash,
		HashAlgorithm:   hashing.Algorithm,
		DocumentHash:    doc.DocumentHash,
		Confidence:      verdict.Confidence,
		TamperType:      verdict.Type,
		Message:         verdict.Message,
		ExpectedHash:    c.ExpectedHash,
		ExpectedSize:    int64(len(c.ExpectedBytes)),
		UploadedSize:    int64(len(uploaded)),
		LedgerTimestamp: &anchoredAt,
	}, nil
}

func (e *Engine) publish(ctx context.Context, action audit.Action, docHash domain.DocumentHash, outcome, detail string) {
	err := e.publisher.Publish(ctx, audit.Event{
		Timestamp:    requestcontext.Now(ctx).UTC(),
		Action:       action,
		DocumentHash: docHash,
		RequestID:    requestcontext.RequestID(ctx),
		Outcome:      outcome,
		Detail:       detail,
	})
	if err != nil {
		e.logger.WarnContext(ctx, "audit publish failed", "action", string(action), "error", err)
	}
}

// resolve finds the logical document: embedded hash first, then the uploaded
// byte hash, then the filename fallback.
func (e *Engine) resolve(ctx context.Context, uploadedHash, embeddedHash domain.DocumentHash, filename string) (*document.LogicalDocument, error) {
	if !embeddedHash.IsZero() {
		doc, err := e.tracker.Resolve(ctx, embeddedHash, "")
		if err == nil {
			return doc, nil
		}
		if !errors.Is(err, sentinel.ErrNotFound) {
			return nil, err
		}
	}
	return e.tracker.Resolve(ctx, uploadedHash, filename)
}

// matchVariant compares the uploaded hash against the lineage variants in
// trust order. The watermarked variant only counts on a verified record;
// callers run it only after ledger confirmation, so the flag is current.
func matchVariant(doc *document.LogicalDocument, uploadedHash domain.DocumentHash) (domain.Variant, bool) {
	if doc.Verified && !doc.WatermarkedContentHash.IsZero() && doc.WatermarkedContentHash.Equal(uploadedHash) {
		return domain.VariantWatermarked, true
	}
	if !doc.ProcessedContentHash.IsZero() && doc.ProcessedContentHash.Equal(uploadedHash) {
		return domain.VariantProcessed, true
	}
	if !doc.ContentHash.IsZero() && doc.ContentHash.Equal(uploadedHash) {
		return domain.VariantOriginal, true
	}
	return "", false
}

// buildComparison gathers the evidence detectTampering needs: the highest
// priority variant with both a hash and a readable file becomes the expected
// target. An unreadable file degrades the comparison, it never aborts it.
func (e *Engine) buildComparison(ctx context.Context, doc *document.LogicalDocument, uploaded []byte, extraction format.Extraction) comparison {
	c := comparison{
		Uploaded:            uploaded,
		UploadedIsPDF:       format.IsPDF(uploaded),
		UploadedWatermarked: extraction.IsWatermarked,
	}

	for _, v := range []domain.Variant{domain.VariantWatermarked, domain.VariantProcessed, domain.VariantOriginal} {
		hash := doc.VariantHash(v)
		path := doc.VariantPath(v)
		if hash.IsZero() || path == "" {
			continue
		}
		data, err := e.files.Read(path)
		if err != nil {
			e.logger.WarnContext(ctx, "expected variant file unreadable",
				"document_hash", doc.DocumentHash,
				"variant", string(v),
				"error", err)
			if c.ExpectedHash.IsZero() {
				c.ExpectedVariant = v
				c.ExpectedHash = hash
			}
			continue
		}
		c.ExpectedVariant = v
		c.ExpectedHash = hash
		c.ExpectedBytes = data
		return c
	}
	return c
}
