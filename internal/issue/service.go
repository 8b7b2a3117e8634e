// Package issue runs the issuance pipeline: canonical hash, original and
// processed variants, QR code, ledger anchor, watermark.
package issue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/skip2/go-qrcode"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"veristamp/internal/audit"
	"veristamp/internal/canonical"
	"veristamp/internal/document"
	"veristamp/internal/filestore"
	"veristamp/internal/format"
	"veristamp/internal/hashing"
	"veristamp/internal/ledger"
	"veristamp/internal/lineage"
	"veristamp/internal/platform/metrics"
	"veristamp/internal/watermark"
	"veristamp/pkg/domain"
	dErrors "veristamp/pkg/domain-errors"
	"veristamp/pkg/platform/sentinel"
	"veristamp/pkg/requestcontext"
)

// CourseInput is one course line on a transcript.
type CourseInput struct {
	Code  string  `json:"code"`
	Name  string  `json:"name"`
	Units float64 `json:"units"`
	Grade string  `json:"grade"`
}

// Request carries everything needed to issue a document.
type Request struct {
	StudentID    string        `json:"studentId"`
	StudentName  string        `json:"studentName"`
	Program      string        `json:"program"`
	Institution  string        `json:"institution"`
	DocumentType string        `json:"documentType"`
	DateIssued   time.Time     `json:"dateIssued"`
	Courses      []CourseInput `json:"courses,omitempty"`

	FileName string `json:"-"`
	MimeType string `json:"-"`
	File     []byte `json:"-"`
}

// IssuedDocument is the issuance outcome. Verified=false with a nil error is
// a valid terminal state: the document exists and is processed but has no
// ledger anchor yet (retryable via Register).
type IssuedDocument struct {
	DocumentHash        domain.DocumentHash `json:"documentHash"`
	HashAlgorithm       string              `json:"hashAlgorithm"`
	Verified            bool                `json:"verified"`
	LedgerTxID          string              `json:"ledgerTxId,omitempty"`
	LedgerBlockHeight   int64               `json:"ledgerBlockHeight,omitempty"`
	ProcessedFilePath   string              `json:"processedFilePath"`
	WatermarkedFilePath string              `json:"watermarkedFilePath,omitempty"`
	QRCodePath          string              `json:"qrCodePath"`
	VerificationURL     string              `json:"verificationUrl"`
}

// Service orchestrates issuance. Safe for concurrent use.
type Service struct {
	store     document.Store
	files     *filestore.Storage
	tracker   *lineage.Tracker
	ledger    ledger.Gateway
	composer  *watermark.Composer
	publisher audit.Publisher
	baseURL   string
	logger    *slog.Logger
	tracer    trace.Tracer
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithAuditPublisher sets the audit sink. Defaults to a no-op.
func WithAuditPublisher(p audit.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// NewService builds the issuance service.
func NewService(store document.Store, files *filestore.Storage, tracker *lineage.Tracker, gw ledger.Gateway, composer *watermark.Composer, baseURL string, opts ...Option) *Service {
	s := &Service{
		store:     store,
		files:     files,
		tracker:   tracker,
		ledger:    gw,
		composer:  composer,
		publisher: audit.NopPublisher{},
		baseURL:   baseURL,
		logger:    slog.Default(),
		tracer:    otel.Tracer("veristamp/issue"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Issue runs the full pipeline. Ledger or watermark failures degrade the
// result instead of failing it: the document stays issued and the anchor can
// be retried through Register.
func (s *Service) Issue(ctx context.Context, req Request) (*IssuedDocument, error) {
	ctx, span := s.tracer.Start(ctx, "issue.Issue")
	defer span.End()

	docType, err := domain.ParseDocumentType(req.DocumentType)
	if err != nil {
		return nil, err
	}
	if req.StudentID == "" || req.StudentName == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "studentId and studentName are required")
	}
	if len(req.File) == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "an original document file is required")
	}

	courses := make([]canonical.Course, 0, len(req.Courses))
	for _, c := range req.Courses {
		courses = append(courses, canonical.Course{Code: c.Code, Name: c.Name, Units: c.Units, Grade: c.Grade})
	}
	encoded := canonical.Encode(canonical.Data{
		DocumentType: docType,
		StudentID:    req.StudentID,
		StudentName:  req.StudentName,
		Program:      req.Program,
		Institution:  req.Institution,
		DateIssued:   req.DateIssued,
		Courses:      courses,
	})
	docHash := hashing.HashString(encoded)
	span.SetAttributes(attribute.String("document_hash", docHash.String()))

	doc := &document.LogicalDocument{
		DocumentHash: docHash,
		Metadata: document.Metadata{
			StudentID:        req.StudentID,
			StudentName:      req.StudentName,
			Program:          req.Program,
			Institution:      req.Institution,
			DocumentType:     docType,
			DateIssued:       req.DateIssued,
			OriginalFileName: req.FileName,
		},
	}
	if err := s.store.Insert(ctx, doc); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.Wrap(err, dErrors.CodeConflict, "a document with identical content was already issued")
		}
		return nil, fmt.Errorf("insert document: %w", err)
	}

	ext := filepath.Ext(req.FileName)
	originalPath, err := s.files.Write(filestore.BucketOriginal, docHash.String()+ext, req.File)
	if err != nil {
		return nil, fmt.Errorf("store original file: %w", err)
	}
	if err := s.tracker.RecordVariant(ctx, docHash, domain.VariantOriginal, hashing.Hash(req.File), originalPath); err != nil {
		return nil, err
	}

	handler := format.ForContent(req.MimeType, req.FileName)
	processed, err := handler.Embed(req.File, docHash)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "file does not parse as its declared format")
	}
	processedPath, err := s.files.Write(filestore.BucketProcessed, docHash.String()+ext, processed)
	if err != nil {
		return nil, fmt.Errorf("store processed file: %w", err)
	}
	if err := s.tracker.RecordVariant(ctx, docHash, domain.VariantProcessed, hashing.Hash(processed), processedPath); err != nil {
		return nil, err
	}
	doc.ProcessedFilePath = processedPath

	verificationURL := s.verificationURL(docHash)
	qrPNG, err := qrcode.Encode(verificationURL, qrcode.Medium, 256)
	if err != nil {
		return nil, fmt.Errorf("render qr code: %w", err)
	}
	qrPath, err := s.files.Write(filestore.BucketProcessed, docHash.String()+"_qr.png", qrPNG)
	if err != nil {
		return nil, fmt.Errorf("store qr code: %w", err)
	}

	result := &IssuedDocument{
		DocumentHash:      docHash,
		HashAlgorithm:     hashing.Algorithm,
		ProcessedFilePath: processedPath,
		QRCodePath:        qrPath,
		VerificationURL:   verificationURL,
	}

	receipt, err := s.anchor(ctx, docHash)
	if err != nil {
		s.logger.ErrorContext(ctx, "ledger registration failed, document issued unverified",
			"document_hash", docHash, "error", err)
		s.publish(ctx, audit.ActionLedgerRegistered, docHash, "failed", err.Error())
		metrics.DocumentsIssued.Inc()
		s.publish(ctx, audit.ActionDocumentIssued, docHash, "unverified", "")
		return result, nil
	}
	result.Verified = true
	result.LedgerTxID = receipt.TxID
	result.LedgerBlockHeight = receipt.BlockHeight
	s.publish(ctx, audit.ActionLedgerRegistered, docHash, "anchored", receipt.TxID)

	if wmPath, err := s.composer.Compose(ctx, doc, receipt); err != nil {
		// Ledger-verified but unwatermarked is degraded, not failed.
		s.logger.WarnContext(ctx, "watermark composition failed",
			"document_hash", docHash, "error", err)
	} else {
		result.WatermarkedFilePath = wmPath
		s.publish(ctx, audit.ActionWatermarkComposed, docHash, "composed", "")
	}

	metrics.DocumentsIssued.Inc()
	s.publish(ctx, audit.ActionDocumentIssued, docHash, "verified", "")
	return result, nil
}

// Register anchors an already-issued document on the ledger, then produces
// the watermarked variant. Idempotent: an anchored document returns its
// existing receipt, and an existing watermark is not re-rendered.
func (s *Service) Register(ctx context.Context, docHash domain.DocumentHash) (*IssuedDocument, error) {
	doc, err := s.store.FindByDocumentHash(ctx, docHash)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "no issued document with this hash")
		}
		return nil, fmt.Errorf("load document: %w", err)
	}

	receipt, err := s.anchor(ctx, docHash)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "ledger registration failed")
	}
	s.publish(ctx, audit.ActionLedgerRegistered, docHash, "anchored", receipt.TxID)

	result := &IssuedDocument{
		DocumentHash:      docHash,
		HashAlgorithm:     hashing.Algorithm,
		Verified:          true,
		LedgerTxID:        receipt.TxID,
		LedgerBlockHeight: receipt.BlockHeight,
		ProcessedFilePath: doc.ProcessedFilePath,
		VerificationURL:   s.verificationURL(docHash),
	}

	if doc.WatermarkedFilePath != "" {
		result.WatermarkedFilePath = doc.WatermarkedFilePath
		return result, nil
	}
	wmPath, err := s.composer.Compose(ctx, doc, receipt)
	if err != nil {
		s.logger.WarnContext(ctx, "watermark composition failed",
			"document_hash", docHash, "error", err)
		return result, nil
	}
	result.WatermarkedFilePath = wmPath
	s.publish(ctx, audit.ActionWatermarkComposed, docHash, "composed", "")
	return result, nil
}

// Get returns the stored record for a document hash.
func (s *Service) Get(ctx context.Context, docHash domain.DocumentHash) (*document.LogicalDocument, error) {
	doc, err := s.store.FindByDocumentHash(ctx, docHash)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "no issued document with this hash")
		}
		return nil, fmt.Errorf("load document: %w", err)
	}
	return doc, nil
}

// anchor registers docHash on the ledger, lookup-first so re-registration of
// an existing hash is treated as success rather than re-submitted.
func (s *Service) anchor(ctx context.Context, docHash domain.DocumentHash) (ledger.Receipt, error) {
	if rec, err := s.ledger.Lookup(ctx, docHash); err == nil && rec.Exists {
		receipt := ledger.Receipt{TxID: rec.TxID, BlockHeight: rec.BlockHeight}
		if err := s.tracker.RecordLedgerFacts(ctx, docHash, receipt.TxID, receipt.BlockHeight, true); err != nil {
			return ledger.Receipt{}, err
		}
		return receipt, nil
	}

	receipt, err := s.ledger.Register(ctx, docHash)
	if err != nil {
		return ledger.Receipt{}, err
	}
	if err := s.tracker.RecordLedgerFacts(ctx, docHash, receipt.TxID, receipt.BlockHeight, true); err != nil {
		return ledger.Receipt{}, err
	}
	return receipt, nil
}

func (s *Service) verificationURL(docHash domain.DocumentHash) string {
	return s.baseURL + "/verify/" + docHash.String()
}

func (s *Service) publish(ctx context.Context, action audit.Action, docHash domain.DocumentHash, outcome, detail string) {
	err := s.publisher.Publish(ctx, audit.Event{
		Timestamp:    requestcontext.Now(ctx).UTC(),
		Action:       action,
		DocumentHash: docHash,
		IssuerID:     requestcontext.IssuerID(ctx),
		RequestID:    requestcontext.RequestID(ctx),
		Outcome:      outcome,
		Detail:       detail,
	})
	if err != nil {
		s.logger.WarnContext(ctx, "audit publish failed", "action", string(action), "error", err)
	}
}
