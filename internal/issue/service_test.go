package issue

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"veristamp/internal/audit"
	"veristamp/internal/document"
	"veristamp/internal/filestore"
	"veristamp/internal/format"
	"veristamp/internal/hashing"
	"veristamp/internal/ledger"
	"veristamp/internal/lineage"
	"veristamp/internal/watermark"
	"veristamp/pkg/domain"
	dErrors "veristamp/pkg/domain-errors"
)

type failingLedger struct{}

func (failingLedger) Register(context.Context, domain.DocumentHash) (ledger.Receipt, error) {
	return ledger.Receipt{}, errors.New("ledger down")
}

func (failingLedger) Lookup(context.Context, domain.DocumentHash) (ledger.Record, error) {
	return ledger.Record{}, errors.New("ledger down")
}

type fixture struct {
	store *document.InMemoryStore
	files *filestore.Storage
	sink  *audit.MemorySink
	svc   *Service
}

func newFixture(t *testing.T, gw ledger.Gateway) *fixture {
	t.Helper()
	files, err := filestore.New(t.TempDir())
	require.NoError(t, err)
	store := document.NewInMemoryStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tracker := lineage.NewTracker(store, files, lineage.WithLogger(logger))
	composer := watermark.NewComposer(files, tracker, watermark.WithLogger(logger))
	sink := audit.NewMemorySink()
	svc := NewService(store, files, tracker, gw, composer, "http://localhost:8080",
		WithLogger(logger), WithAuditPublisher(sink))
	return &fixture{store: store, files: files, sink: sink, svc: svc}
}

func samplePDF() []byte {
	var b bytes.Buffer
	b.WriteString("%PDF-1.4\n")
	b.WriteString("1 0 obj <</Type /Page>> endobj\n")
	b.WriteString("trailer\n%%EOF\n")
	return b.Bytes()
}

func sampleRequest() Request {
	return Request{
		StudentID:    "2021-00001",
		StudentName:  "Juan Dela Cruz",
		Program:      "BS Computer Science",
		Institution:  "State University",
		DocumentType: "TOR",
		DateIssued:   time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC),
		Courses: []CourseInput{
			{Code: "CS101", Name: "Intro to Computing", Units: 3, Grade: "1.25"},
		},
		FileName: "tor_juan.pdf",
		MimeType: "application/pdf",
		File:     samplePDF(),
	}
}

func TestIssueFullPipeline(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, ledger.NewInMemory())

	result, err := f.svc.Issue(ctx, sampleRequest())
	require.NoError(t, err)

	assert.True(t, result.Verified)
	assert.NotEmpty(t, result.LedgerTxID)
	assert.Positive(t, result.LedgerBlockHeight)
	assert.Equal(t, hashing.Algorithm, result.HashAlgorithm)
	assert.Equal(t, "http://localhost:8080/verify/"+result.DocumentHash.String(), result.VerificationURL)

	stored, err := f.store.FindByDocumentHash(ctx, result.DocumentHash)
	require.NoError(t, err)
	assert.True(t, stored.Verified)
	assert.False(t, stored.ContentHash.IsZero())
	assert.False(t, stored.ProcessedContentHash.IsZero())
	assert.False(t, stored.WatermarkedContentHash.IsZero())

	processed, err := f.files.Read(result.ProcessedFilePath)
	require.NoError(t, err)
	ex := format.PDFHandler{}.Extract(processed)
	assert.Equal(t, result.DocumentHash, ex.Hash, "processed file carries the document hash")
	assert.False(t, ex.IsWatermarked)

	stamped, err := f.files.Read(result.WatermarkedFilePath)
	require.NoError(t, err)
	assert.True(t, format.PDFHandler{}.Extract(stamped).IsWatermarked)

	qr, err := f.files.Read(result.QRCodePath)
	require.NoError(t, err)
	assert.True(t, format.IsPNG(qr))

	actions := make([]audit.Action, 0)
	for _, e := range f.sink.Events() {
		actions = append(actions, e.Action)
	}
	assert.Contains(t, actions, audit.ActionDocumentIssued)
	assert.Contains(t, actions, audit.ActionLedgerRegistered)
	assert.Contains(t, actions, audit.ActionWatermarkComposed)
}

func TestIssueHashIsContentDerived(t *testing.T) {
	ctx := context.Background()

	first, err := newFixture(t, ledger.NewInMemory()).svc.Issue(ctx, sampleRequest())
	require.NoError(t, err)

	req := sampleRequest()
	req.FileName = "renamed_upload.pdf"
	second, err := newFixture(t, ledger.NewInMemory()).svc.Issue(ctx, req)
	require.NoError(t, err)

	assert.Equal(t, first.DocumentHash, second.DocumentHash, "hash derives from canonical metadata, not the file name")
}

func TestIssueDuplicateConflicts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, ledger.NewInMemory())

	_, err := f.svc.Issue(ctx, sampleRequest())
	require.NoError(t, err)

	_, err = f.svc.Issue(ctx, sampleRequest())
	require.Error(t, err)
	assert.Equal(t, dErrors.CodeConflict, dErrors.CodeOf(err))
}

func TestIssueValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, ledger.NewInMemory())

	t.Run("unknown document type", func(t *testing.T) {
		req := sampleRequest()
		req.DocumentType = "REPORT_CARD"
		_, err := f.svc.Issue(ctx, req)
		assert.Equal(t, dErrors.CodeInvalidInput, dErrors.CodeOf(err))
	})

	t.Run("missing file", func(t *testing.T) {
		req := sampleRequest()
		req.File = nil
		_, err := f.svc.Issue(ctx, req)
		assert.Equal(t, dErrors.CodeInvalidInput, dErrors.CodeOf(err))
	})

	t.Run("missing student", func(t *testing.T) {
		req := sampleRequest()
		req.StudentID = ""
		_, err := f.svc.Issue(ctx, req)
		assert.Equal(t, dErrors.CodeInvalidInput, dErrors.CodeOf(err))
	})
}

func TestIssueDegradesWhenLedgerDown(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, failingLedger{})

	result, err := f.svc.Issue(ctx, sampleRequest())
	require.NoError(t, err, "ledger outage must not fail issuance")

	assert.False(t, result.Verified)
	assert.Empty(t, result.LedgerTxID)
	assert.Empty(t, result.WatermarkedFilePath, "no watermark without a ledger receipt")

	stored, err := f.store.FindByDocumentHash(ctx, result.DocumentHash)
	require.NoError(t, err)
	assert.False(t, stored.Verified)
	assert.False(t, stored.ProcessedContentHash.IsZero(), "processed-unverified is a valid terminal state")
}

func TestRegisterRecoversUnverifiedDocument(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, failingLedger{})

	issued, err := f.svc.Issue(ctx, sampleRequest())
	require.NoError(t, err)
	require.False(t, issued.Verified)

	// Same stores, healthy ledger: the retry path after an outage.
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tracker := lineage.NewTracker(f.store, f.files, lineage.WithLogger(logger))
	composer := watermark.NewComposer(f.files, tracker, watermark.WithLogger(logger))
	recovered := NewService(f.store, f.files, tracker, ledger.NewInMemory(), composer, "http://localhost:8080",
		WithLogger(logger))

	result, err := recovered.Register(ctx, issued.DocumentHash)
	require.NoError(t, err)
	assert.True(t, result.Verified)
	assert.NotEmpty(t, result.LedgerTxID)
	assert.NotEmpty(t, result.WatermarkedFilePath)

	t.Run("re-registration is success-equivalent", func(t *testing.T) {
		again, err := recovered.Register(ctx, issued.DocumentHash)
		require.NoError(t, err)
		assert.Equal(t, result.LedgerTxID, again.LedgerTxID)
		assert.Equal(t, result.WatermarkedFilePath, again.WatermarkedFilePath)
	})
}

func TestRegisterUnknownDocument(t *testing.T) {
	f := newFixture(t, ledger.NewInMemory())
	unknown := hashing.HashString("never issued")
	_, err := f.svc.Register(context.Background(), unknown)
	assert.Equal(t, dErrors.CodeNotFound, dErrors.CodeOf(err))
}

func TestGet(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, ledger.NewInMemory())

	issued, err := f.svc.Issue(ctx, sampleRequest())
	require.NoError(t, err)

	doc, err := f.svc.Get(ctx, issued.DocumentHash)
	require.NoError(t, err)
	assert.Equal(t, "Juan Dela Cruz", doc.Metadata.StudentName)

	_, err = f.svc.Get(ctx, hashing.HashString("missing"))
	assert.Equal(t, dErrors.CodeNotFound, dErrors.CodeOf(err))
}
