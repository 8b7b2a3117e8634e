// Full-stack lifecycle tests: issuance through verification over in-memory
// infrastructure, covering every trust outcome a caller can observe.
package integrationtests

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"veristamp/internal/audit"
	"veristamp/internal/document"
	"veristamp/internal/filestore"
	"veristamp/internal/issue"
	"veristamp/internal/ledger"
	"veristamp/internal/lineage"
	"veristamp/internal/verify"
	"veristamp/internal/watermark"
	"veristamp/pkg/domain"
	"veristamp/pkg/testutil"
)

type stack struct {
	store    *document.InMemoryStore
	files    *filestore.Storage
	ledger   *ledger.InMemoryLedger
	tracker  *lineage.Tracker
	issuer   *issue.Service
	verifier *verify.Engine
	sink     *audit.MemorySink
}

func newStack(t *testing.T) *stack {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	files, err := filestore.New(t.TempDir())
	require.NoError(t, err)

	s := &stack{
		store:  document.NewInMemoryStore(),
		files:  files,
		ledger: ledger.NewInMemory(),
		sink:   audit.NewMemorySink(),
	}
	s.tracker = lineage.NewTracker(s.store, files, lineage.WithLogger(logger))
	composer := watermark.NewComposer(files, s.tracker, watermark.WithLogger(logger))
	s.issuer = issue.NewService(s.store, files, s.tracker, s.ledger, composer, "http://localhost:8080",
		issue.WithLogger(logger), issue.WithAuditPublisher(s.sink))
	s.verifier = verify.NewEngine(s.tracker, s.ledger, files,
		verify.WithLogger(logger), verify.WithAuditPublisher(s.sink))
	return s
}

func issuanceRequest(filename string, file []byte) issue.Request {
	return issue.Request{
		StudentID:    "2021-00001",
		StudentName:  "Juan Dela Cruz",
		Program:      "BS Computer Science",
		Institution:  "State University",
		DocumentType: "TOR",
		DateIssued:   time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC),
		FileName:     filename,
		MimeType:     "",
		File:         file,
	}
}

func issuePDF() []byte {
	var b bytes.Buffer
	b.WriteString("%PDF-1.4\n")
	b.WriteString("1 0 obj <</Type /Page>> endobj\n")
	b.WriteString("trailer\n%%EOF\n")
	return b.Bytes()
}

func TestWatermarkedUploadIsAuthentic(t *testing.T) {
	ctx := context.Background()
	s := newStack(t)
	var issued *issue.IssuedDocument

	testutil.Given(t, "a TOR issued, anchored, and watermarked", func(t *testing.T) {
		var err error
		issued, err = s.issuer.Issue(ctx, issuanceRequest("tor_juan.pdf", issuePDF()))
		require.NoError(t, err)
		require.True(t, issued.Verified)
		require.NotEmpty(t, issued.WatermarkedFilePath)
	})

	testutil.Then(t, "uploading the watermarked bytes is authentic at full confidence", func(t *testing.T) {
		stamped, err := s.files.Read(issued.WatermarkedFilePath)
		require.NoError(t, err)

		result, err := s.verifier.Verify(ctx, stamped, "application/pdf", "Verified_tor_juan.pdf")
		require.NoError(t, err)
		assert.Equal(t, verify.StatusAuthentic, result.Status)
		assert.Equal(t, domain.VariantWatermarked, result.MatchedVariant)
		assert.Equal(t, 100, result.Confidence)
	})
}

func TestUnanchoredDocumentIsNotVerified(t *testing.T) {
	ctx := context.Background()
	s := newStack(t)
	var issued *issue.IssuedDocument

	testutil.Given(t, "a document issued while the ledger was unreachable", func(t *testing.T) {
		composer := watermark.NewComposer(s.files, s.tracker)
		issuer := issue.NewService(s.store, s.files, s.tracker, unreachableLedger{}, composer, "http://localhost:8080")

		var err error
		issued, err = issuer.Issue(ctx, issuanceRequest("tor_juan.pdf", issuePDF()))
		require.NoError(t, err)
		require.False(t, issued.Verified)
	})

	testutil.Then(t, "even an exact processed-byte match reports not verified", func(t *testing.T) {
		processed, err := s.files.Read(issued.ProcessedFilePath)
		require.NoError(t, err)

		result, err := s.verifier.Verify(ctx, processed, "application/pdf", "tor_juan.pdf")
		require.NoError(t, err)
		assert.Equal(t, verify.StatusNotVerified, result.Status)
		assert.False(t, result.Authentic)
		assert.False(t, result.Tampered)
	})
}

func TestSameSizeByteFlipIsContentReplacement(t *testing.T) {
	ctx := context.Background()
	s := newStack(t)

	issued, err := s.issuer.Issue(ctx, issuanceRequest("tor_juan.txt", []byte("official transcript of records, plain text rendition")))
	require.NoError(t, err)
	require.True(t, issued.Verified)

	stamped, err := s.files.Read(issued.WatermarkedFilePath)
	require.NoError(t, err)
	tampered := append([]byte{}, stamped...)
	tampered[len(tampered)/2] ^= 0xFF

	result, err := s.verifier.Verify(ctx, tampered, "text/plain", "tor_juan_verified.txt")
	require.NoError(t, err)
	assert.True(t, result.Tampered)
	assert.False(t, result.Authentic)
	assert.Equal(t, verify.TamperContentReplacement, result.TamperType)
	assert.Equal(t, 100, result.Confidence)
}

func TestUnrelatedUploadIsNotFound(t *testing.T) {
	ctx := context.Background()
	s := newStack(t)

	_, err := s.issuer.Issue(ctx, issuanceRequest("tor_juan.pdf", issuePDF()))
	require.NoError(t, err)

	result, err := s.verifier.Verify(ctx, []byte("grocery list"), "text/plain", "groceries.txt")
	require.NoError(t, err)
	assert.Equal(t, verify.StatusNotFound, result.Status)
}

func TestSelfReportedWatermarkMismatch(t *testing.T) {
	ctx := context.Background()
	s := newStack(t)

	// Anchored document whose watermarked variant was never produced: the
	// expected comparison target stays the processed variant.
	issued, err := s.issuer.Issue(ctx, issuanceRequest("diploma_maria.pdf", issuePDF()))
	require.NoError(t, err)
	wiped := ""
	zero := domain.ZeroHash
	require.NoError(t, s.store.UpdateFields(ctx, issued.DocumentHash, document.FieldUpdate{
		WatermarkedContentHash: &zero,
		WatermarkedFilePath:    &wiped,
	}))

	// A PDF that claims to be watermarked but matches no stored bytes,
	// resolvable only through its filename.
	fake := append(issuePDF(), []byte("\n<</Keywords (blockchain_verified:true)>>\n%%EOF\n")...)

	result, err := s.verifier.Verify(ctx, fake, "application/pdf", "diploma_maria.pdf")
	require.NoError(t, err)
	assert.Equal(t, verify.StatusTampered, result.Status)
	assert.Equal(t, verify.TamperWatermarkMismatch, result.TamperType)
	assert.Equal(t, 85, result.Confidence)
}

type unreachableLedger struct{}

func (unreachableLedger) Register(context.Context, domain.DocumentHash) (ledger.Receipt, error) {
	return ledger.Receipt{}, context.DeadlineExceeded
}

func (unreachableLedger) Lookup(context.Context, domain.DocumentHash) (ledger.Record, error) {
	return ledger.Record{}, context.DeadlineExceeded
}
