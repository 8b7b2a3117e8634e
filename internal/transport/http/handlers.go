package httptransport

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"veristamp/internal/document"
	"veristamp/internal/issue"
	"veristamp/internal/verify"
	"veristamp/pkg/domain"
	dErrors "veristamp/pkg/domain-errors"
	"veristamp/pkg/platform/httputil"
	"veristamp/pkg/requestcontext"
)

// maxUploadBytes bounds multipart uploads; academic documents are small.
const maxUploadBytes = 32 << 20

// IssueService is the issuance surface the handler needs.
type IssueService interface {
	Issue(ctx context.Context, req issue.Request) (*issue.IssuedDocument, error)
	Register(ctx context.Context, docHash domain.DocumentHash) (*issue.IssuedDocument, error)
	Get(ctx context.Context, docHash domain.DocumentHash) (*document.LogicalDocument, error)
}

// Verifier is the verification surface the handler needs.
type Verifier interface {
	Verify(ctx context.Context, uploaded []byte, mimeType, filename string) (*verify.Result, error)
}

// Handler holds the domain services behind the HTTP endpoints.
type Handler struct {
	issuer   IssueService
	verifier Verifier
	logger   *slog.Logger
}

// NewHandler builds the HTTP handler set.
func NewHandler(issuer IssueService, verifier Verifier, logger *slog.Logger) *Handler {
	return &Handler{issuer: issuer, verifier: verifier, logger: logger}
}

// handleIssue accepts a multipart form with a "metadata" JSON part and a
// "file" part carrying the original document.
func (h *Handler) handleIssue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	filename, mimeType, fileBytes, ok := h.readUpload(w, r)
	if !ok {
		return
	}

	var req issue.Request
	if err := json.Unmarshal([]byte(r.FormValue("metadata")), &req); err != nil {
		h.logger.WarnContext(ctx, "invalid issuance metadata",
			"request_id", requestID, "error", err)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "metadata part must be valid JSON"))
		return
	}
	req.FileName = filename
	req.MimeType = mimeType
	req.File = fileBytes

	result, err := h.issuer.Issue(ctx, req)
	if err != nil {
		h.logError(ctx, "issuance failed", requestID, err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, result)
}

// handleRegister anchors an already-issued document on the ledger.
func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	docHash, err := domain.ParseDocumentHash(chi.URLParam(r, "hash"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	result, err := h.issuer.Register(ctx, docHash)
	if err != nil {
		h.logError(ctx, "ledger registration failed", requestID, err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

// handleVerify accepts a multipart form with a "file" part and returns the
// verification result.
func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	filename, mimeType, fileBytes, ok := h.readUpload(w, r)
	if !ok {
		return
	}

	result, err := h.verifier.Verify(ctx, fileBytes, mimeType, filename)
	if err != nil {
		h.logError(ctx, "verification failed", requestID, err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

// handleGet returns the stored record for a document hash.
func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	docHash, err := domain.ParseDocumentHash(chi.URLParam(r, "hash"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	doc, err := h.issuer.Get(ctx, docHash)
	if err != nil {
		h.logError(ctx, "document lookup failed", requestcontext.RequestID(ctx), err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toDocumentResponse(doc))
}

// readUpload extracts the "file" part. Returns ok=false after writing the
// error response.
func (h *Handler) readUpload(w http.ResponseWriter, r *http.Request) (filename, mimeType string, data []byte, ok bool) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "expected a multipart form"))
		return "", "", nil, false
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "missing file part"))
		return "", "", nil, false
	}
	defer file.Close()

	data, err = io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "unreadable file part"))
		return "", "", nil, false
	}
	if len(data) > maxUploadBytes {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "file exceeds the upload limit"))
		return "", "", nil, false
	}
	return header.Filename, header.Header.Get("Content-Type"), data, true
}

func (h *Handler) logError(ctx context.Context, msg, requestID string, err error) {
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, msg, "request_id", requestID, "error", err)
		return
	}
	h.logger.WarnContext(ctx, msg, "request_id", requestID, "error", err)
}

// documentResponse is the read-model DTO for a stored document.
type documentResponse struct {
	DocumentHash           string    `json:"documentHash"`
	StudentID              string    `json:"studentId"`
	StudentName            string    `json:"studentName"`
	Program                string    `json:"program,omitempty"`
	Institution            string    `json:"institution,omitempty"`
	DocumentType           string    `json:"documentType"`
	DateIssued             time.Time `json:"dateIssued"`
	OriginalFileName       string    `json:"originalFileName,omitempty"`
	ContentHash            string    `json:"contentHash,omitempty"`
	ProcessedContentHash   string    `json:"processedContentHash,omitempty"`
	WatermarkedContentHash string    `json:"watermarkedContentHash,omitempty"`
	Verified               bool      `json:"verified"`
	LedgerTxID             string    `json:"ledgerTxId,omitempty"`
	LedgerBlockHeight      int64     `json:"ledgerBlockHeight,omitempty"`
	CreatedAt              time.Time `json:"createdAt"`
}

func toDocumentResponse(doc *document.LogicalDocument) documentResponse {
	return documentResponse{
		DocumentHash:           doc.DocumentHash.String(),
		StudentID:              doc.Metadata.StudentID,
		StudentName:            doc.Metadata.StudentName,
		Program:                doc.Metadata.Program,
		Institution:            doc.Metadata.Institution,
		DocumentType:           doc.Metadata.DocumentType.String(),
		DateIssued:             doc.Metadata.DateIssued,
		OriginalFileName:       doc.Metadata.OriginalFileName,
		ContentHash:            hashOrEmpty(doc.ContentHash),
		ProcessedContentHash:   hashOrEmpty(doc.ProcessedContentHash),
		WatermarkedContentHash: hashOrEmpty(doc.WatermarkedContentHash),
		Verified:               doc.Verified,
		LedgerTxID:             doc.LedgerTxID,
		LedgerBlockHeight:      doc.LedgerBlockHeight,
		CreatedAt:              doc.CreatedAt,
	}
}

func hashOrEmpty(h domain.DocumentHash) string {
	if h.IsZero() {
		return ""
	}
	return h.String()
}
