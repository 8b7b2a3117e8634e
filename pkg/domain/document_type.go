package domain

import dErrors "veristamp/pkg/domain-errors"

// DocumentType identifies what kind of academic document is being issued.
// Invariant: the value must be one of the supported document types.
//
// Usage: construct via ParseDocumentType at trust boundaries to enforce the
// allowlist; direct casting bypasses validation.
type DocumentType string

// Supported document types.
const (
	DocumentTypeTOR         DocumentType = "TOR"
	DocumentTypeDiploma     DocumentType = "DIPLOMA"
	DocumentTypeCertificate DocumentType = "CERTIFICATE"
	DocumentTypeGoodMoral   DocumentType = "GOOD_MORAL"
)

// validDocumentTypes is the single source of truth for valid document types.
var validDocumentTypes = map[DocumentType]bool{
	DocumentTypeTOR:         true,
	DocumentTypeDiploma:     true,
	DocumentTypeCertificate: true,
	DocumentTypeGoodMoral:   true,
}

// ParseDocumentType constructs a DocumentType from external input.
//
// Errors: returns CodeInvalidInput when the value is empty or unsupported; no
// other errors are expected.
func ParseDocumentType(s string) (DocumentType, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "document type cannot be empty")
	}
	t := DocumentType(s)
	if !t.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid document type")
	}
	return t, nil
}

// IsValid checks if the document type is one of the supported enum values.
func (t DocumentType) IsValid() bool {
	return validDocumentTypes[t]
}

// String returns the string representation of the document type.
func (t DocumentType) String() string {
	return string(t)
}
