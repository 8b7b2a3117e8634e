package format

import (
	"bytes"
	"fmt"
	"regexp"

	"veristamp/pkg/domain"
)

// PDF metadata markers. The subject field carries the bare hash; keywords
// carry the machine-facing tokens. Watermarked files carry the hash twice:
// once in the human-readable Verified line and once in keywords.
const (
	keywordHashPrefix   = "verification_hash:"
	keywordVerifiedFlag = "blockchain_verified:true"
	verifiedMarker      = "Verified:"
)

var (
	pdfHeader     = []byte("%PDF-")
	pdfEOF        = []byte("%%EOF")
	subjectRe     = regexp.MustCompile(`/Subject\s*\(([^)]*)\)`)
	keywordsRe    = regexp.MustCompile(`/Keywords\s*\(([^)]*)\)`)
	pageTypeRe    = regexp.MustCompile(`/Type\s*/Page\b`)
	hashRe        = regexp.MustCompile(`0x[0-9a-fA-F]{64}`)
	keywordHashRe = regexp.MustCompile(keywordHashPrefix + `(0x[0-9a-fA-F]{64})`)
)

// PDFHandler embeds and extracts verification metadata in PDF files.
//
// Embedding appends an incremental metadata segment rather than rewriting the
// cross-reference table: page objects are untouched, viewers ignore content
// after %%EOF, and extraction takes the last occurrence so later segments
// supersede earlier ones.
type PDFHandler struct{}

func (PDFHandler) Name() string { return "pdf" }

func (PDFHandler) SupportsMetadata() bool { return true }

// IsPDF reports whether the bytes carry a PDF header.
func IsPDF(file []byte) bool {
	return bytes.HasPrefix(file, pdfHeader)
}

// Embed writes the document hash into the subject and keyword metadata.
func (h PDFHandler) Embed(file []byte, hash domain.DocumentHash) ([]byte, error) {
	if !IsPDF(file) {
		return nil, fmt.Errorf("embed: not a PDF")
	}
	segment := fmt.Sprintf(
		"\n%% veristamp metadata\n<</Subject (%s) /Keywords (%s%s)>>\n%%%%EOF\n",
		hash.String(), keywordHashPrefix, hash.String(),
	)
	return append(bytes.TrimRight(file, "\n"), []byte(segment)...), nil
}

// Extract reads subject/keyword metadata back out. The watermark signal is
// recognized from either the blockchain_verified keyword token or the
// human-readable Verified marker, independent of hash recovery.
func (h PDFHandler) Extract(file []byte) Extraction {
	var ex Extraction

	if m := lastSubmatch(keywordsRe, file); m != nil {
		if bytes.Contains(m, []byte(keywordVerifiedFlag)) {
			ex.IsWatermarked = true
		}
		if idx := keywordHashRe.FindSubmatch(m); idx != nil {
			if parsed, err := domain.ParseDocumentHash(string(idx[1])); err == nil {
				ex.Hash = parsed
			}
		}
	}

	if ex.Hash.IsZero() {
		if m := lastSubmatch(subjectRe, file); m != nil {
			if candidate := hashRe.Find(m); candidate != nil {
				if parsed, err := domain.ParseDocumentHash(string(candidate)); err == nil {
					ex.Hash = parsed
				}
			}
		}
	}

	if !ex.IsWatermarked && bytes.Contains(file, []byte(verifiedMarker)) {
		ex.IsWatermarked = true
	}

	return ex
}

// RenderWatermark appends the visible stamp text and the watermark metadata
// markers. The stamp carries the hash in human-readable form and the ledger
// transaction in the footer line.
func (h PDFHandler) RenderWatermark(file []byte, stamp Stamp) ([]byte, error) {
	if !IsPDF(file) {
		return nil, fmt.Errorf("render watermark: not a PDF")
	}
	segment := fmt.Sprintf(
		"\n%% veristamp watermark\n"+
			"<</Subject (%s) /Keywords (%s%s %s)>>\n"+
			"BT (%s %s) Tj ET\n"+
			"BT (Tx: %s Block: %d) Tj ET\n"+
			"%%%%EOF\n",
		stamp.Hash.String(),
		keywordHashPrefix, stamp.Hash.String(), keywordVerifiedFlag,
		verifiedMarker, stamp.Hash.String(),
		stamp.TxID, stamp.BlockHeight,
	)
	return append(bytes.TrimRight(file, "\n"), []byte(segment)...), nil
}

// CountPages counts page objects in a PDF. Returns an error when the bytes do
// not parse as a structured PDF at all (missing header or end-of-file marker,
// or no page objects); the verification engine upgrades that to a
// structure-corruption verdict.
func CountPages(file []byte) (int, error) {
	if !IsPDF(file) {
		return 0, fmt.Errorf("count pages: not a PDF")
	}
	if !bytes.Contains(file, pdfEOF) {
		return 0, fmt.Errorf("count pages: truncated PDF")
	}
	n := len(pageTypeRe.FindAll(file, -1))
	if n == 0 {
		return 0, fmt.Errorf("count pages: no page objects")
	}
	return n, nil
}

// lastSubmatch returns the first capture group of the last match of re.
func lastSubmatch(re *regexp.Regexp, data []byte) []byte {
	all := re.FindAllSubmatch(data, -1)
	if len(all) == 0 {
		return nil
	}
	return all[len(all)-1][1]
}
