package verify

import (
	"fmt"
	"math"

	"veristamp/internal/format"
	"veristamp/pkg/domain"
)

// Thresholds are the size-ratio cutoffs for the "minor modification"
// classifications. The confidence numbers and these ratios are heuristic
// judgment calls, kept configurable rather than hard law.
type Thresholds struct {
	// MinorPDFRatio: a PDF whose size diverges by less than this fraction of
	// the expected size classifies as MINOR_MODIFICATION.
	MinorPDFRatio float64
	// MinorNonPDFRatio: same cutoff for non-PDF uploads.
	MinorNonPDFRatio float64
}

// DefaultThresholds returns the production cutoffs.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinorPDFRatio:    0.01,
		MinorNonPDFRatio: 0.05,
	}
}

// comparison is the evidence detectTampering judges. ExpectedBytes is nil
// when the expected variant file was unreadable; classification still runs,
// with the size ratio pinned to 1.0.
type comparison struct {
	Uploaded            []byte
	UploadedIsPDF       bool
	UploadedWatermarked bool

	ExpectedVariant domain.Variant
	ExpectedHash    domain.DocumentHash
	ExpectedBytes   []byte
}

// classification is the output of one tamper rule.
type classification struct {
	Type       TamperType
	Confidence int
	Message    string
}

// detectTampering classifies how an upload diverges from its expected
// variant. Pure function: all I/O happens before it runs. It is only called
// after exact-match comparison has failed, so "tampered" is already
// established; this decides how and with what certainty.
func detectTampering(c comparison, th Thresholds) classification {
	uploadedSize := int64(len(c.Uploaded))
	expectedSize := int64(len(c.ExpectedBytes))

	sizeDiff := uploadedSize - expectedSize
	if sizeDiff < 0 {
		sizeDiff = -sizeDiff
	}
	sizeRatio := 1.0
	if len(c.ExpectedBytes) > 0 {
		sizeRatio = float64(sizeDiff) / float64(expectedSize)
	}

	if c.UploadedIsPDF {
		return classifyPDF(c, sizeDiff, sizeRatio, th)
	}
	return classifyGeneric(sizeDiff, sizeRatio, th)
}

func classifyPDF(c comparison, sizeDiff int64, sizeRatio float64, th Thresholds) classification {
	uploadedPages, err := format.CountPages(c.Uploaded)
	if err != nil {
		// An unparseable document sent for verification is itself strong
		// tamper evidence, so this upgrades rather than erroring out.
		return classification{
			Type:       TamperStructureCorruption,
			Confidence: 100,
			Message:    "uploaded file does not parse as a structured PDF",
		}
	}

	if len(c.ExpectedBytes) > 0 {
		if expectedPages, err := format.CountPages(c.ExpectedBytes); err == nil && expectedPages != uploadedPages {
			return classification{
				Type:       TamperPageModification,
				Confidence: 100,
				Message:    fmt.Sprintf("page count changed from %d to %d", expectedPages, uploadedPages),
			}
		}
	}

	if c.UploadedWatermarked {
		return classification{
			Type:       TamperWatermarkMismatch,
			Confidence: 85,
			Message:    "file claims to be watermarked but does not match the watermarked variant",
		}
	}
	if c.ExpectedVariant == domain.VariantWatermarked {
		return classification{
			Type:       TamperWatermarkRemoval,
			Confidence: 95,
			Message:    "expected a watermarked document but the upload carries no watermark",
		}
	}

	if sizeRatio < th.MinorPDFRatio {
		return classification{
			Type:       TamperMinorModification,
			Confidence: 70,
			Message:    "content differs slightly from the expected document",
		}
	}
	return classification{
		Type:       TamperContentModification,
		Confidence: 95,
		Message:    fmt.Sprintf("content differs from the expected document (size changed by %d%%)", int(math.Round(sizeRatio*100))),
	}
}

func classifyGeneric(sizeDiff int64, sizeRatio float64, th Thresholds) classification {
	switch {
	case sizeDiff == 0:
		// Same size, different bytes: the strongest tamper signal.
		return classification{
			Type:       TamperContentReplacement,
			Confidence: 100,
			Message:    "content replaced with different bytes of identical size",
		}
	case sizeRatio < th.MinorNonPDFRatio:
		return classification{
			Type:       TamperMinorModification,
			Confidence: 85,
			Message:    "content differs slightly from the expected document",
		}
	default:
		return classification{
			Type:       TamperMajorModification,
			Confidence: 100,
			Message:    fmt.Sprintf("content differs substantially from the expected document (size changed by %d%%)", int(math.Round(sizeRatio*100))),
		}
	}
}
