package domain

// Variant names one of the three lineage forms of a logical document. A
// document is issued once but exists as up to three byte-distinct files, each
// with its own Keccak-256 file hash; verification must be able to match an
// upload against any of them.
type Variant string

const (
	// VariantOriginal is the file as submitted or first rendered.
	VariantOriginal Variant = "original"
	// VariantProcessed carries the embedded document hash and QR pointer.
	VariantProcessed Variant = "processed"
	// VariantWatermarked is the visibly stamped, ledger-confirmed form.
	VariantWatermarked Variant = "watermarked_verified"
)

// String returns the string representation of the variant.
func (v Variant) String() string {
	return string(v)
}
