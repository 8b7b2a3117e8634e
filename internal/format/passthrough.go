package format

import "veristamp/pkg/domain"

// PassthroughHandler serves container formats with no metadata support
// (DOCX uploads, plain text, unknown binaries). Embed and RenderWatermark
// return an unmodified copy: the hash chain is preserved because the variant
// hash is computed over the copy, even though it carries no marking.
type PassthroughHandler struct{}

func (PassthroughHandler) Name() string { return "passthrough" }

func (PassthroughHandler) SupportsMetadata() bool { return false }

func (PassthroughHandler) Embed(file []byte, _ domain.DocumentHash) ([]byte, error) {
	return append([]byte(nil), file...), nil
}

func (PassthroughHandler) Extract(_ []byte) Extraction {
	return Extraction{}
}

func (PassthroughHandler) RenderWatermark(file []byte, _ Stamp) ([]byte, error) {
	return append([]byte(nil), file...), nil
}
