package format

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"

	"veristamp/pkg/domain"
)

// PNG tEXt keywords used for verification metadata.
const (
	pngHashKeyword     = "VerificationHash"
	pngVerifiedKeyword = "BlockchainVerified"
	pngStampKeyword    = "VerifiedStamp"
)

var pngSignature = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

// ImageHandler embeds and extracts verification metadata in PNG files via
// tEXt chunks inserted after IHDR. Pixel data is never touched, so the image
// renders identically before and after embedding; the visible badge overlay
// is delegated to the rendering boundary and is not load-bearing for
// extraction.
type ImageHandler struct{}

func (ImageHandler) Name() string { return "image" }

func (ImageHandler) SupportsMetadata() bool { return true }

// IsPNG reports whether the bytes carry a PNG signature.
func IsPNG(file []byte) bool {
	return bytes.HasPrefix(file, pngSignature)
}

// Embed inserts a VerificationHash tEXt chunk after the IHDR chunk.
func (h ImageHandler) Embed(file []byte, hash domain.DocumentHash) ([]byte, error) {
	return insertTextChunks(file, map[string]string{
		pngHashKeyword: hash.String(),
	})
}

// Extract walks the chunk list looking for the verification tEXt chunks.
func (h ImageHandler) Extract(file []byte) Extraction {
	var ex Extraction
	texts := readTextChunks(file)

	if v, ok := texts[pngHashKeyword]; ok {
		if parsed, err := domain.ParseDocumentHash(v); err == nil {
			ex.Hash = parsed
		}
	}
	if texts[pngVerifiedKeyword] == "true" {
		ex.IsWatermarked = true
	}
	if _, ok := texts[pngStampKeyword]; ok {
		ex.IsWatermarked = true
	}
	return ex
}

// RenderWatermark marks the image as ledger-verified. The hash is embedded
// twice: in the machine-facing VerificationHash chunk and in the
// human-readable stamp text alongside the transaction footer.
func (h ImageHandler) RenderWatermark(file []byte, stamp Stamp) ([]byte, error) {
	return insertTextChunks(file, map[string]string{
		pngHashKeyword:     stamp.Hash.String(),
		pngVerifiedKeyword: "true",
		pngStampKeyword: fmt.Sprintf("%s %s Tx: %s Block: %d",
			verifiedMarker, stamp.Hash.String(), stamp.TxID, stamp.BlockHeight),
	})
}

// insertTextChunks rebuilds the PNG with the given tEXt chunks placed
// immediately after IHDR. Existing chunks with the same keywords are dropped
// so re-embedding is idempotent rather than accumulating duplicates.
func insertTextChunks(file []byte, texts map[string]string) ([]byte, error) {
	if !IsPNG(file) {
		return nil, fmt.Errorf("embed: not a PNG")
	}

	var out bytes.Buffer
	out.Write(pngSignature)

	inserted := false
	offset := len(pngSignature)
	for offset+12 <= len(file) {
		length := int(binary.BigEndian.Uint32(file[offset : offset+4]))
		end := offset + 12 + length
		if end > len(file) {
			return nil, fmt.Errorf("embed: truncated PNG chunk")
		}
		chunkType := string(file[offset+4 : offset+8])
		data := file[offset+8 : offset+8+length]

		skip := false
		if chunkType == "tEXt" {
			if kw, _, ok := splitTextChunk(data); ok {
				if _, replacing := texts[kw]; replacing {
					skip = true
				}
			}
		}
		if !skip {
			out.Write(file[offset:end])
		}

		if chunkType == "IHDR" && !inserted {
			for _, kw := range []string{pngHashKeyword, pngVerifiedKeyword, pngStampKeyword} {
				if v, ok := texts[kw]; ok {
					writeTextChunk(&out, kw, v)
				}
			}
			inserted = true
		}

		offset = end
		if chunkType == "IEND" {
			break
		}
	}

	if !inserted {
		return nil, fmt.Errorf("embed: PNG missing IHDR chunk")
	}
	return out.Bytes(), nil
}

// readTextChunks returns all tEXt keyword/value pairs in the file.
func readTextChunks(file []byte) map[string]string {
	texts := make(map[string]string)
	if !IsPNG(file) {
		return texts
	}

	offset := len(pngSignature)
	for offset+12 <= len(file) {
		length := int(binary.BigEndian.Uint32(file[offset : offset+4]))
		end := offset + 12 + length
		if end > len(file) {
			break
		}
		chunkType := string(file[offset+4 : offset+8])
		if chunkType == "tEXt" {
			if kw, v, ok := splitTextChunk(file[offset+8 : offset+8+length]); ok {
				texts[kw] = v
			}
		}
		offset = end
		if chunkType == "IEND" {
			break
		}
	}
	return texts
}

func splitTextChunk(data []byte) (keyword, value string, ok bool) {
	sep := bytes.IndexByte(data, 0)
	if sep < 0 {
		return "", "", false
	}
	return string(data[:sep]), string(data[sep+1:]), true
}

func writeTextChunk(out *bytes.Buffer, keyword, value string) {
	data := append(append([]byte(keyword), 0), []byte(value)...)

	var header [8]byte
	binary.BigEndian.PutUint32(header[:4], uint32(len(data)))
	copy(header[4:], "tEXt")
	out.Write(header[:])
	out.Write(data)

	crc := crc32.NewIEEE()
	crc.Write(header[4:])
	crc.Write(data)
	var trailer [4]byte
	binary.BigEndian.PutUint32(trailer[:], crc.Sum32())
	out.Write(trailer[:])
}
