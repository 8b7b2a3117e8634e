package hashing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashKnownVectors(t *testing.T) {
	// Keccak-256, not NIST SHA3-256. The empty-input digest distinguishes the
	// two: SHA3-256("") starts with a7ff, Keccak-256("") with c5d2.
	assert.Equal(t,
		"0xc5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470",
		Hash(nil).String(),
	)
	assert.Equal(t,
		"0x4e03657aea45a94fc7d47ba826c8d667c0d1e6e33a64a036ec44f58fa12d6c45",
		HashString("abc").String(),
	)
}

func TestHashStability(t *testing.T) {
	payload := []byte("DOCUMENT_TYPE:TOR\nSTUDENT_ID:2021-00001")
	first := Hash(payload)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, Hash(payload))
	}
	assert.Equal(t, first, HashString(string(payload)))
}

func TestHashDiffers(t *testing.T) {
	assert.NotEqual(t, HashString("a"), HashString("b"))
}
