package tts

import (
	"encoding/base64"
	"math/rand/v2"
	"testing"

	"github.com/book-expert/tts-proxy/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeAudio_RoundTrip(t *testing.T) {
	t.Parallel()

	random := rand.New(rand.NewPCG(1, 2))

	for size := range 257 {
		original := make([]byte, size)
		for index := range original {
			original[index] = byte(random.UintN(256))
		}

		decoded, err := DecodeAudio(base64.StdEncoding.EncodeToString(original))
		require.NoError(t, err)
		assert.Equal(t, original, decoded, "size %d", size)
	}
}

func TestDecodeAudio_Invalid(t *testing.T) {
	t.Parallel()

	tests := []string{
		"not base64!",
		"QUJD\x00",
		"QUI",     // missing padding
		"-_-_",    // URL-safe alphabet
		"QUJDRA=", // wrong padding
	}

	for _, encoded := range tests {
		_, err := DecodeAudio(encoded)
		require.ErrorIs(t, err, core.ErrDecode, encoded)
	}
}
