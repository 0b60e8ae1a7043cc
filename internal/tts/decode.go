package tts

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/book-expert/tts-proxy/internal/core"
)

// DecodeAudio converts the provider's standard, padded base64 payload into raw bytes.
func DecodeAudio(encoded string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrDecode, err)
	}

	return data, nil
}

// parseJSON parses JSON data into the target interface.
func parseJSON(data []byte, target any) error {
	err := json.Unmarshal(data, target)
	if err != nil {
		return fmt.Errorf("failed to unmarshal JSON: %w", err)
	}

	return nil
}
