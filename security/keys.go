package security

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// SessionKeySize is the required size of a broker session key in bytes.
// Keys of this size select AES-256 for broker payload decryption.
const SessionKeySize = 32

// GenerateSessionKey generates a new random broker session key.
func GenerateSessionKey() ([]byte, error) {
	key := make([]byte, SessionKeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate session key: %w", err)
	}
	return key, nil
}

// SessionKeyFromBase64 decodes a base64-encoded broker session key and
// validates its size.
func SessionKeyFromBase64(s string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64 key: %w", err)
	}
	if len(key) != SessionKeySize {
		return nil, fmt.Errorf("session key must be %d bytes, got %d", SessionKeySize, len(key))
	}
	return key, nil
}

// SessionKeyToBase64 encodes a broker session key to base64 for transport or
// storage in the secure store.
func SessionKeyToBase64(key []byte) string {
	return base64.StdEncoding.EncodeToString(key)
}
