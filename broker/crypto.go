package broker

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
)

// Supported protocol versions.
const (
	// ProtocolVersionLegacy uses the session key directly for both encryption
	// and authentication.
	ProtocolVersionLegacy = 1

	// ProtocolVersionKDF derives separate encryption and MAC keys from the
	// session key.
	ProtocolVersionKDF = 2
)

// derivedKeySize is the size of KDF-derived keys, matching AES-256.
const derivedKeySize = 32

// Response is the token response carried inside an encrypted broker payload.
// Field names follow the token endpoint wire format so the broker can relay
// the server response unchanged.
type Response struct {
	AccessToken      string `json:"access_token,omitempty"`
	TokenType        string `json:"token_type,omitempty"`
	ExpiresIn        int64  `json:"expires_in,omitempty"`
	RefreshToken     string `json:"refresh_token,omitempty"`
	IDToken          string `json:"id_token,omitempty"`
	Resource         string `json:"resource,omitempty"`
	FamilyID         string `json:"foci,omitempty"`
	Error            string `json:"error,omitempty"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// Engine verifies and decrypts broker messages with a shared session key.
// The zero value is not usable; construct with NewEngine.
type Engine struct {
	logger *slog.Logger
}

// NewEngine creates a broker crypto engine.
func NewEngine(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{logger: logger}
}

// Decrypt verifies the message MAC and decrypts the payload into a Response.
//
// The MAC is checked in constant time before any decryption is attempted; a
// mismatch fails with ErrHashMismatch and the payload is never opened. The
// protocol version selects how the encryption and MAC keys are obtained from
// the session key; unknown versions fail with ErrUnsupportedVersion.
func (e *Engine) Decrypt(msg *Message, sessionKey []byte) (*Response, error) {
	if msg == nil {
		return nil, fmt.Errorf("%w: nil message", ErrMalformedPayload)
	}
	if len(sessionKey) == 0 {
		return nil, fmt.Errorf("%w: empty session key", ErrMalformedPayload)
	}

	encKey, macKey, err := keysForVersion(msg.ProtocolVersion, sessionKey)
	if err != nil {
		return nil, err
	}

	mac := hmac.New(sha256.New, macKey)
	mac.Write(msg.Payload)
	if !hmac.Equal(mac.Sum(nil), msg.Hash) {
		e.logger.Warn("Broker response hash mismatch, payload discarded",
			"protocol_version", msg.ProtocolVersion)
		return nil, ErrHashMismatch
	}

	plaintext, err := openPayload(encKey, msg.Payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	var resp Response
	if err := json.Unmarshal(plaintext, &resp); err != nil {
		return nil, fmt.Errorf("%w: invalid token response JSON: %v", ErrMalformedPayload, err)
	}

	e.logger.Debug("Decrypted broker response",
		"protocol_version", msg.ProtocolVersion,
		"has_refresh_token", resp.RefreshToken != "",
		"family_id", resp.FamilyID)
	return &resp, nil
}

// Encrypt seals a token response into a broker message. This is the broker
// side of the protocol, exported so broker processes and tests can produce
// wire-compatible messages.
func (e *Engine) Encrypt(resp *Response, sessionKey []byte, protocolVersion int) (*Message, error) {
	if resp == nil {
		return nil, fmt.Errorf("%w: nil response", ErrMalformedPayload)
	}

	encKey, macKey, err := keysForVersion(protocolVersion, sessionKey)
	if err != nil {
		return nil, err
	}

	plaintext, err := json.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to encode token response: %w", err)
	}

	payload, err := sealPayload(encKey, plaintext)
	if err != nil {
		return nil, err
	}

	mac := hmac.New(sha256.New, macKey)
	mac.Write(payload)

	return &Message{
		ProtocolVersion: protocolVersion,
		Payload:         payload,
		Hash:            mac.Sum(nil),
	}, nil
}

// keysForVersion resolves the encryption and MAC keys for a protocol version.
func keysForVersion(version int, sessionKey []byte) (encKey, macKey []byte, err error) {
	switch version {
	case ProtocolVersionLegacy:
		return sessionKey, sessionKey, nil
	case ProtocolVersionKDF:
		encKey = deriveKey(sessionKey, encryptionKeyLabel, kdfContext, derivedKeySize)
		macKey = deriveKey(sessionKey, macKeyLabel, kdfContext, derivedKeySize)
		return encKey, macKey, nil
	default:
		return nil, nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}
}

// Payload format: [nonce][ciphertext], AES-256-GCM.

func openPayload(key, payload []byte) ([]byte, error) {
	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}
	if len(payload) < aead.NonceSize() {
		return nil, fmt.Errorf("payload too short to contain nonce")
	}
	nonce, ciphertext := payload[:aead.NonceSize()], payload[aead.NonceSize():]
	return aead.Open(nil, nonce, ciphertext, nil)
}

func sealPayload(key, plaintext []byte) ([]byte, error) {
	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("invalid encryption key: %w", err)
	}
	return cipher.NewGCM(block)
}
