package broker

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strconv"
)

// Response URL query parameter names.
const (
	responseParam = "response"
	hashParam     = "hash"
	versionParam  = "msg_protocol_ver"
)

// Sentinel errors for broker message handling. Callers match them with
// errors.Is and translate them into the library's error taxonomy.
var (
	// ErrMalformedPayload indicates the broker response could not be parsed
	// into a Message, or the decrypted payload was not a valid token response.
	ErrMalformedPayload = errors.New("malformed broker payload")

	// ErrHashMismatch indicates the MAC over the encrypted payload did not
	// verify. The payload is never decrypted in this case.
	ErrHashMismatch = errors.New("broker response hash mismatch")

	// ErrUnsupportedVersion indicates the broker spoke a protocol version this
	// implementation does not understand.
	ErrUnsupportedVersion = errors.New("unsupported broker protocol version")
)

// Message is a single broker response, parsed from the redirect URI but not
// yet verified or decrypted. A Message is transient: it is constructed from
// one incoming response and consumed once by Engine.Decrypt.
type Message struct {
	// ProtocolVersion selects the key derivation scheme.
	ProtocolVersion int

	// Payload is the encrypted token response.
	Payload []byte

	// Hash is the MAC over Payload.
	Hash []byte
}

// ParseResponse parses the query of a broker redirect URI into a Message.
// The query must carry base64-encoded "response" and "hash" parameters and a
// protocol version field.
func ParseResponse(query url.Values) (*Message, error) {
	encoded := query.Get(responseParam)
	if encoded == "" {
		return nil, fmt.Errorf("%w: missing %q parameter", ErrMalformedPayload, responseParam)
	}
	payload, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid %q encoding: %v", ErrMalformedPayload, responseParam, err)
	}

	encodedHash := query.Get(hashParam)
	if encodedHash == "" {
		return nil, fmt.Errorf("%w: missing %q parameter", ErrMalformedPayload, hashParam)
	}
	hash, err := base64.StdEncoding.DecodeString(encodedHash)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid %q encoding: %v", ErrMalformedPayload, hashParam, err)
	}

	rawVersion := query.Get(versionParam)
	if rawVersion == "" {
		return nil, fmt.Errorf("%w: missing %q parameter", ErrMalformedPayload, versionParam)
	}
	version, err := strconv.Atoi(rawVersion)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid %q value %q", ErrMalformedPayload, versionParam, rawVersion)
	}

	return &Message{
		ProtocolVersion: version,
		Payload:         payload,
		Hash:            hash,
	}, nil
}

// Query renders the message back into redirect URI query parameters, the
// inverse of ParseResponse. Used by the broker side of the protocol.
func (m *Message) Query() url.Values {
	return url.Values{
		responseParam: {base64.StdEncoding.EncodeToString(m.Payload)},
		hashParam:     {base64.StdEncoding.EncodeToString(m.Hash)},
		versionParam:  {strconv.Itoa(m.ProtocolVersion)},
	}
}
