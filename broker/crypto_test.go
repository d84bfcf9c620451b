package broker

import (
	"errors"
	"net/url"
	"testing"

	"github.com/giantswarm/authclient/security"
)

func testSessionKey(t *testing.T) []byte {
	t.Helper()
	key, err := security.GenerateSessionKey()
	if err != nil {
		t.Fatalf("GenerateSessionKey() error = %v", err)
	}
	return key
}

func TestEngine_RoundTrip(t *testing.T) {
	for _, version := range []int{ProtocolVersionLegacy, ProtocolVersionKDF} {
		t.Run(map[int]string{ProtocolVersionLegacy: "legacy", ProtocolVersionKDF: "kdf"}[version], func(t *testing.T) {
			engine := NewEngine(nil)
			key := testSessionKey(t)
			resp := &Response{
				AccessToken:  "at",
				TokenType:    "Bearer",
				ExpiresIn:    3600,
				RefreshToken: "rt",
				Resource:     "https://graph.example.com/",
				FamilyID:     "1",
			}

			msg, err := engine.Encrypt(resp, key, version)
			if err != nil {
				t.Fatalf("Encrypt() error = %v", err)
			}

			got, err := engine.Decrypt(msg, key)
			if err != nil {
				t.Fatalf("Decrypt() error = %v", err)
			}
			if *got != *resp {
				t.Errorf("Decrypt() = %+v, want %+v", got, resp)
			}
		})
	}
}

func TestEngine_TamperedPayloadFailsClosed(t *testing.T) {
	engine := NewEngine(nil)
	key := testSessionKey(t)

	msg, err := engine.Encrypt(&Response{AccessToken: "at"}, key, ProtocolVersionKDF)
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	msg.Payload[len(msg.Payload)-1] ^= 0x01

	resp, err := engine.Decrypt(msg, key)
	if !errors.Is(err, ErrHashMismatch) {
		t.Errorf("Decrypt() error = %v, want ErrHashMismatch", err)
	}
	if resp != nil {
		t.Error("Decrypt() of tampered message produced a response")
	}
}

func TestEngine_WrongKeyFails(t *testing.T) {
	engine := NewEngine(nil)

	msg, err := engine.Encrypt(&Response{AccessToken: "at"}, testSessionKey(t), ProtocolVersionKDF)
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}

	if _, err := engine.Decrypt(msg, testSessionKey(t)); err == nil {
		t.Error("Decrypt() with the wrong session key succeeded")
	}
}

func TestEngine_UnsupportedVersion(t *testing.T) {
	engine := NewEngine(nil)
	key := testSessionKey(t)

	msg, err := engine.Encrypt(&Response{AccessToken: "at"}, key, ProtocolVersionKDF)
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	msg.ProtocolVersion = 99

	if _, err := engine.Decrypt(msg, key); !errors.Is(err, ErrUnsupportedVersion) {
		t.Errorf("Decrypt() error = %v, want ErrUnsupportedVersion", err)
	}

	if _, err := engine.Encrypt(&Response{}, key, 99); !errors.Is(err, ErrUnsupportedVersion) {
		t.Errorf("Encrypt() error = %v, want ErrUnsupportedVersion", err)
	}
}

func TestEngine_VersionsDeriveDistinctKeys(t *testing.T) {
	engine := NewEngine(nil)
	key := testSessionKey(t)

	msg, err := engine.Encrypt(&Response{AccessToken: "at"}, key, ProtocolVersionKDF)
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}

	// A KDF-protocol message must not verify under the legacy scheme.
	msg.ProtocolVersion = ProtocolVersionLegacy
	if _, err := engine.Decrypt(msg, key); !errors.Is(err, ErrHashMismatch) {
		t.Errorf("Decrypt() error = %v, want ErrHashMismatch", err)
	}
}

func TestParseResponse(t *testing.T) {
	engine := NewEngine(nil)
	key := testSessionKey(t)

	msg, err := engine.Encrypt(&Response{AccessToken: "at"}, key, ProtocolVersionKDF)
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}

	parsed, err := ParseResponse(msg.Query())
	if err != nil {
		t.Fatalf("ParseResponse() error = %v", err)
	}
	if parsed.ProtocolVersion != ProtocolVersionKDF {
		t.Errorf("ProtocolVersion = %d, want %d", parsed.ProtocolVersion, ProtocolVersionKDF)
	}
	if _, err := engine.Decrypt(parsed, key); err != nil {
		t.Errorf("Decrypt() of reparsed message error = %v", err)
	}
}

func TestParseResponse_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		query url.Values
	}{
		{"empty query", url.Values{}},
		{"missing hash", url.Values{"response": {"aGVsbG8="}, "msg_protocol_ver": {"2"}}},
		{"bad response encoding", url.Values{"response": {"%%%"}, "hash": {"aGVsbG8="}, "msg_protocol_ver": {"2"}}},
		{"bad hash encoding", url.Values{"response": {"aGVsbG8="}, "hash": {"%%%"}, "msg_protocol_ver": {"2"}}},
		{"missing version", url.Values{"response": {"aGVsbG8="}, "hash": {"aGVsbG8="}}},
		{"non-numeric version", url.Values{"response": {"aGVsbG8="}, "hash": {"aGVsbG8="}, "msg_protocol_ver": {"two"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseResponse(tt.query); !errors.Is(err, ErrMalformedPayload) {
				t.Errorf("ParseResponse() error = %v, want ErrMalformedPayload", err)
			}
		})
	}
}

func TestDeriveKey_Deterministic(t *testing.T) {
	key := []byte("0123456789abcdef0123456789abcdef")

	a := deriveKey(key, encryptionKeyLabel, kdfContext, derivedKeySize)
	b := deriveKey(key, encryptionKeyLabel, kdfContext, derivedKeySize)
	if string(a) != string(b) {
		t.Error("deriveKey() is not deterministic")
	}

	mac := deriveKey(key, macKeyLabel, kdfContext, derivedKeySize)
	if string(a) == string(mac) {
		t.Error("encryption and MAC keys must differ")
	}

	// Requested length is bound into the KDF input, so a longer derivation is
	// not an extension of a shorter one.
	long := deriveKey(key, encryptionKeyLabel, kdfContext, 48)
	if len(long) != 48 {
		t.Errorf("deriveKey() length = %d, want 48", len(long))
	}
	if string(long[:32]) == string(a) {
		t.Error("derivations of different lengths must not share a prefix")
	}
}
