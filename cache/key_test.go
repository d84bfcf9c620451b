package cache

import (
	"errors"
	"testing"
)

func TestNewKey(t *testing.T) {
	tests := []struct {
		name      string
		authority string
		resource  string
		clientID  string
		wantErr   bool
	}{
		{
			name:      "valid key",
			authority: "https://login.example.com/tenant",
			resource:  "https://graph.example.com/",
			clientID:  "client-1",
		},
		{
			name:      "resourceless key",
			authority: "https://login.example.com/tenant",
			resource:  "",
			clientID:  "client-1",
		},
		{
			name:      "empty authority",
			authority: "",
			resource:  "r",
			clientID:  "client-1",
			wantErr:   true,
		},
		{
			name:      "empty client ID",
			authority: "https://login.example.com/tenant",
			resource:  "r",
			clientID:  "  ",
			wantErr:   true,
		},
		{
			name:      "authority without tenant segment",
			authority: "https://login.example.com",
			resource:  "r",
			clientID:  "client-1",
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, err := NewKey(tt.authority, tt.resource, tt.clientID)
			if tt.wantErr {
				if err == nil {
					t.Fatal("NewKey() expected error, got nil")
				}
				if !errors.Is(err, ErrInvalidKey) {
					t.Errorf("NewKey() error = %v, want ErrInvalidKey", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewKey() error = %v", err)
			}
			if key.IsZero() {
				t.Error("NewKey() returned zero key")
			}
		})
	}
}

func TestKey_AuthorityNormalization(t *testing.T) {
	a, err := NewKey("HTTPS://Login.Example.COM/Tenant", "r", "c")
	if err != nil {
		t.Fatalf("NewKey() error = %v", err)
	}
	b, err := NewKey("https://login.example.com/tenant/", "r", "c")
	if err != nil {
		t.Fatalf("NewKey() error = %v", err)
	}
	if a != b {
		t.Errorf("keys differ after normalization: %q vs %q", a.String(), b.String())
	}
	if got := a.Authority(); got != "https://login.example.com/tenant/" {
		t.Errorf("Authority() = %q", got)
	}
}

func TestKey_ResourceAndClientIDAreCaseSensitive(t *testing.T) {
	a, _ := NewKey("https://login.example.com/t", "Resource", "Client")
	b, _ := NewKey("https://login.example.com/t", "resource", "Client")
	c, _ := NewKey("https://login.example.com/t", "Resource", "client")

	if a == b {
		t.Error("keys with different resource casing must differ")
	}
	if a == c {
		t.Error("keys with different client ID casing must differ")
	}
}

func TestKey_MRRT(t *testing.T) {
	key, err := NewKey("https://login.example.com/t", "https://graph.example.com/", "c")
	if err != nil {
		t.Fatalf("NewKey() error = %v", err)
	}

	mrrt := key.MRRT()
	if mrrt.HasResource() {
		t.Error("MRRT() key still has a resource")
	}
	if mrrt.Authority() != key.Authority() || mrrt.ClientID() != key.ClientID() {
		t.Error("MRRT() changed authority or client ID")
	}
	// Original is unchanged.
	if !key.HasResource() {
		t.Error("MRRT() mutated the original key")
	}
}
