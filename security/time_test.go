package security

import (
	"testing"
	"time"
)

func TestIsAccessTokenExpired(t *testing.T) {
	buffer := 5 * time.Minute

	tests := []struct {
		name      string
		expiresOn time.Time
		want      bool
	}{
		{
			name:      "zero expiry is not expired",
			expiresOn: time.Time{},
			want:      false,
		},
		{
			name:      "well in the future",
			expiresOn: time.Now().Add(time.Hour),
			want:      false,
		},
		{
			name:      "already past",
			expiresOn: time.Now().Add(-time.Minute),
			want:      true,
		},
		{
			name:      "inside the buffer",
			expiresOn: time.Now().Add(buffer - time.Second),
			want:      true,
		},
		{
			name:      "just outside the buffer",
			expiresOn: time.Now().Add(buffer + time.Second),
			want:      false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsAccessTokenExpired(tt.expiresOn, buffer); got != tt.want {
				t.Errorf("IsAccessTokenExpired(%v) = %v, want %v", tt.expiresOn, got, tt.want)
			}
		})
	}
}

func TestIsTimestampExpired(t *testing.T) {
	tests := []struct {
		name      string
		expiresAt time.Time
		want      bool
	}{
		{"zero is not expired", time.Time{}, false},
		{"future", time.Now().Add(time.Minute), false},
		{"within grace period", time.Now().Add(-DefaultClockSkewGracePeriod / 2), false},
		{"beyond grace period", time.Now().Add(-DefaultClockSkewGracePeriod - time.Second), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTimestampExpired(tt.expiresAt); got != tt.want {
				t.Errorf("IsTimestampExpired(%v) = %v, want %v", tt.expiresAt, got, tt.want)
			}
		})
	}
}

func TestExpiryFromLifetime(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	if got := ExpiryFromLifetime(now, 3600); !got.Equal(now.Add(time.Hour)) {
		t.Errorf("ExpiryFromLifetime(3600) = %v, want %v", got, now.Add(time.Hour))
	}
	if got := ExpiryFromLifetime(now, 0); !got.IsZero() {
		t.Errorf("ExpiryFromLifetime(0) = %v, want zero time", got)
	}
	if got := ExpiryFromLifetime(now, -10); !got.IsZero() {
		t.Errorf("ExpiryFromLifetime(-10) = %v, want zero time", got)
	}
}
