package authority

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
)

func newDiscoveryServer(t *testing.T, hits *atomic.Int64, handler func(w http.ResponseWriter, r *http.Request)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			hits.Add(1)
		}
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func acceptAllDiscovery(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"tenant_discovery_endpoint": "https://login.example.com/common/.well-known/openid-configuration",
	})
}

func rejectAllDiscovery(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":             "invalid_instance",
		"error_description": "unknown authority host",
	})
}

func mustParse(t *testing.T, raw string) Authority {
	t.Helper()
	a, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse(%q) error = %v", raw, err)
	}
	return a
}

func TestValidator_ValidatesAndCaches(t *testing.T) {
	var hits atomic.Int64
	srv := newDiscoveryServer(t, &hits, acceptAllDiscovery)

	v := NewValidator(ValidatorConfig{TrustedDiscoveryHost: srv.URL})
	a := mustParse(t, "https://login.example.com/common")

	for i := 0; i < 3; i++ {
		validated, err := v.Validate(context.Background(), a, "")
		if err != nil {
			t.Fatalf("Validate() attempt %d error = %v", i, err)
		}
		if validated.TenantDiscoveryEndpoint == "" {
			t.Error("TenantDiscoveryEndpoint is empty")
		}
	}

	if got := hits.Load(); got != 1 {
		t.Errorf("discovery endpoint hit %d times, want 1 (cached after first)", got)
	}
}

func TestValidator_CachesRejection(t *testing.T) {
	var hits atomic.Int64
	srv := newDiscoveryServer(t, &hits, rejectAllDiscovery)

	v := NewValidator(ValidatorConfig{TrustedDiscoveryHost: srv.URL})
	a := mustParse(t, "https://evil.example.net/common")

	for i := 0; i < 3; i++ {
		_, err := v.Validate(context.Background(), a, "")
		if !errors.Is(err, ErrAuthorityRejected) {
			t.Fatalf("Validate() attempt %d error = %v, want ErrAuthorityRejected", i, err)
		}
	}

	if got := hits.Load(); got != 1 {
		t.Errorf("discovery endpoint hit %d times, want 1 (rejection cached)", got)
	}
}

func TestValidator_TransientFailureNotCached(t *testing.T) {
	var hits atomic.Int64
	var failing atomic.Bool
	failing.Store(true)
	srv := newDiscoveryServer(t, &hits, func(w http.ResponseWriter, r *http.Request) {
		if failing.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprint(w, "{}")
			return
		}
		acceptAllDiscovery(w, r)
	})

	v := NewValidator(ValidatorConfig{TrustedDiscoveryHost: srv.URL})
	a := mustParse(t, "https://login.example.com/common")

	if _, err := v.Validate(context.Background(), a, ""); err == nil {
		t.Fatal("Validate() expected transient error, got nil")
	}

	// Recovery: the failure must not have been cached.
	failing.Store(false)
	if _, err := v.Validate(context.Background(), a, ""); err != nil {
		t.Fatalf("Validate() after recovery error = %v", err)
	}

	if got := hits.Load(); got != 2 {
		t.Errorf("discovery endpoint hit %d times, want 2", got)
	}
}

func TestValidator_CoalescesConcurrentValidation(t *testing.T) {
	var hits atomic.Int64
	release := make(chan struct{})
	srv := newDiscoveryServer(t, &hits, func(w http.ResponseWriter, r *http.Request) {
		<-release
		acceptAllDiscovery(w, r)
	})

	v := NewValidator(ValidatorConfig{TrustedDiscoveryHost: srv.URL})
	a := mustParse(t, "https://login.example.com/common")

	const callers = 8
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = v.Validate(context.Background(), a, "")
		}(i)
	}

	close(release)
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("caller %d error = %v", i, err)
		}
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("discovery endpoint hit %d times, want 1 (coalesced)", got)
	}
}

func TestValidator_ADFSTrustedHint(t *testing.T) {
	// No server: a matching hint must validate without any network traffic.
	v := NewValidator(ValidatorConfig{TrustedDiscoveryHost: "https://unreachable.invalid"})
	a := mustParse(t, "https://fs.contoso.com/adfs")

	validated, err := v.Validate(context.Background(), a, "https://fs.contoso.com/adfs")
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if !validated.Authority.ADFS {
		t.Error("validated authority should be ADFS")
	}
}

func TestValidator_ClearCache(t *testing.T) {
	var hits atomic.Int64
	srv := newDiscoveryServer(t, &hits, acceptAllDiscovery)

	v := NewValidator(ValidatorConfig{TrustedDiscoveryHost: srv.URL})
	a := mustParse(t, "https://login.example.com/common")

	if _, err := v.Validate(context.Background(), a, ""); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	v.ClearCache()
	if _, err := v.Validate(context.Background(), a, ""); err != nil {
		t.Fatalf("Validate() after ClearCache error = %v", err)
	}

	if got := hits.Load(); got != 2 {
		t.Errorf("discovery endpoint hit %d times, want 2 after cache clear", got)
	}
}
