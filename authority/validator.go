package authority

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	// DefaultTrustedDiscoveryHost is the well-known directory instance used
	// to answer instance discovery queries for directory authorities.
	DefaultTrustedDiscoveryHost = "login.microsoftonline.com"

	instanceDiscoveryAPIVersion = "1.1"

	federationMetadataPath = "/federationmetadata/2007-06/federationmetadata.xml"
)

// ErrAuthorityRejected indicates the trusted discovery endpoint explicitly
// rejected the authority host. The rejection is cached: subsequent Validate
// calls for the same host fail without network traffic.
var ErrAuthorityRejected = errors.New("authority host rejected by instance discovery")

// instanceDiscoveryResponse is the body returned by the instance discovery
// endpoint. A populated TenantDiscoveryEndpoint signals a known host; an
// error body signals an explicit rejection.
type instanceDiscoveryResponse struct {
	TenantDiscoveryEndpoint string `json:"tenant_discovery_endpoint"`
	Error                   string `json:"error"`
	ErrorDescription        string `json:"error_description"`
}

// Validated describes a successfully validated authority.
type Validated struct {
	Authority Authority

	// TenantDiscoveryEndpoint is the OIDC configuration endpoint reported by
	// instance discovery. Empty for ADFS authorities and hint-trusted hosts.
	TenantDiscoveryEndpoint string
}

// hostRecord is the cached outcome of a validation attempt for one host.
// Records live for the process lifetime; only an explicit ClearCache removes
// them. Transient network failures are never recorded.
type hostRecord struct {
	validated               bool
	tenantDiscoveryEndpoint string
}

// ValidatorConfig configures a Validator.
type ValidatorConfig struct {
	// HTTPClient used for discovery requests. Nil uses a default client with
	// a 10 second timeout.
	HTTPClient *http.Client

	// TrustedDiscoveryHost overrides the instance discovery host.
	TrustedDiscoveryHost string

	// Logger for structured logging. Nil uses slog.Default().
	Logger *slog.Logger
}

// Validator validates authority hosts against a trusted discovery endpoint
// and caches the outcomes. It is safe for concurrent use; concurrent
// validations of the same host share one network call.
type Validator struct {
	mu    sync.RWMutex
	hosts map[string]*hostRecord

	group       singleflight.Group
	httpClient  *http.Client
	trustedHost string
	logger      *slog.Logger
}

// NewValidator creates a Validator.
func NewValidator(cfg ValidatorConfig) *Validator {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	trustedHost := cfg.TrustedDiscoveryHost
	if trustedHost == "" {
		trustedHost = DefaultTrustedDiscoveryHost
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Validator{
		hosts:       make(map[string]*hostRecord),
		httpClient:  httpClient,
		trustedHost: trustedHost,
		logger:      logger,
	}
}

// Validate checks the authority against the validation cache and, on a miss,
// performs discovery. trustedHint is an optional authority URL the caller
// already trusts: an ADFS authority whose host matches the hint is accepted
// without a network probe.
//
// Outcomes, including explicit rejections, are cached per host. A transient
// network failure is returned to the caller but not cached, so the next call
// retries discovery.
func (v *Validator) Validate(ctx context.Context, a Authority, trustedHint string) (*Validated, error) {
	if rec, ok := v.lookup(a.Host); ok {
		if !rec.validated {
			return nil, fmt.Errorf("%w: %s", ErrAuthorityRejected, a.Host)
		}
		return &Validated{Authority: a, TenantDiscoveryEndpoint: rec.tenantDiscoveryEndpoint}, nil
	}

	// Coalesce concurrent discovery for the same host into one request.
	res, err, _ := v.group.Do(a.Host, func() (interface{}, error) {
		if rec, ok := v.lookup(a.Host); ok {
			return rec, nil
		}

		var rec *hostRecord
		var err error
		if a.ADFS {
			rec, err = v.validateADFS(ctx, a, trustedHint)
		} else {
			rec, err = v.validateDirectory(ctx, a)
		}
		if err != nil {
			return nil, err
		}

		v.store(a.Host, rec)
		return rec, nil
	})
	if err != nil {
		return nil, err
	}

	rec := res.(*hostRecord)
	if !rec.validated {
		return nil, fmt.Errorf("%w: %s", ErrAuthorityRejected, a.Host)
	}
	return &Validated{Authority: a, TenantDiscoveryEndpoint: rec.tenantDiscoveryEndpoint}, nil
}

// validateDirectory issues an instance discovery request for a directory
// authority. A 200 with a tenant discovery endpoint validates the host; an
// error body rejects it. Any other response is a transient failure.
func (v *Validator) validateDirectory(ctx context.Context, a Authority) (*hostRecord, error) {
	q := url.Values{}
	q.Set("api-version", instanceDiscoveryAPIVersion)
	q.Set("authorization_endpoint", a.AuthorizationEndpoint())
	base := v.trustedHost
	if !strings.Contains(base, "://") {
		base = "https://" + base
	}
	discoveryURL := base + "/common/discovery/instance?" + q.Encode()

	v.logger.Debug("Performing authority instance discovery",
		"host", a.Host, "discovery_url", discoveryURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, discoveryURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create instance discovery request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("instance discovery request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var body instanceDiscoveryResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode instance discovery response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK && body.TenantDiscoveryEndpoint != "":
		v.logger.Info("Authority validated",
			"host", a.Host,
			"tenant_discovery_endpoint", body.TenantDiscoveryEndpoint)
		return &hostRecord{validated: true, tenantDiscoveryEndpoint: body.TenantDiscoveryEndpoint}, nil

	case resp.StatusCode == http.StatusBadRequest && body.Error != "":
		// Explicit rejection: the host is not a known directory instance.
		v.logger.Warn("Authority rejected by instance discovery",
			"host", a.Host,
			"error", body.Error,
			"error_description", body.ErrorDescription)
		return &hostRecord{validated: false}, nil

	default:
		return nil, fmt.Errorf("instance discovery returned unexpected status %d", resp.StatusCode)
	}
}

// validateADFS validates an ADFS authority. A matching trusted hint accepts
// the host directly; otherwise the federation metadata document is probed.
func (v *Validator) validateADFS(ctx context.Context, a Authority, trustedHint string) (*hostRecord, error) {
	if trustedHint != "" {
		hint, err := Parse(trustedHint)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted authority hint: %w", err)
		}
		if hint.Host == a.Host {
			v.logger.Debug("ADFS authority accepted via trusted hint", "host", a.Host)
			return &hostRecord{validated: true}, nil
		}
	}

	probeURL := "https://" + a.Host + federationMetadataPath
	v.logger.Debug("Probing federation metadata", "host", a.Host, "url", probeURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, probeURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create federation metadata request: %w", err)
	}

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("federation metadata probe failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusOK {
		return &hostRecord{validated: true}, nil
	}
	if resp.StatusCode == http.StatusNotFound {
		return &hostRecord{validated: false}, nil
	}
	return nil, fmt.Errorf("federation metadata probe returned unexpected status %d", resp.StatusCode)
}

func (v *Validator) lookup(host string) (*hostRecord, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	rec, ok := v.hosts[host]
	return rec, ok
}

func (v *Validator) store(host string, rec *hostRecord) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.hosts[host] = rec
}

// ClearCache drops all cached validation outcomes, forcing rediscovery on the
// next Validate call.
func (v *Validator) ClearCache() {
	v.mu.Lock()
	defer v.mu.Unlock()
	count := len(v.hosts)
	v.hosts = make(map[string]*hostRecord)
	v.logger.Debug("Authority validation cache cleared", "entries_removed", count)
}
