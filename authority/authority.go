package authority

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

const (
	authorizePath = "oauth2/authorize"
	tokenPath     = "oauth2/token"

	// adfsSegment identifies an ADFS-style authority by its first path
	// segment, e.g. https://fs.contoso.com/adfs.
	adfsSegment = "adfs"
)

// Authority is a parsed, normalized authority URL.
// The zero value is not usable; construct one with Parse.
type Authority struct {
	// URL is the normalized authority: lowercased, no query or fragment,
	// exactly one trailing slash.
	URL string

	// Host is the authority host (without port for well-known ports).
	Host string

	// Tenant is the first path segment, e.g. "common" or a tenant domain.
	Tenant string

	// ADFS indicates an ADFS-style authority, which is validated by a
	// federation metadata probe rather than instance discovery.
	ADFS bool
}

// Parse validates the shape of a raw authority string and normalizes it.
// The authority must be an absolute HTTPS URL (HTTP is allowed only for
// loopback hosts, which are used by local test authorities) with at least one
// path segment and no query or fragment.
func Parse(raw string) (Authority, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Authority{}, fmt.Errorf("authority cannot be empty")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return Authority{}, fmt.Errorf("authority is not a valid URL: %w", err)
	}
	if u.Host == "" {
		return Authority{}, fmt.Errorf("authority %q has no host", raw)
	}
	if u.RawQuery != "" || u.Fragment != "" {
		return Authority{}, fmt.Errorf("authority %q must not carry a query or fragment", raw)
	}

	switch u.Scheme {
	case "https":
	case "http":
		if !isLoopback(u.Hostname()) {
			return Authority{}, fmt.Errorf("authority %q must use HTTPS", raw)
		}
	default:
		return Authority{}, fmt.Errorf("authority %q has unsupported scheme %q", raw, u.Scheme)
	}

	segments := splitPath(u.Path)
	if len(segments) == 0 {
		return Authority{}, fmt.Errorf("authority %q is missing a tenant path segment", raw)
	}

	normalized := strings.ToLower(u.Scheme + "://" + u.Host + "/" + strings.Join(segments, "/") + "/")

	return Authority{
		URL:    normalized,
		Host:   strings.ToLower(u.Hostname()),
		Tenant: strings.ToLower(segments[0]),
		ADFS:   strings.EqualFold(segments[0], adfsSegment),
	}, nil
}

// Normalize returns the canonical form of a raw authority string: lowercased
// with a single trailing slash. It is the normalization applied to cache keys.
func Normalize(raw string) (string, error) {
	a, err := Parse(raw)
	if err != nil {
		return "", err
	}
	return a.URL, nil
}

// AuthorizationEndpoint returns the authorization endpoint for this authority.
func (a Authority) AuthorizationEndpoint() string {
	return a.URL + authorizePath
}

// TokenEndpoint returns the token endpoint for this authority.
func (a Authority) TokenEndpoint() string {
	return a.URL + tokenPath
}

func splitPath(p string) []string {
	var segments []string
	for _, s := range strings.Split(p, "/") {
		if s != "" {
			segments = append(segments, s)
		}
	}
	return segments
}

func isLoopback(host string) bool {
	if strings.EqualFold(host, "localhost") {
		return true
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.IsLoopback()
	}
	return false
}
