package authclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/giantswarm/authclient/instrumentation"
)

// Grant types sent to the token endpoint
const (
	grantTypeAuthorizationCode = "authorization_code"
	grantTypeRefreshToken      = "refresh_token"
)

// Correlation headers attached to every token endpoint request
const (
	headerClientRequestID       = "client-request-id"
	headerReturnClientRequestID = "return-client-request-id"
)

// maxErrorBodySize bounds how much of an error response body is read.
const maxErrorBodySize = 64 * 1024

// tokenClient issues requests against the authority's token endpoint with
// client-side throttling and correlation IDs.
type tokenClient struct {
	endpoint   string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
	inst       *instrumentation.Instrumentation
}

func newTokenClient(endpoint string, httpClient *http.Client, cfg RateLimitConfig, logger *slog.Logger, inst *instrumentation.Instrumentation) *tokenClient {
	var limiter *rate.Limiter
	if cfg.Rate > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.Rate), cfg.Burst)
	}
	return &tokenClient{
		endpoint:   endpoint,
		httpClient: httpClient,
		limiter:    limiter,
		logger:     logger,
		inst:       inst,
	}
}

// exchange POSTs the form to the token endpoint and parses the response.
// Server-reported OAuth errors come back as *AuthError with KindServerError;
// transport failures as KindConnectionFailed.
func (c *tokenClient) exchange(ctx context.Context, form url.Values) (*tokenResponse, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, WrapError(KindConnectionFailed, "request cancelled while throttled", err)
		}
	}

	correlationID := uuid.NewString()
	grantType := form.Get("grant_type")
	started := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, WrapError(KindUnexpectedInternal, "failed to build token request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(headerClientRequestID, correlationID)
	req.Header.Set(headerReturnClientRequestID, "true")

	c.logger.Debug("Calling token endpoint",
		"grant_type", grantType,
		"correlation_id", correlationID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.recordExchange(ctx, grantType, "transport_error", started)
		return nil, WrapError(KindConnectionFailed, "token endpoint request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
	if err != nil {
		c.recordExchange(ctx, grantType, "transport_error", started)
		return nil, WrapError(KindConnectionFailed, "failed to read token response", err)
	}

	var parsed tokenResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		c.recordExchange(ctx, grantType, "malformed_response", started)
		return nil, WrapError(KindServerError,
			fmt.Sprintf("token endpoint returned unparseable response (status %d)", resp.StatusCode), err)
	}

	if parsed.Error != "" {
		c.recordExchange(ctx, grantType, "oauth_error", started)
		c.logger.Debug("Token endpoint returned error",
			"error", parsed.Error,
			"correlation_id", correlationID)
		return nil, NewServerError(parsed.Error, parsed.ErrorDescription, parsed.ErrorCodes)
	}
	if resp.StatusCode != http.StatusOK || parsed.AccessToken == "" {
		c.recordExchange(ctx, grantType, "oauth_error", started)
		return nil, NewServerError(ProtocolCodeServerError,
			fmt.Sprintf("token endpoint returned status %d without a token", resp.StatusCode), nil)
	}

	c.recordExchange(ctx, grantType, "success", started)
	return &parsed, nil
}

// redeemAuthorizationCode exchanges an authorization code for tokens.
func (c *tokenClient) redeemAuthorizationCode(ctx context.Context, clientID, resource, redirectURI, code string) (*tokenResponse, error) {
	form := url.Values{
		"grant_type":   {grantTypeAuthorizationCode},
		"client_id":    {clientID},
		"code":         {code},
		"redirect_uri": {redirectURI},
	}
	if resource != "" {
		form.Set("resource", resource)
	}
	return c.exchange(ctx, form)
}

// redeemRefreshToken exchanges a refresh token for fresh tokens.
func (c *tokenClient) redeemRefreshToken(ctx context.Context, clientID, resource, refreshToken string) (*tokenResponse, error) {
	form := url.Values{
		"grant_type":    {grantTypeRefreshToken},
		"client_id":     {clientID},
		"refresh_token": {refreshToken},
	}
	if resource != "" {
		form.Set("resource", resource)
	}
	return c.exchange(ctx, form)
}

func (c *tokenClient) recordExchange(ctx context.Context, grantType, result string, started time.Time) {
	if c.inst == nil {
		return
	}
	c.inst.Metrics().RecordTokenExchange(ctx, grantType, result,
		float64(time.Since(started).Milliseconds()))
}
