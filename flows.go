package authclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strconv"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/giantswarm/authclient/cache"
	"github.com/giantswarm/authclient/instrumentation"
)

// defaultFamilyID is the refresh token family every family-capable client
// belongs to unless configured otherwise.
const defaultFamilyID = "1"

// AcquireTokenSilent acquires a token for the resource without any user
// interaction: cached access token first, then the per-client refresh token,
// then the family refresh token. When the silent path is exhausted the result
// is a failure of kind KindUserInputNeeded and no UI is invoked.
//
// userID may be empty when at most one user has credentials cached for the
// client; with two or more users cached the lookup fails with
// KindAmbiguousUser rather than guessing.
func (c *Client) AcquireTokenSilent(ctx context.Context, resource, userID string) (*Result, error) {
	return c.acquire(ctx, resource, userID, true)
}

// AcquireToken acquires a token for the resource, falling back to the
// interactive authorizer when the silent path is exhausted. At most one
// interactive request runs per process; concurrent attempts fail with
// KindMultipleInteractiveRequests without invoking the authorizer.
func (c *Client) AcquireToken(ctx context.Context, resource, userID string) (*Result, error) {
	return c.acquire(ctx, resource, userID, false)
}

func (c *Client) acquire(ctx context.Context, resource, userID string, silentOnly bool) (*Result, error) {
	ctx, span := c.startSpan(ctx, "acquire_token", resource, userID)
	defer span.End()

	// Argument validation happens before any I/O.
	if resource == "" {
		return c.fail(span, NewAuthError(KindInvalidArgument, "resource is required"))
	}
	key, err := cache.NewKey(c.authority.URL, resource, c.config.ClientID)
	if err != nil {
		return c.fail(span, WrapError(KindInvalidArgument, "cannot derive cache key", err))
	}
	if !silentOnly {
		if c.config.Authorizer == nil {
			return c.fail(span, NewAuthError(KindInvalidArgument, "authorizer is required for interactive acquisition"))
		}
		if c.config.RedirectURI == "" {
			return c.fail(span, NewAuthError(KindInvalidArgument, "redirect URI is required for interactive acquisition"))
		}
	}

	if err := c.ensureAuthorityValidated(ctx); err != nil {
		return c.fail(span, err)
	}

	result, silentErr := c.acquireSilently(ctx, key, userID)
	if result != nil {
		instrumentation.SetSpanSuccess(span)
		return result, nil
	}

	// Non-recoverable silent failures end the flow even when interactive
	// fallback was allowed: a real outage should not hide behind a prompt.
	var authErr *AuthError
	if errors.As(silentErr, &authErr) && authErr.Kind != KindUserInputNeeded {
		return c.fail(span, silentErr)
	}

	if silentOnly {
		return c.fail(span, silentErr)
	}

	return c.acquireInteractively(ctx, span, key, userID)
}

// acquireSilently walks the silent path: access token lookup, per-client
// refresh token exchange, family refresh token exchange. It returns a result
// on success, or nil and the terminal silent error.
func (c *Client) acquireSilently(ctx context.Context, key cache.Key, userID string) (*Result, error) {
	// Access token lookup: a fresh hit short-circuits the whole flow.
	item, err := c.config.Cache.Get(ctx, key, userID)
	if err != nil {
		if errors.Is(err, cache.ErrAmbiguousUser) {
			c.recordCacheLookup(ctx, "ambiguous")
			return nil, WrapError(KindAmbiguousUser, "multiple users cached, user ID required", err)
		}
		return nil, WrapError(KindUnexpectedInternal, "cache lookup failed", err)
	}
	if item != nil && item.AccessToken != "" && !item.IsExpired(c.config.ExpirationBuffer) {
		c.recordCacheLookup(ctx, "hit")
		c.logger.Debug("Access token served from cache",
			"resource", key.Resource(), "user_id", item.User.UserID)
		return succeededResult(*item), nil
	}
	if item != nil {
		c.recordCacheLookup(ctx, "expired")
	} else {
		c.recordCacheLookup(ctx, "miss")
	}

	// Refresh token lookup: the exact-resource entry first, then the
	// multi-resource entry for the same authority and client.
	rtItem := item
	if rtItem == nil || rtItem.RefreshToken == "" {
		rtItem, err = c.config.Cache.Get(ctx, key.MRRT(), userID)
		if err != nil {
			if errors.Is(err, cache.ErrAmbiguousUser) {
				return nil, WrapError(KindAmbiguousUser, "multiple users cached, user ID required", err)
			}
			return nil, WrapError(KindUnexpectedInternal, "cache lookup failed", err)
		}
	}

	var perClientErr *AuthError
	if rtItem != nil && rtItem.RefreshToken != "" {
		result, exchangeErr := c.exchangeRefreshToken(ctx, key, *rtItem)
		if result != nil {
			return result, nil
		}
		if !errors.As(exchangeErr, &perClientErr) || !refreshTokenRejected(perClientErr) {
			// Transport failures and unexpected server errors surface
			// immediately, without family fallback.
			return nil, exchangeErr
		}
		// The server rejected the refresh token: evict it and fall back.
		c.logger.Debug("Refresh token rejected by server, evicting",
			"protocol_code", perClientErr.ProtocolCode, "user_id", rtItem.User.UserID)
		_ = c.config.Cache.Remove(ctx, *rtItem)
	}

	// Family refresh token fallback. Its own errors are discarded: the
	// per-client error is the one actionable to the caller.
	if frt := c.lookupFamilyRefreshToken(ctx, userID); frt != nil {
		result, frtErr := c.exchangeRefreshToken(ctx, key, *frt)
		if result != nil {
			return result, nil
		}
		var familyErr *AuthError
		if errors.As(frtErr, &familyErr) && refreshTokenRejected(familyErr) {
			_ = c.config.Cache.Remove(ctx, *frt)
		}
		c.logger.Debug("Family refresh token exchange failed", "error", frtErr)
	}

	err = NewAuthError(KindUserInputNeeded, "no usable cached credentials, interaction required")
	if perClientErr != nil {
		err = WrapError(KindUserInputNeeded, "refresh token exchange failed, interaction required", perClientErr)
	}
	return nil, err
}

// exchangeRefreshToken redeems the item's refresh token for the target key's
// resource and updates the cache on success.
func (c *Client) exchangeRefreshToken(ctx context.Context, key cache.Key, item cache.Item) (*Result, error) {
	resp, err := c.tokens.redeemRefreshToken(ctx, c.config.ClientID, key.Resource(), item.RefreshToken)
	if err != nil {
		return nil, err
	}

	// The server may not rotate the refresh token; keep the old one then.
	if resp.RefreshToken == "" {
		resp.RefreshToken = item.RefreshToken
	}

	stored, err := c.updateCache(ctx, resp, key.Resource(), item.User, item.SessionKey)
	if err != nil {
		return nil, err
	}
	return succeededResult(stored), nil
}

// lookupFamilyRefreshToken finds a family refresh token for the user under
// the client's authority, cached by any client in the family.
func (c *Client) lookupFamilyRefreshToken(ctx context.Context, userID string) *cache.Item {
	familyID := c.config.FamilyID
	if familyID == "" {
		familyID = defaultFamilyID
	}

	items, err := c.config.Cache.GetAll(ctx, nil, userID)
	if err != nil {
		c.logger.Warn("Family refresh token scan failed", "error", err)
		return nil
	}
	for i := range items {
		item := items[i]
		if !item.IsFamilyRefreshToken() || item.FamilyID != familyID {
			continue
		}
		if item.Key.Authority() != c.authority.URL || item.Key.HasResource() || item.RefreshToken == "" {
			continue
		}
		return &item
	}
	return nil
}

// acquireInteractively runs the UI flow under the exclusion lock. The lock is
// released on every exit path.
func (c *Client) acquireInteractively(ctx context.Context, span trace.Span, key cache.Key, userID string) (*Result, error) {
	requestID := uuid.NewString()
	if !c.lock.TryAcquire(requestID) {
		c.recordPrompt(ctx, "rejected_concurrent")
		return c.fail(span, NewAuthError(KindMultipleInteractiveRequests,
			"another interactive request is already in progress"))
	}
	defer c.lock.Release(requestID)

	startURL := c.authorizationURL(key.Resource(), userID, requestID)
	c.logger.Info("Starting interactive authorization",
		"resource", key.Resource(), "request_id", requestID)

	outcome, err := c.config.Authorizer.StartAuthorization(ctx, startURL, c.config.RedirectURI)
	if err != nil {
		c.recordPrompt(ctx, "failed")
		var authErr *AuthError
		if errors.As(err, &authErr) {
			return c.fail(span, authErr)
		}
		return c.fail(span, WrapError(KindUnexpectedInternal, "authorization collaborator failed", err))
	}

	switch {
	case outcome.Cancelled:
		// Explicit cancellation is a terminal status, not an error. No cache
		// mutation happens.
		c.recordPrompt(ctx, "cancelled")
		c.logger.Info("User cancelled interactive authorization", "request_id", requestID)
		instrumentation.SetSpanSuccess(span)
		return cancelledResult(), nil

	case outcome.Broker != nil:
		result, err := c.redeemBrokerResponse(ctx, outcome, key)
		if err != nil {
			c.recordPrompt(ctx, "failed")
			return c.fail(span, err)
		}
		c.recordPrompt(ctx, "succeeded")
		instrumentation.SetSpanSuccess(span)
		return result, nil

	case outcome.Code != "":
		resp, err := c.tokens.redeemAuthorizationCode(ctx, c.config.ClientID, key.Resource(), c.config.RedirectURI, outcome.Code)
		if err != nil {
			c.recordPrompt(ctx, "failed")
			return c.fail(span, err)
		}
		stored, err := c.updateCache(ctx, resp, key.Resource(), cache.UserInfo{UserID: userID}, nil)
		if err != nil {
			c.recordPrompt(ctx, "failed")
			return c.fail(span, err)
		}
		c.recordPrompt(ctx, "succeeded")
		instrumentation.SetSpanSuccess(span)
		return succeededResult(stored), nil

	default:
		c.recordPrompt(ctx, "failed")
		return c.fail(span, NewAuthError(KindUnexpectedInternal,
			"authorization outcome carries neither code, broker response, nor cancellation"))
	}
}

// redeemBrokerResponse verifies and decrypts a brokered sign-in response and
// updates the cache from its token payload.
func (c *Client) redeemBrokerResponse(ctx context.Context, outcome *Outcome, key cache.Key) (*Result, error) {
	if len(c.config.BrokerSessionKey) == 0 {
		return nil, NewAuthError(KindInvalidArgument, "broker session key is required for brokered responses")
	}

	resp, err := c.broker.Decrypt(outcome.Broker, c.config.BrokerSessionKey)
	c.recordBrokerDecrypt(ctx, outcome.Broker.ProtocolVersion, err == nil)
	if err != nil {
		return nil, WrapError(KindBrokerDecryptionFailed, "failed to decrypt broker response", err)
	}
	if resp.Error != "" {
		return nil, NewServerError(resp.Error, resp.ErrorDescription, nil)
	}

	wire := &tokenResponse{
		AccessToken:  resp.AccessToken,
		TokenType:    resp.TokenType,
		RefreshToken: resp.RefreshToken,
		IDToken:      resp.IDToken,
		Resource:     resp.Resource,
		FamilyID:     resp.FamilyID,
	}
	if resp.ExpiresIn > 0 {
		wire.ExpiresIn = json.Number(strconv.FormatInt(resp.ExpiresIn, 10))
	}

	stored, err := c.updateCache(ctx, wire, key.Resource(), cache.UserInfo{}, c.config.BrokerSessionKey)
	if err != nil {
		return nil, err
	}
	return succeededResult(stored), nil
}

// authorizationURL builds the interactive flow start URL.
func (c *Client) authorizationURL(resource, userID, requestID string) string {
	q := url.Values{
		"response_type": {"code"},
		"client_id":     {c.config.ClientID},
		"redirect_uri":  {c.config.RedirectURI},
	}
	if resource != "" {
		q.Set("resource", resource)
	}
	if userID != "" {
		q.Set("login_hint", userID)
	}
	q.Set(headerClientRequestID, requestID)
	return c.authority.AuthorizationEndpoint() + "?" + q.Encode()
}

func (c *Client) fail(span trace.Span, err error) (*Result, error) {
	instrumentation.RecordError(span, err)
	return failedResult(err), err
}

func (c *Client) startSpan(ctx context.Context, operation, resource, userID string) (context.Context, trace.Span) {
	if c.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	ctx, span := c.tracer.Start(ctx, "client."+operation)
	instrumentation.AddAcquisitionAttributes(span, c.config.ClientID, resource, userID)
	return ctx, span
}

func (c *Client) recordPrompt(ctx context.Context, result string) {
	if c.config.Instrumentation == nil {
		return
	}
	c.config.Instrumentation.Metrics().RecordInteractivePrompt(ctx, result)
}

func (c *Client) recordBrokerDecrypt(ctx context.Context, version int, ok bool) {
	if c.config.Instrumentation == nil {
		return
	}
	c.config.Instrumentation.Metrics().RecordBrokerDecrypt(ctx, strconv.Itoa(version), ok)
}
