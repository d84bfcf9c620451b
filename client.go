package authclient

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"github.com/giantswarm/authclient/authority"
	"github.com/giantswarm/authclient/broker"
	"github.com/giantswarm/authclient/cache"
)

// Client acquires tokens for one (authority, client ID) pair.
//
// A Client is safe for concurrent use: multiple acquisition requests may be
// in flight at once, sharing the token cache. Interactive acquisition is
// additionally gated by the exclusion lock so at most one UI prompt exists
// process-wide.
type Client struct {
	config    Config
	authority authority.Authority

	tokens    *tokenClient
	validator *authority.Validator
	broker    *broker.Engine
	lock      *ExclusionLock

	logger *slog.Logger
	tracer trace.Tracer
}

// New creates a Client from the configuration. The authority is parsed and
// normalized immediately; validation against the trusted discovery endpoint
// is deferred to the first acquisition when ValidateAuthority is set.
func New(cfg Config, lock *ExclusionLock) (*Client, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	auth, err := authority.Parse(cfg.Authority)
	if err != nil {
		return nil, WrapError(KindInvalidArgument, "invalid authority", err)
	}

	if lock == nil {
		lock = NewExclusionLock()
	}

	logger := cfg.Logger.With("client_id", cfg.ClientID)

	c := &Client{
		config:    cfg,
		authority: auth,
		lock:      lock,
		logger:    logger,
		broker:    broker.NewEngine(logger),
		tokens: newTokenClient(auth.TokenEndpoint(), cfg.HTTPClient, cfg.RateLimit,
			logger, cfg.Instrumentation),
		validator: authority.NewValidator(authority.ValidatorConfig{
			HTTPClient:           cfg.HTTPClient,
			TrustedDiscoveryHost: cfg.TrustedAuthorityHost,
			Logger:               logger,
		}),
	}

	if mc, ok := cfg.Cache.(*cache.MemoryCache); ok {
		mc.SetLogger(logger)
		if cfg.Storage != nil {
			mc.SetPersister(cfg.Storage)
		}
		if cfg.Instrumentation != nil {
			mc.SetInstrumentation(cfg.Instrumentation)
		}
	}
	if cfg.Instrumentation != nil {
		c.tracer = cfg.Instrumentation.Tracer("client")
	}

	return c, nil
}

// Authority returns the normalized authority the client acquires tokens from.
func (c *Client) Authority() string {
	return c.authority.URL
}

// Cache returns the token cache backing the client.
func (c *Client) Cache() cache.TokenCache {
	return c.config.Cache
}

// LoadPersistedCache restores the token cache from the storage collaborator.
// Call once at startup, before issuing acquisition requests.
func (c *Client) LoadPersistedCache(ctx context.Context) error {
	mc, ok := c.config.Cache.(*cache.MemoryCache)
	if !ok {
		return nil
	}
	if err := mc.LoadPersisted(ctx); err != nil {
		return WrapError(KindCachePersistenceFailed, "failed to restore cache snapshot", err)
	}
	return nil
}

// ensureAuthorityValidated validates the authority when validation is
// enabled. The validator caches outcomes per host, so after the first
// definitive answer this never touches the network; transient discovery
// failures are retried on the next acquisition.
func (c *Client) ensureAuthorityValidated(ctx context.Context) error {
	if !c.config.ValidateAuthority {
		return nil
	}

	_, err := c.validator.Validate(ctx, c.authority, c.config.TrustedAuthorityHost)
	c.recordValidation(ctx, err == nil)
	if err != nil {
		return WrapError(KindAuthorityValidationFailed, "authority validation failed", err)
	}
	return nil
}

func (c *Client) recordValidation(ctx context.Context, ok bool) {
	if c.config.Instrumentation == nil {
		return
	}
	result := "valid"
	if !ok {
		result = "rejected"
	}
	c.config.Instrumentation.Metrics().RecordAuthorityValidation(ctx, result)
}

func (c *Client) recordCacheLookup(ctx context.Context, result string) {
	if c.config.Instrumentation == nil {
		return
	}
	c.config.Instrumentation.Metrics().RecordCacheLookup(ctx, result)
}
