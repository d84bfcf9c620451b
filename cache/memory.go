package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/giantswarm/authclient/instrumentation"
	"github.com/giantswarm/authclient/internal/util"
	"github.com/giantswarm/authclient/storage"
)

// persistTimeout bounds each best-effort snapshot write to the storage
// collaborator.
const persistTimeout = 10 * time.Second

// recordKey is the composite map key: the cache Key plus the normalized user
// ID. At most one item exists per recordKey.
type recordKey struct {
	key  Key
	user string
}

// MemoryCache is the in-memory TokenCache implementation.
//
// Reads take a shared lock and may proceed concurrently; writes take an
// exclusive lock. After a successful write the whole cache is persisted to
// the optional storage collaborator outside the lock, best-effort: a persist
// failure is logged and never fails the write.
type MemoryCache struct {
	mu    sync.RWMutex
	items map[recordKey]Item
	wipe  *WipeMarker

	persister storage.Store
	logger    *slog.Logger

	instrumentation *instrumentation.Instrumentation
	tracer          trace.Tracer

	itemsCountAtomic atomic.Int64
}

var _ TokenCache = (*MemoryCache)(nil)

// NewMemoryCache creates an empty in-memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		items:  make(map[recordKey]Item),
		logger: slog.Default(),
	}
}

// SetLogger sets a custom logger.
func (c *MemoryCache) SetLogger(logger *slog.Logger) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logger = logger
}

// SetPersister wires the secure storage collaborator. Every successful write
// triggers a best-effort snapshot save.
func (c *MemoryCache) SetPersister(store storage.Store) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.persister = store
}

// SetInstrumentation sets OpenTelemetry instrumentation for the cache.
func (c *MemoryCache) SetInstrumentation(inst *instrumentation.Instrumentation) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.instrumentation = inst
	if inst != nil {
		c.tracer = inst.Tracer("cache")
		c.itemsCountAtomic.Store(int64(len(c.items)))
		if err := inst.RegisterCacheSizeCallback(func() int64 { return c.itemsCountAtomic.Load() }); err != nil {
			c.logger.Warn("Failed to register cache size gauge", "error", err)
		}
	}
}

// LoadPersisted restores the cache from the storage collaborator, if a
// snapshot exists. Intended to run once at startup, before the cache is
// shared.
func (c *MemoryCache) LoadPersisted(ctx context.Context) error {
	c.mu.RLock()
	persister := c.persister
	c.mu.RUnlock()

	if persister == nil {
		return nil
	}
	data, err := persister.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load persisted cache: %w", err)
	}
	if data == nil {
		return nil
	}
	return c.Deserialize(data)
}

// Get returns the item for (key, userID), or nil on a miss. An empty userID
// is allowed only when at most one user has items under the key.
func (c *MemoryCache) Get(ctx context.Context, key Key, userID string) (*Item, error) {
	_, span := c.startSpan(ctx, "get", key)
	defer span.End()

	if key.IsZero() {
		return nil, fmt.Errorf("%w: zero key", ErrInvalidKey)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	if userID != "" {
		item, ok := c.items[recordKey{key: key, user: util.NormalizeUserID(userID)}]
		if !ok {
			return nil, nil
		}
		out := item.clone()
		return &out, nil
	}

	// No user requested: the match must be unambiguous.
	var found *Item
	users := make(map[string]struct{})
	for rk, item := range c.items {
		if rk.key != key {
			continue
		}
		users[rk.user] = struct{}{}
		if len(users) > 1 {
			return nil, ErrAmbiguousUser
		}
		out := item.clone()
		found = &out
	}
	return found, nil
}

// GetAll enumerates items matching the optional key and user filters.
func (c *MemoryCache) GetAll(ctx context.Context, key *Key, userID string) ([]Item, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	user := util.NormalizeUserID(userID)
	var out []Item
	for rk, item := range c.items {
		if key != nil && rk.key != *key {
			continue
		}
		if user != "" && rk.user != user {
			continue
		}
		out = append(out, item.clone())
	}
	return out, nil
}

// AddOrUpdate stores the item, replacing any existing item for the same
// (Key, user ID) pair.
func (c *MemoryCache) AddOrUpdate(ctx context.Context, item Item) error {
	_, span := c.startSpan(ctx, "add_or_update", item.Key)
	defer span.End()

	if item.Key.IsZero() {
		return fmt.Errorf("%w: zero key", ErrInvalidItem)
	}

	rk := recordKey{key: item.Key, user: util.NormalizeUserID(item.User.UserID)}

	c.mu.Lock()
	_, existed := c.items[rk]
	c.items[rk] = item.clone()
	if !existed {
		c.itemsCountAtomic.Add(1)
	}
	c.mu.Unlock()

	c.logger.Debug("Cached credential",
		"key", item.Key.String(),
		"user_id", item.User.UserID,
		"replaced", existed,
		"has_refresh_token", item.RefreshToken != "",
		"family_id", item.FamilyID)

	c.persistAsync()
	return nil
}

// Remove deletes the item's slot. Removing an absent item is not an error.
func (c *MemoryCache) Remove(ctx context.Context, item Item) error {
	_, span := c.startSpan(ctx, "remove", item.Key)
	defer span.End()

	rk := recordKey{key: item.Key, user: util.NormalizeUserID(item.User.UserID)}

	c.mu.Lock()
	_, existed := c.items[rk]
	delete(c.items, rk)
	if existed {
		c.itemsCountAtomic.Add(-1)
	}
	c.mu.Unlock()

	if existed {
		c.logger.Debug("Removed cached credential", "key", item.Key.String(), "user_id", item.User.UserID)
		c.persistAsync()
	}
	return nil
}

// RemoveAllForClient deletes every item cached for the client.
func (c *MemoryCache) RemoveAllForClient(ctx context.Context, clientID string) error {
	return c.removeMatching(ctx, "remove_all_for_client", func(rk recordKey) bool {
		return rk.key.ClientID() == clientID
	})
}

// RemoveAllForUser deletes every item cached for the user under the client.
func (c *MemoryCache) RemoveAllForUser(ctx context.Context, userID, clientID string) error {
	user := util.NormalizeUserID(userID)
	return c.removeMatching(ctx, "remove_all_for_user", func(rk recordKey) bool {
		return rk.user == user && rk.key.ClientID() == clientID
	})
}

// WipeAllForUser deletes every item for the user across all clients and
// records a wipe marker for cross-app invalidation signaling.
func (c *MemoryCache) WipeAllForUser(ctx context.Context, userID string) error {
	user := util.NormalizeUserID(userID)

	c.mu.Lock()
	removed := 0
	for rk := range c.items {
		if rk.user == user {
			delete(c.items, rk)
			removed++
		}
	}
	c.itemsCountAtomic.Add(int64(-removed))
	c.wipe = &WipeMarker{UserID: userID, WipedAt: time.Now().UTC()}
	c.mu.Unlock()

	c.logger.Info("Wiped all credentials for user",
		"user_id", userID,
		"items_removed", removed)

	c.persistAsync()
	return nil
}

// GetWipeMarker returns the most recent wipe marker, or nil.
func (c *MemoryCache) GetWipeMarker(ctx context.Context) (*WipeMarker, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.wipe == nil {
		return nil, nil
	}
	marker := *c.wipe
	return &marker, nil
}

// Serialize renders the whole cache as a versioned snapshot.
func (c *MemoryCache) Serialize() ([]byte, error) {
	c.mu.RLock()
	items := make([]Item, 0, len(c.items))
	for _, item := range c.items {
		items = append(items, item.clone())
	}
	var wipe *WipeMarker
	if c.wipe != nil {
		marker := *c.wipe
		wipe = &marker
	}
	c.mu.RUnlock()

	return encodeSnapshot(items, wipe)
}

// Deserialize replaces the in-memory state with the snapshot. The previous
// state is kept on any error.
func (c *MemoryCache) Deserialize(data []byte) error {
	items, wipe, err := decodeSnapshot(data)
	if err != nil {
		return err
	}

	next := make(map[recordKey]Item, len(items))
	for _, item := range items {
		next[recordKey{key: item.Key, user: util.NormalizeUserID(item.User.UserID)}] = item
	}

	c.mu.Lock()
	c.items = next
	c.wipe = wipe
	c.itemsCountAtomic.Store(int64(len(next)))
	c.mu.Unlock()

	c.logger.Debug("Restored token cache from snapshot", "items", len(next))
	return nil
}

func (c *MemoryCache) removeMatching(ctx context.Context, operation string, match func(recordKey) bool) error {
	_, span := c.startSpan(ctx, operation, Key{})
	defer span.End()

	c.mu.Lock()
	removed := 0
	for rk := range c.items {
		if match(rk) {
			delete(c.items, rk)
			removed++
		}
	}
	c.itemsCountAtomic.Add(int64(-removed))
	c.mu.Unlock()

	if removed > 0 {
		c.logger.Debug("Removed cached credentials", "operation", operation, "items_removed", removed)
		c.persistAsync()
	}
	return nil
}

// persistAsync snapshots the cache and hands it to the storage collaborator
// in the background. Persistence is best-effort: the in-memory state stays
// authoritative when the save fails.
func (c *MemoryCache) persistAsync() {
	c.mu.RLock()
	persister := c.persister
	inst := c.instrumentation
	c.mu.RUnlock()

	if persister == nil {
		return
	}

	go func() {
		data, err := c.Serialize()
		if err != nil {
			c.logger.Warn("Failed to serialize token cache for persistence", "error", err)
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()

		if err := persister.Save(ctx, data); err != nil {
			c.logger.Warn("Failed to persist token cache, in-memory state remains authoritative", "error", err)
			if inst != nil {
				inst.Metrics().RecordPersistenceFailure(ctx)
			}
		}
	}()
}

// startSpan starts a tracing span for a cache operation when instrumentation
// is configured.
func (c *MemoryCache) startSpan(ctx context.Context, operation string, key Key) (context.Context, trace.Span) {
	if c.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return c.tracer.Start(ctx, fmt.Sprintf("cache.%s", operation),
		trace.WithAttributes(
			attribute.String("cache.operation", operation),
			attribute.String("cache.client_id", key.ClientID()),
		))
}
