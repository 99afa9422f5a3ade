package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/spec-kit/stream-access/internal/domain"
	"github.com/spec-kit/stream-access/internal/observability"
)

// FetchResult is one authoritative read from a backing store.
type FetchResult struct {
	Value []byte
	// Version is the record's source version (content version or entitlement
	// event sequence) at fetch time.
	Version int64
}

// OriginFetch loads a record from its authoritative store. It must return
// domain.ErrNotFound for missing records; any other error is treated as
// transient.
type OriginFetch func(ctx context.Context) (FetchResult, error)

// SharedTier is the cache tier common to all replicas. See RedisTier.
type SharedTier interface {
	Get(ctx context.Context, key string) (*Entry, error)
	Set(ctx context.Context, key string, entry *Entry) error
	Delete(ctx context.Context, key string) error
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
	VersionFloor(ctx context.Context, key string) (int64, error)
	RaiseFloor(ctx context.Context, key string, version int64, ttl time.Duration) error
	PublishInvalidation(ctx context.Context, key string, minVersion int64) error
}

// Options tunes coordinator behavior. Zero durations fall back to defaults.
type Options struct {
	RetryBackoff  time.Duration
	FetchClaimTTL time.Duration
	FollowerPoll  time.Duration
	FloorTTL      time.Duration
	Clock         func() time.Time
}

// Coordinator is the read-through cache in front of the entitlement and
// content stores. It owns entry lifecycle, TTL policy enforcement,
// single-flight stampede protection, stale-if-error fallback, and
// invalidation.
type Coordinator struct {
	local  *LocalTier
	shared SharedTier

	sf singleflight.Group

	floorMu sync.RWMutex
	floors  map[string]versionFloor

	retryBackoff  time.Duration
	fetchClaimTTL time.Duration
	followerPoll  time.Duration
	floorTTL      time.Duration
	clock         func() time.Time

	logger  *zap.Logger
	metrics *observability.Metrics
}

// NewCoordinator builds a coordinator over a local tier and an optional
// shared tier. A nil shared tier degrades to local-only caching, which
// keeps single-replica deployments and tests fully functional.
func NewCoordinator(local *LocalTier, shared SharedTier, opts Options, logger *zap.Logger, metrics *observability.Metrics) *Coordinator {
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 100 * time.Millisecond
	}
	if opts.FetchClaimTTL <= 0 {
		opts.FetchClaimTTL = 3 * time.Second
	}
	if opts.FollowerPoll <= 0 {
		opts.FollowerPoll = 50 * time.Millisecond
	}
	if opts.FloorTTL <= 0 {
		opts.FloorTTL = 15 * time.Minute
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Coordinator{
		local:         local,
		shared:        shared,
		floors:        make(map[string]versionFloor),
		retryBackoff:  opts.RetryBackoff,
		fetchClaimTTL: opts.FetchClaimTTL,
		followerPoll:  opts.FollowerPoll,
		floorTTL:      opts.FloorTTL,
		clock:         opts.Clock,
		logger:        logger,
		metrics:       metrics,
	}
}

// ReadThrough returns the cached value for key, fetching from the origin
// when no live entry exists. For any key at most one origin fetch is in
// flight at a time; concurrent callers share its result. A caller whose ctx
// expires abandons only its own wait, never the fetch itself.
func (c *Coordinator) ReadThrough(ctx context.Context, key string, ttl time.Duration, fetch OriginFetch) ([]byte, error) {
	now := c.clock()
	floor := c.syncedFloor(ctx, key)
	class := KeyClass(key)

	if entry := c.local.Get(key); entry != nil && entry.Fresh(now) && entry.SourceVersion >= floor {
		c.metrics.RecordCacheHit(class)
		return entry.Value, nil
	}

	if c.shared != nil {
		entry, err := c.shared.Get(ctx, key)
		if err != nil {
			c.logger.Debug("shared tier read failed", zap.String("key", key), zap.Error(err))
		} else if entry != nil && entry.Fresh(now) && entry.SourceVersion >= floor {
			c.local.Set(key, entry)
			c.metrics.RecordCacheHit(class)
			return entry.Value, nil
		}
	}

	c.metrics.RecordCacheMiss(class)

	// The refresh runs on a detached context: followers piggy-back on it and
	// a waiter timing out must not cancel the fetch for everyone else.
	ch := c.sf.DoChan(key, func() (any, error) {
		return c.refresh(context.WithoutCancel(ctx), key, ttl, floor, fetch)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	}
}

// Invalidate expires the entry for key immediately and raises its version
// floor so a concurrent fetch completing with a superseded copy cannot be
// served afterwards. minVersion is the lowest acceptable source version.
func (c *Coordinator) Invalidate(ctx context.Context, key string, minVersion int64) {
	c.raiseLocalFloor(key, minVersion)
	c.local.Delete(key)

	if c.shared == nil {
		return
	}
	if err := c.shared.RaiseFloor(ctx, key, minVersion, c.floorTTL); err != nil {
		c.logger.Warn("raise version floor failed", zap.String("key", key), zap.Error(err))
	}
	if err := c.shared.Delete(ctx, key); err != nil {
		c.logger.Warn("shared invalidate failed", zap.String("key", key), zap.Error(err))
	}
	if err := c.shared.PublishInvalidation(ctx, key, minVersion); err != nil {
		c.logger.Warn("invalidation broadcast failed", zap.String("key", key), zap.Error(err))
	}
}

// HandleInvalidation drops the local copy of key and raises its local
// floor. Wired to the shared tier's invalidation subscription so broadcasts
// from other replicas take effect here. The broadcast is an optimization
// only: the serve path re-checks the shared floor, so a lost message costs
// at most one superseded round trip, never a stale serve.
func (c *Coordinator) HandleInvalidation(key string, minVersion int64) {
	c.raiseLocalFloor(key, minVersion)
	c.local.Delete(key)
}

func (c *Coordinator) refresh(ctx context.Context, key string, ttl time.Duration, floor int64, fetch OriginFetch) ([]byte, error) {
	class := KeyClass(key)

	if c.shared != nil {
		if shared, err := c.shared.VersionFloor(ctx, key); err == nil && shared > floor {
			floor = shared
		}
		claimed, err := c.shared.Claim(ctx, key, c.fetchClaimTTL)
		switch {
		case err != nil:
			// Shared tier unreachable; fetch locally rather than fail.
			c.logger.Debug("fetch claim unavailable", zap.String("key", key), zap.Error(err))
		case claimed:
			defer func() {
				if err := c.shared.Release(context.WithoutCancel(ctx), key); err != nil {
					c.logger.Debug("claim release failed", zap.String("key", key), zap.Error(err))
				}
			}()
		default:
			if value, ok := c.awaitOwner(ctx, key, floor); ok {
				return value, nil
			}
			// The owning replica never delivered inside the claim window;
			// fall through and fetch ourselves.
		}
	}

	c.metrics.RecordOriginFetch(class)
	result, err := fetch(ctx)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		// One retry with a short backoff, here and nowhere above: the gate
		// never retries, so an outage cannot amplify into a retry storm.
		select {
		case <-ctx.Done():
		case <-time.After(c.retryBackoff):
			c.metrics.RecordOriginFetch(class)
			result, err = fetch(ctx)
		}
	}

	if err == nil {
		entry := &Entry{
			Value:         result.Value,
			FetchedAt:     c.clock(),
			TTL:           ttl,
			SourceVersion: result.Version,
		}
		c.local.Set(key, entry)
		if c.shared != nil {
			if serr := c.shared.Set(ctx, key, entry); serr != nil {
				c.logger.Warn("shared tier write failed", zap.String("key", key), zap.Error(serr))
			}
		}
		return result.Value, nil
	}

	if errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	if stale := c.staleEntry(ctx, key, floor); stale != nil {
		c.metrics.RecordStaleServe(class)
		c.logger.Warn("serving stale entry after failed refresh",
			zap.String("key", key),
			zap.Time("fetched_at", stale.FetchedAt),
			zap.Error(err),
		)
		return stale.Value, nil
	}

	c.evict(ctx, key)
	return nil, fmt.Errorf("refresh %s: %w: %w", key, err, domain.ErrOriginUnavailable)
}

// awaitOwner polls the shared tier for the entry another replica is
// fetching. Gives up after the claim window so a crashed owner cannot wedge
// followers.
func (c *Coordinator) awaitOwner(ctx context.Context, key string, floor int64) ([]byte, bool) {
	deadline := time.NewTimer(c.fetchClaimTTL)
	defer deadline.Stop()
	ticker := time.NewTicker(c.followerPoll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, false
		case <-deadline.C:
			return nil, false
		case <-ticker.C:
			entry, err := c.shared.Get(ctx, key)
			if err != nil || entry == nil {
				continue
			}
			if entry.Fresh(c.clock()) && entry.SourceVersion >= floor {
				c.local.Set(key, entry)
				return entry.Value, true
			}
		}
	}
}

// staleEntry finds an expired but still servable entry for stale-if-error.
func (c *Coordinator) staleEntry(ctx context.Context, key string, floor int64) *Entry {
	now := c.clock()
	if entry := c.local.Get(key); entry != nil && entry.Servable(now) && entry.SourceVersion >= floor {
		return entry
	}
	if c.shared != nil {
		if entry, err := c.shared.Get(ctx, key); err == nil && entry != nil &&
			entry.Servable(now) && entry.SourceVersion >= floor {
			return entry
		}
	}
	return nil
}

func (c *Coordinator) evict(ctx context.Context, key string) {
	c.local.Delete(key)
	if c.shared != nil {
		if err := c.shared.Delete(ctx, key); err != nil {
			c.logger.Debug("shared evict failed", zap.String("key", key), zap.Error(err))
		}
	}
}

// versionFloor is a local floor with its raise time, so stale floors can be
// swept once the shared tier's copy has expired too.
type versionFloor struct {
	version  int64
	raisedAt time.Time
}

// syncedFloor returns the authoritative floor for key. The shared floor is
// consulted on every read, not just on misses: an invalidation raised by
// another replica must take effect here even when its broadcast was lost,
// so a fresh local hit still costs one shared-tier round trip.
func (c *Coordinator) syncedFloor(ctx context.Context, key string) int64 {
	floor := c.localFloor(key)
	if c.shared == nil {
		return floor
	}
	shared, err := c.shared.VersionFloor(ctx, key)
	if err != nil {
		c.logger.Debug("shared floor read failed", zap.String("key", key), zap.Error(err))
		return floor
	}
	if shared > floor {
		c.raiseLocalFloor(key, shared)
		floor = shared
	}
	return floor
}

func (c *Coordinator) localFloor(key string) int64 {
	c.floorMu.RLock()
	defer c.floorMu.RUnlock()
	return c.floors[key].version
}

func (c *Coordinator) raiseLocalFloor(key string, version int64) {
	c.floorMu.Lock()
	defer c.floorMu.Unlock()
	if version > c.floors[key].version {
		c.floors[key] = versionFloor{version: version, raisedAt: c.clock()}
	}
}

// SweepFloors drops local floors older than the floor TTL, mirroring the
// shared tier's floor expiry. Any entry a floor was guarding has aged out
// of both tiers long before then.
func (c *Coordinator) SweepFloors() int {
	cutoff := c.clock().Add(-c.floorTTL)
	c.floorMu.Lock()
	defer c.floorMu.Unlock()
	removed := 0
	for key, floor := range c.floors {
		if floor.raisedAt.Before(cutoff) {
			delete(c.floors, key)
			removed++
		}
	}
	return removed
}

// StartJanitor sweeps dead local entries and expired floors on the given
// interval until ctx is done.
func (c *Coordinator) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				entries := c.local.Sweep()
				floors := c.SweepFloors()
				if entries > 0 || floors > 0 {
					c.logger.Debug("cache sweep",
						zap.Int("entries", entries),
						zap.Int("floors", floors),
					)
				}
			}
		}
	}()
}
