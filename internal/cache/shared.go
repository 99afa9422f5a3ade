package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	entryPrefix       = "cache:"
	floorPrefix       = "floor:"
	claimPrefix       = "claim:"
	invalidationTopic = "cache:invalidations"
)

// releaseScript deletes a claim only when still held by the releasing replica.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// raiseFloorScript moves the version floor forward monotonically.
var raiseFloorScript = redis.NewScript(`
local current = tonumber(redis.call("GET", KEYS[1]) or "0")
local target = tonumber(ARGV[1])
if target > current then
	redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[2])
	return 1
end
return 0`)

// RedisTier is the cache tier shared by all replicas. It carries cached
// entries, per-key fetch claims (so at most one replica fetches a key at a
// time), version floors raised on invalidation, and an invalidation
// broadcast channel every replica subscribes to.
type RedisTier struct {
	client     *redis.Client
	instanceID string
	logger     *zap.Logger
}

// NewRedisTier wraps a connected client as the shared tier.
func NewRedisTier(client *redis.Client, logger *zap.Logger) *RedisTier {
	return &RedisTier{
		client:     client,
		instanceID: uuid.NewString(),
		logger:     logger,
	}
}

// Get returns the shared entry for key, or nil on a miss.
func (t *RedisTier) Get(ctx context.Context, key string) (*Entry, error) {
	raw, err := t.client.Get(ctx, entryPrefix+key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		// Unreadable entries are dropped rather than served.
		t.logger.Warn("dropping undecodable cache entry", zap.String("key", key), zap.Error(err))
		_ = t.client.Del(ctx, entryPrefix+key).Err()
		return nil, nil
	}
	return &entry, nil
}

// Set stores an entry. Redis expiry is twice the logical TTL so stale
// entries stay resident through the stale-if-error window and no longer.
func (t *RedisTier) Set(ctx context.Context, key string, entry *Entry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return t.client.Set(ctx, entryPrefix+key, raw, 2*entry.TTL).Err()
}

// Delete removes the shared entry for key.
func (t *RedisTier) Delete(ctx context.Context, key string) error {
	return t.client.Del(ctx, entryPrefix+key).Err()
}

// Claim attempts to become the fetch owner for key across all replicas.
// SET NX makes the claim atomic; the TTL bounds how long a crashed owner
// can block followers.
func (t *RedisTier) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return t.client.SetNX(ctx, claimPrefix+key, t.instanceID, ttl).Result()
}

// Release gives up a fetch claim if this replica still holds it.
func (t *RedisTier) Release(ctx context.Context, key string) error {
	return releaseScript.Run(ctx, t.client, []string{claimPrefix + key}, t.instanceID).Err()
}

// VersionFloor returns the minimum acceptable source version for key.
func (t *RedisTier) VersionFloor(ctx context.Context, key string) (int64, error) {
	raw, err := t.client.Get(ctx, floorPrefix+key).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	floor, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, err
	}
	return floor, nil
}

// RaiseFloor lifts the version floor for key to at least version.
func (t *RedisTier) RaiseFloor(ctx context.Context, key string, version int64, ttl time.Duration) error {
	return raiseFloorScript.Run(ctx, t.client,
		[]string{floorPrefix + key},
		version, ttl.Milliseconds(),
	).Err()
}

// PublishInvalidation broadcasts key and its new minimum version so every
// replica drops its local copy and raises its local floor.
func (t *RedisTier) PublishInvalidation(ctx context.Context, key string, minVersion int64) error {
	return t.client.Publish(ctx, invalidationTopic, encodeInvalidation(key, minVersion)).Err()
}

// SubscribeInvalidations invokes handler for each broadcast until ctx is
// done. Run once per replica at startup.
func (t *RedisTier) SubscribeInvalidations(ctx context.Context, handler func(key string, minVersion int64)) {
	sub := t.client.Subscribe(ctx, invalidationTopic)
	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				key, version, err := decodeInvalidation(msg.Payload)
				if err != nil {
					t.logger.Warn("dropping malformed invalidation",
						zap.String("payload", msg.Payload), zap.Error(err))
					continue
				}
				handler(key, version)
			}
		}
	}()
}

func encodeInvalidation(key string, minVersion int64) string {
	return key + "|" + strconv.FormatInt(minVersion, 10)
}

func decodeInvalidation(payload string) (string, int64, error) {
	i := strings.LastIndexByte(payload, '|')
	if i < 0 {
		return "", 0, errors.New("missing version")
	}
	version, err := strconv.ParseInt(payload[i+1:], 10, 64)
	if err != nil {
		return "", 0, err
	}
	return payload[:i], version, nil
}
