package auth

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RevocationStore holds the per-subject minimum-valid-issued-at watermark.
// A zero time means the subject has no revocation in effect.
type RevocationStore interface {
	SetWatermark(ctx context.Context, userID string, at time.Time) error
	Watermark(ctx context.Context, userID string) (time.Time, error)
}

const revocationPrefix = "revoke:"

// watermarkScript advances the watermark monotonically so concurrent
// revocations never move it backwards.
var watermarkScript = redis.NewScript(`
local current = tonumber(redis.call("GET", KEYS[1]) or "0")
local target = tonumber(ARGV[1])
if target > current then
	redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[2])
	return 1
end
return 0`)

// RedisRevocationStore keeps watermarks in the shared tier so a revocation
// on any replica is honored by all of them. Watermarks expire after one
// session lifetime; older tokens are already expired on their own.
type RedisRevocationStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisRevocationStore builds a store expiring watermarks after ttl.
func NewRedisRevocationStore(client *redis.Client, ttl time.Duration) *RedisRevocationStore {
	return &RedisRevocationStore{client: client, ttl: ttl}
}

func (s *RedisRevocationStore) SetWatermark(ctx context.Context, userID string, at time.Time) error {
	return watermarkScript.Run(ctx, s.client,
		[]string{revocationPrefix + userID},
		at.UnixNano(), s.ttl.Milliseconds(),
	).Err()
}

func (s *RedisRevocationStore) Watermark(ctx context.Context, userID string) (time.Time, error) {
	raw, err := s.client.Get(ctx, revocationPrefix+userID).Result()
	if err == redis.Nil {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	nanos, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(0, nanos), nil
}

// MemoryRevocationStore backs single-process runs and tests.
type MemoryRevocationStore struct {
	mu    sync.RWMutex
	marks map[string]time.Time
}

// NewMemoryRevocationStore builds an empty in-process store.
func NewMemoryRevocationStore() *MemoryRevocationStore {
	return &MemoryRevocationStore{marks: make(map[string]time.Time)}
}

func (s *MemoryRevocationStore) SetWatermark(_ context.Context, userID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if at.After(s.marks[userID]) {
		s.marks[userID] = at
	}
	return nil
}

func (s *MemoryRevocationStore) Watermark(_ context.Context, userID string) (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.marks[userID], nil
}
