package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/stream-access/internal/config"
	"github.com/spec-kit/stream-access/internal/domain"
)

func newTestCodec(t *testing.T) *TokenCodec {
	t.Helper()
	cfg := config.AuthConfig{JWTSecret: "test-secret", SessionTTLMinutes: 60}
	return NewTokenCodec(cfg, NewMemoryRevocationStore(), zap.NewNop())
}

func TestTokenLifecycle(t *testing.T) {
	codec := newTestCodec(t)
	ctx := context.Background()
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	token, expiresAt, err := codec.Issue("user-1", t0)
	require.NoError(t, err)
	assert.Equal(t, t0.Add(time.Hour), expiresAt)

	userID, err := codec.Verify(ctx, token, t0.Add(59*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)

	_, err = codec.Verify(ctx, token, t0.Add(61*time.Minute))
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
}

func TestVerifyRejectsTamperedAndMalformedTokens(t *testing.T) {
	codec := newTestCodec(t)
	ctx := context.Background()
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	token, _, err := codec.Issue("user-1", t0)
	require.NoError(t, err)

	// Wrong signing key.
	other := NewTokenCodec(config.AuthConfig{JWTSecret: "other-secret", SessionTTLMinutes: 60},
		NewMemoryRevocationStore(), zap.NewNop())
	_, err = other.Verify(ctx, token, t0)
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)

	for _, bad := range []string{"", "not-a-token", token + "x"} {
		_, err = codec.Verify(ctx, bad, t0)
		assert.ErrorIs(t, err, domain.ErrUnauthenticated, "token %q", bad)
	}
}

func TestRevocationWatermark(t *testing.T) {
	codec := newTestCodec(t)
	ctx := context.Background()
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	early, _, err := codec.Issue("user-1", t0)
	require.NoError(t, err)

	_, err = codec.Verify(ctx, early, t0.Add(time.Minute))
	require.NoError(t, err)

	// Revoking at t0+10m invalidates everything issued before that instant.
	require.NoError(t, codec.Revoke(ctx, "user-1", t0.Add(10*time.Minute)))

	_, err = codec.Verify(ctx, early, t0.Add(11*time.Minute))
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)

	// Tokens issued after the watermark verify normally.
	late, _, err := codec.Issue("user-1", t0.Add(15*time.Minute))
	require.NoError(t, err)
	userID, err := codec.Verify(ctx, late, t0.Add(20*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)

	// Other subjects are untouched.
	otherToken, _, err := codec.Issue("user-2", t0)
	require.NoError(t, err)
	_, err = codec.Verify(ctx, otherToken, t0.Add(11*time.Minute))
	assert.NoError(t, err)
}

func TestRevocationWatermarkHasSecondGranularity(t *testing.T) {
	codec := newTestCodec(t)
	ctx := context.Background()
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	sameSecond, _, err := codec.Issue("user-1", t0.Add(10*time.Minute))
	require.NoError(t, err)
	earlier, _, err := codec.Issue("user-1", t0.Add(10*time.Minute-time.Second))
	require.NoError(t, err)

	// Issued-at claims carry whole seconds, so the watermark is truncated to
	// match: a revocation mid-second must not reject a token stamped with
	// that same second.
	require.NoError(t, codec.Revoke(ctx, "user-1", t0.Add(10*time.Minute+700*time.Millisecond)))

	_, err = codec.Verify(ctx, sameSecond, t0.Add(11*time.Minute))
	assert.NoError(t, err)
	_, err = codec.Verify(ctx, earlier, t0.Add(11*time.Minute))
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
}

func TestRevocationNeverMovesBackwards(t *testing.T) {
	store := NewMemoryRevocationStore()
	ctx := context.Background()
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.SetWatermark(ctx, "user-1", t0.Add(10*time.Minute)))
	require.NoError(t, store.SetWatermark(ctx, "user-1", t0.Add(5*time.Minute)))

	mark, err := store.Watermark(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, t0.Add(10*time.Minute), mark)
}

func TestIngestKeyRoundTrip(t *testing.T) {
	hash, err := HashIngestKey("collaborator-key", 4)
	require.NoError(t, err)

	assert.NoError(t, VerifyIngestKey(hash, "collaborator-key"))
	assert.Error(t, VerifyIngestKey(hash, "wrong-key"))
}
