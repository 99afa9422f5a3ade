package auth

import (
	"context"
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/stream-access/internal/config"
	"github.com/spec-kit/stream-access/internal/domain"
)

// tokenVersion is bumped when the claim shape changes; older tokens are
// rejected wholesale instead of being migrated.
const tokenVersion = 1

// TokenCodec issues and verifies signed session tokens. Verification takes
// the caller's clock, so behavior is deterministic under test.
type TokenCodec struct {
	secret      []byte
	lifetime    time.Duration
	revocations RevocationStore
	logger      *zap.Logger
}

// NewTokenCodec builds a codec from auth config.
func NewTokenCodec(cfg config.AuthConfig, revocations RevocationStore, logger *zap.Logger) *TokenCodec {
	return &TokenCodec{
		secret:      []byte(cfg.JWTSecret),
		lifetime:    cfg.SessionTTL(),
		revocations: revocations,
		logger:      logger,
	}
}

type sessionClaims struct {
	TokenVersion int `json:"ver"`
	jwt.RegisteredClaims
}

// Issue signs a session token for userID expiring one session lifetime
// after now.
func (c *TokenCodec) Issue(userID string, now time.Time) (string, time.Time, error) {
	expiresAt := now.Add(c.lifetime)
	claims := &sessionClaims{
		TokenVersion: tokenVersion,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Verify checks signature, structure, expiry against now, and the subject's
// revocation watermark. Every failure collapses to domain.ErrUnauthenticated;
// the cause is logged and never surfaced, so callers cannot probe whether a
// signature was bad versus merely expired.
func (c *TokenCodec) Verify(ctx context.Context, tokenStr string, now time.Time) (string, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &sessionClaims{},
		func(token *jwt.Token) (interface{}, error) {
			if token.Method != jwt.SigningMethodHS256 {
				return nil, errors.New("unexpected signing method")
			}
			return c.secret, nil
		},
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		c.logger.Debug("token rejected", zap.Error(err))
		return "", domain.ErrUnauthenticated
	}

	claims, ok := parsed.Claims.(*sessionClaims)
	if !ok || !parsed.Valid || claims.Subject == "" || claims.IssuedAt == nil {
		c.logger.Debug("token rejected", zap.String("cause", "malformed claims"))
		return "", domain.ErrUnauthenticated
	}
	if claims.TokenVersion != tokenVersion {
		c.logger.Debug("token rejected", zap.Int("version", claims.TokenVersion))
		return "", domain.ErrUnauthenticated
	}

	watermark, err := c.revocations.Watermark(ctx, claims.Subject)
	if err != nil {
		// Fail closed: without the watermark a revoked token cannot be
		// distinguished from a live one.
		c.logger.Warn("revocation watermark unavailable", zap.Error(err))
		return "", domain.ErrUnauthenticated
	}
	if claims.IssuedAt.Time.Before(watermark) {
		c.logger.Debug("token rejected", zap.String("cause", "revoked"))
		return "", domain.ErrUnauthenticated
	}

	return claims.Subject, nil
}

// Revoke invalidates every token issued to userID before now by advancing
// the subject's minimum-valid-issued-at watermark. The watermark is
// truncated to the second because JWT issued-at claims carry second
// granularity; a token issued within the revocation's own second stays
// valid. No deny-list is kept, so revocation state stays bounded regardless
// of how many tokens are live.
func (c *TokenCodec) Revoke(ctx context.Context, userID string, now time.Time) error {
	return c.revocations.SetWatermark(ctx, userID, now.Truncate(time.Second))
}

// Lifetime returns the fixed session lifetime policy.
func (c *TokenCodec) Lifetime() time.Duration {
	return c.lifetime
}
