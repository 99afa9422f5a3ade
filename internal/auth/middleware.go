package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	apperrors "github.com/spec-kit/stream-access/pkg/util"
)

const ingestKeyHeader = "X-Ingest-Key"

// RequireIngestKey authenticates write calls from the payment and
// catalog-ingestion collaborators against the shared ingest key hash.
func RequireIngestKey(keyHash string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := c.Get(ingestKeyHeader)
		if key == "" || VerifyIngestKey(keyHash, key) != nil {
			return apperrors.NewUnauthenticated()
		}
		return c.Next()
	}
}

// BearerToken extracts the bearer token from the Authorization header.
// It reports false when the header is missing or not a bearer scheme.
func BearerToken(c *fiber.Ctx) (string, bool) {
	header := c.Get("Authorization")
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], true
}
