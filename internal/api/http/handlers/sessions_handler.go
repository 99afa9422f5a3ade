package handlers

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/stream-access/internal/api/dto"
	"github.com/spec-kit/stream-access/internal/auth"
	apperrors "github.com/spec-kit/stream-access/pkg/util"
)

// SessionsHandler issues and revokes session tokens. Identity itself lives
// with an external provider; this surface stands in for its callback.
type SessionsHandler struct {
	tokens *auth.TokenCodec
}

// NewSessionsHandler constructs handler.
func NewSessionsHandler(tokens *auth.TokenCodec) *SessionsHandler {
	return &SessionsHandler{tokens: tokens}
}

// Issue handles POST /v1/sessions.
func (h *SessionsHandler) Issue(c *fiber.Ctx) error {
	var req dto.SessionIssueRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if req.UserID == "" {
		return fiber.NewError(http.StatusBadRequest, "user_id required")
	}

	token, expiresAt, err := h.tokens.Issue(req.UserID, time.Now())
	if err != nil {
		return apperrors.MapError(err)
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"data": dto.SessionResponse{Token: token, ExpiresAt: expiresAt},
	})
}

// Revoke handles DELETE /v1/sessions/:userID. Every token issued to the
// subject before this instant stops verifying.
func (h *SessionsHandler) Revoke(c *fiber.Ctx) error {
	userID := c.Params("userID")
	if userID == "" {
		return fiber.NewError(http.StatusBadRequest, "user id required")
	}

	if err := h.tokens.Revoke(c.UserContext(), userID, time.Now()); err != nil {
		return apperrors.MapError(err)
	}
	return c.SendStatus(http.StatusNoContent)
}
