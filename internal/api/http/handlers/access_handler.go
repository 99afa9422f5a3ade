package handlers

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/stream-access/internal/api/dto"
	"github.com/spec-kit/stream-access/internal/auth"
	"github.com/spec-kit/stream-access/internal/domain"
	"github.com/spec-kit/stream-access/internal/service"
)

// AccessHandler exposes the read-path access decision.
type AccessHandler struct {
	access *service.AccessService
}

// NewAccessHandler constructs handler.
func NewAccessHandler(access *service.AccessService) *AccessHandler {
	return &AccessHandler{access: access}
}

// Check handles GET /v1/content/:contentID/access.
func (h *AccessHandler) Check(c *fiber.Ctx) error {
	contentID := c.Params("contentID")
	if contentID == "" {
		return fiber.NewError(http.StatusBadRequest, "content id required")
	}

	// A missing bearer token is just an unverifiable one; the decision path
	// collapses it to the same reason as any other bad credential.
	token, _ := auth.BearerToken(c)

	decision := h.access.Decide(c.UserContext(), token, contentID, time.Now())
	if decision.Allow {
		return c.JSON(fiber.Map{"data": dto.AccessAllowResponse{Allow: true, Locator: decision.Locator}})
	}

	return c.Status(statusForReason(decision.Reason)).JSON(fiber.Map{
		"data": dto.AccessDenyResponse{Allow: false, Reason: string(decision.Reason)},
	})
}

func statusForReason(reason domain.DenyReason) int {
	switch reason {
	case domain.DenyUnauthenticated:
		return http.StatusUnauthorized
	case domain.DenyContentUnavailable:
		return http.StatusNotFound
	case domain.DenyOriginUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusForbidden
	}
}
