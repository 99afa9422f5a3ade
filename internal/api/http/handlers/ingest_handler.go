package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/stream-access/internal/api/dto"
	"github.com/spec-kit/stream-access/internal/domain"
	"github.com/spec-kit/stream-access/internal/service"
	apperrors "github.com/spec-kit/stream-access/pkg/util"
)

// IngestHandler accepts writes from the payment and content-ingestion
// collaborators.
type IngestHandler struct {
	entitlements *service.EntitlementService
	catalog      *service.CatalogService
}

// NewIngestHandler constructs handler.
func NewIngestHandler(entitlements *service.EntitlementService, catalog *service.CatalogService) *IngestHandler {
	return &IngestHandler{entitlements: entitlements, catalog: catalog}
}

// ApplyEntitlementEvent handles POST /v1/entitlements/events.
func (h *IngestHandler) ApplyEntitlementEvent(c *fiber.Ctx) error {
	var req dto.EntitlementEventRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if req.UserID == "" || req.EventType == "" || req.Sequence <= 0 {
		return fiber.NewError(http.StatusBadRequest, "user_id, event_type, positive sequence required")
	}

	ev := domain.EntitlementEvent{
		UserID:    req.UserID,
		Type:      domain.EntitlementEventType(req.EventType),
		Sequence:  req.Sequence,
		PaymentID: req.PaymentID,
	}
	if req.ValidUntil != nil {
		ev.ValidUntil = *req.ValidUntil
	}
	if !domain.ValidEntitlementEventType(ev.Type) {
		return fiber.NewError(http.StatusBadRequest, "unknown event_type")
	}

	record, err := h.entitlements.ApplyEvent(c.UserContext(), ev)
	if err != nil {
		return apperrors.MapError(err)
	}

	return c.JSON(fiber.Map{
		"data": dto.EntitlementResponse{
			UserID:       record.UserID,
			Status:       string(record.Status),
			ValidUntil:   record.ValidUntil,
			LastSequence: record.LastSequence,
		},
	})
}

// PublishContent handles POST /v1/catalog/content.
func (h *IngestHandler) PublishContent(c *fiber.Ctx) error {
	var req dto.ContentPublishRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if req.ID == "" || req.Locator == "" || req.Visibility == "" {
		return fiber.NewError(http.StatusBadRequest, "id, locator, visibility required")
	}
	visibility := domain.ContentVisibility(req.Visibility)
	if visibility != domain.ContentVisibilityFree && visibility != domain.ContentVisibilityPremium {
		return fiber.NewError(http.StatusBadRequest, "unknown visibility")
	}
	if req.WindowStart != nil && req.WindowEnd != nil && req.WindowEnd.Before(*req.WindowStart) {
		return fiber.NewError(http.StatusBadRequest, "window_end precedes window_start")
	}

	record := &domain.ContentRecord{
		ID:          req.ID,
		Title:       req.Title,
		Locator:     req.Locator,
		Visibility:  visibility,
		WindowStart: req.WindowStart,
		WindowEnd:   req.WindowEnd,
	}

	published, err := h.catalog.Publish(c.UserContext(), record)
	if err != nil {
		return apperrors.MapError(err)
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"data": dto.ContentPublishResponse{ID: published.ID, Version: published.Version},
	})
}
