package handlers

import (
	"errors"

	"github.com/ahmetcoskunkizilkaya/studio-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/studio-backend/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/studio-backend/internal/plans"
	"github.com/ahmetcoskunkizilkaya/studio-backend/internal/services"
	"github.com/gofiber/fiber/v2"
)

type QuotaHandler struct {
	quota *services.QuotaService
}

func NewQuotaHandler(quota *services.QuotaService) *QuotaHandler {
	return &QuotaHandler{quota: quota}
}

// Check answers whether the caller may perform one more action this month.
func (h *QuotaHandler) Check(c *fiber.Ctx) error {
	userID, ok := callerID(c)
	if !ok {
		return middleware.Unauthorized(c)
	}
	var req dto.ActionRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "Invalid request body")
	}

	decision, err := h.quota.CanPerformAction(c.UserContext(), userID, req.Action)
	if err != nil {
		if errors.Is(err, plans.ErrInvalidAction) {
			return errorJSON(c, fiber.StatusBadRequest, err.Error())
		}
		middleware.RequestLogger(c).Error("quota check failed", "operation", "can_perform_action", "action", req.Action, "error", err)
		return errorJSON(c, fiber.StatusInternalServerError, "Failed to check quota")
	}
	return c.JSON(decision)
}

func (h *QuotaHandler) Record(c *fiber.Ctx) error {
	userID, ok := callerID(c)
	if !ok {
		return middleware.Unauthorized(c)
	}
	var req dto.ActionRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "Invalid request body")
	}

	used, err := h.quota.RecordUsage(c.UserContext(), userID, req.Action)
	if err != nil {
		if errors.Is(err, plans.ErrInvalidAction) {
			return errorJSON(c, fiber.StatusBadRequest, err.Error())
		}
		middleware.RequestLogger(c).Error("usage record failed", "operation", "record_usage", "action", req.Action, "error", err)
		return errorJSON(c, fiber.StatusInternalServerError, "Failed to record usage")
	}
	return c.JSON(dto.RecordUsageResponse{Success: true, Used: used})
}
