package handlers

import (
	"errors"

	"github.com/ahmetcoskunkizilkaya/studio-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/studio-backend/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/studio-backend/internal/services"
	"github.com/gofiber/fiber/v2"
)

type BillingHandler struct {
	billing *services.BillingService
}

func NewBillingHandler(billing *services.BillingService) *BillingHandler {
	return &BillingHandler{billing: billing}
}

func (h *BillingHandler) Cancel(c *fiber.Ctx) error {
	userID, ok := callerID(c)
	if !ok {
		return middleware.Unauthorized(c)
	}
	if err := h.billing.CancelAtPeriodEnd(c.UserContext(), userID); err != nil {
		return h.fail(c, "cancel_at_period_end", "Failed to cancel subscription", err)
	}
	return c.JSON(dto.OKResponse{OK: true})
}

func (h *BillingHandler) Downgrade(c *fiber.Ctx) error {
	userID, ok := callerID(c)
	if !ok {
		return middleware.Unauthorized(c)
	}
	if err := h.billing.DowngradeToFree(c.UserContext(), userID); err != nil {
		return h.fail(c, "downgrade_to_free", "Failed to downgrade subscription", err)
	}
	return c.JSON(dto.OKResponse{OK: true})
}

func (h *BillingHandler) RetryPayment(c *fiber.Ctx) error {
	userID, ok := callerID(c)
	if !ok {
		return middleware.Unauthorized(c)
	}
	result, err := h.billing.RetryPayment(c.UserContext(), userID)
	if err != nil {
		return h.fail(c, "retry_payment", "Failed to retry payment", err)
	}
	return c.JSON(result)
}

func (h *BillingHandler) fail(c *fiber.Ctx, operation, message string, err error) error {
	if errors.Is(err, services.ErrProfileNotFound) {
		return errorJSON(c, fiber.StatusNotFound, "Profile not found")
	}
	middleware.RequestLogger(c).Error("billing operation failed", "operation", operation, "error", err)
	return errorJSON(c, fiber.StatusInternalServerError, message)
}
