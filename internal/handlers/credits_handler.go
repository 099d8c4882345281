package handlers

import (
	"errors"

	"github.com/ahmetcoskunkizilkaya/studio-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/studio-backend/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/studio-backend/internal/services"
	"github.com/gofiber/fiber/v2"
)

type CreditsHandler struct {
	credits *services.CreditService
}

func NewCreditsHandler(credits *services.CreditService) *CreditsHandler {
	return &CreditsHandler{credits: credits}
}

func (h *CreditsHandler) Balance(c *fiber.Ctx) error {
	userID, ok := callerID(c)
	if !ok {
		return middleware.Unauthorized(c)
	}

	balance, err := h.credits.GetBalance(c.UserContext(), userID)
	if err != nil {
		middleware.RequestLogger(c).Error("balance read failed", "operation", "get_balance", "error", err)
		return errorJSON(c, fiber.StatusInternalServerError, "Failed to read balance")
	}
	return c.JSON(dto.BalanceResponse{Balance: balance})
}

func (h *CreditsHandler) Consume(c *fiber.Ctx) error {
	userID, ok := callerID(c)
	if !ok {
		return middleware.Unauthorized(c)
	}

	balance, err := h.credits.Consume(c.UserContext(), userID)
	if err != nil {
		if errors.Is(err, services.ErrQuotaExhausted) {
			return errorJSON(c, fiber.StatusForbidden, services.ErrQuotaExhausted.Error())
		}
		return errorJSON(c, fiber.StatusInternalServerError, "Failed to consume credit")
	}
	return c.JSON(dto.ConsumeResponse{Success: true, Balance: balance})
}
