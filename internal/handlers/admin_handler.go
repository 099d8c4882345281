package handlers

import (
	"errors"

	"github.com/ahmetcoskunkizilkaya/studio-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/studio-backend/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/studio-backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
)

type AdminHandler struct {
	profiles *ProfileHandler
	credits  *services.CreditService
}

func NewAdminHandler(profiles *ProfileHandler, credits *services.CreditService) *AdminHandler {
	return &AdminHandler{profiles: profiles, credits: credits}
}

func (h *AdminHandler) GetProfile(c *fiber.Ctx) error {
	return h.profiles.respond(c, utils.CopyString(c.Params("id")))
}

// AdjustCredits applies a signed correction to a user's balance.
func (h *AdminHandler) AdjustCredits(c *fiber.Ctx) error {
	userID := utils.CopyString(c.Params("id"))
	var req dto.AdminCreditRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "Invalid request body")
	}

	balance, err := h.credits.Adjust(c.UserContext(), userID, req.Amount)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidAmount):
			return errorJSON(c, fiber.StatusBadRequest, err.Error())
		case errors.Is(err, services.ErrInsufficientCredits):
			return errorJSON(c, fiber.StatusConflict, err.Error())
		}
		middleware.RequestLogger(c).Error("admin credit adjustment failed", "operation", "admin_adjust", "target_user_id", userID, "error", err)
		return errorJSON(c, fiber.StatusInternalServerError, "Failed to adjust credits")
	}

	middleware.RequestLogger(c).Info("admin credit adjustment", "target_user_id", userID, "amount", req.Amount, "balance", balance)
	return c.JSON(dto.BalanceResponse{Balance: balance})
}
