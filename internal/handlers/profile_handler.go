package handlers

import (
	"errors"

	"github.com/ahmetcoskunkizilkaya/studio-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/studio-backend/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/studio-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/studio-backend/internal/plans"
	"github.com/ahmetcoskunkizilkaya/studio-backend/internal/services"
	"github.com/gofiber/fiber/v2"
)

type ProfileHandler struct {
	profiles services.ProfileRepo
	credits  *services.CreditService
}

func NewProfileHandler(profiles services.ProfileRepo, credits *services.CreditService) *ProfileHandler {
	return &ProfileHandler{profiles: profiles, credits: credits}
}

func (h *ProfileHandler) Me(c *fiber.Ctx) error {
	userID, ok := callerID(c)
	if !ok {
		return middleware.Unauthorized(c)
	}
	return h.respond(c, userID)
}

func (h *ProfileHandler) respond(c *fiber.Ctx, userID string) error {
	ctx := c.UserContext()
	profile, err := h.profiles.GetProfile(ctx, userID)
	if err != nil {
		if errors.Is(err, services.ErrProfileNotFound) {
			return errorJSON(c, fiber.StatusNotFound, "Profile not found")
		}
		middleware.RequestLogger(c).Error("profile read failed", "operation", "get_profile", "error", err)
		return errorJSON(c, fiber.StatusInternalServerError, "Failed to load profile")
	}

	balance, err := h.credits.GetBalance(ctx, userID)
	if err != nil {
		middleware.RequestLogger(c).Error("balance read failed", "operation", "get_profile", "error", err)
		return errorJSON(c, fiber.StatusInternalServerError, "Failed to load profile")
	}
	return c.JSON(profileResponse(profile, balance))
}

func profileResponse(p *models.Profile, balance int64) dto.ProfileResponse {
	return dto.ProfileResponse{
		ID:                           p.ID,
		Email:                        p.Email,
		Username:                     p.Username,
		Plan:                         string(plans.Parse(p.Plan)),
		SubscriptionStatus:           p.SubscriptionStatus,
		SubscriptionCurrentPeriodEnd: p.SubscriptionCurrentPeriodEnd,
		EarlyAccess:                  p.EarlyAccess,
		Balance:                      balance,
	}
}
