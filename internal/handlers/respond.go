package handlers

import (
	"github.com/ahmetcoskunkizilkaya/studio-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/studio-backend/internal/middleware"
	"github.com/gofiber/fiber/v2"
)

func errorJSON(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(dto.ErrorResponse{Error: message})
}

// callerID returns the authenticated user id; the route group guarantees one.
func callerID(c *fiber.Ctx) (string, bool) {
	id, err := middleware.GetIdentity(c)
	if err != nil {
		return "", false
	}
	return id.UserID, true
}
