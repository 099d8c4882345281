package middleware

import (
	"github.com/ahmetcoskunkizilkaya/studio-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/studio-backend/internal/dto"
	jwtware "github.com/gofiber/contrib/jwt"
	"github.com/gofiber/fiber/v2"
)

// JWTProtected verifies the identity provider's HS256 session token. Requests
// matched by skip bypass verification.
func JWTProtected(cfg *config.Config, skip ...func(*fiber.Ctx) bool) fiber.Handler {
	var filter func(*fiber.Ctx) bool
	if len(skip) > 0 {
		filter = func(c *fiber.Ctx) bool {
			for _, s := range skip {
				if s(c) {
					return true
				}
			}
			return false
		}
	}
	return jwtware.New(jwtware.Config{
		Filter:     filter,
		SigningKey: jwtware.SigningKey{Key: []byte(cfg.JWTSecret)},
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return Unauthorized(c)
		},
	})
}

func Unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Error: "Unauthorized"})
}
