package middleware

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

const identityKey = "identity"

var ErrNoIdentity = errors.New("no identity in request context")

// Identity is the caller as asserted by the identity provider's token.
type Identity struct {
	UserID   string
	Email    string
	Username string
}

// RequireIdentity turns the verified token into an Identity. Tokens without
// a subject are rejected.
func RequireIdentity() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := identityFromToken(c)
		if err != nil {
			return Unauthorized(c)
		}
		c.Locals(identityKey, id)
		return c.Next()
	}
}

// GetIdentity returns the Identity stored by RequireIdentity.
func GetIdentity(c *fiber.Ctx) (Identity, error) {
	if id, ok := c.Locals(identityKey).(Identity); ok {
		return id, nil
	}
	return identityFromToken(c)
}

func identityFromToken(c *fiber.Ctx) (Identity, error) {
	token, ok := c.Locals("user").(*jwt.Token)
	if !ok || token == nil {
		return Identity{}, ErrNoIdentity
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, errors.New("invalid claims")
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return Identity{}, errors.New("missing sub claim")
	}
	id := Identity{UserID: sub}
	id.Email, _ = claims["email"].(string)
	id.Username, _ = claims["username"].(string)
	if id.Username == "" {
		id.Username, _ = claims["preferred_username"].(string)
	}
	return id, nil
}

// RequestLogger returns the default logger carrying the request id and, when
// known, the caller's user id.
func RequestLogger(c *fiber.Ctx) *slog.Logger {
	logger := slog.Default()
	if rid, ok := c.Locals("requestid").(string); ok && rid != "" {
		logger = logger.With("request_id", rid)
	}
	if id, ok := c.Locals(identityKey).(Identity); ok {
		logger = logger.With("user_id", id.UserID)
	}
	return logger
}
