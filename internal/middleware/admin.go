package middleware

import (
	"strings"

	"github.com/ahmetcoskunkizilkaya/studio-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/studio-backend/internal/dto"
	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
)

const adminTokenKey = "admin_token"

// AdminToken reports whether the request carries an X-Admin-Token matching
// ADMIN_TOKEN_HASH. Pass it to JWTProtected so token-only callers skip JWT.
func AdminToken(cfg *config.Config) func(*fiber.Ctx) bool {
	hash := []byte(cfg.AdminTokenHash)
	return func(c *fiber.Ctx) bool {
		if len(hash) == 0 {
			return false
		}
		token := c.Get("X-Admin-Token")
		if token == "" {
			return false
		}
		if bcrypt.CompareHashAndPassword(hash, []byte(token)) != nil {
			return false
		}
		c.Locals(adminTokenKey, true)
		return true
	}
}

// AdminRequired admits the admin token holder and callers listed in
// ADMIN_EMAILS or ADMIN_USER_IDS.
func AdminRequired(cfg *config.Config) fiber.Handler {
	adminEmails := parseCSV(cfg.AdminEmails)
	adminUserIDs := parseCSV(cfg.AdminUserIDs)

	return func(c *fiber.Ctx) error {
		if ok, _ := c.Locals(adminTokenKey).(bool); ok {
			return c.Next()
		}

		id, err := GetIdentity(c)
		if err != nil {
			return Unauthorized(c)
		}

		if (id.Email != "" && containsFold(adminEmails, id.Email)) || contains(adminUserIDs, id.UserID) {
			c.Locals(identityKey, id)
			return c.Next()
		}

		RequestLogger(c).Warn("admin access denied", "user_id", id.UserID, "path", c.Path())
		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{Error: "Admin access required"})
	}
}

func parseCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func contains(list []string, val string) bool {
	for _, item := range list {
		if item == val {
			return true
		}
	}
	return false
}

func containsFold(list []string, val string) bool {
	for _, item := range list {
		if strings.EqualFold(item, val) {
			return true
		}
	}
	return false
}
