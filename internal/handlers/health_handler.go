package handlers

import (
	"time"

	"github.com/ahmetcoskunkizilkaya/studio-backend/internal/cache"
	"github.com/ahmetcoskunkizilkaya/studio-backend/internal/dto"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

type HealthHandler struct {
	dbPing func() error
	rdb    *redis.Client
}

func NewHealthHandler(dbPing func() error, rdb *redis.Client) *HealthHandler {
	return &HealthHandler{dbPing: dbPing, rdb: rdb}
}

func (h *HealthHandler) Check(c *fiber.Ctx) error {
	status := "ok"
	dbStatus := "ok"
	if err := h.dbPing(); err != nil {
		dbStatus = "unhealthy: " + err.Error()
		status = "degraded"
	}

	return c.JSON(dto.HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		DB:        dbStatus,
		Cache:     cache.Ping(c.UserContext(), h.rdb),
	})
}
