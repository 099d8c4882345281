package routes

import (
	"strings"
	"time"

	"github.com/ahmetcoskunkizilkaya/studio-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/studio-backend/internal/handlers"
	"github.com/ahmetcoskunkizilkaya/studio-backend/internal/middleware"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func Setup(
	app *fiber.App,
	cfg *config.Config,
	healthHandler *handlers.HealthHandler,
	creditsHandler *handlers.CreditsHandler,
	quotaHandler *handlers.QuotaHandler,
	billingHandler *handlers.BillingHandler,
	profileHandler *handlers.ProfileHandler,
	studioHandler *handlers.StudioHandler,
	webhookHandler *handlers.WebhookHandler,
	adminHandler *handlers.AdminHandler,
) {
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api")

	// General API rate limiter: 60 req/min per IP. Webhook deliveries are exempt.
	api.Use(limiter.New(limiter.Config{
		Max:               60,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
		Next: func(c *fiber.Ctx) bool {
			return strings.HasPrefix(c.Path(), "/api/webhooks/")
		},
	}))

	api.Get("/health", healthHandler.Check)

	// Webhooks authenticate by signature, not JWT.
	webhooks := api.Group("/webhooks")
	webhooks.Post("/stripe", webhookHandler.HandleStripe)
	webhooks.Post("/studio", webhookHandler.HandleStudio)

	// Admin: config allow-list or X-Admin-Token.
	admin := api.Group("/admin",
		middleware.JWTProtected(cfg, middleware.AdminToken(cfg)),
		middleware.AdminRequired(cfg),
	)
	admin.Get("/profiles/:id", adminHandler.GetProfile)
	admin.Post("/credits/:id", adminHandler.AdjustCredits)

	// Everything below requires a session token.
	authed := func(path string) fiber.Router {
		return api.Group(path, middleware.JWTProtected(cfg), middleware.RequireIdentity())
	}

	credits := authed("/credits")
	credits.Get("/balance", creditsHandler.Balance)
	credits.Post("/consume", creditsHandler.Consume)

	quota := authed("/quota")
	quota.Post("/check", quotaHandler.Check)
	quota.Post("/record", quotaHandler.Record)

	billing := authed("/billing")
	billing.Post("/cancel", billingHandler.Cancel)
	billing.Post("/downgrade", billingHandler.Downgrade)
	billing.Post("/retry-payment", billingHandler.RetryPayment)

	studio := authed("/studio")
	studio.Post("/generate", studioHandler.Generate)
	studio.Get("/tasks/:id", studioHandler.GetTask)

	api.Get("/me", middleware.JWTProtected(cfg), middleware.RequireIdentity(), profileHandler.Me)
}
