package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/gradewatch/gradewatch-api/internal/config"
	"github.com/gradewatch/gradewatch-api/internal/handler"
	"github.com/gradewatch/gradewatch-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	ReportHandler *handler.ReportHandler
	JWTMiddleware fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))

	app.Get("/metrics", observability.ScrapeHandler())

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	if deps.ReportHandler != nil {
		reports := api.Group("/reports", jwtMiddleware)
		deps.ReportHandler.Register(reports)
	}
}
