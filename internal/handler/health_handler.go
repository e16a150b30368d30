package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/gradewatch/gradewatch-api/internal/config"
)

// HealthCheck reports service liveness.
func HealthCheck(cfg config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"app":     cfg.AppName,
			"env":     cfg.AppEnv,
			"version": "1",
		})
	}
}
