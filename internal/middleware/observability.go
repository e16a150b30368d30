package middleware

import (
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/gradewatch/gradewatch-api/internal/observability"
)

// Observability attaches Prometheus metrics and structured latency/error
// logging for the report endpoints.
func Observability(logger zerolog.Logger) fiber.Handler {
	observability.RegisterMetrics()

	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		duration := time.Since(start)

		if !strings.HasPrefix(c.Path(), "/api/v1/reports") {
			return err
		}

		route := routeTemplate(c)
		method := c.Method()
		status := c.Response().StatusCode()
		statusLabel := fmt.Sprintf("%d", status)

		outcome := "ok"
		if status >= fiber.StatusBadRequest {
			outcome = "error"
		}
		observability.ReportRuns().WithLabelValues(route, outcome).Inc()
		observability.ReportLatency().WithLabelValues(route).Observe(duration.Seconds())

		requestLogger := logger.With().
			Str("correlation_id", GetCorrelationID(c)).
			Str("route", route).
			Str("method", method).
			Str("status", statusLabel).
			Dur("latency", duration).
			Logger()

		switch {
		case status >= fiber.StatusInternalServerError:
			requestLogger.Error().Msg("report request failed")
		case status >= fiber.StatusBadRequest:
			requestLogger.Warn().Msg("report request completed with client error")
		default:
			requestLogger.Info().Msg("report request completed")
		}

		return err
	}
}

func routeTemplate(c *fiber.Ctx) string {
	if c.Route() != nil && c.Route().Path != "" {
		return c.Route().Path
	}

	return c.Path()
}
