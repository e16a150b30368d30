package observability

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ScrapeHandler serves the Prometheus exposition endpoint, registering the
// report collectors on first use. Gather errors are reported alongside
// whatever metrics could still be collected rather than failing the scrape.
func ScrapeHandler() fiber.Handler {
	RegisterMetrics()

	scrape := promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{
		ErrorHandling: promhttp.ContinueOnError,
	})

	return adaptor.HTTPHandler(scrape)
}
