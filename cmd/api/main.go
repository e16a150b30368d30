package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/gradewatch/gradewatch-api/internal/canvas"
	"github.com/gradewatch/gradewatch-api/internal/config"
	"github.com/gradewatch/gradewatch-api/internal/database"
	"github.com/gradewatch/gradewatch-api/internal/handler"
	"github.com/gradewatch/gradewatch-api/internal/middleware"
	"github.com/gradewatch/gradewatch-api/internal/report"
	"github.com/gradewatch/gradewatch-api/internal/router"
	"github.com/gradewatch/gradewatch-api/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	location, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		log.Fatalf("failed to load timezone: %v", err)
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(cfg.RedisURL)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = nats.Connect(cfg.NATSURL)
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer natsConn.Close()
	}

	canvasClient := canvas.NewClient(cfg.CanvasBaseURL, cfg.CanvasToken, cfg.FetchTimeout, logger)

	reporterFactory := func() *report.Reporter {
		return report.NewReporter(canvasClient, report.ReporterConfig{
			UserID:      cfg.CanvasUserID,
			StudentName: cfg.StudentName,
			Term:        cfg.Term,
			Subjects:    cfg.Subjects,
			Location:    location,
			Workers:     cfg.LoadWorkers,
		}, logger)
	}

	reportService := service.NewReportService(reporterFactory, redisClient, cfg.ReportCacheTTL, natsConn, cfg.NATSSubject, logger)

	validate := validator.New(validator.WithRequiredStructEnabled())
	reportHandler := handler.NewReportHandler(reportService, validate, location, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		ReportHandler: reportHandler,
		JWTMiddleware: middleware.JWTProtected(cfg.JWTSecret),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app)
}

func waitForShutdown(app *fiber.App) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
