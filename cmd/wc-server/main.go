package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"

	httpapi "github.com/nmoran/wc-server/internal/api/http"
	"github.com/nmoran/wc-server/internal/config"
	"github.com/nmoran/wc-server/internal/decision"
	"github.com/nmoran/wc-server/internal/forecast"
	"github.com/nmoran/wc-server/internal/ingest"
	"github.com/nmoran/wc-server/internal/notify"
	"github.com/nmoran/wc-server/internal/scheduler"
	"github.com/nmoran/wc-server/internal/store"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Shared HTTP client for outbound forecast calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	var st store.Store
	if cfg.Database.Host != "" {
		pg, err := store.OpenPostgres(cfg.Database.ConnectionString())
		if err != nil {
			log.Fatalf("failed to open store: %v", err)
		}
		defer pg.Close()
		st = pg
	} else {
		log.Printf("no database configured; using in-memory store")
		st = store.NewMemoryStore()
	}

	client := forecast.NewClient(httpClient, cfg.Station.PointURL, cfg.Station.UserAgent)
	mailer := notify.NewSMTPMailer(cfg.SMTP)
	throttler := notify.NewThrottler(mailer, cfg.Notify.All, cfg.Notify.Primary)
	engine := decision.NewEngine(st)
	service := ingest.NewService(st, client, throttler, cfg.Retention)
	sched := scheduler.New(service, cfg.FetchInterval)

	// First cycle runs synchronously before the timer is armed. A failure
	// here is a failed cycle, not a failed process; the interval retries.
	startupCtx, cancelStartup := context.WithTimeout(context.Background(), cfg.FetchInterval)
	if err := sched.RunOnce(startupCtx); err != nil {
		log.Printf("initial cycle failed: %v", err)
	}
	cancelStartup()

	if err := sched.Start(); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	app := fiber.New(fiber.Config{
		AppName:               "wc-server",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	app.Use(logger.New())
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "wc-server",
		})
	})

	httpapi.RegisterRoutes(app, st, engine)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("fiber server stopped: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("error during shutdown: %v", err)
	}
}
