package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog/log"

	httpapi "github.com/i474232898/weather-env-sync/internal/api/http"
	"github.com/i474232898/weather-env-sync/internal/config"
	"github.com/i474232898/weather-env-sync/internal/environment"
	"github.com/i474232898/weather-env-sync/internal/logging"
	"github.com/i474232898/weather-env-sync/internal/metrics"
	"github.com/i474232898/weather-env-sync/internal/scheduler"
	"github.com/i474232898/weather-env-sync/internal/store"
	"github.com/i474232898/weather-env-sync/internal/weather"
	"github.com/i474232898/weather-env-sync/internal/weather/providers"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	logging.Init(cfg.LogLevel, cfg.LogFormat)

	if cfg.EnableDatadog {
		metrics.Init(cfg.DDAgentAddr, cfg.DDNamespace, cfg.DDTags)
		defer metrics.Close()
	}

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{
		Timeout: cfg.FetchTimeout,
	}

	provider, err := providers.New(cfg.Provider, httpClient,
		providers.NewSimulatedProvider(cfg.DebugCode, cfg.DebugTemp, cfg.DebugText))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create weather provider")
	}

	cache := store.NewMemoryCache(cfg.CacheTTL, cfg.StoreMaxHistory)
	service := weather.NewService(cache, provider, cfg.DefaultAPIKey)

	// Without a host scene graph every environment is simulated in-process,
	// starting from a plain day.
	registry := environment.NewMemoryRegistry()
	for _, id := range environment.All {
		registry.Register(id, environment.NewSimulatedHandle(id == environment.Day))
	}
	scenes := environment.NewScheduler(registry)

	loop := scheduler.New(service, scenes, scheduler.Options{
		Interval:     cfg.Interval(),
		FetchTimeout: cfg.FetchTimeout,
		APIKey:       cfg.APIKey,
		Location:     cfg.Location,
		SyncEnabled:  cfg.SyncEnabled,
		SunSync:      cfg.SunScheduleSync,
		Schedule:     cfg.Schedule,
	})
	if err := loop.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start sync loop")
	}
	defer loop.Stop()

	app := fiber.New(fiber.Config{
		AppName:               "weather-env-sync",
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
			"status":   "ok",
			"service":  "weather-env-sync",
			"provider": service.ProviderName(),
		})
	})

	httpapi.RegisterRoutes(app, scenes, loop, cache)

	go func() {
		log.Info().Str("port", cfg.Port).Msg("HTTP server listening")
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Error().Err(err).Msg("Fiber server stopped")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	log.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during shutdown")
	}
}
