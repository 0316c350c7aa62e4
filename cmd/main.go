package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"nightlife-matching-service/internal/config"
	"nightlife-matching-service/internal/database"
	"nightlife-matching-service/internal/handler"
	"nightlife-matching-service/internal/matching"
	"nightlife-matching-service/internal/middleware"
	"nightlife-matching-service/internal/repository"
	"nightlife-matching-service/internal/service"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Connect to PostgreSQL
	db, err := database.NewPostgres(cfg.DB)
	if err != nil {
		slog.Error("failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Connect to Redis (optional)
	rdb, err := database.NewRedis(cfg.Redis)
	if err != nil {
		slog.Error("failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	if rdb != nil {
		defer rdb.Close()
	}

	// Initialize layers
	stores := service.Stores{
		Preferences:  repository.NewPreferenceRepository(db),
		Catalog:      repository.NewEntityRepository(db),
		Interactions: repository.NewInteractionRepository(db),
		Social:       repository.NewSocialRepository(db),
		Snapshots:    repository.NewSnapshotRepository(db),
	}
	contentModel, err := loadContentModel(cfg.Matching.ContentModelPath)
	if err != nil {
		slog.Error("failed to load content model", "error", err)
		os.Exit(1)
	}
	engine := matching.NewEngine(matching.EngineConfig{
		AnomalyK:        cfg.Matching.AnomalyK,
		MinAnomalyBatch: cfg.Matching.MinAnomalyBatch,
		Trend: matching.TrendConfig{
			Threshold: cfg.Matching.TrendThreshold,
			MinRecent: cfg.Matching.TrendMinRecent,
		},
		Concurrency:  cfg.Matching.Concurrency,
		ContentModel: contentModel,
	}, slog.Default().With("component", "engine"))
	svc := service.NewMatchingService(stores, rdb, engine, cfg.Matching)
	h := handler.NewMatchingHandler(svc)

	// Load API docs
	swaggerYAML, err := os.ReadFile("docs/swagger.yaml")
	if err != nil {
		slog.Warn("docs/swagger.yaml not found, swagger UI will be unavailable", "error", err)
	}

	app := fiber.New(fiber.Config{
		AppName:      "nightlife-matching-service",
		ServerHeader: "nightlife-matching-service",
	})

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New())
	app.Use(middleware.AuthMiddleware(cfg.APITokens))
	app.Use(middleware.NewRateLimiter(rdb, cfg.RateLimit.Max, cfg.RateLimit.Window).Handler())

	if swaggerYAML != nil {
		handler.RegisterSwagger(app, swaggerYAML)
	}

	// Routes
	app.Get("/health", h.Health)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api/v1")
	api.Post("/users/:id/matches", h.GetMatches)
	api.Get("/users/:id/matches/history", h.MatchHistory)
	api.Get("/users/:id/preferences", h.GetPreferences)
	api.Patch("/users/:id/preferences", h.UpdatePreferences)
	api.Post("/users/:id/interactions", h.RecordInteraction)
	api.Post("/users/:id/connections", h.AddConnection)
	api.Post("/entities/:id/matches", h.GetEntityMatches)
	api.Get("/entities", h.ListEntities)
	api.Put("/entities", h.UpsertEntity)

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("nightlife-matching-service starting", "port", cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			slog.Error("server error", "error", err)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down nightlife-matching-service")
	_ = app.Shutdown()
	svc.Close()
}

// loadContentModel returns nil when no path is configured, which keeps tag
// overlap content scoring.
func loadContentModel(path string) (matching.ContentModel, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	model, err := matching.LoadLinearContentModel(f)
	if err != nil {
		return nil, err
	}
	slog.Info("content model loaded", "path", path, "weights", len(model.Weights))
	return model, nil
}
