package main

import (
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"mediahub/internal/api"
	"mediahub/internal/catalog"
	"mediahub/internal/config"
	"mediahub/internal/database"
	"mediahub/internal/models"
	"mediahub/internal/pipeline"
	"mediahub/internal/services"
	"mediahub/internal/storage"
)

func main() {
	godotenv.Load()
	cfg := config.Load()

	zapLogger, err := zap.NewProduction()
	if err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}
	defer zapLogger.Sync()
	sugar := zapLogger.Sugar()

	// Database
	if err := os.MkdirAll(cfg.DataPath, 0755); err != nil {
		sugar.Fatalw("failed to create data directory", "error", err)
	}
	db, err := database.Open(filepath.Join(cfg.DataPath, cfg.DBFile))
	if err != nil {
		sugar.Fatalw("failed to connect to database", "error", err)
	}
	if err := database.Migrate(db, &models.Media{}); err != nil {
		sugar.Fatalw("failed to migrate database", "error", err)
	}

	// Asset store
	store, err := storage.New(cfg.StoragePath, sugar)
	if err != nil {
		sugar.Fatalw("failed to initialize storage", "error", err)
	}

	// Derived-asset pipeline
	cat := catalog.New(db, cfg.DefaultPageSize, cfg.MaxPageSize)
	processor := services.NewMediaProcessor(cfg.ThumbnailWidth, cfg.SegmentSeconds, sugar)
	if processor.Available() {
		sugar.Info("ffmpeg detected, streaming and thumbnails enabled")
	} else {
		sugar.Warn("ffmpeg/ffprobe not found, serving originals only")
	}
	pl := pipeline.New(cat, store, processor, cfg.PipelineWorkers, cfg.PipelineQueue, sugar)
	pl.Start()

	// HTTP server
	app := fiber.New(fiber.Config{
		BodyLimit: int(cfg.MaxFileSize) + 1024*1024,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "${time} ${status} ${method} ${path} ${latency}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Range",
	}))

	api.SetupRoutes(app, api.Deps{
		DB:       db,
		Catalog:  cat,
		Store:    store,
		Pipeline: pl,
		Config:   cfg,
		Log:      sugar,
	})

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		sugar.Info("shutting down server...")
		app.Shutdown()
	}()

	sugar.Infow("server starting", "host", cfg.Host, "port", cfg.Port)
	if err := app.Listen(cfg.Host + ":" + cfg.Port); err != nil {
		sugar.Fatalw("failed to start server", "error", err)
	}

	// Let in-flight pipeline jobs finish their current stage.
	pl.Stop()
}
