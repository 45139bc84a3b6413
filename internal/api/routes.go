package api

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"mediahub/internal/api/handlers"
	"mediahub/internal/catalog"
	"mediahub/internal/config"
	"mediahub/internal/pipeline"
	"mediahub/internal/storage"
)

// Deps carries everything the handlers need. Nothing here is a
// package-level singleton; the wiring in cmd/server owns the instances.
type Deps struct {
	DB       *gorm.DB
	Catalog  *catalog.Catalog
	Store    *storage.Store
	Pipeline *pipeline.Pipeline
	Config   *config.Config
	Log      *zap.SugaredLogger
}

func SetupRoutes(app *fiber.App, deps Deps) {
	healthHandler := handlers.NewHealthHandler(deps.DB, deps.Pipeline)
	app.Get("/health", healthHandler.Health)
	app.Get("/health/live", healthHandler.Liveness)
	app.Get("/health/ready", healthHandler.Readiness)
	app.Get("/metrics", healthHandler.Metrics)

	api := app.Group("/api")

	// Intake
	uploadHandler := handlers.NewUploadHandler(deps.Catalog, deps.Store, deps.Pipeline, deps.Config, deps.Log)
	api.Post("/upload", uploadHandler.Upload)

	// Catalog
	mediaHandler := handlers.NewMediaHandler(deps.Catalog, deps.Store, deps.Config.BaseURL, deps.Log)
	media := api.Group("/media")
	media.Get("/", mediaHandler.List)
	media.Post("/batch-delete", mediaHandler.BatchDelete)
	media.Post("/batch-links", mediaHandler.BatchLinks)
	media.Get("/:id", mediaHandler.Get)
	media.Patch("/:id", mediaHandler.Update)
	media.Delete("/:id", mediaHandler.Delete)

	// Delivery
	serveHandler := handlers.NewServeHandler(deps.Catalog, deps.Store, deps.Log)
	media.Get("/:id/file", serveHandler.File)
	media.Get("/:id/stream/index.m3u8", serveHandler.Manifest)
	media.Get("/:id/stream/:segment", serveHandler.Segment)
	media.Get("/:id/thumbnail", serveHandler.Thumbnail)

	// Stats
	statsHandler := handlers.NewStatsHandler(deps.Catalog, deps.Store, deps.Log)
	api.Get("/stats", statsHandler.Stats)
}
