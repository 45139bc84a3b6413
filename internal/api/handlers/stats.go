package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"mediahub/internal/catalog"
	"mediahub/internal/storage"
)

type StatsHandler struct {
	catalog *catalog.Catalog
	store   *storage.Store
	log     *zap.SugaredLogger
}

func NewStatsHandler(cat *catalog.Catalog, store *storage.Store, log *zap.SugaredLogger) *StatsHandler {
	return &StatsHandler{catalog: cat, store: store, log: log}
}

// Stats returns catalog totals, the per-type breakdown, the most recent
// uploads and actual on-disk usage of the store.
func (h *StatsHandler) Stats(c *fiber.Ctx) error {
	stats, err := h.catalog.Stats()
	if err != nil {
		h.log.Errorw("stats failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to compute stats",
		})
	}

	return c.JSON(fiber.Map{
		"totalFiles": stats.TotalFiles,
		"totalSize":  stats.TotalSize,
		"byType":     stats.ByType,
		"recent":     stats.Recent,
		"diskUsage":  h.store.DiskUsage(),
	})
}
