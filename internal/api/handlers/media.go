package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"mediahub/internal/catalog"
	"mediahub/internal/models"
	"mediahub/internal/storage"
)

type MediaHandler struct {
	catalog *catalog.Catalog
	store   *storage.Store
	baseURL string
	log     *zap.SugaredLogger
}

// NewMediaHandler serves the catalog API: listing, lookup, allow-listed
// updates, deletion and link generation. baseURL overrides
// request-derived link hosts when set.
func NewMediaHandler(cat *catalog.Catalog, store *storage.Store, baseURL string, log *zap.SugaredLogger) *MediaHandler {
	return &MediaHandler{
		catalog: cat,
		store:   store,
		baseURL: baseURL,
		log:     log,
	}
}

type mediaURLs struct {
	File      string `json:"file"`
	Thumbnail string `json:"thumbnail"`
	Stream    string `json:"stream,omitempty"`
	Player    string `json:"player"`
	API       string `json:"api"`
}

type mediaResponse struct {
	models.Media
	URLs mediaURLs `json:"urls"`
}

func (h *MediaHandler) baseURLFor(c *fiber.Ctx) string {
	if h.baseURL != "" {
		return h.baseURL
	}
	return c.BaseURL()
}

func buildURLs(m *models.Media, baseURL string) mediaURLs {
	urls := mediaURLs{
		File:      baseURL + "/api/media/" + m.ID + "/file",
		Thumbnail: baseURL + "/api/media/" + m.ID + "/thumbnail",
		API:       baseURL + "/api/media/" + m.ID,
	}
	if m.StreamPath != "" {
		urls.Stream = baseURL + "/api/media/" + m.ID + "/stream/index.m3u8"
	}
	// Playback entry point: the stream when one exists, the raw file
	// otherwise.
	if urls.Stream != "" {
		urls.Player = urls.Stream
	} else {
		urls.Player = urls.File
	}
	return urls
}

func withURLs(m models.Media, baseURL string) mediaResponse {
	return mediaResponse{Media: m, URLs: buildURLs(&m, baseURL)}
}

// List returns a filtered, sorted page of the catalog.
func (h *MediaHandler) List(c *fiber.Ctx) error {
	result, err := h.catalog.List(catalog.ListQuery{
		Type:     c.Query("type"),
		Search:   c.Query("search"),
		Sort:     c.Query("sort"),
		Order:    c.Query("order"),
		Page:     c.QueryInt("page"),
		PageSize: c.QueryInt("limit"),
	})
	if err != nil {
		h.log.Errorw("list failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list media",
		})
	}

	baseURL := h.baseURLFor(c)
	items := make([]mediaResponse, 0, len(result.Items))
	for _, m := range result.Items {
		items = append(items, withURLs(m, baseURL))
	}

	return c.JSON(fiber.Map{
		"items":      items,
		"pagination": result.Pagination,
	})
}

// Get returns a single asset record.
func (h *MediaHandler) Get(c *fiber.Ctx) error {
	m, err := h.catalog.Get(c.Params("id"))
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Media not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load media",
		})
	}
	return c.JSON(withURLs(*m, h.baseURLFor(c)))
}

// Update applies allow-listed fields; anything else in the body is
// ignored rather than merged.
func (h *MediaHandler) Update(c *fiber.Ctx) error {
	var fields map[string]interface{}
	if err := c.BodyParser(&fields); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	m, err := h.catalog.Update(c.Params("id"), fields)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Media not found",
			})
		}
		h.log.Errorw("update failed", "id", c.Params("id"), "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update media",
		})
	}
	return c.JSON(withURLs(*m, h.baseURLFor(c)))
}

// Delete removes the catalog row and every stored artifact. Artifact
// removal is best-effort per type so one failure cannot strand the rest.
func (h *MediaHandler) Delete(c *fiber.Ctx) error {
	m, err := h.catalog.Get(c.Params("id"))
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Media not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load media",
		})
	}

	h.store.DeleteOriginal(m.StoragePath)
	h.store.DeleteThumbnail(m.ThumbnailPath)
	h.store.DeleteStream(m.ID)

	if err := h.catalog.Delete(m.ID); err != nil && !errors.Is(err, catalog.ErrNotFound) {
		h.log.Errorw("delete failed", "id", m.ID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete media",
		})
	}

	return c.JSON(fiber.Map{"success": true})
}

type idsRequest struct {
	IDs []string `json:"ids"`
}

// BatchDelete removes a set of assets, tolerating ids that are already
// gone, and reports how many rows were actually removed.
func (h *MediaHandler) BatchDelete(c *fiber.Ctx) error {
	var req idsRequest
	if err := c.BodyParser(&req); err != nil || len(req.IDs) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "ids array required",
		})
	}

	items, err := h.catalog.BatchGet(req.IDs)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load media",
		})
	}
	for _, item := range items {
		h.store.DeleteOriginal(item.StoragePath)
		h.store.DeleteThumbnail(item.ThumbnailPath)
		h.store.DeleteStream(item.ID)
	}

	deleted, err := h.catalog.BatchDelete(req.IDs)
	if err != nil {
		h.log.Errorw("batch delete failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete media",
		})
	}

	return c.JSON(fiber.Map{"success": true, "deleted": deleted})
}

// BatchLinks returns the direct/player/thumbnail URL triple for each
// requested id that still exists.
func (h *MediaHandler) BatchLinks(c *fiber.Ctx) error {
	var req idsRequest
	if err := c.BodyParser(&req); err != nil || len(req.IDs) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "ids array required",
		})
	}

	items, err := h.catalog.BatchGet(req.IDs)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load media",
		})
	}

	baseURL := h.baseURLFor(c)
	links := make([]fiber.Map, 0, len(items))
	for _, item := range items {
		urls := buildURLs(&item, baseURL)
		links = append(links, fiber.Map{
			"id":           item.ID,
			"name":         item.OriginalName,
			"type":         item.Type,
			"directUrl":    urls.File,
			"playerUrl":    urls.Player,
			"thumbnailUrl": urls.Thumbnail,
		})
	}

	return c.JSON(fiber.Map{"links": links})
}
