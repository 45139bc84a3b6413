package handlers

import (
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"mediahub/internal/catalog"
	"mediahub/internal/config"
	"mediahub/internal/models"
	"mediahub/internal/pipeline"
	"mediahub/internal/storage"
)

type UploadHandler struct {
	catalog  *catalog.Catalog
	store    *storage.Store
	pipeline *pipeline.Pipeline
	cfg      *config.Config
	log      *zap.SugaredLogger
}

func NewUploadHandler(cat *catalog.Catalog, store *storage.Store, pl *pipeline.Pipeline, cfg *config.Config, log *zap.SugaredLogger) *UploadHandler {
	return &UploadHandler{
		catalog:  cat,
		store:    store,
		pipeline: pl,
		cfg:      cfg,
		log:      log,
	}
}

// Upload accepts one or more files, stores each original, inserts its
// catalog row in processing status and schedules its single pipeline
// run. The response returns as soon as the originals are on disk; the
// pipeline is never awaited. All validation happens before anything is
// persisted.
func (h *UploadHandler) Upload(c *fiber.Ctx) error {
	form, err := c.MultipartForm()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "No files uploaded",
		})
	}

	files := form.File["files"]
	if len(files) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "No files uploaded",
		})
	}
	if len(files) > h.cfg.MaxFilesPerUpload {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Too many files in one upload",
		})
	}
	for _, fh := range files {
		if fh.Size > h.cfg.MaxFileSize {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "File too large: " + fh.Filename,
			})
		}
		if !h.allowedType(fileContentType(fh)) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "File type " + fileContentType(fh) + " is not allowed",
			})
		}
	}

	tags := c.FormValue("tags")
	description := c.FormValue("description")

	results := make([]fiber.Map, 0, len(files))
	for _, fh := range files {
		m, err := h.ingest(c, fh, tags, description)
		if err != nil {
			h.log.Errorw("ingest failed", "name", fh.Filename, "error", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to store " + fh.Filename,
			})
		}
		results = append(results, fiber.Map{
			"id":   m.ID,
			"name": m.OriginalName,
			"type": m.Type,
			"size": m.Size,
		})
	}

	return c.JSON(fiber.Map{
		"success":  true,
		"uploaded": len(results),
		"files":    results,
	})
}

func (h *UploadHandler) ingest(c *fiber.Ctx, fh *multipart.FileHeader, tags, description string) (*models.Media, error) {
	id := uuid.New().String()
	mime := fileContentType(fh)

	mediaType := models.MediaTypeImage
	if h.cfg.IsVideoType(mime) {
		mediaType = models.MediaTypeVideo
	}

	rel, abs, err := h.store.AllocateOriginal(id, filepath.Ext(fh.Filename), time.Now())
	if err != nil {
		return nil, err
	}
	if err := c.SaveFile(fh, abs); err != nil {
		return nil, err
	}

	m := &models.Media{
		ID:           id,
		OriginalName: fh.Filename,
		Type:         mediaType,
		Mime:         mime,
		Size:         fh.Size,
		StoragePath:  rel,
		Tags:         tags,
		Description:  description,
		Status:       models.MediaStatusProcessing,
	}
	if err := h.catalog.Insert(m); err != nil {
		h.store.DeleteOriginal(rel)
		return nil, err
	}

	if err := h.pipeline.Enqueue(id); err != nil {
		h.log.Warnw("pipeline enqueue failed", "id", id, "error", err)
	}

	return m, nil
}

func (h *UploadHandler) allowedType(mime string) bool {
	for _, t := range h.cfg.AllowedTypes() {
		if strings.EqualFold(t, mime) {
			return true
		}
	}
	return false
}

func fileContentType(fh *multipart.FileHeader) string {
	ct := fh.Header.Get("Content-Type")
	// Strip any parameters, e.g. "; charset="
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	return ct
}
