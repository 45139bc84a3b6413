package handlers

import (
	"errors"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"mediahub/internal/catalog"
	"mediahub/internal/hls"
	"mediahub/internal/models"
	"mediahub/internal/storage"
)

// ServeHandler is the delivery layer: originals (full and ranged),
// stream manifests, segments and thumbnails.
type ServeHandler struct {
	catalog *catalog.Catalog
	store   *storage.Store
	log     *zap.SugaredLogger
}

func NewServeHandler(cat *catalog.Catalog, store *storage.Store, log *zap.SugaredLogger) *ServeHandler {
	return &ServeHandler{catalog: cat, store: store, log: log}
}

func (h *ServeHandler) lookup(c *fiber.Ctx) (*models.Media, error) {
	m, err := h.catalog.Get(c.Params("id"))
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return nil, c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Media not found",
			})
		}
		return nil, c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load media",
		})
	}
	return m, nil
}

var errMalformedRange = errors.New("malformed range")

// parseByteRange parses "bytes=start-end" with an optional end. The
// not-satisfiable case (start beyond the file) is signalled separately
// from malformed input because they produce different statuses.
func parseByteRange(header string, size int64) (start, end int64, err error) {
	spec, ok := strings.CutPrefix(header, "bytes=")
	if !ok || strings.Contains(spec, ",") {
		return 0, 0, errMalformedRange
	}
	first, rest, ok := strings.Cut(spec, "-")
	if !ok || first == "" {
		return 0, 0, errMalformedRange
	}
	start, err = strconv.ParseInt(first, 10, 64)
	if err != nil || start < 0 {
		return 0, 0, errMalformedRange
	}
	if rest == "" {
		end = size - 1
	} else {
		end, err = strconv.ParseInt(rest, 10, 64)
		if err != nil || end < start {
			return 0, 0, errMalformedRange
		}
		if end > size-1 {
			end = size - 1
		}
	}
	return start, end, nil
}

// fileRange streams one byte range of an open file and releases the
// handle when fasthttp finishes or the client goes away.
type fileRange struct {
	f *os.File
	r io.Reader
}

func (fr *fileRange) Read(p []byte) (int, error) { return fr.r.Read(p) }
func (fr *fileRange) Close() error               { return fr.f.Close() }

// File streams the stored original, honoring single byte-range
// requests: 206 with exactly end-start+1 bytes, 416 when the start is
// past the end of file, 200 for the whole thing otherwise.
func (h *ServeHandler) File(c *fiber.Ctx) error {
	m, err := h.lookup(c)
	if m == nil {
		return err
	}

	abs := h.store.Abs(m.StoragePath)
	info, statErr := os.Stat(abs)
	if abs == "" || statErr != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "File not found on disk",
		})
	}
	size := info.Size()

	rangeHeader := c.Get(fiber.HeaderRange)
	if rangeHeader == "" {
		f, err := os.Open(abs)
		if err != nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "File not found on disk",
			})
		}
		c.Set(fiber.HeaderContentType, m.Mime)
		c.Set(fiber.HeaderAcceptRanges, "bytes")
		c.Set(fiber.HeaderCacheControl, "public, max-age=86400")
		c.Set(fiber.HeaderContentDisposition, `inline; filename="`+strings.ReplaceAll(m.OriginalName, `"`, "")+`"`)
		return c.SendStream(f, int(size))
	}

	start, end, err := parseByteRange(rangeHeader, size)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Malformed range header",
		})
	}
	if start >= size {
		c.Set(fiber.HeaderContentRange, "bytes */"+strconv.FormatInt(size, 10))
		return c.SendStatus(fiber.StatusRequestedRangeNotSatisfiable)
	}

	f, err := os.Open(abs)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "File not found on disk",
		})
	}
	if _, err := f.Seek(start, io.SeekStart); err != nil {
		f.Close()
		h.log.Errorw("seek failed", "id", m.ID, "error", err)
		return c.SendStatus(fiber.StatusInternalServerError)
	}

	chunk := end - start + 1
	c.Status(fiber.StatusPartialContent)
	c.Set(fiber.HeaderContentRange,
		"bytes "+strconv.FormatInt(start, 10)+"-"+strconv.FormatInt(end, 10)+"/"+strconv.FormatInt(size, 10))
	c.Set(fiber.HeaderAcceptRanges, "bytes")
	c.Set(fiber.HeaderContentType, m.Mime)
	c.Set(fiber.HeaderCacheControl, "public, max-age=86400")
	return c.SendStream(&fileRange{f: f, r: io.LimitReader(f, chunk)}, int(chunk))
}

// Manifest serves the asset's playlist with every segment reference
// rewritten to route back through the delivery layer, so segment
// requests hit the same validation as everything else.
func (h *ServeHandler) Manifest(c *fiber.Ctx) error {
	m, err := h.lookup(c)
	if m == nil {
		return err
	}

	if m.StreamPath == "" {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Streaming not available",
		})
	}

	abs := h.store.Abs(m.StreamPath)
	f, err := os.Open(abs)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Stream manifest not found",
		})
	}
	defer f.Close()

	playlist, err := hls.Parse(f)
	if err != nil {
		h.log.Errorw("malformed manifest", "id", m.ID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Malformed stream manifest",
		})
	}

	playlist.RewriteURIs(func(uri string) string {
		return "/api/media/" + m.ID + "/stream/" + uri
	})

	c.Set(fiber.HeaderContentType, "application/vnd.apple.mpegurl")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	return c.SendString(playlist.String())
}

// Segment serves one stream segment. The name is validated before any
// filesystem access; a bad name is a client error, not a 404.
func (h *ServeHandler) Segment(c *fiber.Ctx) error {
	m, err := h.lookup(c)
	if m == nil {
		return err
	}

	segPath, err := h.store.SegmentPath(m.ID, c.Params("segment"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid segment name",
		})
	}

	if _, err := os.Stat(segPath); err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Segment not found",
		})
	}

	// Segments are immutable once packaged.
	c.Set(fiber.HeaderContentType, "video/mp2t")
	c.Set(fiber.HeaderCacheControl, "public, max-age=31536000, immutable")
	return c.SendFile(segPath)
}

// Thumbnail serves the stored thumbnail, falling back to the original
// for images and then to a generated placeholder. The chain never
// hard-fails for a known asset.
func (h *ServeHandler) Thumbnail(c *fiber.Ctx) error {
	m, err := h.lookup(c)
	if m == nil {
		return err
	}

	if m.ThumbnailPath != "" {
		abs := h.store.Abs(m.ThumbnailPath)
		if _, err := os.Stat(abs); err == nil {
			c.Set(fiber.HeaderCacheControl, "public, max-age=604800")
			return c.SendFile(abs)
		}
	}

	if m.Type == models.MediaTypeImage {
		abs := h.store.Abs(m.StoragePath)
		if _, err := os.Stat(abs); err == nil {
			c.Set(fiber.HeaderCacheControl, "public, max-age=604800")
			return c.SendFile(abs)
		}
	}

	label := "Image"
	if m.Type == models.MediaTypeVideo {
		label = "Video"
	}
	c.Set(fiber.HeaderContentType, "image/svg+xml")
	c.Set(fiber.HeaderCacheControl, "public, max-age=3600")
	return c.SendString(`<svg xmlns="http://www.w3.org/2000/svg" width="320" height="180" viewBox="0 0 320 180">
  <rect width="320" height="180" fill="#1a1a2e"/>
  <text x="160" y="90" text-anchor="middle" fill="#666" font-size="14" font-family="sans-serif">` + label + `</text>
</svg>`)
}
