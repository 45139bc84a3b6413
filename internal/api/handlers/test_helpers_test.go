package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"mediahub/internal/catalog"
	"mediahub/internal/config"
	"mediahub/internal/models"
	"mediahub/internal/pipeline"
	"mediahub/internal/services"
	"mediahub/internal/storage"
)

// stubProcessor stands in for ffmpeg/ffprobe. Failures are injected per
// stage; successful stages write small placeholder artifacts so the
// delivery handlers have real files to serve.
type stubProcessor struct {
	mu         sync.Mutex
	available  bool
	probeMeta  *services.MediaMetadata
	probeErr   error
	frameErr   error
	imageErr   error
	packageErr error
	frameCalls int
}

func (s *stubProcessor) Available() bool { return s.available }

func (s *stubProcessor) Probe(string) (*services.MediaMetadata, error) {
	if s.probeErr != nil {
		return nil, s.probeErr
	}
	if s.probeMeta != nil {
		return s.probeMeta, nil
	}
	return &services.MediaMetadata{Width: 1280, Height: 720, Duration: 12.5}, nil
}

func (s *stubProcessor) CaptureFrame(_, thumbnailPath string) error {
	s.mu.Lock()
	s.frameCalls++
	s.mu.Unlock()
	if s.frameErr != nil {
		return s.frameErr
	}
	return os.WriteFile(thumbnailPath, []byte("thumb"), 0644)
}

func (s *stubProcessor) ImageThumbnail(_, thumbnailPath string) error {
	if s.imageErr != nil {
		return s.imageErr
	}
	return os.WriteFile(thumbnailPath, []byte("thumb"), 0644)
}

func (s *stubProcessor) PackageStream(_, outputDir string) (string, error) {
	if s.packageErr != nil {
		return "", s.packageErr
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", err
	}
	manifest := filepath.Join(outputDir, "index.m3u8")
	playlist := "#EXTM3U\n#EXT-X-VERSION:3\n#EXT-X-TARGETDURATION:6\n" +
		"#EXTINF:6.0,\nseg_000.ts\n#EXTINF:4.2,\nseg_001.ts\n#EXT-X-ENDLIST\n"
	if err := os.WriteFile(manifest, []byte(playlist), 0644); err != nil {
		return "", err
	}
	os.WriteFile(filepath.Join(outputDir, "seg_000.ts"), []byte("segment-zero"), 0644)
	os.WriteFile(filepath.Join(outputDir, "seg_001.ts"), []byte("segment-one"), 0644)
	return manifest, nil
}

type testEnv struct {
	db       *gorm.DB
	catalog  *catalog.Catalog
	store    *storage.Store
	pipeline *pipeline.Pipeline
	proc     *stubProcessor
	cfg      *config.Config
	app      *fiber.App
}

// newTestEnv wires an in-memory catalog, a temp-dir store, a stubbed
// pipeline and the full route set, mirroring cmd/server.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Media{}))
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	})

	log := zap.NewNop().Sugar()
	store, err := storage.New(t.TempDir(), log)
	require.NoError(t, err)

	cfg := config.Load()
	cat := catalog.New(db, cfg.DefaultPageSize, cfg.MaxPageSize)
	proc := &stubProcessor{available: true}
	pl := pipeline.New(cat, store, proc, 2, 16, log)
	pl.Start()
	t.Cleanup(pl.Stop)

	app := fiber.New(fiber.Config{BodyLimit: int(cfg.MaxFileSize) + 1024*1024})

	uploadHandler := NewUploadHandler(cat, store, pl, cfg, log)
	app.Post("/api/upload", uploadHandler.Upload)

	mediaHandler := NewMediaHandler(cat, store, "", log)
	media := app.Group("/api/media")
	media.Get("/", mediaHandler.List)
	media.Post("/batch-delete", mediaHandler.BatchDelete)
	media.Post("/batch-links", mediaHandler.BatchLinks)
	media.Get("/:id", mediaHandler.Get)
	media.Patch("/:id", mediaHandler.Update)
	media.Delete("/:id", mediaHandler.Delete)

	serveHandler := NewServeHandler(cat, store, log)
	media.Get("/:id/file", serveHandler.File)
	media.Get("/:id/stream/index.m3u8", serveHandler.Manifest)
	media.Get("/:id/stream/:segment", serveHandler.Segment)
	media.Get("/:id/thumbnail", serveHandler.Thumbnail)

	statsHandler := NewStatsHandler(cat, store, log)
	app.Get("/api/stats", statsHandler.Stats)

	return &testEnv{
		db:       db,
		catalog:  cat,
		store:    store,
		pipeline: pl,
		proc:     proc,
		cfg:      cfg,
		app:      app,
	}
}

// seed inserts a row directly, bypassing intake validation so tests can
// create assets in any status.
func (e *testEnv) seed(t *testing.T, m *models.Media) *models.Media {
	t.Helper()
	require.NoError(t, e.db.Create(m).Error)
	return m
}

// writeOriginal puts a file into the store and returns its relative path.
func (e *testEnv) writeOriginal(t *testing.T, id, ext string, content []byte) string {
	t.Helper()
	rel, abs, err := e.store.AllocateOriginal(id, ext, time.Now())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(abs, content, 0644))
	return rel
}

// waitForTerminal polls until the pipeline writes a terminal status.
func (e *testEnv) waitForTerminal(t *testing.T, id string) *models.Media {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		m, err := e.catalog.Get(id)
		require.NoError(t, err)
		if m.IsTerminal() {
			return m
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("asset %s never left processing", id)
	return nil
}

type testRequest struct {
	Method  string
	Path    string
	Body    interface{}
	Headers map[string]string
}

// makeRequest executes a test request against the Fiber app
func makeRequest(t *testing.T, app *fiber.App, req testRequest) (*http.Response, []byte) {
	t.Helper()

	var bodyReader io.Reader
	if req.Body != nil {
		bodyBytes, err := json.Marshal(req.Body)
		require.NoError(t, err)
		bodyReader = bytes.NewReader(bodyBytes)
	}

	httpReq := httptest.NewRequest(req.Method, req.Path, bodyReader)
	httpReq.Header.Set("Content-Type", "application/json")
	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}

	resp, err := app.Test(httpReq, -1)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()

	return resp, body
}

// parseResponse parses a JSON response body into a map
func parseResponse(t *testing.T, body []byte) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &result))
	return result
}

type uploadFile struct {
	Fieldname   string
	Filename    string
	ContentType string
	Content     []byte
}

// createMultipartRequest builds a multipart body with proper per-part
// content type headers.
func createMultipartRequest(t *testing.T, files ...uploadFile) (*bytes.Buffer, string) {
	t.Helper()

	body := new(bytes.Buffer)
	writer := multipart.NewWriter(body)

	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, f.Fieldname, f.Filename))
		h.Set("Content-Type", f.ContentType)

		part, err := writer.CreatePart(h)
		require.NoError(t, err)
		_, err = io.Copy(part, bytes.NewReader(f.Content))
		require.NoError(t, err)
	}

	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}
