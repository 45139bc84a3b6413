package pipeline

import (
	"errors"
	"sync"

	"go.uber.org/zap"

	"mediahub/internal/catalog"
	"mediahub/internal/models"
	"mediahub/internal/services"
	"mediahub/internal/storage"
)

// Processor is the external prober/transcoder surface the pipeline
// drives. services.MediaProcessor is the real one; tests stub it.
type Processor interface {
	Available() bool
	Probe(videoPath string) (*services.MediaMetadata, error)
	CaptureFrame(videoPath, thumbnailPath string) error
	ImageThumbnail(imagePath, thumbnailPath string) error
	PackageStream(videoPath, outputDir string) (string, error)
}

// ErrStopped is returned by Enqueue after Stop.
var ErrStopped = errors.New("pipeline stopped")

// Pipeline turns freshly-ingested assets into playable ones: probe,
// thumbnail, segmented-stream packaging, then exactly one terminal
// status write. A bounded worker pool caps concurrent transcodes; when
// the queue is full Enqueue blocks, which is the back-pressure signal.
type Pipeline struct {
	catalog *catalog.Catalog
	store   *storage.Store
	proc    Processor
	log     *zap.SugaredLogger

	workers int
	jobs    chan string
	quit    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
}

func New(cat *catalog.Catalog, store *storage.Store, proc Processor, workers, queueSize int, log *zap.SugaredLogger) *Pipeline {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	return &Pipeline{
		catalog: cat,
		store:   store,
		proc:    proc,
		log:     log,
		workers: workers,
		jobs:    make(chan string, queueSize),
		quit:    make(chan struct{}),
	}
}

// Start launches the worker pool.
func (p *Pipeline) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.run()
	}
	p.log.Infow("pipeline started", "workers", p.workers, "queue", cap(p.jobs))
}

// Stop halts the workers after their current job. Queued jobs are
// dropped; their assets stay in processing until re-ingested.
func (p *Pipeline) Stop() {
	p.once.Do(func() {
		close(p.quit)
	})
	p.wg.Wait()
}

// Enqueue schedules the one pipeline run an asset ever gets. It blocks
// while the queue is full.
func (p *Pipeline) Enqueue(id string) error {
	select {
	case <-p.quit:
		return ErrStopped
	case p.jobs <- id:
		return nil
	}
}

// QueueDepth reports how many jobs are waiting for a worker.
func (p *Pipeline) QueueDepth() int {
	return len(p.jobs)
}

func (p *Pipeline) run() {
	defer p.wg.Done()
	for {
		select {
		case <-p.quit:
			return
		case id := <-p.jobs:
			p.process(id)
		}
	}
}

// process runs the per-asset state machine. Probe and thumbnail
// failures are non-fatal; packaging failure is what marks the asset
// error. The terminal status is written exactly once, at the end.
func (p *Pipeline) process(id string) {
	m, err := p.catalog.Get(id)
	if err != nil {
		p.log.Warnw("pipeline job for unknown asset", "id", id, "error", err)
		return
	}
	if m.Status != models.MediaStatusProcessing {
		// Already terminal; never re-run.
		p.log.Warnw("skipping pipeline re-run", "id", id, "status", m.Status)
		return
	}

	updates := make(map[string]interface{})
	src := p.store.Abs(m.StoragePath)

	switch m.Type {
	case models.MediaTypeImage:
		p.processImage(m, src, updates)
		updates["status"] = models.MediaStatusReady
	case models.MediaTypeVideo:
		p.processVideo(m, src, updates)
	default:
		updates["status"] = models.MediaStatusError
	}

	if _, err := p.catalog.Update(id, updates); err != nil {
		p.log.Errorw("failed to record pipeline result", "id", id, "error", err)
		return
	}
	p.log.Infow("processed", "id", id, "name", m.OriginalName, "status", updates["status"])
}

func (p *Pipeline) processImage(m *models.Media, src string, updates map[string]interface{}) {
	rel, abs, err := p.store.ThumbnailPath(m.ID)
	if err != nil {
		p.log.Warnw("failed to allocate thumbnail path", "id", m.ID, "error", err)
		return
	}
	// Not all allowed image formats decode (svg); delivery falls back
	// to the original when no thumbnail exists.
	if err := p.proc.ImageThumbnail(src, abs); err != nil {
		p.log.Debugw("image thumbnail skipped", "id", m.ID, "error", err)
		return
	}
	updates["thumbnail_path"] = rel
}

func (p *Pipeline) processVideo(m *models.Media, src string, updates map[string]interface{}) {
	if !p.proc.Available() {
		// No prober/transcoder installed at all: serve the original via
		// range requests instead of refusing every video.
		p.log.Infow("transcoder unavailable, skipping derived assets", "id", m.ID)
		updates["status"] = models.MediaStatusReady
		return
	}

	// Probe stage: failure leaves dimensions null and moves on.
	if meta, err := p.proc.Probe(src); err != nil {
		p.log.Warnw("probe failed", "id", m.ID, "error", err)
	} else {
		if meta.Width > 0 {
			updates["width"] = meta.Width
		}
		if meta.Height > 0 {
			updates["height"] = meta.Height
		}
		if meta.Duration > 0 {
			updates["duration"] = meta.Duration
		}
	}

	// Thumbnail stage: failure means delivery falls back to the
	// placeholder, nothing more.
	if rel, abs, err := p.store.ThumbnailPath(m.ID); err != nil {
		p.log.Warnw("failed to allocate thumbnail path", "id", m.ID, "error", err)
	} else if err := p.proc.CaptureFrame(src, abs); err != nil {
		p.log.Warnw("thumbnail capture failed", "id", m.ID, "error", err)
	} else {
		updates["thumbnail_path"] = rel
	}

	// Packaging stage: a half-written stream directory must not
	// survive, and its failure is what puts the asset in error.
	if _, err := p.proc.PackageStream(src, p.store.StreamDir(m.ID)); err != nil {
		p.log.Errorw("stream packaging failed", "id", m.ID, "error", err)
		p.store.DeleteStream(m.ID)
		updates["status"] = models.MediaStatusError
		return
	}

	updates["stream_path"] = p.store.StreamManifestRel(m.ID)
	updates["status"] = models.MediaStatusReady
}
