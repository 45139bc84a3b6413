package handlers

import (
	"runtime"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"mediahub/internal/pipeline"
)

type HealthHandler struct {
	db        *gorm.DB
	pipeline  *pipeline.Pipeline
	startTime time.Time
}

func NewHealthHandler(db *gorm.DB, pl *pipeline.Pipeline) *HealthHandler {
	return &HealthHandler{
		db:        db,
		pipeline:  pl,
		startTime: time.Now(),
	}
}

// Health returns detailed health status
func (h *HealthHandler) Health(c *fiber.Ctx) error {
	status := "healthy"
	checks := make(map[string]interface{})

	dbStatus := "up"
	if h.db != nil {
		sqlDB, err := h.db.DB()
		if err != nil {
			dbStatus = "error: " + err.Error()
			status = "degraded"
		} else if err := sqlDB.Ping(); err != nil {
			dbStatus = "error: " + err.Error()
			status = "degraded"
		}
	} else {
		dbStatus = "not configured"
		status = "degraded"
	}
	checks["database"] = dbStatus

	if h.pipeline != nil {
		checks["pipeline_queue"] = h.pipeline.QueueDepth()
	}

	return c.JSON(fiber.Map{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(h.startTime).String(),
		"checks":    checks,
	})
}

// Liveness returns a simple liveness check for Kubernetes
func (h *HealthHandler) Liveness(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "ok",
	})
}

// Readiness returns readiness status for Kubernetes
func (h *HealthHandler) Readiness(c *fiber.Ctx) error {
	if h.db != nil {
		sqlDB, err := h.db.DB()
		if err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status": "not ready",
				"reason": "database error",
			})
		}
		if err := sqlDB.Ping(); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status": "not ready",
				"reason": "database unreachable",
			})
		}
	}

	return c.JSON(fiber.Map{
		"status": "ready",
	})
}

// Metrics returns runtime metrics
func (h *HealthHandler) Metrics(c *fiber.Ctx) error {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	queueDepth := 0
	if h.pipeline != nil {
		queueDepth = h.pipeline.QueueDepth()
	}

	return c.JSON(fiber.Map{
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
		"uptime":         time.Since(h.startTime).String(),
		"uptime_seconds": time.Since(h.startTime).Seconds(),
		"runtime": fiber.Map{
			"go_version":    runtime.Version(),
			"num_goroutine": runtime.NumGoroutine(),
			"num_cpu":       runtime.NumCPU(),
			"gomaxprocs":    runtime.GOMAXPROCS(0),
		},
		"memory": fiber.Map{
			"alloc_mb":       float64(memStats.Alloc) / 1024 / 1024,
			"total_alloc_mb": float64(memStats.TotalAlloc) / 1024 / 1024,
			"sys_mb":         float64(memStats.Sys) / 1024 / 1024,
			"num_gc":         memStats.NumGC,
		},
		"pipeline": fiber.Map{
			"queue_depth": queueDepth,
		},
	})
}
