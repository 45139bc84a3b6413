package handlers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	handler := NewHealthHandler(env.db, env.pipeline)
	env.app.Get("/health", handler.Health)

	resp, body := makeRequest(t, env.app, testRequest{Method: "GET", Path: "/health"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	data := parseResponse(t, body)
	assert.Equal(t, "healthy", data["status"])
	assert.NotNil(t, data["timestamp"])
	assert.NotNil(t, data["uptime"])

	checks := data["checks"].(map[string]interface{})
	assert.Equal(t, "up", checks["database"])
	assert.Contains(t, checks, "pipeline_queue")
}

func TestHealth_NoDatabase(t *testing.T) {
	env := newTestEnv(t)
	handler := NewHealthHandler(nil, env.pipeline)
	env.app.Get("/health", handler.Health)

	resp, body := makeRequest(t, env.app, testRequest{Method: "GET", Path: "/health"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	data := parseResponse(t, body)
	assert.Equal(t, "degraded", data["status"])
}

func TestLivenessAndReadiness(t *testing.T) {
	env := newTestEnv(t)
	handler := NewHealthHandler(env.db, env.pipeline)
	env.app.Get("/health/live", handler.Liveness)
	env.app.Get("/health/ready", handler.Readiness)

	resp, body := makeRequest(t, env.app, testRequest{Method: "GET", Path: "/health/live"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", parseResponse(t, body)["status"])

	resp, body = makeRequest(t, env.app, testRequest{Method: "GET", Path: "/health/ready"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ready", parseResponse(t, body)["status"])
}

func TestMetrics(t *testing.T) {
	env := newTestEnv(t)
	handler := NewHealthHandler(env.db, env.pipeline)
	env.app.Get("/metrics", handler.Metrics)

	resp, body := makeRequest(t, env.app, testRequest{Method: "GET", Path: "/metrics"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	data := parseResponse(t, body)
	for _, field := range []string{"timestamp", "uptime", "uptime_seconds", "runtime", "memory", "pipeline"} {
		assert.Contains(t, data, field)
	}

	rt := data["runtime"].(map[string]interface{})
	assert.NotNil(t, rt["go_version"])
	assert.NotNil(t, rt["num_goroutine"])

	mem := data["memory"].(map[string]interface{})
	assert.NotNil(t, mem["alloc_mb"])

	pl, ok := data["pipeline"].(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, pl, "queue_depth")
}
