package config

import (
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Port string
	Host string

	// Storage
	StoragePath string
	DataPath    string
	DBFile      string

	// Upload limits
	MaxFileSize       int64
	MaxFilesPerUpload int

	// Allowed MIME types
	AllowedImageTypes []string
	AllowedVideoTypes []string

	// Thumbnails
	ThumbnailWidth int

	// HLS packaging
	SegmentSeconds int

	// Pipeline
	PipelineWorkers int
	PipelineQueue   int

	// Pagination
	DefaultPageSize int
	MaxPageSize     int

	// Base URL for generated links (empty = derive from request)
	BaseURL string
}

func Load() *Config {
	return &Config{
		Port: getEnv("PORT", "3900"),
		Host: getEnv("HOST", "0.0.0.0"),

		StoragePath: getEnv("STORAGE_PATH", "./media"),
		DataPath:    getEnv("DATA_PATH", "./data"),
		DBFile:      getEnv("DB_FILE", "media.db"),

		MaxFileSize:       getInt64Env("MAX_FILE_SIZE", 500*1024*1024),
		MaxFilesPerUpload: getIntEnv("MAX_FILES_PER_UPLOAD", 20),

		AllowedImageTypes: getListEnv("ALLOWED_IMAGE_TYPES",
			"image/jpeg", "image/png", "image/gif", "image/webp", "image/svg+xml", "image/bmp"),
		AllowedVideoTypes: getListEnv("ALLOWED_VIDEO_TYPES",
			"video/mp4", "video/webm", "video/ogg", "video/quicktime", "video/x-msvideo", "video/x-matroska"),

		ThumbnailWidth: getIntEnv("THUMBNAIL_WIDTH", 320),

		SegmentSeconds: getIntEnv("HLS_SEGMENT_SECONDS", 6),

		PipelineWorkers: getIntEnv("PIPELINE_WORKERS", 2),
		PipelineQueue:   getIntEnv("PIPELINE_QUEUE_SIZE", 64),

		DefaultPageSize: getIntEnv("DEFAULT_PAGE_SIZE", 30),
		MaxPageSize:     getIntEnv("MAX_PAGE_SIZE", 100),

		BaseURL: getEnv("BASE_URL", ""),
	}
}

// AllowedTypes returns the combined MIME allow-list for uploads.
func (c *Config) AllowedTypes() []string {
	all := make([]string, 0, len(c.AllowedImageTypes)+len(c.AllowedVideoTypes))
	all = append(all, c.AllowedImageTypes...)
	all = append(all, c.AllowedVideoTypes...)
	return all
}

// IsVideoType reports whether the MIME type maps to the video asset type.
func (c *Config) IsVideoType(mime string) bool {
	for _, t := range c.AllowedVideoTypes {
		if strings.EqualFold(t, mime) {
			return true
		}
	}
	return false
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getInt64Env(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseInt(value, 10, 64)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getListEnv(key string, defaultValue ...string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return defaultValue
}
