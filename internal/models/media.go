package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type MediaStatus string

const (
	MediaStatusProcessing MediaStatus = "processing"
	MediaStatusReady      MediaStatus = "ready"
	MediaStatusError      MediaStatus = "error"
)

type MediaType string

const (
	MediaTypeImage MediaType = "image"
	MediaTypeVideo MediaType = "video"
)

// Media is one ingested file plus everything the pipeline derives from it.
// Width/Height/Duration are populated only for videos, and only once the
// pipeline has probed the file. StreamPath being non-empty is the signal
// that a segmented stream exists for the asset.
type Media struct {
	ID            string      `gorm:"primaryKey" json:"id"`
	OriginalName  string      `gorm:"not null" json:"original_name"`
	Type          MediaType   `gorm:"not null;index" json:"type"`
	Mime          string      `gorm:"not null" json:"mime"`
	Size          int64       `gorm:"not null" json:"size"`
	Width         *int        `json:"width"`
	Height        *int        `json:"height"`
	Duration      *float64    `json:"duration"`
	ThumbnailPath string      `json:"thumbnail_path,omitempty"`
	StoragePath   string      `gorm:"not null" json:"storage_path"`
	StreamPath    string      `json:"stream_path,omitempty"`
	Tags          string      `gorm:"type:text;default:''" json:"tags"`
	Description   string      `gorm:"type:text;default:''" json:"description"`
	Status        MediaStatus `gorm:"default:processing;index" json:"status"`
	CreatedAt     time.Time   `gorm:"index" json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

func (m *Media) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.Status == "" {
		m.Status = MediaStatusProcessing
	}
	return nil
}

// IsTerminal reports whether the pipeline has finished with this asset.
func (m *Media) IsTerminal() bool {
	return m.Status == MediaStatusReady || m.Status == MediaStatusError
}
