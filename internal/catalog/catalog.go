package catalog

import (
	"errors"
	"math"
	"strings"
	"time"

	"gorm.io/gorm"

	"mediahub/internal/models"
)

// ErrNotFound is returned when an id has no catalog row.
var ErrNotFound = errors.New("media not found")

// ValidationError marks bad caller input, surfaced as a client error.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// mutableFields is the update allow-list. Anything else sent to Update
// is silently ignored.
var mutableFields = map[string]bool{
	"tags":           true,
	"description":    true,
	"status":         true,
	"thumbnail_path": true,
	"width":          true,
	"height":         true,
	"duration":       true,
	"stream_path":    true,
}

// allowedSorts maps accepted sort keys to columns. Unknown keys fall
// back to newest-first.
var allowedSorts = map[string]string{
	"created_at":    "created_at",
	"original_name": "original_name",
	"size":          "size",
	"duration":      "duration",
}

// Catalog is the authoritative metadata store. A single instance is
// shared process-wide; all mutations serialize through its gorm handle.
type Catalog struct {
	db              *gorm.DB
	defaultPageSize int
	maxPageSize     int
}

func New(db *gorm.DB, defaultPageSize, maxPageSize int) *Catalog {
	return &Catalog{
		db:              db,
		defaultPageSize: defaultPageSize,
		maxPageSize:     maxPageSize,
	}
}

// Insert stores a freshly-ingested asset. The row must still be in
// processing status and carry all immutable intake fields.
func (c *Catalog) Insert(m *models.Media) error {
	if m.OriginalName == "" || m.Mime == "" || m.StoragePath == "" {
		return &ValidationError{Reason: "media is missing required fields"}
	}
	if m.Type != models.MediaTypeImage && m.Type != models.MediaTypeVideo {
		return &ValidationError{Reason: "media has no valid type"}
	}
	if m.Status != "" && m.Status != models.MediaStatusProcessing {
		return &ValidationError{Reason: "new media must be in processing status"}
	}
	return c.db.Create(m).Error
}

func (c *Catalog) Get(id string) (*models.Media, error) {
	var m models.Media
	if err := c.db.First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

// Update applies the allow-listed subset of fields and bumps
// updated_at. An empty intersection is a no-op that still returns the
// current row.
func (c *Catalog) Update(id string, fields map[string]interface{}) (*models.Media, error) {
	if _, err := c.Get(id); err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	for key, value := range fields {
		if mutableFields[key] {
			updates[key] = value
		}
	}

	if len(updates) > 0 {
		updates["updated_at"] = time.Now()
		if err := c.db.Model(&models.Media{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return nil, err
		}
	}

	return c.Get(id)
}

type ListQuery struct {
	Type     string
	Search   string
	Sort     string
	Order    string
	Page     int
	PageSize int
}

type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"pageSize"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
}

type ListResult struct {
	Items      []models.Media `json:"items"`
	Pagination Pagination     `json:"pagination"`
}

// List returns one page of assets matching the query, plus a pagination
// block computed from a count over the same filter.
func (c *Catalog) List(q ListQuery) (*ListResult, error) {
	base := c.db.Model(&models.Media{})

	if q.Type != "" && q.Type != "all" {
		base = base.Where("type = ?", q.Type)
	}
	if q.Search != "" {
		s := "%" + strings.ToLower(q.Search) + "%"
		base = base.Where(
			"(LOWER(original_name) LIKE ? OR LOWER(tags) LIKE ? OR LOWER(description) LIKE ?)",
			s, s, s,
		)
	}

	sortCol, ok := allowedSorts[q.Sort]
	order := "DESC"
	if ok && strings.EqualFold(q.Order, "asc") {
		order = "ASC"
	}
	if !ok {
		sortCol = "created_at"
		order = "DESC"
	}

	page := q.Page
	if page < 1 {
		page = 1
	}
	pageSize := q.PageSize
	if pageSize <= 0 {
		pageSize = c.defaultPageSize
	}
	if pageSize > c.maxPageSize {
		pageSize = c.maxPageSize
	}

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, err
	}

	var items []models.Media
	err := base.Session(&gorm.Session{}).
		Order(sortCol + " " + order).
		Limit(pageSize).
		Offset((page - 1) * pageSize).
		Find(&items).Error
	if err != nil {
		return nil, err
	}

	return &ListResult{
		Items: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: int(math.Ceil(float64(total) / float64(pageSize))),
		},
	}, nil
}

// BatchGet returns the rows that still exist for the given ids.
func (c *Catalog) BatchGet(ids []string) ([]models.Media, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var items []models.Media
	if err := c.db.Where("id IN ?", ids).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// Delete removes a single row.
func (c *Catalog) Delete(id string) error {
	res := c.db.Where("id = ?", id).Delete(&models.Media{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// BatchDelete removes rows for the given ids, tolerating ids that no
// longer exist, and reports how many rows actually went away.
func (c *Catalog) BatchDelete(ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := c.db.Where("id IN ?", ids).Delete(&models.Media{})
	return res.RowsAffected, res.Error
}

type TypeStat struct {
	Count int64 `json:"count"`
	Size  int64 `json:"size"`
}

type Stats struct {
	TotalFiles int64                         `json:"totalFiles"`
	TotalSize  int64                         `json:"totalSize"`
	ByType     map[models.MediaType]TypeStat `json:"byType"`
	Recent     []models.Media                `json:"recent"`
}

const recentLimit = 5

// Stats aggregates catalog totals plus the most recent uploads.
func (c *Catalog) Stats() (*Stats, error) {
	stats := &Stats{
		ByType: map[models.MediaType]TypeStat{
			models.MediaTypeImage: {},
			models.MediaTypeVideo: {},
		},
	}

	if err := c.db.Model(&models.Media{}).Count(&stats.TotalFiles).Error; err != nil {
		return nil, err
	}

	var totalSize *int64
	if err := c.db.Model(&models.Media{}).Select("SUM(size)").Scan(&totalSize).Error; err != nil {
		return nil, err
	}
	if totalSize != nil {
		stats.TotalSize = *totalSize
	}

	var rows []struct {
		Type  models.MediaType
		Count int64
		Size  int64
	}
	err := c.db.Model(&models.Media{}).
		Select("type, COUNT(*) as count, COALESCE(SUM(size), 0) as size").
		Group("type").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		stats.ByType[row.Type] = TypeStat{Count: row.Count, Size: row.Size}
	}

	if err := c.db.Order("created_at DESC").Limit(recentLimit).Find(&stats.Recent).Error; err != nil {
		return nil, err
	}

	return stats, nil
}
