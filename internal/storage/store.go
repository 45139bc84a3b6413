package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	thumbnailDir = "_thumbnails"
	streamDir    = "_hls"

	// ManifestName is the playlist file written by the packager.
	ManifestName = "index.m3u8"
)

// segmentNameRe is the only shape a segment request may take. Anything
// else is rejected before the filesystem is touched.
var segmentNameRe = regexp.MustCompile(`^seg_\d+\.ts$`)

var ErrInvalidSegmentName = errors.New("invalid segment name")

// Store owns the filesystem tree holding originals and derived assets.
// It knows nothing about catalog state; every path is a pure derivation
// from an asset id or a stored relative path.
type Store struct {
	root string
	log  *zap.SugaredLogger
}

func New(root string, log *zap.SugaredLogger) (*Store, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage root: %w", err)
	}
	return &Store{root: abs, log: log}, nil
}

func (s *Store) Root() string {
	return s.root
}

// Abs resolves a stored relative path against the root. Paths that would
// escape the root resolve to "" so callers treat them as missing.
func (s *Store) Abs(rel string) string {
	abs := filepath.Join(s.root, filepath.FromSlash(rel))
	if !strings.HasPrefix(abs, s.root+string(os.PathSeparator)) {
		return ""
	}
	return abs
}

// AllocateOriginal reserves a path for a new original under the
// year/month partition for now. The filename derives from the asset's
// uuid, so two calls can never collide. The directory exists on return.
func (s *Store) AllocateOriginal(id, ext string, now time.Time) (rel string, abs string, err error) {
	dir := filepath.Join(s.root, now.Format("2006"), now.Format("01"))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", "", fmt.Errorf("failed to create storage dir: %w", err)
	}
	filename := id + strings.ToLower(ext)
	abs = filepath.Join(dir, filename)
	rel = filepath.ToSlash(filepath.Join(now.Format("2006"), now.Format("01"), filename))
	return rel, abs, nil
}

// ThumbnailPath derives the thumbnail location for an asset. The
// directory exists on return.
func (s *Store) ThumbnailPath(id string) (rel string, abs string, err error) {
	dir := filepath.Join(s.root, thumbnailDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", "", err
	}
	filename := id + ".jpg"
	return thumbnailDir + "/" + filename, filepath.Join(dir, filename), nil
}

// StreamDir is where the packager writes an asset's manifest and segments.
func (s *Store) StreamDir(id string) string {
	return filepath.Join(s.root, streamDir, id)
}

// StreamManifestRel is the stored relative path of an asset's manifest.
func (s *Store) StreamManifestRel(id string) string {
	return streamDir + "/" + id + "/" + ManifestName
}

// SegmentPath validates name against the strict segment pattern and
// derives its location. Rejecting bad names here is what keeps
// "../../etc/passwd" requests away from the filesystem.
func (s *Store) SegmentPath(id, name string) (string, error) {
	if !segmentNameRe.MatchString(name) {
		return "", ErrInvalidSegmentName
	}
	return filepath.Join(s.StreamDir(id), name), nil
}

// ValidSegmentName reports whether name matches the segment pattern.
func ValidSegmentName(name string) bool {
	return segmentNameRe.MatchString(name)
}

// DeleteOriginal removes a stored original. Best-effort: a missing file
// is fine and IO errors are logged, not returned, so one bad artifact
// never blocks removal of the rest.
func (s *Store) DeleteOriginal(rel string) {
	if rel == "" {
		return
	}
	s.removeFile(s.Abs(rel))
}

// DeleteThumbnail removes a stored thumbnail, best-effort.
func (s *Store) DeleteThumbnail(rel string) {
	if rel == "" {
		return
	}
	s.removeFile(s.Abs(rel))
}

// DeleteStream removes an asset's entire stream directory, best-effort.
func (s *Store) DeleteStream(id string) {
	if id == "" {
		return
	}
	if err := os.RemoveAll(s.StreamDir(id)); err != nil {
		s.log.Warnw("failed to delete stream dir", "id", id, "error", err)
	}
}

func (s *Store) removeFile(abs string) {
	if abs == "" {
		return
	}
	if err := os.Remove(abs); err != nil && !os.IsNotExist(err) {
		s.log.Warnw("failed to delete file", "path", abs, "error", err)
	}
}

// DiskUsage walks the store root summing file sizes. Unreadable
// subtrees are skipped rather than aborting the walk.
func (s *Store) DiskUsage() int64 {
	var size int64
	filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if info, err := d.Info(); err == nil {
			size += info.Size()
		}
		return nil
	})
	return size
}
