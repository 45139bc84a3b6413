package services

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"
)

// MediaMetadata contains information probed from a video file
type MediaMetadata struct {
	Width    int     // Frame width in pixels
	Height   int     // Frame height in pixels
	Duration float64 // Duration in seconds
}

// MediaProcessor wraps the external prober/transcoder (ffprobe/ffmpeg)
// plus in-process image thumbnailing. The external tools may be absent;
// Available reports whether video processing is possible at all.
type MediaProcessor struct {
	ffprobePath    string
	ffmpegPath     string
	thumbnailWidth int
	segmentSeconds int
	log            *zap.SugaredLogger
}

// NewMediaProcessor creates a processor, looking for ffprobe and ffmpeg
// in PATH.
func NewMediaProcessor(thumbnailWidth, segmentSeconds int, log *zap.SugaredLogger) *MediaProcessor {
	ffprobePath, _ := exec.LookPath("ffprobe")
	ffmpegPath, _ := exec.LookPath("ffmpeg")

	return &MediaProcessor{
		ffprobePath:    ffprobePath,
		ffmpegPath:     ffmpegPath,
		thumbnailWidth: thumbnailWidth,
		segmentSeconds: segmentSeconds,
		log:            log,
	}
}

// Available checks if ffprobe and ffmpeg are installed
func (s *MediaProcessor) Available() bool {
	return s.ffprobePath != "" && s.ffmpegPath != ""
}

// Probe extracts dimensions and duration from a video file.
func (s *MediaProcessor) Probe(videoPath string) (*MediaMetadata, error) {
	if s.ffprobePath == "" {
		return nil, fmt.Errorf("ffprobe not found in PATH")
	}

	cmd := exec.Command(s.ffprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		videoPath,
	)

	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}

	var probeData struct {
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
		Streams []struct {
			CodecType string `json:"codec_type"`
			Width     int    `json:"width"`
			Height    int    `json:"height"`
		} `json:"streams"`
	}

	if err := json.Unmarshal(output, &probeData); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	metadata := &MediaMetadata{}

	if probeData.Format.Duration != "" {
		if dur, err := strconv.ParseFloat(probeData.Format.Duration, 64); err == nil {
			metadata.Duration = dur
		}
	}

	for _, stream := range probeData.Streams {
		if stream.CodecType == "video" {
			metadata.Width = stream.Width
			metadata.Height = stream.Height
			break
		}
	}

	return metadata, nil
}

// CaptureFrame grabs a single representative frame from a video and
// writes it as a JPEG thumbnail.
func (s *MediaProcessor) CaptureFrame(videoPath, thumbnailPath string) error {
	if s.ffmpegPath == "" {
		return fmt.Errorf("ffmpeg not found in PATH")
	}

	// Extract at 1 second, falling back to the first frame for clips
	// shorter than that.
	cmd := exec.Command(s.ffmpegPath,
		"-i", videoPath,
		"-ss", "00:00:01",
		"-vframes", "1",
		"-vf", fmt.Sprintf("scale=%d:-1", s.thumbnailWidth),
		"-q:v", "5",
		"-y",
		thumbnailPath,
	)

	if err := cmd.Run(); err != nil {
		cmd = exec.Command(s.ffmpegPath,
			"-i", videoPath,
			"-vframes", "1",
			"-vf", fmt.Sprintf("scale=%d:-1", s.thumbnailWidth),
			"-q:v", "5",
			"-y",
			thumbnailPath,
		)
		if err := cmd.Run(); err != nil {
			return fmt.Errorf("failed to capture frame: %w", err)
		}
	}

	return nil
}

// ImageThumbnail resizes a stored image down to the thumbnail width,
// preserving aspect ratio.
func (s *MediaProcessor) ImageThumbnail(imagePath, thumbnailPath string) error {
	img, err := imaging.Open(imagePath, imaging.AutoOrientation(true))
	if err != nil {
		return fmt.Errorf("failed to decode image: %w", err)
	}

	thumb := img
	if img.Bounds().Dx() > s.thumbnailWidth {
		thumb = imaging.Resize(img, s.thumbnailWidth, 0, imaging.Lanczos)
	}

	if err := imaging.Save(thumb, thumbnailPath, imaging.JPEGQuality(85)); err != nil {
		return fmt.Errorf("failed to save thumbnail: %w", err)
	}
	return nil
}

// PackageStream transcodes a video into a VOD segmented stream: fixed
// duration segments named seg_NNN.ts plus an index.m3u8 listing all of
// them. Returns the absolute manifest path.
func (s *MediaProcessor) PackageStream(videoPath, outputDir string) (string, error) {
	if s.ffmpegPath == "" {
		return "", fmt.Errorf("ffmpeg not found in PATH")
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create stream directory: %w", err)
	}

	manifestPath := filepath.Join(outputDir, "index.m3u8")

	cmd := exec.Command(s.ffmpegPath,
		"-i", videoPath,
		"-codec:v", "libx264",
		"-codec:a", "aac",
		"-preset", "fast",
		"-crf", "23",
		"-movflags", "+faststart",
		"-hls_time", strconv.Itoa(s.segmentSeconds),
		"-hls_list_size", "0",
		"-hls_segment_filename", filepath.Join(outputDir, "seg_%03d.ts"),
		"-hls_playlist_type", "vod",
		"-f", "hls",
		"-y",
		manifestPath,
	)

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("stream packaging failed: %w", err)
	}

	return manifestPath, nil
}
