package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	defaultWidth     = 1080
	defaultHeight    = 1920
	defaultFrameRate = 30
	zoomEnd          = 1.2
	runTimeout       = 10 * time.Minute
	stderrLimit      = 500
)

// Renderer assembles vertical video segments with ffmpeg.
type Renderer struct {
	binary    string
	width     int
	height    int
	frameRate int
}

// NewRenderer builds a renderer for the given binary and output geometry.
// Zero geometry values fall back to 1080x1920 at 30fps.
func NewRenderer(binary string, width, height, frameRate int) *Renderer {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffmpeg"
	}
	if width <= 0 {
		width = defaultWidth
	}
	if height <= 0 {
		height = defaultHeight
	}
	if frameRate <= 0 {
		frameRate = defaultFrameRate
	}
	return &Renderer{binary: binary, width: width, height: height, frameRate: frameRate}
}

// Segment describes one rendered scene: a narration clip plus an optional
// still image that receives a slow zoom. Without an image the segment is a
// black background.
type Segment struct {
	ImagePath       string
	VoicePath       string
	DurationSeconds float64
	OutputPath      string
}

// RenderSegment renders a single segment to spec.OutputPath.
func (r *Renderer) RenderSegment(ctx context.Context, spec Segment) error {
	if strings.TrimSpace(spec.VoicePath) == "" {
		return errors.New("render segment: voice path required")
	}
	if strings.TrimSpace(spec.OutputPath) == "" {
		return errors.New("render segment: output path required")
	}

	var args []string
	if spec.ImagePath != "" && fileExists(spec.ImagePath) {
		args = []string{
			"-y", "-loop", "1", "-i", spec.ImagePath,
			"-i", spec.VoicePath, "-shortest", "-vf", r.zoomFilter(spec.DurationSeconds),
		}
	} else {
		args = []string{
			"-y", "-f", "lavfi",
			"-i", r.blackSource(spec.DurationSeconds),
			"-i", spec.VoicePath, "-shortest",
		}
	}
	args = append(args,
		"-c:v", "libx264", "-preset", "fast", "-c:a", "aac", "-b:a", "128k",
		spec.OutputPath,
	)
	if err := r.run(ctx, args); err != nil {
		return err
	}
	if !fileExists(spec.OutputPath) {
		return fmt.Errorf("render segment: ffmpeg did not produce %s", spec.OutputPath)
	}
	return nil
}

// Concat joins rendered segments with the concat demuxer using stream copy.
// The list file is written next to the output.
func (r *Renderer) Concat(ctx context.Context, segmentPaths []string, outputPath string) error {
	if len(segmentPaths) == 0 {
		return errors.New("concat: no segments")
	}
	if strings.TrimSpace(outputPath) == "" {
		return errors.New("concat: output path required")
	}

	var list strings.Builder
	for _, path := range segmentPaths {
		fmt.Fprintf(&list, "file '%s'\n", path)
	}
	listPath := filepath.Join(filepath.Dir(outputPath), "concat.txt")
	if err := os.WriteFile(listPath, []byte(list.String()), 0o644); err != nil {
		return fmt.Errorf("concat: write list file: %w", err)
	}

	args := []string{"-y", "-f", "concat", "-safe", "0", "-i", listPath, "-c", "copy", outputPath}
	if err := r.run(ctx, args); err != nil {
		return err
	}
	if !fileExists(outputPath) {
		return fmt.Errorf("concat: ffmpeg did not produce %s", outputPath)
	}
	return nil
}

// zoomFilter builds the scale/pad/zoompan chain for a slow push-in across
// the segment duration.
func (r *Renderer) zoomFilter(duration float64) string {
	frames := int(duration * float64(r.frameRate))
	if frames < 1 {
		frames = 1
	}
	increment := (zoomEnd - 1.0) / float64(frames)
	return fmt.Sprintf(
		"scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2,zoompan=z='min(zoom+%.6f,%.1f)':d=1:s=%dx%d:fps=%d",
		r.width, r.height,
		r.width, r.height,
		increment, zoomEnd,
		r.width, r.height, r.frameRate,
	)
}

// blackSource builds the lavfi input used when a segment has no image.
func (r *Renderer) blackSource(duration float64) string {
	if duration < 1 {
		duration = 1
	}
	return fmt.Sprintf(
		"color=c=black:s=%dx%d:d=%s",
		r.width, r.height,
		strconv.FormatFloat(duration, 'f', -1, 64),
	)
}

func (r *Renderer) run(ctx context.Context, args []string) error {
	runCtx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, r.binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf(
				"ffmpeg not found (%q). Install it on the machine running the pipeline workers: macOS: brew install ffmpeg, Linux: apt install ffmpeg",
				r.binary,
			)
		}
		detail := strings.TrimSpace(stderr.String())
		if len(detail) > stderrLimit {
			detail = detail[:stderrLimit]
		}
		return fmt.Errorf("ffmpeg failed: %w: %s", err, detail)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
