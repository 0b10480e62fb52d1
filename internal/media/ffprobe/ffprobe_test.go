package ffprobe

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestResultHelpers(t *testing.T) {
	result := Result{
		Streams: []Stream{
			{CodecType: "video"},
			{CodecType: "audio"},
			{CodecType: "audio"},
		},
		Format: Format{
			Duration: "123.45",
			Size:     "1000",
			BitRate:  "32000",
		},
	}
	if result.VideoStreamCount() != 1 {
		t.Fatalf("expected 1 video stream, got %d", result.VideoStreamCount())
	}
	if result.AudioStreamCount() != 2 {
		t.Fatalf("expected 2 audio streams, got %d", result.AudioStreamCount())
	}
	if result.DurationSeconds() != 123.45 {
		t.Fatalf("unexpected duration: %v", result.DurationSeconds())
	}
	if result.SizeBytes() != 1000 {
		t.Fatalf("unexpected size: %d", result.SizeBytes())
	}
	if result.BitRate() != 32000 {
		t.Fatalf("unexpected bitrate: %d", result.BitRate())
	}
}

func TestResultHelpersHandleInvalidNumbers(t *testing.T) {
	result := Result{
		Format: Format{
			Duration: "bad",
			Size:     "-1",
			BitRate:  "nope",
		},
	}
	if !math.IsNaN(result.DurationSeconds()) {
		t.Fatalf("expected duration NaN, got %v", result.DurationSeconds())
	}
	if result.SizeBytes() != 0 {
		t.Fatalf("expected size 0, got %d", result.SizeBytes())
	}
	if result.BitRate() != 0 {
		t.Fatalf("expected bitrate 0, got %d", result.BitRate())
	}
}

func TestProbeDurationFallsBackWhenBinaryMissing(t *testing.T) {
	got := ProbeDuration(context.Background(), filepath.Join(t.TempDir(), "missing-ffprobe"), "clip.mp3", 5)
	if got != 5 {
		t.Fatalf("expected fallback 5, got %v", got)
	}
}

func TestProbeDurationUsesStubOutput(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell stubs unavailable on windows")
	}
	dir := t.TempDir()
	stub := filepath.Join(dir, "ffprobe")
	script := "#!/bin/sh\nprintf '{\"format\":{\"duration\":\"7.25\"}}'\n"
	if err := os.WriteFile(stub, []byte(script), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	got := ProbeDuration(context.Background(), stub, "clip.mp3", 5)
	if got != 7.25 {
		t.Fatalf("expected probed duration 7.25, got %v", got)
	}
}

func TestProbeDurationFallsBackOnNonsense(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell stubs unavailable on windows")
	}
	dir := t.TempDir()
	stub := filepath.Join(dir, "ffprobe")
	script := "#!/bin/sh\nprintf '{\"format\":{\"duration\":\"bogus\"}}'\n"
	if err := os.WriteFile(stub, []byte(script), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	got := ProbeDuration(context.Background(), stub, "clip.mp3", 30)
	if got != 30 {
		t.Fatalf("expected fallback 30, got %v", got)
	}
}
