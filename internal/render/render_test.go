package render

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"showrunner/internal/config"
	"showrunner/internal/logging"
	"showrunner/internal/media/ffmpeg"
	"showrunner/internal/notifications"
	"showrunner/internal/services"
	"showrunner/internal/storage"
	"showrunner/internal/store"
	"showrunner/internal/testsupport"
)

type recordingNotifier struct {
	mu       sync.Mutex
	events   []notifications.Event
	payloads []notifications.Payload
}

func (r *recordingNotifier) Publish(_ context.Context, event notifications.Event, payload notifications.Payload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	r.payloads = append(r.payloads, payload)
	return nil
}

// writeFFmpegStub writes a fake ffmpeg that creates its last argument, which
// is the output path for both segment renders and concat runs.
func writeFFmpegStub(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ffmpeg")
	script := "#!/bin/sh\nfor last; do :; done\nprintf 'stub-video' > \"$last\"\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write ffmpeg stub: %v", err)
	}
	return path
}

func writeFFprobeStub(t *testing.T, duration string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ffprobe")
	script := fmt.Sprintf("#!/bin/sh\nprintf '{\"format\":{\"duration\":\"%s\"}}'\n", duration)
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write ffprobe stub: %v", err)
	}
	return path
}

func newAssembler(t *testing.T, cfg *config.Config, st *store.Store, notifier notifications.Service) (*Assembler, storage.Backend) {
	t.Helper()
	backend := storage.NewBackend(cfg.Storage.Dir, cfg.Storage.PublicBaseURL)
	renderer := ffmpeg.NewRenderer(cfg.FFmpegBinary(), cfg.Pipeline.VideoWidth, cfg.Pipeline.VideoHeight, cfg.Pipeline.FrameRate)
	return NewWithDependencies(cfg, st, logging.NewNop(), backend, renderer, notifier), backend
}

// storedAsset uploads payload bytes and records the matching asset row.
func storedAsset(t *testing.T, st *store.Store, backend storage.Backend, workspaceID, key, contentType string, assetType store.AssetType) *store.Asset {
	t.Helper()
	url, err := backend.Store(context.Background(), key, bytes.NewReader([]byte("payload")), contentType)
	if err != nil {
		t.Fatalf("backend.Store: %v", err)
	}
	asset := &store.Asset{
		WorkspaceID: workspaceID,
		Type:        assetType,
		Source:      store.SourceGenerated,
		URL:         url,
		Format:      contentType,
	}
	if err := st.CreateAsset(context.Background(), asset); err != nil {
		t.Fatalf("CreateAsset: %v", err)
	}
	return asset
}

// primeEpisode attaches a manifest and parks the episode at generating, the
// state a freshly completed media stage leaves it in.
func primeEpisode(t *testing.T, st *store.Store, episode *store.Episode, manifest *store.Manifest) {
	t.Helper()
	fresh, err := st.GetEpisode(context.Background(), episode.ID)
	if err != nil {
		t.Fatalf("GetEpisode: %v", err)
	}
	fresh.Manifest = manifest
	fresh.Status = store.EpisodeGenerating
	if err := st.UpdateEpisode(context.Background(), fresh); err != nil {
		t.Fatalf("UpdateEpisode: %v", err)
	}
	*episode = *fresh
}

func enqueueRenderJob(t *testing.T, st *store.Store, episodeID string) *store.Job {
	t.Helper()
	job, err := st.EnqueueJob(context.Background(), store.KindRender, episodeID, "", time.Now(), 3)
	if err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}
	claimed, err := st.ClaimNextJob(context.Background(), store.KindRender)
	if err != nil {
		t.Fatalf("ClaimNextJob: %v", err)
	}
	if claimed == nil || claimed.ID != job.ID {
		t.Fatalf("claimed unexpected job %v", claimed)
	}
	return claimed
}

func TestSceneAssemblyProducesVideo(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Tools.FFmpeg = writeFFmpegStub(t)
	st := testsupport.MustOpenStore(t, cfg)
	series := testsupport.NewSeries(t, st, "Night Wisdom")
	episode := testsupport.NewEpisode(t, st, series.ID, 1, time.Now().Add(time.Hour))

	notifier := &recordingNotifier{}
	assembler, backend := newAssembler(t, cfg, st, notifier)

	voice0 := storedAsset(t, st, backend, series.WorkspaceID,
		storage.VoiceKey(series.WorkspaceID, episode.ID, 0), "audio/mpeg", store.AssetAudio)
	voice1 := storedAsset(t, st, backend, series.WorkspaceID,
		storage.VoiceKey(series.WorkspaceID, episode.ID, 1), "audio/mpeg", store.AssetAudio)
	image0 := storedAsset(t, st, backend, series.WorkspaceID,
		storage.ImageKey(series.WorkspaceID, episode.ID, 0), "image/png", store.AssetImage)

	primeEpisode(t, st, episode, &store.Manifest{
		Scenes: []store.ManifestScene{
			{ImageAssetID: image0.ID, VoiceAssetID: voice0.ID, DurationSeconds: 2.5},
			// The second scene's image row is gone; it renders on black.
			{ImageAssetID: "image-that-never-existed", VoiceAssetID: voice1.ID, DurationSeconds: 3.5},
		},
	})

	job := enqueueRenderJob(t, st, episode.ID)
	if err := assembler.Prepare(context.Background(), job); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := assembler.Execute(context.Background(), job); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	updated, err := st.GetEpisode(context.Background(), episode.ID)
	if err != nil {
		t.Fatalf("GetEpisode: %v", err)
	}
	if updated.Status != store.EpisodeReadyForReview {
		t.Fatalf("status = %q, want ready_for_review", updated.Status)
	}
	if updated.ErrorInfo != nil {
		t.Fatalf("ErrorInfo = %+v, want nil", updated.ErrorInfo)
	}
	if updated.VideoAssetID == "" || updated.PreviewURL == "" {
		t.Fatalf("episode missing video fields: %+v", updated)
	}
	if !strings.Contains(updated.PreviewURL, "video.mp4") {
		t.Fatalf("preview URL = %q", updated.PreviewURL)
	}

	video, err := st.GetAsset(context.Background(), updated.VideoAssetID)
	if err != nil {
		t.Fatalf("GetAsset: %v", err)
	}
	if video.Type != store.AssetVideo || video.Format != "video/mp4" {
		t.Fatalf("video asset = %+v", video)
	}
	if video.DurationSeconds != 6.0 {
		t.Fatalf("video duration = %v, want 6.0", video.DurationSeconds)
	}
	if video.Metadata.EpisodeID != episode.ID {
		t.Fatalf("video metadata = %+v", video.Metadata)
	}

	stored := filepath.Join(cfg.Storage.Dir, "workspaces", series.WorkspaceID, "episodes", episode.ID, "video.mp4")
	if _, err := os.Stat(stored); err != nil {
		t.Fatalf("stored video missing: %v", err)
	}

	if len(notifier.events) != 1 || notifier.events[0] != notifications.EventEpisodeReady {
		t.Fatalf("notifications = %v, want one episode_ready", notifier.events)
	}
	if notifier.payloads[0]["previewURL"] != updated.PreviewURL {
		t.Fatalf("notification payload = %v", notifier.payloads[0])
	}
}

func TestLegacyAssemblyProbesDuration(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Tools.FFmpeg = writeFFmpegStub(t)
	cfg.Tools.FFprobe = writeFFprobeStub(t, "12.500000")
	st := testsupport.MustOpenStore(t, cfg)
	series := testsupport.NewSeries(t, st, "Night Wisdom")
	episode := testsupport.NewEpisode(t, st, series.ID, 1, time.Now().Add(time.Hour))

	assembler, backend := newAssembler(t, cfg, st, nil)
	voice := storedAsset(t, st, backend, series.WorkspaceID,
		storage.VoiceKey(series.WorkspaceID, episode.ID, -1), "audio/mpeg", store.AssetAudio)
	primeEpisode(t, st, episode, &store.Manifest{VoiceAssetID: voice.ID})

	job := enqueueRenderJob(t, st, episode.ID)
	if err := assembler.Prepare(context.Background(), job); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := assembler.Execute(context.Background(), job); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	updated, err := st.GetEpisode(context.Background(), episode.ID)
	if err != nil {
		t.Fatalf("GetEpisode: %v", err)
	}
	if updated.Status != store.EpisodeReadyForReview {
		t.Fatalf("status = %q, want ready_for_review", updated.Status)
	}
	video, err := st.GetAsset(context.Background(), updated.VideoAssetID)
	if err != nil {
		t.Fatalf("GetAsset: %v", err)
	}
	if video.DurationSeconds != 12.5 {
		t.Fatalf("video duration = %v, want probed 12.5", video.DurationSeconds)
	}
}

func TestPrepareRequiresManifest(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Tools.FFmpeg = writeFFmpegStub(t)
	st := testsupport.MustOpenStore(t, cfg)
	series := testsupport.NewSeries(t, st, "Night Wisdom")
	episode := testsupport.NewEpisode(t, st, series.ID, 1, time.Now().Add(time.Hour))

	fresh, err := st.GetEpisode(context.Background(), episode.ID)
	if err != nil {
		t.Fatalf("GetEpisode: %v", err)
	}
	fresh.Status = store.EpisodeGenerating
	if err := st.UpdateEpisode(context.Background(), fresh); err != nil {
		t.Fatalf("UpdateEpisode: %v", err)
	}

	assembler, _ := newAssembler(t, cfg, st, nil)
	job := enqueueRenderJob(t, st, episode.ID)

	err = assembler.Prepare(context.Background(), job)
	if err == nil {
		t.Fatal("Prepare should reject an episode without a manifest")
	}
	details := services.Details(err)
	if details.Kind != services.KindValidation {
		t.Fatalf("details = %+v, want validation", details)
	}
	if !strings.Contains(details.Message, "No media assets") {
		t.Fatalf("message = %q", details.Message)
	}
}

func TestPrepareRejectsCompletedEpisode(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Tools.FFmpeg = writeFFmpegStub(t)
	st := testsupport.MustOpenStore(t, cfg)
	series := testsupport.NewSeries(t, st, "Night Wisdom")
	episode := testsupport.NewEpisode(t, st, series.ID, 1, time.Now().Add(time.Hour))

	fresh, err := st.GetEpisode(context.Background(), episode.ID)
	if err != nil {
		t.Fatalf("GetEpisode: %v", err)
	}
	fresh.Status = store.EpisodeReadyForReview
	fresh.Manifest = &store.Manifest{VoiceAssetID: "voice"}
	fresh.VideoAssetID = "already-rendered"
	if err := st.UpdateEpisode(context.Background(), fresh); err != nil {
		t.Fatalf("UpdateEpisode: %v", err)
	}

	assembler, _ := newAssembler(t, cfg, st, nil)
	job := enqueueRenderJob(t, st, episode.ID)

	err = assembler.Prepare(context.Background(), job)
	if err == nil {
		t.Fatal("Prepare should reject a completed episode")
	}
	if services.Details(err).Kind != services.KindConflict {
		t.Fatalf("details = %+v, want conflict", services.Details(err))
	}
	if services.IsRetryable(err) {
		t.Fatal("stale render jobs should not retry")
	}
}
