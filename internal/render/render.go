package render

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"log/slog"

	"showrunner/internal/config"
	"showrunner/internal/logging"
	"showrunner/internal/media/ffmpeg"
	"showrunner/internal/media/ffprobe"
	"showrunner/internal/notifications"
	"showrunner/internal/services"
	"showrunner/internal/stage"
	"showrunner/internal/storage"
	"showrunner/internal/store"
)

const stageName = string(store.KindRender)

// fallbackSceneSeconds covers manifest entries without a usable duration.
const fallbackSceneSeconds = 5.0

// fallbackLegacySeconds covers single-clip narration ffprobe cannot measure.
const fallbackLegacySeconds = 30.0

// Assembler is the video assembly stage handler. It turns the episode's
// asset manifest into a single vertical video, one zoompan segment per
// scene, and finishes the episode at ready_for_review.
type Assembler struct {
	store    *store.Store
	cfg      *config.Config
	logger   *slog.Logger
	backend  storage.Backend
	renderer *ffmpeg.Renderer
	notifier notifications.Service
}

// New constructs the assembly stage handler using default dependencies.
func New(cfg *config.Config, st *store.Store, logger *slog.Logger) *Assembler {
	backend := storage.NewBackend(cfg.Storage.Dir, cfg.Storage.PublicBaseURL)
	renderer := ffmpeg.NewRenderer(cfg.FFmpegBinary(), cfg.Pipeline.VideoWidth, cfg.Pipeline.VideoHeight, cfg.Pipeline.FrameRate)
	return NewWithDependencies(cfg, st, logger, backend, renderer, nil)
}

// NewWithDependencies allows injecting the storage backend, renderer, and
// notifier (used in tests and by the daemon wiring).
func NewWithDependencies(cfg *config.Config, st *store.Store, logger *slog.Logger, backend storage.Backend, renderer *ffmpeg.Renderer, notifier notifications.Service) *Assembler {
	stageLogger := logger
	if stageLogger != nil {
		stageLogger = stageLogger.With(logging.String(logging.FieldComponent, "render"))
	}
	return &Assembler{store: st, cfg: cfg, logger: stageLogger, backend: backend, renderer: renderer, notifier: notifier}
}

// Prepare checks that the episode carries a manifest and is in a state
// assembly may run from. Episodes arrive here still at generating; failed is
// allowed back in for retries.
func (a *Assembler) Prepare(ctx context.Context, job *store.Job) error {
	logger := logging.WithContext(ctx, a.logger)

	episode, err := stage.EpisodeForJob(ctx, a.store, job)
	if err != nil {
		return err
	}
	switch episode.Status {
	case store.EpisodeGenerating, store.EpisodeFailed:
	default:
		return services.Wrap(
			services.ErrConflict, stageName, "check preconditions",
			fmt.Sprintf("Episode cannot start video assembly from status %q", episode.Status), nil)
	}
	if episode.Manifest == nil {
		return services.Wrap(services.ErrValidation, stageName, "check preconditions", "No media assets; run media generation first", nil)
	}
	if _, err := stage.SeriesForEpisode(ctx, a.store, episode); err != nil {
		return err
	}

	episode.Status = store.EpisodeGenerating
	if err := a.updateEpisode(ctx, episode, "mark generating"); err != nil {
		return err
	}

	logger.Info("video assembly starting",
		logging.String(logging.FieldSeriesID, episode.SeriesID),
		logging.Int("sequence", episode.Sequence),
		logging.Int("scene_count", len(episode.Manifest.Scenes)),
	)
	return nil
}

// Execute renders every manifest scene to a segment, concatenates them,
// stores the final video, and moves the episode to ready_for_review.
func (a *Assembler) Execute(ctx context.Context, job *store.Job) error {
	logger := logging.WithContext(ctx, a.logger)

	episode, err := stage.EpisodeForJob(ctx, a.store, job)
	if err != nil {
		return err
	}
	series, err := stage.SeriesForEpisode(ctx, a.store, episode)
	if err != nil {
		return err
	}
	manifest := episode.Manifest
	if manifest == nil {
		return services.Wrap(services.ErrValidation, stageName, "load manifest", "No media assets; run media generation first", nil)
	}

	workDir, cleanup, err := a.makeWorkDir(logger, episode.ID)
	if err != nil {
		return services.Wrap(services.ErrTransient, stageName, "prepare work dir", "Failed to create render work directory", err)
	}
	defer cleanup()

	var (
		outputPath    string
		totalDuration float64
	)
	if manifest.SceneMode() {
		outputPath, totalDuration, err = a.assembleScenes(ctx, logger, workDir, series, manifest)
	} else {
		outputPath, totalDuration, err = a.assembleLegacy(ctx, logger, workDir, series, manifest)
	}
	if err != nil {
		return err
	}

	previewURL, err := a.storeVideo(ctx, series, episode, outputPath)
	if err != nil {
		return err
	}

	videoAsset := &store.Asset{
		WorkspaceID:     series.WorkspaceID,
		Type:            store.AssetVideo,
		Source:          store.SourceGenerated,
		URL:             previewURL,
		Format:          "video/mp4",
		DurationSeconds: totalDuration,
		Metadata:        store.AssetMetadata{EpisodeID: episode.ID},
	}
	if err := a.store.CreateAsset(ctx, videoAsset); err != nil {
		return services.Wrap(services.ErrTransient, stageName, "record video asset", "Failed to record video asset", err)
	}

	episode.VideoAssetID = videoAsset.ID
	episode.PreviewURL = previewURL
	episode.Status = store.EpisodeReadyForReview
	episode.ErrorInfo = nil
	if err := a.updateEpisode(ctx, episode, "record video"); err != nil {
		return err
	}

	logger.Info("video assembly completed",
		logging.String("video_asset_id", videoAsset.ID),
		logging.Float64("duration_seconds", totalDuration),
		logging.Int("scene_count", len(manifest.Scenes)),
	)
	if a.notifier != nil {
		payload := notifications.Payload{
			"seriesName": series.Name,
			"sequence":   episode.Sequence,
			"previewURL": previewURL,
		}
		if err := a.notifier.Publish(ctx, notifications.EventEpisodeReady, payload); err != nil {
			logger.Warn("episode ready notification failed", logging.Error(err))
		}
	}
	return nil
}

// assembleScenes renders one segment per manifest scene and joins them with
// the concat demuxer. Scene images are optional; a scene whose image cannot
// be fetched renders on a plain background.
func (a *Assembler) assembleScenes(ctx context.Context, logger *slog.Logger, workDir string, series *store.Series, manifest *store.Manifest) (string, float64, error) {
	segmentPaths := make([]string, 0, len(manifest.Scenes))
	totalDuration := 0.0
	for i, ref := range manifest.Scenes {
		if ref.VoiceAssetID == "" {
			return "", 0, services.Wrap(services.ErrValidation, stageName, "load manifest",
				fmt.Sprintf("Scene %d missing voice_asset_id", i), nil)
		}
		voicePath := filepath.Join(workDir, fmt.Sprintf("scene_%d_voice.mp3", i))
		if err := a.fetchAssetByID(ctx, ref.VoiceAssetID, voicePath); err != nil {
			return "", 0, services.Wrap(services.ErrTransient, stageName, "fetch narration",
				fmt.Sprintf("Could not download voice for scene %d", i), err)
		}

		duration := ref.DurationSeconds
		if duration <= 0 {
			duration = fallbackSceneSeconds
		}
		totalDuration += duration

		imagePath := ""
		if ref.ImageAssetID != "" {
			candidate := filepath.Join(workDir, fmt.Sprintf("scene_%d.png", i))
			if err := a.fetchImage(ctx, series, ref.ImageAssetID, candidate); err != nil {
				logger.Warn("scene image unavailable, rendering plain background",
					logging.Int("scene", i),
					logging.Error(err),
				)
			} else {
				imagePath = candidate
			}
		}

		segmentPath := filepath.Join(workDir, fmt.Sprintf("segment_%04d.mp4", i))
		err := a.renderer.RenderSegment(ctx, ffmpeg.Segment{
			ImagePath:       imagePath,
			VoicePath:       voicePath,
			DurationSeconds: duration,
			OutputPath:      segmentPath,
		})
		if err != nil {
			return "", 0, services.Wrap(services.ErrExternalTool, stageName, "render segment", err.Error(), err)
		}
		segmentPaths = append(segmentPaths, segmentPath)
	}

	outputPath := filepath.Join(workDir, "out.mp4")
	if err := a.renderer.Concat(ctx, segmentPaths, outputPath); err != nil {
		return "", 0, services.Wrap(services.ErrExternalTool, stageName, "concat segments", err.Error(), err)
	}
	return outputPath, totalDuration, nil
}

// assembleLegacy renders one segment from the single narration clip, probing
// its real duration since legacy manifests do not carry one.
func (a *Assembler) assembleLegacy(ctx context.Context, logger *slog.Logger, workDir string, series *store.Series, manifest *store.Manifest) (string, float64, error) {
	if manifest.VoiceAssetID == "" {
		return "", 0, services.Wrap(services.ErrValidation, stageName, "load manifest", "Manifest missing voice_asset_id", nil)
	}
	voicePath := filepath.Join(workDir, "voice.mp3")
	if err := a.fetchAssetByID(ctx, manifest.VoiceAssetID, voicePath); err != nil {
		return "", 0, services.Wrap(services.ErrTransient, stageName, "fetch narration", "Could not download voice asset", err)
	}
	duration := ffprobe.ProbeDuration(ctx, a.cfg.FFprobeBinary(), voicePath, fallbackLegacySeconds)

	imagePath := ""
	if manifest.ImageAssetID != "" {
		candidate := filepath.Join(workDir, "cover.png")
		if err := a.fetchImage(ctx, series, manifest.ImageAssetID, candidate); err != nil {
			logger.Warn("cover image unavailable, rendering plain background", logging.Error(err))
		} else {
			imagePath = candidate
		}
	}

	outputPath := filepath.Join(workDir, "out.mp4")
	err := a.renderer.RenderSegment(ctx, ffmpeg.Segment{
		ImagePath:       imagePath,
		VoicePath:       voicePath,
		DurationSeconds: duration,
		OutputPath:      outputPath,
	})
	if err != nil {
		return "", 0, services.Wrap(services.ErrExternalTool, stageName, "render segment", err.Error(), err)
	}
	return outputPath, duration, nil
}

// fetchAssetByID resolves an asset row and downloads its object to path.
func (a *Assembler) fetchAssetByID(ctx context.Context, assetID, path string) error {
	asset, err := a.store.GetAsset(ctx, assetID)
	if err != nil {
		return err
	}
	if asset == nil {
		return services.Wrap(services.ErrNotFound, stageName, "load asset",
			fmt.Sprintf("Voice asset %s not found", assetID), nil)
	}
	return a.fetchObject(ctx, asset.URL, path)
}

// fetchImage downloads a scene or cover image, enforcing that the asset
// belongs to the series workspace. A missing row is an error here so callers
// can decide to render without art.
func (a *Assembler) fetchImage(ctx context.Context, series *store.Series, assetID, path string) error {
	asset, err := a.store.GetWorkspaceAsset(ctx, assetID, series.WorkspaceID, store.AssetImage)
	if err != nil {
		return err
	}
	if asset == nil {
		return fmt.Errorf("image asset %s not found in workspace", assetID)
	}
	return a.fetchObject(ctx, asset.URL, path)
}

func (a *Assembler) fetchObject(ctx context.Context, url, path string) error {
	reader, err := a.backend.Open(ctx, url)
	if err != nil {
		return err
	}
	defer reader.Close()

	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, reader); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func (a *Assembler) storeVideo(ctx context.Context, series *store.Series, episode *store.Episode, outputPath string) (string, error) {
	file, err := os.Open(outputPath)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, stageName, "store video", "Rendered video missing from work dir", err)
	}
	defer file.Close()

	url, err := a.backend.Store(ctx, storage.VideoKey(series.WorkspaceID, episode.ID), file, "video/mp4")
	if err != nil {
		return "", services.Wrap(services.ErrTransient, stageName, "store video", "Failed to store rendered video", err)
	}
	return url, nil
}

// makeWorkDir creates a scratch directory for one render run. The cleanup
// func removes it unless keep_work_dirs is set for debugging.
func (a *Assembler) makeWorkDir(logger *slog.Logger, episodeID string) (string, func(), error) {
	root := a.cfg.Paths.WorkDir
	if root != "" {
		if err := os.MkdirAll(root, 0o755); err != nil {
			return "", nil, err
		}
	}
	dir, err := os.MkdirTemp(root, "render-"+episodeID+"-")
	if err != nil {
		return "", nil, err
	}
	if a.cfg.Pipeline.KeepWorkDirs {
		logger.Debug("keeping render work dir", logging.String("path", dir))
		return dir, func() {}, nil
	}
	return dir, func() { os.RemoveAll(dir) }, nil
}

func (a *Assembler) updateEpisode(ctx context.Context, episode *store.Episode, op string) error {
	err := a.store.UpdateEpisode(ctx, episode)
	if err == nil {
		return nil
	}
	if errors.Is(err, store.ErrRevisionConflict) {
		return services.Wrap(services.ErrConflict, stageName, op, "Episode was modified by another worker", err)
	}
	return services.Wrap(services.ErrTransient, stageName, op, "Failed to persist episode update", err)
}

// HealthCheck verifies assembly collaborators are wired.
func (a *Assembler) HealthCheck(ctx context.Context) stage.Health {
	const name = "render"
	if a.cfg == nil {
		return stage.Unhealthy(name, "configuration unavailable")
	}
	if a.renderer == nil {
		return stage.Unhealthy(name, "ffmpeg renderer unavailable")
	}
	if a.backend == nil {
		return stage.Unhealthy(name, "storage backend unavailable")
	}
	return stage.Healthy(name)
}
