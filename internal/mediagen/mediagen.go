package mediagen

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"log/slog"

	"showrunner/internal/config"
	"showrunner/internal/logging"
	"showrunner/internal/media/ffprobe"
	"showrunner/internal/script"
	"showrunner/internal/services"
	"showrunner/internal/services/imagegen"
	"showrunner/internal/services/tts"
	"showrunner/internal/stage"
	"showrunner/internal/storage"
	"showrunner/internal/store"
	"showrunner/internal/textutil"
)

const stageName = string(store.KindMediaGeneration)

// captionTextLimit caps the script excerpt stored on caption assets.
const captionTextLimit = 2000

// fallbackSceneSeconds is used when ffprobe cannot report a narration length.
const fallbackSceneSeconds = 5.0

// Synthesizer is the media synthesis stage handler. It narrates the approved
// script, generates scene imagery, and records the asset manifest the
// renderer assembles from.
type Synthesizer struct {
	store   *store.Store
	cfg     *config.Config
	logger  *slog.Logger
	voices  *tts.Client
	images  *imagegen.Client
	backend storage.Backend
}

// New constructs the media stage handler using default dependencies.
func New(cfg *config.Config, st *store.Store, logger *slog.Logger) *Synthesizer {
	voices := tts.NewClient(tts.Config{
		APIKey:         cfg.OpenAI.APIKey,
		BaseURL:        cfg.OpenAI.BaseURL,
		Model:          cfg.OpenAI.TTSModel,
		TimeoutSeconds: cfg.OpenAI.TimeoutSeconds,
	})
	images := imagegen.NewClient(imagegen.Config{
		APIKey:         cfg.OpenAI.APIKey,
		BaseURL:        cfg.OpenAI.BaseURL,
		Model:          cfg.OpenAI.ImageModel,
		Size:           cfg.OpenAI.ImageSize,
		Enabled:        cfg.OpenAI.ImageGeneration,
		TimeoutSeconds: cfg.OpenAI.TimeoutSeconds,
	})
	backend := storage.NewBackend(cfg.Storage.Dir, cfg.Storage.PublicBaseURL)
	return NewWithDependencies(cfg, st, logger, voices, images, backend)
}

// NewWithDependencies allows injecting the speech, image, and storage
// collaborators (used in tests).
func NewWithDependencies(cfg *config.Config, st *store.Store, logger *slog.Logger, voices *tts.Client, images *imagegen.Client, backend storage.Backend) *Synthesizer {
	stageLogger := logger
	if stageLogger != nil {
		stageLogger = stageLogger.With(logging.String(logging.FieldComponent, "mediagen"))
	}
	return &Synthesizer{store: st, cfg: cfg, logger: stageLogger, voices: voices, images: images, backend: backend}
}

// Prepare checks that the episode can (re)start media synthesis and flips it
// to generating. Approved episodes arrive at ready_for_review; generating and
// failed are allowed back in so interrupted or failed runs can be retried.
func (s *Synthesizer) Prepare(ctx context.Context, job *store.Job) error {
	logger := logging.WithContext(ctx, s.logger)

	episode, err := stage.EpisodeForJob(ctx, s.store, job)
	if err != nil {
		return err
	}
	switch episode.Status {
	case store.EpisodeReadyForReview, store.EpisodeGenerating, store.EpisodeFailed:
	default:
		return services.Wrap(
			services.ErrConflict, stageName, "check preconditions",
			fmt.Sprintf("Episode cannot start media generation from status %q", episode.Status), nil)
	}
	if episode.ScriptID == "" {
		return services.Wrap(services.ErrValidation, stageName, "check preconditions", "Episode has no script text", nil)
	}
	if _, err := stage.SeriesForEpisode(ctx, s.store, episode); err != nil {
		return err
	}

	episode.Status = store.EpisodeGenerating
	if err := s.updateEpisode(ctx, episode, "mark generating"); err != nil {
		return err
	}

	logger.Info("media generation starting",
		logging.String(logging.FieldSeriesID, episode.SeriesID),
		logging.Int("sequence", episode.Sequence),
	)
	return nil
}

// Execute synthesizes narration and imagery for every scene, records the
// supporting caption and music assets, and writes the manifest onto the
// episode. The episode stays at generating; render moves it on.
func (s *Synthesizer) Execute(ctx context.Context, job *store.Job) error {
	logger := logging.WithContext(ctx, s.logger)

	episode, err := stage.EpisodeForJob(ctx, s.store, job)
	if err != nil {
		return err
	}
	series, err := stage.SeriesForEpisode(ctx, s.store, episode)
	if err != nil {
		return err
	}
	scriptRow, err := s.loadScript(ctx, episode)
	if err != nil {
		return err
	}
	if s.voices == nil || !s.voices.Configured() {
		return services.Wrap(services.ErrConfiguration, stageName, "check credentials", "OpenAI API key required for narration synthesis", nil)
	}

	var gender, style string
	if series.VoiceLanguage != nil {
		gender = series.VoiceLanguage.Gender
		style = series.VoiceLanguage.Style
	}
	voiceID := tts.VoiceForPreference(gender, style)

	var scenes []script.Scene
	if s.cfg.Pipeline.SceneMode && strings.TrimSpace(scriptRow.ScenesJSON) != "" {
		scenes, err = script.ParseScenes(scriptRow.ScenesJSON, 0)
		if err != nil {
			return services.Wrap(services.ErrValidation, stageName, "decode scenes", "Episode script has invalid scene data", err)
		}
	}

	var manifest *store.Manifest
	if len(scenes) > 0 {
		manifest, err = s.buildSceneMedia(ctx, logger, series, episode, scriptRow, scenes, voiceID)
	} else {
		manifest, err = s.buildLegacyMedia(ctx, logger, series, episode, scriptRow, voiceID)
	}
	if err != nil {
		return err
	}

	episode.Manifest = manifest
	episode.Status = store.EpisodeGenerating
	episode.ErrorInfo = nil
	if err := s.updateEpisode(ctx, episode, "record manifest"); err != nil {
		return err
	}

	logger.Info("media generation completed",
		logging.Int("scene_count", len(manifest.Scenes)),
		logging.Bool("music", manifest.MusicAssetID != ""),
		logging.String("voice_id", voiceID),
	)
	return nil
}

// buildSceneMedia narrates each scene individually and pairs it with a
// generated cover image where possible. Image failures are tolerated; the
// renderer substitutes a solid background for scenes without art.
func (s *Synthesizer) buildSceneMedia(ctx context.Context, logger *slog.Logger, series *store.Series, episode *store.Episode, scriptRow *store.Script, scenes []script.Scene, voiceID string) (*store.Manifest, error) {
	refs := make([]store.ManifestScene, 0, len(scenes))
	for i, scene := range scenes {
		audio, err := s.voices.Synthesize(ctx, scene.Text, voiceID)
		if err != nil {
			return nil, services.Wrap(services.ErrTransient, stageName, "synthesize narration",
				fmt.Sprintf("Narration synthesis failed for scene %d", i+1), err)
		}
		duration := s.probeAudioDuration(ctx, audio)

		voiceURL, err := s.backend.Store(ctx, storage.VoiceKey(series.WorkspaceID, episode.ID, i), bytes.NewReader(audio), "audio/mpeg")
		if err != nil {
			return nil, services.Wrap(services.ErrTransient, stageName, "store narration",
				fmt.Sprintf("Failed to store narration for scene %d", i+1), err)
		}
		sceneIndex := i
		voiceAsset := &store.Asset{
			WorkspaceID:     series.WorkspaceID,
			Type:            store.AssetAudio,
			Source:          store.SourceGenerated,
			URL:             voiceURL,
			Format:          "audio/mpeg",
			DurationSeconds: duration,
			Metadata: store.AssetMetadata{
				EpisodeID:  episode.ID,
				Role:       store.RoleSceneVoice,
				SceneIndex: &sceneIndex,
			},
		}
		if err := s.store.CreateAsset(ctx, voiceAsset); err != nil {
			return nil, services.Wrap(services.ErrTransient, stageName, "record narration asset",
				fmt.Sprintf("Failed to record narration asset for scene %d", i+1), err)
		}

		imageAssetID, err := s.generateSceneImage(ctx, logger, series, episode, i, scene.VisualDescription)
		if err != nil {
			return nil, err
		}

		refs = append(refs, store.ManifestScene{
			ImageAssetID:    imageAssetID,
			VoiceAssetID:    voiceAsset.ID,
			DurationSeconds: duration,
		})
	}

	captionID, err := s.createCaptionAsset(ctx, series, episode, scriptRow.Text)
	if err != nil {
		return nil, err
	}
	musicID, err := s.resolveMusicAsset(ctx, series)
	if err != nil {
		return nil, err
	}
	return &store.Manifest{Scenes: refs, CaptionAssetID: captionID, MusicAssetID: musicID}, nil
}

// buildLegacyMedia narrates the whole script as one clip with an optional
// cover image, for configurations that run without per-scene assembly.
func (s *Synthesizer) buildLegacyMedia(ctx context.Context, logger *slog.Logger, series *store.Series, episode *store.Episode, scriptRow *store.Script, voiceID string) (*store.Manifest, error) {
	audio, err := s.voices.Synthesize(ctx, scriptRow.Text, voiceID)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, stageName, "synthesize narration", "Narration synthesis failed", err)
	}
	voiceURL, err := s.backend.Store(ctx, storage.VoiceKey(series.WorkspaceID, episode.ID, -1), bytes.NewReader(audio), "audio/mpeg")
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, stageName, "store narration", "Failed to store narration audio", err)
	}
	voiceAsset := &store.Asset{
		WorkspaceID: series.WorkspaceID,
		Type:        store.AssetAudio,
		Source:      store.SourceGenerated,
		URL:         voiceURL,
		Format:      "audio/mpeg",
		Metadata: store.AssetMetadata{
			EpisodeID: episode.ID,
			Role:      store.RoleVoice,
		},
	}
	if err := s.store.CreateAsset(ctx, voiceAsset); err != nil {
		return nil, services.Wrap(services.ErrTransient, stageName, "record narration asset", "Failed to record narration asset", err)
	}

	musicID, err := s.resolveMusicAsset(ctx, series)
	if err != nil {
		return nil, err
	}
	captionID, err := s.createCaptionAsset(ctx, series, episode, scriptRow.Text)
	if err != nil {
		return nil, err
	}
	imageID, err := s.generateCoverImage(ctx, logger, series, episode, scriptRow.Text)
	if err != nil {
		return nil, err
	}

	return &store.Manifest{
		VoiceAssetID:   voiceAsset.ID,
		MusicAssetID:   musicID,
		CaptionAssetID: captionID,
		ImageAssetID:   imageID,
	}, nil
}

// generateSceneImage produces cover art for one scene. Generation failures
// are logged and swallowed; storage and persistence failures are not.
func (s *Synthesizer) generateSceneImage(ctx context.Context, logger *slog.Logger, series *store.Series, episode *store.Episode, index int, visualDescription string) (string, error) {
	if s.images == nil || !s.images.Enabled() {
		return "", nil
	}
	payload, err := s.images.GenerateScene(ctx, visualDescription)
	if err != nil {
		message := "scene image generation failed"
		if imagegen.IsContentPolicyRejection(err) {
			message = "scene image rejected by content policy"
		}
		logger.Warn(message, logging.Int("scene", index+1), logging.Error(err))
		return "", nil
	}
	if len(payload) == 0 || !s.backend.Configured() {
		return "", nil
	}
	return s.storeImageAsset(ctx, series, episode, payload, index, store.RoleSceneCover)
}

// generateCoverImage produces a single cover for legacy single-clip episodes.
func (s *Synthesizer) generateCoverImage(ctx context.Context, logger *slog.Logger, series *store.Series, episode *store.Episode, scriptText string) (string, error) {
	if s.images == nil || !s.images.Enabled() {
		return "", nil
	}
	payload, err := s.images.GenerateCover(ctx, scriptText)
	if err != nil {
		message := "cover image generation failed"
		if imagegen.IsContentPolicyRejection(err) {
			message = "cover image rejected by content policy"
		}
		logger.Warn(message, logging.Error(err))
		return "", nil
	}
	if len(payload) == 0 || !s.backend.Configured() {
		return "", nil
	}
	return s.storeImageAsset(ctx, series, episode, payload, -1, store.RoleVideoCover)
}

func (s *Synthesizer) storeImageAsset(ctx context.Context, series *store.Series, episode *store.Episode, payload []byte, sceneIndex int, role string) (string, error) {
	url, err := s.backend.Store(ctx, storage.ImageKey(series.WorkspaceID, episode.ID, sceneIndex), bytes.NewReader(payload), "image/png")
	if err != nil {
		return "", services.Wrap(services.ErrTransient, stageName, "store image", "Failed to store generated image", err)
	}
	asset := &store.Asset{
		WorkspaceID: series.WorkspaceID,
		Type:        store.AssetImage,
		Source:      store.SourceGenerated,
		URL:         url,
		Format:      "image/png",
		Metadata: store.AssetMetadata{
			EpisodeID: episode.ID,
			Role:      role,
		},
	}
	if sceneIndex >= 0 {
		index := sceneIndex
		asset.Metadata.SceneIndex = &index
	}
	if err := s.store.CreateAsset(ctx, asset); err != nil {
		return "", services.Wrap(services.ErrTransient, stageName, "record image asset", "Failed to record image asset", err)
	}
	return asset.ID, nil
}

// createCaptionAsset records the caption source text. The renderer and the
// publishing adapters read the excerpt straight off the asset row, so no
// object is written to storage.
func (s *Synthesizer) createCaptionAsset(ctx context.Context, series *store.Series, episode *store.Episode, scriptText string) (string, error) {
	asset := &store.Asset{
		WorkspaceID: series.WorkspaceID,
		Type:        store.AssetCaptionFile,
		Source:      store.SourceGenerated,
		Format:      "srt",
		Metadata: store.AssetMetadata{
			EpisodeID: episode.ID,
			Text:      textutil.TruncateRunes(scriptText, captionTextLimit),
		},
	}
	if err := s.store.CreateAsset(ctx, asset); err != nil {
		return "", services.Wrap(services.ErrTransient, stageName, "record caption asset", "Failed to record caption asset", err)
	}
	return asset.ID, nil
}

// resolveMusicAsset picks the backing track from series music settings. A
// custom upload wins over a library track; ids that do not resolve to a music
// asset in the workspace are skipped.
func (s *Synthesizer) resolveMusicAsset(ctx context.Context, series *store.Series) (string, error) {
	if series.MusicSettings == nil {
		return "", nil
	}
	candidates := []string{
		series.MusicSettings.CustomUploadAssetID,
		series.MusicSettings.LibraryTrackID,
	}
	for _, id := range candidates {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		asset, err := s.store.GetWorkspaceAsset(ctx, id, series.WorkspaceID, store.AssetMusic)
		if err != nil {
			return "", services.Wrap(services.ErrTransient, stageName, "resolve music", "Failed to look up music asset", err)
		}
		if asset != nil {
			return asset.ID, nil
		}
	}
	return "", nil
}

// probeAudioDuration measures a narration clip by writing it to a scratch
// file and asking ffprobe. Hosts without ffprobe fall back to a nominal
// per-scene length so media generation still completes.
func (s *Synthesizer) probeAudioDuration(ctx context.Context, audio []byte) float64 {
	dir := s.cfg.Paths.WorkDir
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fallbackSceneSeconds
		}
	}
	tmp, err := os.CreateTemp(dir, "narration-*.mp3")
	if err != nil {
		return fallbackSceneSeconds
	}
	path := tmp.Name()
	defer os.Remove(path)
	if _, err := tmp.Write(audio); err != nil {
		tmp.Close()
		return fallbackSceneSeconds
	}
	if err := tmp.Close(); err != nil {
		return fallbackSceneSeconds
	}
	return ffprobe.ProbeDuration(ctx, s.cfg.FFprobeBinary(), path, fallbackSceneSeconds)
}

func (s *Synthesizer) loadScript(ctx context.Context, episode *store.Episode) (*store.Script, error) {
	if episode.ScriptID == "" {
		return nil, services.Wrap(services.ErrValidation, stageName, "load script", "Episode has no script text", nil)
	}
	scriptRow, err := s.store.GetScript(ctx, episode.ScriptID)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, stageName, "load script", "Failed to load episode script", err)
	}
	if scriptRow == nil {
		return nil, services.Wrap(services.ErrNotFound, stageName, "load script",
			fmt.Sprintf("Script %s not found", episode.ScriptID), nil)
	}
	if strings.TrimSpace(scriptRow.Text) == "" {
		return nil, services.Wrap(services.ErrValidation, stageName, "load script", "Episode has no script text", nil)
	}
	return scriptRow, nil
}

func (s *Synthesizer) updateEpisode(ctx context.Context, episode *store.Episode, op string) error {
	err := s.store.UpdateEpisode(ctx, episode)
	if err == nil {
		return nil
	}
	if errors.Is(err, store.ErrRevisionConflict) {
		return services.Wrap(services.ErrConflict, stageName, op, "Episode was modified by another worker", err)
	}
	return services.Wrap(services.ErrTransient, stageName, op, "Failed to persist episode update", err)
}

// HealthCheck verifies the speech provider and storage backend are wired.
func (s *Synthesizer) HealthCheck(ctx context.Context) stage.Health {
	const name = "mediagen"
	if s.cfg == nil {
		return stage.Unhealthy(name, "configuration unavailable")
	}
	if strings.TrimSpace(s.cfg.OpenAI.APIKey) == "" {
		return stage.Unhealthy(name, "openai api key not configured")
	}
	if s.voices == nil {
		return stage.Unhealthy(name, "speech client unavailable")
	}
	if s.backend == nil {
		return stage.Unhealthy(name, "storage backend unavailable")
	}
	return stage.Healthy(name)
}
