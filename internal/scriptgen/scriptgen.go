package scriptgen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"log/slog"

	"showrunner/internal/config"
	"showrunner/internal/language"
	"showrunner/internal/logging"
	"showrunner/internal/script"
	"showrunner/internal/services"
	"showrunner/internal/services/llm"
	"showrunner/internal/stage"
	"showrunner/internal/store"
)

const stageName = string(store.KindScriptGeneration)

// Generator is the script synthesis stage handler. It turns series settings
// into a persisted Script and moves the episode to ready_for_review.
type Generator struct {
	store  *store.Store
	cfg    *config.Config
	logger *slog.Logger
	llm    *llm.Client
}

// New constructs the script stage handler using default dependencies.
func New(cfg *config.Config, st *store.Store, logger *slog.Logger) *Generator {
	client := llm.NewClient(llm.Config{
		APIKey:         cfg.OpenAI.APIKey,
		BaseURL:        cfg.OpenAI.BaseURL,
		Model:          cfg.OpenAI.ChatModel,
		TimeoutSeconds: cfg.OpenAI.TimeoutSeconds,
	})
	return NewWithClient(cfg, st, logger, client)
}

// NewWithClient allows injecting the chat client (used in tests).
func NewWithClient(cfg *config.Config, st *store.Store, logger *slog.Logger, client *llm.Client) *Generator {
	stageLogger := logger
	if stageLogger != nil {
		stageLogger = stageLogger.With(logging.String(logging.FieldComponent, "scriptgen"))
	}
	return &Generator{store: st, cfg: cfg, logger: stageLogger, llm: client}
}

// Prepare checks that the episode can (re)start script generation and flips
// it to generating. Only scheduled and failed episodes may enter; anything
// else means a stale or duplicate job observing newer state.
func (g *Generator) Prepare(ctx context.Context, job *store.Job) error {
	logger := logging.WithContext(ctx, g.logger)

	episode, err := stage.EpisodeForJob(ctx, g.store, job)
	if err != nil {
		return err
	}
	if episode.Status != store.EpisodeScheduled && episode.Status != store.EpisodeFailed {
		return services.Wrap(
			services.ErrConflict, stageName, "check preconditions",
			fmt.Sprintf("Episode cannot start script generation from status %q", episode.Status), nil)
	}
	if _, err := stage.SeriesForEpisode(ctx, g.store, episode); err != nil {
		return err
	}

	episode.Status = store.EpisodeGenerating
	if err := g.updateEpisode(ctx, episode, "mark generating"); err != nil {
		return err
	}

	logger.Info("script generation starting",
		logging.String(logging.FieldSeriesID, episode.SeriesID),
		logging.Int("sequence", episode.Sequence),
	)
	return nil
}

// Execute synthesizes the script, persists it, and finishes the episode at
// ready_for_review with a cleared error payload.
func (g *Generator) Execute(ctx context.Context, job *store.Job) error {
	logger := logging.WithContext(ctx, g.logger)

	episode, err := stage.EpisodeForJob(ctx, g.store, job)
	if err != nil {
		return err
	}
	series, err := stage.SeriesForEpisode(ctx, g.store, episode)
	if err != nil {
		return err
	}

	languageCode := language.Default
	if series.VoiceLanguage != nil && strings.TrimSpace(series.VoiceLanguage.LanguageCode) != "" {
		languageCode = language.Normalize(series.VoiceLanguage.LanguageCode)
	}

	var (
		scriptText string
		scenesJSON string
		sceneCount int
	)
	if g.cfg.Pipeline.SceneMode {
		scenes, err := g.generateScenes(ctx, series, languageCode)
		if err != nil {
			return err
		}
		scriptText = script.JoinNarration(scenes)
		scenesJSON, err = script.EncodeScenes(scenes)
		if err != nil {
			return services.Wrap(services.ErrTransient, stageName, "encode scenes", "Failed to encode scene payload", err)
		}
		sceneCount = len(scenes)
	} else {
		scriptText, err = g.generateText(ctx, series, languageCode)
		if err != nil {
			return err
		}
	}

	record := &store.Script{
		SeriesID:       series.ID,
		LanguageCode:   languageCode,
		Text:           scriptText,
		ScenesJSON:     scenesJSON,
		PromptMetadata: promptMetadata(series),
	}
	if err := g.store.CreateScript(ctx, record); err != nil {
		return services.Wrap(services.ErrTransient, stageName, "persist script", "Failed to store generated script", err)
	}

	episode.ScriptID = record.ID
	episode.Status = store.EpisodeReadyForReview
	episode.ErrorInfo = nil
	if err := g.updateEpisode(ctx, episode, "record script"); err != nil {
		return err
	}

	logger.Info("script generation completed",
		logging.String("script_id", record.ID),
		logging.Int("script_length", len(scriptText)),
		logging.Int("scene_count", sceneCount),
	)
	return nil
}

func (g *Generator) generateScenes(ctx context.Context, series *store.Series, languageCode string) ([]script.Scene, error) {
	minScenes := g.cfg.Pipeline.ScenesMin
	maxScenes := g.cfg.Pipeline.ScenesMax
	system, user := scenePrompts(series, languageCode, minScenes, maxScenes)

	content, err := g.llm.Complete(ctx, llm.Request{
		System:      system,
		User:        user,
		Temperature: 0.6,
		MaxTokens:   2000,
	})
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, stageName, "request scenes", "Failed to generate script scenes", err)
	}

	var raw any
	if err := llm.DecodeModelJSON(content, &raw); err != nil {
		return nil, services.Wrap(services.ErrTransient, stageName, "decode scenes", "Script scenes response was not valid JSON", err)
	}
	scenes, err := script.ValidateScenes(raw)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, stageName, "validate scenes", err.Error(), err)
	}
	if maxScenes > 0 && len(scenes) > maxScenes {
		scenes = scenes[:maxScenes]
	}
	return scenes, nil
}

func (g *Generator) generateText(ctx context.Context, series *store.Series, languageCode string) (string, error) {
	system, user := textPrompts(series, languageCode)
	content, err := g.llm.Complete(ctx, llm.Request{
		System:      system,
		User:        user,
		Temperature: 0.7,
		MaxTokens:   1000,
	})
	if err != nil {
		return "", services.Wrap(services.ErrTransient, stageName, "request script", "Failed to generate script", err)
	}
	text := strings.TrimSpace(content)
	if text == "" {
		return "", services.Wrap(services.ErrTransient, stageName, "request script", "Model returned an empty script", nil)
	}
	return text, nil
}

func (g *Generator) updateEpisode(ctx context.Context, episode *store.Episode, op string) error {
	err := g.store.UpdateEpisode(ctx, episode)
	if err == nil {
		return nil
	}
	if errors.Is(err, store.ErrRevisionConflict) {
		return services.Wrap(services.ErrConflict, stageName, op, "Episode was modified by another worker", err)
	}
	return services.Wrap(services.ErrTransient, stageName, op, "Failed to persist episode update", err)
}

// promptMetadata records the series settings the script was produced from,
// so regenerated scripts can be compared against their inputs.
func promptMetadata(series *store.Series) map[string]string {
	metadata := map[string]string{"content_type": series.ContentType}
	if series.CustomTopic != nil {
		if encoded, err := json.Marshal(series.CustomTopic); err == nil {
			metadata["custom_topic"] = string(encoded)
		}
	}
	if series.ScriptPreferences != nil {
		if encoded, err := json.Marshal(series.ScriptPreferences); err == nil {
			metadata["script_preferences"] = string(encoded)
		}
	}
	return metadata
}

// HealthCheck verifies the chat provider is configured.
func (g *Generator) HealthCheck(ctx context.Context) stage.Health {
	const name = "scriptgen"
	if g.cfg == nil {
		return stage.Unhealthy(name, "configuration unavailable")
	}
	if strings.TrimSpace(g.cfg.OpenAI.APIKey) == "" {
		return stage.Unhealthy(name, "openai api key not configured")
	}
	if g.llm == nil {
		return stage.Unhealthy(name, "chat client unavailable")
	}
	return stage.Healthy(name)
}
