package planner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"log/slog"

	"github.com/go-playground/validator/v10"

	"showrunner/internal/config"
	"showrunner/internal/logging"
	"showrunner/internal/recurrence"
	"showrunner/internal/services"
	"showrunner/internal/store"
)

const componentName = "planner"

// Planner schedules episodes from series configuration.
type Planner struct {
	store    *store.Store
	cfg      *config.Config
	logger   *slog.Logger
	validate *validator.Validate

	// Now is the clock used for slot arithmetic; tests pin it.
	Now func() time.Time
}

// New constructs a planner.
func New(cfg *config.Config, st *store.Store, logger *slog.Logger) *Planner {
	if logger != nil {
		logger = logger.With(logging.String(logging.FieldComponent, componentName))
	}
	return &Planner{
		store:    st,
		cfg:      cfg,
		logger:   logger,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		Now:      time.Now,
	}
}

// LaunchResult reports what a launch scheduled.
type LaunchResult struct {
	Series   *store.Series
	Upcoming []*store.Episode
	Estimate CreditEstimate
}

// launchChecklist is the flattened view of the series configuration checked
// before any episodes are booked. Timezone and publish time validate
// strictly here even though the recurrence engine degrades them gracefully:
// a typo'd timezone silently shifting every publish slot to UTC is exactly
// what launch should catch.
type launchChecklist struct {
	ContentType  string   `validate:"required"`
	LanguageCode string   `validate:"required"`
	Timezone     string   `validate:"omitempty,timezone"`
	PublishTime  string   `validate:"omitempty,datetime=15:04"`
	CustomDays   []int    `validate:"max=7,dive,gte=0,lte=6"`
	AccountIDs   []string `validate:"dive,uuid4"`
}

// Launch validates the series, books the first batch of publish slots as
// scheduled episodes with script jobs, and activates the series. Only draft
// and paused series may launch.
func (p *Planner) Launch(ctx context.Context, seriesID string) (*LaunchResult, error) {
	logger := logging.WithContext(ctx, p.logger)

	series, err := p.loadSeries(ctx, seriesID)
	if err != nil {
		return nil, err
	}
	if series.Status != store.SeriesDraft && series.Status != store.SeriesPaused {
		return nil, services.Wrap(
			services.ErrConflict, componentName, "check status",
			fmt.Sprintf("Series cannot launch from status %q", series.Status), nil)
	}
	if err := p.validateForLaunch(series); err != nil {
		return nil, err
	}

	count := p.cfg.Scheduler.LaunchEpisodes
	if count <= 0 {
		count = 7
	}
	slots := p.engine().Slots(series.Schedule, count)
	if len(slots) == 0 {
		return nil, services.Wrap(
			services.ErrValidation, componentName, "compute slots",
			"Schedule produces no upcoming publish slots", nil)
	}

	upcoming := make([]*store.Episode, 0, len(slots))
	for i, slot := range slots {
		episode, err := p.bookEpisode(ctx, series, i+1, slot)
		if err != nil {
			return nil, err
		}
		upcoming = append(upcoming, episode)
	}

	estimate := Estimate(series)
	series.Status = store.SeriesActive
	series.AutoPostEnabled = len(series.AccountIDs) > 0
	series.EstimatedCredits = estimate.PerEpisode
	if err := p.store.UpdateSeries(ctx, series); err != nil {
		return nil, services.Wrap(
			services.ErrTransient, componentName, "activate series",
			"Failed to persist series activation", err)
	}

	logger.Info("series launched",
		logging.String(logging.FieldSeriesID, series.ID),
		logging.Int("episodes", len(upcoming)),
		logging.Float64("credits_per_episode", estimate.PerEpisode),
	)
	return &LaunchResult{Series: series, Upcoming: upcoming, Estimate: estimate}, nil
}

// TopUp books episodes for upcoming unclaimed publish dates of one series,
// continuing its sequence numbering, and schedules their script generation.
// Schedules switched inactive are skipped. Returns how many episodes it
// created.
func (p *Planner) TopUp(ctx context.Context, series *store.Series) (int, error) {
	if !series.ScheduleActive() {
		return 0, nil
	}
	horizon := p.cfg.Scheduler.TopUpHorizon
	if horizon <= 0 {
		horizon = 14
	}
	slots := p.engine().Slots(series.Schedule, horizon)
	if len(slots) == 0 {
		return 0, nil
	}

	booked, err := p.store.ScheduledDates(ctx, series.ID)
	if err != nil {
		return 0, services.Wrap(
			services.ErrTransient, componentName, "load booked dates",
			"Failed to read scheduled episode dates", err)
	}
	sequence, err := p.store.NextSequence(ctx, series.ID)
	if err != nil {
		return 0, services.Wrap(
			services.ErrTransient, componentName, "next sequence",
			"Failed to compute the next sequence number", err)
	}

	created := 0
	for _, slot := range slots {
		date := slot.UTC().Format("2006-01-02")
		if _, taken := booked[date]; taken {
			continue
		}
		booked[date] = struct{}{}
		if _, err := p.bookEpisode(ctx, series, sequence, slot); err != nil {
			return created, err
		}
		sequence++
		created++
	}
	if created > 0 {
		logging.WithContext(ctx, p.logger).Info("series topped up",
			logging.String(logging.FieldSeriesID, series.ID),
			logging.Int("episodes", created),
		)
	}
	return created, nil
}

// bookEpisode persists one scheduled episode and enqueues its script
// generation at the configured lead ahead of the publish slot. Slots closer
// than the lead dispatch immediately.
func (p *Planner) bookEpisode(ctx context.Context, series *store.Series, sequence int, slot time.Time) (*store.Episode, error) {
	scheduled := slot.UTC()
	episode := &store.Episode{
		SeriesID:    series.ID,
		Sequence:    sequence,
		ScheduledAt: &scheduled,
		Status:      store.EpisodeScheduled,
	}
	if err := p.store.CreateEpisode(ctx, episode); err != nil {
		return nil, services.Wrap(
			services.ErrTransient, componentName, "create episode",
			"Failed to persist scheduled episode", err)
	}

	runAt := scheduled.Add(-p.leadTime())
	if now := p.Now().UTC(); runAt.Before(now) {
		runAt = now
	}
	if _, err := p.store.EnqueueJob(ctx, store.KindScriptGeneration, episode.ID, "", runAt, p.cfg.Queue.MaxAttempts); err != nil {
		return nil, services.Wrap(
			services.ErrTransient, componentName, "enqueue script job",
			"Failed to enqueue script generation", err)
	}
	return episode, nil
}

func (p *Planner) validateForLaunch(series *store.Series) error {
	if series.ScriptPreferences == nil || series.VoiceLanguage == nil {
		return services.Wrap(
			services.ErrValidation, componentName, "validate series",
			"Complete required wizard steps before launch", nil)
	}
	checklist := launchChecklist{
		ContentType:  series.ContentType,
		LanguageCode: series.VoiceLanguage.LanguageCode,
		AccountIDs:   series.AccountIDs,
	}
	if series.Schedule != nil {
		checklist.Timezone = series.Schedule.Timezone
		checklist.PublishTime = series.Schedule.PublishTime
		checklist.CustomDays = series.Schedule.CustomDays
	}
	if err := p.validate.Struct(checklist); err != nil {
		return services.Wrap(
			services.ErrValidation, componentName, "validate series",
			fmt.Sprintf("Series configuration invalid: %s", validationDetail(err)), err)
	}
	return nil
}

func (p *Planner) loadSeries(ctx context.Context, seriesID string) (*store.Series, error) {
	series, err := p.store.GetSeries(ctx, seriesID)
	if err != nil {
		return nil, services.Wrap(
			services.ErrTransient, componentName, "load series",
			"Failed to read series from the database", err)
	}
	if series == nil {
		return nil, services.Wrap(
			services.ErrNotFound, componentName, "load series",
			fmt.Sprintf("Series %s not found", seriesID), nil)
	}
	return series, nil
}

func (p *Planner) engine() recurrence.Engine {
	return recurrence.Engine{Now: p.Now}
}

func (p *Planner) leadTime() time.Duration {
	hours := p.cfg.Pipeline.LeadTimeHours
	if hours < 0 {
		hours = 0
	}
	return time.Duration(hours) * time.Hour
}

// validationDetail flattens validator errors into one readable line.
func validationDetail(err error) string {
	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return err.Error()
	}
	parts := make([]string, 0, len(fieldErrors))
	for _, fieldError := range fieldErrors {
		parts = append(parts, fmt.Sprintf("%s fails %q", fieldError.Field(), fieldError.Tag()))
	}
	return strings.Join(parts, ", ")
}
