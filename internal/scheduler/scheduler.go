package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"log/slog"

	"github.com/robfig/cron/v3"

	"showrunner/internal/config"
	"showrunner/internal/logging"
	"showrunner/internal/notifications"
	"showrunner/internal/planner"
	"showrunner/internal/store"
)

const componentName = "scheduler"

const defaultTopUpCron = "15 0 * * *"

// Scheduler runs the recurring top-up sweep over active series.
type Scheduler struct {
	store    *store.Store
	cfg      *config.Config
	logger   *slog.Logger
	planner  *planner.Planner
	notifier notifications.Service

	mu      sync.Mutex
	cron    *cron.Cron
	started bool
}

// New constructs a scheduler with its own planner and no notifier.
func New(cfg *config.Config, st *store.Store, logger *slog.Logger) *Scheduler {
	return NewWithDependencies(cfg, st, logger, planner.New(cfg, st, logger), nil)
}

// NewWithDependencies allows injecting the planner and notifier (used in
// tests and by the daemon wiring).
func NewWithDependencies(cfg *config.Config, st *store.Store, logger *slog.Logger, pl *planner.Planner, notifier notifications.Service) *Scheduler {
	if logger != nil {
		logger = logger.With(logging.String(logging.FieldComponent, componentName))
	}
	return &Scheduler{
		store:    st,
		cfg:      cfg,
		logger:   logger,
		planner:  pl,
		notifier: notifier,
	}
}

// Start registers the sweep with a cron runner and kicks off one immediate
// sweep to recover from downtime that crossed the cron window. Disabled
// schedulers start as a no-op so daemon wiring stays unconditional.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return errors.New("scheduler already started")
	}
	if s.cfg == nil || !s.cfg.Scheduler.Enabled {
		if s.logger != nil {
			s.logger.Info("scheduler disabled")
		}
		s.started = true
		return nil
	}

	spec := strings.TrimSpace(s.cfg.Scheduler.TopUpCron)
	if spec == "" {
		spec = defaultTopUpCron
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("invalid top-up cron %q: %w", spec, err)
	}

	runner := cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DiscardLogger),
		cron.Recover(cron.DiscardLogger),
	))
	if _, err := runner.AddFunc(spec, func() { s.sweepAndLog(ctx) }); err != nil {
		return fmt.Errorf("register top-up sweep: %w", err)
	}
	runner.Start()
	s.cron = runner
	s.started = true

	go s.sweepAndLog(ctx)

	if s.logger != nil {
		s.logger.Info("scheduler started", logging.String("cron", spec))
	}
	return nil
}

// Stop halts the cron runner and waits for an in-flight sweep to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	runner := s.cron
	s.cron = nil
	s.started = false
	s.mu.Unlock()

	if runner == nil {
		return
	}
	<-runner.Stop().Done()
	if s.logger != nil {
		s.logger.Info("scheduler stopped")
	}
}

// Sweep tops up every active series and reports how many episodes were
// booked across how many series. One broken series does not stop the
// sweep; its error is logged and the rest continue.
func (s *Scheduler) Sweep(ctx context.Context) (episodes, series int, err error) {
	logger := logging.WithContext(ctx, s.logger)

	active, err := s.store.ListSeries(ctx, "", store.SeriesActive)
	if err != nil {
		return 0, 0, fmt.Errorf("list active series: %w", err)
	}
	for _, candidate := range active {
		if ctx.Err() != nil {
			return episodes, series, ctx.Err()
		}
		created, err := s.planner.TopUp(ctx, candidate)
		if err != nil {
			logger.Error("series top-up failed",
				logging.String(logging.FieldSeriesID, candidate.ID),
				logging.Error(err),
			)
			continue
		}
		if created > 0 {
			episodes += created
			series++
		}
	}

	if episodes > 0 {
		s.notify(ctx, notifications.EventTopUpCompleted, notifications.Payload{
			"episodeCount": episodes,
			"seriesCount":  series,
		})
		logger.Info("top-up sweep completed",
			logging.Int("episodes", episodes),
			logging.Int("series", series),
		)
	}
	return episodes, series, nil
}

func (s *Scheduler) sweepAndLog(ctx context.Context) {
	if _, _, err := s.Sweep(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.WithContext(ctx, s.logger).Error("top-up sweep failed", logging.Error(err))
	}
}

func (s *Scheduler) notify(ctx context.Context, event notifications.Event, payload notifications.Payload) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Publish(ctx, event, payload); err != nil {
		logging.WithContext(ctx, s.logger).Warn("notification publish failed",
			logging.String(logging.FieldEventType, string(event)),
			logging.Error(err),
		)
	}
}
