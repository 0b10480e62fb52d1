package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"log/slog"

	"github.com/gofrs/flock"

	"showrunner/internal/config"
	"showrunner/internal/deps"
	"showrunner/internal/logging"
	"showrunner/internal/notifications"
	"showrunner/internal/preflight"
	"showrunner/internal/scheduler"
	"showrunner/internal/store"
	"showrunner/internal/workflow"
)

// Daemon owns the background services and enforces single-instance
// execution through a file lock in the log directory.
type Daemon struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     *store.Store
	workflow  *workflow.Manager
	scheduler *scheduler.Scheduler
	logPath   string

	lockPath string
	lock     *flock.Flock
	api      *apiServer

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	Workflow     workflow.StatusSummary
	DatabasePath string
	LockFilePath string
	Dependencies []deps.Status
}

// New constructs a daemon with initialized dependencies. The scheduler is
// optional; everything else is required. logPath names the current log
// file so IPC log tailing has a target, falling back to the stable
// pointer in the log directory when blank.
func New(cfg *config.Config, st *store.Store, logger *slog.Logger, wf *workflow.Manager, sched *scheduler.Scheduler, logPath string) (*Daemon, error) {
	if cfg == nil || st == nil || logger == nil || wf == nil {
		return nil, errors.New("daemon requires config, store, logger, and workflow manager")
	}

	if strings.TrimSpace(logPath) == "" {
		logPath = filepath.Join(cfg.Paths.LogDir, "showrunner.log")
	}
	lockPath := filepath.Join(cfg.Paths.LogDir, "showrunner.lock")
	d := &Daemon{
		cfg:       cfg,
		logger:    logging.NewComponentLogger(logger, "daemon"),
		store:     st,
		workflow:  wf,
		scheduler: sched,
		logPath:   logPath,
		lockPath:  lockPath,
		lock:      flock.New(lockPath),
	}

	api, err := newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, err
	}
	d.api = api
	return d, nil
}

// Start acquires the daemon lock and launches the workflow manager,
// scheduler, and HTTP surface. Preflight problems are logged but never
// block startup; a stage that cannot work reports through its health
// check and fails jobs with actionable errors instead.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another showrunner daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	d.logPreflight(d.ctx)

	if err := d.workflow.Start(d.ctx); err != nil {
		d.rollbackStart()
		return fmt.Errorf("start workflow: %w", err)
	}
	if d.scheduler != nil {
		if err := d.scheduler.Start(d.ctx); err != nil {
			d.workflow.Stop()
			d.rollbackStart()
			return fmt.Errorf("start scheduler: %w", err)
		}
	}
	if err := d.api.start(d.ctx); err != nil {
		d.logger.Warn("http api unavailable",
			logging.Error(err),
			logging.String(logging.FieldEventType, "api_start_failed"),
			logging.String(logging.FieldErrorHint, "check api_bind address and port availability"),
		)
	}

	d.running.Store(true)
	d.logger.Info("showrunner daemon started", logging.String("lock", d.lockPath))
	return nil
}

func (d *Daemon) rollbackStart() {
	_ = d.lock.Unlock()
	if d.cancel != nil {
		d.cancel()
	}
	d.ctx = nil
	d.cancel = nil
}

func (d *Daemon) logPreflight(ctx context.Context) {
	for _, result := range preflight.RunAll(ctx, d.cfg) {
		if result.Passed {
			continue
		}
		d.logger.Warn("preflight check failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldEventType, "preflight_check_failed"),
		)
	}
	for _, status := range preflight.CheckSystemDeps(d.cfg) {
		if status.Available {
			continue
		}
		d.logger.Warn("external tool unavailable",
			logging.String("tool", status.Name),
			logging.String("command", status.Command),
			logging.String("detail", status.Detail),
			logging.String(logging.FieldEventType, "dependency_missing"),
			logging.String(logging.FieldErrorHint, "install the binary or set its path under [tools]"),
		)
	}
}

// Stop halts background processing and releases the daemon lock. The
// scheduler stops first so no new episodes are booked while workers
// finish their current jobs.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if d.scheduler != nil {
		d.scheduler.Stop()
	}
	d.workflow.Stop()
	d.api.stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("showrunner daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Running reports whether the daemon's services are active.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// ListJobs returns queue jobs filtered by optional statuses.
func (d *Daemon) ListJobs(ctx context.Context, statuses []store.JobStatus) ([]*store.Job, error) {
	if d.store == nil {
		return nil, errors.New("job store unavailable")
	}
	return d.store.ListJobs(ctx, statuses...)
}

// GetJob fetches a single queue job, nil when absent.
func (d *Daemon) GetJob(ctx context.Context, id int64) (*store.Job, error) {
	if d.store == nil {
		return nil, errors.New("job store unavailable")
	}
	return d.store.GetJob(ctx, id)
}

// JobStats returns queue counts per status.
func (d *Daemon) JobStats(ctx context.Context) (map[store.JobStatus]int, error) {
	if d.store == nil {
		return nil, errors.New("job store unavailable")
	}
	return d.store.JobStats(ctx)
}

// RetryJobs parks-to-pending the given failed jobs, or every failed job
// when ids is empty. Returns how many jobs were rescheduled.
func (d *Daemon) RetryJobs(ctx context.Context, ids []int64) (int64, error) {
	if d.store == nil {
		return 0, errors.New("job store unavailable")
	}
	if len(ids) == 0 {
		failed, err := d.store.ListJobs(ctx, store.JobFailed)
		if err != nil {
			return 0, err
		}
		for _, job := range failed {
			ids = append(ids, job.ID)
		}
	}
	var updated int64
	for _, id := range ids {
		if err := d.store.RetryJob(ctx, id); err != nil {
			return updated, err
		}
		updated++
	}
	return updated, nil
}

// ReclaimStale releases leases whose workers stopped heartbeating,
// returning the jobs to the pending pool immediately.
func (d *Daemon) ReclaimStale(ctx context.Context) (int64, error) {
	if d.store == nil {
		return 0, errors.New("job store unavailable")
	}
	timeout := time.Duration(d.cfg.Queue.HeartbeatTimeout) * time.Second
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return d.store.ReclaimStaleJobs(ctx, time.Now().UTC().Add(-timeout))
}

// PruneJobs removes terminal jobs older than the given age.
func (d *Daemon) PruneJobs(ctx context.Context, olderThan time.Duration) (int64, error) {
	if d.store == nil {
		return 0, errors.New("job store unavailable")
	}
	if olderThan < 0 {
		olderThan = 0
	}
	return d.store.PruneJobs(ctx, time.Now().UTC().Add(-olderThan))
}

// QueueHealth returns aggregate queue diagnostics.
func (d *Daemon) QueueHealth(ctx context.Context) (store.HealthSummary, error) {
	if d.store == nil {
		return store.HealthSummary{}, errors.New("job store unavailable")
	}
	return d.store.Health(ctx)
}

// DatabaseHealth returns detailed database diagnostics.
func (d *Daemon) DatabaseHealth(ctx context.Context) (store.DatabaseHealth, error) {
	if d.store == nil {
		return store.DatabaseHealth{}, errors.New("job store unavailable")
	}
	return d.store.CheckHealth(ctx)
}

// TestNotification publishes the test event using the current
// configuration so operators can verify their ntfy topic end to end.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if d.cfg == nil {
		return false, "configuration unavailable", errors.New("configuration unavailable")
	}
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	notifier := notifications.NewService(d.cfg)
	if err := notifier.Publish(ctx, notifications.EventTest, nil); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// LogPath returns the path to the daemon log file.
func (d *Daemon) LogPath() string {
	return d.logPath
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	return Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		Workflow:     d.workflow.Status(ctx),
		DatabasePath: d.cfg.DatabasePath(),
		LockFilePath: d.lockPath,
		Dependencies: preflight.CheckSystemDeps(d.cfg),
	}
}
