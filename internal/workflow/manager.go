package workflow

import (
	"context"
	"sync"
	"time"

	"log/slog"

	"showrunner/internal/config"
	"showrunner/internal/logging"
	"showrunner/internal/notifications"
	"showrunner/internal/store"
)

// Manager coordinates the queue workers that execute pipeline and publish
// jobs. It owns the claim loops, the heartbeat monitor, and the failure
// bookkeeping; the stage handlers own the domain work.
type Manager struct {
	cfg        *config.Config
	store      *store.Store
	logger     *slog.Logger
	baseLogger *slog.Logger
	notifier   notifications.Service

	pollInterval       time.Duration
	errorRetryInterval time.Duration
	heartbeat          *HeartbeatMonitor

	lanes []*laneState

	mu      sync.RWMutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	lastErr error
	lastJob *store.Job
}

// NewManager creates a workflow manager without a notifier. The daemon
// wires one in through NewManagerWithNotifier.
func NewManager(cfg *config.Config, st *store.Store, logger *slog.Logger) *Manager {
	return NewManagerWithNotifier(cfg, st, logger, nil)
}

// NewManagerWithNotifier creates a workflow manager that publishes terminal
// failure notifications through the given service.
func NewManagerWithNotifier(cfg *config.Config, st *store.Store, logger *slog.Logger, notifier notifications.Service) *Manager {
	return &Manager{
		cfg:                cfg,
		store:              st,
		logger:             logging.NewComponentLogger(logger, "workflow-manager"),
		baseLogger:         logger,
		notifier:           notifier,
		pollInterval:       time.Duration(cfg.Queue.PollInterval) * time.Second,
		errorRetryInterval: time.Duration(cfg.Queue.ErrorRetryInterval) * time.Second,
		heartbeat: NewHeartbeatMonitor(
			st,
			logger,
			time.Duration(cfg.Queue.HeartbeatInterval)*time.Second,
			time.Duration(cfg.Queue.HeartbeatTimeout)*time.Second,
		),
	}
}

func (m *Manager) maxAttempts() int {
	if m.cfg == nil || m.cfg.Queue.MaxAttempts < 1 {
		return 1
	}
	return m.cfg.Queue.MaxAttempts
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) setLastJob(job *store.Job) {
	if job == nil {
		return
	}
	jobCopy := *job
	m.mu.Lock()
	m.lastJob = &jobCopy
	m.mu.Unlock()
}
