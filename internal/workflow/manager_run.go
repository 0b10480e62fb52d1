package workflow

import (
	"context"
	"errors"
	"time"

	"showrunner/internal/logging"
)

// Start launches the lane workers. It fails when no stages are configured
// or the manager is already running.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return errors.New("workflow manager already running")
	}
	if len(m.lanes) == 0 {
		return errors.New("no workflow stages configured")
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.lastErr = nil

	for _, lane := range m.lanes {
		for worker := 0; worker < lane.workers; worker++ {
			m.wg.Add(1)
			go m.runWorker(runCtx, lane, worker)
		}
	}
	m.logger.Info("workflow manager started", logging.Int("lanes", len(m.lanes)))
	return nil
}

// Stop cancels the workers and waits for them to wind down. A job caught
// mid-execute keeps its lease and returns to the queue once the heartbeat
// timeout expires.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.cancel = nil
	m.running = false
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	m.wg.Wait()
	m.logger.Info("workflow manager stopped")
}

// Running reports whether the lane workers are active.
func (m *Manager) Running() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

// runWorker claims and executes jobs for one lane until the context ends.
// Worker zero doubles as the lane's reclaimer so stale leases return to the
// queue even while every other worker is busy.
func (m *Manager) runWorker(ctx context.Context, lane *laneState, worker int) {
	defer m.wg.Done()
	logger := lane.logger.With(logging.Int("worker", worker))

	for {
		if ctx.Err() != nil {
			return
		}
		if worker == 0 {
			m.heartbeat.ReclaimStale(ctx, logger)
		}

		job, err := m.store.ClaimNextJob(ctx, lane.kinds...)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			m.setLastError(err)
			logger.Error("failed to claim next job", logging.Error(err))
			if !m.sleep(ctx, m.errorRetryInterval) {
				return
			}
			continue
		}
		if job == nil {
			if !m.sleep(ctx, m.pollInterval) {
				return
			}
			continue
		}
		if err := m.processJob(ctx, lane, logger, job); errors.Is(err, context.Canceled) {
			return
		}
	}
}

// sleep waits out the duration or the context, whichever ends first, and
// reports false when the context ended.
func (m *Manager) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		d = time.Second
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
