package workflow

import (
	"context"

	"showrunner/internal/stage"
	"showrunner/internal/store"
)

// StatusSummary is the operator view of the manager: whether workers run,
// the last claim or stage error, the most recently claimed job, queue depth
// by status, and per-stage health.
type StatusSummary struct {
	Running     bool
	LastError   string
	LastJob     *store.Job
	QueueStats  map[store.JobStatus]int
	StageHealth map[string]stage.Health
}

// Status reports the current manager state. A store error while collecting
// queue stats lands in LastError instead of failing the call; status must
// stay usable when the database is the problem.
func (m *Manager) Status(ctx context.Context) StatusSummary {
	m.mu.RLock()
	summary := StatusSummary{Running: m.running}
	if m.lastErr != nil {
		summary.LastError = m.lastErr.Error()
	}
	if m.lastJob != nil {
		jobCopy := *m.lastJob
		summary.LastJob = &jobCopy
	}
	lanes := m.lanes
	m.mu.RUnlock()

	stats, err := m.store.JobStats(ctx)
	if err != nil {
		if summary.LastError == "" {
			summary.LastError = err.Error()
		}
	} else {
		summary.QueueStats = stats
	}

	summary.StageHealth = make(map[string]stage.Health)
	for _, lane := range lanes {
		for _, stg := range lane.stages {
			summary.StageHealth[stg.name] = stg.handler.HealthCheck(ctx)
		}
	}
	return summary
}
