package workflow

import (
	"context"
	"errors"
	"sync"
	"time"

	"log/slog"

	"showrunner/internal/logging"
	"showrunner/internal/publish"
	"showrunner/internal/store"
)

// processJob runs one claimed job through its stage handler. The returned
// error is context.Canceled when the worker should exit; every other
// outcome is fully handled here.
func (m *Manager) processJob(ctx context.Context, lane *laneState, laneLogger *slog.Logger, job *store.Job) error {
	stg, ok := lane.stageFor(job.Kind)
	if !ok {
		// Claim kinds come from the configured stages, so this only fires
		// when lanes are rewired while jobs are in flight.
		laneLogger.Error("claimed job has no stage handler", logging.String("kind", string(job.Kind)))
		if err := m.store.FailJob(ctx, job, "no stage handler configured", false); err != nil && !errors.Is(err, store.ErrLeaseConflict) {
			laneLogger.Error("failed to park handlerless job", logging.Error(err))
		}
		return nil
	}

	jobCtx := m.jobContext(ctx, lane, stg, job)
	logger := m.jobLogger(jobCtx, laneLogger, job)
	m.setLastJob(job)

	start := time.Now()
	logger.Info("stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.Int(logging.FieldAttempt, job.Attempt),
	)

	if err := stg.handler.Prepare(jobCtx, job); err != nil {
		if interrupted(ctx, err) {
			logger.Debug("stage interrupted during prepare; lease left for reclaim")
			return context.Canceled
		}
		m.handleJobFailure(jobCtx, lane, stg, job, err)
		return nil
	}

	execErr := m.executeWithHeartbeat(jobCtx, stg, job)
	if execErr != nil {
		if interrupted(ctx, execErr) {
			logger.Debug("stage interrupted during execute; lease left for reclaim")
			return context.Canceled
		}
		m.handleJobFailure(jobCtx, lane, stg, job, execErr)
		return nil
	}

	if err := m.store.CompleteJob(jobCtx, job); err != nil {
		if errors.Is(err, store.ErrLeaseConflict) {
			logger.Warn("job lease lost before completion; result discarded")
			return nil
		}
		m.setLastError(err)
		logger.Error("failed to mark job completed", logging.Error(err))
		return nil
	}

	logger.Info("stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.Duration("duration", time.Since(start)),
	)
	m.afterJobSuccess(jobCtx, logger, stg, job)
	return nil
}

// interrupted reports whether a stage error is the worker context ending,
// as opposed to a failure of the stage itself.
func interrupted(ctx context.Context, err error) bool {
	return ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded))
}

// executeWithHeartbeat runs the stage executor while a background goroutine
// renews the job lease. Losing the lease cancels the executor: the job
// belongs to another worker now, so finishing the work would apply it
// twice.
func (m *Manager) executeWithHeartbeat(ctx context.Context, stg pipelineStage, job *store.Job) error {
	execCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var hbWG sync.WaitGroup
	hbWG.Add(1)
	go func() {
		defer hbWG.Done()
		m.heartbeat.Run(execCtx, job, cancel)
	}()

	err := stg.handler.Execute(execCtx, job)
	cancel()
	hbWG.Wait()
	return err
}

// afterJobSuccess enqueues the successor job and, after a render, fans the
// episode out to publish jobs when its series posts automatically.
func (m *Manager) afterJobSuccess(ctx context.Context, logger *slog.Logger, stg pipelineStage, job *store.Job) {
	if stg.successor != "" {
		if _, err := m.store.EnqueueJob(ctx, stg.successor, job.EpisodeID, "", time.Now().UTC(), m.maxAttempts()); err != nil {
			m.setLastError(err)
			logger.Error("failed to enqueue successor job",
				logging.String("successor", string(stg.successor)),
				logging.Error(err),
			)
			return
		}
		logger.Info("successor job enqueued", logging.String("successor", string(stg.successor)))
	}
	if stg.kind == store.KindRender {
		m.autoPost(ctx, logger, job)
	}
}

// autoPost creates publish jobs for a freshly rendered episode when its
// series was launched with auto-posting. The episode row itself is left
// alone; publish outcomes live on the post records.
func (m *Manager) autoPost(ctx context.Context, logger *slog.Logger, job *store.Job) {
	episode, err := m.store.GetEpisode(ctx, job.EpisodeID)
	if err != nil || episode == nil {
		if err != nil {
			logger.Warn("auto-post skipped: episode unavailable", logging.Error(err))
		}
		return
	}
	series, err := m.store.GetSeries(ctx, episode.SeriesID)
	if err != nil || series == nil {
		if err != nil {
			logger.Warn("auto-post skipped: series unavailable", logging.Error(err))
		}
		return
	}
	if !series.AutoPostEnabled {
		return
	}

	posts, err := publish.Fanout(ctx, m.store, m.cfg, episode, series)
	if err != nil {
		m.setLastError(err)
		logger.Error("auto-post fan-out failed", logging.Error(err))
		return
	}
	if len(posts) == 0 {
		logger.Info("auto-post found no connected accounts")
		return
	}
	logger.Info("auto-post fan-out enqueued", logging.Int("posts", len(posts)))
}
