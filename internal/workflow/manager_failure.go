package workflow

import (
	"context"
	"errors"

	"log/slog"

	"showrunner/internal/logging"
	"showrunner/internal/notifications"
	"showrunner/internal/services"
	"showrunner/internal/store"
)

// handleJobFailure records a stage error against the job and, where the
// failure concerns the entity rather than the environment, against the
// episode or post it was producing. Notifications fire only when the job
// parks; retries are routine.
func (m *Manager) handleJobFailure(ctx context.Context, lane *laneState, stg pipelineStage, job *store.Job, stageErr error) {
	logger := m.jobLogger(ctx, lane.logger, job)
	details := services.Details(stageErr)
	retryable := services.IsRetryable(stageErr)
	message := failureMessage(stg.name, details, stageErr)

	if err := m.store.FailJob(ctx, job, message, retryable); err != nil {
		switch {
		case errors.Is(err, store.ErrLeaseConflict):
			logger.Warn("job lease lost before failure could be recorded")
		case errors.Is(err, context.Canceled):
			logger.Debug("job failure not recorded: shutting down")
		default:
			m.setLastError(err)
			logger.Error("failed to record job failure", logging.Error(err))
		}
		return
	}

	parked := job.Status == store.JobFailed
	m.setLastError(stageErr)
	logger.Error("stage failed",
		logging.String(logging.FieldEventType, "stage_failure"),
		logging.String(logging.FieldErrorKind, string(details.Kind)),
		logging.String(logging.FieldErrorOperation, details.Operation),
		logging.Int(logging.FieldAttempt, job.Attempt),
		logging.Bool("retryable", retryable),
		logging.Bool("parked", parked),
		logging.Alert("stage_failure"),
		logging.Error(stageErr),
	)

	if details.Kind == services.KindConflict {
		// The entity is in another state or another worker's hands; the
		// stage never touched it, so neither do we.
		return
	}

	if job.Kind == store.KindPublish {
		if parked {
			m.recordPostFailure(ctx, logger, job, message)
		}
		return
	}
	m.recordEpisodeFailure(ctx, logger, job, stg.name, message, parked)
}

// failureMessage picks the operator-facing failure text: the classified
// message when the stage wrapped its error, the raw error otherwise.
func failureMessage(stageName string, details services.ErrorDetails, err error) string {
	if details.Message != "" {
		return details.Message
	}
	if err != nil {
		return err.Error()
	}
	return stageName + " failed"
}

// recordEpisodeFailure parks the episode in failed and records which step
// broke it. Script generation re-enters from failed, so a retryable job
// failure and an exhausted one leave the same row state; the queue carries
// the difference.
func (m *Manager) recordEpisodeFailure(ctx context.Context, logger *slog.Logger, job *store.Job, step, message string, parked bool) {
	episode, err := m.store.GetEpisode(ctx, job.EpisodeID)
	if err != nil || episode == nil {
		if err != nil {
			logger.Warn("episode failure not recorded: episode unavailable", logging.Error(err))
		}
		return
	}

	episode.Status = store.EpisodeFailed
	episode.ErrorInfo = &store.ErrorPayload{Step: step, Message: message}
	if err := m.store.UpdateEpisode(ctx, episode); err != nil {
		if errors.Is(err, store.ErrRevisionConflict) {
			logger.Debug("episode changed concurrently; failure state left to the new owner")
		} else {
			logger.Error("failed to record episode failure", logging.Error(err))
		}
		return
	}

	if parked {
		payload := notifications.Payload{
			"sequence": episode.Sequence,
			"step":     step,
			"message":  message,
		}
		if series, err := m.store.GetSeries(ctx, episode.SeriesID); err == nil && series != nil {
			payload["seriesName"] = series.Name
		}
		m.notify(ctx, logger, notifications.EventEpisodeFailed, payload)
	}
}

// recordPostFailure marks the post failed once its job has no attempts
// left. While retries remain the row stays posting, mirroring what the
// platform may yet deliver.
func (m *Manager) recordPostFailure(ctx context.Context, logger *slog.Logger, job *store.Job, message string) {
	post, err := m.store.GetPost(ctx, job.PostID)
	if err != nil || post == nil {
		if err != nil {
			logger.Warn("post failure not recorded: post unavailable", logging.Error(err))
		}
		return
	}
	if post.Status == store.PostPosted {
		// A lease takeover finished the upload after this attempt broke.
		return
	}

	post.Status = store.PostFailed
	post.ErrorInfo = &store.ErrorPayload{Step: string(store.KindPublish), Message: message}
	if err := m.store.UpdatePost(ctx, post); err != nil {
		logger.Error("failed to record post failure", logging.Error(err))
		return
	}

	payload := notifications.Payload{"error": message}
	if account, err := m.store.GetAccount(ctx, post.AccountID); err == nil && account != nil {
		payload["platform"] = account.Platform
	}
	if episode, err := m.store.GetEpisode(ctx, post.EpisodeID); err == nil && episode != nil {
		payload["sequence"] = episode.Sequence
		if series, err := m.store.GetSeries(ctx, episode.SeriesID); err == nil && series != nil {
			payload["seriesName"] = series.Name
		}
	}
	m.notify(ctx, logger, notifications.EventPostFailed, payload)
}

func (m *Manager) notify(ctx context.Context, logger *slog.Logger, event notifications.Event, payload notifications.Payload) {
	if m.notifier == nil {
		return
	}
	if err := m.notifier.Publish(ctx, event, payload); err != nil {
		logger.Warn("notification publish failed",
			logging.String(logging.FieldEventType, string(event)),
			logging.Error(err),
		)
	}
}
