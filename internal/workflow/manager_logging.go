package workflow

import (
	"context"

	"log/slog"

	"github.com/google/uuid"

	"showrunner/internal/logging"
	"showrunner/internal/services"
	"showrunner/internal/store"
)

// laneLogger returns the component logger the lane's workers share.
func (m *Manager) laneLogger(lane *laneState) *slog.Logger {
	return logging.NewComponentLogger(m.baseLogger, "workflow-"+lane.name+"-runner").
		With(logging.String(logging.FieldLane, lane.name))
}

// jobContext stamps the claimed job's identifiers into the context so stage
// code and store retries log with full correlation.
func (m *Manager) jobContext(ctx context.Context, lane *laneState, stg pipelineStage, job *store.Job) context.Context {
	ctx = services.WithJobID(ctx, job.ID)
	if job.EpisodeID != "" {
		ctx = services.WithEpisodeID(ctx, job.EpisodeID)
	}
	ctx = services.WithStage(ctx, stg.name)
	ctx = services.WithLane(ctx, lane.name)
	return services.WithRequestID(ctx, uuid.NewString())
}

// jobLogger decorates the lane logger with the job identity.
func (m *Manager) jobLogger(ctx context.Context, laneLogger *slog.Logger, job *store.Job) *slog.Logger {
	logger := laneLogger.With(
		logging.Int64(logging.FieldJobID, job.ID),
		logging.String(logging.FieldStage, string(job.Kind)),
	)
	if job.EpisodeID != "" {
		logger = logger.With(logging.String(logging.FieldEpisodeID, job.EpisodeID))
	}
	if job.PostID != "" {
		logger = logger.With(logging.String(logging.FieldPostID, job.PostID))
	}
	if requestID, ok := services.RequestIDFromContext(ctx); ok {
		logger = logger.With(logging.String(logging.FieldCorrelationID, requestID))
	}
	return logger
}
