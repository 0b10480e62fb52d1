package api

import (
	"context"

	"showrunner/internal/store"
)

// JobReader abstracts queue persistence interactions needed for API queries.
type JobReader interface {
	ListJobs(ctx context.Context, statuses ...store.JobStatus) ([]*store.Job, error)
	JobStats(ctx context.Context) (map[store.JobStatus]int, error)
	GetJob(ctx context.Context, id int64) (*store.Job, error)
}

// QueueService exposes read-only queue operations returning API DTOs.
type QueueService struct {
	store JobReader
}

// NewQueueService constructs a QueueService around the provided reader.
func NewQueueService(store JobReader) *QueueService {
	if store == nil {
		return nil
	}
	return &QueueService{store: store}
}

// List returns queue jobs filtered by status.
func (s *QueueService) List(ctx context.Context, statuses ...store.JobStatus) ([]JobView, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	jobs, err := s.store.ListJobs(ctx, statuses...)
	if err != nil {
		return nil, err
	}
	return FromJobs(jobs), nil
}

// Stats returns queue summary counts keyed by status string.
func (s *QueueService) Stats(ctx context.Context) (map[string]int, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	stats, err := s.store.JobStats(ctx)
	if err != nil {
		return nil, err
	}
	return MergeJobStats(stats), nil
}

// Describe fetches a single queue job.
func (s *QueueService) Describe(ctx context.Context, id int64) (*JobView, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	job, err := s.store.GetJob(ctx, id)
	if err != nil || job == nil {
		return nil, err
	}
	view := FromJob(job)
	return &view, nil
}
