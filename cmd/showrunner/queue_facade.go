package main

import (
	"context"
	"strings"
	"time"

	"showrunner/internal/api"
	"showrunner/internal/config"
	"showrunner/internal/ipc"
	"showrunner/internal/store"
)

// queueAPI is the queue surface shared by the IPC and direct-store paths,
// so queue subcommands behave identically with or without a running daemon.
type queueAPI interface {
	Stats(ctx context.Context) (map[string]int, error)
	List(ctx context.Context, statuses []string) ([]api.JobView, error)
	Describe(ctx context.Context, id int64) (*api.JobView, error)
	Retry(ctx context.Context, ids []int64) (int64, error)
	Reclaim(ctx context.Context) (int64, error)
	Prune(ctx context.Context, olderThanDays int) (int64, error)
	Health(ctx context.Context) (api.QueueHealthView, error)
	DatabaseHealth(ctx context.Context) (api.DatabaseHealthView, error)
}

// newQueueAPI picks the adapter for whichever of client and st is non-nil.
func newQueueAPI(client *ipc.Client, st *store.Store, cfg *config.Config) queueAPI {
	if client != nil {
		return &queueIPCAdapter{client: client}
	}
	return &queueStoreAdapter{store: st, service: api.NewQueueService(st), cfg: cfg}
}

// --- IPC adapter ---

type queueIPCAdapter struct {
	client *ipc.Client
}

func (a *queueIPCAdapter) Stats(_ context.Context) (map[string]int, error) {
	resp, err := a.client.Status()
	if err != nil {
		return nil, err
	}
	return resp.QueueStats, nil
}

func (a *queueIPCAdapter) List(_ context.Context, statuses []string) ([]api.JobView, error) {
	resp, err := a.client.QueueList(statuses)
	if err != nil {
		return nil, err
	}
	return resp.Jobs, nil
}

func (a *queueIPCAdapter) Describe(_ context.Context, id int64) (*api.JobView, error) {
	resp, err := a.client.QueueDescribe(id)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "not found") {
			return nil, nil
		}
		return nil, err
	}
	if resp == nil {
		return nil, nil
	}
	return &resp.Job, nil
}

func (a *queueIPCAdapter) Retry(_ context.Context, ids []int64) (int64, error) {
	resp, err := a.client.QueueRetry(ids)
	if err != nil {
		return 0, err
	}
	return resp.Updated, nil
}

func (a *queueIPCAdapter) Reclaim(_ context.Context) (int64, error) {
	resp, err := a.client.QueueReclaim()
	if err != nil {
		return 0, err
	}
	return resp.Updated, nil
}

func (a *queueIPCAdapter) Prune(_ context.Context, olderThanDays int) (int64, error) {
	resp, err := a.client.QueuePrune(olderThanDays)
	if err != nil {
		return 0, err
	}
	return resp.Removed, nil
}

func (a *queueIPCAdapter) Health(_ context.Context) (api.QueueHealthView, error) {
	resp, err := a.client.QueueHealth()
	if err != nil {
		return api.QueueHealthView{}, err
	}
	return api.QueueHealthView{
		Total:     resp.Total,
		Pending:   resp.Pending,
		Running:   resp.Running,
		Failed:    resp.Failed,
		Completed: resp.Completed,
	}, nil
}

func (a *queueIPCAdapter) DatabaseHealth(_ context.Context) (api.DatabaseHealthView, error) {
	resp, err := a.client.DatabaseHealth()
	if err != nil {
		return api.DatabaseHealthView{}, err
	}
	return api.DatabaseHealthView{
		DBPath:           resp.DBPath,
		DatabaseExists:   resp.DatabaseExists,
		DatabaseReadable: resp.DatabaseReadable,
		SchemaVersion:    resp.SchemaVersion,
		TableExists:      resp.TableExists,
		IntegrityCheck:   resp.IntegrityCheck,
		TotalJobs:        resp.TotalJobs,
		Error:            resp.Error,
	}, nil
}

// --- Store adapter ---

type queueStoreAdapter struct {
	store   *store.Store
	service *api.QueueService
	cfg     *config.Config
}

func (a *queueStoreAdapter) Stats(ctx context.Context) (map[string]int, error) {
	return a.service.Stats(ctx)
}

func (a *queueStoreAdapter) List(ctx context.Context, statuses []string) ([]api.JobView, error) {
	var filters []store.JobStatus
	for _, s := range statuses {
		if parsed, ok := store.ParseJobStatus(s); ok {
			filters = append(filters, parsed)
		}
	}
	return a.service.List(ctx, filters...)
}

func (a *queueStoreAdapter) Describe(ctx context.Context, id int64) (*api.JobView, error) {
	return a.service.Describe(ctx, id)
}

func (a *queueStoreAdapter) Retry(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		failed, err := a.store.ListJobs(ctx, store.JobFailed)
		if err != nil {
			return 0, err
		}
		for _, job := range failed {
			ids = append(ids, job.ID)
		}
	}
	var updated int64
	for _, id := range ids {
		if err := a.store.RetryJob(ctx, id); err != nil {
			return updated, err
		}
		updated++
	}
	return updated, nil
}

func (a *queueStoreAdapter) Reclaim(ctx context.Context) (int64, error) {
	timeout := 2 * time.Minute
	if a.cfg != nil && a.cfg.Queue.HeartbeatTimeout > 0 {
		timeout = time.Duration(a.cfg.Queue.HeartbeatTimeout) * time.Second
	}
	return a.store.ReclaimStaleJobs(ctx, time.Now().UTC().Add(-timeout))
}

func (a *queueStoreAdapter) Prune(ctx context.Context, olderThanDays int) (int64, error) {
	if olderThanDays < 0 {
		olderThanDays = 0
	}
	cutoff := time.Now().UTC().Add(-time.Duration(olderThanDays) * 24 * time.Hour)
	return a.store.PruneJobs(ctx, cutoff)
}

func (a *queueStoreAdapter) Health(ctx context.Context) (api.QueueHealthView, error) {
	health, err := a.store.Health(ctx)
	if err != nil {
		return api.QueueHealthView{}, err
	}
	return api.FromQueueHealth(health), nil
}

func (a *queueStoreAdapter) DatabaseHealth(ctx context.Context) (api.DatabaseHealthView, error) {
	health, err := a.store.CheckHealth(ctx)
	view := api.FromDatabaseHealth(health)
	if err != nil && view.Error == "" {
		return view, err
	}
	return view, nil
}

// retryJobIDs validates each ID and retries the failed ones. Works
// identically for the IPC and direct-store paths.
func retryJobIDs(ctx context.Context, queue queueAPI, ids []int64) (jobRetryResult, error) {
	result := jobRetryResult{
		Items: make([]jobRetryItem, 0, len(ids)),
	}

	for _, id := range ids {
		job, err := queue.Describe(ctx, id)
		if err != nil {
			return jobRetryResult{}, err
		}
		if job == nil {
			result.Items = append(result.Items, jobRetryItem{ID: id, Outcome: jobRetryNotFound})
			continue
		}
		if parsed, ok := store.ParseJobStatus(job.Status); !ok || parsed != store.JobFailed {
			result.Items = append(result.Items, jobRetryItem{ID: id, Outcome: jobRetryNotFailed})
			continue
		}

		updated, err := queue.Retry(ctx, []int64{id})
		if err != nil {
			return jobRetryResult{}, err
		}
		if updated > 0 {
			result.UpdatedCount += updated
			result.Items = append(result.Items, jobRetryItem{ID: id, Outcome: jobRetryUpdated})
			continue
		}
		result.Items = append(result.Items, jobRetryItem{ID: id, Outcome: jobRetryNotFailed})
	}

	return result, nil
}

type jobRetryOutcome string

const (
	jobRetryUpdated   jobRetryOutcome = "retried"
	jobRetryNotFound  jobRetryOutcome = "not_found"
	jobRetryNotFailed jobRetryOutcome = "not_failed"
)

type jobRetryItem struct {
	ID      int64           `json:"id"`
	Outcome jobRetryOutcome `json:"outcome"`
}

type jobRetryResult struct {
	UpdatedCount int64          `json:"updated"`
	Items        []jobRetryItem `json:"items"`
}
