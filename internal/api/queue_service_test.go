package api_test

import (
	"context"
	"testing"
	"time"

	"showrunner/internal/api"
	"showrunner/internal/store"
	"showrunner/internal/testsupport"
)

func TestQueueServiceListAndDescribe(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	series := testsupport.NewSeries(t, st, "Queue Service Series")
	episode := testsupport.NewEpisode(t, st, series.ID, 1, time.Now().UTC())

	job, err := st.EnqueueJob(ctx, store.KindScriptGeneration, episode.ID, "", time.Now().UTC(), 3)
	if err != nil {
		t.Fatalf("enqueue job: %v", err)
	}

	svc := api.NewQueueService(st)

	jobs, err := svc.List(ctx, store.JobPending)
	if err != nil {
		t.Fatalf("list jobs: %v", err)
	}
	if len(jobs) != 1 || jobs[0].ID != job.ID {
		t.Fatalf("unexpected job list: %+v", jobs)
	}

	view, err := svc.Describe(ctx, job.ID)
	if err != nil {
		t.Fatalf("describe job: %v", err)
	}
	if view == nil || view.EpisodeID != episode.ID {
		t.Fatalf("unexpected job view: %+v", view)
	}

	missing, err := svc.Describe(ctx, job.ID+1000)
	if err != nil {
		t.Fatalf("describe missing job: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil for missing job, got %+v", missing)
	}
}

func TestQueueServiceStats(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	series := testsupport.NewSeries(t, st, "Queue Stats Series")
	episode := testsupport.NewEpisode(t, st, series.ID, 1, time.Now().UTC())
	if _, err := st.EnqueueJob(ctx, store.KindRender, episode.ID, "", time.Now().UTC(), 3); err != nil {
		t.Fatalf("enqueue job: %v", err)
	}

	svc := api.NewQueueService(st)
	stats, err := svc.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats["pending"] != 1 {
		t.Fatalf("pending = %d, want 1", stats["pending"])
	}
	if _, ok := stats["completed"]; !ok {
		t.Fatal("expected zero-filled completed count")
	}
}

func TestNewQueueServiceNilReader(t *testing.T) {
	if svc := api.NewQueueService(nil); svc != nil {
		t.Fatal("expected nil service for nil reader")
	}
}
