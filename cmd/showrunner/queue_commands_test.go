package main

import (
	"context"
	"fmt"
	"testing"
	"time"

	"showrunner/internal/store"
	"showrunner/internal/testsupport"
)

func TestQueueStatsListAndRetry(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()

	series := testsupport.NewSeries(t, env.store, "Queue Series")
	episode := testsupport.NewEpisode(t, env.store, series.ID, 1, time.Now().UTC())

	if _, err := env.store.EnqueueJob(ctx, store.KindScriptGeneration, episode.ID, "", time.Now().UTC().Add(-time.Minute), 3); err != nil {
		t.Fatalf("enqueue job: %v", err)
	}
	claimed, err := env.store.ClaimNextJob(ctx, store.KindScriptGeneration)
	if err != nil {
		t.Fatalf("claim job: %v", err)
	}
	if claimed == nil {
		t.Fatal("expected a claimable job")
	}
	if err := env.store.FailJob(ctx, claimed, "synthesis exploded", false); err != nil {
		t.Fatalf("fail job: %v", err)
	}

	out, _, err := runCLI(t, []string{"queue", "stats"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue stats: %v", err)
	}
	requireContains(t, out, "Failed")

	out, _, err = runCLI(t, []string{"queue", "list"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue list: %v", err)
	}
	requireContains(t, out, "Script Generation")
	requireContains(t, out, "1/3")

	out, _, err = runCLI(t, []string{"queue", "list", "--json"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue list --json: %v", err)
	}
	requireContains(t, out, `"jobs"`)

	out, _, err = runCLI(t, []string{"queue", "retry", fmt.Sprintf("%d", claimed.ID)}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue retry: %v", err)
	}
	requireContains(t, out, fmt.Sprintf("Job %d reset for retry", claimed.ID))

	refreshed, err := env.store.GetJob(ctx, claimed.ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if refreshed.Status != store.JobPending {
		t.Fatalf("expected retried job pending, got %s", refreshed.Status)
	}
}

func TestQueueRetryRejectsNonFailedJobs(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()

	series := testsupport.NewSeries(t, env.store, "Retry Series")
	episode := testsupport.NewEpisode(t, env.store, series.ID, 1, time.Now().UTC())
	job, err := env.store.EnqueueJob(ctx, store.KindRender, episode.ID, "", time.Now().UTC(), 3)
	if err != nil {
		t.Fatalf("enqueue job: %v", err)
	}

	out, _, err := runCLI(t, []string{"queue", "retry", fmt.Sprintf("%d", job.ID)}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue retry: %v", err)
	}
	requireContains(t, out, fmt.Sprintf("Job %d is not in a retryable state", job.ID))

	out, _, err = runCLI(t, []string{"queue", "retry", "999999"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue retry missing: %v", err)
	}
	requireContains(t, out, "Job 999999 not found")

	_, _, err = runCLI(t, []string{"queue", "retry", "bogus"}, env.socketPath, env.configPath)
	if err == nil {
		t.Fatal("expected error for non-numeric job id")
	}
}

func TestQueueMaintenanceCommands(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"queue", "health"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue health: %v", err)
	}
	requireContains(t, out, "Total")

	out, _, err = runCLI(t, []string{"queue", "reclaim"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue reclaim: %v", err)
	}
	requireContains(t, out, "Reclaimed 0 stale jobs")

	out, _, err = runCLI(t, []string{"queue", "prune"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue prune: %v", err)
	}
	requireContains(t, out, "Pruned 0 jobs")

	out, _, err = runCLI(t, []string{"queue", "stats"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue stats: %v", err)
	}
	requireContains(t, out, "Queue is empty")
}
