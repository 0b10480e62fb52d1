package main

import (
	"context"
	"testing"
	"time"

	"showrunner/internal/store"
	"showrunner/internal/testsupport"
)

func TestEpisodesApproveAndPublish(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()

	series := testsupport.NewSeries(t, env.store, "Review Series")
	episode := testsupport.NewEpisode(t, env.store, series.ID, 1, time.Now().UTC())

	_, _, err := runCLI(t, []string{"episodes", "approve", episode.ID}, env.socketPath, env.configPath)
	if err == nil {
		t.Fatal("expected approve of a scheduled episode to fail")
	}
	requireContains(t, err.Error(), "not awaiting review")

	episode.Status = store.EpisodeReadyForReview
	episode.VideoAssetID = "asset-video-1"
	if err := env.store.UpdateEpisode(ctx, episode); err != nil {
		t.Fatalf("update episode: %v", err)
	}
	account := &store.Account{
		WorkspaceID: series.WorkspaceID,
		Platform:    "tiktok",
		DisplayName: "Test TikTok",
		Status:      store.AccountConnected,
	}
	if err := env.store.CreateAccount(ctx, account); err != nil {
		t.Fatalf("create account: %v", err)
	}

	out, _, err := runCLI(t, []string{"episodes", "approve", episode.ID}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("episodes approve: %v", err)
	}
	requireContains(t, out, "Episode 1 approved")
	requireContains(t, out, "Enqueued 1 publish jobs")

	posts, err := env.store.ListPostsForEpisode(ctx, episode.ID)
	if err != nil {
		t.Fatalf("list posts: %v", err)
	}
	if len(posts) != 1 {
		t.Fatalf("expected one post after approval, got %d", len(posts))
	}
	if posts[0].AccountID != account.ID {
		t.Fatalf("post targets account %s, want %s", posts[0].AccountID, account.ID)
	}

	_, _, err = runCLI(t, []string{"episodes", "publish", episode.ID}, env.socketPath, env.configPath)
	if err == nil {
		t.Fatal("expected duplicate publish to fail")
	}
	requireContains(t, err.Error(), "already has 1 posts")
}

func TestEpisodesApproveWithoutVideo(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()

	series := testsupport.NewSeries(t, env.store, "Half Done")
	episode := testsupport.NewEpisode(t, env.store, series.ID, 1, time.Now().UTC())
	episode.Status = store.EpisodeReadyForReview
	if err := env.store.UpdateEpisode(ctx, episode); err != nil {
		t.Fatalf("update episode: %v", err)
	}

	_, _, err := runCLI(t, []string{"episodes", "approve", episode.ID}, env.socketPath, env.configPath)
	if err == nil {
		t.Fatal("expected approve without a rendered video to fail")
	}
	requireContains(t, err.Error(), "no rendered video")
}

func TestEpisodesRetry(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()

	series := testsupport.NewSeries(t, env.store, "Flaky Series")
	episode := testsupport.NewEpisode(t, env.store, series.ID, 1, time.Now().UTC())
	episode.Status = store.EpisodeFailed
	episode.ErrorInfo = &store.ErrorPayload{Step: string(store.KindMediaGeneration), Message: "image synthesis timed out"}
	if err := env.store.UpdateEpisode(ctx, episode); err != nil {
		t.Fatalf("update episode: %v", err)
	}

	out, _, err := runCLI(t, []string{"episodes", "retry", episode.ID}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("episodes retry: %v", err)
	}
	requireContains(t, out, "Enqueued media_generation job")

	jobs, err := env.store.ListJobsForEpisode(ctx, episode.ID)
	if err != nil {
		t.Fatalf("list jobs: %v", err)
	}
	if len(jobs) != 1 || jobs[0].Kind != store.KindMediaGeneration {
		t.Fatalf("expected one media_generation job, got %+v", jobs)
	}
}

func TestEpisodesRetryResetsFailedJobs(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()

	series := testsupport.NewSeries(t, env.store, "Parked Series")
	episode := testsupport.NewEpisode(t, env.store, series.ID, 1, time.Now().UTC())
	episode.Status = store.EpisodeFailed
	if err := env.store.UpdateEpisode(ctx, episode); err != nil {
		t.Fatalf("update episode: %v", err)
	}
	if _, err := env.store.EnqueueJob(ctx, store.KindScriptGeneration, episode.ID, "", time.Now().UTC().Add(-time.Minute), 3); err != nil {
		t.Fatalf("enqueue job: %v", err)
	}
	claimed, err := env.store.ClaimNextJob(ctx, store.KindScriptGeneration)
	if err != nil || claimed == nil {
		t.Fatalf("claim job: %v", err)
	}
	if err := env.store.FailJob(ctx, claimed, "model unavailable", false); err != nil {
		t.Fatalf("fail job: %v", err)
	}

	out, _, err := runCLI(t, []string{"episodes", "retry", episode.ID}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("episodes retry: %v", err)
	}
	requireContains(t, out, "Reset 1 failed jobs")

	refreshed, err := env.store.GetJob(ctx, claimed.ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if refreshed.Status != store.JobPending {
		t.Fatalf("expected reset job pending, got %s", refreshed.Status)
	}
}

func TestEpisodesListAndShow(t *testing.T) {
	env := setupCLITestEnv(t)

	series := testsupport.NewSeries(t, env.store, "Catalog Series")
	episode := testsupport.NewEpisode(t, env.store, series.ID, 3, time.Now().UTC())

	out, _, err := runCLI(t, []string{"episodes", "list", "--series", series.ID}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("episodes list: %v", err)
	}
	requireContains(t, out, "Scheduled")
	requireContains(t, out, "3")

	out, _, err = runCLI(t, []string{"episodes", "list", "--status", "posted"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("episodes list filtered: %v", err)
	}
	requireContains(t, out, "No episodes found")

	out, _, err = runCLI(t, []string{"episodes", "show", episode.ID}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("episodes show: %v", err)
	}
	requireContains(t, out, episode.ID)
	requireContains(t, out, "Sequence:     3")
}
