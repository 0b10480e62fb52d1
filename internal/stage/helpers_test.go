package stage_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"showrunner/internal/services"
	"showrunner/internal/stage"
	"showrunner/internal/store"
	"showrunner/internal/testsupport"
)

func TestEpisodeForJobLoadsRow(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	series := testsupport.NewSeries(t, st, "Helpers")
	episode := testsupport.NewEpisode(t, st, series.ID, 1, time.Now().Add(time.Hour))

	job, err := st.EnqueueJob(context.Background(), store.KindScriptGeneration, episode.ID, "", time.Now(), 3)
	if err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}

	loaded, err := stage.EpisodeForJob(context.Background(), st, job)
	if err != nil {
		t.Fatalf("EpisodeForJob: %v", err)
	}
	if loaded.ID != episode.ID {
		t.Fatalf("loaded episode %s, want %s", loaded.ID, episode.ID)
	}
}

func TestEpisodeForJobMissingRow(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	job := &store.Job{Kind: store.KindScriptGeneration, EpisodeID: "nonexistent"}
	_, err := stage.EpisodeForJob(context.Background(), st, job)
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if services.IsRetryable(err) {
		t.Fatal("missing episode should not be retryable")
	}
}

func TestEpisodeForJobEmptyID(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	job := &store.Job{Kind: store.KindRender}
	_, err := stage.EpisodeForJob(context.Background(), st, job)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestSeriesForEpisode(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	series := testsupport.NewSeries(t, st, "Helpers")
	episode := testsupport.NewEpisode(t, st, series.ID, 1, time.Now().Add(time.Hour))

	loaded, err := stage.SeriesForEpisode(context.Background(), st, episode)
	if err != nil {
		t.Fatalf("SeriesForEpisode: %v", err)
	}
	if loaded.ID != series.ID {
		t.Fatalf("loaded series %s, want %s", loaded.ID, series.ID)
	}

	orphan := &store.Episode{SeriesID: "nonexistent"}
	if _, err := stage.SeriesForEpisode(context.Background(), st, orphan); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPostForJob(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	series := testsupport.NewSeries(t, st, "Helpers")
	episode := testsupport.NewEpisode(t, st, series.ID, 1, time.Now().Add(time.Hour))

	post := &store.Post{EpisodeID: episode.ID, AccountID: "acct-1", Status: store.PostPending}
	if err := st.CreatePost(context.Background(), post); err != nil {
		t.Fatalf("CreatePost: %v", err)
	}

	job, err := st.EnqueueJob(context.Background(), store.KindPublish, episode.ID, post.ID, time.Now(), 3)
	if err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}
	loaded, err := stage.PostForJob(context.Background(), st, job)
	if err != nil {
		t.Fatalf("PostForJob: %v", err)
	}
	if loaded.ID != post.ID {
		t.Fatalf("loaded post %s, want %s", loaded.ID, post.ID)
	}

	missing := &store.Job{Kind: store.KindPublish, PostID: "nonexistent"}
	if _, err := stage.PostForJob(context.Background(), st, missing); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
