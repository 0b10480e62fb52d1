package main

import (
	"context"
	"testing"

	"showrunner/internal/store"
	"showrunner/internal/testsupport"
)

func TestSeriesLaunchPauseResume(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()

	series := testsupport.NewSeries(t, env.store, "Morning Stoic")
	series.Status = store.SeriesDraft
	if err := env.store.UpdateSeries(ctx, series); err != nil {
		t.Fatalf("update series: %v", err)
	}

	out, _, err := runCLI(t, []string{"series", "launch", series.ID}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("series launch: %v", err)
	}
	requireContains(t, out, `Series "Morning Stoic" launched`)
	requireContains(t, out, "Estimated credits:")

	episodes, err := env.store.ListEpisodes(ctx, series.ID)
	if err != nil {
		t.Fatalf("list episodes: %v", err)
	}
	if len(episodes) == 0 {
		t.Fatal("expected launch to book episodes")
	}
	if episodes[0].Sequence != 1 {
		t.Fatalf("expected first booked sequence 1, got %d", episodes[0].Sequence)
	}

	out, _, err = runCLI(t, []string{"series", "list"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("series list: %v", err)
	}
	requireContains(t, out, "Morning Stoic")
	requireContains(t, out, "Active")

	out, _, err = runCLI(t, []string{"series", "pause", series.ID}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("series pause: %v", err)
	}
	requireContains(t, out, `Series "Morning Stoic" paused`)

	out, _, err = runCLI(t, []string{"series", "resume", series.ID}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("series resume: %v", err)
	}
	requireContains(t, out, `Series "Morning Stoic" resumed`)

	reloaded, err := env.store.GetSeries(ctx, series.ID)
	if err != nil {
		t.Fatalf("get series: %v", err)
	}
	if reloaded.Status != store.SeriesActive {
		t.Fatalf("expected resumed series active, got %s", reloaded.Status)
	}
}

func TestSeriesLaunchRejectsActiveSeries(t *testing.T) {
	env := setupCLITestEnv(t)

	series := testsupport.NewSeries(t, env.store, "Already Running")

	_, _, err := runCLI(t, []string{"series", "launch", series.ID}, env.socketPath, env.configPath)
	if err == nil {
		t.Fatal("expected launch of an active series to fail")
	}
	requireContains(t, err.Error(), "cannot launch")
}

func TestSeriesListEmpty(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"series", "list"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("series list: %v", err)
	}
	requireContains(t, out, "No series found")
}
