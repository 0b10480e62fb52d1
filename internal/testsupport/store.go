package testsupport

import (
	"context"
	"testing"
	"time"

	"showrunner/internal/config"
	"showrunner/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// NewSeries creates an active daily series for tests using the provided
// store. The series carries the preferences the pipeline stages require.
func NewSeries(t testing.TB, st *store.Store, name string) *store.Series {
	t.Helper()

	active := true
	series := &store.Series{
		WorkspaceID: "ws-test",
		Name:        name,
		ContentType: "motivation",
		ScriptPreferences: &store.ScriptPreferences{
			StoryLength: "30_40",
			Tone:        "inspiring",
		},
		VoiceLanguage: &store.VoiceLanguage{
			LanguageCode: "en",
			Gender:       "female",
			Style:        "warm",
		},
		Schedule: &store.Schedule{
			Frequency:   "daily",
			PublishTime: "09:00",
			Timezone:    "UTC",
			Active:      &active,
		},
		Status: store.SeriesActive,
	}
	if err := st.CreateSeries(context.Background(), series); err != nil {
		t.Fatalf("store.CreateSeries: %v", err)
	}
	return series
}

// NewEpisode creates a scheduled episode for tests using the provided store.
func NewEpisode(t testing.TB, st *store.Store, seriesID string, sequence int, scheduledAt time.Time) *store.Episode {
	t.Helper()

	scheduled := scheduledAt.UTC()
	episode := &store.Episode{
		SeriesID:    seriesID,
		Sequence:    sequence,
		ScheduledAt: &scheduled,
		Status:      store.EpisodeScheduled,
	}
	if err := st.CreateEpisode(context.Background(), episode); err != nil {
		t.Fatalf("store.CreateEpisode: %v", err)
	}
	return episode
}
