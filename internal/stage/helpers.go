package stage

import (
	"context"
	"fmt"
	"strings"

	"showrunner/internal/services"
	"showrunner/internal/store"
)

// EpisodeForJob loads the episode a pipeline job operates on. Missing rows
// return a services.ErrNotFound suitable for stage Prepare and Execute
// methods; not-found failures are permanent, so the queue parks the job
// instead of retrying it.
func EpisodeForJob(ctx context.Context, st *store.Store, job *store.Job) (*store.Episode, error) {
	if job == nil || strings.TrimSpace(job.EpisodeID) == "" {
		return nil, services.Wrap(
			services.ErrValidation, jobStage(job), "load episode",
			"Job carries no episode id; the enqueueing caller is broken", nil)
	}
	episode, err := st.GetEpisode(ctx, job.EpisodeID)
	if err != nil {
		return nil, services.Wrap(
			services.ErrTransient, jobStage(job), "load episode",
			"Failed to read episode from the database", err)
	}
	if episode == nil {
		return nil, services.Wrap(
			services.ErrNotFound, jobStage(job), "load episode",
			fmt.Sprintf("Episode %s not found", job.EpisodeID), nil)
	}
	return episode, nil
}

// SeriesForEpisode loads the series an episode belongs to, wrapping missing
// rows the same way EpisodeForJob does.
func SeriesForEpisode(ctx context.Context, st *store.Store, episode *store.Episode) (*store.Series, error) {
	series, err := st.GetSeries(ctx, episode.SeriesID)
	if err != nil {
		return nil, services.Wrap(
			services.ErrTransient, "", "load series",
			"Failed to read series from the database", err)
	}
	if series == nil {
		return nil, services.Wrap(
			services.ErrNotFound, "", "load series",
			fmt.Sprintf("Series %s not found", episode.SeriesID), nil)
	}
	return series, nil
}

// PostForJob loads the post a publish job delivers.
func PostForJob(ctx context.Context, st *store.Store, job *store.Job) (*store.Post, error) {
	if job == nil || strings.TrimSpace(job.PostID) == "" {
		return nil, services.Wrap(
			services.ErrValidation, jobStage(job), "load post",
			"Job carries no post id; the enqueueing caller is broken", nil)
	}
	post, err := st.GetPost(ctx, job.PostID)
	if err != nil {
		return nil, services.Wrap(
			services.ErrTransient, jobStage(job), "load post",
			"Failed to read post from the database", err)
	}
	if post == nil {
		return nil, services.Wrap(
			services.ErrNotFound, jobStage(job), "load post",
			fmt.Sprintf("Post %s not found", job.PostID), nil)
	}
	return post, nil
}

func jobStage(job *store.Job) string {
	if job == nil {
		return ""
	}
	return string(job.Kind)
}
