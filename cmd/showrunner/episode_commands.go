package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"showrunner/internal/api"
	"showrunner/internal/config"
	"showrunner/internal/publish"
	"showrunner/internal/store"
)

func newEpisodesCommand(ctx *commandContext) *cobra.Command {
	episodesCmd := &cobra.Command{
		Use:   "episodes",
		Short: "Inspect and act on episodes",
	}

	episodesCmd.AddCommand(newEpisodesListCommand(ctx))
	episodesCmd.AddCommand(newEpisodesShowCommand(ctx))
	episodesCmd.AddCommand(newEpisodesApproveCommand(ctx))
	episodesCmd.AddCommand(newEpisodesPublishCommand(ctx))
	episodesCmd.AddCommand(newEpisodesRetryCommand(ctx))

	return episodesCmd
}

func newEpisodesListCommand(ctx *commandContext) *cobra.Command {
	var seriesID string
	var listStatuses []string
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List episodes",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			var statuses []store.EpisodeStatus
			for _, raw := range listStatuses {
				status, ok := store.ParseEpisodeStatus(strings.TrimSpace(raw))
				if !ok {
					return fmt.Errorf("invalid episode status %q", raw)
				}
				statuses = append(statuses, status)
			}
			episodes, err := st.ListEpisodes(cmd.Context(), strings.TrimSpace(seriesID), statuses...)
			if err != nil {
				return err
			}
			views := api.FromEpisodes(episodes)
			if jsonOut {
				return writeJSON(cmd, map[string]any{"episodes": views})
			}
			rows := buildEpisodeRows(views)
			if len(rows) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No episodes found")
				return nil
			}
			table := renderTable(
				[]string{"ID", "Seq", "Status", "Scheduled", "Video", "Error"},
				rows,
				[]columnAlignment{alignLeft, alignRight, alignLeft, alignLeft, alignLeft, alignLeft},
			)
			fmt.Fprintln(cmd.OutOrStdout(), table)
			return nil
		},
	}

	cmd.Flags().StringVar(&seriesID, "series", "", "Only episodes of this series")
	cmd.Flags().StringSliceVarP(&listStatuses, "status", "s", nil, "Filter by episode status (repeatable)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON instead of a table")
	return cmd
}

func newEpisodesShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "show <episode-id>",
		Short: "Show one episode with its posts and queue jobs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			episode, err := loadEpisodeArg(cmd, st, args[0])
			if err != nil {
				return err
			}
			posts, err := st.ListPostsForEpisode(cmd.Context(), episode.ID)
			if err != nil {
				return err
			}
			jobs, err := st.ListJobsForEpisode(cmd.Context(), episode.ID)
			if err != nil {
				return err
			}
			platforms, err := accountPlatforms(cmd, st, posts)
			if err != nil {
				return err
			}

			view := api.FromEpisode(episode)
			postViews := api.FromPosts(posts, platforms)
			jobViews := api.FromJobs(jobs)
			if jsonOut {
				return writeJSON(cmd, map[string]any{
					"episode": view,
					"posts":   postViews,
					"jobs":    jobViews,
				})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Episode:      %s\n", view.ID)
			fmt.Fprintf(out, "Series:       %s\n", view.SeriesID)
			fmt.Fprintf(out, "Sequence:     %d\n", view.Sequence)
			fmt.Fprintf(out, "Status:       %s\n", formatStatusLabel(view.Status))
			fmt.Fprintf(out, "Scheduled:    %s\n", formatDisplayTime(view.ScheduledAt))
			fmt.Fprintf(out, "Script:       %s\n", orDash(view.ScriptID))
			fmt.Fprintf(out, "Video asset:  %s\n", orDash(view.VideoAssetID))
			fmt.Fprintf(out, "Preview URL:  %s\n", orDash(view.PreviewURL))
			fmt.Fprintf(out, "Credits used: %.1f\n", view.CreditsUsed)
			if view.ErrorMessage != "" {
				fmt.Fprintf(out, "Last error:   [%s] %s\n", view.ErrorStep, view.ErrorMessage)
			}

			if len(postViews) > 0 {
				fmt.Fprintln(out, "\nPosts:")
				table := renderTable(
					[]string{"ID", "Platform", "Status", "Posted At", "Error"},
					buildPostRows(postViews),
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
				)
				fmt.Fprintln(out, table)
			}
			if len(jobViews) > 0 {
				fmt.Fprintln(out, "\nJobs:")
				table := renderTable(
					[]string{"ID", "Kind", "Episode", "Status", "Attempts", "Run At"},
					buildJobRows(jobViews),
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
				)
				fmt.Fprintln(out, table)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON instead of text")
	return cmd
}

// newEpisodesApproveCommand is the manual review gate. Approval requires a
// finished video; an episode parked in ready_for_review between the script
// and media stages has nothing to publish yet. Approving also fans the
// episode out to its target accounts unless auto-post already did.
func newEpisodesApproveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "approve <episode-id>",
		Short: "Approve a reviewed episode and enqueue its posts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			st, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			episode, err := loadEpisodeArg(cmd, st, args[0])
			if err != nil {
				return err
			}
			if episode.Status != store.EpisodeReadyForReview {
				return fmt.Errorf("episode %s is not awaiting review (status %s)", episode.ID, episode.Status)
			}
			if episode.VideoAssetID == "" {
				return fmt.Errorf("episode %s has no rendered video yet", episode.ID)
			}

			episode.Status = store.EpisodeApproved
			if err := st.UpdateEpisode(cmd.Context(), episode); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Episode %d approved\n", episode.Sequence)

			existing, err := st.ListPostsForEpisode(cmd.Context(), episode.ID)
			if err != nil {
				return err
			}
			if len(existing) > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "Episode already has %d posts; not enqueueing more\n", len(existing))
				return nil
			}
			return fanoutEpisode(cmd, st, cfg, episode)
		},
	}
}

// newEpisodesPublishCommand re-runs publish fan-out for an approved episode,
// covering series where auto-post is off or accounts were connected after
// approval.
func newEpisodesPublishCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "publish <episode-id>",
		Short: "Enqueue posts for an approved episode",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			st, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			episode, err := loadEpisodeArg(cmd, st, args[0])
			if err != nil {
				return err
			}
			if episode.Status != store.EpisodeApproved {
				return fmt.Errorf("episode %s is not approved (status %s); approve it first with `showrunner episodes approve`", episode.ID, episode.Status)
			}

			existing, err := st.ListPostsForEpisode(cmd.Context(), episode.ID)
			if err != nil {
				return err
			}
			if len(existing) > 0 {
				return fmt.Errorf("episode %s already has %d posts; retry failed publish jobs with `showrunner queue retry`", episode.ID, len(existing))
			}
			return fanoutEpisode(cmd, st, cfg, episode)
		},
	}
}

// newEpisodesRetryCommand recovers a failed episode. Failed queue jobs are
// reset in place when they exist; when they were pruned, the broken stage is
// enqueued fresh. Stages accept failed episodes, so the row state needs no
// massaging here.
func newEpisodesRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <episode-id>",
		Short: "Retry a failed episode from the stage that broke it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			st, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			episode, err := loadEpisodeArg(cmd, st, args[0])
			if err != nil {
				return err
			}
			if episode.Status != store.EpisodeFailed {
				return fmt.Errorf("episode %s is not failed (status %s)", episode.ID, episode.Status)
			}

			jobs, err := st.ListJobsForEpisode(cmd.Context(), episode.ID)
			if err != nil {
				return err
			}
			retried := 0
			for _, job := range jobs {
				if job.Status != store.JobFailed {
					continue
				}
				if err := st.RetryJob(cmd.Context(), job.ID); err != nil {
					return err
				}
				retried++
			}
			if retried > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "Reset %d failed jobs for episode %d\n", retried, episode.Sequence)
				return nil
			}

			kind := episodeRetryKind(episode)
			job, err := st.EnqueueJob(cmd.Context(), kind, episode.ID, "", time.Now().UTC(), cfg.Queue.MaxAttempts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Enqueued %s job %d for episode %d\n", kind, job.ID, episode.Sequence)
			return nil
		},
	}
}

// episodeRetryKind picks the stage to re-run: the recorded failing step when
// it names a pipeline stage, otherwise the first stage whose output is
// missing. Publish failures park on the post, never the episode, so publish
// is not a candidate here.
func episodeRetryKind(episode *store.Episode) store.JobKind {
	if episode.ErrorInfo != nil {
		if kind, ok := store.ParseJobKind(episode.ErrorInfo.Step); ok && kind != store.KindPublish {
			return kind
		}
	}
	switch {
	case episode.ScriptID == "":
		return store.KindScriptGeneration
	case episode.Manifest == nil:
		return store.KindMediaGeneration
	default:
		return store.KindRender
	}
}

// fanoutEpisode creates the post rows and publish jobs for an episode and
// reports what got enqueued.
func fanoutEpisode(cmd *cobra.Command, st *store.Store, cfg *config.Config, episode *store.Episode) error {
	series, err := st.GetSeries(cmd.Context(), episode.SeriesID)
	if err != nil {
		return err
	}
	if series == nil {
		return fmt.Errorf("series %s not found", episode.SeriesID)
	}

	posts, err := publish.Fanout(cmd.Context(), st, cfg, episode, series)
	if err != nil {
		return err
	}
	if len(posts) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No connected accounts to publish to; connect one and run `showrunner episodes publish`")
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Enqueued %d publish jobs for episode %d\n", len(posts), episode.Sequence)
	return nil
}

func loadEpisodeArg(cmd *cobra.Command, st *store.Store, arg string) (*store.Episode, error) {
	id := strings.TrimSpace(arg)
	episode, err := st.GetEpisode(cmd.Context(), id)
	if err != nil {
		return nil, err
	}
	if episode == nil {
		return nil, fmt.Errorf("episode %s not found", id)
	}
	return episode, nil
}

// accountPlatforms resolves the platform name per account referenced by the
// given posts, tolerating accounts that were deleted since posting.
func accountPlatforms(cmd *cobra.Command, st *store.Store, posts []*store.Post) (map[string]string, error) {
	if len(posts) == 0 {
		return nil, nil
	}
	platforms := make(map[string]string, len(posts))
	for _, post := range posts {
		if _, seen := platforms[post.AccountID]; seen {
			continue
		}
		account, err := st.GetAccount(cmd.Context(), post.AccountID)
		if err != nil {
			return nil, err
		}
		if account != nil {
			platforms[post.AccountID] = account.Platform
		}
	}
	return platforms, nil
}

func orDash(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}
