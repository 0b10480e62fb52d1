package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"showrunner/internal/api"
	"showrunner/internal/logging"
	"showrunner/internal/planner"
	"showrunner/internal/store"
)

// Series commands work against the store directly: planning data is safe to
// read and mutate while the daemon runs, and launch only enqueues jobs the
// daemon picks up on its next poll.
func newSeriesCommand(ctx *commandContext) *cobra.Command {
	seriesCmd := &cobra.Command{
		Use:   "series",
		Short: "Inspect and control series",
	}

	seriesCmd.AddCommand(newSeriesListCommand(ctx))
	seriesCmd.AddCommand(newSeriesLaunchCommand(ctx))
	seriesCmd.AddCommand(newSeriesPauseCommand(ctx))
	seriesCmd.AddCommand(newSeriesResumeCommand(ctx))

	return seriesCmd
}

func newSeriesListCommand(ctx *commandContext) *cobra.Command {
	var listStatuses []string
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List series",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			var statuses []store.SeriesStatus
			for _, status := range listStatuses {
				statuses = append(statuses, store.SeriesStatus(strings.ToLower(strings.TrimSpace(status))))
			}
			list, err := st.ListSeries(cmd.Context(), "", statuses...)
			if err != nil {
				return err
			}
			views := api.FromSeriesList(list)
			if jsonOut {
				return writeJSON(cmd, map[string]any{"series": views})
			}
			rows := buildSeriesRows(views)
			if len(rows) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No series found")
				return nil
			}
			table := renderTable(
				[]string{"ID", "Name", "Status", "Schedule", "Timezone", "Auto-post", "Credits/Ep"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
			)
			fmt.Fprintln(cmd.OutOrStdout(), table)
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&listStatuses, "status", "s", nil, "Filter by series status (repeatable)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON instead of a table")
	return cmd
}

func newSeriesLaunchCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "launch <series-id>",
		Short: "Validate a series and book its first batch of episodes",
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

			result, err := planner.New(cfg, st, logging.NewNop()).Launch(cmd.Context(), strings.TrimSpace(args[0]))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Series %q launched\n", result.Series.Name)
			if len(result.Upcoming) > 0 {
				fmt.Fprintln(out, "Upcoming episodes:")
				rows := make([][]string, 0, len(result.Upcoming))
				for _, episode := range result.Upcoming {
					scheduled := ""
					if episode.ScheduledAt != nil {
						scheduled = episode.ScheduledAt.UTC().Format("2006-01-02 15:04")
					}
					rows = append(rows, []string{fmt.Sprintf("%d", episode.Sequence), scheduled})
				}
				table := renderTable(
					[]string{"Episode", "Scheduled (UTC)"},
					rows,
					[]columnAlignment{alignRight, alignLeft},
				)
				fmt.Fprintln(out, table)
			}
			fmt.Fprintf(out, "Estimated credits: %.1f per episode (about %.1f per month)\n",
				result.Estimate.PerEpisode, result.Estimate.EstimatedMonthly)
			return nil
		},
	}
}

func newSeriesPauseCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "pause <series-id>",
		Short: "Pause an active series",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			series, err := loadSeriesArg(cmd, st, args[0])
			if err != nil {
				return err
			}
			if series.Status != store.SeriesActive {
				return fmt.Errorf("series %s is not active (status %s)", series.ID, series.Status)
			}
			series.Status = store.SeriesPaused
			if err := st.UpdateSeries(cmd.Context(), series); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Series %q paused\n", series.Name)
			return nil
		},
	}
}

// newSeriesResumeCommand reactivates a paused series and immediately tops up
// its schedule. A top-up continues sequence numbering and skips dates that
// already have an episode, unlike a fresh launch.
func newSeriesResumeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "resume <series-id>",
		Short: "Resume a paused series and book its upcoming episodes",
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

			series, err := loadSeriesArg(cmd, st, args[0])
			if err != nil {
				return err
			}
			if series.Status != store.SeriesPaused {
				return fmt.Errorf("series %s is not paused (status %s)", series.ID, series.Status)
			}
			series.Status = store.SeriesActive
			if err := st.UpdateSeries(cmd.Context(), series); err != nil {
				return err
			}

			created, err := planner.New(cfg, st, logging.NewNop()).TopUp(cmd.Context(), series)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Series %q resumed; booked %d upcoming episodes\n", series.Name, created)
			return nil
		},
	}
}

func loadSeriesArg(cmd *cobra.Command, st *store.Store, arg string) (*store.Series, error) {
	id := strings.TrimSpace(arg)
	series, err := st.GetSeries(cmd.Context(), id)
	if err != nil {
		return nil, err
	}
	if series == nil {
		return nil, fmt.Errorf("series %s not found", id)
	}
	return series, nil
}
