package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"showrunner/internal/ipc"
	"showrunner/internal/store"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the job queue",
	}

	queueCmd.AddCommand(newQueueStatsCommand(ctx))
	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueRetryCommand(ctx))
	queueCmd.AddCommand(newQueueReclaimCommand(ctx))
	queueCmd.AddCommand(newQueuePruneCommand(ctx))
	queueCmd.AddCommand(newQueueHealthSubcommand(ctx))

	return queueCmd
}

func newQueueStatsCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show job counts by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(client *ipc.Client, st *store.Store) error {
				queue := newQueueAPI(client, st, ctx.configValue())
				stats, err := queue.Stats(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, stats)
				}
				rows := buildQueueStatusRows(stats)
				if len(rows) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				table := renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight})
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON instead of a table")
	return cmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var listStatuses []string
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queue jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(client *ipc.Client, st *store.Store) error {
				queue := newQueueAPI(client, st, ctx.configValue())
				jobs, err := queue.List(cmd.Context(), listStatuses)
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, map[string]any{"jobs": jobs})
				}
				rows := buildJobRows(jobs)
				if len(rows) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				table := renderTable(
					[]string{"ID", "Kind", "Episode", "Status", "Attempts", "Run At"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
				)
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&listStatuses, "status", "s", nil, "Filter by job status (repeatable)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON instead of a table")
	return cmd
}

func newQueueRetryCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "retry [job-id...]",
		Short: "Retry failed jobs",
		Long:  "Retry the given failed jobs, or every failed job when no IDs are passed.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parsePositiveIDs(args)
			if err != nil {
				return err
			}
			return ctx.withStore(func(client *ipc.Client, st *store.Store) error {
				queue := newQueueAPI(client, st, ctx.configValue())

				if len(ids) == 0 {
					updated, err := queue.Retry(cmd.Context(), nil)
					if err != nil {
						return err
					}
					if jsonOut {
						return writeJSON(cmd, map[string]any{"updated": updated})
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Retried %d failed jobs\n", updated)
					return nil
				}

				result, err := retryJobIDs(cmd.Context(), queue, ids)
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, result)
				}
				out := cmd.OutOrStdout()
				for _, item := range result.Items {
					switch item.Outcome {
					case jobRetryNotFound:
						fmt.Fprintf(out, "Job %d not found\n", item.ID)
					case jobRetryNotFailed:
						fmt.Fprintf(out, "Job %d is not in a retryable state (only failed jobs can be retried)\n", item.ID)
					case jobRetryUpdated:
						fmt.Fprintf(out, "Job %d reset for retry\n", item.ID)
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON instead of text")
	return cmd
}

func newQueueReclaimCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reclaim",
		Short: "Return jobs with expired leases to the pending pool",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(client *ipc.Client, st *store.Store) error {
				queue := newQueueAPI(client, st, ctx.configValue())
				updated, err := queue.Reclaim(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Reclaimed %d stale jobs\n", updated)
				return nil
			})
		},
	}
}

func newQueuePruneCommand(ctx *commandContext) *cobra.Command {
	var olderThanDays int

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete old completed and failed jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThanDays < 0 {
				return fmt.Errorf("invalid prune window %d days", olderThanDays)
			}
			return ctx.withStore(func(client *ipc.Client, st *store.Store) error {
				queue := newQueueAPI(client, st, ctx.configValue())
				removed, err := queue.Prune(cmd.Context(), olderThanDays)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d jobs\n", removed)
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&olderThanDays, "older-than", 30, "Prune terminal jobs older than this many days")
	return cmd
}

func newQueueHealthSubcommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Show aggregate queue health",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(client *ipc.Client, st *store.Store) error {
				queue := newQueueAPI(client, st, ctx.configValue())
				health, err := queue.Health(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, health)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Total jobs:     %d\n", health.Total)
				fmt.Fprintf(out, "Pending:        %d\n", health.Pending)
				fmt.Fprintf(out, "Running:        %d\n", health.Running)
				fmt.Fprintf(out, "Failed:         %d\n", health.Failed)
				fmt.Fprintf(out, "Completed:      %d\n", health.Completed)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON instead of text")
	return cmd
}
