package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"showrunner/internal/ipc"
	"showrunner/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var follow bool
	var lines int

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Display daemon logs",
		RunE: func(cmd *cobra.Command, args []string) error {
			initialLimit := lines
			if initialLimit < 0 {
				initialLimit = 0
			}
			initialOffset := int64(-1)
			if initialLimit == 0 {
				initialOffset = 0
			}

			client, dialErr := ctx.dialClient()
			if dialErr != nil {
				return tailLocalLog(cmd, ctx, initialOffset, initialLimit, follow)
			}
			defer client.Close()

			cmdCtx := cmd.Context()
			offset := initialOffset
			limit := initialLimit
			waitMillis := 1000
			printed := false

			for {
				req := ipc.LogTailRequest{
					Offset:     offset,
					Limit:      limit,
					Follow:     follow,
					WaitMillis: waitMillis,
				}
				resp, err := client.LogTail(req)
				if err != nil {
					return fmt.Errorf("tail logs: %w", err)
				}
				if resp == nil {
					return errors.New("log tail response missing")
				}
				for _, line := range resp.Lines {
					fmt.Fprintln(cmd.OutOrStdout(), line)
					printed = true
				}
				offset = resp.Offset
				limit = 0
				if !follow {
					if !printed {
						fmt.Fprintln(cmd.OutOrStdout(), "No log entries available")
					}
					return nil
				}
				select {
				case <-cmdCtx.Done():
					return nil
				default:
				}
			}
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Follow log output")
	cmd.Flags().IntVarP(&lines, "lines", "n", 10, "Number of lines to show (0 for all)")
	return cmd
}

// tailLocalLog reads the current-log pointer directly when the daemon is not
// reachable over IPC, so logs stay inspectable after a crash or stop.
func tailLocalLog(cmd *cobra.Command, ctx *commandContext, offset int64, limit int, follow bool) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	logPath := filepath.Join(cfg.Paths.LogDir, "showrunner.log")

	printed := false
	for {
		result, err := logs.Tail(cmd.Context(), logPath, logs.TailOptions{
			Offset: offset,
			Limit:  limit,
			Follow: follow,
			Wait:   time.Second,
		})
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("tail logs: %w", err)
		}
		for _, line := range result.Lines {
			fmt.Fprintln(cmd.OutOrStdout(), line)
			printed = true
		}
		offset = result.Offset
		limit = 0
		if !follow {
			if !printed {
				fmt.Fprintln(cmd.OutOrStdout(), "No log entries available")
			}
			return nil
		}
		select {
		case <-cmd.Context().Done():
			return nil
		default:
		}
	}
}
