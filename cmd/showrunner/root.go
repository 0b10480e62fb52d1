package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var socketFlag string
	var configFlag string
	ctx := newCommandContext(&socketFlag, &configFlag)

	root := &cobra.Command{
		Use:           "showrunner",
		Short:         "Autonomous short-video production pipeline",
		Long:          "Showrunner schedules episodes for configured series, generates scripts and media, renders vertical videos, and publishes them to connected social accounts.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	root.PersistentFlags().StringVar(&socketFlag, "socket", "", "Path to the daemon control socket")
	root.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Path to the configuration file")

	root.AddCommand(newDaemonCommand(ctx))
	for _, cmd := range newDaemonCommands(ctx) {
		root.AddCommand(cmd)
	}
	root.AddCommand(newQueueCommand(ctx))
	root.AddCommand(newSeriesCommand(ctx))
	root.AddCommand(newEpisodesCommand(ctx))
	root.AddCommand(newLogsCommand(ctx))
	root.AddCommand(newHealthCommand(ctx))
	root.AddCommand(newDoctorCommand(ctx))
	root.AddCommand(newVoicesCommand())
	root.AddCommand(newTestNotifyCommand(ctx))
	root.AddCommand(newConfigCommand(ctx))
	root.AddCommand(newVersionCommand())

	return root
}
