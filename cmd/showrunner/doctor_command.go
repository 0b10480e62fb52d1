package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"showrunner/internal/api"
	"showrunner/internal/daemonctl"
	"showrunner/internal/preflight"
)

// newDoctorCommand runs every check that works without a daemon: directory
// access, OpenAI reachability, the platform token key, notifications, and
// the external binaries the render stage shells out to. Useful on a fresh
// install before anything has been started.
func newDoctorCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Diagnose configuration, credentials, and system dependencies",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			results := preflight.RunAll(cmd.Context(), cfg)
			dependencies := daemonctl.ResolveDependencies(cfg)
			summary := daemonctl.BuildDependencySummary(dependencies)

			checks := make([]api.StatusLine, 0, len(results))
			failed := 0
			for _, result := range results {
				severity := "ok"
				if !result.Passed {
					severity = "error"
					failed++
				}
				checks = append(checks, api.StatusLine{
					Label:    result.Name,
					Severity: severity,
					Detail:   result.Detail,
				})
			}
			failed += summary.MissingRequired

			if jsonOut {
				return writeJSON(cmd, map[string]any{
					"checks":       checks,
					"dependencies": dependencies,
					"summary":      summary,
				})
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			for _, line := range renderSectionHeader("Preflight Checks", colorize) {
				fmt.Fprintln(out, line)
			}
			for _, check := range checks {
				fmt.Fprintln(out, renderStatusLine(check.Label, statusKindFromSeverity(check.Severity), check.Detail, colorize))
			}
			fmt.Fprintln(out)
			for _, line := range renderSectionHeader("System Dependencies", colorize) {
				fmt.Fprintln(out, line)
			}
			for _, line := range dependencyLines(dependencies, summary, colorize) {
				fmt.Fprintln(out, line)
			}

			if failed > 0 {
				return fmt.Errorf("%d checks failed", failed)
			}
			fmt.Fprintln(out, "\nAll checks passed")
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON instead of text")
	return cmd
}
