package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"showrunner/internal/services/tts"
)

// newVoicesCommand lists the synthesis voice catalog. The catalog is static,
// so no config or daemon is needed.
func newVoicesCommand() *cobra.Command {
	var language string
	var jsonOut bool

	cmd := &cobra.Command{
		Use:         "voices",
		Short:       "List available narration voices",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			voices := tts.Voices(strings.TrimSpace(language))
			if jsonOut {
				return writeJSON(cmd, map[string]any{"voices": voices})
			}
			if len(voices) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No voices match that language")
				return nil
			}
			rows := make([][]string, 0, len(voices))
			for _, voice := range voices {
				name := voice.Name
				if voice.ID == tts.DefaultVoiceID {
					name += " (default)"
				}
				rows = append(rows, []string{voice.ID, name, voice.LanguageCode, voice.Gender, voice.Style})
			}
			table := renderTable(
				[]string{"ID", "Name", "Language", "Gender", "Style"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
			)
			fmt.Fprintln(cmd.OutOrStdout(), table)
			return nil
		},
	}

	cmd.Flags().StringVar(&language, "language", "", "Filter by language code (e.g. en-US)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON instead of a table")
	return cmd
}
