// File: cmd/journal.go
package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lijuncheng2025-sys/living-seed-ai-sub000/internal/journal"
	"github.com/lijuncheng2025-sys/living-seed-ai-sub000/internal/observability"
)

// newJournalCmd creates the 'journal' command, which prints the evolution log.
// The journal is the pipeline's only decision trail, so this is the primary
// way to inspect what the system has done to itself.
func newJournalCmd() *cobra.Command {
	var last int

	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Prints the evolution log of past mutation cycles.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := appCfg
			if cfg == nil {
				return errors.New("configuration was not initialized")
			}

			j := journal.New(observability.GetLogger(), cfg.Journal.Path, cfg.Journal.MaxEntries)
			j.Load()

			entries := j.Entries()
			if last > 0 && last < len(entries) {
				entries = entries[len(entries)-last:]
			}
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "journal is empty")
				return nil
			}
			for _, e := range entries {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  cycle=%-4d %-20s fitness=%.2f novelty=%.2f %s  %s\n",
					e.Timestamp.Format("2006-01-02 15:04:05"),
					e.Cycle, e.Outcome, e.FitnessScore, e.NoveltyScore, e.File, e.Description)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&last, "last", "n", 0, "Show only the last N entries.")
	return cmd
}
