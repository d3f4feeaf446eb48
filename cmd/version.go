// File: cmd/version.go
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is the application version.
// This value is intended to be set at build time using ldflags.
// Example: go build -ldflags "-X github.com/lijuncheng2025-sys/living-seed-ai-sub000/cmd.Version=1.0.0"
var Version = "0.1.0"

// newVersionCmd creates the 'version' command. Declaring its own
// PersistentPreRunE skips the root's config and logger bootstrap, so the
// command works in an unconfigured environment.
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Prints the living-seed version.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), Version)
		},
	}
}
