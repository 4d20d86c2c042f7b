package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"edlog/internal/store"
)

// CleanupOptions holds flags for the cleanup command.
type CleanupOptions struct {
	*RootOptions
	Database string
}

// CleanupResult holds the cleanup outcome.
type CleanupResult struct {
	Deleted int64 `json:"deleted"`
}

// NewCleanupCommand creates the cleanup command.
func NewCleanupCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CleanupOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Remove sessions that never recorded an event",
		Long: `Delete sessions with an empty event log. The line history seeded
from initial code does not count as activity.

Examples:
  edlog cleanup --db ./edlog.db`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCleanup(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runCleanup(opts *CleanupOptions, cmd *cobra.Command) error {
	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	deleted, err := st.CleanupEmpty(context.Background())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to clean up sessions", err)
	}

	if opts.Format == "json" {
		return writeJSONResponse(cmd.OutOrStdout(), CleanupResult{Deleted: deleted})
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Removed %d empty session(s)\n", deleted)
	return nil
}
