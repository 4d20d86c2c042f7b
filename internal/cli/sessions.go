package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"edlog/internal/store"
)

// SessionsOptions holds flags for the sessions command.
type SessionsOptions struct {
	*RootOptions
	Database string
	Limit    int
}

// SessionRow is one listing entry.
type SessionRow struct {
	SessionID  string `json:"session_id"`
	Language   string `json:"language"`
	StartTime  int64  `json:"start_time"`
	EndTime    *int64 `json:"end_time,omitempty"`
	UpdatedAt  int64  `json:"updated_at"`
	EventCount int64  `json:"event_count"`
}

// NewSessionsCommand creates the sessions command.
func NewSessionsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SessionsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List recorded sessions by recency",
		Long: `List sessions in the database, most recently updated first.

Examples:
  edlog sessions --db ./edlog.db
  edlog sessions --db ./edlog.db --limit 50 --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSessions(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().IntVar(&opts.Limit, "limit", store.DefaultListLimit, "maximum sessions to list")

	return cmd
}

func runSessions(opts *SessionsOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	summaries, err := st.ListSessions(ctx, opts.Limit)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list sessions", err)
	}

	rows := make([]SessionRow, 0, len(summaries))
	for _, sum := range summaries {
		count, err := st.EventCount(ctx, sum.SessionID)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to count events", err)
		}
		rows = append(rows, SessionRow{
			SessionID:  sum.SessionID,
			Language:   sum.Language,
			StartTime:  sum.StartTime,
			EndTime:    sum.EndTime,
			UpdatedAt:  sum.UpdatedAt,
			EventCount: count,
		})
	}

	if opts.Format == "json" {
		return writeJSONResponse(cmd.OutOrStdout(), rows)
	}

	w := cmd.OutOrStdout()
	if len(rows) == 0 {
		fmt.Fprintln(w, "No sessions found.")
		return nil
	}
	for _, row := range rows {
		status := "open"
		if row.EndTime != nil {
			status = "stopped"
		}
		fmt.Fprintf(w, "%s  %-8s %-8s %4d events  updated %s\n",
			row.SessionID, row.Language, status, row.EventCount,
			time.UnixMilli(row.UpdatedAt).Format(time.RFC3339))
	}
	return nil
}
