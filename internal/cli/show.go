package cli

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"edlog/internal/store"
)

// ShowOptions holds flags for the show command.
type ShowOptions struct {
	*RootOptions
	Database string
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ShowOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "show <session-id>",
		Short: "Dump one session's event log and line history",
		Args:  cobra.ExactArgs(1),
		Long: `Print a session document: identity, the flat event log and the
per-line history.

Examples:
  edlog show --db ./edlog.db 4f5c...
  edlog show --db ./edlog.db 4f5c... --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(opts, cmd, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runShow(opts *ShowOptions, cmd *cobra.Command, sessionID string) error {
	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	sess, err := st.GetSession(context.Background(), sessionID)
	if errors.Is(err, store.ErrSessionNotFound) {
		return NewExitError(ExitFailure, fmt.Sprintf("session %s not found", sessionID))
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load session", err)
	}

	if opts.Format == "json" {
		return writeJSONResponse(cmd.OutOrStdout(), sess)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Session: %s (%s)\n", sess.SessionID, sess.Language)
	fmt.Fprintf(w, "Start: %d", sess.StartTime)
	if sess.EndTime != nil {
		fmt.Fprintf(w, "  End: %d", *sess.EndTime)
	}
	fmt.Fprintf(w, "\nEvents: %d\n", len(sess.Events))

	if opts.Verbose {
		for _, ev := range sess.Events {
			fmt.Fprintf(w, "  t=%-8d seq=%-5d %s\n", ev.Timestamp, ev.Seq, ev.Type)
		}
	}

	lines := make([]int, 0, len(sess.LineHistory))
	for line := range sess.LineHistory {
		lines = append(lines, line)
	}
	sort.Ints(lines)

	fmt.Fprintf(w, "Lines with history: %d\n", len(lines))
	for _, line := range lines {
		versions := sess.LineHistory[line]
		last := "<metrics>"
		for i := len(versions) - 1; i >= 0; i-- {
			if versions[i].Content != nil {
				last = *versions[i].Content
				break
			}
		}
		fmt.Fprintf(w, "  line %-4d %3d versions  %q\n", line, len(versions), last)
	}
	return nil
}
