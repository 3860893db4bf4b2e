package commands

import (
	"errors"
	"fmt"
	"log/slog"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/haivivi/interviewer/pkg/cli"
	"github.com/haivivi/interviewer/pkg/interview"
)

var (
	listStage  string
	listStatus string
	listUser   string
)

var sessionsCmd = &cobra.Command{
	Use:     "sessions",
	Aliases: []string{"session"},
	Short:   "Inspect stored interview sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sessions, oldest first",
	Long: `List sessions in the context's store.

A table is printed unless -o is given.

Example:
  interviewer sessions list --stage phone_screen --status completed
  interviewer sessions list -o json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		f := interview.Filter{User: listUser}
		if listStage != "" {
			stage, err := interview.ParseStage(listStage)
			if err != nil {
				return err
			}
			f.Stage = stage
		}
		if listStatus != "" {
			f.Status = interview.Status(listStatus)
		}

		return withStack(func(st *stack) error {
			sessions, err := st.store.ListSessions(cmd.Context(), f)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("output") {
				return outputResult(cmd, sessions)
			}
			if len(sessions) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No sessions")
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSTAGE\tSTATUS\tCREATED\tDURATION\tUTTERANCES")
			for _, s := range sessions {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\n",
					s.ID, s.Stage, s.Status,
					s.CreatedAt.Local().Format(time.DateTime),
					cli.FormatElapsed(time.Duration(s.DurationSeconds)*time.Second),
					len(s.Transcript))
			}
			return w.Flush()
		})
	},
}

var sessionsGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show a session with its transcript",
	Long: `Show a session from the store, or from the archive when the store no
longer has it.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStack(func(st *stack) error {
			s, err := st.store.GetSession(cmd.Context(), args[0])
			if errors.Is(err, interview.ErrNotFound) && st.archiver != nil {
				s, err = st.archiver.Load(cmd.Context(), args[0])
			}
			if err != nil {
				return err
			}
			return outputResult(cmd, s)
		})
	},
}

var sessionsPurgeCmd = &cobra.Command{
	Use:   "purge <id>",
	Short: "Delete a session's archived transcript and audio",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStack(func(st *stack) error {
			if st.archiver == nil {
				return errNoArchive
			}
			ok, err := st.archiver.Has(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("session %s is not archived", args[0])
			}
			if err := st.archiver.Purge(cmd.Context(), args[0]); err != nil {
				return err
			}
			cli.PrintSuccess(cmd.OutOrStdout(), "Purged archive of %s", args[0])
			return nil
		})
	},
}

// withStack opens the current context's stores for the duration of fn.
func withStack(fn func(*stack) error) error {
	ictx, err := getContext()
	if err != nil {
		return err
	}
	paths, err := cli.NewPaths(appName)
	if err != nil {
		return err
	}
	st, err := openStack(ictx, paths, slog.Default())
	if err != nil {
		return err
	}
	defer st.Close()
	return fn(st)
}

func init() {
	sessionsListCmd.Flags().StringVar(&listStage, "stage", "", "only sessions of this stage")
	sessionsListCmd.Flags().StringVar(&listStatus, "status", "", "only sessions with this status")
	sessionsListCmd.Flags().StringVar(&listUser, "user", "", "only sessions of this user")

	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsGetCmd)
	sessionsCmd.AddCommand(sessionsPurgeCmd)
}
