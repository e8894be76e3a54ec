package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"slowdown/session"
)

var (
	historySource string
	historyYes    bool
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded sessions",
		Args:  cobra.NoArgs,
		RunE:  runHistoryCmd,
	}
	cmd.Flags().StringVar(&historySource, "source", "", "only sessions from this source: microphone or system")

	deleteCmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete one session (full id or unique prefix)",
		Args:  cobra.ExactArgs(1),
		RunE:  runHistoryDeleteCmd,
	}
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every recorded session",
		Args:  cobra.NoArgs,
		RunE:  runHistoryClearCmd,
	}
	clearCmd.Flags().BoolVarP(&historyYes, "yes", "y", false, "do not ask for confirmation")

	cmd.AddCommand(deleteCmd, clearCmd)
	return cmd
}

func openHistory(cmd *cobra.Command) (*session.Recorder, func(), error) {
	settings, err := loadSettings(cmd)
	if err != nil {
		return nil, nil, err
	}
	return openRecorder(cmd.Context(), settings)
}

func runHistoryCmd(cmd *cobra.Command, _ []string) error {
	rec, closeStore, err := openHistory(cmd)
	if err != nil {
		return err
	}
	defer closeStore()

	sessions := rec.Sessions()
	if historySource != "" {
		src, err := session.ParseAudioSource(historySource)
		if err != nil {
			return err
		}
		sessions = rec.SessionsBySource(src)
	}
	printHistory(cmd.OutOrStdout(), sessions, time.Now())
	return nil
}

// printHistory writes newest first, then the summary line.
func printHistory(w io.Writer, sessions []session.Session, now time.Time) {
	if len(sessions) == 0 {
		fmt.Fprintln(w, "No sessions recorded.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tSOURCE\tDURATION\tAVG\tMIN\tMAX\tSAMPLES")
	for i := len(sessions) - 1; i >= 0; i-- {
		s := sessions[i]
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%d\n",
			shortID(s),
			s.StartTime.Local().Format("2006-01-02 15:04"),
			s.AudioSource.Label(),
			formatDuration(s.Duration(now)),
			s.AverageWPM(), s.MinWPM(), s.MaxWPM(),
			len(s.DataPoints))
	}
	tw.Flush()

	st := session.Summarize(sessions, now)
	fmt.Fprintf(w, "\n%d sessions, %s speaking, average %d wpm\n",
		st.TotalSessions, formatDuration(st.TotalSpeakingTime), st.OverallAverageWPM)
}

// matchSession resolves a full id or a unique id prefix.
func matchSession(sessions []session.Session, arg string) (uuid.UUID, error) {
	if id, err := uuid.Parse(arg); err == nil {
		return id, nil
	}
	arg = strings.ToLower(arg)
	var found []uuid.UUID
	for _, s := range sessions {
		if strings.HasPrefix(s.ID.String(), arg) {
			found = append(found, s.ID)
		}
	}
	switch len(found) {
	case 0:
		return uuid.Nil, fmt.Errorf("%q: %w", arg, session.ErrNotFound)
	case 1:
		return found[0], nil
	}
	return uuid.Nil, fmt.Errorf("%q matches %d sessions, use a longer prefix", arg, len(found))
}

func runHistoryDeleteCmd(cmd *cobra.Command, args []string) error {
	rec, closeStore, err := openHistory(cmd)
	if err != nil {
		return err
	}
	defer closeStore()

	id, err := matchSession(rec.Sessions(), args[0])
	if err != nil {
		return err
	}
	if err := rec.DeleteSession(id); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted session %s\n", id)
	return nil
}

func runHistoryClearCmd(cmd *cobra.Command, _ []string) error {
	rec, closeStore, err := openHistory(cmd)
	if err != nil {
		return err
	}
	defer closeStore()

	n := len(rec.Sessions())
	if n == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No sessions recorded.")
		return nil
	}
	if !historyYes {
		fmt.Fprintf(cmd.OutOrStdout(), "Delete all %d sessions? [y/N] ", n)
		var answer string
		fmt.Fscanln(cmd.InOrStdin(), &answer)
		if answer != "y" && answer != "Y" {
			fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
			return nil
		}
	}
	rec.ClearAll()
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d sessions.\n", n)
	return nil
}
