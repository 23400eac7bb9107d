package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var doneSummary string

var doneCmd = &cobra.Command{
	Use:   "done",
	Short: "Mark this session finished and release its claims",
	Long: `Done removes the session immediately instead of waiting for TTL
expiry. Its claims are released and, when --summary is given, a done
broadcast tells remaining sessions what was accomplished.`,
	RunE: runDone,
}

func init() {
	doneCmd.Flags().StringVarP(&sessionFlag, "session", "s", "", "session id (or CLAUSTRUM_SESSION_ID)")
	doneCmd.Flags().StringVarP(&doneSummary, "summary", "m", "", "summary to broadcast to remaining sessions")
	rootCmd.AddCommand(doneCmd)
}

func runDone(cmd *cobra.Command, args []string) error {
	id, err := resolveSessionID()
	if err != nil {
		return err
	}

	c, log, err := openCoordinator()
	if err != nil {
		return err
	}
	defer c.Close()
	defer log.Close()

	if err := c.MarkDone(id, doneSummary); err != nil {
		return fmt.Errorf("mark done: %w", err)
	}
	return nil
}
