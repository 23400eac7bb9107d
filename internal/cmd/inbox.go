package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var inboxSince int64

var inboxCmd = &cobra.Command{
	Use:   "inbox",
	Short: "Show messages addressed to this session",
	Long: `Inbox prints directed and broadcast messages with id greater than
--since, oldest first. The caller owns the cursor: pass the highest id
previously seen to fetch only what's new.`,
	RunE: runInbox,
}

func init() {
	inboxCmd.Flags().StringVarP(&sessionFlag, "session", "s", "", "session id (or CLAUSTRUM_SESSION_ID)")
	inboxCmd.Flags().Int64Var(&inboxSince, "since", 0, "only messages with id greater than this")
	rootCmd.AddCommand(inboxCmd)
}

func runInbox(cmd *cobra.Command, args []string) error {
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

	msgs, err := c.FetchSince(id, inboxSince)
	if err != nil {
		return fmt.Errorf("fetch inbox: %w", err)
	}

	for _, m := range msgs {
		fmt.Fprintf(cmd.OutOrStdout(), "%d  [%s] %s: %s\n", m.ID, m.Kind, shortID(m.From), m.Body)
	}
	return nil
}
