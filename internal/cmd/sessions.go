package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List active sessions",
	RunE:  runSessions,
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
}

func runSessions(cmd *cobra.Command, args []string) error {
	c, log, err := openCoordinator()
	if err != nil {
		return err
	}
	defer c.Close()
	defer log.Close()

	sessions, err := c.ListActive("")
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}

	if len(sessions) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No active sessions")
		return nil
	}

	for _, s := range sessions {
		line := fmt.Sprintf("%s  %s", shortID(s.ID), formatAge(s.LastSeen))
		if s.Task != "" {
			line += "  " + s.Task
		}
		if len(s.Files) > 0 {
			line += "  [" + strings.Join(s.Files, ", ") + "]"
		}
		fmt.Fprintln(cmd.OutOrStdout(), line)
	}
	return nil
}
