package cmd

import (
	"fmt"
	"os"

	"github.com/joewaller/claustrum/internal/registry"
	"github.com/spf13/cobra"
)

var (
	heartbeatTask  string
	heartbeatFiles []string
)

var heartbeatCmd = &cobra.Command{
	Use:   "heartbeat",
	Short: "Record or refresh this session's presence",
	Long: `Heartbeat upserts the session row and bumps its last-seen timestamp.
Safe to call every turn; empty fields leave previously stored values
unchanged.`,
	RunE: runHeartbeat,
}

func init() {
	heartbeatCmd.Flags().StringVarP(&sessionFlag, "session", "s", "", "session id (or CLAUSTRUM_SESSION_ID)")
	heartbeatCmd.Flags().StringVarP(&heartbeatTask, "task", "t", "", "one-line task description")
	heartbeatCmd.Flags().StringSliceVarP(&heartbeatFiles, "files", "f", nil, "files this session intends to touch")
	rootCmd.AddCommand(heartbeatCmd)
}

func runHeartbeat(cmd *cobra.Command, args []string) error {
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

	cwd, _ := os.Getwd()
	if err := c.Heartbeat(id, registry.Info{Task: heartbeatTask, Files: heartbeatFiles, CWD: cwd}); err != nil {
		return fmt.Errorf("heartbeat: %w", err)
	}
	return nil
}
