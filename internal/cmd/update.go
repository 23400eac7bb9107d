package cmd

import (
	"fmt"

	"github.com/joewaller/claustrum/internal/registry"
	"github.com/spf13/cobra"
)

var (
	updateTask  string
	updateFiles []string
)

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Change this session's task or file list",
	Long: `Update rewrites the descriptive fields of an already-registered
session. Fails if the session has never heartbeat-ed.`,
	RunE: runUpdate,
}

func init() {
	updateCmd.Flags().StringVarP(&sessionFlag, "session", "s", "", "session id (or CLAUSTRUM_SESSION_ID)")
	updateCmd.Flags().StringVarP(&updateTask, "task", "t", "", "new task description")
	updateCmd.Flags().StringSliceVarP(&updateFiles, "files", "f", nil, "new intended file list")
	rootCmd.AddCommand(updateCmd)
}

func runUpdate(cmd *cobra.Command, args []string) error {
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

	if err := c.Update(id, registry.Info{Task: updateTask, Files: updateFiles}); err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	return nil
}
