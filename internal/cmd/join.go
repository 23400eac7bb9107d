package cmd

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/joewaller/claustrum/internal/registry"
	"github.com/spf13/cobra"
)

var joinTask string

var joinCmd = &cobra.Command{
	Use:   "join",
	Short: "Register a new session and print its id",
	Long: `Join generates a session id, records an initial heartbeat, and prints
the id. Export it as CLAUSTRUM_SESSION_ID so later commands can find it:

  export CLAUSTRUM_SESSION_ID=$(claustrum join --task "auth refactor")`,
	RunE: runJoin,
}

func init() {
	joinCmd.Flags().StringVarP(&joinTask, "task", "t", "", "one-line description of what this session works on")
	rootCmd.AddCommand(joinCmd)
}

func runJoin(cmd *cobra.Command, args []string) error {
	c, log, err := openCoordinator()
	if err != nil {
		return err
	}
	defer c.Close()
	defer log.Close()

	id := uuid.NewString()
	cwd, _ := os.Getwd()
	if err := c.Heartbeat(id, registry.Info{Task: joinTask, CWD: cwd}); err != nil {
		return fmt.Errorf("register session: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), id)
	return nil
}
