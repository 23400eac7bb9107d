package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var gcCmd = &cobra.Command{
	Use:   "gc",
	Short: "Expire stale sessions and prune old messages",
	Long: `GC runs the maintenance sweep by hand. The same sweep runs
opportunistically on every other command, so this exists mostly for
scripts and debugging.`,
	RunE: runGC,
}

func init() {
	rootCmd.AddCommand(gcCmd)
}

func runGC(cmd *cobra.Command, args []string) error {
	c, log, err := openCoordinator()
	if err != nil {
		return err
	}
	defer c.Close()
	defer log.Close()

	stats, err := c.GC()
	if err != nil {
		return fmt.Errorf("gc: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Expired %d session(s), pruned %d message(s)\n",
		stats.SessionsExpired, stats.MessagesPruned)
	return nil
}
