package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var releaseCmd = &cobra.Command{
	Use:   "release <path>",
	Short: "Give up a claim on a file",
	Long: `Release drops this session's claim on a path. Releasing a path the
session does not hold is a quiet no-op.`,
	Args: cobra.ExactArgs(1),
	RunE: runRelease,
}

func init() {
	releaseCmd.Flags().StringVarP(&sessionFlag, "session", "s", "", "session id (or CLAUSTRUM_SESSION_ID)")
	rootCmd.AddCommand(releaseCmd)
}

func runRelease(cmd *cobra.Command, args []string) error {
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

	if err := c.Release(id, args[0]); err != nil {
		return fmt.Errorf("release: %w", err)
	}
	return nil
}
