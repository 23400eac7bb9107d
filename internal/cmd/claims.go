package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var claimsCmd = &cobra.Command{
	Use:   "claims",
	Short: "List claims held by live sessions",
	RunE:  runClaims,
}

func init() {
	rootCmd.AddCommand(claimsCmd)
}

func runClaims(cmd *cobra.Command, args []string) error {
	c, log, err := openCoordinator()
	if err != nil {
		return err
	}
	defer c.Close()
	defer log.Close()

	claims, err := c.ListClaims()
	if err != nil {
		return fmt.Errorf("list claims: %w", err)
	}

	if len(claims) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No active claims")
		return nil
	}
	for _, cl := range claims {
		fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  %s\n", cl.Path, shortID(cl.OwnerID), formatAge(cl.ClaimedAt))
	}
	return nil
}
