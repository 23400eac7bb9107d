package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var claimCmd = &cobra.Command{
	Use:   "claim <path>",
	Short: "Take an exclusive advisory claim on a file",
	Long: `Claim marks a file as in-use by this session. Exactly one live
session can hold a path at a time; a conflicting claim exits with
code 2 and names the current owner. Claims are advisory — nothing
stops an uncooperative process from editing anyway.`,
	Args: cobra.ExactArgs(1),
	RunE: runClaim,
}

func init() {
	claimCmd.Flags().StringVarP(&sessionFlag, "session", "s", "", "session id (or CLAUSTRUM_SESSION_ID)")
	rootCmd.AddCommand(claimCmd)
}

func runClaim(cmd *cobra.Command, args []string) error {
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

	res, err := c.Claim(id, args[0])
	if err != nil {
		return fmt.Errorf("claim: %w", err)
	}
	if !res.Granted {
		reason := fmt.Sprintf("%s is claimed by session %s", args[0], shortID(res.OwnerID))
		if res.OwnerTask != "" {
			reason += fmt.Sprintf(" (%s)", res.OwnerTask)
		}
		fmt.Fprintln(cmd.ErrOrStderr(), reason)
		os.Exit(2)
	}
	return nil
}
