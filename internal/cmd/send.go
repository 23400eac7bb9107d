package cmd

import (
	"fmt"
	"strings"

	"github.com/joewaller/claustrum/internal/mailbox"
	"github.com/spf13/cobra"
)

var (
	sendTo   string
	sendKind string
)

var sendCmd = &cobra.Command{
	Use:   "send <message...>",
	Short: "Send a message to a session or to everyone",
	Long: `Send appends a message to the shared mailbox. With --to it goes to
one session; without it the message is broadcast to all sessions.
Recipients see it at their next turn start or inbox fetch.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSend,
}

func init() {
	sendCmd.Flags().StringVarP(&sessionFlag, "session", "s", "", "sender session id (or CLAUSTRUM_SESSION_ID)")
	sendCmd.Flags().StringVar(&sendTo, "to", mailbox.BroadcastRecipient, "recipient session id (default: broadcast)")
	sendCmd.Flags().StringVarP(&sendKind, "kind", "k", string(mailbox.KindNote), "message kind: note, file_change, done")
	rootCmd.AddCommand(sendCmd)
}

func runSend(cmd *cobra.Command, args []string) error {
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

	body := strings.Join(args, " ")
	if err := c.Send(id, sendTo, mailbox.Kind(sendKind), body); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	return nil
}
