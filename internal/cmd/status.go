package cmd

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	idStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	claimStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show active sessions, claims, and recent messages",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	c, log, err := openCoordinator()
	if err != nil {
		return err
	}
	defer c.Close()
	defer log.Close()

	snap, err := c.Snapshot()
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}

	out := cmd.OutOrStdout()

	fmt.Fprintln(out, headerStyle.Render(fmt.Sprintf("Sessions (%d)", len(snap.Sessions))))
	if len(snap.Sessions) == 0 {
		fmt.Fprintln(out, mutedStyle.Render("  none"))
	}
	for _, s := range snap.Sessions {
		line := "  " + idStyle.Render(shortID(s.ID))
		if s.Task != "" {
			line += "  " + s.Task
		}
		if len(s.Files) > 0 {
			line += "  " + mutedStyle.Render("["+strings.Join(s.Files, ", ")+"]")
		}
		line += "  " + mutedStyle.Render(formatAge(s.LastSeen))
		fmt.Fprintln(out, line)
	}

	fmt.Fprintln(out, headerStyle.Render(fmt.Sprintf("\nClaims (%d)", len(snap.Claims))))
	if len(snap.Claims) == 0 {
		fmt.Fprintln(out, mutedStyle.Render("  none"))
	}
	for _, cl := range snap.Claims {
		fmt.Fprintf(out, "  %s  %s  %s\n",
			claimStyle.Render(cl.Path),
			idStyle.Render(shortID(cl.OwnerID)),
			mutedStyle.Render(formatAge(cl.ClaimedAt)))
	}

	fmt.Fprintln(out, headerStyle.Render(fmt.Sprintf("\nRecent messages (%d)", len(snap.Messages))))
	if len(snap.Messages) == 0 {
		fmt.Fprintln(out, mutedStyle.Render("  none"))
	}
	for _, m := range snap.Messages {
		fmt.Fprintf(out, "  %s %s: %s\n",
			mutedStyle.Render("["+string(m.Kind)+"]"),
			idStyle.Render(shortID(m.From)),
			m.Body)
	}
	return nil
}
