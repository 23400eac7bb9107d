package cmd

import (
	"fmt"
	"os"

	"github.com/joewaller/claustrum/internal/config"
	"github.com/joewaller/claustrum/internal/hook"
	"github.com/joewaller/claustrum/internal/logging"
	"github.com/spf13/cobra"
)

var hookCmd = &cobra.Command{
	Use:   "hook",
	Short: "Hook entry points invoked by the host tool",
	Long: `The hook subcommands read a JSON payload on stdin and are wired into
the host tool's lifecycle by "claustrum install". They fail open: any
internal error exits 0 so coordination trouble never blocks the host.
The one exception is pre-edit, which exits 2 when another live session
holds a claim on the file being edited.`,
}

func init() {
	for _, event := range []hook.Event{
		hook.EventPreEdit,
		hook.EventPostEdit,
		hook.EventTurnStart,
		hook.EventSessionEnd,
	} {
		hookCmd.AddCommand(newHookEventCmd(event))
	}
	rootCmd.AddCommand(hookCmd)
}

func newHookEventCmd(event hook.Event) *cobra.Command {
	return &cobra.Command{
		Use:   string(event),
		Short: fmt.Sprintf("Handle the %s hook event", event),
		Run: func(cmd *cobra.Command, args []string) {
			cfg := config.Get()

			log := logging.NopLogger()
			if cfg.Logging.Enabled {
				if l, err := logging.NewLogger(config.StateDir(), cfg.Logging.Level); err == nil {
					log = l
				}
			}
			defer log.Close()

			out := hook.Execute(cfg, log, event, cmd.InOrStdin())
			if out.Stdout != "" {
				fmt.Fprint(cmd.OutOrStdout(), out.Stdout)
			}
			if out.Stderr != "" {
				fmt.Fprint(cmd.ErrOrStderr(), out.Stderr)
			}
			if out.ExitCode != 0 {
				os.Exit(out.ExitCode)
			}
		},
	}
}
