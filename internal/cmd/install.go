package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joewaller/claustrum/internal/install"
	"github.com/spf13/cobra"
)

var installSettingsPath string

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Register claustrum hooks in the host tool's settings",
	Long: `Install merges the pre-edit, post-edit, turn-start, and session-end
hook entries into the host tool's settings file. Existing settings are
preserved and re-running install changes nothing.`,
	RunE: runInstall,
}

var uninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Remove claustrum hooks from the host tool's settings",
	RunE:  runUninstall,
}

func init() {
	installCmd.Flags().StringVar(&installSettingsPath, "settings", "", "settings file (default: ~/.claude/settings.json)")
	uninstallCmd.Flags().StringVar(&installSettingsPath, "settings", "", "settings file (default: ~/.claude/settings.json)")
	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(uninstallCmd)
}

func settingsPath() (string, error) {
	if installSettingsPath != "" {
		return installSettingsPath, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("locate home directory: %w", err)
	}
	return filepath.Join(home, ".claude", "settings.json"), nil
}

func runInstall(cmd *cobra.Command, args []string) error {
	path, err := settingsPath()
	if err != nil {
		return err
	}

	added, err := install.Install(path, "claustrum")
	if err != nil {
		return fmt.Errorf("install hooks: %w", err)
	}
	if added == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "Hooks already installed")
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Installed %d hook(s) into %s\n", added, path)
	return nil
}

func runUninstall(cmd *cobra.Command, args []string) error {
	path, err := settingsPath()
	if err != nil {
		return err
	}

	removed, err := install.Uninstall(path, "claustrum")
	if err != nil {
		return fmt.Errorf("uninstall hooks: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed %d hook(s)\n", removed)
	return nil
}
