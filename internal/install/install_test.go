package install

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func readSettings(t *testing.T, path string) map[string]any {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read settings: %v", err)
	}
	var settings map[string]any
	if err := json.Unmarshal(data, &settings); err != nil {
		t.Fatalf("parse settings: %v", err)
	}
	return settings
}

func countCommands(t *testing.T, settings map[string]any) int {
	t.Helper()
	hooks, _ := settings["hooks"].(map[string]any)
	total := 0
	for _, raw := range hooks {
		groups, _ := raw.([]any)
		for _, g := range groups {
			group, _ := g.(map[string]any)
			cmds, _ := group["hooks"].([]any)
			total += len(cmds)
		}
	}
	return total
}

func TestInstallCreatesSettingsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")

	added, err := Install(path, "claustrum")
	if err != nil {
		t.Fatalf("Install() error: %v", err)
	}
	if added != 4 {
		t.Errorf("added = %d, want 4", added)
	}

	settings := readSettings(t, path)
	if countCommands(t, settings) != 4 {
		t.Errorf("commands = %d, want 4", countCommands(t, settings))
	}
}

func TestInstallIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")

	if _, err := Install(path, "claustrum"); err != nil {
		t.Fatalf("Install() error: %v", err)
	}
	added, err := Install(path, "claustrum")
	if err != nil {
		t.Fatalf("Install() second run error: %v", err)
	}
	if added != 0 {
		t.Errorf("second run added = %d, want 0", added)
	}
	if got := countCommands(t, readSettings(t, path)); got != 4 {
		t.Errorf("commands after double install = %d, want 4", got)
	}
}

func TestInstallPreservesExistingSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	existing := `{
		"model": "opus",
		"hooks": {
			"PreToolUse": [
				{"matcher": "Bash", "hooks": [{"type": "command", "command": "my-linter"}]}
			]
		}
	}`
	if err := os.WriteFile(path, []byte(existing), 0o644); err != nil {
		t.Fatalf("seed settings: %v", err)
	}

	if _, err := Install(path, "claustrum"); err != nil {
		t.Fatalf("Install() error: %v", err)
	}

	settings := readSettings(t, path)
	if settings["model"] != "opus" {
		t.Errorf("model = %v, want opus preserved", settings["model"])
	}
	if got := countCommands(t, settings); got != 5 {
		t.Errorf("commands = %d, want existing linter plus 4", got)
	}
}

func TestInstallRejectsMalformedSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	if err := os.WriteFile(path, []byte("{broken"), 0o644); err != nil {
		t.Fatalf("seed settings: %v", err)
	}

	if _, err := Install(path, "claustrum"); err == nil {
		t.Error("Install() = nil, want parse error")
	}
}

func TestUninstallRemovesOnlyOwnEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	existing := `{
		"hooks": {
			"PreToolUse": [
				{"matcher": "Bash", "hooks": [{"type": "command", "command": "my-linter"}]}
			]
		}
	}`
	if err := os.WriteFile(path, []byte(existing), 0o644); err != nil {
		t.Fatalf("seed settings: %v", err)
	}
	if _, err := Install(path, "claustrum"); err != nil {
		t.Fatalf("Install() error: %v", err)
	}

	removed, err := Uninstall(path, "claustrum")
	if err != nil {
		t.Fatalf("Uninstall() error: %v", err)
	}
	if removed != 4 {
		t.Errorf("removed = %d, want 4", removed)
	}

	settings := readSettings(t, path)
	if got := countCommands(t, settings); got != 1 {
		t.Errorf("commands after uninstall = %d, want only the linter", got)
	}
}

func TestUninstallOnMissingFileIsNoop(t *testing.T) {
	removed, err := Uninstall(filepath.Join(t.TempDir(), "settings.json"), "claustrum")
	if err != nil {
		t.Fatalf("Uninstall() error: %v", err)
	}
	if removed != 0 {
		t.Errorf("removed = %d, want 0", removed)
	}
}
