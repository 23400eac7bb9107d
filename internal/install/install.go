// Package install merges claustrum's hook entries into the host tool's
// settings JSON. The merge is additive and idempotent: entries already
// present are left alone, unrelated settings are preserved verbatim,
// and running install twice produces the same file as running it once.
package install

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// hookEntry describes one hook command to register with the host tool.
type hookEntry struct {
	event   string
	matcher string
	command string
}

// hookEntries lists the four hook registrations, keyed to the host
// tool's lifecycle events.
func hookEntries(binary string) []hookEntry {
	return []hookEntry{
		{event: "PreToolUse", matcher: "Edit|Write|MultiEdit", command: binary + " hook pre-edit"},
		{event: "PostToolUse", matcher: "Edit|Write|MultiEdit", command: binary + " hook post-edit"},
		{event: "UserPromptSubmit", matcher: "", command: binary + " hook turn-start"},
		{event: "SessionEnd", matcher: "", command: binary + " hook session-end"},
	}
}

// Install merges the hook entries into the settings file at path,
// creating it if absent. binary is the command name to register,
// normally "claustrum". Returns the number of entries added.
func Install(path, binary string) (int, error) {
	settings, err := loadSettings(path)
	if err != nil {
		return 0, err
	}

	added := 0
	for _, e := range hookEntries(binary) {
		if mergeEntry(settings, e) {
			added++
		}
	}
	if added == 0 {
		return 0, nil
	}

	if err := writeSettings(path, settings); err != nil {
		return 0, err
	}
	return added, nil
}

// Uninstall removes every hook entry whose command mentions binary.
// Returns the number of entries removed.
func Uninstall(path, binary string) (int, error) {
	settings, err := loadSettings(path)
	if err != nil {
		return 0, err
	}

	hooks, ok := settings["hooks"].(map[string]any)
	if !ok {
		return 0, nil
	}

	removed := 0
	for event, raw := range hooks {
		groups, ok := raw.([]any)
		if !ok {
			continue
		}
		var kept []any
		for _, g := range groups {
			group, ok := g.(map[string]any)
			if !ok {
				kept = append(kept, g)
				continue
			}
			n := stripCommands(group, binary)
			removed += n
			if cmds, _ := group["hooks"].([]any); len(cmds) > 0 {
				kept = append(kept, group)
			}
		}
		if len(kept) > 0 {
			hooks[event] = kept
		} else {
			delete(hooks, event)
		}
	}
	if removed == 0 {
		return 0, nil
	}
	return removed, writeSettings(path, settings)
}

// loadSettings reads the settings file as a generic document so keys
// this tool knows nothing about survive the round trip.
func loadSettings(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return map[string]any{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var settings map[string]any
	if err := json.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("parse settings %s: %w", path, err)
	}
	if settings == nil {
		settings = map[string]any{}
	}
	return settings, nil
}

func writeSettings(path string, settings map[string]any) error {
	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	data = append(data, '\n')

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create settings directory: %w", err)
	}
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("replace settings: %w", err)
	}
	return nil
}

// mergeEntry adds one hook registration unless its command is already
// present under the event. Reports whether anything was added.
func mergeEntry(settings map[string]any, e hookEntry) bool {
	hooks, ok := settings["hooks"].(map[string]any)
	if !ok {
		hooks = map[string]any{}
		settings["hooks"] = hooks
	}

	groups, _ := hooks[e.event].([]any)
	for _, g := range groups {
		group, ok := g.(map[string]any)
		if !ok {
			continue
		}
		if groupHasCommand(group, e.command) {
			return false
		}
	}

	group := map[string]any{
		"hooks": []any{
			map[string]any{"type": "command", "command": e.command},
		},
	}
	if e.matcher != "" {
		group["matcher"] = e.matcher
	}
	hooks[e.event] = append(groups, group)
	return true
}

func groupHasCommand(group map[string]any, command string) bool {
	cmds, _ := group["hooks"].([]any)
	for _, c := range cmds {
		cmd, ok := c.(map[string]any)
		if !ok {
			continue
		}
		if cmd["command"] == command {
			return true
		}
	}
	return false
}

// stripCommands drops commands containing binary from one hook group,
// returning how many were removed.
func stripCommands(group map[string]any, binary string) int {
	cmds, _ := group["hooks"].([]any)
	var kept []any
	removed := 0
	for _, c := range cmds {
		cmd, ok := c.(map[string]any)
		if ok {
			if s, _ := cmd["command"].(string); containsWord(s, binary) {
				removed++
				continue
			}
		}
		kept = append(kept, c)
	}
	group["hooks"] = kept
	return removed
}

// containsWord reports whether s contains needle as a command token.
func containsWord(s, needle string) bool {
	if needle == "" {
		return false
	}
	for i := 0; i+len(needle) <= len(s); i++ {
		if s[i:i+len(needle)] != needle {
			continue
		}
		beforeOK := i == 0 || s[i-1] == ' ' || s[i-1] == '/'
		afterOK := i+len(needle) == len(s) || s[i+len(needle)] == ' '
		if beforeOK && afterOK {
			return true
		}
	}
	return false
}
