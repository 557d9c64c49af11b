package infra

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/eliteGoblin/focusd/focus_engine/internal/domain"
)

// JSONSettingsStore implements domain.SettingsStore over a JSON document
// owned by the external settings surface:
// { "whitelist": [], "dimInsteadOfBlock": bool, "rules": [] }.
type JSONSettingsStore struct {
	path string
}

// NewJSONSettingsStore creates a store reading from path.
// The file does not have to exist; Load reports a degraded-mode error and
// the engine proceeds with empty settings.
func NewJSONSettingsStore(path string) *JSONSettingsStore {
	return &JSONSettingsStore{path: path}
}

// Load reads and parses the settings document.
func (s *JSONSettingsStore) Load() (domain.Settings, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return domain.Settings{}, fmt.Errorf("failed to read settings: %w", err)
	}

	var settings domain.Settings
	if err := json.Unmarshal(data, &settings); err != nil {
		return domain.Settings{}, fmt.Errorf("failed to parse settings: %w", err)
	}
	return settings, nil
}

// SetRuleTriggeredAt writes back a rule's last-fired timestamp.
// Read-modify-write of the whole document; best-effort, the engine keeps
// its own cooldown record.
func (s *JSONSettingsStore) SetRuleTriggeredAt(ruleID string, t time.Time) error {
	settings, err := s.Load()
	if err != nil {
		return err
	}

	found := false
	for i := range settings.Rules {
		if settings.Rules[i].ID == ruleID {
			settings.Rules[i].LastTriggeredAt = t
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("rule %s not found in settings", ruleID)
	}

	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}

	// Atomic write so a concurrent reader never sees a torn document.
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	return os.Rename(tmp, s.path)
}

// Watch invokes onChange whenever the settings file is written, created or
// renamed, until ctx is cancelled. The parent directory is watched so that
// atomic replace-by-rename edits are observed too.
func (s *JSONSettingsStore) Watch(ctx context.Context, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create settings watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(s.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	target := filepath.Clean(s.path)
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				onChange()
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("settings watcher failed: %w", err)
		}
	}
}

// Ensure JSONSettingsStore implements domain.SettingsStore.
var _ domain.SettingsStore = (*JSONSettingsStore)(nil)
