package infra

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/eliteGoblin/focusd/focus_engine/internal/domain"
)

const registryFileName = "focusengine.session.json"

// FileRegistry implements domain.EngineRegistry using a JSON file guarded
// by an exclusive lock, so the CLI can discover the running engine.
type FileRegistry struct {
	path string
}

// NewFileRegistry creates a registry under dir (created if missing).
func NewFileRegistry(dir string) *FileRegistry {
	return &FileRegistry{path: filepath.Join(dir, registryFileName)}
}

// Register saves the running engine's PID and session ID.
func (r *FileRegistry) Register(session domain.Session) error {
	entry := domain.RegistryEntry{
		Version:       1,
		PID:           session.PID,
		SessionID:     session.SessionID,
		StartedAt:     session.StartedAt.Unix(),
		LastHeartbeat: time.Now().Unix(),
	}
	return r.atomicWrite(&entry)
}

// UpdateHeartbeat refreshes the liveness timestamp.
func (r *FileRegistry) UpdateHeartbeat() error {
	entry, err := r.Get()
	if err != nil {
		return err
	}
	if entry == nil {
		return fmt.Errorf("engine session not registered")
	}

	entry.LastHeartbeat = time.Now().Unix()
	return r.atomicWrite(entry)
}

// Get returns the registry state, or nil if no engine has registered.
func (r *FileRegistry) Get() (*domain.RegistryEntry, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var entry domain.RegistryEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// Clear removes the registry file.
func (r *FileRegistry) Clear() error {
	err := os.Remove(r.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// atomicWrite persists the entry under an exclusive lock with a
// write-then-rename so concurrent readers never see a torn file.
func (r *FileRegistry) atomicWrite(entry *domain.RegistryEntry) error {
	if err := os.MkdirAll(filepath.Dir(r.path), 0755); err != nil {
		return fmt.Errorf("failed to create registry directory: %w", err)
	}

	lockPath := r.path + ".lock"
	lockFile, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return fmt.Errorf("failed to open lock file: %w", err)
	}
	defer lockFile.Close()

	if err := syscall.Flock(int(lockFile.Fd()), syscall.LOCK_EX); err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	defer func() { _ = syscall.Flock(int(lockFile.Fd()), syscall.LOCK_UN) }()

	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode registry entry: %w", err)
	}

	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write registry: %w", err)
	}
	return os.Rename(tmp, r.path)
}

// Ensure FileRegistry implements domain.EngineRegistry.
var _ domain.EngineRegistry = (*FileRegistry)(nil)
