package workspace

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"git.home.luguber.info/inful/stepbuilder/internal/logfields"
)

// Names of the per-step trees inside a work directory.
const (
	OutputDirName       = "step_output"
	CacheDirName        = "step_cache"
	IsolatedRootDirName = "step_isolated_root"
)

// Manager handles the work directory (both temporary and persistent).
type Manager struct {
	baseDir    string
	workDir    string
	persistent bool
}

// NewManager creates a manager with an ephemeral timestamped work directory under baseDir.
func NewManager(baseDir string) *Manager {
	if baseDir == "" {
		baseDir = os.TempDir()
	}
	return &Manager{baseDir: baseDir}
}

// NewPersistentManager creates a manager that uses workDir as is and never removes it.
func NewPersistentManager(workDir string) *Manager {
	return &Manager{
		baseDir:    filepath.Dir(workDir),
		workDir:    workDir,
		persistent: true,
	}
}

// Create creates the work directory and its three step trees.
func (m *Manager) Create() error {
	if !m.persistent {
		timestamp := time.Now().Format("20060102-150405")
		m.workDir = filepath.Join(m.baseDir, fmt.Sprintf("stepbuilder-%s", timestamp))
	}
	if m.workDir == "" {
		return fmt.Errorf("work directory is not set")
	}

	for _, name := range []string{OutputDirName, CacheDirName, IsolatedRootDirName} {
		if err := os.MkdirAll(filepath.Join(m.workDir, name), 0o750); err != nil {
			return fmt.Errorf("failed to create work directory: %w", err)
		}
	}

	if m.persistent {
		slog.Debug("Using persistent work directory", logfields.Path(m.workDir))
	} else {
		slog.Info("Created ephemeral work directory", logfields.Path(m.workDir))
	}
	return nil
}

// GetPath returns the path to the work directory.
func (m *Manager) GetPath() string {
	return m.workDir
}

// OutputDir returns step_output/<id>.
func (m *Manager) OutputDir(id string) string {
	return filepath.Join(m.workDir, OutputDirName, id)
}

// CacheDir returns step_cache/<id>.
func (m *Manager) CacheDir(id string) string {
	return filepath.Join(m.workDir, CacheDirName, id)
}

// IsolatedRoot returns step_isolated_root/<id>.
func (m *Manager) IsolatedRoot(id string) string {
	return filepath.Join(m.workDir, IsolatedRootDirName, id)
}

// Cleanup removes an ephemeral work directory. Persistent directories are kept.
func (m *Manager) Cleanup() error {
	if m.workDir == "" {
		return nil
	}
	if m.persistent {
		slog.Debug("Skipping cleanup for persistent work directory", logfields.Path(m.workDir))
		return nil
	}
	if err := os.RemoveAll(m.workDir); err != nil {
		return fmt.Errorf("failed to cleanup work directory: %w", err)
	}
	slog.Info("Cleaned up work directory", logfields.Path(m.workDir))
	m.workDir = ""
	return nil
}
