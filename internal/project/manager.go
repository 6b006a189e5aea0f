package project

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/meshup-sh/meshup/internal/log"
	"github.com/meshup-sh/meshup/internal/model"
)

// ManagerConfig is the configuration for the project manager.
type ManagerConfig struct {
	Logger log.Logger
}

func (c *ManagerConfig) defaults() error {
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "project.Manager"})
	return nil
}

// Manager removes scaffolded project directories during rollback.
type Manager struct {
	logger log.Logger
}

// NewManager creates a new project manager.
func NewManager(cfg ManagerConfig) (*Manager, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Manager{logger: cfg.Logger}, nil
}

// Remove deletes a project directory. Removing an already removed project is
// a no-op, so rollback stays idempotent.
func (m *Manager) Remove(ctx context.Context, path string) error {
	if path == "" {
		return fmt.Errorf("project path is required: %w", model.ErrNotValid)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("could not resolve project path: %w", err)
	}
	if abs == string(filepath.Separator) {
		return fmt.Errorf("refusing to remove %q: %w", abs, model.ErrNotValid)
	}

	// Only projects scaffolded by the setup flow are removed.
	_, err = os.Stat(filepath.Join(abs, ConfigFileName))
	switch {
	case os.IsNotExist(err):
		if _, statErr := os.Stat(abs); os.IsNotExist(statErr) {
			m.logger.Debugf("project %s already removed", abs)
			return nil
		}
		return fmt.Errorf("%q doesn't look like a project directory (%s missing): %w", abs, ConfigFileName, model.ErrNotValid)
	case err != nil:
		return fmt.Errorf("could not inspect project directory: %w", err)
	}

	if err := os.RemoveAll(abs); err != nil {
		return fmt.Errorf("could not remove project directory: %w", err)
	}

	m.logger.Infof("Removed project directory %s", abs)
	return nil
}
