package list

import (
	"context"
	"fmt"

	"github.com/meshup-sh/meshup/internal/log"
	"github.com/meshup-sh/meshup/internal/model"
	"github.com/meshup-sh/meshup/internal/storage"
)

// ServiceConfig is the configuration for the list service.
type ServiceConfig struct {
	Repository storage.Repository
	Logger     log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Repository == nil {
		return fmt.Errorf("repository is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.List"})
	return nil
}

// Service lists stored deployment sessions.
type Service struct {
	repo   storage.Repository
	logger log.Logger
}

// NewService creates a new list service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{repo: cfg.Repository, logger: cfg.Logger}, nil
}

// ListOptions are the options for listing sessions.
type ListOptions struct {
	// Workspace filters the listing to one workspace when set.
	Workspace string
}

// List returns the stored sessions, newest first.
func (s *Service) List(ctx context.Context, opts ListOptions) ([]model.Session, error) {
	sessions, err := s.repo.ListSessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not list sessions: %w", err)
	}

	if opts.Workspace == "" {
		return sessions, nil
	}

	filtered := make([]model.Session, 0, len(sessions))
	for _, session := range sessions {
		if session.Workspace == opts.Workspace {
			filtered = append(filtered, session)
		}
	}

	return filtered, nil
}
