package status

import (
	"context"
	"fmt"

	"github.com/meshup-sh/meshup/internal/log"
	"github.com/meshup-sh/meshup/internal/model"
	"github.com/meshup-sh/meshup/internal/storage"
)

// ServiceConfig is the configuration for the status service.
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
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Status"})
	return nil
}

// Service retrieves a single stored deployment session.
type Service struct {
	repo   storage.Repository
	logger log.Logger
}

// NewService creates a new status service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{repo: cfg.Repository, logger: cfg.Logger}, nil
}

// StatusOptions are the options for getting a session. SessionID wins when
// both are set.
type StatusOptions struct {
	SessionID string
	Workspace string
}

// Status returns the stored session.
func (s *Service) Status(ctx context.Context, opts StatusOptions) (*model.Session, error) {
	switch {
	case opts.SessionID != "":
		session, err := s.repo.GetSession(ctx, opts.SessionID)
		if err != nil {
			return nil, fmt.Errorf("could not get session: %w", err)
		}
		return session, nil
	case opts.Workspace != "":
		session, err := s.repo.GetLatestSessionByWorkspace(ctx, opts.Workspace)
		if err != nil {
			return nil, fmt.Errorf("could not get session: %w", err)
		}
		return session, nil
	default:
		return nil, fmt.Errorf("a session id or a workspace is required: %w", model.ErrNotValid)
	}
}
