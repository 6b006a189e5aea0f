package rollback

import (
	"context"
	"fmt"
	"time"

	"github.com/meshup-sh/meshup/internal/log"
	"github.com/meshup-sh/meshup/internal/mesh"
	"github.com/meshup-sh/meshup/internal/model"
	"github.com/meshup-sh/meshup/internal/ownership"
	"github.com/meshup-sh/meshup/internal/storage"
)

// ServiceConfig is the configuration for the rollback service.
type ServiceConfig struct {
	Repository     storage.Repository
	Mesh           mesh.Lifecycle
	ProjectRemover ownership.ProjectRemover
	Logger         log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Repository == nil {
		return fmt.Errorf("repository is required")
	}
	if c.Mesh == nil {
		return fmt.Errorf("mesh lifecycle is required")
	}
	if c.ProjectRemover == nil {
		return fmt.Errorf("project remover is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Rollback"})
	return nil
}

// Service rolls back a stored session that never finished, typically after a
// crash or a kill mid-deployment. It replays the cleanup the session itself
// would have run on cancel, from the persisted ownership record.
type Service struct {
	repo           storage.Repository
	mesh           mesh.Lifecycle
	projectRemover ownership.ProjectRemover
	logger         log.Logger
}

// NewService creates a new rollback service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		repo:           cfg.Repository,
		mesh:           cfg.Mesh,
		projectRemover: cfg.ProjectRemover,
		logger:         cfg.Logger,
	}, nil
}

// RollbackOptions are the options for rolling back a session. SessionID wins
// when both are set.
type RollbackOptions struct {
	SessionID string
	Workspace string
}

// Rollback cleans up the resources a stored session still owns and marks it
// cancelled. Sessions that already ended successfully are left alone.
func (s *Service) Rollback(ctx context.Context, opts RollbackOptions) (*model.Session, error) {
	session, err := s.getSession(ctx, opts)
	if err != nil {
		return nil, err
	}

	if session.Status == model.SessionStatusSuccess {
		return nil, fmt.Errorf("session %s finished successfully, nothing to roll back: %w", session.ID, model.ErrNotValid)
	}

	own := session.Ownership
	tracker, err := ownership.NewTracker(ownership.TrackerConfig{
		Mesh:    s.mesh,
		Project: s.projectRemover,
		Restore: &own,
		Logger:  s.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create ownership tracker: %w", err)
	}

	s.logger.Infof("Rolling back session %s (workspace %s)", session.ID, session.Workspace)
	warnings := tracker.Cleanup(ctx, session.ProjectDir)

	now := time.Now().UTC()
	session.Status = model.SessionStatusCancelled
	session.Warnings = append(session.Warnings, warnings...)
	session.Ownership = tracker.Ownership()
	if session.FinishedAt == nil {
		session.FinishedAt = &now
	}

	if err := s.repo.UpdateSession(ctx, *session); err != nil {
		return nil, fmt.Errorf("could not persist rolled back session: %w", err)
	}

	return session, nil
}

func (s *Service) getSession(ctx context.Context, opts RollbackOptions) (*model.Session, error) {
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
