package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/meshup-sh/meshup/internal/log"
	"github.com/meshup-sh/meshup/internal/model"
)

// RepositoryConfig is the configuration for the memory repository.
type RepositoryConfig struct {
	Logger log.Logger
}

func (c *RepositoryConfig) defaults() error {
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "storage.Memory"})
	return nil
}

// Repository is an in-memory implementation of storage.Repository.
type Repository struct {
	sessions map[string]model.Session
	mu       sync.RWMutex
	logger   log.Logger
}

// NewRepository creates a new memory repository.
func NewRepository(cfg RepositoryConfig) (*Repository, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Repository{
		sessions: make(map[string]model.Session),
		logger:   cfg.Logger,
	}, nil
}

// CreateSession creates a new session in the repository.
func (r *Repository) CreateSession(ctx context.Context, s model.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[s.ID]; ok {
		return fmt.Errorf("session with id %s: %w", s.ID, model.ErrAlreadyExists)
	}

	r.sessions[s.ID] = copySession(s)
	r.logger.Debugf("Created session in repository: %s", s.ID)

	return nil
}

// GetSession retrieves a session by ID.
func (r *Repository) GetSession(ctx context.Context, id string) (*model.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, model.ErrNotFound)
	}

	sessionCopy := copySession(session)
	return &sessionCopy, nil
}

// GetLatestSessionByWorkspace retrieves the most recently created session for
// a workspace.
func (r *Repository) GetLatestSessionByWorkspace(ctx context.Context, workspace string) (*model.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var latest *model.Session
	for _, session := range r.sessions {
		if session.Workspace != workspace {
			continue
		}
		if latest == nil || session.CreatedAt.After(latest.CreatedAt) {
			sessionCopy := copySession(session)
			latest = &sessionCopy
		}
	}

	if latest == nil {
		return nil, fmt.Errorf("session for workspace %s: %w", workspace, model.ErrNotFound)
	}

	return latest, nil
}

// ListSessions returns all sessions, newest first.
func (r *Repository) ListSessions(ctx context.Context) ([]model.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sessions := make([]model.Session, 0, len(r.sessions))
	for _, session := range r.sessions {
		sessions = append(sessions, copySession(session))
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
	})

	return sessions, nil
}

// UpdateSession updates an existing session.
func (r *Repository) UpdateSession(ctx context.Context, s model.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[s.ID]; !ok {
		return fmt.Errorf("session %s: %w", s.ID, model.ErrNotFound)
	}

	r.sessions[s.ID] = copySession(s)
	r.logger.Debugf("Updated session in repository: %s", s.ID)

	return nil
}

// DeleteSession deletes a session.
func (r *Repository) DeleteSession(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[id]; !ok {
		return fmt.Errorf("session %s: %w", id, model.ErrNotFound)
	}

	delete(r.sessions, id)
	r.logger.Debugf("Deleted session from repository: %s", id)

	return nil
}

func copySession(s model.Session) model.Session {
	c := s
	c.Warnings = append([]string(nil), s.Warnings...)
	if s.FinishedAt != nil {
		t := *s.FinishedAt
		c.FinishedAt = &t
	}
	return c
}
