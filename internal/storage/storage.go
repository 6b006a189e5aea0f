package storage

import (
	"context"

	"github.com/meshup-sh/meshup/internal/model"
)

// Repository is the interface for deployment session persistence.
type Repository interface {
	CreateSession(ctx context.Context, s model.Session) error
	GetSession(ctx context.Context, id string) (*model.Session, error)
	GetLatestSessionByWorkspace(ctx context.Context, workspace string) (*model.Session, error)
	ListSessions(ctx context.Context) ([]model.Session, error)
	UpdateSession(ctx context.Context, s model.Session) error
	DeleteSession(ctx context.Context, id string) error
}
