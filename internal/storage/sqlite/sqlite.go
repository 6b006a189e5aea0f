package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/meshup-sh/meshup/internal/log"
	"github.com/meshup-sh/meshup/internal/model"
	"github.com/meshup-sh/meshup/internal/storage/sqlite/migrations"
)

// RepositoryConfig is the configuration for the SQLite repository.
type RepositoryConfig struct {
	DBPath string
	Logger log.Logger
}

func (c *RepositoryConfig) defaults() error {
	if c.DBPath == "" {
		return fmt.Errorf("db path is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "storage.SQLite"})
	return nil
}

// Repository is a SQLite implementation of storage.Repository.
type Repository struct {
	db     *sql.DB
	logger log.Logger
}

// NewRepository creates a new SQLite repository.
func NewRepository(ctx context.Context, cfg RepositoryConfig) (*Repository, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	dir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("could not create db directory: %w", err)
	}

	dsn := fmt.Sprintf("%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)", cfg.DBPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}

	migrator, err := migrations.NewMigrator(db, cfg.Logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("could not create migrator: %w", err)
	}
	if err := migrator.Up(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not run migrations: %w", err)
	}

	cfg.Logger.Debugf("SQLite repository initialized at %s", cfg.DBPath)

	return &Repository{db: db, logger: cfg.Logger}, nil
}

// Close closes the database connection.
func (r *Repository) Close() error { return r.db.Close() }

const sessionColumns = `
	id, workspace, project_dir, status,
	attempt, max_attempts, elapsed_ms,
	endpoint, error, warnings,
	project_created, mesh_created_for, mesh_preexisted,
	created_at, finished_at
`

// CreateSession creates a new session in the repository.
func (r *Repository) CreateSession(ctx context.Context, s model.Session) error {
	query := `
		INSERT INTO sessions (` + sessionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query, insertArgs(s)...)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: sessions.") {
			return fmt.Errorf("session already exists: %w", model.ErrAlreadyExists)
		}
		return fmt.Errorf("could not insert session: %w", err)
	}

	r.logger.Debugf("Created session in repository: %s", s.ID)
	return nil
}

// GetSession retrieves a session by ID.
func (r *Repository) GetSession(ctx context.Context, id string) (*model.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = ?`

	session, err := r.scanOne(ctx, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("session %s: %w", id, model.ErrNotFound)
		}
		return nil, fmt.Errorf("could not query session: %w", err)
	}

	return session, nil
}

// GetLatestSessionByWorkspace retrieves the most recently created session for
// a workspace.
func (r *Repository) GetLatestSessionByWorkspace(ctx context.Context, workspace string) (*model.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE workspace = ?
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`

	session, err := r.scanOne(ctx, query, workspace)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("session for workspace %s: %w", workspace, model.ErrNotFound)
		}
		return nil, fmt.Errorf("could not query session: %w", err)
	}

	return session, nil
}

// ListSessions returns all sessions, newest first.
func (r *Repository) ListSessions(ctx context.Context) ([]model.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions ORDER BY created_at DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("could not query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []model.Session
	for rows.Next() {
		session, err := r.scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("could not scan row: %w", err)
		}
		sessions = append(sessions, session)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return sessions, nil
}

// UpdateSession updates an existing session.
func (r *Repository) UpdateSession(ctx context.Context, s model.Session) error {
	query := `
		UPDATE sessions
		SET
			workspace = ?,
			project_dir = ?,
			status = ?,
			attempt = ?,
			max_attempts = ?,
			elapsed_ms = ?,
			endpoint = ?,
			error = ?,
			warnings = ?,
			project_created = ?,
			mesh_created_for = ?,
			mesh_preexisted = ?,
			created_at = ?,
			finished_at = ?
		WHERE id = ?
	`

	args := append(insertArgs(s)[1:], s.ID)
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("could not update session: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("could not get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("session %s: %w", s.ID, model.ErrNotFound)
	}

	r.logger.Debugf("Updated session in repository: %s", s.ID)
	return nil
}

// DeleteSession deletes a session.
func (r *Repository) DeleteSession(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("could not delete session: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("could not get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("session %s: %w", id, model.ErrNotFound)
	}

	r.logger.Debugf("Deleted session from repository: %s", id)
	return nil
}

func insertArgs(s model.Session) []any {
	var finishedAt *int64
	if s.FinishedAt != nil {
		u := s.FinishedAt.Unix()
		finishedAt = &u
	}

	return []any{
		s.ID,
		s.Workspace,
		s.ProjectDir,
		s.Status,
		s.Attempt,
		s.MaxAttempts,
		s.Elapsed.Milliseconds(),
		s.Endpoint,
		s.ErrMessage,
		encodeWarnings(s.Warnings),
		s.Ownership.ProjectCreatedThisSession,
		s.Ownership.MeshCreatedForWorkspace,
		s.Ownership.MeshExistedBeforeSession,
		s.CreatedAt.Unix(),
		finishedAt,
	}
}

func (r *Repository) scanOne(ctx context.Context, query string, arg any) (*model.Session, error) {
	row := r.db.QueryRowContext(ctx, query, arg)
	session, err := r.scanRow(row)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func (r *Repository) scanRow(s scanner) (model.Session, error) {
	var session model.Session
	var elapsedMS int64
	var warnings string
	var createdAt, finishedAt sql.NullInt64

	err := s.Scan(
		&session.ID,
		&session.Workspace,
		&session.ProjectDir,
		&session.Status,
		&session.Attempt,
		&session.MaxAttempts,
		&elapsedMS,
		&session.Endpoint,
		&session.ErrMessage,
		&warnings,
		&session.Ownership.ProjectCreatedThisSession,
		&session.Ownership.MeshCreatedForWorkspace,
		&session.Ownership.MeshExistedBeforeSession,
		&createdAt,
		&finishedAt,
	)
	if err != nil {
		return model.Session{}, err
	}

	session.Elapsed = time.Duration(elapsedMS) * time.Millisecond
	session.Warnings = decodeWarnings(warnings)

	if !createdAt.Valid {
		return model.Session{}, fmt.Errorf("created_at is required")
	}
	session.CreatedAt = timeFromUnix(createdAt.Int64)

	if finishedAt.Valid {
		t := timeFromUnix(finishedAt.Int64)
		session.FinishedAt = &t
	}

	return session, nil
}

// Warnings are short single-line messages, a newline-joined TEXT column is
// enough.
func encodeWarnings(ws []string) string {
	return strings.Join(ws, "\n")
}

func decodeWarnings(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

func timeFromUnix(unix int64) time.Time { return time.Unix(unix, 0).UTC() }
