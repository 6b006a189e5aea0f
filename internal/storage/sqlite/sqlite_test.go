package sqlite_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meshup-sh/meshup/internal/log"
	"github.com/meshup-sh/meshup/internal/model"
	"github.com/meshup-sh/meshup/internal/storage/sqlite"
)

func sessionFixture(id, workspace string, createdAt time.Time) model.Session {
	return model.Session{
		ID:          id,
		Workspace:   workspace,
		ProjectDir:  "/tmp/" + workspace,
		Status:      model.SessionStatusVerifying,
		Attempt:     1,
		MaxAttempts: 18,
		Elapsed:     30 * time.Second,
		Ownership: model.Ownership{
			ProjectCreatedThisSession: true,
			MeshCreatedForWorkspace:   workspace,
		},
		CreatedAt: createdAt,
	}
}

func newRepo(t *testing.T) *sqlite.Repository {
	t.Helper()
	repo, err := sqlite.NewRepository(context.Background(), sqlite.RepositoryConfig{
		DBPath: filepath.Join(t.TempDir(), "test.db"),
		Logger: log.Noop,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestRepositoryCRUD(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)

	now := time.Now().UTC().Truncate(time.Second)
	s := sessionFixture("id-1", "acme-staging", now)
	require.NoError(t, repo.CreateSession(ctx, s))

	got, err := repo.GetSession(ctx, "id-1")
	require.NoError(t, err)
	assert.Equal(t, "acme-staging", got.Workspace)
	assert.Equal(t, model.SessionStatusVerifying, got.Status)
	assert.Equal(t, 30*time.Second, got.Elapsed)
	assert.Equal(t, now, got.CreatedAt)
	assert.True(t, got.Ownership.ProjectCreatedThisSession)
	assert.Equal(t, "acme-staging", got.Ownership.MeshCreatedForWorkspace)
	assert.False(t, got.Ownership.MeshExistedBeforeSession)
	assert.Nil(t, got.FinishedAt)

	finished := now.Add(40 * time.Second)
	s.Status = model.SessionStatusCancelled
	s.Warnings = []string{"mesh for workspace acme-staging was not deleted", "project directory kept"}
	s.Ownership.MeshCreatedForWorkspace = ""
	s.FinishedAt = &finished
	require.NoError(t, repo.UpdateSession(ctx, s))

	updated, err := repo.GetSession(ctx, "id-1")
	require.NoError(t, err)
	assert.Equal(t, model.SessionStatusCancelled, updated.Status)
	assert.Equal(t, s.Warnings, updated.Warnings)
	assert.Empty(t, updated.Ownership.MeshCreatedForWorkspace)
	require.NotNil(t, updated.FinishedAt)
	assert.Equal(t, finished, *updated.FinishedAt)

	require.NoError(t, repo.DeleteSession(ctx, "id-1"))
	_, err = repo.GetSession(ctx, "id-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrNotFound))
}

func TestRepositoryConstraints(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)

	now := time.Now().UTC()
	require.NoError(t, repo.CreateSession(ctx, sessionFixture("id-1", "acme-staging", now)))

	err := repo.CreateSession(ctx, sessionFixture("id-1", "other", now))
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrAlreadyExists))

	err = repo.UpdateSession(ctx, sessionFixture("id-x", "acme-staging", now))
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrNotFound))

	err = repo.DeleteSession(ctx, "id-x")
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrNotFound))
}

func TestRepositoryListAndLatest(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)

	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, repo.CreateSession(ctx, sessionFixture("id-1", "acme-staging", now.Add(-2*time.Hour))))
	require.NoError(t, repo.CreateSession(ctx, sessionFixture("id-2", "acme-staging", now.Add(-1*time.Hour))))
	require.NoError(t, repo.CreateSession(ctx, sessionFixture("id-3", "payments-prod", now)))

	all, err := repo.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "id-3", all[0].ID)
	assert.Equal(t, "id-2", all[1].ID)
	assert.Equal(t, "id-1", all[2].ID)

	latest, err := repo.GetLatestSessionByWorkspace(ctx, "acme-staging")
	require.NoError(t, err)
	assert.Equal(t, "id-2", latest.ID)

	_, err = repo.GetLatestSessionByWorkspace(ctx, "unknown")
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrNotFound))
}
