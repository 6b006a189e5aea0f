package ownership_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/meshup-sh/meshup/internal/mesh/meshmock"
	"github.com/meshup-sh/meshup/internal/model"
	"github.com/meshup-sh/meshup/internal/ownership"
	"github.com/meshup-sh/meshup/internal/ownership/ownershipmock"
)

func newTracker(t *testing.T, m *meshmock.MockLifecycle, p *ownershipmock.MockProjectRemover) *ownership.Tracker {
	t.Helper()
	tr, err := ownership.NewTracker(ownership.TrackerConfig{Mesh: m, Project: p})
	require.NoError(t, err)
	return tr
}

func TestTrackerCheckPreexistingRunsOnce(t *testing.T) {
	m := &meshmock.MockLifecycle{}
	p := &ownershipmock.MockProjectRemover{}
	m.On("Exists", mock.Anything, "acme-staging").Return(false, nil).Once()

	tr := newTracker(t, m, p)

	// Retries re-enter the deployment, the remote check must not repeat.
	require.NoError(t, tr.CheckPreexisting(context.Background(), "acme-staging"))
	require.NoError(t, tr.CheckPreexisting(context.Background(), "acme-staging"))
	require.NoError(t, tr.CheckPreexisting(context.Background(), "acme-staging"))

	assert.False(t, tr.Ownership().MeshExistedBeforeSession)
	m.AssertExpectations(t)
}

func TestTrackerPreexistingMeshIsNeverDeleted(t *testing.T) {
	m := &meshmock.MockLifecycle{}
	p := &ownershipmock.MockProjectRemover{}
	m.On("Exists", mock.Anything, "acme-staging").Return(true, nil).Once()
	p.On("Remove", mock.Anything, "/tmp/acme").Return(nil)

	tr := newTracker(t, m, p)
	require.NoError(t, tr.CheckPreexisting(context.Background(), "acme-staging"))

	// Even across submit/retry/cancel combinations the mesh stays unclaimed.
	tr.RecordSubmitted("acme-staging")
	tr.RecordSubmitted("acme-staging")
	assert.Empty(t, tr.Ownership().MeshCreatedForWorkspace)

	warnings := tr.Cleanup(context.Background(), "/tmp/acme")
	assert.Empty(t, warnings)

	// No Delete expectation was registered: a mesh delete call would fail the test.
	m.AssertExpectations(t)
	p.AssertExpectations(t)
}

func TestTrackerCleanupOwnedMesh(t *testing.T) {
	m := &meshmock.MockLifecycle{}
	p := &ownershipmock.MockProjectRemover{}
	m.On("Exists", mock.Anything, "acme-staging").Return(false, nil).Once()
	m.On("Delete", mock.Anything, "acme-staging").Return(nil).Once()
	p.On("Remove", mock.Anything, "/tmp/acme").Return(nil).Times(2)

	tr := newTracker(t, m, p)
	require.NoError(t, tr.CheckPreexisting(context.Background(), "acme-staging"))
	tr.RecordSubmitted("acme-staging")

	warnings := tr.Cleanup(context.Background(), "/tmp/acme")
	assert.Empty(t, warnings)
	assert.Empty(t, tr.Ownership().MeshCreatedForWorkspace)

	// Second cleanup is a no-op for the mesh: ownership was cleared by the
	// successful delete. The project remove is idempotent by contract.
	warnings = tr.Cleanup(context.Background(), "/tmp/acme")
	assert.Empty(t, warnings)

	m.AssertExpectations(t)
	p.AssertExpectations(t)
}

func TestTrackerCleanupMeshDeleteFailureStillRemovesProject(t *testing.T) {
	m := &meshmock.MockLifecycle{}
	p := &ownershipmock.MockProjectRemover{}
	m.On("Exists", mock.Anything, "acme-staging").Return(false, nil).Once()
	m.On("Delete", mock.Anything, "acme-staging").Return(errors.New("service unavailable"))
	p.On("Remove", mock.Anything, "/tmp/acme").Return(nil).Once()

	tr := newTracker(t, m, p)
	require.NoError(t, tr.CheckPreexisting(context.Background(), "acme-staging"))
	tr.RecordSubmitted("acme-staging")

	warnings := tr.Cleanup(context.Background(), "/tmp/acme")

	// The failed mesh delete is a warning, never a blocker.
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "was not deleted")

	// Ownership is kept so a later rollback can try again.
	assert.Equal(t, "acme-staging", tr.Ownership().MeshCreatedForWorkspace)

	m.AssertExpectations(t)
	p.AssertExpectations(t)
}

func TestTrackerRestoredOwnership(t *testing.T) {
	m := &meshmock.MockLifecycle{}
	p := &ownershipmock.MockProjectRemover{}
	m.On("Delete", mock.Anything, "acme-staging").Return(nil).Once()
	p.On("Remove", mock.Anything, "/tmp/acme").Return(nil).Once()

	tr, err := ownership.NewTracker(ownership.TrackerConfig{
		Mesh:    m,
		Project: p,
		Restore: &model.Ownership{
			ProjectCreatedThisSession: true,
			MeshCreatedForWorkspace:   "acme-staging",
		},
	})
	require.NoError(t, err)

	warnings := tr.Cleanup(context.Background(), "/tmp/acme")
	assert.Empty(t, warnings)

	m.AssertExpectations(t)
	p.AssertExpectations(t)
}
