package ownership

import (
	"context"
	"fmt"
	"sync"

	"github.com/meshup-sh/meshup/internal/log"
	"github.com/meshup-sh/meshup/internal/mesh"
	"github.com/meshup-sh/meshup/internal/model"
)

// ProjectRemover deletes a scaffolded project directory. Implementations are
// idempotent: removing an already removed project succeeds.
type ProjectRemover interface {
	Remove(ctx context.Context, path string) error
}

// TrackerConfig is the configuration for the ownership tracker.
type TrackerConfig struct {
	Mesh    mesh.Lifecycle
	Project ProjectRemover
	// Restore seeds the tracker with previously persisted ownership (e.g. a
	// rollback after a crash). The pre-existence check is considered done.
	Restore *model.Ownership
	Logger  log.Logger
}

func (c *TrackerConfig) defaults() error {
	if c.Mesh == nil {
		return fmt.Errorf("mesh lifecycle is required")
	}
	if c.Project == nil {
		return fmt.Errorf("project remover is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "ownership.Tracker"})
	return nil
}

// Tracker records which externally deletable resources this session created
// and coordinates the rollback that removes them, and only them.
type Tracker struct {
	mesh    mesh.Lifecycle
	project ProjectRemover
	logger  log.Logger

	mu        sync.Mutex
	ownership model.Ownership
	checked   bool
}

// NewTracker creates a new ownership tracker. The project directory is always
// created earlier in the setup flow, so it is owned from the start.
func NewTracker(cfg TrackerConfig) (*Tracker, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	t := &Tracker{
		mesh:      cfg.Mesh,
		project:   cfg.Project,
		logger:    cfg.Logger,
		ownership: model.Ownership{ProjectCreatedThisSession: true},
	}

	if cfg.Restore != nil {
		t.ownership = *cfg.Restore
		t.checked = true
	}

	return t, nil
}

// CheckPreexisting records whether the workspace already has a mesh. It runs
// the remote check exactly once per session: retries reuse the first answer.
func (t *Tracker) CheckPreexisting(ctx context.Context, workspace string) error {
	t.mu.Lock()
	if t.checked {
		t.mu.Unlock()
		return nil
	}
	t.mu.Unlock()

	exists, err := t.mesh.Exists(ctx, workspace)
	if err != nil {
		return fmt.Errorf("could not check pre-existing mesh: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.checked = true
	t.ownership.MeshExistedBeforeSession = exists

	if exists {
		t.logger.Warningf("Workspace %s already has a mesh, it will never be deleted by this session", workspace)
	}

	return nil
}

// RecordSubmitted marks the mesh as created by this session. It must be called
// the moment a submission succeeds: the remote resource may exist even if the
// deployment never completes. A pre-existing mesh is never claimed.
func (t *Tracker) RecordSubmitted(workspace string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.ownership.MeshExistedBeforeSession {
		t.logger.Debugf("mesh pre-existed, submission not recorded as ownership")
		return
	}
	if t.ownership.MeshCreatedForWorkspace != "" {
		return // Write-once, retries submit for the same workspace.
	}

	t.ownership.MeshCreatedForWorkspace = workspace
	t.logger.Debugf("mesh submission recorded for workspace %s", workspace)
}

// Ownership returns a snapshot of the current ownership state.
func (t *Tracker) Ownership() model.Ownership {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ownership
}

// Cleanup rolls back the resources this session created: the project directory
// always, the mesh only when it was created here and didn't pre-exist.
// Failures never block the user from returning to the start of the flow, they
// are returned as warnings. Calling Cleanup twice is safe.
func (t *Tracker) Cleanup(ctx context.Context, projectDir string) []string {
	var warnings []string

	t.mu.Lock()
	o := t.ownership
	t.mu.Unlock()

	if o.MeshDeletable() {
		err := t.mesh.Delete(ctx, o.MeshCreatedForWorkspace)
		if err != nil {
			t.logger.Warningf("Could not delete mesh: %s", err)
			warnings = append(warnings, fmt.Sprintf("mesh for workspace %s was not deleted: %s", o.MeshCreatedForWorkspace, err))
		} else {
			t.mu.Lock()
			t.ownership.MeshCreatedForWorkspace = ""
			t.mu.Unlock()
		}
	}

	if o.ProjectCreatedThisSession && projectDir != "" {
		err := t.project.Remove(ctx, projectDir)
		if err != nil {
			t.logger.Warningf("Could not delete project directory: %s", err)
			warnings = append(warnings, fmt.Sprintf("project directory %s was not deleted: %s", projectDir, err))
		}
	}

	return warnings
}
