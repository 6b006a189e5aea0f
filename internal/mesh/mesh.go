package mesh

import (
	"context"

	"github.com/meshup-sh/meshup/internal/model"
)

// Lifecycle manages the remote mesh resource of a workspace.
type Lifecycle interface {
	// Submit issues the mesh provisioning request. A rejected request returns
	// a *model.SubmissionError. A successful submission has side effects on the
	// remote service even if the mesh never reaches its deployed state.
	Submit(ctx context.Context, workspace string) error
	// Status runs a single status check and classifies the response. It never
	// fails: transient problems are classified as unreachable outcomes.
	Status(ctx context.Context, workspace string) model.PollOutcome
	// Exists returns whether the workspace already has a mesh.
	Exists(ctx context.Context, workspace string) (bool, error)
	// Delete removes the workspace mesh. Deleting an absent mesh is not an error.
	Delete(ctx context.Context, workspace string) error
}
