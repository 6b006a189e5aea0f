package model

// ResourceStatus is the classification of a single mesh status check.
type ResourceStatus string

const (
	// ResourceStatusDeployed indicates terminal success, the mesh endpoint is live.
	ResourceStatusDeployed ResourceStatus = "deployed"
	// ResourceStatusPending indicates provisioning is still in progress.
	ResourceStatusPending ResourceStatus = "pending"
	// ResourceStatusFailed indicates the mesh reported a terminal failure.
	ResourceStatusFailed ResourceStatus = "failed"
	// ResourceStatusUnreachable indicates a transient network or CLI failure.
	// It never aborts an otherwise healthy deployment, polling continues.
	ResourceStatusUnreachable ResourceStatus = "unreachable"
)

// PollOutcome is the transient result of a single mesh status poll.
type PollOutcome struct {
	ReachedTerminal bool
	ResourceStatus  ResourceStatus
	Endpoint        string
	Detail          string
}
