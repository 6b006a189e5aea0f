package model

import "time"

// SessionStatus represents the status of a deployment session.
type SessionStatus string

const (
	// SessionStatusDeploying indicates the provisioning request is being submitted.
	SessionStatusDeploying SessionStatus = "deploying"
	// SessionStatusVerifying indicates the session is polling for mesh readiness.
	SessionStatusVerifying SessionStatus = "verifying"
	// SessionStatusSuccess indicates the mesh reached its deployed state.
	SessionStatusSuccess SessionStatus = "success"
	// SessionStatusTimeout indicates the polling budget was exhausted without a
	// terminal mesh state. Recoverable: retry or cancel.
	SessionStatusTimeout SessionStatus = "timeout"
	// SessionStatusError indicates the submission was rejected or the mesh
	// reported a failed state. Recoverable: retry or cancel.
	SessionStatusError SessionStatus = "error"
	// SessionStatusCancelling indicates rollback is in progress. Non-interactive.
	SessionStatusCancelling SessionStatus = "cancelling"
	// SessionStatusCancelled indicates rollback finished and the session ended.
	SessionStatusCancelled SessionStatus = "cancelled"
)

// Active returns true while a polling loop is (or should be) running.
func (s SessionStatus) Active() bool {
	return s == SessionStatusDeploying || s == SessionStatusVerifying
}

// Recoverable returns true when the user may choose retry or cancel.
func (s SessionStatus) Recoverable() bool {
	return s == SessionStatusTimeout || s == SessionStatusError
}

// Final returns true when no transition of any kind can follow.
func (s SessionStatus) Final() bool {
	return s == SessionStatusSuccess || s == SessionStatusCancelled
}

// Session is the unit of work for one mesh provisioning attempt sequence.
type Session struct {
	ID          string
	Workspace   string
	ProjectDir  string
	Status      SessionStatus
	Attempt     int
	MaxAttempts int
	Elapsed     time.Duration
	Endpoint    string
	ErrMessage  string
	Warnings    []string
	Ownership   Ownership
	CreatedAt   time.Time
	FinishedAt  *time.Time
}

// ElapsedSeconds returns the whole seconds elapsed in the current attempt.
func (s Session) ElapsedSeconds() int {
	return int(s.Elapsed / time.Second)
}
