package session

import (
	"time"

	"github.com/meshup-sh/meshup/internal/model"
)

// eventKind identifies a state machine event.
type eventKind string

const (
	eventStartRequested  eventKind = "start-requested"
	eventSubmitted       eventKind = "submitted"
	eventTick            eventKind = "tick"
	eventDeployed        eventKind = "deployed"
	eventDeployFailed    eventKind = "deploy-failed"
	eventBudgetExhausted eventKind = "budget-exhausted"
	eventRetryRequested  eventKind = "retry-requested"
	eventCancelRequested eventKind = "cancel-requested"
	eventCleanupFinished eventKind = "cleanup-finished"
)

// event is a state machine input. Events produced by a polling task carry the
// attempt number the task was started for.
type event struct {
	kind eventKind
	// attempt tags task events. 0 means a user event that applies to whatever
	// the current attempt is.
	attempt    int
	elapsed    time.Duration
	endpoint   string
	errMessage string
	warnings   []string
	at         time.Time
}

// transition is the pure state transition function of the recovery state
// machine. It returns the next session state and whether the event applied.
// Events tagged with a stale attempt never apply: a result from attempt N can
// only affect state while the current attempt is still N.
func transition(s model.Session, ev event) (model.Session, bool) {
	if ev.attempt != 0 && ev.attempt != s.Attempt {
		return s, false
	}

	switch ev.kind {
	case eventStartRequested:
		if s.Status != "" {
			return s, false
		}
		s.Status = model.SessionStatusDeploying
		s.Attempt = 1
		s.CreatedAt = ev.at
		return s, true

	case eventSubmitted:
		if s.Status != model.SessionStatusDeploying {
			return s, false
		}
		s.Status = model.SessionStatusVerifying
		return s, true

	case eventTick:
		if !s.Status.Active() {
			return s, false
		}
		// Progress never goes backwards within an attempt.
		if ev.elapsed > s.Elapsed {
			s.Elapsed = ev.elapsed
		}
		return s, true

	case eventDeployed:
		if !s.Status.Active() {
			return s, false
		}
		s.Status = model.SessionStatusSuccess
		s.Endpoint = ev.endpoint
		at := ev.at
		s.FinishedAt = &at
		return s, true

	case eventDeployFailed:
		if !s.Status.Active() {
			return s, false
		}
		s.Status = model.SessionStatusError
		s.ErrMessage = ev.errMessage
		return s, true

	case eventBudgetExhausted:
		if !s.Status.Active() {
			return s, false
		}
		s.Status = model.SessionStatusTimeout
		return s, true

	case eventRetryRequested:
		if !s.Status.Recoverable() {
			return s, false
		}
		s.Status = model.SessionStatusDeploying
		s.Attempt++
		s.Elapsed = 0
		s.ErrMessage = ""
		return s, true

	case eventCancelRequested:
		if s.Status.Final() || s.Status == model.SessionStatusCancelling {
			return s, false
		}
		s.Status = model.SessionStatusCancelling
		return s, true

	case eventCleanupFinished:
		if s.Status != model.SessionStatusCancelling {
			return s, false
		}
		s.Status = model.SessionStatusCancelled
		s.Warnings = append(s.Warnings, ev.warnings...)
		at := ev.at
		s.FinishedAt = &at
		return s, true
	}

	return s, false
}
