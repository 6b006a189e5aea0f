package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/meshup-sh/meshup/internal/log"
	"github.com/meshup-sh/meshup/internal/model"
	"github.com/meshup-sh/meshup/internal/verify"
)

// cleanupTimeout bounds the rollback on cancellation. Rollback uses its own
// context so it still runs when the deployment context is already gone.
const cleanupTimeout = 2 * time.Minute

// Deployer runs one submit+poll deployment cycle.
type Deployer interface {
	Run(ctx context.Context, workspace string, hooks verify.Hooks) (model.PollOutcome, error)
}

// Rollbacker records resource ownership and rolls back owned resources.
type Rollbacker interface {
	RecordSubmitted(workspace string)
	Cleanup(ctx context.Context, projectDir string) []string
}

// TerminalDetail is the payload of a terminal notification.
type TerminalDetail struct {
	Endpoint string
	Err      string
	Warnings []string
}

// ControllerConfig is the configuration for the recovery controller.
type ControllerConfig struct {
	SessionID string
	Config    model.DeployConfig
	Deployer  Deployer
	Tracker   Rollbacker
	// OnUpdate receives progress on every poll tick and on the move from
	// deploying to verifying.
	OnUpdate func(attempt int, elapsed time.Duration, status model.SessionStatus)
	// OnTerminal fires each time the session reaches success, timeout, error or
	// cancelled. Timeout and error are recoverable: a retry may follow.
	OnTerminal func(status model.SessionStatus, detail TerminalDetail)
	Logger     log.Logger
}

func (c *ControllerConfig) defaults() error {
	if c.Deployer == nil {
		return fmt.Errorf("deployer is required")
	}
	if c.Tracker == nil {
		return fmt.Errorf("ownership tracker is required")
	}
	if err := c.Config.Validate(); err != nil {
		return fmt.Errorf("invalid deploy config: %w", err)
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "session.Controller"})
	return nil
}

// Controller is the deployment recovery state machine effect runner. State
// changes happen only through the pure transition function, fed with
// attempt-tagged events, so a result arriving for a stale attempt can never
// overwrite newer state. The controller owns the session exclusively:
// consumers only get snapshots.
type Controller struct {
	cfg      model.DeployConfig
	deployer Deployer
	tracker  Rollbacker

	onUpdate   func(attempt int, elapsed time.Duration, status model.SessionStatus)
	onTerminal func(status model.SessionStatus, detail TerminalDetail)
	logger     log.Logger

	mu            sync.Mutex
	session       model.Session
	baseCtx       context.Context
	attemptCancel context.CancelFunc

	done     chan struct{}
	doneOnce sync.Once
}

// NewController creates a new recovery controller for a single session.
func NewController(cfg ControllerConfig) (*Controller, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Controller{
		cfg:        cfg.Config,
		deployer:   cfg.Deployer,
		tracker:    cfg.Tracker,
		onUpdate:   cfg.OnUpdate,
		onTerminal: cfg.OnTerminal,
		logger:     cfg.Logger,
		session: model.Session{
			ID:          cfg.SessionID,
			Workspace:   cfg.Config.Workspace,
			ProjectDir:  cfg.Config.ProjectDir,
			MaxAttempts: cfg.Config.MaxAttempts,
		},
		done: make(chan struct{}),
	}, nil
}

// Session returns a read-only snapshot of the current session state.
func (c *Controller) Session() model.Session {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.session
	s.Warnings = append([]string(nil), c.session.Warnings...)
	return s
}

// Done is closed when the session reaches a final state (success or cancelled).
func (c *Controller) Done() <-chan struct{} { return c.done }

// apply feeds one event through the transition function and returns the new
// state snapshot and whether the event had any effect.
func (c *Controller) apply(ev event) (model.Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	next, ok := transition(c.session, ev)
	if !ok {
		return c.session, false
	}
	c.session = next
	return next, true
}

// Start begins attempt 1. Valid only once, from the initial idle state.
func (c *Controller) Start(ctx context.Context) error {
	s, ok := c.apply(event{kind: eventStartRequested, at: time.Now().UTC()})
	if !ok {
		return fmt.Errorf("session already started: %w", model.ErrNotValid)
	}

	c.mu.Lock()
	c.baseCtx = ctx
	c.mu.Unlock()

	c.logger.Infof("Starting mesh deployment for workspace %s (attempt 1)", c.cfg.Workspace)
	go c.runAttempt(ctx, s.Attempt)

	return nil
}

// Retry re-enters deployment with a fresh attempt. Valid only from timeout or
// error: anywhere else it is a logged no-op, guarding against a stale
// double-submit from the presenter.
func (c *Controller) Retry() {
	s, ok := c.apply(event{kind: eventRetryRequested})
	if !ok {
		c.logger.Warningf("Retry ignored in status %q", c.Session().Status)
		return
	}

	// The previous attempt already reported a terminal result, but make sure
	// its polling task is fully gone before the new one starts.
	c.mu.Lock()
	if c.attemptCancel != nil {
		c.attemptCancel()
		c.attemptCancel = nil
	}
	ctx := c.baseCtx
	c.mu.Unlock()

	c.logger.Infof("Retrying mesh deployment for workspace %s (attempt %d)", c.cfg.Workspace, s.Attempt)
	go c.runAttempt(ctx, s.Attempt)
}

// Cancel aborts the session from any non-final state. The transition to
// cancelling is synchronous (the session stops being interactive right away),
// rollback runs in the background and the session becomes cancelled when it
// finishes.
func (c *Controller) Cancel() {
	_, ok := c.apply(event{kind: eventCancelRequested})
	if !ok {
		c.logger.Warningf("Cancel ignored in status %q", c.Session().Status)
		return
	}

	c.mu.Lock()
	if c.attemptCancel != nil {
		c.attemptCancel()
		c.attemptCancel = nil
	}
	c.mu.Unlock()

	c.logger.Infof("Cancelling mesh deployment for workspace %s", c.cfg.Workspace)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
		defer cancel()

		warnings := c.tracker.Cleanup(ctx, c.cfg.ProjectDir)

		s, ok := c.apply(event{kind: eventCleanupFinished, warnings: warnings, at: time.Now().UTC()})
		if !ok {
			return
		}

		c.notifyTerminal(s.Status, TerminalDetail{Warnings: append([]string(nil), s.Warnings...)})
		c.doneOnce.Do(func() { close(c.done) })
	}()
}

// runAttempt drives one deployment cycle, feeding back events tagged with the
// attempt number the task was started for.
func (c *Controller) runAttempt(ctx context.Context, attempt int) {
	attemptCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.mu.Lock()
	if c.session.Attempt != attempt || !c.session.Status.Active() {
		// The session moved on before this task even started.
		c.mu.Unlock()
		return
	}
	c.attemptCancel = cancel
	c.mu.Unlock()

	hooks := verify.Hooks{
		Submitted: func() {
			// Ownership first: the remote resource exists from this point on,
			// whatever happens next.
			c.tracker.RecordSubmitted(c.cfg.Workspace)
			if s, ok := c.apply(event{kind: eventSubmitted, attempt: attempt}); ok {
				c.notifyUpdate(attempt, s.Elapsed, s.Status)
			}
		},
		Tick: func(poll int, elapsed time.Duration) {
			if s, ok := c.apply(event{kind: eventTick, attempt: attempt, elapsed: elapsed}); ok {
				c.notifyUpdate(attempt, s.Elapsed, s.Status)
			}
		},
	}

	outcome, err := c.deployer.Run(attemptCtx, c.cfg.Workspace, hooks)

	var ev event
	var detail TerminalDetail
	switch {
	case err == nil && outcome.ResourceStatus == model.ResourceStatusDeployed:
		detail = TerminalDetail{Endpoint: outcome.Endpoint}
		ev = event{kind: eventDeployed, attempt: attempt, endpoint: outcome.Endpoint, at: time.Now().UTC()}
	case err == nil:
		// A terminal outcome that isn't deployed is a reported failure.
		detail = TerminalDetail{Err: outcome.Detail}
		ev = event{kind: eventDeployFailed, attempt: attempt, errMessage: outcome.Detail}
	case errors.Is(err, model.ErrBudgetExhausted):
		ev = event{kind: eventBudgetExhausted, attempt: attempt}
	case attemptCtx.Err() != nil:
		// Cancelled or superseded: the result is discarded unconditionally.
		c.logger.Debugf("attempt %d aborted: %s", attempt, err)
		return
	default:
		detail = TerminalDetail{Err: err.Error()}
		ev = event{kind: eventDeployFailed, attempt: attempt, errMessage: err.Error()}
	}

	s, ok := c.apply(ev)
	if !ok {
		c.logger.Debugf("discarding stale result for attempt %d", attempt)
		return
	}

	c.mu.Lock()
	if c.session.Attempt == attempt {
		c.attemptCancel = nil
	}
	c.mu.Unlock()

	c.notifyTerminal(s.Status, detail)
	if s.Status == model.SessionStatusSuccess {
		c.doneOnce.Do(func() { close(c.done) })
	}
}

func (c *Controller) notifyUpdate(attempt int, elapsed time.Duration, status model.SessionStatus) {
	if c.onUpdate != nil {
		c.onUpdate(attempt, elapsed, status)
	}
}

func (c *Controller) notifyTerminal(status model.SessionStatus, detail TerminalDetail) {
	if c.onTerminal != nil {
		c.onTerminal(status, detail)
	}
}
