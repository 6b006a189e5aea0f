package verify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/meshup-sh/meshup/internal/log"
	"github.com/meshup-sh/meshup/internal/mesh"
	"github.com/meshup-sh/meshup/internal/model"
)

// errNotReady signals the polling loop to keep waiting.
var errNotReady = errors.New("mesh not ready")

// Hooks are the verifier progress callbacks.
type Hooks struct {
	// Submitted fires once, after a successful submission and before the first
	// poll. Ownership must be recorded here: the remote mesh may already exist
	// even if nothing else ever completes.
	Submitted func()
	// Tick fires on every poll cycle with the poll count and the wall-clock time
	// elapsed since the run started. Deliveries are in non-decreasing elapsed
	// order within a run.
	Tick func(poll int, elapsed time.Duration)
}

// VerifierConfig is the configuration for the deployment verifier.
type VerifierConfig struct {
	Mesh mesh.Lifecycle
	// PollInterval is the fixed wait between status polls.
	PollInterval time.Duration
	// MaxPolls is the poll budget for one run. Polls are counted, not derived
	// from timing, so the count stays deterministic even when a single poll
	// call is slow.
	MaxPolls int
	Logger   log.Logger
}

func (c *VerifierConfig) defaults() error {
	if c.Mesh == nil {
		return fmt.Errorf("mesh lifecycle is required")
	}
	if c.PollInterval <= 0 {
		c.PollInterval = model.DefaultPollInterval
	}
	if c.MaxPolls <= 0 {
		c.MaxPolls = int(model.DefaultTotalTimeout / model.DefaultPollInterval)
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "verify.Verifier"})
	return nil
}

// Verifier submits a mesh provisioning request and polls until the mesh
// reaches a terminal state or the poll budget runs out.
type Verifier struct {
	mesh     mesh.Lifecycle
	interval time.Duration
	maxPolls int
	logger   log.Logger
}

// NewVerifier creates a new deployment verifier.
func NewVerifier(cfg VerifierConfig) (*Verifier, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Verifier{
		mesh:     cfg.Mesh,
		interval: cfg.PollInterval,
		maxPolls: cfg.MaxPolls,
		logger:   cfg.Logger,
	}, nil
}

// Run submits the provisioning request and drives the polling loop.
//
// The returned error is a *model.SubmissionError when the request was
// rejected, wraps model.ErrBudgetExhausted when every poll came back
// pending/unreachable, or is the context error on cancellation. A terminal
// outcome (deployed or failed) returns with a nil error: the outcome carries
// the classification.
func (v *Verifier) Run(ctx context.Context, workspace string, hooks Hooks) (model.PollOutcome, error) {
	err := v.mesh.Submit(ctx, workspace)
	if err != nil {
		return model.PollOutcome{}, fmt.Errorf("could not submit mesh deployment: %w", err)
	}
	if hooks.Submitted != nil {
		hooks.Submitted()
	}

	return v.watch(ctx, workspace, hooks)
}

// watch polls the mesh status on a fixed interval until a terminal outcome or
// the poll budget is exhausted.
func (v *Verifier) watch(ctx context.Context, workspace string, hooks Hooks) (model.PollOutcome, error) {
	start := time.Now()
	poll := 0
	var last model.PollOutcome

	op := func() error {
		poll++
		if hooks.Tick != nil {
			hooks.Tick(poll, time.Since(start))
		}

		last = v.mesh.Status(ctx, workspace)
		v.logger.Debugf("poll %d/%d for workspace %s: %s", poll, v.maxPolls, workspace, last.ResourceStatus)

		if last.ReachedTerminal {
			return nil
		}

		// Pending and unreachable both keep the loop alive: transient
		// connectivity issues must not abort a healthy deployment.
		return errNotReady
	}

	bo := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(v.interval), uint64(v.maxPolls-1)),
		ctx,
	)

	err := backoff.Retry(op, bo)
	switch {
	case err == nil:
		return last, nil
	case errors.Is(err, errNotReady):
		return last, fmt.Errorf("no terminal mesh state after %d polls: %w", poll, model.ErrBudgetExhausted)
	default:
		return last, fmt.Errorf("mesh verification aborted: %w", err)
	}
}
