package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"

	"github.com/meshup-sh/meshup/internal/log"
)

// Result is the captured outcome of one external command execution.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Runner executes an external command and captures its output. Callers bound
// each call with the context (e.g. context.WithTimeout).
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (*Result, error)
}

// ExecRunnerConfig is the configuration for the exec runner.
type ExecRunnerConfig struct {
	Logger log.Logger
}

func (c *ExecRunnerConfig) defaults() error {
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "runner.Exec"})
	return nil
}

// ExecRunner is an os/exec implementation of Runner.
type ExecRunner struct {
	logger log.Logger
}

// NewExecRunner creates a new exec based command runner.
func NewExecRunner(cfg ExecRunnerConfig) (*ExecRunner, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &ExecRunner{logger: cfg.Logger}, nil
}

// Run executes the command and returns its exit code and captured output.
// A non-zero exit code is not an error: the caller classifies it. Errors are
// reserved for the command not running at all (missing binary, killed by a
// context timeout, etc.).
func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) (*Result, error) {
	r.logger.Debugf("executing command: %s %v", name, args)

	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		// Context expiry wins over the generic kill error so callers can
		// classify per-call timeouts.
		if ctx.Err() != nil {
			return nil, fmt.Errorf("command %q aborted: %w", name, ctx.Err())
		}

		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, fmt.Errorf("could not run command %q: %w", name, err)
		}

		return &Result{
			ExitCode: exitErr.ExitCode(),
			Stdout:   stdout.String(),
			Stderr:   stderr.String(),
		}, nil
	}

	return &Result{
		ExitCode: 0,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
	}, nil
}
