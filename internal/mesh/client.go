package mesh

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/meshup-sh/meshup/internal/log"
	"github.com/meshup-sh/meshup/internal/model"
	"github.com/meshup-sh/meshup/internal/runner"
)

const (
	// DefaultBinary is the vendor CLI used to manage meshes.
	DefaultBinary = "meshctl"

	defaultCallTimeout    = 5 * time.Second
	deleteRetryMaxElapsed = 15 * time.Second
)

// CLIClientConfig is the configuration for the CLI mesh client.
type CLIClientConfig struct {
	Runner runner.Runner
	// Binary is the mesh vendor CLI executable name.
	Binary string
	// CallTimeout bounds every single CLI invocation. It must stay shorter than
	// the deployment poll interval.
	CallTimeout time.Duration
	Logger      log.Logger
}

func (c *CLIClientConfig) defaults() error {
	if c.Runner == nil {
		return fmt.Errorf("runner is required")
	}
	if c.Binary == "" {
		c.Binary = DefaultBinary
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = defaultCallTimeout
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "mesh.CLIClient"})
	return nil
}

// CLIClient implements Lifecycle on top of the external mesh vendor CLI.
type CLIClient struct {
	runner      runner.Runner
	binary      string
	callTimeout time.Duration
	logger      log.Logger
}

// NewCLIClient creates a new CLI based mesh lifecycle client.
func NewCLIClient(cfg CLIClientConfig) (*CLIClient, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &CLIClient{
		runner:      cfg.Runner,
		binary:      cfg.Binary,
		callTimeout: cfg.CallTimeout,
		logger:      cfg.Logger,
	}, nil
}

// statusResponse is the JSON body of `meshctl mesh status`.
type statusResponse struct {
	Status   string `json:"status"`
	Endpoint string `json:"endpoint"`
	Error    string `json:"error"`
}

// Submit issues the mesh creation request for the workspace.
func (c *CLIClient) Submit(ctx context.Context, workspace string) error {
	res, err := c.run(ctx, "mesh", "create", "--workspace", workspace, "--output", "json")
	if err != nil {
		return fmt.Errorf("could not run mesh creation: %w", err)
	}

	if res.ExitCode != 0 {
		return &model.SubmissionError{Output: cliErrorBody(res)}
	}

	c.logger.Infof("Mesh creation submitted for workspace %s", workspace)
	return nil
}

// Status checks the workspace mesh once and classifies the result.
func (c *CLIClient) Status(ctx context.Context, workspace string) model.PollOutcome {
	res, err := c.run(ctx, "mesh", "status", "--workspace", workspace, "--output", "json")
	if err != nil {
		// The CLI didn't answer at all (network, per-call timeout...). Common and
		// transient, the poll loop continues.
		c.logger.Debugf("mesh status unreachable: %s", err)
		return model.PollOutcome{ResourceStatus: model.ResourceStatusUnreachable, Detail: err.Error()}
	}

	if res.ExitCode != 0 {
		return model.PollOutcome{ResourceStatus: model.ResourceStatusUnreachable, Detail: cliErrorBody(res)}
	}

	var body statusResponse
	if err := json.Unmarshal([]byte(res.Stdout), &body); err != nil {
		return model.PollOutcome{ResourceStatus: model.ResourceStatusUnreachable, Detail: fmt.Sprintf("garbled status response: %s", err)}
	}

	switch strings.ToLower(body.Status) {
	case "deployed", "ready", "active":
		return model.PollOutcome{
			ReachedTerminal: true,
			ResourceStatus:  model.ResourceStatusDeployed,
			Endpoint:        body.Endpoint,
		}
	case "failed", "error":
		detail := body.Error
		if detail == "" {
			detail = "mesh reported a failed state"
		}
		return model.PollOutcome{
			ReachedTerminal: true,
			ResourceStatus:  model.ResourceStatusFailed,
			Detail:          detail,
		}
	default:
		return model.PollOutcome{ResourceStatus: model.ResourceStatusPending, Detail: body.Status}
	}
}

// Exists returns whether the workspace already has a mesh.
func (c *CLIClient) Exists(ctx context.Context, workspace string) (bool, error) {
	res, err := c.run(ctx, "mesh", "describe", "--workspace", workspace, "--output", "json")
	if err != nil {
		return false, fmt.Errorf("could not check mesh existence: %w", err)
	}

	if res.ExitCode == 0 {
		return true, nil
	}

	if isNotFoundOutput(res) {
		return false, nil
	}

	return false, fmt.Errorf("mesh describe failed: %s", cliErrorBody(res))
}

// Delete removes the workspace mesh. Transient failures are retried with a
// short exponential backoff, an absent mesh counts as deleted.
func (c *CLIClient) Delete(ctx context.Context, workspace string) error {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = deleteRetryMaxElapsed

	op := func() error {
		res, err := c.run(ctx, "mesh", "delete", "--workspace", workspace, "--force")
		if err != nil {
			return err // The CLI didn't answer, worth retrying.
		}

		if res.ExitCode == 0 || isNotFoundOutput(res) {
			return nil
		}

		if isTransientOutput(res) {
			return fmt.Errorf("transient mesh delete failure: %s", cliErrorBody(res))
		}

		return backoff.Permanent(fmt.Errorf("mesh delete failed: %s", cliErrorBody(res)))
	}

	err := backoff.Retry(op, backoff.WithContext(bo, ctx))
	if err != nil {
		return fmt.Errorf("could not delete mesh for workspace %s: %w", workspace, err)
	}

	c.logger.Infof("Deleted mesh for workspace %s", workspace)
	return nil
}

// run executes a single mesh CLI call bounded by the configured call timeout.
func (c *CLIClient) run(ctx context.Context, args ...string) (*runner.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	return c.runner.Run(ctx, c.binary, args...)
}

func cliErrorBody(res *runner.Result) string {
	body := strings.TrimSpace(res.Stderr)
	if body == "" {
		body = strings.TrimSpace(res.Stdout)
	}
	if body == "" {
		body = fmt.Sprintf("exit code %d", res.ExitCode)
	}
	return body
}

func isNotFoundOutput(res *runner.Result) bool {
	body := strings.ToLower(cliErrorBody(res))
	return strings.Contains(body, "not found") || strings.Contains(body, "no mesh")
}

// isTransientOutput reports whether a failed CLI call looks like a network or
// service blip rather than a real rejection.
func isTransientOutput(res *runner.Result) bool {
	body := strings.ToLower(cliErrorBody(res))
	for _, s := range []string{
		"connection refused",
		"connection reset",
		"timed out",
		"timeout",
		"i/o timeout",
		"temporary failure",
		"network is unreachable",
		"service unavailable",
		"too many requests",
		"rate limit",
	} {
		if strings.Contains(body, s) {
			return true
		}
	}
	return false
}
