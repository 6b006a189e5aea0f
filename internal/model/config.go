package model

import (
	"fmt"
	"time"
)

const (
	// DefaultPollInterval is the default wait between mesh status polls.
	DefaultPollInterval = 10 * time.Second
	// DefaultTotalTimeout is the default overall deployment polling budget.
	DefaultTotalTimeout = 180 * time.Second
)

// DeployConfig is the tunable policy for one deployment session. Provisioning
// latency varies by external service load, so none of these are structural
// constants.
type DeployConfig struct {
	Workspace  string
	ProjectDir string

	PollInterval time.Duration
	TotalTimeout time.Duration
	// MaxAttempts overrides the derived TotalTimeout/PollInterval attempt budget.
	MaxAttempts int
}

// Defaults applies default values and derives MaxAttempts.
func (c *DeployConfig) Defaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.TotalTimeout <= 0 {
		c.TotalTimeout = DefaultTotalTimeout
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = int(c.TotalTimeout / c.PollInterval)
		if c.MaxAttempts < 1 {
			c.MaxAttempts = 1
		}
	}
}

// Validate validates the deployment configuration.
func (c *DeployConfig) Validate() error {
	c.Defaults()

	if c.Workspace == "" {
		return fmt.Errorf("workspace is required: %w", ErrNotValid)
	}
	if c.ProjectDir == "" {
		return fmt.Errorf("project dir is required: %w", ErrNotValid)
	}
	if c.PollInterval > c.TotalTimeout {
		return fmt.Errorf("poll interval can't be greater than the total timeout: %w", ErrNotValid)
	}

	return nil
}

// PollCallTimeout is the bound for a single status call. It is strictly shorter
// than the poll interval so a hung call can't stall the whole budget.
func (c *DeployConfig) PollCallTimeout() time.Duration {
	return c.PollInterval / 2
}
