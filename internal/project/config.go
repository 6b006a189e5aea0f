package project

import (
	"context"
	"fmt"
	"io/fs"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/meshup-sh/meshup/internal/model"
)

// ConfigFileName is the project configuration file written by the setup flow
// at the project root.
const ConfigFileName = "meshup.yaml"

// Settings is the validated project configuration for the deployment step.
type Settings struct {
	Deploy     model.DeployConfig
	MeshBinary string
}

// ConfigYAMLRepository loads project configuration from YAML files.
type ConfigYAMLRepository struct {
	fs fs.FS
}

// NewConfigYAMLRepository creates a new YAML config repository.
func NewConfigYAMLRepository(filesystem fs.FS) *ConfigYAMLRepository {
	return &ConfigYAMLRepository{fs: filesystem}
}

// GetSettings loads the project configuration from a YAML file and returns a
// validated domain model.
func (r *ConfigYAMLRepository) GetSettings(ctx context.Context, path, projectDir string) (*Settings, error) {
	data, err := fs.ReadFile(r.fs, path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var cfg projectConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}

	settings := cfg.toModel(projectDir)
	if err := settings.Deploy.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return settings, nil
}

// projectConfig represents the YAML structure of meshup.yaml.
type projectConfig struct {
	Workspace string       `yaml:"workspace"`
	Mesh      meshConfig   `yaml:"mesh"`
	Deploy    deployConfig `yaml:"deploy"`
}

// meshConfig represents the YAML structure of the mesh CLI configuration.
type meshConfig struct {
	Binary string `yaml:"binary,omitempty"`
}

// deployConfig represents the YAML structure of the deployment policy.
type deployConfig struct {
	PollIntervalMS int `yaml:"poll_interval_ms,omitempty"`
	TotalTimeoutMS int `yaml:"total_timeout_ms,omitempty"`
	MaxAttempts    int `yaml:"max_attempts,omitempty"`
}

func (c projectConfig) toModel(projectDir string) *Settings {
	return &Settings{
		Deploy: model.DeployConfig{
			Workspace:    c.Workspace,
			ProjectDir:   projectDir,
			PollInterval: time.Duration(c.Deploy.PollIntervalMS) * time.Millisecond,
			TotalTimeout: time.Duration(c.Deploy.TotalTimeoutMS) * time.Millisecond,
			MaxAttempts:  c.Deploy.MaxAttempts,
		},
		MeshBinary: c.Mesh.Binary,
	}
}
