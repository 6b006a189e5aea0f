package mesh

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/meshup-sh/meshup/internal/model"
)

// Check runs the mesh CLI preflight checks.
func (c *CLIClient) Check(ctx context.Context) []model.CheckResult {
	var results []model.CheckResult

	// Check 1: CLI binary on PATH
	results = append(results, c.checkBinary())

	// Check 2: CLI answers
	results = append(results, c.checkResponding(ctx))

	return results
}

// checkBinary checks if the mesh vendor CLI is available.
func (c *CLIClient) checkBinary() model.CheckResult {
	path, err := exec.LookPath(c.binary)
	if err != nil {
		return model.CheckResult{
			ID:      "mesh_cli_available",
			Message: fmt.Sprintf("%s not found in PATH", c.binary),
			Status:  model.CheckStatusError,
		}
	}

	return model.CheckResult{
		ID:      "mesh_cli_available",
		Message: fmt.Sprintf("Mesh CLI found at %s", path),
		Status:  model.CheckStatusOK,
	}
}

// checkResponding checks if the CLI answers a version call within the call
// timeout.
func (c *CLIClient) checkResponding(ctx context.Context) model.CheckResult {
	res, err := c.run(ctx, "version")
	if err != nil {
		return model.CheckResult{
			ID:      "mesh_cli_responding",
			Message: fmt.Sprintf("Mesh CLI did not answer: %v", err),
			Status:  model.CheckStatusError,
		}
	}

	if res.ExitCode != 0 {
		return model.CheckResult{
			ID:      "mesh_cli_responding",
			Message: fmt.Sprintf("Mesh CLI version call failed: %s", cliErrorBody(res)),
			Status:  model.CheckStatusWarning,
		}
	}

	version := strings.TrimSpace(res.Stdout)
	if version == "" {
		version = "unknown version"
	}
	return model.CheckResult{
		ID:      "mesh_cli_responding",
		Message: fmt.Sprintf("Mesh CLI answering (%s)", version),
		Status:  model.CheckStatusOK,
	}
}
