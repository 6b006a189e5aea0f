package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/alecthomas/kingpin/v2"

	"github.com/meshup-sh/meshup/internal/mesh"
	"github.com/meshup-sh/meshup/internal/model"
	"github.com/meshup-sh/meshup/internal/runner"
)

type DoctorCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand
}

// NewDoctorCommand returns the doctor command.
func NewDoctorCommand(rootCmd *RootCommand, app *kingpin.Application) *DoctorCommand {
	c := &DoctorCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("doctor", "Run preflight checks for mesh deployments.")

	return c
}

func (c DoctorCommand) Name() string { return c.Cmd.FullCommand() }

func (c DoctorCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger
	out := c.rootCmd.Stdout

	execRunner, err := runner.NewExecRunner(runner.ExecRunnerConfig{Logger: logger})
	if err != nil {
		return fmt.Errorf("could not create runner: %w", err)
	}
	meshClient, err := mesh.NewCLIClient(mesh.CLIClientConfig{
		Runner: execRunner,
		Binary: c.rootCmd.MeshBinary,
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("could not create mesh client: %w", err)
	}

	results := meshClient.Check(ctx)
	results = append(results, c.checkDBDir())

	// Print results
	totalErrors := 0
	totalWarnings := 0

	fmt.Fprintf(out, "Checking mesh deployment environment...\n")
	for _, r := range results {
		icon := getStatusIcon(r.Status)
		fmt.Fprintf(out, "  %s %-22s %s\n", icon, r.ID, r.Message)

		switch r.Status {
		case model.CheckStatusError:
			totalErrors++
		case model.CheckStatusWarning:
			totalWarnings++
		}
	}

	// Summary
	fmt.Fprintln(out)
	if totalErrors == 0 && totalWarnings == 0 {
		fmt.Fprintln(out, "All checks passed!")
	} else {
		var summary []string
		if totalErrors > 0 {
			summary = append(summary, fmt.Sprintf("%d error(s)", totalErrors))
		}
		if totalWarnings > 0 {
			summary = append(summary, fmt.Sprintf("%d warning(s)", totalWarnings))
		}
		fmt.Fprintf(out, "%s\n", joinWithComma(summary))
	}

	if totalErrors > 0 {
		return fmt.Errorf("preflight checks failed with %d error(s)", totalErrors)
	}

	return nil
}

// checkDBDir checks that the session database directory is writable.
func (c DoctorCommand) checkDBDir() model.CheckResult {
	dir := filepath.Dir(c.rootCmd.DBPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return model.CheckResult{
			ID:      "session_db_writable",
			Message: fmt.Sprintf("Cannot create %s: %v", dir, err),
			Status:  model.CheckStatusError,
		}
	}

	f, err := os.CreateTemp(dir, ".doctor-*")
	if err != nil {
		return model.CheckResult{
			ID:      "session_db_writable",
			Message: fmt.Sprintf("No write permission in %s: %v", dir, err),
			Status:  model.CheckStatusError,
		}
	}
	f.Close()
	os.Remove(f.Name())

	return model.CheckResult{
		ID:      "session_db_writable",
		Message: fmt.Sprintf("Session history directory %s is writable", dir),
		Status:  model.CheckStatusOK,
	}
}

func getStatusIcon(status model.CheckStatus) string {
	switch status {
	case model.CheckStatusOK:
		return "OK"
	case model.CheckStatusWarning:
		return "!!"
	case model.CheckStatusError:
		return "XX"
	default:
		return "??"
	}
}

func joinWithComma(parts []string) string {
	if len(parts) == 0 {
		return ""
	}
	if len(parts) == 1 {
		return parts[0]
	}
	result := parts[0]
	for i := 1; i < len(parts); i++ {
		result += ", " + parts[i]
	}
	return result
}
