package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/meshup-sh/meshup/internal/app/rollback"
	"github.com/meshup-sh/meshup/internal/mesh"
	"github.com/meshup-sh/meshup/internal/printer"
	"github.com/meshup-sh/meshup/internal/project"
	"github.com/meshup-sh/meshup/internal/runner"
	"github.com/meshup-sh/meshup/internal/storage/sqlite"
)

type RollbackCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	sessionID string
	workspace string
	format    string
}

// NewRollbackCommand returns the rollback command.
func NewRollbackCommand(rootCmd *RootCommand, app *kingpin.Application) *RollbackCommand {
	c := &RollbackCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("rollback", "Roll back a session that never finished (e.g. after a crash).")
	c.Cmd.Flag("session", "Session ID to roll back.").StringVar(&c.sessionID)
	c.Cmd.Flag("workspace", "Roll back the latest session of this workspace.").StringVar(&c.workspace)
	c.Cmd.Flag("format", "Output format (table, json).").Default("table").EnumVar(&c.format, "table", "json")

	return c
}

func (c RollbackCommand) Name() string { return c.Cmd.FullCommand() }

func (c RollbackCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	// Initialize storage (SQLite).
	repo, err := sqlite.NewRepository(ctx, sqlite.RepositoryConfig{
		DBPath: c.rootCmd.DBPath,
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("could not create repository: %w", err)
	}
	defer repo.Close()

	// Initialize mesh CLI client.
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

	projectManager, err := project.NewManager(project.ManagerConfig{Logger: logger})
	if err != nil {
		return fmt.Errorf("could not create project manager: %w", err)
	}

	// Create rollback service.
	svc, err := rollback.NewService(rollback.ServiceConfig{
		Repository:     repo,
		Mesh:           meshClient,
		ProjectRemover: projectManager,
		Logger:         logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	// Execute rollback.
	session, err := svc.Rollback(ctx, rollback.RollbackOptions{
		SessionID: c.sessionID,
		Workspace: c.workspace,
	})
	if err != nil {
		return fmt.Errorf("could not roll back session: %w", err)
	}

	// Print output.
	var p printer.Printer
	switch c.format {
	case "json":
		p = printer.NewJSONPrinter(c.rootCmd.Stdout)
	default: // table
		p = printer.NewTablePrinter(c.rootCmd.Stdout)
	}

	if err := p.PrintStatus(*session); err != nil {
		return fmt.Errorf("could not print session: %w", err)
	}

	return nil
}
