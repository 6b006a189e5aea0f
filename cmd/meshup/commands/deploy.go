package commands

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/alecthomas/kingpin/v2"

	"github.com/meshup-sh/meshup/internal/app/deploy"
	"github.com/meshup-sh/meshup/internal/mesh"
	"github.com/meshup-sh/meshup/internal/model"
	"github.com/meshup-sh/meshup/internal/project"
	"github.com/meshup-sh/meshup/internal/runner"
	"github.com/meshup-sh/meshup/internal/storage/sqlite"
)

type DeployCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	projectDir   string
	workspace    string
	pollInterval time.Duration
	totalTimeout time.Duration
	maxAttempts  int
	noInput      bool
	autoRetries  int
}

// NewDeployCommand returns the deploy command.
func NewDeployCommand(rootCmd *RootCommand, app *kingpin.Application) *DeployCommand {
	c := &DeployCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("deploy", "Deploy the project's mesh and verify it comes up.")
	c.Cmd.Arg("project-dir", "Project directory containing "+project.ConfigFileName+".").Required().StringVar(&c.projectDir)
	c.Cmd.Flag("workspace", "Override the workspace from the project config.").StringVar(&c.workspace)
	c.Cmd.Flag("poll-interval", "Wait between mesh status polls.").DurationVar(&c.pollInterval)
	c.Cmd.Flag("total-timeout", "Overall polling budget per attempt.").DurationVar(&c.totalTimeout)
	c.Cmd.Flag("max-attempts", "Override the derived poll budget.").IntVar(&c.maxAttempts)
	c.Cmd.Flag("no-input", "Never prompt, cancel on recoverable failures.").BoolVar(&c.noInput)
	c.Cmd.Flag("auto-retries", "With --no-input, retry this many times before cancelling.").IntVar(&c.autoRetries)

	return c
}

func (c DeployCommand) Name() string { return c.Cmd.FullCommand() }

func (c DeployCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger
	out := c.rootCmd.Stdout

	// Load project configuration.
	cfgRepo := project.NewConfigYAMLRepository(os.DirFS(c.projectDir))
	settings, err := cfgRepo.GetSettings(ctx, project.ConfigFileName, c.projectDir)
	if err != nil {
		return fmt.Errorf("could not load project config: %w", err)
	}

	cfg := settings.Deploy
	if c.workspace != "" {
		cfg.Workspace = c.workspace
	}
	if c.pollInterval > 0 {
		cfg.PollInterval = c.pollInterval
	}
	if c.totalTimeout > 0 {
		cfg.TotalTimeout = c.totalTimeout
	}
	if c.maxAttempts > 0 {
		cfg.MaxAttempts = c.maxAttempts
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid deployment config: %w", err)
	}

	binary := settings.MeshBinary
	if binary == "" {
		binary = c.rootCmd.MeshBinary
	}

	// Initialize mesh CLI client.
	execRunner, err := runner.NewExecRunner(runner.ExecRunnerConfig{Logger: logger})
	if err != nil {
		return fmt.Errorf("could not create runner: %w", err)
	}
	meshClient, err := mesh.NewCLIClient(mesh.CLIClientConfig{
		Runner:      execRunner,
		Binary:      binary,
		CallTimeout: cfg.PollCallTimeout(),
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("could not create mesh client: %w", err)
	}

	projectManager, err := project.NewManager(project.ManagerConfig{Logger: logger})
	if err != nil {
		return fmt.Errorf("could not create project manager: %w", err)
	}

	// Initialize storage (SQLite).
	repo, err := sqlite.NewRepository(ctx, sqlite.RepositoryConfig{
		DBPath: c.rootCmd.DBPath,
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("could not create repository: %w", err)
	}
	defer repo.Close()

	var prompter deploy.Prompter
	if c.noInput {
		prompter = &autoPrompter{out: out, retries: c.autoRetries}
	} else {
		prompter = &terminalPrompter{in: c.rootCmd.Stdin, out: out}
	}

	// Create deploy service.
	svc, err := deploy.NewService(deploy.ServiceConfig{
		Repository:     repo,
		Mesh:           meshClient,
		ProjectRemover: projectManager,
		Prompter:       prompter,
		Notifier:       &progressWriter{out: out},
		Logger:         logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	fmt.Fprintf(out, "Deploying mesh for workspace %s (poll every %s, budget %d polls)\n", cfg.Workspace, cfg.PollInterval, cfg.MaxAttempts)

	// Execute deployment.
	session, err := svc.Deploy(ctx, deploy.DeployOptions{Config: cfg})
	if err != nil {
		return fmt.Errorf("could not deploy mesh: %w", err)
	}

	switch session.Status {
	case model.SessionStatusSuccess:
		fmt.Fprintf(out, "\nMesh deployed for workspace %s\n", session.Workspace)
		if session.Endpoint != "" {
			fmt.Fprintf(out, "Endpoint: %s\n", session.Endpoint)
		}
		return nil
	default:
		fmt.Fprintf(out, "\nDeployment cancelled, session resources rolled back\n")
		for _, w := range session.Warnings {
			fmt.Fprintf(out, "Warning: %s\n", w)
		}
		return fmt.Errorf("deployment did not complete (session %s)", session.ID)
	}
}

// progressWriter prints a progress line per poll.
type progressWriter struct {
	out io.Writer
}

func (p *progressWriter) Progress(s model.Session) {
	if s.Status != model.SessionStatusVerifying {
		return
	}
	fmt.Fprintf(p.out, "  attempt %d: verifying mesh... %ds elapsed\n", s.Attempt, s.ElapsedSeconds())
}

// terminalPrompter asks on the terminal whether to retry or cancel.
type terminalPrompter struct {
	in  io.Reader
	out io.Writer
}

func (p *terminalPrompter) RecoveryChoice(ctx context.Context, s model.Session) (deploy.Choice, error) {
	switch s.Status {
	case model.SessionStatusTimeout:
		fmt.Fprintf(p.out, "\nNo mesh after %d polls (attempt %d). The deployment may still finish on the provider side.\n", s.MaxAttempts, s.Attempt)
	default:
		fmt.Fprintf(p.out, "\nDeployment failed (attempt %d): %s\n", s.Attempt, s.ErrMessage)
	}

	scanner := bufio.NewScanner(p.in)
	for {
		fmt.Fprintf(p.out, "Retry or cancel? [r/c]: ")
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return deploy.ChoiceCancel, fmt.Errorf("could not read answer: %w", err)
			}
			return deploy.ChoiceCancel, fmt.Errorf("input closed")
		}

		switch strings.ToLower(strings.TrimSpace(scanner.Text())) {
		case "r", "retry":
			return deploy.ChoiceRetry, nil
		case "c", "cancel":
			return deploy.ChoiceCancel, nil
		}
	}
}

// autoPrompter answers without user interaction: a fixed number of retries,
// then cancel.
type autoPrompter struct {
	out     io.Writer
	retries int
	used    int
}

func (p *autoPrompter) RecoveryChoice(ctx context.Context, s model.Session) (deploy.Choice, error) {
	if p.used < p.retries {
		p.used++
		fmt.Fprintf(p.out, "\nRecoverable failure on attempt %d, retrying (%d/%d)\n", s.Attempt, p.used, p.retries)
		return deploy.ChoiceRetry, nil
	}
	fmt.Fprintf(p.out, "\nRecoverable failure on attempt %d, cancelling (--no-input)\n", s.Attempt)
	return deploy.ChoiceCancel, nil
}
