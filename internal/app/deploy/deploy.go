package deploy

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/meshup-sh/meshup/internal/log"
	"github.com/meshup-sh/meshup/internal/mesh"
	"github.com/meshup-sh/meshup/internal/model"
	"github.com/meshup-sh/meshup/internal/ownership"
	"github.com/meshup-sh/meshup/internal/session"
	"github.com/meshup-sh/meshup/internal/storage"
	"github.com/meshup-sh/meshup/internal/verify"
)

// Choice is the user decision after a recoverable failure.
type Choice string

const (
	// ChoiceRetry re-submits the deployment with a fresh attempt.
	ChoiceRetry Choice = "retry"
	// ChoiceCancel rolls back the session resources and ends it.
	ChoiceCancel Choice = "cancel"
)

// Prompter asks the user what to do after a recoverable failure.
type Prompter interface {
	RecoveryChoice(ctx context.Context, s model.Session) (Choice, error)
}

// Notifier receives session progress snapshots while polling runs.
type Notifier interface {
	Progress(s model.Session)
}

// ServiceConfig is the configuration for the deploy service.
type ServiceConfig struct {
	Repository     storage.Repository
	Mesh           mesh.Lifecycle
	ProjectRemover ownership.ProjectRemover
	Prompter       Prompter
	Notifier       Notifier
	// IDGenerator generates session IDs. Defaults to ULIDs.
	IDGenerator func() string
	Logger      log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Repository == nil {
		return fmt.Errorf("repository is required")
	}
	if c.Mesh == nil {
		return fmt.Errorf("mesh lifecycle is required")
	}
	if c.ProjectRemover == nil {
		return fmt.Errorf("project remover is required")
	}
	if c.Prompter == nil {
		return fmt.Errorf("prompter is required")
	}
	if c.IDGenerator == nil {
		c.IDGenerator = func() string {
			return ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
		}
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Deploy"})
	return nil
}

// Service drives a whole deployment session: submit, verify, and on
// recoverable failures loop through the user's retry/cancel decisions until
// the session ends in success or a rolled back cancellation.
type Service struct {
	repo           storage.Repository
	mesh           mesh.Lifecycle
	projectRemover ownership.ProjectRemover
	prompter       Prompter
	notifier       Notifier
	idGen          func() string
	logger         log.Logger
}

// NewService creates a new deploy service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		repo:           cfg.Repository,
		mesh:           cfg.Mesh,
		projectRemover: cfg.ProjectRemover,
		prompter:       cfg.Prompter,
		notifier:       cfg.Notifier,
		idGen:          cfg.IDGenerator,
		logger:         cfg.Logger,
	}, nil
}

// DeployOptions are the options for running a deployment session.
type DeployOptions struct {
	Config model.DeployConfig
}

type terminal struct {
	status model.SessionStatus
	detail session.TerminalDetail
}

// Deploy runs one deployment session to completion and returns the final
// session state. The session record is persisted across every state change so
// a crash mid-deployment can still be rolled back later.
func (s *Service) Deploy(ctx context.Context, opts DeployOptions) (*model.Session, error) {
	cfg := opts.Config
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	tracker, err := ownership.NewTracker(ownership.TrackerConfig{
		Mesh:    s.mesh,
		Project: s.projectRemover,
		Logger:  s.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create ownership tracker: %w", err)
	}

	// One remote existence check per session, before anything is submitted.
	// Without the answer a rollback could delete a mesh this session never
	// created, so an inconclusive check aborts the whole deployment.
	if err := tracker.CheckPreexisting(ctx, cfg.Workspace); err != nil {
		return nil, err
	}

	verifier, err := verify.NewVerifier(verify.VerifierConfig{
		Mesh:         s.mesh,
		PollInterval: cfg.PollInterval,
		MaxPolls:     cfg.MaxAttempts,
		Logger:       s.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create verifier: %w", err)
	}

	terminalCh := make(chan terminal, 4)

	var ctrl *session.Controller
	ctrl, err = session.NewController(session.ControllerConfig{
		SessionID: s.idGen(),
		Config:    cfg,
		Deployer:  verifier,
		Tracker:   tracker,
		OnUpdate: func(attempt int, elapsed time.Duration, status model.SessionStatus) {
			snap := s.snapshot(ctrl, tracker)
			s.persist(ctx, snap)
			if s.notifier != nil {
				s.notifier.Progress(snap)
			}
		},
		OnTerminal: func(status model.SessionStatus, detail session.TerminalDetail) {
			terminalCh <- terminal{status: status, detail: detail}
		},
		Logger: s.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create session controller: %w", err)
	}

	// The record exists before the first remote side effect so an operator can
	// always find what to roll back.
	rec := ctrl.Session()
	rec.Status = model.SessionStatusDeploying
	rec.Attempt = 1
	rec.Ownership = tracker.Ownership()
	rec.CreatedAt = time.Now().UTC()
	if err := s.repo.CreateSession(ctx, rec); err != nil {
		return nil, fmt.Errorf("could not save session: %w", err)
	}

	if err := ctrl.Start(ctx); err != nil {
		return nil, fmt.Errorf("could not start session: %w", err)
	}

	return s.recoveryLoop(ctx, ctrl, tracker, terminalCh)
}

// recoveryLoop waits for terminal results and drives retry/cancel decisions
// until the session reaches success or cancelled.
func (s *Service) recoveryLoop(ctx context.Context, ctrl *session.Controller, tracker *ownership.Tracker, terminalCh <-chan terminal) (*model.Session, error) {
	cancelling := false
	ctxDone := ctx.Done()

	for {
		select {
		case <-ctxDone:
			ctxDone = nil
			s.logger.Warningf("Deployment interrupted, rolling back")
			ctrl.Cancel()
			cancelling = true

		case t := <-terminalCh:
			snap := s.snapshot(ctrl, tracker)
			s.persistFinal(snap)

			switch {
			case t.status == model.SessionStatusSuccess:
				s.logger.Infof("Mesh deployed at %s", t.detail.Endpoint)
				return &snap, nil

			case t.status == model.SessionStatusCancelled:
				return &snap, nil

			case t.status.Recoverable() && !cancelling:
				choice, err := s.prompter.RecoveryChoice(ctx, snap)
				if err != nil {
					s.logger.Warningf("Could not get recovery choice, cancelling: %s", err)
					choice = ChoiceCancel
				}
				if choice == ChoiceRetry {
					ctrl.Retry()
					continue
				}
				ctrl.Cancel()
				cancelling = true
			}
		}
	}
}

func (s *Service) snapshot(ctrl *session.Controller, tracker *ownership.Tracker) model.Session {
	snap := ctrl.Session()
	snap.Ownership = tracker.Ownership()
	return snap
}

// persist updates the stored session record. Persistence failures degrade to
// warnings: the deployment itself matters more than its history.
func (s *Service) persist(ctx context.Context, snap model.Session) {
	err := s.repo.UpdateSession(ctx, snap)
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Warningf("Could not persist session %s: %s", snap.ID, err)
	}
}

// persistFinal persists with its own context so the terminal state survives a
// cancelled deployment context.
func (s *Service) persistFinal(snap model.Session) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.persist(ctx, snap)
}
