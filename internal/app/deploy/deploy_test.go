package deploy_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/meshup-sh/meshup/internal/app/deploy"
	"github.com/meshup-sh/meshup/internal/mesh/meshmock"
	"github.com/meshup-sh/meshup/internal/model"
	"github.com/meshup-sh/meshup/internal/ownership/ownershipmock"
	"github.com/meshup-sh/meshup/internal/storage/storagemock"
)

type scriptedPrompter struct {
	choices []deploy.Choice
	calls   int
}

func (p *scriptedPrompter) RecoveryChoice(ctx context.Context, s model.Session) (deploy.Choice, error) {
	if p.calls >= len(p.choices) {
		return deploy.ChoiceCancel, nil
	}
	c := p.choices[p.calls]
	p.calls++
	return c, nil
}

func testConfig() model.DeployConfig {
	return model.DeployConfig{
		Workspace:    "acme-staging",
		ProjectDir:   "/tmp/acme",
		PollInterval: 10 * time.Millisecond,
		TotalTimeout: 20 * time.Millisecond,
	}
}

func TestNewService(t *testing.T) {
	tests := map[string]struct {
		config deploy.ServiceConfig
		expErr bool
	}{
		"valid config": {
			config: deploy.ServiceConfig{
				Repository:     &storagemock.MockRepository{},
				Mesh:           &meshmock.MockLifecycle{},
				ProjectRemover: &ownershipmock.MockProjectRemover{},
				Prompter:       &scriptedPrompter{},
			},
			expErr: false,
		},
		"missing repository": {
			config: deploy.ServiceConfig{
				Mesh:           &meshmock.MockLifecycle{},
				ProjectRemover: &ownershipmock.MockProjectRemover{},
				Prompter:       &scriptedPrompter{},
			},
			expErr: true,
		},
		"missing prompter": {
			config: deploy.ServiceConfig{
				Repository:     &storagemock.MockRepository{},
				Mesh:           &meshmock.MockLifecycle{},
				ProjectRemover: &ownershipmock.MockProjectRemover{},
			},
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			require := require.New(t)
			svc, err := deploy.NewService(test.config)
			if test.expErr {
				require.Error(err)
			} else {
				require.NoError(err)
				require.NotNil(svc)
			}
		})
	}
}

func newService(t *testing.T, mesh *meshmock.MockLifecycle, repo *storagemock.MockRepository, remover *ownershipmock.MockProjectRemover, prompter deploy.Prompter) *deploy.Service {
	t.Helper()
	svc, err := deploy.NewService(deploy.ServiceConfig{
		Repository:     repo,
		Mesh:           mesh,
		ProjectRemover: remover,
		Prompter:       prompter,
		IDGenerator:    func() string { return "session-1" },
	})
	require.NoError(t, err)
	return svc
}

func TestServiceDeploySuccess(t *testing.T) {
	mm := &meshmock.MockLifecycle{}
	mr := &storagemock.MockRepository{}
	remover := &ownershipmock.MockProjectRemover{}
	prompter := &scriptedPrompter{}

	mm.On("Exists", mock.Anything, "acme-staging").Once().Return(false, nil)
	mm.On("Submit", mock.Anything, "acme-staging").Once().Return(nil)
	mm.On("Status", mock.Anything, "acme-staging").Return(model.PollOutcome{
		ReachedTerminal: true,
		ResourceStatus:  model.ResourceStatusDeployed,
		Endpoint:        "https://example.mesh/graphql",
	})
	mr.On("CreateSession", mock.Anything, mock.Anything).Once().Return(nil)
	mr.On("UpdateSession", mock.Anything, mock.Anything).Return(nil)

	svc := newService(t, mm, mr, remover, prompter)
	got, err := svc.Deploy(context.Background(), deploy.DeployOptions{Config: testConfig()})

	require.NoError(t, err)
	assert.Equal(t, model.SessionStatusSuccess, got.Status)
	assert.Equal(t, "session-1", got.ID)
	assert.Equal(t, "https://example.mesh/graphql", got.Endpoint)
	assert.Equal(t, "acme-staging", got.Ownership.MeshCreatedForWorkspace)
	assert.Equal(t, 0, prompter.calls)

	mm.AssertExpectations(t)
	mr.AssertExpectations(t)
	remover.AssertExpectations(t)
}

func TestServiceDeployRejectedThenCancel(t *testing.T) {
	mm := &meshmock.MockLifecycle{}
	mr := &storagemock.MockRepository{}
	remover := &ownershipmock.MockProjectRemover{}
	prompter := &scriptedPrompter{choices: []deploy.Choice{deploy.ChoiceCancel}}

	mm.On("Exists", mock.Anything, "acme-staging").Once().Return(false, nil)
	mm.On("Submit", mock.Anything, "acme-staging").Once().Return(&model.SubmissionError{Output: "quota exceeded"})
	// The submission never succeeded, so the mesh is not owned and must not be
	// deleted. Only the project directory goes.
	remover.On("Remove", mock.Anything, "/tmp/acme").Once().Return(nil)
	mr.On("CreateSession", mock.Anything, mock.Anything).Once().Return(nil)
	mr.On("UpdateSession", mock.Anything, mock.Anything).Return(nil)

	svc := newService(t, mm, mr, remover, prompter)
	got, err := svc.Deploy(context.Background(), deploy.DeployOptions{Config: testConfig()})

	require.NoError(t, err)
	assert.Equal(t, model.SessionStatusCancelled, got.Status)
	assert.Contains(t, got.ErrMessage, "quota exceeded")
	assert.Equal(t, 1, prompter.calls)

	mm.AssertExpectations(t)
	mr.AssertExpectations(t)
	remover.AssertExpectations(t)
	mm.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestServiceDeployTimeoutThenRetrySucceeds(t *testing.T) {
	mm := &meshmock.MockLifecycle{}
	mr := &storagemock.MockRepository{}
	remover := &ownershipmock.MockProjectRemover{}
	prompter := &scriptedPrompter{choices: []deploy.Choice{deploy.ChoiceRetry}}

	pending := model.PollOutcome{ResourceStatus: model.ResourceStatusPending}
	deployed := model.PollOutcome{
		ReachedTerminal: true,
		ResourceStatus:  model.ResourceStatusDeployed,
		Endpoint:        "https://example.mesh/graphql",
	}

	mm.On("Exists", mock.Anything, "acme-staging").Once().Return(false, nil)
	mm.On("Submit", mock.Anything, "acme-staging").Times(2).Return(nil)
	// First attempt burns the whole two-poll budget, the retry succeeds right
	// away.
	mm.On("Status", mock.Anything, "acme-staging").Times(2).Return(pending)
	mm.On("Status", mock.Anything, "acme-staging").Once().Return(deployed)
	mr.On("CreateSession", mock.Anything, mock.Anything).Once().Return(nil)
	mr.On("UpdateSession", mock.Anything, mock.Anything).Return(nil)

	svc := newService(t, mm, mr, remover, prompter)
	got, err := svc.Deploy(context.Background(), deploy.DeployOptions{Config: testConfig()})

	require.NoError(t, err)
	assert.Equal(t, model.SessionStatusSuccess, got.Status)
	assert.Equal(t, 2, got.Attempt)
	assert.Equal(t, 1, prompter.calls)

	mm.AssertExpectations(t)
	mr.AssertExpectations(t)
}

func TestServiceDeployInconclusivePreflightAborts(t *testing.T) {
	mm := &meshmock.MockLifecycle{}
	mr := &storagemock.MockRepository{}
	remover := &ownershipmock.MockProjectRemover{}
	prompter := &scriptedPrompter{}

	mm.On("Exists", mock.Anything, "acme-staging").Once().Return(false, assert.AnError)

	svc := newService(t, mm, mr, remover, prompter)
	_, err := svc.Deploy(context.Background(), deploy.DeployOptions{Config: testConfig()})

	require.Error(t, err)
	mm.AssertExpectations(t)
	mm.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything)
	mr.AssertNotCalled(t, "CreateSession", mock.Anything, mock.Anything)
}

func TestServiceDeployInvalidConfig(t *testing.T) {
	svc := newService(t, &meshmock.MockLifecycle{}, &storagemock.MockRepository{}, &ownershipmock.MockProjectRemover{}, &scriptedPrompter{})

	_, err := svc.Deploy(context.Background(), deploy.DeployOptions{Config: model.DeployConfig{}})

	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrNotValid)
}
