package verify_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/meshup-sh/meshup/internal/mesh/meshmock"
	"github.com/meshup-sh/meshup/internal/model"
	"github.com/meshup-sh/meshup/internal/verify"
)

func TestVerifierRun(t *testing.T) {
	tests := map[string]struct {
		maxPolls     int
		setupMocks   func(m *meshmock.MockLifecycle)
		expErr       bool
		expBudget    bool
		expSubmitted bool
		expOutcome   model.PollOutcome
	}{
		"Transient unreachable polls don't abort a healthy deployment": {
			maxPolls: 10,
			setupMocks: func(m *meshmock.MockLifecycle) {
				m.On("Submit", mock.Anything, "acme-staging").Return(nil).Once()
				unreachable := model.PollOutcome{ResourceStatus: model.ResourceStatusUnreachable, Detail: "connection refused"}
				m.On("Status", mock.Anything, "acme-staging").Return(unreachable).Times(3)
				m.On("Status", mock.Anything, "acme-staging").Return(model.PollOutcome{
					ReachedTerminal: true,
					ResourceStatus:  model.ResourceStatusDeployed,
					Endpoint:        "https://example.mesh/graphql",
				}).Once()
			},
			expSubmitted: true,
			expOutcome: model.PollOutcome{
				ReachedTerminal: true,
				ResourceStatus:  model.ResourceStatusDeployed,
				Endpoint:        "https://example.mesh/graphql",
			},
		},

		"Only pending polls exhaust the budget": {
			maxPolls: 3,
			setupMocks: func(m *meshmock.MockLifecycle) {
				m.On("Submit", mock.Anything, "acme-staging").Return(nil).Once()
				m.On("Status", mock.Anything, "acme-staging").
					Return(model.PollOutcome{ResourceStatus: model.ResourceStatusPending}).Times(3)
			},
			expErr:       true,
			expBudget:    true,
			expSubmitted: true,
		},

		"A failed poll is terminal immediately, remaining polls are not spent": {
			maxPolls: 10,
			setupMocks: func(m *meshmock.MockLifecycle) {
				m.On("Submit", mock.Anything, "acme-staging").Return(nil).Once()
				m.On("Status", mock.Anything, "acme-staging").
					Return(model.PollOutcome{ResourceStatus: model.ResourceStatusPending}).Once()
				m.On("Status", mock.Anything, "acme-staging").Return(model.PollOutcome{
					ReachedTerminal: true,
					ResourceStatus:  model.ResourceStatusFailed,
					Detail:          "schema composition error",
				}).Once()
			},
			expSubmitted: true,
			expOutcome: model.PollOutcome{
				ReachedTerminal: true,
				ResourceStatus:  model.ResourceStatusFailed,
				Detail:          "schema composition error",
			},
		},

		"A rejected submission never polls nor reports submitted": {
			maxPolls: 10,
			setupMocks: func(m *meshmock.MockLifecycle) {
				m.On("Submit", mock.Anything, "acme-staging").
					Return(&model.SubmissionError{Output: "quota exceeded"}).Once()
			},
			expErr: true,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			m := &meshmock.MockLifecycle{}
			tt.setupMocks(m)

			v, err := verify.NewVerifier(verify.VerifierConfig{
				Mesh:         m,
				PollInterval: 5 * time.Millisecond,
				MaxPolls:     tt.maxPolls,
			})
			require.NoError(t, err)

			submitted := false
			outcome, err := v.Run(context.Background(), "acme-staging", verify.Hooks{
				Submitted: func() { submitted = true },
			})

			assert.Equal(t, tt.expSubmitted, submitted)

			if tt.expErr {
				require.Error(t, err)
				if tt.expBudget {
					assert.ErrorIs(t, err, model.ErrBudgetExhausted)
				}
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.expOutcome, outcome)
			}

			m.AssertExpectations(t)
		})
	}
}

func TestVerifierRunOwnershipHookOrdering(t *testing.T) {
	// The submitted hook must fire before the first poll: a submitted mesh is a
	// live remote resource even when the process dies right after.
	m := &meshmock.MockLifecycle{}

	var calls []string
	m.On("Submit", mock.Anything, "acme-staging").Return(nil).Once()
	m.On("Status", mock.Anything, "acme-staging").
		Run(func(mock.Arguments) { calls = append(calls, "poll") }).
		Return(model.PollOutcome{ReachedTerminal: true, ResourceStatus: model.ResourceStatusDeployed}).Once()

	v, err := verify.NewVerifier(verify.VerifierConfig{
		Mesh:         m,
		PollInterval: time.Millisecond,
		MaxPolls:     2,
	})
	require.NoError(t, err)

	_, err = v.Run(context.Background(), "acme-staging", verify.Hooks{
		Submitted: func() { calls = append(calls, "submitted") },
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"submitted", "poll"}, calls)
}

func TestVerifierRunTicksAreOrdered(t *testing.T) {
	m := &meshmock.MockLifecycle{}
	m.On("Submit", mock.Anything, "acme-staging").Return(nil).Once()
	m.On("Status", mock.Anything, "acme-staging").
		Return(model.PollOutcome{ResourceStatus: model.ResourceStatusPending}).Times(4)

	v, err := verify.NewVerifier(verify.VerifierConfig{
		Mesh:         m,
		PollInterval: time.Millisecond,
		MaxPolls:     4,
	})
	require.NoError(t, err)

	var polls []int
	var elapsed []time.Duration
	_, err = v.Run(context.Background(), "acme-staging", verify.Hooks{
		Tick: func(poll int, e time.Duration) {
			polls = append(polls, poll)
			elapsed = append(elapsed, e)
		},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrBudgetExhausted)

	assert.Equal(t, []int{1, 2, 3, 4}, polls)
	for i := 1; i < len(elapsed); i++ {
		assert.GreaterOrEqual(t, elapsed[i], elapsed[i-1])
	}
}

func TestVerifierRunCancellation(t *testing.T) {
	m := &meshmock.MockLifecycle{}
	m.On("Submit", mock.Anything, "acme-staging").Return(nil).Once()
	m.On("Status", mock.Anything, "acme-staging").
		Return(model.PollOutcome{ResourceStatus: model.ResourceStatusPending})

	v, err := verify.NewVerifier(verify.VerifierConfig{
		Mesh:         m,
		PollInterval: 10 * time.Second, // Cancellation must interrupt the sleep.
		MaxPolls:     100,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err = v.Run(ctx, "acme-staging", verify.Hooks{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Less(t, time.Since(start), 5*time.Second)
}
