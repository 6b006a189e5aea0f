package project_test

import (
	"context"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meshup-sh/meshup/internal/model"
	"github.com/meshup-sh/meshup/internal/project"
)

func TestConfigYAMLRepositoryGetSettings(t *testing.T) {
	tests := map[string]struct {
		files       fstest.MapFS
		path        string
		expSettings *project.Settings
		expErr      bool
	}{
		"A missing file should fail.": {
			files:  fstest.MapFS{},
			path:   "meshup.yaml",
			expErr: true,
		},

		"Invalid YAML should fail.": {
			files: fstest.MapFS{
				"meshup.yaml": {Data: []byte("workspace: [")},
			},
			path:   "meshup.yaml",
			expErr: true,
		},

		"A config without workspace should fail validation.": {
			files: fstest.MapFS{
				"meshup.yaml": {Data: []byte("deploy:\n  poll_interval_ms: 10000\n")},
			},
			path:   "meshup.yaml",
			expErr: true,
		},

		"A minimal config should get the deployment defaults.": {
			files: fstest.MapFS{
				"meshup.yaml": {Data: []byte("workspace: acme-staging\n")},
			},
			path: "meshup.yaml",
			expSettings: &project.Settings{
				Deploy: model.DeployConfig{
					Workspace:    "acme-staging",
					ProjectDir:   "/tmp/acme",
					PollInterval: 10 * time.Second,
					TotalTimeout: 180 * time.Second,
					MaxAttempts:  18,
				},
			},
		},

		"A full config should override the defaults.": {
			files: fstest.MapFS{
				"meshup.yaml": {Data: []byte(`workspace: acme-staging
mesh:
  binary: /usr/local/bin/meshctl
deploy:
  poll_interval_ms: 5000
  total_timeout_ms: 30000
`)},
			},
			path: "meshup.yaml",
			expSettings: &project.Settings{
				Deploy: model.DeployConfig{
					Workspace:    "acme-staging",
					ProjectDir:   "/tmp/acme",
					PollInterval: 5 * time.Second,
					TotalTimeout: 30 * time.Second,
					MaxAttempts:  6,
				},
				MeshBinary: "/usr/local/bin/meshctl",
			},
		},

		"A poll interval above the total timeout should fail validation.": {
			files: fstest.MapFS{
				"meshup.yaml": {Data: []byte(`workspace: acme-staging
deploy:
  poll_interval_ms: 60000
  total_timeout_ms: 30000
`)},
			},
			path:   "meshup.yaml",
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			repo := project.NewConfigYAMLRepository(test.files)
			got, err := repo.GetSettings(context.TODO(), test.path, "/tmp/acme")

			if test.expErr {
				assert.Error(err)
				return
			}
			require.NoError(err)

			assert.Equal(test.expSettings.Deploy, got.Deploy)
			assert.Equal(test.expSettings.MeshBinary, got.MeshBinary)
		})
	}
}
