package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/stagegate/internal/config"
	"github.com/ericfisherdev/stagegate/internal/domain/model"
)

// setRequired sets the three variables Load refuses to run without and
// clears the optional ones so ambient CI values cannot leak into tests.
func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("STAGEGATE_STAGE", "alpha")
	t.Setenv("GITHUB_TOKEN", "ghp_test")
	t.Setenv("GITHUB_REPOSITORY", "acme/widgets")

	for _, name := range []string{
		"STAGEGATE_REFERENCE", "STAGEGATE_HOTFIX", "STAGEGATE_EXPORTS",
		"STAGEGATE_CHECK_ISSUES", "STAGEGATE_WORKDIR",
		"GITHUB_RUN_ID", "GITHUB_SERVER_URL", "GITHUB_STEP_SUMMARY",
		"GITHUB_OUTPUT", "ACTIONS_RUNTIME_TOKEN", "ACTIONS_RESULTS_URL",
	} {
		t.Setenv(name, "")
	}
}

func TestLoad(t *testing.T) {
	t.Run("minimal environment with defaults", func(t *testing.T) {
		setRequired(t)

		cfg, err := config.Load()
		require.NoError(t, err)

		assert.Equal(t, model.StageAlpha, cfg.Stage)
		assert.Equal(t, "ghp_test", cfg.GitHubToken)
		assert.Equal(t, "acme", cfg.Owner)
		assert.Equal(t, "widgets", cfg.Repo)
		assert.False(t, cfg.Hotfix)
		assert.True(t, cfg.Exports, "exports default on")
		assert.False(t, cfg.CheckIssues)
		assert.Equal(t, ".", cfg.WorkDir)
		assert.Equal(t, int64(0), cfg.RunID)
		assert.Equal(t, "https://github.com", cfg.ServerURL)
	})

	t.Run("full environment", func(t *testing.T) {
		setRequired(t)
		t.Setenv("STAGEGATE_STAGE", "beta")
		t.Setenv("STAGEGATE_REFERENCE", "v2025.3-alpha.2")
		t.Setenv("STAGEGATE_HOTFIX", "true")
		t.Setenv("STAGEGATE_EXPORTS", "false")
		t.Setenv("STAGEGATE_WORKDIR", "/srv/checkout")
		t.Setenv("GITHUB_RUN_ID", "4242")
		t.Setenv("GITHUB_SERVER_URL", "https://ghe.example.com")
		t.Setenv("GITHUB_STEP_SUMMARY", "/tmp/summary")
		t.Setenv("GITHUB_OUTPUT", "/tmp/output")
		t.Setenv("ACTIONS_RUNTIME_TOKEN", "tok")
		t.Setenv("ACTIONS_RESULTS_URL", "https://results.example.com")

		cfg, err := config.Load()
		require.NoError(t, err)

		assert.Equal(t, model.StageBeta, cfg.Stage)
		assert.Equal(t, "v2025.3-alpha.2", cfg.Reference)
		assert.True(t, cfg.Hotfix)
		assert.False(t, cfg.Exports)
		assert.Equal(t, "/srv/checkout", cfg.WorkDir)
		assert.Equal(t, int64(4242), cfg.RunID)
		assert.Equal(t, "https://ghe.example.com", cfg.ServerURL)
		assert.Equal(t, "/tmp/summary", cfg.SummaryPath)
		assert.Equal(t, "/tmp/output", cfg.OutputPath)
		assert.Equal(t, "tok", cfg.RuntimeToken)
		assert.Equal(t, "https://results.example.com", cfg.ResultsURL)
	})

	t.Run("missing stage", func(t *testing.T) {
		setRequired(t)
		t.Setenv("STAGEGATE_STAGE", "")

		_, err := config.Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "STAGEGATE_STAGE")
	})

	t.Run("unknown stage", func(t *testing.T) {
		setRequired(t)
		t.Setenv("STAGEGATE_STAGE", "canary")

		_, err := config.Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "STAGEGATE_STAGE")
	})

	t.Run("missing token", func(t *testing.T) {
		setRequired(t)
		t.Setenv("GITHUB_TOKEN", "")

		_, err := config.Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "GITHUB_TOKEN")
	})

	t.Run("malformed repository name", func(t *testing.T) {
		setRequired(t)
		t.Setenv("GITHUB_REPOSITORY", "just-a-name")

		_, err := config.Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "GITHUB_REPOSITORY")
	})

	t.Run("malformed boolean", func(t *testing.T) {
		setRequired(t)
		t.Setenv("STAGEGATE_HOTFIX", "yep")

		_, err := config.Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "STAGEGATE_HOTFIX")
	})

	t.Run("malformed run id", func(t *testing.T) {
		setRequired(t)
		t.Setenv("GITHUB_RUN_ID", "not-a-number")

		_, err := config.Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "GITHUB_RUN_ID")
	})
}

func TestRemoteURL(t *testing.T) {
	cfg := &config.Config{ServerURL: "https://github.com", Owner: "acme", Repo: "widgets"}
	assert.Equal(t, "https://github.com/acme/widgets.git", cfg.RemoteURL())
}
