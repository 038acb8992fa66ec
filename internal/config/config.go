// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/ericfisherdev/stagegate/internal/domain/model"
)

// Config holds the promotion run configuration. Tool inputs come from
// STAGEGATE_* variables; ambient CI values come from the standard runner
// environment (GITHUB_*, ACTIONS_*).
type Config struct {
	Stage       model.ReleaseStage
	Reference   string
	Hotfix      bool
	Exports     bool
	CheckIssues bool
	WorkDir     string

	GitHubToken string
	Owner       string
	Repo        string
	RunID       int64
	ServerURL   string

	SummaryPath  string
	OutputPath   string
	RuntimeToken string
	ResultsURL   string
}

// RemoteURL builds the authenticated clone URL for the repository.
func (c *Config) RemoteURL() string {
	return fmt.Sprintf("%s/%s/%s.git", c.ServerURL, c.Owner, c.Repo)
}

// Load reads configuration from environment variables and returns a
// validated Config. STAGEGATE_STAGE, GITHUB_TOKEN, and GITHUB_REPOSITORY are
// required; optional variables default as documented per field.
func Load() (*Config, error) {
	stage, err := model.ParseStage(os.Getenv("STAGEGATE_STAGE"))
	if err != nil {
		return nil, fmt.Errorf("STAGEGATE_STAGE: %w", err)
	}

	token := os.Getenv("GITHUB_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("GITHUB_TOKEN is required")
	}

	repoFullName := os.Getenv("GITHUB_REPOSITORY")
	if repoFullName == "" {
		return nil, fmt.Errorf("GITHUB_REPOSITORY is required")
	}
	owner, repo, err := splitRepository(repoFullName)
	if err != nil {
		return nil, fmt.Errorf("GITHUB_REPOSITORY: %w", err)
	}

	hotfix, err := boolEnv("STAGEGATE_HOTFIX", false)
	if err != nil {
		return nil, err
	}
	exports, err := boolEnv("STAGEGATE_EXPORTS", true)
	if err != nil {
		return nil, err
	}
	checkIssues, err := boolEnv("STAGEGATE_CHECK_ISSUES", false)
	if err != nil {
		return nil, err
	}

	var runID int64
	if v := os.Getenv("GITHUB_RUN_ID"); v != "" {
		runID, err = strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("GITHUB_RUN_ID has invalid value %q: %w", v, err)
		}
	}

	workDir := "."
	if v, ok := os.LookupEnv("STAGEGATE_WORKDIR"); ok && v != "" {
		workDir = v
	}

	serverURL := "https://github.com"
	if v, ok := os.LookupEnv("GITHUB_SERVER_URL"); ok && v != "" {
		serverURL = v
	}

	return &Config{
		Stage:        stage,
		Reference:    os.Getenv("STAGEGATE_REFERENCE"),
		Hotfix:       hotfix,
		Exports:      exports,
		CheckIssues:  checkIssues,
		WorkDir:      workDir,
		GitHubToken:  token,
		Owner:        owner,
		Repo:         repo,
		RunID:        runID,
		ServerURL:    serverURL,
		SummaryPath:  os.Getenv("GITHUB_STEP_SUMMARY"),
		OutputPath:   os.Getenv("GITHUB_OUTPUT"),
		RuntimeToken: os.Getenv("ACTIONS_RUNTIME_TOKEN"),
		ResultsURL:   os.Getenv("ACTIONS_RESULTS_URL"),
	}, nil
}

// splitRepository splits a "owner/repo" string into its two components.
func splitRepository(fullName string) (string, string, error) {
	parts := strings.SplitN(fullName, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repository name %q: expected owner/repo", fullName)
	}
	return parts[0], parts[1], nil
}

// boolEnv parses an optional boolean variable with a default.
func boolEnv(name string, def bool) (bool, error) {
	v, ok := os.LookupEnv(name)
	if !ok || v == "" {
		return def, nil
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s has invalid boolean %q: %w", name, v, err)
	}
	return parsed, nil
}
