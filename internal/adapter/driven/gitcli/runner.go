// Package gitcli implements the GitRunner port by shelling out to git.
package gitcli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/ericfisherdev/stagegate/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.GitRunner = (*Runner)(nil)

// Runner runs git subprocesses rooted at a fixed working directory.
type Runner struct {
	dir    string
	logger *slog.Logger
}

// NewRunner creates a Runner for the given working directory.
func NewRunner(dir string) *Runner {
	return &Runner{dir: dir, logger: slog.Default()}
}

// WorkDir returns the directory git runs in.
func (r *Runner) WorkDir() string {
	return r.dir
}

// HasRepository reports whether WorkDir contains a git repository.
func (r *Runner) HasRepository() bool {
	info, err := os.Stat(filepath.Join(r.dir, ".git"))
	return err == nil && info.IsDir()
}

// Exec runs git with the given arguments. Nonzero exit is reported through
// CommandResult.ExitCode, not the error; the error is non-nil only when the
// process could not be started or was cancelled.
func (r *Runner) Exec(ctx context.Context, args ...string) (driven.CommandResult, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = r.dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := driven.CommandResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return result, fmt.Errorf("running git %s: %w", strings.Join(args, " "), err)
		}
		result.ExitCode = exitErr.ExitCode()
	}

	r.logger.Debug("git",
		"args", strings.Join(args, " "),
		"exit_code", result.ExitCode,
	)

	return result, nil
}

// Output runs git and returns trimmed stdout, failing on nonzero exit with
// stderr folded into the error.
func (r *Runner) Output(ctx context.Context, args ...string) (string, error) {
	result, err := r.Exec(ctx, args...)
	if err != nil {
		return "", err
	}
	if result.ExitCode != 0 {
		return "", fmt.Errorf("git %s exited %d: %s",
			strings.Join(args, " "), result.ExitCode, strings.TrimSpace(result.Stderr))
	}
	return strings.TrimSpace(result.Stdout), nil
}
