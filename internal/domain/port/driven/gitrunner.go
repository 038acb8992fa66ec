package driven

import "context"

// CommandResult carries the raw outcome of one git invocation.
type CommandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// GitRunner defines the driven port for running git against the local
// working repository. All fork-point and distance queries go through it, so
// a single implementation can sequence ref mutations (no two concurrent
// fetches into the same local ref name).
type GitRunner interface {
	// Exec runs git with the given arguments and returns the result even on
	// nonzero exit. The error is non-nil only when the process could not be
	// run at all.
	Exec(ctx context.Context, args ...string) (CommandResult, error)
	// Output runs git and returns trimmed stdout, failing on nonzero exit
	// with stderr folded into the error.
	Output(ctx context.Context, args ...string) (string, error)
	// WorkDir returns the directory git runs in.
	WorkDir() string
	// HasRepository reports whether WorkDir contains a git repository.
	HasRepository() bool
}
