package application_test

import (
	"context"
	"fmt"
	"strings"

	"github.com/ericfisherdev/stagegate/internal/application"
	"github.com/ericfisherdev/stagegate/internal/domain/model"
	"github.com/ericfisherdev/stagegate/internal/domain/port/driven"
)

// gitResponse scripts the outcome of one git invocation in fakeGitRunner.
type gitResponse struct {
	stdout   string
	exitCode int
	err      error
}

// fakeGitRunner scripts git by exact argument string. Unmapped fetch
// commands succeed (ref plumbing is not under test); any other unmapped
// command exits 128 so tests fail loudly on unexpected queries.
type fakeGitRunner struct {
	dir       string
	hasRepo   bool
	responses map[string]gitResponse
	calls     []string
}

func newFakeGitRunner(dir string) *fakeGitRunner {
	return &fakeGitRunner{
		dir:       dir,
		hasRepo:   true,
		responses: make(map[string]gitResponse),
	}
}

func (f *fakeGitRunner) on(args string, r gitResponse) {
	f.responses[args] = r
}

func (f *fakeGitRunner) Exec(_ context.Context, args ...string) (driven.CommandResult, error) {
	key := strings.Join(args, " ")
	f.calls = append(f.calls, key)

	if r, ok := f.responses[key]; ok {
		return driven.CommandResult{Stdout: r.stdout, ExitCode: r.exitCode}, r.err
	}
	if len(args) > 0 && (args[0] == "fetch" || args[0] == "clone") {
		return driven.CommandResult{}, nil
	}
	return driven.CommandResult{ExitCode: 128, Stderr: "fake: no response scripted for: " + key}, nil
}

func (f *fakeGitRunner) Output(ctx context.Context, args ...string) (string, error) {
	result, err := f.Exec(ctx, args...)
	if err != nil {
		return "", err
	}
	if result.ExitCode != 0 {
		return "", fmt.Errorf("git %s exited %d: %s", strings.Join(args, " "), result.ExitCode, result.Stderr)
	}
	return strings.TrimSpace(result.Stdout), nil
}

func (f *fakeGitRunner) WorkDir() string { return f.dir }

func (f *fakeGitRunner) HasRepository() bool { return f.hasRepo }

// fakeGitHub serves scripted pull requests, tags, and mergeable states.
type fakeGitHub struct {
	prsByBase map[model.StageBranch][]model.PullRequestCandidate
	prsErr    error

	tags    []model.ReleaseTag
	tagsErr error

	// mergeableStates is consumed one element per FetchMergeableState call;
	// the last element repeats once exhausted.
	mergeableStates []*bool
	mergeableErr    error
	mergeableCalls  int
}

func (f *fakeGitHub) FetchOpenPullRequests(_ context.Context, base model.StageBranch) ([]model.PullRequestCandidate, error) {
	if f.prsErr != nil {
		return nil, f.prsErr
	}
	return f.prsByBase[base], nil
}

func (f *fakeGitHub) FetchReleaseTags(_ context.Context) ([]model.ReleaseTag, error) {
	if f.tagsErr != nil {
		return nil, f.tagsErr
	}
	return f.tags, nil
}

func (f *fakeGitHub) FetchMergeableState(_ context.Context, _ int) (*bool, error) {
	f.mergeableCalls++
	if f.mergeableErr != nil {
		return nil, f.mergeableErr
	}
	if len(f.mergeableStates) == 0 {
		return nil, nil
	}
	state := f.mergeableStates[0]
	if len(f.mergeableStates) > 1 {
		f.mergeableStates = f.mergeableStates[1:]
	}
	return state, nil
}

// fakeSummary records published summary blocks.
type fakeSummary struct {
	blocks []string
	err    error
}

func (f *fakeSummary) WriteSummary(markdown string) error {
	if f.err != nil {
		return f.err
	}
	f.blocks = append(f.blocks, markdown)
	return nil
}

// fakeOutputs records exported step outputs.
type fakeOutputs struct {
	values map[string]string
	err    error
}

func newFakeOutputs() *fakeOutputs {
	return &fakeOutputs{values: make(map[string]string)}
}

func (f *fakeOutputs) WriteOutput(name, value string) error {
	if f.err != nil {
		return f.err
	}
	f.values[name] = value
	return nil
}

// fakeArtifacts scripts the artifact store.
type fakeArtifacts struct {
	runArtifacts  []model.Artifact
	repoArtifacts []model.Artifact
	listErr       error

	uploadErr   error
	uploads     []string // recorded as "name:retentionDays"
	uploadPaths []string
}

func (f *fakeArtifacts) ListRunArtifacts(_ context.Context, _ int64) ([]model.Artifact, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.runArtifacts, nil
}

func (f *fakeArtifacts) ListRepositoryArtifacts(_ context.Context) ([]model.Artifact, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.repoArtifacts, nil
}

func (f *fakeArtifacts) Upload(_ context.Context, name, path string, retentionDays int) error {
	f.uploads = append(f.uploads, fmt.Sprintf("%s:%d", name, retentionDays))
	f.uploadPaths = append(f.uploadPaths, path)
	return f.uploadErr
}

// fakePolicy scripts the open-PR policy for run guard tests.
type fakePolicy struct {
	errs  []error // consumed per call; nil once exhausted
	bases []model.StageBranch
}

func (f *fakePolicy) AssertOpenPRs(_ context.Context, base model.StageBranch, _ []model.StageBranch, _ application.OpenPRGuardOptions) error {
	f.bases = append(f.bases, base)
	if len(f.errs) == 0 {
		return nil
	}
	err := f.errs[0]
	f.errs = f.errs[1:]
	return err
}
