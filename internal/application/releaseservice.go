package application

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/ericfisherdev/stagegate/internal/domain/model"
	"github.com/ericfisherdev/stagegate/internal/domain/port/driven"
)

// ReleaseRequest is one promotion request as read from the environment.
type ReleaseRequest struct {
	Stage     model.ReleaseStage
	Reference string
	Hotfix    bool
}

// ReleaseResult carries the computed version and the values exported to the
// surrounding workflow.
type ReleaseResult struct {
	Version         string
	PreviousVersion string
	ExtendedVersion string
	PlainVersion    string
	// Reference is the resolved source to check out next: the explicit
	// reference for a hotfix, else the stage's default source branch.
	Reference string
}

// ReleaseService orchestrates a promotion: it validates the request, reads
// the prior release tags once, feeds them to the version engine, and
// publishes the outputs.
type ReleaseService struct {
	github  driven.GitHubClient
	outputs driven.OutputWriter
	logger  *slog.Logger
	// Now supplies the clock; tests override it for year-sensitive cases.
	Now func() time.Time
}

// NewReleaseService creates a ReleaseService using the real clock.
func NewReleaseService(github driven.GitHubClient, outputs driven.OutputWriter) *ReleaseService {
	return &ReleaseService{
		github:  github,
		outputs: outputs,
		logger:  slog.Default(),
		Now:     time.Now,
	}
}

// ValidateRequest fails fast on requests that no amount of git or API work
// could make valid. It runs before any network I/O.
func (s *ReleaseService) ValidateRequest(req ReleaseRequest) error {
	if _, err := model.ParseStage(string(req.Stage)); err != nil {
		return err
	}
	if req.Hotfix && req.Stage == model.StageAlpha {
		return model.Errorf(model.ErrKindInvalidInput, "hotfix releases are only supported for beta and production stages")
	}
	if req.Hotfix && req.Reference == "" {
		return model.Errorf(model.ErrKindInvalidInput, "a hotfix release requires an explicit reference to release from")
	}
	if req.Reference != "" && req.Reference == string(req.Stage.TargetBranch()) {
		return model.Errorf(model.ErrKindInvalidInput, "reference %q equals the target branch of stage %s; releasing a branch onto itself is not a promotion", req.Reference, req.Stage)
	}
	return nil
}

// PlanRelease computes the next version and resolved reference for the
// request. The full tag set is fetched once and classified per branch; the
// most recent tag per branch feeds the version engine.
func (s *ReleaseService) PlanRelease(ctx context.Context, req ReleaseRequest) (*ReleaseResult, error) {
	if err := s.ValidateRequest(req); err != nil {
		return nil, err
	}

	tags, err := s.github.FetchReleaseTags(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching release tags: %w", err)
	}

	latest := latestPerBranch(tags)

	input := NextVersionInput{
		Stage:                req.Stage,
		Hotfix:               req.Hotfix,
		LastProduction:       latest[model.BranchMain],
		PreviousStageVersion: latest[req.Stage.TargetBranch()],
		Now:                  s.Now(),
	}
	switch req.Stage {
	case model.StageAlpha, model.StageBeta:
		// Alpha continues the alpha lineage; beta promotes from it.
		input.PreviousVersion = latest[model.BranchDevelop]
	default:
		input.PreviousVersion = latest[model.BranchMain]
	}
	if req.Stage == model.StageBeta && !req.Hotfix {
		// An explicit reference on a beta promotion names the alpha tag to
		// promote; anything else resolves through the default lineage.
		input.Reference = req.Reference
	}

	version, err := ComputeNextVersion(input)
	if err != nil {
		return nil, err
	}

	result := &ReleaseResult{
		Version:         version,
		PreviousVersion: latest[req.Stage.TargetBranch()],
		ExtendedVersion: model.BuildExtendedVersion(version),
		PlainVersion:    model.PlainVersion(version),
		Reference:       s.resolveReference(req),
	}

	s.logger.Info("release planned",
		"stage", req.Stage,
		"hotfix", req.Hotfix,
		"version", result.Version,
		"previous_version", result.PreviousVersion,
		"reference", result.Reference,
	)

	return result, nil
}

// resolveReference picks the source the workflow should check out next.
func (s *ReleaseService) resolveReference(req ReleaseRequest) string {
	if req.Reference != "" {
		return req.Reference
	}
	return string(req.Stage.SourceBranch())
}

// PublishOutputs exports the result to the surrounding workflow.
func (s *ReleaseService) PublishOutputs(result *ReleaseResult) error {
	pairs := []struct{ name, value string }{
		{"version", result.Version},
		{"previous_version", result.PreviousVersion},
		{"extended_version", result.ExtendedVersion},
		{"plain_version", result.PlainVersion},
		{"reference", result.Reference},
	}
	for _, p := range pairs {
		if err := s.outputs.WriteOutput(p.name, p.value); err != nil {
			return fmt.Errorf("exporting output %s: %w", p.name, err)
		}
	}
	return nil
}

// latestPerBranch returns the most recent tag per stage branch, using the
// version ordering (not the release timestamps, which reorder on re-publish).
func latestPerBranch(tags []model.ReleaseTag) map[model.StageBranch]string {
	sorted := make([]model.ReleaseTag, len(tags))
	copy(sorted, tags)
	sort.SliceStable(sorted, func(i, j int) bool {
		return model.Compare(sorted[i].Tag, sorted[j].Tag) > 0
	})

	latest := make(map[model.StageBranch]string, len(model.StageBranches))
	for _, tag := range sorted {
		if _, ok := latest[tag.Branch]; !ok {
			latest[tag.Branch] = tag.Tag
		}
	}
	return latest
}
