package application

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ericfisherdev/stagegate/internal/domain/model"
	"github.com/ericfisherdev/stagegate/internal/domain/port/driven"
)

const (
	// FlagArtifactName is the well-known artifact name of the "blocking PRs
	// found" marker.
	FlagArtifactName = "unmerged-prs"
	// flagFileName is the local filename the marker is written to before
	// upload.
	flagFileName = "unmerged_prs.json"
	// flagRetentionDays keeps the marker short-lived: it only needs to
	// survive retry attempts of the same run.
	flagRetentionDays = 1
)

// unmergedPrFlag is the persisted marker payload.
type unmergedPrFlag struct {
	Reason    string `json:"reason"`
	CreatedAt string `json:"createdAt"`
}

// OpenPRPolicy is the slice of BranchGuard the run guard drives.
type OpenPRPolicy interface {
	AssertOpenPRs(ctx context.Context, base model.StageBranch, forbidden []model.StageBranch, opts OpenPRGuardOptions) error
}

// RunGuard prevents destructive re-runs: when a prior attempt of the same
// workflow run already flagged blocking pull requests, the run must not be
// repeated, because the operator-facing state it produced would be clobbered.
type RunGuard struct {
	artifacts driven.ArtifactStore
	policy    OpenPRPolicy
	git       driven.GitRunner
	logger    *slog.Logger
}

// NewRunGuard creates a RunGuard.
func NewRunGuard(artifacts driven.ArtifactStore, policy OpenPRPolicy, git driven.GitRunner) *RunGuard {
	return &RunGuard{
		artifacts: artifacts,
		policy:    policy,
		git:       git,
		logger:    slog.Default(),
	}
}

// EnsureFreshWorkflowRun fails when the current run already produced the
// blocking-PRs flag in a prior attempt, and otherwise runs the open-PR
// policies the stage requires. Pass an empty stage to skip the policy phase
// (hotfix and production runs have no open-PR checks).
//
// When a policy raises the blocking error the flag artifact is uploaded
// best-effort before the error is returned; upload problems are logged and
// never displace the policy error.
func (g *RunGuard) EnsureFreshWorkflowRun(ctx context.Context, runID int64, stage model.ReleaseStage, remoteURL string) error {
	flagged, err := g.flagExists(ctx, runID)
	if err != nil {
		return err
	}
	if flagged {
		return model.Errorf(model.ErrKindStaleRun, "a previous attempt of this workflow run already found unmerged pull requests; do not re-run it; start a fresh %s release once the blocking pull requests are resolved", stage.Title())
	}

	if stage != model.StageAlpha && stage != model.StageBeta {
		return nil
	}

	if err := g.ensureCheckout(ctx, stage, remoteURL); err != nil {
		return err
	}

	if err := g.runPolicies(ctx, stage); err != nil {
		if model.IsKind(err, model.ErrKindBlockingPRs) {
			g.uploadFlag(ctx)
		}
		return err
	}
	return nil
}

// flagExists looks for the marker on the current run's artifact list, then
// falls back to the repository-wide list matched on parent run id. The
// fallback covers automatic retry attempts, whose own artifact list starts
// empty even though the first attempt's artifacts exist.
func (g *RunGuard) flagExists(ctx context.Context, runID int64) (bool, error) {
	runArtifacts, err := g.artifacts.ListRunArtifacts(ctx, runID)
	if err != nil {
		return false, fmt.Errorf("listing run artifacts: %w", err)
	}
	for _, a := range runArtifacts {
		if a.Name == FlagArtifactName {
			return true, nil
		}
	}

	repoArtifacts, err := g.artifacts.ListRepositoryArtifacts(ctx)
	if err != nil {
		return false, fmt.Errorf("listing repository artifacts: %w", err)
	}
	for _, a := range repoArtifacts {
		if a.Name == FlagArtifactName && a.RunID == runID {
			return true, nil
		}
	}
	return false, nil
}

// ensureCheckout bootstraps a shallow clone of the stage's base branch when
// no working repository exists yet.
func (g *RunGuard) ensureCheckout(ctx context.Context, stage model.ReleaseStage, remoteURL string) error {
	if g.git.HasRepository() {
		return nil
	}
	if remoteURL == "" {
		return model.Errorf(model.ErrKindInvalidInput, "no repository checkout present and no remote URL to clone from")
	}

	branch := string(stage.TargetBranch())
	g.logger.Info("bootstrapping repository checkout", "branch", branch)

	if _, err := g.git.Output(ctx, "clone", "--depth", "1", "--branch", branch, remoteURL, "."); err != nil {
		return fmt.Errorf("cloning %s: %w", branch, err)
	}
	return nil
}

// runPolicies runs the stage's open-PR guard sequence. Alpha promotes
// develop, so both develop and release must be clean of misbased PRs; beta
// promotes develop onto release, so only release is checked.
func (g *RunGuard) runPolicies(ctx context.Context, stage model.ReleaseStage) error {
	if stage == model.StageAlpha {
		err := g.policy.AssertOpenPRs(ctx, model.BranchDevelop,
			[]model.StageBranch{model.BranchMain, model.BranchRelease},
			OpenPRGuardOptions{
				Heading:       "Hotfix changes not merged back into develop",
				MessageFormat: "%d open pull request(s) into develop carry changes from a production branch; merge them before releasing",
			})
		if err != nil {
			return err
		}
	}

	return g.policy.AssertOpenPRs(ctx, model.BranchRelease,
		[]model.StageBranch{model.BranchMain},
		OpenPRGuardOptions{
			Heading:       "Hotfix changes not merged back into release",
			MessageFormat: "%d open pull request(s) into release carry changes from main; merge them before releasing",
		})
}

// uploadFlag writes and uploads the blocking-PRs marker. Every step is
// best-effort: failures are logged at warn and the caller's policy error is
// returned untouched. The local file is deleted regardless of upload
// outcome.
func (g *RunGuard) uploadFlag(ctx context.Context) {
	payload, err := json.Marshal(unmergedPrFlag{
		Reason:    "unmerged_prs",
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		g.logger.Warn("could not encode unmerged-PRs flag", "error", err)
		return
	}

	path := filepath.Join(g.git.WorkDir(), flagFileName)
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		g.logger.Warn("could not write unmerged-PRs flag file", "path", path, "error", err)
		return
	}
	defer func() {
		if err := os.Remove(path); err != nil {
			g.logger.Warn("could not remove unmerged-PRs flag file", "path", path, "error", err)
		}
	}()

	if err := g.artifacts.Upload(ctx, FlagArtifactName, path, flagRetentionDays); err != nil {
		g.logger.Warn("could not upload unmerged-PRs flag artifact", "error", err)
		return
	}
	g.logger.Info("uploaded unmerged-PRs flag artifact", "name", FlagArtifactName, "retention_days", flagRetentionDays)
}
