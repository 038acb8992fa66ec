package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	// Bundled TLS root certificates for static binaries.
	_ "golang.org/x/crypto/x509roots/fallback"

	artifactadapter "github.com/ericfisherdev/stagegate/internal/adapter/driven/artifact"
	githubadapter "github.com/ericfisherdev/stagegate/internal/adapter/driven/github"
	"github.com/ericfisherdev/stagegate/internal/adapter/driven/gitcli"
	"github.com/ericfisherdev/stagegate/internal/adapter/driven/workflow"
	"github.com/ericfisherdev/stagegate/internal/application"
	"github.com/ericfisherdev/stagegate/internal/config"
	"github.com/ericfisherdev/stagegate/internal/domain/model"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration (fail fast on missing required env vars).
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.Info("config loaded",
		"stage", cfg.Stage,
		"reference", cfg.Reference,
		"hotfix", cfg.Hotfix,
		"repository", cfg.Owner+"/"+cfg.Repo,
		"run_id", cfg.RunID,
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Wire adapters.
	ghClient := githubadapter.NewClient(cfg.GitHubToken, cfg.Owner, cfg.Repo)
	artifacts := artifactadapter.NewStore(ghClient.REST(), cfg.Owner, cfg.Repo, cfg.RuntimeToken, cfg.ResultsURL)
	git := gitcli.NewRunner(cfg.WorkDir)
	reporter := workflow.NewWriter(cfg.SummaryPath, cfg.OutputPath)

	// 4. Wire services.
	guard := application.NewBranchGuard(ghClient, git, reporter)
	runGuard := application.NewRunGuard(artifacts, guard, git)
	release := application.NewReleaseService(ghClient, reporter)

	request := application.ReleaseRequest{
		Stage:     cfg.Stage,
		Reference: cfg.Reference,
		Hotfix:    cfg.Hotfix,
	}
	if err := release.ValidateRequest(request); err != nil {
		return err
	}

	// 5. Refuse re-runs of a blocked workflow, then run the stage's open-PR
	// policies. Hotfix and production runs skip the policy phase.
	policyStage := cfg.Stage
	if cfg.Hotfix || cfg.Stage == model.StageProduction {
		policyStage = ""
	}
	if err := runGuard.EnsureFreshWorkflowRun(ctx, cfg.RunID, policyStage, cfg.RemoteURL()); err != nil {
		return err
	}

	// 6. A hotfix must branch off the stage branch it patches.
	if cfg.Hotfix {
		if err := guard.AssertCorrectHotfixBranch(ctx, cfg.Reference, cfg.Stage.TargetBranch()); err != nil {
			return err
		}
	}

	// 7. Compute the next version and export outputs.
	result, err := release.PlanRelease(ctx, request)
	if err != nil {
		return err
	}
	if cfg.Exports {
		if err := release.PublishOutputs(result); err != nil {
			return err
		}
	}

	slog.Info("promotion ready",
		"version", result.Version,
		"previous_version", result.PreviousVersion,
		"extended_version", result.ExtendedVersion,
		"reference", result.Reference,
	)
	return nil
}
