package application

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/ericfisherdev/stagegate/internal/domain/model"
	"github.com/ericfisherdev/stagegate/internal/domain/port/driven"
)

// ForkAnalyzer computes fork points and fork distances between canonical
// branches and head refs through git ancestry queries. Fork-point lookups
// are memoized per (base, head) pair for the lifetime of the analyzer, which
// is scoped to a single run; distinct runs get distinct analyzers so stale
// ancestry is never reused.
type ForkAnalyzer struct {
	git        driven.GitRunner
	forkPoints map[string]string
	logger     *slog.Logger
}

// NewForkAnalyzer creates an analyzer with an empty session cache.
func NewForkAnalyzer(git driven.GitRunner) *ForkAnalyzer {
	return &ForkAnalyzer{
		git:        git,
		forkPoints: make(map[string]string),
		logger:     slog.Default(),
	}
}

// ForkPoint returns the commit where headRef's history diverged from
// origin/<base>, or "" when no fork point can be determined. It first asks
// git for a reflog-assisted fork point and falls back to a plain merge base
// when that yields nothing (the reflog data fork-point detection needs is
// often absent in CI checkouts).
func (a *ForkAnalyzer) ForkPoint(ctx context.Context, base model.StageBranch, headRef string) (string, error) {
	key := string(base) + "\x00" + headRef
	if point, ok := a.forkPoints[key]; ok {
		return point, nil
	}

	upstream := "origin/" + string(base)

	point, err := a.mergeBase(ctx, "--fork-point", upstream, headRef)
	if err != nil {
		return "", err
	}
	if point == "" {
		point, err = a.mergeBase(ctx, upstream, headRef)
		if err != nil {
			return "", err
		}
	}

	a.forkPoints[key] = point
	return point, nil
}

// mergeBase runs git merge-base with the given arguments, treating nonzero
// exit (unrelated histories, no fork point) as "no result" rather than
// failure.
func (a *ForkAnalyzer) mergeBase(ctx context.Context, args ...string) (string, error) {
	result, err := a.git.Exec(ctx, append([]string{"merge-base"}, args...)...)
	if err != nil {
		return "", fmt.Errorf("querying merge base: %w", err)
	}
	if result.ExitCode != 0 {
		return "", nil
	}
	return strings.TrimSpace(result.Stdout), nil
}

// ForkDistance returns the number of commits reachable from headRef but not
// from its fork point with base: how far the head has drifted since
// divergence. No usable fork point yields the infinite sentinel, meaning the
// head is unrelated to the base or provenance is undeterminable.
func (a *ForkAnalyzer) ForkDistance(ctx context.Context, base model.StageBranch, headRef string) (model.ForkDistance, error) {
	point, err := a.ForkPoint(ctx, base, headRef)
	if err != nil {
		return model.DistanceInfinite, err
	}
	if point == "" {
		return model.DistanceInfinite, nil
	}

	out, err := a.git.Output(ctx, "rev-list", "--count", point+".."+headRef)
	if err != nil {
		return model.DistanceInfinite, fmt.Errorf("counting commits since fork point: %w", err)
	}

	count, err := strconv.ParseInt(out, 10, 64)
	if err != nil {
		return model.DistanceInfinite, fmt.Errorf("unexpected rev-list output %q: %w", out, err)
	}

	a.logger.Debug("fork distance",
		"base", base,
		"head", headRef,
		"fork_point", point,
		"distance", count,
	)

	return model.ForkDistance(count), nil
}

// ChooseClosest picks the branch with the smallest fork distance. The
// preference order decides ties: a later candidate only displaces the
// provisional best with a strictly smaller finite distance, so the branch
// listed first wins when distances are equal. Listing the protected branch
// first makes ties pass; listing the intended branch first makes ties fail
// closed.
func ChooseClosest(distances map[model.StageBranch]model.ForkDistance, preference []model.StageBranch) model.StageBranch {
	best := preference[0]
	for _, candidate := range preference[1:] {
		d := distanceOf(distances, candidate)
		if d.IsFinite() && d < distanceOf(distances, best) {
			best = candidate
		}
	}
	return best
}

// distanceOf treats branches absent from the map as infinitely far.
func distanceOf(distances map[model.StageBranch]model.ForkDistance, branch model.StageBranch) model.ForkDistance {
	if d, ok := distances[branch]; ok {
		return d
	}
	return model.DistanceInfinite
}
