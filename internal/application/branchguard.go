package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/ericfisherdev/stagegate/internal/domain/model"
	"github.com/ericfisherdev/stagegate/internal/domain/port/driven"
)

// localRefPrefix is where PR heads and hotfix candidates are fetched to.
// Keeping them out of refs/remotes/origin avoids clobbering the canonical
// branch tips the distance computations compare against.
const localRefPrefix = "refs/stagegate/"

// OpenPRGuardOptions configures one run of the open-PR policy.
type OpenPRGuardOptions struct {
	// IncludeDrafts keeps draft pull requests in the candidate set.
	IncludeDrafts bool
	// Heading titles the run summary published when offenders are found.
	Heading string
	// MessageFormat builds the failure message; it receives the offender
	// count as its single argument.
	MessageFormat string
}

// BranchGuard enforces the two branch-provenance policies: open pull
// requests based on a forbidden upstream, and hotfix branches forked from
// the wrong stage branch.
type BranchGuard struct {
	github    driven.GitHubClient
	git       driven.GitRunner
	analyzer  *ForkAnalyzer
	summary   driven.SummaryWriter
	sanitizer *bluemonday.Policy
	logger    *slog.Logger
}

// NewBranchGuard creates a guard with a fresh analysis session.
func NewBranchGuard(github driven.GitHubClient, git driven.GitRunner, summary driven.SummaryWriter) *BranchGuard {
	return &BranchGuard{
		github:    github,
		git:       git,
		analyzer:  NewForkAnalyzer(git),
		summary:   summary,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    slog.Default(),
	}
}

// AssertOpenPRs flags open pull requests targeting base whose head is closer
// to one of the forbidden branches than to base itself. Base leads the
// preference order, so a head equidistant from base and a forbidden branch
// passes (conservative non-flagging on ties). Offenders are published to the
// run summary before the blocking error returns; no offenders means no side
// effect at all.
func (g *BranchGuard) AssertOpenPRs(ctx context.Context, base model.StageBranch, forbidden []model.StageBranch, opts OpenPRGuardOptions) error {
	prs, err := g.github.FetchOpenPullRequests(ctx, base)
	if err != nil {
		return err
	}

	candidates := prs[:0:0]
	for _, pr := range prs {
		if pr.IsDraft && !opts.IncludeDrafts {
			continue
		}
		candidates = append(candidates, pr)
	}
	if len(candidates) == 0 {
		g.logger.Debug("no open pull requests to check", "base", base)
		return nil
	}

	if err := g.fetchBranchTips(ctx, append([]model.StageBranch{base}, forbidden...)); err != nil {
		return err
	}

	preference := append([]model.StageBranch{base}, forbidden...)

	var offenders []model.PullRequestCandidate
	for _, pr := range candidates {
		headRef, err := g.fetchHead(ctx, pr.HeadRef)
		if err != nil {
			// Heads living in forks are not fetchable from origin; they
			// cannot be judged, so they are not flagged.
			g.logger.Warn("could not fetch pull request head, skipping",
				"pr", pr.Number, "head", pr.HeadRef, "error", err)
			continue
		}

		distances := make(map[model.StageBranch]model.ForkDistance, len(preference))
		for _, branch := range preference {
			d, err := g.analyzer.ForkDistance(ctx, branch, headRef)
			if err != nil {
				return err
			}
			distances[branch] = d
		}

		closest := ChooseClosest(distances, preference)
		if closest != base && distances[closest].IsFinite() {
			g.logger.Info("pull request based on forbidden branch",
				"pr", pr.Number, "head", pr.HeadRef, "closest", closest)
			offenders = append(offenders, pr)
		}
	}

	if len(offenders) == 0 {
		return nil
	}

	g.publishSummary(offenderSummary(opts.Heading, offenders, g.sanitizer))
	return model.Errorf(model.ErrKindBlockingPRs, opts.MessageFormat, len(offenders))
}

// AssertCorrectHotfixBranch validates that branch was forked from the
// intended stage branch and not from a competing canonical branch. A
// competing branch whose tip currently equals the intended branch's tip is
// discounted (set infinitely far): right after a merge the two refs name the
// same commit and cannot meaningfully compete. Remaining ties resolve as
// failure, unless the candidate's fork point with the intended branch is
// exactly the intended branch's tip, the unambiguous "branched from the
// tip" case.
func (g *BranchGuard) AssertCorrectHotfixBranch(ctx context.Context, branch string, intended model.StageBranch) error {
	if intended != model.BranchMain && intended != model.BranchRelease {
		return model.Errorf(model.ErrKindInvalidInput, "hotfix branches target main or release, not %q", intended)
	}

	if err := g.fetchBranchTips(ctx, model.StageBranches); err != nil {
		return err
	}
	headRef, err := g.fetchHead(ctx, branch)
	if err != nil {
		return fmt.Errorf("fetching hotfix branch %q: %w", branch, err)
	}

	tips := make(map[model.StageBranch]string, len(model.StageBranches))
	for _, b := range model.StageBranches {
		tip, err := g.git.Output(ctx, "rev-parse", "refs/remotes/origin/"+string(b))
		if err != nil {
			return fmt.Errorf("resolving tip of %s: %w", b, err)
		}
		tips[b] = tip
	}

	distances := make(map[model.StageBranch]model.ForkDistance, len(model.StageBranches))
	for _, b := range model.StageBranches {
		d, err := g.analyzer.ForkDistance(ctx, b, headRef)
		if err != nil {
			return err
		}
		distances[b] = d
	}

	// A branch sharing the intended tip is the same ref in all but name.
	for _, b := range model.StageBranches {
		if b != intended && tips[b] == tips[intended] {
			distances[b] = model.DistanceInfinite
		}
	}

	var competing []model.StageBranch
	for _, b := range model.StageBranches {
		if b != intended && tips[b] != tips[intended] && distances[b] <= distances[intended] {
			competing = append(competing, b)
		}
	}

	// Intended branch leads the preference order so a tie never passes as
	// "closest"; the competitor stage branch outranks develop.
	competitor := model.BranchMain
	if intended == model.BranchMain {
		competitor = model.BranchRelease
	}
	preference := []model.StageBranch{intended, competitor, model.BranchDevelop}

	closest := ChooseClosest(distances, preference)

	if closest == intended {
		if len(competing) == 0 {
			return nil
		}
		forkPoint, err := g.analyzer.ForkPoint(ctx, intended, headRef)
		if err != nil {
			return err
		}
		if forkPoint != "" && forkPoint == tips[intended] {
			return nil
		}
	}

	g.publishSummary(mismatchSummary(branch, intended, closest, competing, distances))
	return model.Errorf(model.ErrKindBranchMismatch, "branch %q was not forked from %s; a hotfix for this stage must branch off %s", branch, intended, intended)
}

// fetchBranchTips updates the remote-tracking refs for the given branches.
func (g *BranchGuard) fetchBranchTips(ctx context.Context, branches []model.StageBranch) error {
	args := []string{"fetch", "--no-tags", "origin"}
	for _, b := range branches {
		args = append(args, fmt.Sprintf("+refs/heads/%s:refs/remotes/origin/%s", b, b))
	}
	if _, err := g.git.Output(ctx, args...); err != nil {
		return fmt.Errorf("fetching branch tips: %w", err)
	}
	return nil
}

// fetchHead fetches a head branch into the guard's private ref namespace
// and returns the local ref name. Fetches are sequential across candidates:
// all provenance queries share one local ref namespace.
func (g *BranchGuard) fetchHead(ctx context.Context, headRef string) (string, error) {
	local := localRefPrefix + headRef
	refspec := fmt.Sprintf("+refs/heads/%s:%s", headRef, local)
	if _, err := g.git.Output(ctx, "fetch", "--no-tags", "origin", refspec); err != nil {
		return "", err
	}
	return local, nil
}

// publishSummary writes a summary block, logging instead of failing when the
// writer is unavailable: the policy error that follows matters more.
func (g *BranchGuard) publishSummary(markdown string) {
	if err := g.summary.WriteSummary(markdown); err != nil {
		g.logger.Warn("could not publish run summary", "error", err)
	}
}

// offenderSummary renders the blocking PRs as a markdown list of links.
// Titles come from PR authors and are sanitized before embedding.
func offenderSummary(heading string, offenders []model.PullRequestCandidate, sanitizer *bluemonday.Policy) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## %s\n\n", heading)
	for _, pr := range offenders {
		title := sanitizer.Sanitize(pr.Title)
		fmt.Fprintf(&b, "- [#%d %s](%s)\n", pr.Number, title, pr.URL)
	}
	return b.String()
}

// mismatchSummary explains a hotfix ancestry failure with raw distances.
func mismatchSummary(branch string, intended, closest model.StageBranch, competing []model.StageBranch, distances map[model.StageBranch]model.ForkDistance) string {
	nearest := closest
	best := model.DistanceInfinite
	for _, b := range competing {
		if d := distances[b]; d.IsFinite() && d < best {
			nearest = b
			best = d
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "## Hotfix branch ancestry check failed\n\n")
	fmt.Fprintf(&b, "Branch `%s` must be forked from `%s`, but its history is closer to `%s`.\n\n", branch, intended, nearest)
	fmt.Fprintf(&b, "| Branch | Commits since fork point |\n|---|---|\n")
	for _, sb := range model.StageBranches {
		fmt.Fprintf(&b, "| %s | %s |\n", sb, distances[sb])
	}
	return b.String()
}
