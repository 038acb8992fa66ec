package model

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// StageBranch is one of the three long-lived branches of the promotion
// pipeline, ordered by pipeline position (develop → release → main).
type StageBranch string

const (
	BranchDevelop StageBranch = "develop"
	BranchRelease StageBranch = "release"
	BranchMain    StageBranch = "main"
)

// StageBranches lists the canonical branches in pipeline order.
var StageBranches = []StageBranch{BranchDevelop, BranchRelease, BranchMain}

// Position returns the branch's index in the promotion pipeline.
func (b StageBranch) Position() int {
	switch b {
	case BranchDevelop:
		return 0
	case BranchRelease:
		return 1
	default:
		return 2
	}
}

// ReleaseStage is one of the three promotion stages, each bound 1:1 to a
// target StageBranch.
type ReleaseStage string

const (
	StageAlpha      ReleaseStage = "alpha"
	StageBeta       ReleaseStage = "beta"
	StageProduction ReleaseStage = "production"
)

// ParseStage validates a stage name coming from the environment.
func ParseStage(s string) (ReleaseStage, error) {
	switch ReleaseStage(s) {
	case StageAlpha, StageBeta, StageProduction:
		return ReleaseStage(s), nil
	}
	return "", Errorf(ErrKindInvalidInput, "unknown stage %q: expected alpha, beta, or production", s)
}

// TargetBranch returns the branch a stage releases onto.
func (s ReleaseStage) TargetBranch() StageBranch {
	switch s {
	case StageAlpha:
		return BranchDevelop
	case StageBeta:
		return BranchRelease
	default:
		return BranchMain
	}
}

// SourceBranch returns the default branch a stage releases from. A hotfix
// overrides this with an explicit reference.
func (s ReleaseStage) SourceBranch() StageBranch {
	switch s {
	case StageProduction:
		return BranchRelease
	default:
		return BranchDevelop
	}
}

// Title returns the stage name with an initial capital, for operator-facing
// messages.
func (s ReleaseStage) Title() string {
	if s == "" {
		return "Alpha"
	}
	return strings.ToUpper(string(s[:1])) + string(s[1:])
}

// ReleaseTag is a published release tag classified by the branch it was cut
// on. The full tag set is fetched fresh once per run; records are read-only.
type ReleaseTag struct {
	Tag       string
	Branch    StageBranch
	CreatedAt time.Time
}

// BranchForTag derives the branch a tag was cut on from its suffix.
func BranchForTag(tag string) StageBranch {
	switch {
	case strings.Contains(tag, "-alpha."):
		return BranchDevelop
	case strings.Contains(tag, "-beta."):
		return BranchRelease
	default:
		return BranchMain
	}
}

// ForkDistance counts commits from a fork point to a head ref.
// DistanceInfinite means no usable fork point was found: the head is
// unrelated to the base, or provenance could not be determined.
type ForkDistance int64

// DistanceInfinite is the "unrelated or undeterminable" sentinel.
const DistanceInfinite ForkDistance = math.MaxInt64

// IsFinite reports whether the distance comes from a real fork point.
func (d ForkDistance) IsFinite() bool {
	return d != DistanceInfinite
}

// String renders the distance for summaries, with "∞" for the sentinel.
func (d ForkDistance) String() string {
	if !d.IsFinite() {
		return "∞"
	}
	return strconv.FormatInt(int64(d), 10)
}

// PullRequestCandidate is an open pull request under provenance scrutiny.
// Candidates are ephemeral: fetched fresh per invocation, never stored.
type PullRequestCandidate struct {
	Number     int
	Title      string
	URL        string
	HeadRef    string
	BaseBranch string
	IsDraft    bool
}

// Artifact is workflow artifact metadata, used by the idempotency guard to
// detect a prior attempt's "blocking PRs found" flag.
type Artifact struct {
	ID        int64
	Name      string
	RunID     int64
	CreatedAt time.Time
}
