package application

import (
	"time"

	"github.com/ericfisherdev/stagegate/internal/domain/model"
)

// NextVersionInput carries everything ComputeNextVersion needs. Prior
// versions are raw tag strings; empty string means "no such prior release".
type NextVersionInput struct {
	Stage     model.ReleaseStage
	Reference string
	Hotfix    bool
	// PreviousVersion is the most recent tag relevant to the stage's own
	// lineage: the latest alpha tag for alpha and beta computations.
	PreviousVersion string
	// LastProduction is the most recent tag cut on main.
	LastProduction string
	// PreviousStageVersion is the most recent tag on the stage's target
	// branch, consulted only for a hotfix of beta.
	PreviousStageVersion string
	// Now supplies the calendar year for spike detection.
	Now time.Time
}

// ComputeNextVersion computes the next release version for a promotion.
// It is a pure function: all prior-version knowledge comes in through the
// input, so the same input always yields the same tag.
func ComputeNextVersion(in NextVersionInput) (string, error) {
	if in.Hotfix && in.Stage == model.StageBeta {
		return nextBetaHotfix(in.PreviousStageVersion)
	}

	working := deriveWorkingVersion(in)

	if !in.Hotfix && in.Stage != model.StageProduction {
		switch in.Stage {
		case model.StageBeta:
			return nextBetaFromAlpha(in.Reference, in.PreviousVersion)
		case model.StageAlpha:
			return nextAlpha(working, in.PreviousVersion), nil
		}
	}

	return working.String(), nil
}

// nextBetaHotfix bumps the trailing fix component of the previous beta
// release, preserving year, revision, patch, and iteration.
func nextBetaHotfix(previousBeta string) (string, error) {
	if previousBeta == "" {
		return "", model.Errorf(model.ErrKindInvalidInput, "no previous beta release to hotfix")
	}

	v, err := model.ParseVersion(previousBeta)
	if err != nil || v.Pre != model.PreBeta {
		return "", model.Errorf(model.ErrKindVersionFormat, "malformed previous beta release %q: expected v<year>.<revision>[.<patch>]-beta.<iteration>[.<fix>]", previousBeta)
	}

	if !v.HasFix {
		v.Fix = 0
		v.HasFix = true
	}
	v.Fix++
	return v.String(), nil
}

// deriveWorkingVersion builds the year/revision base (plus patch suffix for
// a hotfix) from the last production release. With no usable production
// prior, the working version starts the current year at revision 1.
func deriveWorkingVersion(in NextVersionInput) model.Version {
	currentYear := in.Now.Year()

	prod, err := model.ParseVersion(in.LastProduction)
	if in.LastProduction == "" || err != nil {
		return model.Version{Year: currentYear, Revision: 1}
	}

	// A spike is the first release of a new calendar year: revision resets.
	spike := prod.Year != currentYear

	year := currentYear
	if in.Hotfix {
		year = prod.Year
	}

	revision := prod.Revision + 1
	switch {
	case in.Hotfix:
		revision = prod.Revision
	case spike:
		revision = 1
	}

	v := model.Version{Year: year, Revision: revision}

	if in.Hotfix {
		patch := 0
		if prod.HasPatch {
			patch = prod.Patch
		}
		v.Patch = patch + 1
		v.HasPatch = true
	}

	return v
}

// nextBetaFromAlpha promotes an alpha version to beta by substituting the
// prerelease token, preserving all numeric parts. The base is the explicit
// reference when given, else the latest alpha release.
func nextBetaFromAlpha(reference, previousAlpha string) (string, error) {
	base := reference
	if base == "" {
		base = previousAlpha
	}
	if base == "" {
		return "", model.Errorf(model.ErrKindInvalidInput, "no previous alpha release to promote to beta")
	}

	v, err := model.ParseVersion(base)
	if err != nil || v.Pre != model.PreAlpha || v.HasPatch || v.HasFix {
		return "", model.Errorf(model.ErrKindVersionFormat, "malformed alpha version %q for beta promotion: expected v<year>.<revision>-alpha.<iteration>", base)
	}

	v.Pre = model.PreBeta
	return v.String(), nil
}

// nextAlpha continues the alpha iteration when the previous alpha shares the
// working year and revision, otherwise starts a fresh iteration at 1.
func nextAlpha(working model.Version, previousAlpha string) string {
	iteration := 1
	if previousAlpha != "" {
		prev, err := model.ParseVersion(previousAlpha)
		if err == nil && prev.Pre == model.PreAlpha &&
			prev.Year == working.Year && prev.Revision == working.Revision {
			iteration = prev.Iteration + 1
		}
	}

	working.Pre = model.PreAlpha
	working.Iteration = iteration
	return working.String()
}
