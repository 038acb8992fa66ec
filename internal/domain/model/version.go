package model

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Prerelease identifies the prerelease channel of a version, if any.
type Prerelease string

const (
	PreNone  Prerelease = ""
	PreAlpha Prerelease = "alpha"
	PreBeta  Prerelease = "beta"
)

// Version is the structured form of a release tag
// v<year>.<revision>[.<patch>][-<prerelease>.<iteration>[.<fix>]].
// Optional components carry an explicit presence flag so callers can
// distinguish "absent" from "zero" instead of guessing.
type Version struct {
	Year     int
	Revision int
	Patch    int
	HasPatch bool
	Pre      Prerelease
	// Iteration is only meaningful when Pre != PreNone.
	Iteration int
	Fix       int
	HasFix    bool
}

// versionPattern enforces the tag grammar. Year is pinned to 20xx.
var versionPattern = regexp.MustCompile(`^v(20\d{2})\.(\d+)(?:\.(\d+))?(?:-(alpha|beta)\.(\d+)(?:\.(\d+))?)?$`)

// ParseVersion parses a release tag into its structured form.
// It returns a version_format error naming the offending string when the
// tag does not match the grammar.
func ParseVersion(s string) (Version, error) {
	m := versionPattern.FindStringSubmatch(s)
	if m == nil {
		return Version{}, Errorf(ErrKindVersionFormat, "invalid version %q: expected v<year>.<revision>[.<patch>][-alpha|beta.<iteration>[.<fix>]]", s)
	}

	v := Version{
		Year:     mustAtoi(m[1]),
		Revision: mustAtoi(m[2]),
	}
	if m[3] != "" {
		v.Patch = mustAtoi(m[3])
		v.HasPatch = true
	}
	if m[4] != "" {
		v.Pre = Prerelease(m[4])
		v.Iteration = mustAtoi(m[5])
		if m[6] != "" {
			v.Fix = mustAtoi(m[6])
			v.HasFix = true
		}
	}
	return v, nil
}

// mustAtoi converts a digit-only submatch; the pattern guarantees it parses.
func mustAtoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		panic(fmt.Sprintf("version pattern produced non-numeric submatch %q", s))
	}
	return n
}

// String reassembles the canonical tag form.
func (v Version) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "v%d.%d", v.Year, v.Revision)
	if v.HasPatch {
		fmt.Fprintf(&b, ".%d", v.Patch)
	}
	if v.Pre != PreNone {
		fmt.Fprintf(&b, "-%s.%d", v.Pre, v.Iteration)
		if v.HasFix {
			fmt.Fprintf(&b, ".%d", v.Fix)
		}
	}
	return b.String()
}

// IsPrerelease reports whether the version carries an alpha or beta suffix.
func (v Version) IsPrerelease() bool {
	return v.Pre != PreNone
}

// preRank orders prerelease channels for recency comparison:
// a finished release outranks its own prereleases, and beta outranks alpha.
func preRank(p Prerelease) int {
	switch p {
	case PreNone:
		return 2
	case PreBeta:
		return 1
	default:
		return 0
	}
}

// Compare defines a strict total order over version strings, suitable as a
// descending-recency sort key: positive when a is more recent than b, zero
// only when a == b after normalization. Malformed strings order below every
// well-formed version and lexically among themselves, so the order stays
// total for arbitrary tag sets.
func Compare(a, b string) int {
	va, errA := ParseVersion(a)
	vb, errB := ParseVersion(b)
	switch {
	case errA != nil && errB != nil:
		return strings.Compare(a, b)
	case errA != nil:
		return -1
	case errB != nil:
		return 1
	}

	if c := va.Year - vb.Year; c != 0 {
		return c
	}
	if c := va.Revision - vb.Revision; c != 0 {
		return c
	}
	if c := patchOrZero(va) - patchOrZero(vb); c != 0 {
		return c
	}
	if c := preRank(va.Pre) - preRank(vb.Pre); c != 0 {
		return c
	}
	if c := va.Iteration - vb.Iteration; c != 0 {
		return c
	}
	if c := fixOrZero(va) - fixOrZero(vb); c != 0 {
		return c
	}
	// v2025.3 and v2025.3.0 normalize equal; fall back to the raw strings
	// so distinct tags never compare as identical.
	return strings.Compare(a, b)
}

func patchOrZero(v Version) int {
	if v.HasPatch {
		return v.Patch
	}
	return 0
}

func fixOrZero(v Version) int {
	if v.HasFix {
		return v.Fix
	}
	return 0
}

// BuildExtendedVersion inserts an explicit ".0" patch segment into a version
// lacking one, so downstream consumers always see three numeric components.
// Versions already carrying a patch, and malformed input, pass through
// unchanged.
func BuildExtendedVersion(s string) string {
	v, err := ParseVersion(s)
	if err != nil || v.HasPatch {
		return s
	}
	v.Patch = 0
	v.HasPatch = true
	return v.String()
}

// PlainVersion strips the leading "v" from a tag for consumers that want the
// bare numeric form.
func PlainVersion(s string) string {
	return strings.TrimPrefix(s, "v")
}
