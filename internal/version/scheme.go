// Package version implements the §4.D Version Engine: per-package bump
// computation, transitive propagation, synchronize mode, and scheme
// application (semver, PEP 440, CalVer) behind a small strategy interface
// per §9's "Versioning-scheme extension point."
package version

import (
	"fmt"

	"github.com/Spencerx/releasekit/internal/commit"
)

// Stability orders prerelease labels for escalation/promotion (§4.D):
// "alpha < beta < rc" and the order is strictly forward.
type Stability int

const (
	StabilityStable Stability = iota
	StabilityRC
	StabilityBeta
	StabilityAlpha
)

var stabilityRank = map[string]Stability{
	"alpha": StabilityAlpha,
	"beta":  StabilityBeta,
	"rc":    StabilityRC,
}

// RankOf returns the stability rank of a prerelease label, or
// StabilityStable if the label is empty/unrecognized.
func RankOf(label string) Stability {
	if r, ok := stabilityRank[label]; ok {
		return r
	}
	return StabilityStable
}

// Scheme is the versioning-scheme strategy: parse, bump, compare, and
// attach/advance a prerelease label. Implementations: Semver, PEP440,
// CalVer.
type Scheme interface {
	// Parse validates and normalizes a version string.
	Parse(raw string) (string, error)

	// Bump applies a bump kind to a base version (any existing prerelease
	// suffix is stripped first, per §4.D), optionally attaching or
	// advancing a prerelease label. kind == commit.KindNone with a
	// non-empty label advances the prerelease counter on the existing
	// base without changing major.minor.patch.
	Bump(from string, kind commit.Kind, label string) (string, error)

	// Compare returns -1, 0, or 1 the way sort.Interface comparators do.
	Compare(a, b string) (int, error)

	// StripPrerelease returns the stable base version (promotion).
	StripPrerelease(v string) (string, error)
}

// SchemeFor resolves a config scheme name to its Scheme implementation.
func SchemeFor(name string) (Scheme, error) {
	switch name {
	case "", "semver":
		return NewSemver(), nil
	case "pep440":
		return NewPEP440(), nil
	case "calver":
		return NewCalVer(CalVerLayoutYYYYMMDD), nil
	case "calver-micro":
		return NewCalVer(CalVerLayoutYYYYMMMicro), nil
	default:
		return nil, fmt.Errorf("unknown versioning scheme %q", name)
	}
}
