package version

import (
	"fmt"
	"strconv"
	"strings"

	mastsemver "github.com/Masterminds/semver/v3"

	"github.com/Spencerx/releasekit/internal/commit"
)

// Semver implements Scheme for MAJOR.MINOR.PATCH[-label.N], grounded on
// github.com/Masterminds/semver/v3 for parsing/comparison, with
// prerelease-counter bookkeeping layered on top per §4.D: "Prerelease
// counter resets to 1 on label change, increments on same-label republish."
type Semver struct{}

func NewSemver() *Semver { return &Semver{} }

func (s *Semver) Parse(raw string) (string, error) {
	v, err := mastsemver.NewVersion(raw)
	if err != nil {
		return "", fmt.Errorf("parsing semver %q: %w", raw, err)
	}
	return v.String(), nil
}

func (s *Semver) Compare(a, b string) (int, error) {
	va, err := mastsemver.NewVersion(a)
	if err != nil {
		return 0, fmt.Errorf("parsing semver %q: %w", a, err)
	}
	vb, err := mastsemver.NewVersion(b)
	if err != nil {
		return 0, fmt.Errorf("parsing semver %q: %w", b, err)
	}
	return va.Compare(vb), nil
}

func (s *Semver) StripPrerelease(raw string) (string, error) {
	v, err := mastsemver.NewVersion(raw)
	if err != nil {
		return "", fmt.Errorf("parsing semver %q: %w", raw, err)
	}
	return fmt.Sprintf("%d.%d.%d", v.Major(), v.Minor(), v.Patch()), nil
}

func (s *Semver) Bump(from string, kind commit.Kind, label string) (string, error) {
	v, err := mastsemver.NewVersion(from)
	if err != nil {
		return "", fmt.Errorf("parsing semver %q: %w", from, err)
	}

	major, minor, patch := v.Major(), v.Minor(), v.Patch()
	prevLabel, prevN := splitPrerelease(v.Prerelease())

	switch kind {
	case commit.KindMajor:
		major, minor, patch = major+1, 0, 0
	case commit.KindMinor:
		minor, patch = minor+1, 0
	case commit.KindPatch:
		patch = patch + 1
	case commit.KindNone:
		// no base bump; only the prerelease counter may move (below).
	}

	if label == "" {
		return fmt.Sprintf("%d.%d.%d", major, minor, patch), nil
	}

	if kind == commit.KindNone && prevLabel != "" && label != prevLabel && RankOf(label) > RankOf(prevLabel) {
		return "", fmt.Errorf("cannot move prerelease label %q backward to %q: alpha -> beta -> rc -> stable is strictly forward", prevLabel, label)
	}

	n := 1
	if kind == commit.KindNone && prevLabel == label {
		n = prevN + 1
	}
	return fmt.Sprintf("%d.%d.%d-%s.%d", major, minor, patch, label, n), nil
}

func splitPrerelease(pre string) (label string, n int) {
	if pre == "" {
		return "", 0
	}
	parts := strings.SplitN(pre, ".", 2)
	label = parts[0]
	if len(parts) == 2 {
		if parsed, err := strconv.Atoi(parts[1]); err == nil {
			n = parsed
		}
	}
	return label, n
}
