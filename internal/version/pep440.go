package version

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/Spencerx/releasekit/internal/commit"
)

// PEP440 implements Scheme for X.Y.Z with aN/bN/rcN/.devN suffixes (§4.D).
// No PEP 440 parsing library appears anywhere in the retrieved pack, so
// this is a small hand-rolled parser limited to the release-segment +
// single-pre-release-segment subset §4.D actually requires; it
// deliberately does not implement the full PEP 440 grammar (epochs,
// post-releases, local version identifiers).
type PEP440 struct{}

func NewPEP440() *PEP440 { return &PEP440{} }

var pep440Re = regexp.MustCompile(`^(\d+)\.(\d+)\.(\d+)(?:(a|b|rc)(\d+)|\.dev(\d+))?$`)

type pep440Version struct {
	major, minor, patch int
	label               string // "a", "b", "rc", "dev", or ""
	n                   int
}

func parsePEP440(raw string) (pep440Version, error) {
	m := pep440Re.FindStringSubmatch(raw)
	if m == nil {
		return pep440Version{}, fmt.Errorf("invalid PEP 440 version %q", raw)
	}
	major, _ := strconv.Atoi(m[1])
	minor, _ := strconv.Atoi(m[2])
	patch, _ := strconv.Atoi(m[3])
	v := pep440Version{major: major, minor: minor, patch: patch}
	switch {
	case m[4] != "":
		v.label = m[4]
		v.n, _ = strconv.Atoi(m[5])
	case m[6] != "":
		v.label = "dev"
		v.n, _ = strconv.Atoi(m[6])
	}
	return v, nil
}

func (v pep440Version) String() string {
	base := fmt.Sprintf("%d.%d.%d", v.major, v.minor, v.patch)
	switch v.label {
	case "":
		return base
	case "dev":
		return fmt.Sprintf("%s.dev%d", base, v.n)
	default:
		return fmt.Sprintf("%s%s%d", base, v.label, v.n)
	}
}

func (s *PEP440) Parse(raw string) (string, error) {
	v, err := parsePEP440(raw)
	if err != nil {
		return "", err
	}
	return v.String(), nil
}

// pep440LabelRank orders pre-release labels for comparison: dev < a < b < rc < (final).
var pep440LabelRank = map[string]int{"dev": 0, "a": 1, "b": 2, "rc": 3, "": 4}

func (s *PEP440) Compare(a, b string) (int, error) {
	va, err := parsePEP440(a)
	if err != nil {
		return 0, err
	}
	vb, err := parsePEP440(b)
	if err != nil {
		return 0, err
	}

	if d := va.major - vb.major; d != 0 {
		return sign(d), nil
	}
	if d := va.minor - vb.minor; d != 0 {
		return sign(d), nil
	}
	if d := va.patch - vb.patch; d != 0 {
		return sign(d), nil
	}
	if d := pep440LabelRank[va.label] - pep440LabelRank[vb.label]; d != 0 {
		return sign(d), nil
	}
	return sign(va.n - vb.n), nil
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	default:
		return 0
	}
}

func (s *PEP440) StripPrerelease(raw string) (string, error) {
	v, err := parsePEP440(raw)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d.%d.%d", v.major, v.minor, v.patch), nil
}

func (s *PEP440) Bump(from string, kind commit.Kind, label string) (string, error) {
	v, err := parsePEP440(from)
	if err != nil {
		return "", err
	}

	prevLabel, prevN := v.label, v.n

	switch kind {
	case commit.KindMajor:
		v.major, v.minor, v.patch = v.major+1, 0, 0
		v.label, v.n = "", 0
	case commit.KindMinor:
		v.minor, v.patch = v.minor+1, 0
		v.label, v.n = "", 0
	case commit.KindPatch:
		v.patch = v.patch + 1
		v.label, v.n = "", 0
	case commit.KindNone:
		// base unchanged; only the prerelease counter may move below.
	}

	normalizedLabel := normalizePEP440Label(label)
	if normalizedLabel == "" {
		v.label, v.n = "", 0
		return v.String(), nil
	}

	if kind == commit.KindNone && prevLabel != "" && prevLabel != normalizedLabel &&
		pep440StabilityRank(normalizedLabel) > pep440StabilityRank(prevLabel) {
		return "", fmt.Errorf("cannot move prerelease label %q backward to %q: dev -> a -> b -> rc -> stable is strictly forward", prevLabel, normalizedLabel)
	}

	if kind == commit.KindNone && prevLabel == normalizedLabel {
		v.label, v.n = normalizedLabel, prevN+1
	} else {
		v.label, v.n = normalizedLabel, 1
	}
	return v.String(), nil
}

// pep440StabilityRank maps a PEP 440 short label onto the shared
// Stability ordering (§4.D: "alpha < beta < rc", strictly forward) via
// RankOf, with "dev" treated as one stage earlier than "alpha" since PEP
// 440 places .devN before aN in its own ordering (pep440LabelRank above).
func pep440StabilityRank(label string) int {
	if label == "dev" {
		return int(RankOf("alpha")) + 1
	}
	canonical := map[string]string{"a": "alpha", "b": "beta", "rc": "rc"}[label]
	return int(RankOf(canonical))
}

// normalizePEP440Label accepts the shared scheme-agnostic labels
// ("alpha", "beta", "rc") used by config/prerelease_label and maps them to
// PEP 440's short forms ("a", "b", "rc").
func normalizePEP440Label(label string) string {
	switch strings.ToLower(label) {
	case "alpha", "a":
		return "a"
	case "beta", "b":
		return "b"
	case "rc":
		return "rc"
	case "dev":
		return "dev"
	default:
		return ""
	}
}
