package version

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/Spencerx/releasekit/internal/commit"
)

// CalVerLayout selects between the two CalVer shapes §4.D names.
type CalVerLayout int

const (
	CalVerLayoutYYYYMMDD CalVerLayout = iota
	CalVerLayoutYYYYMMMicro
)

// CalVer implements Scheme for `YYYY.MM.DD` / `YYYY.MM.MICRO` (§4.D:
// "'Kind' maps to micro on same-day release."). There is no calendar-
// versioning library anywhere in the retrieved pack, so date/micro
// arithmetic is hand-rolled; CalVer's bump semantics don't correspond to
// major/minor/patch in the first place, so there is nothing a semver-style
// library would add here.
type CalVer struct {
	Layout CalVerLayout
	// Today returns the current UTC date as (year, month, day). A field
	// rather than time.Now() directly so version bumps stay deterministic
	// and testable; callers supply it (typically from a single run-start
	// timestamp) and Bump never calls time.Now() itself.
	Today func() (int, int, int)
}

func NewCalVer(layout CalVerLayout) *CalVer {
	return &CalVer{Layout: layout, Today: func() (int, int, int) { return 0, 0, 0 }}
}

var calVerRe = regexp.MustCompile(`^(\d{4})\.(\d{1,2})\.(\d+)$`)

type calVerVersion struct {
	year, month, micro int
}

func parseCalVer(raw string) (calVerVersion, error) {
	m := calVerRe.FindStringSubmatch(raw)
	if m == nil {
		return calVerVersion{}, fmt.Errorf("invalid CalVer version %q", raw)
	}
	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	micro, _ := strconv.Atoi(m[3])
	return calVerVersion{year: year, month: month, micro: micro}, nil
}

func (v calVerVersion) String() string {
	return fmt.Sprintf("%04d.%d.%d", v.year, v.month, v.micro)
}

func (s *CalVer) Parse(raw string) (string, error) {
	v, err := parseCalVer(raw)
	if err != nil {
		return "", err
	}
	return v.String(), nil
}

func (s *CalVer) Compare(a, b string) (int, error) {
	va, err := parseCalVer(a)
	if err != nil {
		return 0, err
	}
	vb, err := parseCalVer(b)
	if err != nil {
		return 0, err
	}
	if d := va.year - vb.year; d != 0 {
		return sign(d), nil
	}
	if d := va.month - vb.month; d != 0 {
		return sign(d), nil
	}
	return sign(va.micro - vb.micro), nil
}

func (s *CalVer) StripPrerelease(raw string) (string, error) {
	return s.Parse(raw)
}

// Bump, for YYYY.MM.DD, moves to today's date; when the existing version
// already carries today's year/month and a day-as-micro of today or later
// (a same-day release), it increments that micro slot instead. For
// YYYY.MM.MICRO, it increments the micro counter when today falls in the
// existing version's year and month, and otherwise starts the new month at
// micro 1. CalVer has no prerelease-label concept in this spec's scope;
// label is accepted but ignored.
func (s *CalVer) Bump(from string, kind commit.Kind, label string) (string, error) {
	v, err := parseCalVer(from)
	if err != nil {
		return "", err
	}
	if kind == commit.KindNone {
		return v.String(), nil
	}

	year, month, day := s.Today()
	if s.Layout == CalVerLayoutYYYYMMDD {
		if year == v.year && month == v.month && v.micro >= day {
			return calVerVersion{year: year, month: month, micro: v.micro + 1}.String(), nil
		}
		return calVerVersion{year: year, month: month, micro: day}.String(), nil
	}
	// CalVerLayoutYYYYMMMicro: same month means a same-day-or-later
	// release within the month, so the micro counter increments instead
	// of resetting; a new month always starts micro back at 1.
	if year == v.year && month == v.month {
		return calVerVersion{year: year, month: month, micro: v.micro + 1}.String(), nil
	}
	return calVerVersion{year: year, month: month, micro: 1}.String(), nil
}
