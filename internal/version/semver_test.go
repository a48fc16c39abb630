package version

import (
	"testing"

	"github.com/Spencerx/releasekit/internal/commit"
)

func TestSemverBumpMinor(t *testing.T) {
	s := NewSemver()
	got, err := s.Bump("1.0.0", commit.KindMinor, "")
	if err != nil {
		t.Fatal(err)
	}
	if got != "1.1.0" {
		t.Errorf("Bump() = %q, want 1.1.0", got)
	}
}

func TestSemverBumpMajorResetsMinorPatch(t *testing.T) {
	s := NewSemver()
	got, err := s.Bump("1.4.7", commit.KindMajor, "")
	if err != nil {
		t.Fatal(err)
	}
	if got != "2.0.0" {
		t.Errorf("Bump() = %q, want 2.0.0", got)
	}
}

func TestSemverPrereleaseFreshLabel(t *testing.T) {
	s := NewSemver()
	got, err := s.Bump("1.0.0", commit.KindMinor, "beta")
	if err != nil {
		t.Fatal(err)
	}
	if got != "1.1.0-beta.1" {
		t.Errorf("Bump() = %q, want 1.1.0-beta.1", got)
	}
}

func TestSemverPrereleaseSameLabelIncrements(t *testing.T) {
	s := NewSemver()
	got, err := s.Bump("1.1.0-beta.1", commit.KindNone, "beta")
	if err != nil {
		t.Fatal(err)
	}
	if got != "1.1.0-beta.2" {
		t.Errorf("Bump() = %q, want 1.1.0-beta.2", got)
	}
}

func TestSemverPrereleaseRejectsBackwardMove(t *testing.T) {
	s := NewSemver()
	if _, err := s.Bump("1.1.0-rc.1", commit.KindNone, "alpha"); err == nil {
		t.Fatal("expected rc -> alpha to be rejected as a backward move")
	}
}

func TestSemverPromotionStripsPrerelease(t *testing.T) {
	s := NewSemver()
	got, err := s.StripPrerelease("1.1.0-rc.3")
	if err != nil {
		t.Fatal(err)
	}
	if got != "1.1.0" {
		t.Errorf("StripPrerelease() = %q, want 1.1.0", got)
	}
}

func TestPEP440BumpAndPrerelease(t *testing.T) {
	p := NewPEP440()
	got, err := p.Bump("1.2.3", commit.KindMinor, "alpha")
	if err != nil {
		t.Fatal(err)
	}
	if got != "1.3.0a1" {
		t.Errorf("Bump() = %q, want 1.3.0a1", got)
	}

	got2, err := p.Bump(got, commit.KindNone, "alpha")
	if err != nil {
		t.Fatal(err)
	}
	if got2 != "1.3.0a2" {
		t.Errorf("Bump() = %q, want 1.3.0a2", got2)
	}
}

func TestPEP440RejectsBackwardMove(t *testing.T) {
	p := NewPEP440()
	if _, err := p.Bump("1.3.0rc1", commit.KindNone, "alpha"); err == nil {
		t.Fatal("expected rc -> alpha to be rejected as a backward move")
	}
}

func TestCalVerSameMonthIncrementsMicro(t *testing.T) {
	c := NewCalVer(CalVerLayoutYYYYMMMicro)
	c.Today = func() (int, int, int) { return 2026, 7, 30 }
	got, err := c.Bump("2026.7.1", commit.KindPatch, "")
	if err != nil {
		t.Fatal(err)
	}
	if got != "2026.7.2" {
		t.Errorf("Bump() = %q, want 2026.7.2", got)
	}
}

func TestCalVerNewMonthResetsMicro(t *testing.T) {
	c := NewCalVer(CalVerLayoutYYYYMMMicro)
	c.Today = func() (int, int, int) { return 2026, 8, 1 }
	got, err := c.Bump("2026.7.5", commit.KindPatch, "")
	if err != nil {
		t.Fatal(err)
	}
	if got != "2026.8.1" {
		t.Errorf("Bump() = %q, want 2026.8.1", got)
	}
}
