package commit

import "testing"

func TestParseFeat(t *testing.T) {
	p := Parse("abc123", "jane", "feat(api): add new endpoint")
	if p.Type != "feat" || p.Scope != "api" {
		t.Fatalf("unexpected parse: %+v", p)
	}
	if p.Bump() != KindMinor {
		t.Errorf("Bump() = %v, want minor", p.Bump())
	}
}

func TestParseBreakingBang(t *testing.T) {
	p := Parse("abc123", "jane", "feat!: drop legacy flag")
	if !p.Breaking {
		t.Fatal("expected Breaking = true")
	}
	if p.Bump() != KindMajor {
		t.Errorf("Bump() = %v, want major", p.Bump())
	}
}

func TestParseBreakingFooter(t *testing.T) {
	p := Parse("abc123", "jane", "fix: patch a leak\n\nBREAKING CHANGE: changes default timeout")
	if !p.Breaking {
		t.Fatal("expected Breaking = true from footer")
	}
}

func TestParseFix(t *testing.T) {
	p := Parse("abc123", "jane", "fix: correct off-by-one")
	if p.Bump() != KindPatch {
		t.Errorf("Bump() = %v, want patch", p.Bump())
	}
}

func TestParseChoreIsZeroBump(t *testing.T) {
	p := Parse("abc123", "jane", "chore: bump deps")
	if p.Bump() != KindNone {
		t.Errorf("Bump() = %v, want none", p.Bump())
	}
}

func TestParseUnparseableIsZeroBump(t *testing.T) {
	p := Parse("abc123", "jane", "wip stuff, not conventional")
	if p.Type != "" {
		t.Errorf("expected empty type, got %q", p.Type)
	}
	if p.Bump() != KindNone {
		t.Errorf("Bump() = %v, want none", p.Bump())
	}
}

func TestParseExplicitRevertPrefix(t *testing.T) {
	p := Parse("def456", "jane", "revert: feat: add Y\n\nThis reverts commit abc1234567.")
	if !p.IsRevert {
		t.Fatal("expected IsRevert = true")
	}
	if p.RevertsSHA != "abc1234567" {
		t.Errorf("RevertsSHA = %q", p.RevertsSHA)
	}
}

func TestParseGitHubRevertSubject(t *testing.T) {
	p := Parse("def456", "jane", `Revert "feat(api): add new endpoint"`+"\n\nThis reverts commit abc1234567.")
	if !p.IsRevert {
		t.Fatal("expected IsRevert = true")
	}
	if p.Type != "feat" || p.Scope != "api" {
		t.Errorf("expected inner type/scope preserved, got %+v", p)
	}
	if p.RevertsSHA != "abc1234567" {
		t.Errorf("RevertsSHA = %q", p.RevertsSHA)
	}
}

func TestParseRevertWithNoMatchHasNoEffect(t *testing.T) {
	p := Parse("def456", "jane", "revert: something that never happened")
	if !p.IsRevert {
		t.Fatal("expected IsRevert = true")
	}
	if p.RevertsSHA != "" {
		t.Errorf("expected no RevertsSHA, got %q", p.RevertsSHA)
	}
}

func TestRefsFooter(t *testing.T) {
	got := RefsFooter("fix: bug\n\nRefs: #42")
	if got != "#42" {
		t.Errorf("RefsFooter() = %q, want #42", got)
	}
}
