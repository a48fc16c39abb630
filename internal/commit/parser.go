// Package commit parses Conventional Commits (§4.C), the grammar the
// teacher enforces via its commit-msg hook (cmd/internal/validate_commit.go
// calls `github.com/grovetools/core/conventional`.Parse and rejects the
// commit on error). ReleaseKit's parser is read-only and side-effect-free:
// it never rejects a commit, it only extracts bump intent from history.
package commit

import (
	"regexp"
	"strings"

	"github.com/Spencerx/releasekit/internal/backend"
)

// Kind is the bump intent carried by a commit type, per §4.C / §4.D.
type Kind string

const (
	KindNone  Kind = "none"
	KindPatch Kind = "patch"
	KindMinor Kind = "minor"
	KindMajor Kind = "major"
)

// Parsed is a single parsed Conventional Commit, extending backend.Commit
// with the grammar §4.C and §3 require.
type Parsed struct {
	SHA         backend.SHA
	Message     string
	Author      string
	Subject     string
	Type        string
	Scope       string
	Breaking    bool
	IsRevert    bool
	RevertsSHA  string
}

// Bump returns the version bump kind implied by this commit's type/breaking
// flag, per §4.C's type list and §4.D's kind ordering (major > minor >
// patch). Unrecognized types contribute KindNone.
func (p Parsed) Bump() Kind {
	if p.Breaking {
		return KindMajor
	}
	switch p.Type {
	case "feat":
		return KindMinor
	case "fix", "perf":
		return KindPatch
	default:
		return KindNone
	}
}

var (
	subjectRe = regexp.MustCompile(`^([a-zA-Z]+)(\(([^)]+)\))?(!)?:\s*(.+)$`)
	breakingFooterRe = regexp.MustCompile(`(?m)^BREAKING[ -]CHANGE:\s*(.+)$`)
	refsFooterRe     = regexp.MustCompile(`(?m)^Refs:\s*(.+)$`)
	revertPrefixRe   = regexp.MustCompile(`^revert:\s*(.+)$`)
	githubRevertRe   = regexp.MustCompile(`^Revert\s+"(.+)"$`)
	revertedShaRe    = regexp.MustCompile(`(?im)^This reverts commit ([0-9a-f]{7,40})\.?`)
)

// Parse extracts bump intent, scope, breaking status, and revert metadata
// from a raw commit message. It never returns an error: an unparseable
// subject yields a Parsed with Type == "" (contributing zero bumps per
// §4.D), because the parser "is deterministic and side-effect-free" (§4.C)
// and unlike the teacher's commit-msg hook, ReleaseKit never rejects
// history it is merely reading.
func Parse(sha backend.SHA, author, message string) Parsed {
	message = strings.ReplaceAll(message, "\r\n", "\n")
	lines := strings.SplitN(message, "\n", 2)
	subject := strings.TrimSpace(lines[0])
	body := ""
	if len(lines) > 1 {
		body = lines[1]
	}

	p := Parsed{SHA: sha, Author: author, Message: message, Subject: subject}

	if m := githubRevertRe.FindStringSubmatch(subject); m != nil {
		p.IsRevert = true
		if rm := revertedShaRe.FindStringSubmatch(body); rm != nil {
			p.RevertsSHA = rm[1]
		}
		// The reverted subject still carries a type/scope worth recording
		// for display, even though Bump() is irrelevant for reverts.
		if inner := subjectRe.FindStringSubmatch(m[1]); inner != nil {
			p.Type = strings.ToLower(inner[1])
			p.Scope = inner[3]
		}
		return p
	}

	workingSubject := subject
	if m := revertPrefixRe.FindStringSubmatch(subject); m != nil {
		p.IsRevert = true
		workingSubject = m[1]
		if rm := revertedShaRe.FindStringSubmatch(body); rm != nil {
			p.RevertsSHA = rm[1]
		}
	}

	m := subjectRe.FindStringSubmatch(workingSubject)
	if m == nil {
		return p
	}

	p.Type = strings.ToLower(m[1])
	p.Scope = m[3]
	if m[4] == "!" {
		p.Breaking = true
	}

	if breakingFooterRe.MatchString(body) {
		p.Breaking = true
	}

	if p.Type == "revert" {
		p.IsRevert = true
		if rm := revertedShaRe.FindStringSubmatch(body); rm != nil {
			p.RevertsSHA = rm[1]
		}
	}

	return p
}

// RefsFooter extracts a "Refs: #123" footer, if present, used by the
// changelog generator to attach PR references (§4.I).
func RefsFooter(message string) string {
	m := refsFooterRe.FindStringSubmatch(message)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}
