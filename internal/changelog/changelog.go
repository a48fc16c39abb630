// Package changelog renders and incrementally updates per-package and
// umbrella CHANGELOG.md files (§4.I). Grounded on the teacher's
// cmd/changelog.go, which parses Conventional Commits since the last tag
// and prepends generated markdown to CHANGELOG.md — generalized here from
// the teacher's unfetchable grovetools/core/conventional.Generate into a
// canonical-order, typed section renderer built on internal/commit.
package changelog

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/Spencerx/releasekit/internal/commit"
)

// Section is a canonical changelog grouping, in display order (§4.I:
// "grouped by type in a canonical order: Breaking Changes, Features, Bug
// Fixes, Performance, Reverts, Other").
type Section string

const (
	SectionBreaking    Section = "Breaking Changes"
	SectionFeatures    Section = "Features"
	SectionFixes       Section = "Bug Fixes"
	SectionPerformance Section = "Performance"
	SectionReverts     Section = "Reverts"
	SectionOther       Section = "Other"
)

var sectionOrder = []Section{
	SectionBreaking, SectionFeatures, SectionFixes, SectionPerformance, SectionReverts, SectionOther,
}

// Marker delimits the top of CHANGELOG.md's generated content; incremental
// updates insert the new section directly below it, ahead of every earlier
// section, and never touch those earlier sections.
const Marker = "<!-- releasekit:changelog:top -->"

// classify assigns a parsed commit to its canonical section.
func classify(c commit.Parsed) Section {
	switch {
	case c.Breaking:
		return SectionBreaking
	case c.IsRevert:
		return SectionReverts
	case c.Type == "feat":
		return SectionFeatures
	case c.Type == "fix":
		return SectionFixes
	case c.Type == "perf":
		return SectionPerformance
	default:
		return SectionOther
	}
}

// Entry is one changelog line item.
type Entry struct {
	ShortSHA string
	Subject  string
	PRRef    string
	Author   string
}

// RenderSection renders one package's new section for version at
// timestamp generatedAt, grouping commits into canonical sections (§4.I).
// Sections with no commits are omitted.
func RenderSection(pkg, version string, commits []commit.Parsed, generatedAt time.Time) string {
	grouped := make(map[Section][]Entry)
	for _, c := range commits {
		sha := string(c.SHA)
		short := sha
		if len(short) > 7 {
			short = short[:7]
		}
		section := classify(c)
		grouped[section] = append(grouped[section], Entry{
			ShortSHA: short,
			Subject:  c.Subject,
			PRRef:    extractPRRef(c.Subject),
			Author:   c.Author,
		})
	}

	var b strings.Builder
	fmt.Fprintf(&b, "## %s (%s)\n\n", version, generatedAt.Format("2006-01-02"))

	wrote := false
	for _, section := range sectionOrder {
		entries := grouped[section]
		if len(entries) == 0 {
			continue
		}
		wrote = true
		fmt.Fprintf(&b, "### %s\n\n", section)
		for _, e := range entries {
			line := fmt.Sprintf("- %s (%s)", e.Subject, e.ShortSHA)
			if e.PRRef != "" {
				line += fmt.Sprintf(" (%s)", e.PRRef)
			}
			if e.Author != "" {
				line += fmt.Sprintf(" @%s", e.Author)
			}
			b.WriteString(line + "\n")
		}
		b.WriteString("\n")
	}
	if !wrote {
		fmt.Fprintf(&b, "_No user-facing changes._\n\n")
	}
	return b.String()
}

// extractPRRef pulls a trailing "(#123)" reference out of a commit
// subject, if present, mirroring GitHub's squash-merge subject format.
func extractPRRef(subject string) string {
	idx := strings.LastIndex(subject, "(#")
	if idx < 0 || !strings.HasSuffix(subject, ")") {
		return ""
	}
	return subject[idx+1 : len(subject)-1]
}

// UpdateFile reads the CHANGELOG.md at path (if present), inserts
// newSection directly below the Marker, and writes the result, preserving
// every historical section after it untouched (§4.I: "never rewrites
// historical sections"). Without a Marker, a "# Changelog" header and the
// Marker are written first, followed by newSection and the old content.
func UpdateFile(path, newSection string) error {
	existing, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	var rebuilt string
	content := string(existing)
	if idx := strings.Index(content, Marker); idx >= 0 {
		rebuilt = content[:idx] + Marker + "\n\n" + newSection + content[idx+len(Marker):]
	} else {
		rebuilt = "# Changelog\n\n" + Marker + "\n\n" + newSection + content
	}

	return os.WriteFile(path, []byte(rebuilt), 0644)
}

// Umbrella aggregates several packages' freshly rendered sections into one
// body, for the Release-PR description and the forge release notes (§4.I:
// "an umbrella changelog aggregates all per-package sections").
func Umbrella(perPackage map[string]string) string {
	names := make([]string, 0, len(perPackage))
	for name := range perPackage {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		fmt.Fprintf(&b, "## %s\n\n%s", name, perPackage[name])
	}
	return b.String()
}
