package release

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// manifestVersion is the schema version written into every embedded
// manifest, so a future format change can detect and reject (or migrate)
// an old PR body rather than mis-parse it.
const manifestVersion = 1

const (
	fenceOpen  = "<!-- releasekit:manifest:begin -->\n```json\n"
	fenceClose = "\n```\n<!-- releasekit:manifest:end -->"
)

// ManifestPackage is one package's entry in the embedded PR manifest (§3
// "ReleasePR manifest").
type ManifestPackage struct {
	Name string `json:"name"`
	From string `json:"from"`
	To   string `json:"to"`
	Tag  string `json:"tag"`
}

// Manifest is the machine-readable plan embedded in a Release PR body.
// It, not the PR's prose, is the single source of truth the release step
// extracts on merge.
type Manifest struct {
	VersionManifestVersion int               `json:"version_manifest_version"`
	Packages               []ManifestPackage `json:"packages"`
	Umbrella               string            `json:"umbrella,omitempty"`
	CommitSHA              string            `json:"commit_sha,omitempty"`
}

// BuildManifest derives a Manifest from a Plan, formatting each package's
// tag via tagFormat (placeholders "{name}" and "{version}").
func BuildManifest(plan *Plan, tagFormat, umbrellaTag string) *Manifest {
	m := &Manifest{VersionManifestVersion: manifestVersion, CommitSHA: plan.GitSHA, Umbrella: umbrellaTag}
	for _, name := range sortedBumpNames(plan) {
		b := plan.Bumps[name]
		m.Packages = append(m.Packages, ManifestPackage{
			Name: b.Package,
			From: b.FromVersion,
			To:   b.ToVersion,
			Tag:  FormatTag(tagFormat, b.Package, b.ToVersion),
		})
	}
	return m
}

func sortedBumpNames(plan *Plan) []string {
	names := make([]string, 0, len(plan.Bumps))
	for name := range plan.Bumps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FormatTag expands a tag_format template (§6: "tag_format (`{name}`,
// `{version}` placeholders)").
func FormatTag(format, name, version string) string {
	r := strings.NewReplacer("{name}", name, "{version}", version)
	return r.Replace(format)
}

// Render embeds the manifest in a fenced, delimited JSON block suitable
// for a Release PR body, followed by prose (§4.H: "embeds the plan
// manifest in a fenced, delimited JSON block so that release can extract
// it verbatim").
func Render(m *Manifest, prose string) (string, error) {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding PR manifest: %w", err)
	}
	var b strings.Builder
	if prose != "" {
		b.WriteString(prose)
		b.WriteString("\n\n")
	}
	b.WriteString(fenceOpen)
	b.Write(data)
	b.WriteString(fenceClose)
	return b.String(), nil
}

// Extract locates and parses the fenced manifest block inside a PR body.
// Extract(Render(m, prose)) reproduces m exactly, satisfying the
// round-trip invariant the release step depends on to resume idempotently
// across reruns.
func Extract(body string) (*Manifest, error) {
	start := strings.Index(body, fenceOpen)
	if start < 0 {
		return nil, fmt.Errorf("no releasekit manifest block found in PR body")
	}
	rest := body[start+len(fenceOpen):]
	end := strings.Index(rest, fenceClose)
	if end < 0 {
		return nil, fmt.Errorf("releasekit manifest block is not terminated")
	}
	var m Manifest
	if err := json.Unmarshal([]byte(rest[:end]), &m); err != nil {
		return nil, fmt.Errorf("parsing releasekit manifest block: %w", err)
	}
	return &m, nil
}
