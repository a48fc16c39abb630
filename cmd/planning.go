package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Spencerx/releasekit/internal/commit"
	"github.com/Spencerx/releasekit/internal/config"
	"github.com/Spencerx/releasekit/internal/version"
)

// resolvedConfigFor merges root/workspace/package config tiers for one
// package, the CLI-side counterpart of discovery's own resolution needs
// (§6 "package > workspace > root > built-in default").
func (r *runtime) resolvedConfigFor(name string) config.Resolved {
	label := r.workspaceLabelFor(name)
	var ws *config.Workspace
	if label != "" {
		ws = r.Config.Workspaces[label]
	}
	pkgCfg, _ := config.LoadPackage(r.Discovery.Packages[name].Dir)
	return config.Resolve(r.Config, ws, pkgCfg)
}

// packageContexts builds the version.PackageContext set the engine needs
// for every selected package. The UTC date is read once here and supplied
// to every CalVer scheme as its Today clock.
func (r *runtime) packageContexts(names map[string]bool) (map[string]version.PackageContext, error) {
	ctxs := make(map[string]version.PackageContext, len(names))
	year, month, day := time.Now().UTC().Date()
	for name := range names {
		resolved := r.resolvedConfigFor(name)
		scheme, err := version.SchemeFor(resolved.VersioningScheme)
		if err != nil {
			return nil, err
		}
		if cv, ok := scheme.(*version.CalVer); ok {
			cv.Today = func() (int, int, int) { return year, int(month), day }
		}
		ctxs[name] = version.PackageContext{
			Scheme:           scheme,
			PrereleaseLabel:  resolved.PrereleaseLabel,
			SynchronizeGroup: r.workspaceLabelFor(name),
			Synchronize:      resolved.Synchronize,
		}
	}
	return ctxs, nil
}

// tagFormatFor resolves the effective tag format for one package.
func (r *runtime) tagFormatFor(name string) string {
	return r.resolvedConfigFor(name).TagFormat
}

// fromVersions reports each selected package's currently-published
// version, taken from its manifest (the version the last successful
// release left behind).
func (r *runtime) fromVersions(names map[string]bool) map[string]string {
	versions := make(map[string]string, len(names))
	for name := range names {
		versions[name] = r.Discovery.Packages[name].Version
	}
	return versions
}

// commitWindows computes each selected package's release window: every
// commit touching its directory since the last tag matching its tag
// format, parsed into commit.Parsed (§4.D "commits = vcs.log(since_tag =
// last_tag(package), paths = [package.path])").
func (r *runtime) commitWindows(ctx context.Context, names map[string]bool, ctxs map[string]version.PackageContext) (map[string][]commit.Parsed, error) {
	windows := make(map[string][]commit.Parsed, len(names))
	for name := range names {
		info := r.Discovery.Packages[name]
		tagFormat := r.tagFormatFor(name)
		pattern := strings.NewReplacer("{name}", name, "{version}", "*").Replace(tagFormat)

		tags, err := r.VCS.ListTags(ctx, pattern)
		if err != nil {
			return nil, err
		}
		sinceTag := latestTag(tags, ctxs[name].Scheme)

		rawCommits, err := r.VCS.Log(ctx, sinceTag, []string{info.Dir})
		if err != nil {
			return nil, err
		}

		parsed := make([]commit.Parsed, 0, len(rawCommits))
		for _, c := range rawCommits {
			parsed = append(parsed, commit.Parse(c.SHA, c.Author, c.Message))
		}
		windows[name] = parsed
	}
	return windows, nil
}

// latestTag returns the highest tag by the package's versioning scheme,
// falling back to lexicographic order if the scheme can't parse one.
func latestTag(tags []string, scheme version.Scheme) string {
	if len(tags) == 0 {
		return ""
	}
	best := tags[0]
	for _, t := range tags[1:] {
		if scheme == nil {
			if t > best {
				best = t
			}
			continue
		}
		cmp, err := scheme.Compare(t, best)
		if err != nil {
			if t > best {
				best = t
			}
			continue
		}
		if cmp > 0 {
			best = t
		}
	}
	return best
}

// planSummary renders a Plan's bumps for human-readable plan/should-release
// output.
func planSummary(bumps map[string]*version.PackageBump) string {
	if len(bumps) == 0 {
		return "no releasable changes"
	}
	var b strings.Builder
	for name, bump := range bumps {
		fmt.Fprintf(&b, "%s: %s -> %s (%s, %s)\n", name, bump.FromVersion, bump.ToVersion, bump.Kind, bump.Reason)
	}
	return strings.TrimRight(b.String(), "\n")
}
