package version

import (
	"fmt"
	"sort"

	"github.com/Spencerx/releasekit/internal/commit"
	"github.com/Spencerx/releasekit/internal/depgraph"
)

// BumpReason records why a package appears in the plan (§3 VersionBump).
type BumpReason string

const (
	ReasonDirect       BumpReason = "direct"
	ReasonTransitive   BumpReason = "transitive"
	ReasonSynchronize  BumpReason = "synchronize"
)

// PackageBump is one package's entry in a release plan.
type PackageBump struct {
	Package     string
	FromVersion string
	ToVersion   string
	Kind        commit.Kind
	Reason      BumpReason
}

// Plan is the full output of the version engine: every package that will
// be released, plus the set explicitly skipped (zero bumps, not forced).
type Plan struct {
	Bumps   map[string]*PackageBump
	Skipped []string
}

// PackageContext is the per-package configuration the engine needs to
// apply Phase 4 (scheme + prerelease label) and Phase 3 (synchronize
// grouping), resolved by the caller from internal/config's layered
// resolution before the engine runs.
type PackageContext struct {
	Scheme           Scheme
	PrereleaseLabel  string
	SynchronizeGroup string // workspace label; empty means "no workspace", never synchronized
	Synchronize      bool   // the owning workspace's synchronize flag
}

// Engine computes a release Plan from per-package commit windows and the
// dependency graph (§4.D, Phases 1-4).
type Engine struct {
	Graph *depgraph.Graph
}

func NewEngine(graph *depgraph.Graph) *Engine {
	return &Engine{Graph: graph}
}

// Compute runs all four phases. commits maps package name to its release
// window (vcs.log(since_tag=last_tag(package), paths=[package.path])).
// fromVersions maps package name to its current released version.
// forceUnchanged corresponds to the CLI's --force-unchanged: when true, a
// package with zero direct bump commits still receives a patch bump
// instead of being skipped.
func (e *Engine) Compute(
	commits map[string][]commit.Parsed,
	fromVersions map[string]string,
	ctxs map[string]PackageContext,
	forceUnchanged bool,
) (*Plan, error) {
	directKinds, directReverts := phase1DirectBumps(commits, forceUnchanged)

	allKinds := make(map[string]commit.Kind, len(directKinds))
	reasons := make(map[string]BumpReason, len(directKinds))
	for name, kind := range directKinds {
		allKinds[name] = kind
		reasons[name] = ReasonDirect
	}

	phase2TransitivePropagation(e.Graph, allKinds, reasons)
	sharedTargets, err := phase3Synchronize(allKinds, reasons, ctxs, fromVersions)
	if err != nil {
		return nil, err
	}

	plan := &Plan{Bumps: make(map[string]*PackageBump)}

	names := make([]string, 0, len(allKinds))
	for name := range allKinds {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		kind := allKinds[name]
		from, ok := fromVersions[name]
		if !ok {
			return nil, fmt.Errorf("no current version known for package %q", name)
		}

		ctx, ok := ctxs[name]
		if !ok || ctx.Scheme == nil {
			return nil, fmt.Errorf("no version scheme configured for package %q", name)
		}

		to, ok := sharedTargets[name]
		if !ok {
			to, err = ctx.Scheme.Bump(from, kind, ctx.PrereleaseLabel)
			if err != nil {
				return nil, fmt.Errorf("applying bump to %q: %w", name, err)
			}
		}

		plan.Bumps[name] = &PackageBump{
			Package:     name,
			FromVersion: from,
			ToVersion:   to,
			Kind:        kind,
			Reason:      reasons[name],
		}
	}

	for name := range commits {
		if _, bumped := plan.Bumps[name]; !bumped {
			plan.Skipped = append(plan.Skipped, name)
		}
	}
	sort.Strings(plan.Skipped)

	_ = directReverts // per-package count of applied reverts; not included in the Plan
	return plan, nil
}

// phase1DirectBumps walks each package's commit window and computes the
// highest non-zero per-kind counter, applying revert cancellation: "A
// revert decrements the counter for the bump kind of the commit it
// reverts if present in the same window; otherwise it is ignored" (§4.D).
func phase1DirectBumps(commits map[string][]commit.Parsed, forceUnchanged bool) (map[string]commit.Kind, map[string]int) {
	kinds := make(map[string]commit.Kind)
	revertsApplied := make(map[string]int)

	for pkg, window := range commits {
		counters := map[commit.Kind]int{commit.KindMajor: 0, commit.KindMinor: 0, commit.KindPatch: 0}
		bySHA := make(map[string]commit.Parsed, len(window))
		for _, c := range window {
			bySHA[string(c.SHA)] = c
		}

		// Count every non-revert commit first, then apply reverts, so that
		// cancellation does not depend on window order (vcs.Log returns
		// newest first, which puts a revert ahead of the commit it reverts).
		for _, c := range window {
			if c.IsRevert {
				continue
			}
			k := c.Bump()
			if k != commit.KindNone {
				counters[k]++
			}
		}
		for _, c := range window {
			if !c.IsRevert {
				continue
			}
			if c.RevertsSHA == "" {
				continue // "has no effect (not an error)" per §8
			}
			reverted, ok := findBySHAPrefix(bySHA, c.RevertsSHA)
			if !ok {
				continue
			}
			k := reverted.Bump()
			if k != commit.KindNone && counters[k] > 0 {
				counters[k]--
				revertsApplied[pkg]++
			}
		}

		kind := commit.KindNone
		switch {
		case counters[commit.KindMajor] > 0:
			kind = commit.KindMajor
		case counters[commit.KindMinor] > 0:
			kind = commit.KindMinor
		case counters[commit.KindPatch] > 0:
			kind = commit.KindPatch
		}

		if kind == commit.KindNone && forceUnchanged {
			kind = commit.KindPatch
		}
		if kind != commit.KindNone {
			kinds[pkg] = kind
		}
	}

	return kinds, revertsApplied
}

// findBySHAPrefix resolves a (possibly abbreviated) reverted SHA against
// the commit window, since `This reverts commit <sha>` may use a short
// hash.
func findBySHAPrefix(bySHA map[string]commit.Parsed, prefix string) (commit.Parsed, bool) {
	if c, ok := bySHA[prefix]; ok {
		return c, true
	}
	for sha, c := range bySHA {
		if len(sha) >= len(prefix) && sha[:len(prefix)] == prefix {
			return c, true
		}
	}
	return commit.Parsed{}, false
}

// phase2TransitivePropagation implements: "BFS from the set of directly-
// bumped packages along reverse internal edges. Each reached dependent
// receives a patch bump with reason=transitive if it does not already
// have a direct bump. Rule: any direct bump induces patch on dependents —
// never major" (§4.D), and §8 invariant 7: "Transitive propagation never
// produces a bump kind greater than patch on an indirectly-affected
// package."
func phase2TransitivePropagation(graph *depgraph.Graph, kinds map[string]commit.Kind, reasons map[string]BumpReason) {
	seedNames := make([]string, 0, len(kinds))
	for name := range kinds {
		seedNames = append(seedNames, name)
	}
	sort.Strings(seedNames)

	visited := make(map[string]bool, len(kinds))
	queue := append([]string(nil), seedNames...)
	for _, n := range seedNames {
		visited[n] = true
	}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		dependents := append([]string(nil), graph.GetDependents(current)...)
		sort.Strings(dependents)
		for _, dep := range dependents {
			if visited[dep] {
				continue
			}
			visited[dep] = true
			if _, hasDirect := kinds[dep]; !hasDirect {
				kinds[dep] = commit.KindPatch
				reasons[dep] = ReasonTransitive
			}
			queue = append(queue, dep)
		}
	}
}

// phase3Synchronize implements: "If the workspace sets synchronize =
// true, compute the maximum bump kind across the plan; apply that kind
// to every published package with a shared target version string" (§4.D).
// Grouping is by PackageContext.SynchronizeGroup (the owning workspace
// label); only groups with at least one member whose workspace has
// Synchronize == true are affected. A shared target version string means
// every member lands on the *same* ToVersion, not merely the same bump
// kind applied to each member's own base version — so this also picks the
// group's highest current version (by the group's scheme) and bumps that
// single base once, returning the result for every member to use as its
// ToVersion regardless of where it started.
func phase3Synchronize(kinds map[string]commit.Kind, reasons map[string]BumpReason, ctxs map[string]PackageContext, fromVersions map[string]string) (map[string]string, error) {
	groups := make(map[string][]string)
	for name, ctx := range ctxs {
		if ctx.SynchronizeGroup == "" || !ctx.Synchronize {
			continue
		}
		groups[ctx.SynchronizeGroup] = append(groups[ctx.SynchronizeGroup], name)
	}

	groupNames := make([]string, 0, len(groups))
	for group := range groups {
		groupNames = append(groupNames, group)
	}
	sort.Strings(groupNames)

	targets := make(map[string]string)

	for _, group := range groupNames {
		members := groups[group]
		sort.Strings(members)

		maxKind := commit.KindNone
		anyBumped := false
		for _, name := range members {
			if k, ok := kinds[name]; ok {
				anyBumped = true
				if kindRank(k) > kindRank(maxKind) {
					maxKind = k
				}
			}
		}
		if !anyBumped {
			continue
		}

		scheme := ctxs[members[0]].Scheme
		base := ""
		for _, name := range members {
			from, ok := fromVersions[name]
			if !ok {
				continue
			}
			if base == "" {
				base = from
				continue
			}
			cmp, err := scheme.Compare(from, base)
			if err != nil {
				return nil, fmt.Errorf("comparing versions within synchronize group %q: %w", group, err)
			}
			if cmp > 0 {
				base = from
			}
		}
		if base == "" {
			return nil, fmt.Errorf("synchronize group %q has no known base version to bump from", group)
		}

		target, err := scheme.Bump(base, maxKind, ctxs[members[0]].PrereleaseLabel)
		if err != nil {
			return nil, fmt.Errorf("computing shared target for synchronize group %q: %w", group, err)
		}

		for _, name := range members {
			kinds[name] = maxKind
			reasons[name] = ReasonSynchronize
			targets[name] = target
		}
	}

	return targets, nil
}

func kindRank(k commit.Kind) int {
	switch k {
	case commit.KindMajor:
		return 3
	case commit.KindMinor:
		return 2
	case commit.KindPatch:
		return 1
	default:
		return 0
	}
}
