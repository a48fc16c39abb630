package discovery

import (
	"github.com/Spencerx/releasekit/internal/config"
	"github.com/Spencerx/releasekit/internal/depgraph"
)

// FilterOptions holds the --group/--package/--exclude selections (§3
// "Filtering"). The CLI defines only --group, which fills Groups.
type FilterOptions struct {
	Groups   []string
	Packages []string
	Exclude  []string
}

// Filter applies FilterOptions to the discovered package set, generalizing
// the teacher's glob-based FilterWorkspaces into the graph-aware selection
// §3 requires: "a graph-aware filter accepts --group G, --package P,
// --exclude X sets, and auto-includes transitive internal dependencies of
// any requested package so builds remain reproducible."
//
// An empty Groups+Packages selects every discovered package. Exclude is
// applied last and is NOT extended transitively — excluding a package does
// not exclude its dependents, since omitting a leaf dependency can still
// leave a buildable (if stale) graph; a genuinely broken exclusion surfaces
// later as a missing-dependency error during scheduling.
func Filter(result *Result, pkgConfigs map[string]*config.Package, opts FilterOptions) map[string]bool {
	selected := make(map[string]bool)

	if len(opts.Groups) == 0 && len(opts.Packages) == 0 {
		for name := range result.Packages {
			selected[name] = true
		}
	} else {
		groupSet := toSet(opts.Groups)
		pkgSet := toSet(opts.Packages)

		for name := range result.Packages {
			if pkgSet[name] {
				selected[name] = true
				continue
			}
			if pc, ok := pkgConfigs[name]; ok && pc != nil && groupSet[pc.Group] {
				selected[name] = true
			}
		}
	}

	selected = closeOverDependencies(result.Graph, selected)

	for _, name := range opts.Exclude {
		delete(selected, name)
	}

	return selected
}

// closeOverDependencies walks internal dependency edges from every selected
// package and adds every transitively-required dependency, so a filtered
// release plan always contains a buildable subgraph.
func closeOverDependencies(graph *depgraph.Graph, selected map[string]bool) map[string]bool {
	closed := make(map[string]bool, len(selected))
	var visit func(name string)
	visit = func(name string) {
		if closed[name] {
			return
		}
		closed[name] = true
		for _, dep := range graph.GetDependencies(name) {
			visit(dep)
		}
	}
	for name := range selected {
		visit(name)
	}
	return closed
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, item := range items {
		set[item] = true
	}
	return set
}
