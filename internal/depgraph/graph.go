// Package depgraph implements the DependencyGraph of §3: packages as
// nodes, internal dependency edges only, Kahn's-algorithm topological
// leveling, and cycle detection. Generalized from the teacher's
// pkg/depsgraph/graph.go (single-ecosystem, Go-module-path keyed) to
// multi-ecosystem packages keyed by name.
package depgraph

import (
	"fmt"
	"sort"

	"github.com/Spencerx/releasekit/internal/diagnostics"
)

// Node is one workspace package participating in the release graph.
type Node struct {
	Name      string
	Ecosystem string
	Dir       string
	Version   string
}

// Graph is the dependency graph of all discovered packages. Edges are
// internal-only per §3: "Only internal edges participate in the release
// graph and propagation."
type Graph struct {
	nodes    map[string]*Node
	edges    map[string][]string // from -> [to] ("from depends on to")
	revEdges map[string][]string // to -> [from] ("to is depended on by from")
}

func NewGraph() *Graph {
	return &Graph{
		nodes:    make(map[string]*Node),
		edges:    make(map[string][]string),
		revEdges: make(map[string][]string),
	}
}

func (g *Graph) AddNode(n *Node) {
	g.nodes[n.Name] = n
}

// AddEdge records that `from` depends on `to`. Both must already be nodes;
// callers are responsible for classifying an edge as internal before
// calling AddEdge (see internal/discovery for the classification rule).
func (g *Graph) AddEdge(from, to string) {
	g.edges[from] = append(g.edges[from], to)
	g.revEdges[to] = append(g.revEdges[to], from)
}

func (g *Graph) GetNode(name string) (*Node, bool) {
	n, ok := g.nodes[name]
	return n, ok
}

func (g *Graph) GetDependencies(name string) []string { return g.edges[name] }
func (g *Graph) GetDependents(name string) []string   { return g.revEdges[name] }

func (g *Graph) AllNodes() map[string]*Node { return g.nodes }

// TopologicalSort performs Kahn's algorithm over the whole graph, returning
// packages grouped into levels that can be released in parallel (§4.B:
// "Topological levels are computed via Kahn's algorithm; ties within a
// level are broken by name for determinism.").
func (g *Graph) TopologicalSort() ([][]string, error) {
	return g.TopologicalSortWithFilter(nil)
}

// TopologicalSortWithFilter restricts the sort to the given subset of node
// names (nil means the whole graph), used by --group/--package filtering
// (§4.B) which must still respect internal dependency ordering among the
// filtered set.
func (g *Graph) TopologicalSortWithFilter(subset map[string]bool) ([][]string, error) {
	var consider map[string]bool
	if subset == nil {
		consider = make(map[string]bool, len(g.nodes))
		for name := range g.nodes {
			consider[name] = true
		}
	} else {
		consider = subset
	}

	if len(consider) == 0 {
		return [][]string{}, nil
	}

	inDegree := make(map[string]int, len(consider))
	for name := range consider {
		count := 0
		for _, dep := range g.edges[name] {
			if consider[dep] {
				count++
			}
		}
		inDegree[name] = count
	}

	var queue []string
	for name, deg := range inDegree {
		if deg == 0 {
			queue = append(queue, name)
		}
	}
	sort.Strings(queue)

	var levels [][]string
	processed := 0

	for len(queue) > 0 {
		level := make([]string, len(queue))
		copy(level, queue)
		sort.Strings(level)
		levels = append(levels, level)
		processed += len(level)

		var next []string
		for _, name := range queue {
			for _, dependent := range g.revEdges[name] {
				if !consider[dependent] {
					continue
				}
				inDegree[dependent]--
				if inDegree[dependent] == 0 {
					next = append(next, dependent)
				}
			}
		}
		sort.Strings(next)
		queue = next
	}

	if processed != len(consider) {
		var cycleNodes []string
		for name, deg := range inDegree {
			if deg > 0 {
				cycleNodes = append(cycleNodes, name)
			}
		}
		sort.Strings(cycleNodes)
		return nil, diagnostics.New(diagnostics.CodeCycle, diagnostics.ClassWorkspace,
			fmt.Sprintf("dependency cycle detected among packages: %v", cycleNodes),
			"break the cycle by removing or inverting one of the listed dependencies", nil)
	}

	return levels, nil
}

// Level returns the topological level of a single package: 1 + max(level
// of its internal deps), or 0 if it has none (§3).
func (g *Graph) Level(name string) (int, error) {
	levels, err := g.TopologicalSort()
	if err != nil {
		return 0, err
	}
	for i, level := range levels {
		for _, n := range level {
			if n == name {
				return i, nil
			}
		}
	}
	return 0, fmt.Errorf("package %q not found in graph", name)
}

// HasCycle reports whether the graph contains a cycle, including the
// degenerate case of a self-edge (§8: "A single cycle of length 1
// (self-edge) is detected as a cycle.").
func (g *Graph) HasCycle() bool {
	_, err := g.TopologicalSort()
	return err != nil
}
