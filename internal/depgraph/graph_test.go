package depgraph

import (
	"reflect"
	"testing"
)

func levelsOf(t *testing.T, g *Graph) [][]string {
	t.Helper()
	levels, err := g.TopologicalSort()
	if err != nil {
		t.Fatalf("TopologicalSort: %v", err)
	}
	return levels
}

func TestTopologicalSortLinear(t *testing.T) {
	g := NewGraph()
	g.AddNode(&Node{Name: "core"})
	g.AddNode(&Node{Name: "plugin-b"})
	g.AddNode(&Node{Name: "plugin-c"})
	g.AddEdge("plugin-b", "core")
	g.AddEdge("plugin-c", "core")

	levels := levelsOf(t, g)
	want := [][]string{{"core"}, {"plugin-b", "plugin-c"}}
	if !reflect.DeepEqual(levels, want) {
		t.Errorf("levels = %v, want %v", levels, want)
	}
}

func TestTopologicalSortIndependent(t *testing.T) {
	g := NewGraph()
	g.AddNode(&Node{Name: "a"})
	g.AddNode(&Node{Name: "b"})
	g.AddNode(&Node{Name: "c"})

	levels := levelsOf(t, g)
	want := [][]string{{"a", "b", "c"}}
	if !reflect.DeepEqual(levels, want) {
		t.Errorf("levels = %v, want %v", levels, want)
	}
}

func TestTopologicalSortCycle(t *testing.T) {
	g := NewGraph()
	g.AddNode(&Node{Name: "a"})
	g.AddNode(&Node{Name: "b"})
	g.AddEdge("a", "b")
	g.AddEdge("b", "a")

	_, err := g.TopologicalSort()
	if err == nil {
		t.Fatal("expected cycle error")
	}
}

func TestSelfEdgeIsCycle(t *testing.T) {
	g := NewGraph()
	g.AddNode(&Node{Name: "a"})
	g.AddEdge("a", "a")

	if !g.HasCycle() {
		t.Fatal("expected self-edge to be detected as a cycle")
	}
}

func TestTopologicalSortWithFilter(t *testing.T) {
	g := NewGraph()
	g.AddNode(&Node{Name: "core"})
	g.AddNode(&Node{Name: "mid"})
	g.AddNode(&Node{Name: "leaf"})
	g.AddEdge("mid", "core")
	g.AddEdge("leaf", "mid")

	levels, err := g.TopologicalSortWithFilter(map[string]bool{"mid": true, "leaf": true})
	if err != nil {
		t.Fatalf("TopologicalSortWithFilter: %v", err)
	}
	want := [][]string{{"mid"}, {"leaf"}}
	if !reflect.DeepEqual(levels, want) {
		t.Errorf("levels = %v, want %v", levels, want)
	}
}

func TestLevel(t *testing.T) {
	g := NewGraph()
	g.AddNode(&Node{Name: "core"})
	g.AddNode(&Node{Name: "mid"})
	g.AddEdge("mid", "core")

	lvl, err := g.Level("mid")
	if err != nil {
		t.Fatalf("Level: %v", err)
	}
	if lvl != 1 {
		t.Errorf("Level(mid) = %d, want 1", lvl)
	}
}

func TestGetDependentsAndDependencies(t *testing.T) {
	g := NewGraph()
	g.AddNode(&Node{Name: "core"})
	g.AddNode(&Node{Name: "mid"})
	g.AddEdge("mid", "core")

	if deps := g.GetDependencies("mid"); !reflect.DeepEqual(deps, []string{"core"}) {
		t.Errorf("GetDependencies(mid) = %v", deps)
	}
	if dependents := g.GetDependents("core"); !reflect.DeepEqual(dependents, []string{"mid"}) {
		t.Errorf("GetDependents(core) = %v", dependents)
	}
}
