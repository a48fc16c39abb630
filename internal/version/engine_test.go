package version

import (
	"testing"

	"github.com/Spencerx/releasekit/internal/backend"
	"github.com/Spencerx/releasekit/internal/commit"
	"github.com/Spencerx/releasekit/internal/depgraph"
)

// buildGraph mirrors §8 scenario 1: plugin-b -> core, plugin-c -> core.
func buildGraph(t *testing.T) *depgraph.Graph {
	t.Helper()
	g := depgraph.NewGraph()
	g.AddNode(&depgraph.Node{Name: "core"})
	g.AddNode(&depgraph.Node{Name: "plugin-b"})
	g.AddNode(&depgraph.Node{Name: "plugin-c"})
	g.AddEdge("plugin-b", "core")
	g.AddEdge("plugin-c", "core")
	return g
}

func semverCtxs(names ...string) map[string]PackageContext {
	ctxs := make(map[string]PackageContext, len(names))
	for _, n := range names {
		ctxs[n] = PackageContext{Scheme: NewSemver()}
	}
	return ctxs
}

func TestEngineDirectAndTransitiveBump(t *testing.T) {
	g := buildGraph(t)
	e := NewEngine(g)

	commits := map[string][]commit.Parsed{
		"core":     {commit.Parse(backend.SHA("c1"), "jane", "feat: add X")},
		"plugin-b": {},
		"plugin-c": {},
	}
	from := map[string]string{"core": "1.0.0", "plugin-b": "0.5.0", "plugin-c": "0.5.0"}

	plan, err := e.Compute(commits, from, semverCtxs("core", "plugin-b", "plugin-c"), false)
	if err != nil {
		t.Fatal(err)
	}

	core := plan.Bumps["core"]
	if core == nil || core.ToVersion != "1.1.0" || core.Reason != ReasonDirect {
		t.Fatalf("core bump = %+v", core)
	}
	for _, name := range []string{"plugin-b", "plugin-c"} {
		b := plan.Bumps[name]
		if b == nil || b.ToVersion != "0.5.1" || b.Reason != ReasonTransitive {
			t.Fatalf("%s bump = %+v", name, b)
		}
	}
}

func TestEngineRevertCancelsBump(t *testing.T) {
	g := depgraph.NewGraph()
	g.AddNode(&depgraph.Node{Name: "core"})
	e := NewEngine(g)

	feat := commit.Parse(backend.SHA("abc1234567"), "jane", "feat: add Y")
	revert := commit.Parse(backend.SHA("def456"), "jane", "revert: feat: add Y\n\nThis reverts commit abc1234567.")

	commits := map[string][]commit.Parsed{"core": {feat, revert}}
	from := map[string]string{"core": "1.0.0"}

	plan, err := e.Compute(commits, from, semverCtxs("core"), false)
	if err != nil {
		t.Fatal(err)
	}
	if _, bumped := plan.Bumps["core"]; bumped {
		t.Fatalf("expected core to be skipped, got %+v", plan.Bumps["core"])
	}
	if len(plan.Skipped) != 1 || plan.Skipped[0] != "core" {
		t.Fatalf("Skipped = %v, want [core]", plan.Skipped)
	}
}

func TestEngineSynchronizeMode(t *testing.T) {
	g := depgraph.NewGraph()
	g.AddNode(&depgraph.Node{Name: "a"})
	g.AddNode(&depgraph.Node{Name: "b"})
	g.AddNode(&depgraph.Node{Name: "c"})
	e := NewEngine(g)

	commits := map[string][]commit.Parsed{
		"a": {commit.Parse(backend.SHA("c1"), "jane", "feat: add X")},
		"b": {},
		"c": {},
	}
	from := map[string]string{"a": "1.0.0", "b": "1.0.0", "c": "1.0.0"}

	ctxs := map[string]PackageContext{
		"a": {Scheme: NewSemver(), SynchronizeGroup: "ws", Synchronize: true},
		"b": {Scheme: NewSemver(), SynchronizeGroup: "ws", Synchronize: true},
		"c": {Scheme: NewSemver(), SynchronizeGroup: "ws", Synchronize: true},
	}

	plan, err := e.Compute(commits, from, ctxs, false)
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"a", "b", "c"} {
		b := plan.Bumps[name]
		if b == nil || b.ToVersion != "1.1.0" {
			t.Fatalf("%s bump = %+v, want 1.1.0", name, b)
		}
	}
	if plan.Bumps["b"].Reason != ReasonSynchronize {
		t.Errorf("b reason = %v, want synchronize", plan.Bumps["b"].Reason)
	}
}

func TestEngineSynchronizeModeDivergentBaseVersions(t *testing.T) {
	g := depgraph.NewGraph()
	g.AddNode(&depgraph.Node{Name: "a"})
	g.AddNode(&depgraph.Node{Name: "b"})
	g.AddNode(&depgraph.Node{Name: "c"})
	e := NewEngine(g)

	commits := map[string][]commit.Parsed{
		"a": {commit.Parse(backend.SHA("c1"), "jane", "feat: add X")},
		"b": {},
		"c": {},
	}
	from := map[string]string{"a": "1.0.0", "b": "1.2.0", "c": "2.0.0"}

	ctxs := map[string]PackageContext{
		"a": {Scheme: NewSemver(), SynchronizeGroup: "ws", Synchronize: true},
		"b": {Scheme: NewSemver(), SynchronizeGroup: "ws", Synchronize: true},
		"c": {Scheme: NewSemver(), SynchronizeGroup: "ws", Synchronize: true},
	}

	plan, err := e.Compute(commits, from, ctxs, false)
	if err != nil {
		t.Fatal(err)
	}

	want := plan.Bumps["c"].ToVersion // highest base (2.0.0) bumped minor -> 2.1.0
	if want != "2.1.0" {
		t.Fatalf("expected shared target computed from highest base version, got %q", want)
	}
	for _, name := range []string{"a", "b", "c"} {
		b := plan.Bumps[name]
		if b == nil || b.ToVersion != want {
			t.Fatalf("%s bump = %+v, want shared ToVersion %q", name, b, want)
		}
	}
}

func TestEngineEmptyWindowSkipsEverything(t *testing.T) {
	g := depgraph.NewGraph()
	g.AddNode(&depgraph.Node{Name: "core"})
	e := NewEngine(g)

	plan, err := e.Compute(
		map[string][]commit.Parsed{"core": {}},
		map[string]string{"core": "1.0.0"},
		semverCtxs("core"),
		false,
	)
	if err != nil {
		t.Fatal(err)
	}
	if len(plan.Bumps) != 0 {
		t.Fatalf("expected no bumps, got %+v", plan.Bumps)
	}
	if len(plan.Skipped) != 1 {
		t.Fatalf("expected core skipped, got %v", plan.Skipped)
	}
}

func TestEngineForceUnchangedAppliesPatch(t *testing.T) {
	g := depgraph.NewGraph()
	g.AddNode(&depgraph.Node{Name: "core"})
	e := NewEngine(g)

	plan, err := e.Compute(
		map[string][]commit.Parsed{"core": {}},
		map[string]string{"core": "1.0.0"},
		semverCtxs("core"),
		true,
	)
	if err != nil {
		t.Fatal(err)
	}
	b := plan.Bumps["core"]
	if b == nil || b.ToVersion != "1.0.1" {
		t.Fatalf("core bump = %+v, want 1.0.1", b)
	}
}

func TestEngineTransitiveNeverExceedsPatch(t *testing.T) {
	g := depgraph.NewGraph()
	g.AddNode(&depgraph.Node{Name: "core"})
	g.AddNode(&depgraph.Node{Name: "dependent"})
	g.AddEdge("dependent", "core")
	e := NewEngine(g)

	commits := map[string][]commit.Parsed{
		"core":      {commit.Parse(backend.SHA("c1"), "jane", "feat!: breaking change")},
		"dependent": {},
	}
	from := map[string]string{"core": "1.0.0", "dependent": "1.0.0"}

	plan, err := e.Compute(commits, from, semverCtxs("core", "dependent"), false)
	if err != nil {
		t.Fatal(err)
	}
	if plan.Bumps["core"].ToVersion != "2.0.0" {
		t.Fatalf("core bump = %+v, want major 2.0.0", plan.Bumps["core"])
	}
	if plan.Bumps["dependent"].ToVersion != "1.0.1" {
		t.Fatalf("dependent bump = %+v, want patch 1.0.1 (never major)", plan.Bumps["dependent"])
	}
}
