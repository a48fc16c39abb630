package release

import (
	"sort"
	"testing"

	"github.com/Spencerx/releasekit/internal/depgraph"
	"github.com/Spencerx/releasekit/internal/scheduler"
)

func TestPartialPublishLabels(t *testing.T) {
	graph := depgraph.NewGraph()
	graph.AddNode(&depgraph.Node{Name: "core", Ecosystem: "go"})
	graph.AddNode(&depgraph.Node{Name: "cli", Ecosystem: "python"})
	graph.AddNode(&depgraph.Node{Name: "ui", Ecosystem: "node"})

	p := &Protocol{Graph: graph}
	result := &scheduler.Result{
		Done:    []string{"core"},
		Failed:  map[string]error{"cli": errBoom},
		Blocked: map[string]string{"ui": "cli"},
	}

	labels := p.partialPublishLabels(result)
	sort.Strings(labels)

	want := []string{"failed:node", "failed:python", "partial-published", "published:go"}
	if len(labels) != len(want) {
		t.Fatalf("labels = %v, want %v", labels, want)
	}
	for i := range want {
		if labels[i] != want[i] {
			t.Fatalf("labels = %v, want %v", labels, want)
		}
	}
}

type boomError struct{}

func (boomError) Error() string { return "boom" }

var errBoom = boomError{}
