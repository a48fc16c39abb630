// Package ecosystem provides the per-ecosystem Workspace/PackageManager
// adapters (§4.A) and their registry, generalized from the teacher's
// pkg/project package (ProjectHandler + Registry) from a single
// Go-oriented interface into the polyglot set spec.md §1 requires: Python
// (uv), JavaScript (pnpm), Go, Rust (Cargo), Dart (pub), Java (Gradle), and
// Bazel.
package ecosystem

import (
	"context"
	"fmt"

	"github.com/Spencerx/releasekit/internal/backend"
)

// Type identifies an ecosystem adapter, matching the `ecosystem` key of a
// [workspace.<label>] config section (§6).
type Type string

const (
	TypeGo     Type = "go"
	TypePython Type = "python"
	TypeNode   Type = "node"
	TypeCargo  Type = "cargo"
	TypeDart   Type = "dart"
	TypeGradle Type = "gradle"
	TypeBazel  Type = "bazel"
)

// Adapter bundles the Workspace and PackageManager capabilities one
// ecosystem provides, mirroring the teacher's ProjectHandler interface
// (pkg/project/handler.go) but split along the spec's §4.A interface
// boundaries instead of one monolithic interface.
type Adapter interface {
	backend.Workspace
	backend.PackageManager

	// HasProjectFile reports whether dir looks like a package root for
	// this ecosystem (teacher: ProjectHandler.HasProjectFile).
	HasProjectFile(dir string) bool
}

// Registry maps a Type to its Adapter, generalizing pkg/project/registry.go.
type Registry struct {
	adapters map[Type]Adapter
}

func NewRegistry() *Registry {
	r := &Registry{adapters: make(map[Type]Adapter)}
	r.Register(TypeGo, NewGoAdapter())
	r.Register(TypePython, NewPythonAdapter())
	r.Register(TypeNode, NewNodeAdapter())
	r.Register(TypeCargo, NewCargoAdapter())
	r.Register(TypeDart, NewDartAdapter())
	r.Register(TypeGradle, NewGradleAdapter())
	r.Register(TypeBazel, NewBazelAdapter())
	return r
}

func (r *Registry) Register(t Type, a Adapter) {
	r.adapters[t] = a
}

func (r *Registry) Get(t Type) (Adapter, error) {
	a, ok := r.adapters[t]
	if !ok {
		return nil, fmt.Errorf("no adapter registered for ecosystem %q", t)
	}
	return a, nil
}

// contextOrBackground is a small helper so adapters that shell out via
// exec.CommandContext always have a non-nil context even when called from
// a code path that does not yet thread one through.
func contextOrBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
