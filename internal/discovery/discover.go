// Package discovery enumerates workspace packages across every configured
// ecosystem and assembles the dependency graph (§3's Package, Dependency
// edge, and DependencyGraph types). Generalized from the teacher's
// pkg/workspace/discover.go (FindRoot/Discover walking a single grove.yml
// workspaces list) to a polyglot, multi-workspace-section config.
package discovery

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Spencerx/releasekit/internal/backend"
	"github.com/Spencerx/releasekit/internal/config"
	"github.com/Spencerx/releasekit/internal/depgraph"
	"github.com/Spencerx/releasekit/internal/diagnostics"
	"github.com/Spencerx/releasekit/internal/ecosystem"
)

const ConfigFileName = "releasekit.toml"

// FindRoot searches upward from startDir for a releasekit.toml, mirroring
// the teacher's FindRoot walk for grove.yml.
func FindRoot(startDir string) (string, error) {
	if startDir == "" {
		var err error
		startDir, err = os.Getwd()
		if err != nil {
			return "", fmt.Errorf("getting current directory: %w", err)
		}
	}

	absStart, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("resolving absolute path: %w", err)
	}

	current := absStart
	for {
		configPath := filepath.Join(current, ConfigFileName)
		if _, err := os.Stat(configPath); err == nil {
			return current, nil
		}
		parent := filepath.Dir(current)
		if parent == current {
			break
		}
		current = parent
	}

	return "", diagnostics.New("RK-NO-ROOT", diagnostics.ClassConfiguration,
		fmt.Sprintf("no %s found in %s or any parent directory", ConfigFileName, absStart),
		"run releasekit from inside a workspace, or pass --root explicitly", nil)
}

// Result is the assembled view of the workspace: every discovered package
// keyed by name, and the dependency graph built from internal edges.
type Result struct {
	Packages map[string]*backend.PackageInfo
	Graph    *depgraph.Graph
}

// Discover walks every [workspace.<label>] section of cfg, asks the
// matching ecosystem adapter to enumerate packages under its Root, and
// classifies each declared dependency as internal or external per §3:
// "an edge is internal iff the target name resolves to a workspace member
// AND the ecosystem manifest declares it as a workspace-sourced
// dependency."
func Discover(ctx context.Context, root string, cfg *config.Root, registry *ecosystem.Registry) (*Result, error) {
	packages := make(map[string]*backend.PackageInfo)

	labels := make([]string, 0, len(cfg.Workspaces))
	for label := range cfg.Workspaces {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	for _, label := range labels {
		ws := cfg.Workspaces[label]
		adapter, err := registry.Get(ecosystem.Type(ws.Ecosystem))
		if err != nil {
			return nil, diagnostics.New("RK-UNKNOWN-ECOSYSTEM", diagnostics.ClassConfiguration,
				fmt.Sprintf("workspace %q declares unknown ecosystem %q", label, ws.Ecosystem),
				"check the ecosystem key against the supported list (go, python, node, cargo, dart, gradle, bazel)", err)
		}

		wsRoot := filepath.Join(root, ws.Root)
		infos, err := adapter.Discover(ctx, wsRoot)
		if err != nil {
			return nil, diagnostics.New("RK-DISCOVER-FAILED", diagnostics.ClassWorkspace,
				fmt.Sprintf("discovering packages under workspace %q", label), "", err)
		}

		for i := range infos {
			info := infos[i]
			if existing, ok := packages[info.Name]; ok {
				return nil, diagnostics.New("RK-DUPLICATE-PACKAGE", diagnostics.ClassConfiguration,
					fmt.Sprintf("package %q discovered in both %q and %q", info.Name, existing.Dir, info.Dir),
					"package names must be unique across the whole workspace", nil)
			}
			packages[info.Name] = &info
		}
	}

	graph := depgraph.NewGraph()
	for name, info := range packages {
		graph.AddNode(&depgraph.Node{
			Name:      name,
			Ecosystem: info.Ecosystem,
			Dir:       info.Dir,
			Version:   info.Version,
		})
	}

	for name, info := range packages {
		for _, dep := range info.Dependencies {
			if !isInternal(dep, packages) {
				continue
			}
			graph.AddEdge(name, dep.Name)
		}
	}

	if _, err := graph.TopologicalSort(); err != nil {
		return nil, err
	}

	return &Result{Packages: packages, Graph: graph}, nil
}

// isInternal implements the §3 classification rule: the dependency name
// must resolve to a discovered workspace member, and the manifest must
// have declared it as workspace-sourced (path dependency, workspace:*,
// `workspace = true`, Gradle project(...), and so on — each ecosystem
// adapter sets WorkspaceSourced accordingly). A pinned-version reference
// to another workspace member that isn't flagged workspace-sourced is
// deliberately treated as external per §3's closing sentence.
func isInternal(dep backend.DependencyRef, packages map[string]*backend.PackageInfo) bool {
	if !dep.WorkspaceSourced {
		return false
	}
	_, ok := packages[dep.Name]
	return ok
}

// GetWorkspaceName returns a display name for a package directory relative
// to root, falling back to the base name (teacher: workspace.GetWorkspaceName).
func GetWorkspaceName(dir, root string) string {
	if rel, err := filepath.Rel(root, dir); err == nil && !strings.HasPrefix(rel, "..") {
		return rel
	}
	return filepath.Base(dir)
}
