package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/Spencerx/releasekit/internal/backend"
	"github.com/Spencerx/releasekit/internal/config"
	"github.com/Spencerx/releasekit/internal/depgraph"
	"github.com/Spencerx/releasekit/internal/diagnostics"
	"github.com/Spencerx/releasekit/internal/discovery"
	"github.com/Spencerx/releasekit/internal/ecosystem"
	"github.com/Spencerx/releasekit/internal/logging"
)

// runtime bundles everything a subcommand needs once the workspace has
// been located, its config loaded, and its packages discovered — the CLI
// equivalent of the teacher's per-command "load registry, build client"
// preamble, done once instead of per file.
type runtime struct {
	Root      string
	Config    *config.Root
	Logger    *logrus.Logger
	Registry  *ecosystem.Registry
	Discovery *discovery.Result
	VCS       backend.VCS
	Forge     backend.Forge

	// Workspaces and PackageManagers are keyed by package name and share
	// the same underlying ecosystem.Adapter, since Adapter satisfies both
	// backend.Workspace and backend.PackageManager.
	Workspaces      map[string]backend.Workspace
	PackageManagers map[string]backend.PackageManager
}

// newRuntime resolves the workspace root, loads releasekit.toml, and runs
// discovery. Commands that only need config (e.g. init) should not call
// this; everything from discover onward does.
func newRuntime(ctx context.Context) (*runtime, error) {
	root := flagRoot
	if root == "" {
		found, err := discovery.FindRoot("")
		if err != nil {
			return nil, err
		}
		root = found
	}

	cfg, err := config.Load(filepath.Join(root, discovery.ConfigFileName))
	if err != nil {
		return nil, diagnostics.New("RK-CONFIG-LOAD", diagnostics.ClassConfiguration,
			fmt.Sprintf("loading %s", discovery.ConfigFileName), "check the file for syntax errors", err)
	}
	applyGlobalOverrides(cfg)

	logger := logging.New(flagVerbose, flagQuiet)
	reg := ecosystem.NewRegistry()

	result, err := discovery.Discover(ctx, root, cfg, reg)
	if err != nil {
		return nil, err
	}

	workspaces := make(map[string]backend.Workspace, len(result.Packages))
	managers := make(map[string]backend.PackageManager, len(result.Packages))
	for name, info := range result.Packages {
		adapter, err := reg.Get(ecosystem.Type(info.Ecosystem))
		if err != nil {
			return nil, err
		}
		workspaces[name] = adapter
		managers[name] = adapter
	}

	return &runtime{
		Root:            root,
		Config:          cfg,
		Logger:          logger,
		Registry:        reg,
		Discovery:       result,
		VCS:             backend.NewGitVCS(root),
		Forge:           buildForge(root, cfg),
		Workspaces:      workspaces,
		PackageManagers: managers,
	}, nil
}

// applyGlobalOverrides layers the CLI's global flags on top of the loaded
// config, following the same package > workspace > root > default
// precedence §6 describes, with the CLI flags outranking every tier.
func applyGlobalOverrides(cfg *config.Root) {
	if flagConcurrency > 0 {
		cfg.Concurrency = flagConcurrency
	}
	if flagMaxRetries > 0 {
		cfg.MaxRetries = flagMaxRetries
	}
}

// buildForge constructs the configured Forge, or nil with a logged
// warning if the forge key names something unsupported — per §4.A,
// unsupported forge features degrade rather than error.
func buildForge(root string, cfg *config.Root) backend.Forge {
	switch cfg.Forge {
	case "", "github":
		return backend.NewGHForge(root, cfg.RepoOwner, cfg.RepoName)
	default:
		fmt.Fprintf(os.Stderr, "warning: forge %q is not implemented; forge operations will be skipped\n", cfg.Forge)
		return nil
	}
}

// buildRegistry resolves the backend.Registry for one ecosystem from its
// own named environment variables, per §6: "the core reads none
// directly; each backend adapter names the variables it reads."
func buildRegistry(ecosystemType string) backend.Registry {
	if ecosystemType == string(ecosystem.TypeGo) {
		return backend.NewGoProxyRegistry(os.Getenv("GOPROXY"), os.Getenv("GOPRIVATE"))
	}

	template := os.Getenv("RELEASEKIT_REGISTRY_URL_" + ecosystemType)
	if template == "" {
		template = os.Getenv("RELEASEKIT_REGISTRY_URL")
	}
	return backend.NewHTTPRegistry(template)
}

// selectedPackages applies --group/--workspace to the discovered set,
// returning the package names the current invocation should act on.
func (r *runtime) selectedPackages() map[string]bool {
	pkgConfigs := make(map[string]*config.Package, len(r.Discovery.Packages))
	for name, info := range r.Discovery.Packages {
		pc, err := config.LoadPackage(info.Dir)
		if err == nil {
			pkgConfigs[name] = pc
		}
	}

	opts := discovery.FilterOptions{Groups: flagGroup}
	selected := discovery.Filter(r.Discovery, pkgConfigs, opts)

	if flagWorkspace == "" {
		return selected
	}
	filtered := make(map[string]bool, len(selected))
	for name := range selected {
		if r.workspaceLabelFor(name) == flagWorkspace {
			filtered[name] = true
		}
	}
	return filtered
}

// Graph returns the discovered dependency graph.
func (r *runtime) Graph() *depgraph.Graph {
	return r.Discovery.Graph
}

// workspaceLabelFor finds the [workspace.<label>] section a package's
// directory falls under, used to implement --workspace filtering.
func (r *runtime) workspaceLabelFor(pkgName string) string {
	info, ok := r.Discovery.Packages[pkgName]
	if !ok {
		return ""
	}
	for label, ws := range r.Config.Workspaces {
		wsRoot := filepath.Join(r.Root, ws.Root)
		if rel, err := filepath.Rel(wsRoot, info.Dir); err == nil && (rel == "." || (rel != ".." && len(rel) > 0 && rel[0] != '.')) {
			return label
		}
	}
	return ""
}
