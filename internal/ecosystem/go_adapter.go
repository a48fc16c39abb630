package ecosystem

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"golang.org/x/mod/modfile"

	"github.com/Spencerx/releasekit/internal/backend"
)

// GoAdapter implements the Go ecosystem, grounded directly on the
// teacher's pkg/project/go_handler.go (go.mod parsing via
// golang.org/x/mod/modfile, `go get`/`go mod tidy` via exec) and
// pkg/release/wait.go (module-proxy polling via `go list -m`). Per §9's
// open question, Go carries its version in the git tag rather than a
// manifest field: RewriteVersion is a no-op and Discover leaves
// PackageInfo.Version empty. Nothing reads a Go module's current version
// from its latest tag, so its from-version in a plan is empty.
type GoAdapter struct {
	ModulePrefix string // workspace-owned module prefix, e.g. "github.com/acme/monorepo/"
}

func NewGoAdapter() *GoAdapter { return &GoAdapter{} }

func (a *GoAdapter) HasProjectFile(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, "go.mod"))
	return err == nil
}

func (a *GoAdapter) modulePath(dir string) (string, error) {
	data, err := os.ReadFile(filepath.Join(dir, "go.mod"))
	if err != nil {
		return "", fmt.Errorf("reading go.mod: %w", err)
	}
	mf, err := modfile.Parse(filepath.Join(dir, "go.mod"), data, nil)
	if err != nil {
		return "", fmt.Errorf("parsing go.mod: %w", err)
	}
	return mf.Module.Mod.Path, nil
}

func (a *GoAdapter) Discover(ctx context.Context, root string) ([]backend.PackageInfo, error) {
	matches, err := filepath.Glob(filepath.Join(root, "*"))
	if err != nil {
		return nil, err
	}

	var infos []backend.PackageInfo
	for _, dir := range matches {
		if !a.HasProjectFile(dir) {
			continue
		}
		modPath, err := a.modulePath(dir)
		if err != nil {
			continue
		}
		deps, err := a.parseDependencies(dir)
		if err != nil {
			continue
		}
		infos = append(infos, backend.PackageInfo{
			Name:         modPath,
			Ecosystem:    string(TypeGo),
			Dir:          dir,
			Dependencies: deps,
		})
	}
	return infos, nil
}

func (a *GoAdapter) parseDependencies(dir string) ([]backend.DependencyRef, error) {
	data, err := os.ReadFile(filepath.Join(dir, "go.mod"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading go.mod: %w", err)
	}

	mf, err := modfile.Parse(filepath.Join(dir, "go.mod"), data, nil)
	if err != nil {
		return nil, fmt.Errorf("parsing go.mod: %w", err)
	}

	var deps []backend.DependencyRef
	for _, req := range mf.Require {
		workspaceSourced := a.ModulePrefix != "" && strings.HasPrefix(req.Mod.Path, a.ModulePrefix)
		deps = append(deps, backend.DependencyRef{
			Name:             req.Mod.Path,
			VersionOrReq:     req.Mod.Version,
			WorkspaceSourced: workspaceSourced,
		})
	}
	return deps, nil
}

// RewriteVersion is a no-op for Go: the module's version lives in the git
// tag, not in go.mod (§9).
func (a *GoAdapter) RewriteVersion(ctx context.Context, pkgDir, newVersion string) error {
	return nil
}

func (a *GoAdapter) RewriteDependencyVersion(ctx context.Context, pkgDir, depName, versionOrRevert string) (backend.MutationHandle, error) {
	goModPath := filepath.Join(pkgDir, "go.mod")
	original, err := os.ReadFile(goModPath)
	if err != nil {
		return backend.MutationHandle{}, fmt.Errorf("reading go.mod: %w", err)
	}

	ctx = contextOrBackground(ctx)
	if err := a.removeReplaceDirective(goModPath, depName); err != nil {
		return backend.MutationHandle{}, err
	}

	getCmd := exec.CommandContext(ctx, "go", "get", fmt.Sprintf("%s@%s", depName, versionOrRevert))
	getCmd.Dir = pkgDir
	getCmd.Env = a.env()
	if out, err := getCmd.CombinedOutput(); err != nil {
		return backend.MutationHandle{}, fmt.Errorf("go get %s@%s: %w (output: %s)", depName, versionOrRevert, err, out)
	}

	tidyCmd := exec.CommandContext(ctx, "go", "mod", "tidy")
	tidyCmd.Dir = pkgDir
	tidyCmd.Env = a.env()
	if out, err := tidyCmd.CombinedOutput(); err != nil {
		return backend.MutationHandle{}, fmt.Errorf("go mod tidy: %w (output: %s)", err, out)
	}

	return backend.MutationHandle{Path: goModPath, OriginalContent: original}, nil
}

func (a *GoAdapter) removeReplaceDirective(goModPath, modulePath string) error {
	data, err := os.ReadFile(goModPath)
	if err != nil {
		return fmt.Errorf("reading go.mod: %w", err)
	}
	mf, err := modfile.Parse(goModPath, data, nil)
	if err != nil {
		return fmt.Errorf("parsing go.mod: %w", err)
	}

	for _, rep := range mf.Replace {
		if rep.Old.Path == modulePath {
			if err := mf.DropReplace(rep.Old.Path, rep.Old.Version); err != nil {
				return fmt.Errorf("dropping replace directive: %w", err)
			}
		}
	}

	out, err := mf.Format()
	if err != nil {
		return fmt.Errorf("formatting go.mod: %w", err)
	}
	return os.WriteFile(goModPath, out, 0644)
}

func (a *GoAdapter) env() []string {
	env := os.Environ()
	if a.ModulePrefix != "" {
		env = append(env, "GOPRIVATE="+a.ModulePrefix+"*", "GOPROXY=direct")
	}
	return env
}

func (a *GoAdapter) Lock(ctx context.Context, workspaceRoot, upgradePackage string) error {
	cmd := exec.CommandContext(contextOrBackground(ctx), "go", "mod", "tidy")
	cmd.Dir = workspaceRoot
	cmd.Env = a.env()
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("go mod tidy: %w (output: %s)", err, out)
	}
	return nil
}

// Build for Go is a tag-and-push: there is no artifact to upload to a
// registry, only a pushed tag the module proxy later serves (§9). Build
// still runs `go build ./...` so a broken package fails before tagging.
func (a *GoAdapter) Build(ctx context.Context, pkgDir string, noSources bool) ([]backend.Artifact, error) {
	cmd := exec.CommandContext(contextOrBackground(ctx), "go", "build", "./...")
	cmd.Dir = pkgDir
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("go build: %w (output: %s)", err, out)
	}
	return nil, nil
}

// Publish for Go is a no-op: publishing happens by pushing the version
// tag, which is handled by the release protocol (internal/release), not
// the package manager adapter.
func (a *GoAdapter) Publish(ctx context.Context, artifact backend.Artifact, indexURL string, skipExisting bool) error {
	return nil
}

func (a *GoAdapter) ResolveCheck(ctx context.Context, name, version string) (bool, error) {
	cmd := exec.CommandContext(contextOrBackground(ctx), "go", "list", "-m", fmt.Sprintf("%s@%s", name, version))
	cmd.Env = a.env()
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	err := cmd.Run()
	return err == nil, nil
}

func (a *GoAdapter) SmokeTest(ctx context.Context, name, version string) (bool, error) {
	return true, nil
}
