package ecosystem

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/Spencerx/releasekit/internal/backend"
)

// NodeAdapter implements the JavaScript/TypeScript ecosystem via
// package.json and pnpm. package.json is parsed with encoding/json
// because it is just JSON — no third-party library in the retrieved
// pack adds anything over the standard decoder for this format.
type NodeAdapter struct {
	PnpmBin string
}

func NewNodeAdapter() *NodeAdapter { return &NodeAdapter{} }

func (a *NodeAdapter) bin() string {
	if a.PnpmBin != "" {
		return a.PnpmBin
	}
	return "pnpm"
}

func (a *NodeAdapter) HasProjectFile(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, "package.json"))
	return err == nil
}

type packageJSON struct {
	Name             string            `json:"name"`
	Version          string            `json:"version"`
	Dependencies     map[string]string `json:"dependencies"`
	DevDependencies  map[string]string `json:"devDependencies"`
	PeerDependencies map[string]string `json:"peerDependencies"`
}

func (a *NodeAdapter) readPackageJSON(dir string) (*packageJSON, error) {
	data, err := os.ReadFile(filepath.Join(dir, "package.json"))
	if err != nil {
		return nil, fmt.Errorf("reading package.json: %w", err)
	}
	var pj packageJSON
	if err := json.Unmarshal(data, &pj); err != nil {
		return nil, fmt.Errorf("parsing package.json: %w", err)
	}
	return &pj, nil
}

// isWorkspaceProtocol reports whether a dependency range uses pnpm's
// `workspace:` protocol (workspace:*, workspace:^, workspace:~1.2.3).
func isWorkspaceProtocol(rng string) bool {
	return strings.HasPrefix(rng, "workspace:")
}

func (a *NodeAdapter) Discover(ctx context.Context, root string) ([]backend.PackageInfo, error) {
	matches, err := filepath.Glob(filepath.Join(root, "*"))
	if err != nil {
		return nil, err
	}

	var infos []backend.PackageInfo
	for _, dir := range matches {
		if !a.HasProjectFile(dir) {
			continue
		}
		pj, err := a.readPackageJSON(dir)
		if err != nil {
			continue
		}

		var deps []backend.DependencyRef
		for _, set := range []map[string]string{pj.Dependencies, pj.DevDependencies, pj.PeerDependencies} {
			for name, rng := range set {
				deps = append(deps, backend.DependencyRef{
					Name:             name,
					VersionOrReq:     rng,
					WorkspaceSourced: isWorkspaceProtocol(rng),
				})
			}
		}

		infos = append(infos, backend.PackageInfo{
			Name:         pj.Name,
			Ecosystem:    string(TypeNode),
			Dir:          dir,
			Version:      pj.Version,
			Dependencies: deps,
		})
	}
	return infos, nil
}

var packageJSONVersionRe = regexp.MustCompile(`("version"\s*:\s*)"[^"]*"`)

func (a *NodeAdapter) RewriteVersion(ctx context.Context, pkgDir, newVersion string) error {
	path := filepath.Join(pkgDir, "package.json")
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading package.json: %w", err)
	}
	if !packageJSONVersionRe.Match(data) {
		return fmt.Errorf(`"version" field not found in package.json`)
	}
	rewritten := packageJSONVersionRe.ReplaceAll(data, []byte(`${1}"`+newVersion+`"`))
	return os.WriteFile(path, rewritten, 0644)
}

func (a *NodeAdapter) RewriteDependencyVersion(ctx context.Context, pkgDir, depName, versionOrRevert string) (backend.MutationHandle, error) {
	path := filepath.Join(pkgDir, "package.json")
	original, err := os.ReadFile(path)
	if err != nil {
		return backend.MutationHandle{}, fmt.Errorf("reading package.json: %w", err)
	}

	depRe := regexp.MustCompile(`("` + regexp.QuoteMeta(depName) + `"\s*:\s*)"[^"]*"`)
	if !depRe.Match(original) {
		return backend.MutationHandle{}, fmt.Errorf("dependency %q not found in package.json", depName)
	}
	rewritten := depRe.ReplaceAll(original, []byte(`${1}"`+versionOrRevert+`"`))
	if err := os.WriteFile(path, rewritten, 0644); err != nil {
		return backend.MutationHandle{}, fmt.Errorf("writing package.json: %w", err)
	}
	return backend.MutationHandle{Path: path, OriginalContent: original}, nil
}

func (a *NodeAdapter) Lock(ctx context.Context, workspaceRoot, upgradePackage string) error {
	args := []string{"install", "--lockfile-only"}
	if upgradePackage != "" {
		args = []string{"update", upgradePackage, "--lockfile-only"}
	}
	cmd := exec.CommandContext(contextOrBackground(ctx), a.bin(), args...)
	cmd.Dir = workspaceRoot
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("pnpm install: %w (output: %s)", err, out)
	}
	return nil
}

func (a *NodeAdapter) Build(ctx context.Context, pkgDir string, noSources bool) ([]backend.Artifact, error) {
	cmd := exec.CommandContext(contextOrBackground(ctx), a.bin(), "pack", "--pack-destination", "dist")
	cmd.Dir = pkgDir
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("pnpm pack: %w (output: %s)", err, out)
	}

	outDir := filepath.Join(pkgDir, "dist")
	entries, err := os.ReadDir(outDir)
	if err != nil {
		return nil, fmt.Errorf("reading dist dir: %w", err)
	}
	var artifacts []backend.Artifact
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".tgz" {
			continue
		}
		p := filepath.Join(outDir, e.Name())
		sum, err := backend.SHA256File(p)
		if err != nil {
			return nil, err
		}
		artifacts = append(artifacts, backend.Artifact{Path: p, SHA256: sum})
	}
	return artifacts, nil
}

func (a *NodeAdapter) Publish(ctx context.Context, artifact backend.Artifact, indexURL string, skipExisting bool) error {
	args := []string{"publish", artifact.Path, "--no-git-checks"}
	if indexURL != "" {
		args = append(args, "--registry", indexURL)
	}
	cmd := exec.CommandContext(contextOrBackground(ctx), a.bin(), args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		if skipExisting && strings.Contains(string(out), "cannot publish over") {
			return nil
		}
		return fmt.Errorf("pnpm publish: %w (output: %s)", err, out)
	}
	return nil
}

func (a *NodeAdapter) ResolveCheck(ctx context.Context, name, version string) (bool, error) {
	cmd := exec.CommandContext(contextOrBackground(ctx), a.bin(), "view", fmt.Sprintf("%s@%s", name, version), "version")
	err := cmd.Run()
	return err == nil, nil
}

func (a *NodeAdapter) SmokeTest(ctx context.Context, name, version string) (bool, error) {
	return true, nil
}
