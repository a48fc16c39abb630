package ecosystem

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/Spencerx/releasekit/internal/backend"
)

// CargoAdapter implements the Rust ecosystem via Cargo.toml and the
// `cargo` CLI, grounded on the same TOML-manifest pattern as
// pkg/project/maturin_handler.go (maturin itself wraps Cargo for Python
// extension builds) generalized to plain Rust crates.
type CargoAdapter struct {
	CargoBin string
}

func NewCargoAdapter() *CargoAdapter { return &CargoAdapter{} }

func (a *CargoAdapter) bin() string {
	if a.CargoBin != "" {
		return a.CargoBin
	}
	return "cargo"
}

func (a *CargoAdapter) HasProjectFile(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, "Cargo.toml"))
	return err == nil
}

type cargoManifest struct {
	Package struct {
		Name    string `toml:"name"`
		Version string `toml:"version"`
	} `toml:"package"`
	Dependencies map[string]interface{} `toml:"dependencies"`
}

// cargoDep accepts both `name = "1.0"` and `name = { version = "1.0", path = "../other", workspace = true }`.
type cargoDep struct {
	scalarVersion string
	Version       string `toml:"version"`
	Path          string `toml:"path"`
	Workspace     bool   `toml:"workspace"`
}

func (d *cargoDep) UnmarshalTOML(v interface{}) error {
	switch val := v.(type) {
	case string:
		d.scalarVersion = val
	case map[string]interface{}:
		if ver, ok := val["version"].(string); ok {
			d.Version = ver
		}
		if p, ok := val["path"].(string); ok {
			d.Path = p
		}
		if w, ok := val["workspace"].(bool); ok {
			d.Workspace = w
		}
	}
	return nil
}

func (d cargoDep) effectiveVersion() string {
	if d.scalarVersion != "" {
		return d.scalarVersion
	}
	return d.Version
}

func (a *CargoAdapter) readManifest(dir string) (*cargoManifest, []byte, error) {
	path := filepath.Join(dir, "Cargo.toml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("reading Cargo.toml: %w", err)
	}
	var m cargoManifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, nil, fmt.Errorf("parsing Cargo.toml: %w", err)
	}
	return &m, data, nil
}

func (a *CargoAdapter) Discover(ctx context.Context, root string) ([]backend.PackageInfo, error) {
	matches, err := filepath.Glob(filepath.Join(root, "*"))
	if err != nil {
		return nil, err
	}

	var infos []backend.PackageInfo
	for _, dir := range matches {
		if !a.HasProjectFile(dir) {
			continue
		}
		m, _, err := a.readManifest(dir)
		if err != nil {
			continue
		}

		var deps []backend.DependencyRef
		for name, raw := range m.Dependencies {
			var dep cargoDep
			_ = dep.UnmarshalTOML(raw)
			deps = append(deps, backend.DependencyRef{
				Name:             name,
				VersionOrReq:     dep.effectiveVersion(),
				WorkspaceSourced: dep.Workspace || dep.Path != "",
			})
		}

		infos = append(infos, backend.PackageInfo{
			Name:         m.Package.Name,
			Ecosystem:    string(TypeCargo),
			Dir:          dir,
			Version:      m.Package.Version,
			Dependencies: deps,
		})
	}
	return infos, nil
}

func (a *CargoAdapter) RewriteVersion(ctx context.Context, pkgDir, newVersion string) error {
	path := filepath.Join(pkgDir, "Cargo.toml")
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading Cargo.toml: %w", err)
	}
	rewritten, err := rewriteTOMLScalar(data, []string{"package", "version"}, newVersion)
	if err != nil {
		return fmt.Errorf("rewriting version in Cargo.toml: %w", err)
	}
	return os.WriteFile(path, rewritten, 0644)
}

func (a *CargoAdapter) RewriteDependencyVersion(ctx context.Context, pkgDir, depName, versionOrRevert string) (backend.MutationHandle, error) {
	path := filepath.Join(pkgDir, "Cargo.toml")
	original, err := os.ReadFile(path)
	if err != nil {
		return backend.MutationHandle{}, fmt.Errorf("reading Cargo.toml: %w", err)
	}
	rewritten, err := rewriteDependencySpec(original, depName, versionOrRevert)
	if err != nil {
		return backend.MutationHandle{}, err
	}
	if err := os.WriteFile(path, rewritten, 0644); err != nil {
		return backend.MutationHandle{}, fmt.Errorf("writing Cargo.toml: %w", err)
	}
	return backend.MutationHandle{Path: path, OriginalContent: original}, nil
}

func (a *CargoAdapter) Lock(ctx context.Context, workspaceRoot, upgradePackage string) error {
	args := []string{"update"}
	if upgradePackage != "" {
		args = append(args, "-p", upgradePackage)
	}
	cmd := exec.CommandContext(contextOrBackground(ctx), a.bin(), args...)
	cmd.Dir = workspaceRoot
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("cargo update: %w (output: %s)", err, out)
	}
	return nil
}

func (a *CargoAdapter) Build(ctx context.Context, pkgDir string, noSources bool) ([]backend.Artifact, error) {
	args := []string{"package"}
	if noSources {
		args = append(args, "--no-verify")
	}
	cmd := exec.CommandContext(contextOrBackground(ctx), a.bin(), args...)
	cmd.Dir = pkgDir
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("cargo package: %w (output: %s)", err, out)
	}

	packageDir := filepath.Join(pkgDir, "target", "package")
	entries, err := os.ReadDir(packageDir)
	if err != nil {
		return nil, fmt.Errorf("reading target/package: %w", err)
	}
	var artifacts []backend.Artifact
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".crate" {
			continue
		}
		p := filepath.Join(packageDir, e.Name())
		sum, err := backend.SHA256File(p)
		if err != nil {
			return nil, err
		}
		artifacts = append(artifacts, backend.Artifact{Path: p, SHA256: sum})
	}
	return artifacts, nil
}

func (a *CargoAdapter) Publish(ctx context.Context, artifact backend.Artifact, indexURL string, skipExisting bool) error {
	args := []string{"publish"}
	if indexURL != "" {
		args = append(args, "--registry", indexURL)
	}
	cmd := exec.CommandContext(contextOrBackground(ctx), a.bin(), args...)
	cmd.Dir = filepath.Dir(filepath.Dir(filepath.Dir(artifact.Path))) // target/package/<crate> -> package dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		if skipExisting && strings.Contains(string(out), "is already uploaded") {
			return nil
		}
		return fmt.Errorf("cargo publish: %w (output: %s)", err, out)
	}
	return nil
}

func (a *CargoAdapter) ResolveCheck(ctx context.Context, name, version string) (bool, error) {
	cmd := exec.CommandContext(contextOrBackground(ctx), a.bin(), "search", name, "--limit", "1")
	out, err := cmd.Output()
	if err != nil {
		return false, nil
	}
	return len(out) > 0, nil
}

func (a *CargoAdapter) SmokeTest(ctx context.Context, name, version string) (bool, error) {
	return true, nil
}
