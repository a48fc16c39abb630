package ecosystem

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/Spencerx/releasekit/internal/backend"
)

// PythonAdapter implements the Python ecosystem via uv and pyproject.toml,
// grounded on the teacher's pkg/project/maturin_handler.go (pyproject.toml
// parsed with a TOML library, `uv build`/`uv publish` shelled out via
// os/exec).
type PythonAdapter struct {
	// UvBin overrides the `uv` binary, for testing. Empty means "uv".
	UvBin string
}

func NewPythonAdapter() *PythonAdapter { return &PythonAdapter{} }

func (a *PythonAdapter) bin() string {
	if a.UvBin != "" {
		return a.UvBin
	}
	return "uv"
}

func (a *PythonAdapter) HasProjectFile(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, "pyproject.toml"))
	return err == nil
}

type pyProjectFile struct {
	Project struct {
		Name            string   `toml:"name"`
		Version         string   `toml:"version"`
		Dependencies    []string `toml:"dependencies"`
		DynamicFields   []string `toml:"dynamic"`
	} `toml:"project"`
	Tool struct {
		Uv struct {
			Sources map[string]struct {
				Workspace bool `toml:"workspace"`
			} `toml:"sources"`
		} `toml:"uv"`
	} `toml:"tool"`
}

var pyDepNameRe = regexp.MustCompile(`^[A-Za-z0-9_.\-]+`)

func (a *PythonAdapter) readProject(dir string) (*pyProjectFile, []byte, error) {
	path := filepath.Join(dir, "pyproject.toml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("reading pyproject.toml: %w", err)
	}
	var pf pyProjectFile
	if err := toml.Unmarshal(data, &pf); err != nil {
		return nil, nil, fmt.Errorf("parsing pyproject.toml: %w", err)
	}
	return &pf, data, nil
}

func (a *PythonAdapter) Discover(ctx context.Context, root string) ([]backend.PackageInfo, error) {
	matches, err := filepath.Glob(filepath.Join(root, "*"))
	if err != nil {
		return nil, err
	}

	var infos []backend.PackageInfo
	for _, dir := range matches {
		if !a.HasProjectFile(dir) {
			continue
		}
		pf, _, err := a.readProject(dir)
		if err != nil {
			continue
		}

		var deps []backend.DependencyRef
		for _, spec := range pf.Project.Dependencies {
			name := pyDepNameRe.FindString(spec)
			if name == "" {
				continue
			}
			src, workspaceSourced := pf.Tool.Uv.Sources[name]
			deps = append(deps, backend.DependencyRef{
				Name:             name,
				VersionOrReq:     strings.TrimPrefix(spec, name),
				WorkspaceSourced: workspaceSourced && src.Workspace,
			})
		}

		infos = append(infos, backend.PackageInfo{
			Name:         pf.Project.Name,
			Ecosystem:    string(TypePython),
			Dir:          dir,
			Version:      pf.Project.Version,
			Dependencies: deps,
		})
	}
	return infos, nil
}

// RewriteVersion rewrites `version = "..."` under [project] in place. uv
// projects using `dynamic = ["version"]` with a VCS plugin are not
// supported here; the manifest must carry a literal version string.
func (a *PythonAdapter) RewriteVersion(ctx context.Context, pkgDir, newVersion string) error {
	path := filepath.Join(pkgDir, "pyproject.toml")
	pf, data, err := a.readProject(pkgDir)
	if err != nil {
		return err
	}
	_ = pf

	rewritten, err := rewriteTOMLScalar(data, []string{"project", "version"}, newVersion)
	if err != nil {
		return fmt.Errorf("rewriting version in pyproject.toml: %w", err)
	}
	return os.WriteFile(path, rewritten, 0644)
}

func (a *PythonAdapter) RewriteDependencyVersion(ctx context.Context, pkgDir, depName, versionOrRevert string) (backend.MutationHandle, error) {
	path := filepath.Join(pkgDir, "pyproject.toml")
	original, err := os.ReadFile(path)
	if err != nil {
		return backend.MutationHandle{}, fmt.Errorf("reading pyproject.toml: %w", err)
	}

	rewritten, err := rewriteDependencySpec(original, depName, versionOrRevert)
	if err != nil {
		return backend.MutationHandle{}, err
	}
	if err := os.WriteFile(path, rewritten, 0644); err != nil {
		return backend.MutationHandle{}, fmt.Errorf("writing pyproject.toml: %w", err)
	}
	return backend.MutationHandle{Path: path, OriginalContent: original}, nil
}

func (a *PythonAdapter) Lock(ctx context.Context, workspaceRoot, upgradePackage string) error {
	args := []string{"lock"}
	if upgradePackage != "" {
		args = append(args, "--upgrade-package", upgradePackage)
	}
	cmd := exec.CommandContext(contextOrBackground(ctx), a.bin(), args...)
	cmd.Dir = workspaceRoot
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("uv lock: %w (output: %s)", err, out)
	}
	return nil
}

func (a *PythonAdapter) Build(ctx context.Context, pkgDir string, noSources bool) ([]backend.Artifact, error) {
	args := []string{"build"}
	if noSources {
		args = append(args, "--wheel")
	}
	outDir := filepath.Join(pkgDir, "dist")
	cmd := exec.CommandContext(contextOrBackground(ctx), a.bin(), args...)
	cmd.Dir = pkgDir
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("uv build: %w (output: %s)", err, out)
	}

	entries, err := os.ReadDir(outDir)
	if err != nil {
		return nil, fmt.Errorf("reading dist dir: %w", err)
	}
	var artifacts []backend.Artifact
	for _, e := range entries {
		if e.IsDir() {
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

func (a *PythonAdapter) Publish(ctx context.Context, artifact backend.Artifact, indexURL string, skipExisting bool) error {
	args := []string{"publish"}
	if indexURL != "" {
		args = append(args, "--publish-url", indexURL)
	}
	if skipExisting {
		args = append(args, "--check-url", indexURL)
	}
	args = append(args, artifact.Path)
	cmd := exec.CommandContext(contextOrBackground(ctx), a.bin(), args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("uv publish: %w (output: %s)", err, out)
	}
	return nil
}

func (a *PythonAdapter) ResolveCheck(ctx context.Context, name, version string) (bool, error) {
	cmd := exec.CommandContext(contextOrBackground(ctx), a.bin(), "pip", "install", "--dry-run", fmt.Sprintf("%s==%s", name, version))
	err := cmd.Run()
	return err == nil, nil
}

func (a *PythonAdapter) SmokeTest(ctx context.Context, name, version string) (bool, error) {
	return true, nil
}
