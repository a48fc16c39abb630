package ecosystem

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/Spencerx/releasekit/internal/backend"
)

// DartAdapter implements the Dart/Flutter ecosystem via pubspec.yaml and
// the `dart pub` / `flutter pub` CLIs, parsed with gopkg.in/yaml.v3 the
// way every other YAML-manifest consumer in the pack does.
type DartAdapter struct {
	PubBin string // "dart" by default; set to "flutter" for Flutter packages
}

func NewDartAdapter() *DartAdapter { return &DartAdapter{} }

func (a *DartAdapter) bin() string {
	if a.PubBin != "" {
		return a.PubBin
	}
	return "dart"
}

func (a *DartAdapter) HasProjectFile(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, "pubspec.yaml"))
	return err == nil
}

type pubspecDependency struct {
	scalar string
	Path   string `yaml:"path"`
}

func (d *pubspecDependency) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		return value.Decode(&d.scalar)
	}
	var m struct {
		Path string `yaml:"path"`
	}
	if err := value.Decode(&m); err != nil {
		return err
	}
	d.Path = m.Path
	return nil
}

type pubspec struct {
	Name             string                        `yaml:"name"`
	Version          string                        `yaml:"version"`
	Dependencies     map[string]pubspecDependency `yaml:"dependencies"`
	DevDependencies  map[string]pubspecDependency `yaml:"dev_dependencies"`
}

func (a *DartAdapter) readPubspec(dir string) (*pubspec, error) {
	data, err := os.ReadFile(filepath.Join(dir, "pubspec.yaml"))
	if err != nil {
		return nil, fmt.Errorf("reading pubspec.yaml: %w", err)
	}
	var ps pubspec
	if err := yaml.Unmarshal(data, &ps); err != nil {
		return nil, fmt.Errorf("parsing pubspec.yaml: %w", err)
	}
	return &ps, nil
}

func (a *DartAdapter) Discover(ctx context.Context, root string) ([]backend.PackageInfo, error) {
	matches, err := filepath.Glob(filepath.Join(root, "*"))
	if err != nil {
		return nil, err
	}

	var infos []backend.PackageInfo
	for _, dir := range matches {
		if !a.HasProjectFile(dir) {
			continue
		}
		ps, err := a.readPubspec(dir)
		if err != nil {
			continue
		}

		var deps []backend.DependencyRef
		for name, dep := range ps.Dependencies {
			deps = append(deps, backend.DependencyRef{
				Name:             name,
				VersionOrReq:     dep.scalar,
				WorkspaceSourced: dep.Path != "",
			})
		}

		infos = append(infos, backend.PackageInfo{
			Name:         ps.Name,
			Ecosystem:    string(TypeDart),
			Dir:          dir,
			Version:      ps.Version,
			Dependencies: deps,
		})
	}
	return infos, nil
}

var pubspecVersionRe = regexp.MustCompile(`(?m)^(version:\s*)\S+\s*$`)

func (a *DartAdapter) RewriteVersion(ctx context.Context, pkgDir, newVersion string) error {
	path := filepath.Join(pkgDir, "pubspec.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading pubspec.yaml: %w", err)
	}
	if !pubspecVersionRe.Match(data) {
		return fmt.Errorf("version field not found in pubspec.yaml")
	}
	rewritten := pubspecVersionRe.ReplaceAll(data, []byte("${1}"+newVersion))
	return os.WriteFile(path, rewritten, 0644)
}

func (a *DartAdapter) RewriteDependencyVersion(ctx context.Context, pkgDir, depName, versionOrRevert string) (backend.MutationHandle, error) {
	path := filepath.Join(pkgDir, "pubspec.yaml")
	original, err := os.ReadFile(path)
	if err != nil {
		return backend.MutationHandle{}, fmt.Errorf("reading pubspec.yaml: %w", err)
	}

	depRe := regexp.MustCompile(`(?m)^(\s*` + regexp.QuoteMeta(depName) + `:\s*)\S.*$`)
	if !depRe.Match(original) {
		return backend.MutationHandle{}, fmt.Errorf("dependency %q not found in pubspec.yaml", depName)
	}
	rewritten := depRe.ReplaceAll(original, []byte("${1}"+versionOrRevert))
	if err := os.WriteFile(path, rewritten, 0644); err != nil {
		return backend.MutationHandle{}, fmt.Errorf("writing pubspec.yaml: %w", err)
	}
	return backend.MutationHandle{Path: path, OriginalContent: original}, nil
}

func (a *DartAdapter) Lock(ctx context.Context, workspaceRoot, upgradePackage string) error {
	args := []string{"pub", "get"}
	if upgradePackage != "" {
		args = []string{"pub", "upgrade", upgradePackage}
	}
	cmd := exec.CommandContext(contextOrBackground(ctx), a.bin(), args...)
	cmd.Dir = workspaceRoot
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("dart pub: %w (output: %s)", err, out)
	}
	return nil
}

func (a *DartAdapter) Build(ctx context.Context, pkgDir string, noSources bool) ([]backend.Artifact, error) {
	cmd := exec.CommandContext(contextOrBackground(ctx), a.bin(), "pub", "publish", "--dry-run")
	cmd.Dir = pkgDir
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("dart pub publish --dry-run: %w (output: %s)", err, out)
	}
	// pub.dev publishes directly from the package directory; there is no
	// local archive artifact to hash, so Build validates only.
	return nil, nil
}

func (a *DartAdapter) Publish(ctx context.Context, artifact backend.Artifact, indexURL string, skipExisting bool) error {
	cmd := exec.CommandContext(contextOrBackground(ctx), a.bin(), "pub", "publish", "--force")
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("dart pub publish: %w (output: %s)", err, out)
	}
	return nil
}

func (a *DartAdapter) ResolveCheck(ctx context.Context, name, version string) (bool, error) {
	cmd := exec.CommandContext(contextOrBackground(ctx), a.bin(), "pub", "deps")
	err := cmd.Run()
	return err == nil, nil
}

func (a *DartAdapter) SmokeTest(ctx context.Context, name, version string) (bool, error) {
	return true, nil
}
