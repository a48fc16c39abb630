package ecosystem

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"

	"github.com/Spencerx/releasekit/internal/backend"
)

// GradleAdapter implements the Java/Kotlin ecosystem via Gradle.
// gradle.properties is a plain key=value file read with bufio; build.gradle
// / build.gradle.kts are Groovy/Kotlin DSL that no library in the
// retrieved pack can parse, so version/dependency lines are found with a
// line-oriented regexp scan instead of a real DSL parser.
type GradleAdapter struct {
	GradleBin string
}

func NewGradleAdapter() *GradleAdapter { return &GradleAdapter{} }

func (a *GradleAdapter) bin() string {
	if a.GradleBin != "" {
		return a.GradleBin
	}
	return "./gradlew"
}

func (a *GradleAdapter) HasProjectFile(dir string) bool {
	for _, name := range []string{"build.gradle", "build.gradle.kts"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			return true
		}
	}
	return false
}

func (a *GradleAdapter) buildFile(dir string) (string, error) {
	for _, name := range []string{"build.gradle.kts", "build.gradle"} {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("no build.gradle(.kts) found in %s", dir)
}

var gradlePropertiesVersionRe = regexp.MustCompile(`^version\s*=\s*(.+)$`)
var gradleGroupRe = regexp.MustCompile(`^group\s*=\s*['"]([^'"]+)['"]`)

func (a *GradleAdapter) readProperties(dir string) (map[string]string, error) {
	path := filepath.Join(dir, "gradle.properties")
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading gradle.properties: %w", err)
	}
	defer f.Close()

	props := map[string]string{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if m := gradlePropertiesVersionRe.FindStringSubmatch(line); m != nil {
			props["version"] = m[1]
		}
	}
	return props, scanner.Err()
}

// implementationDepRe matches `implementation("group:artifact:version")`
// or `implementation 'group:artifact:version'` and similar configurations
// (api, compileOnly, testImplementation, runtimeOnly).
var implementationDepRe = regexp.MustCompile(`^\s*(?:implementation|api|compileOnly|runtimeOnly|testImplementation)\s*[\(]?['"]([^:'"]+):([^:'"]+):([^'"]+)['"]`)
var projectDepRe = regexp.MustCompile(`^\s*(?:implementation|api)\s*[\(]?project\(['"]([^'"]+)['"]\)`)

func (a *GradleAdapter) parseDependencies(buildFilePath string) ([]backend.DependencyRef, error) {
	f, err := os.Open(buildFilePath)
	if err != nil {
		return nil, fmt.Errorf("reading build.gradle: %w", err)
	}
	defer f.Close()

	var deps []backend.DependencyRef
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if m := implementationDepRe.FindStringSubmatch(line); m != nil {
			deps = append(deps, backend.DependencyRef{
				Name:         m[1] + ":" + m[2],
				VersionOrReq: m[3],
			})
			continue
		}
		if m := projectDepRe.FindStringSubmatch(line); m != nil {
			deps = append(deps, backend.DependencyRef{
				Name:             m[1],
				WorkspaceSourced: true,
			})
		}
	}
	return deps, scanner.Err()
}

func (a *GradleAdapter) Discover(ctx context.Context, root string) ([]backend.PackageInfo, error) {
	matches, err := filepath.Glob(filepath.Join(root, "*"))
	if err != nil {
		return nil, err
	}

	var infos []backend.PackageInfo
	for _, dir := range matches {
		if !a.HasProjectFile(dir) {
			continue
		}
		buildFile, err := a.buildFile(dir)
		if err != nil {
			continue
		}
		props, err := a.readProperties(dir)
		if err != nil {
			continue
		}
		deps, err := a.parseDependencies(buildFile)
		if err != nil {
			continue
		}

		name := filepath.Base(dir)
		if group := a.readGroup(buildFile); group != "" {
			name = group + ":" + name
		}

		infos = append(infos, backend.PackageInfo{
			Name:         name,
			Ecosystem:    string(TypeGradle),
			Dir:          dir,
			Version:      props["version"],
			Dependencies: deps,
		})
	}
	return infos, nil
}

func (a *GradleAdapter) readGroup(buildFilePath string) string {
	f, err := os.Open(buildFilePath)
	if err != nil {
		return ""
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if m := gradleGroupRe.FindStringSubmatch(scanner.Text()); m != nil {
			return m[1]
		}
	}
	return ""
}

// RewriteVersion rewrites gradle.properties' `version=` line, the
// convention the Gradle docs recommend over hardcoding a version in
// build.gradle.
func (a *GradleAdapter) RewriteVersion(ctx context.Context, pkgDir, newVersion string) error {
	path := filepath.Join(pkgDir, "gradle.properties")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			data = []byte{}
		} else {
			return fmt.Errorf("reading gradle.properties: %w", err)
		}
	}

	lines := bytes.Split(data, []byte("\n"))
	found := false
	for i, line := range lines {
		if gradlePropertiesVersionRe.Match(line) {
			lines[i] = []byte("version=" + newVersion)
			found = true
			break
		}
	}
	if !found {
		lines = append(lines, []byte("version="+newVersion))
	}
	return os.WriteFile(path, bytes.Join(lines, []byte("\n")), 0644)
}

func (a *GradleAdapter) RewriteDependencyVersion(ctx context.Context, pkgDir, depName, versionOrRevert string) (backend.MutationHandle, error) {
	buildFile, err := a.buildFile(pkgDir)
	if err != nil {
		return backend.MutationHandle{}, err
	}
	original, err := os.ReadFile(buildFile)
	if err != nil {
		return backend.MutationHandle{}, fmt.Errorf("reading build.gradle: %w", err)
	}

	depRe := regexp.MustCompile(`(` + regexp.QuoteMeta(depName) + `:)[^:'"]+(['"])`)
	if !depRe.Match(original) {
		return backend.MutationHandle{}, fmt.Errorf("dependency %q not found in %s", depName, buildFile)
	}
	rewritten := depRe.ReplaceAll(original, []byte(`${1}`+versionOrRevert+`${2}`))
	if err := os.WriteFile(buildFile, rewritten, 0644); err != nil {
		return backend.MutationHandle{}, fmt.Errorf("writing build.gradle: %w", err)
	}
	return backend.MutationHandle{Path: buildFile, OriginalContent: original}, nil
}

func (a *GradleAdapter) Lock(ctx context.Context, workspaceRoot, upgradePackage string) error {
	cmd := exec.CommandContext(contextOrBackground(ctx), a.bin(), "dependencies", "--write-locks")
	cmd.Dir = workspaceRoot
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("gradle dependencies --write-locks: %w (output: %s)", err, out)
	}
	return nil
}

func (a *GradleAdapter) Build(ctx context.Context, pkgDir string, noSources bool) ([]backend.Artifact, error) {
	args := []string{"build", "-x", "test"}
	cmd := exec.CommandContext(contextOrBackground(ctx), a.bin(), args...)
	cmd.Dir = pkgDir
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("gradle build: %w (output: %s)", err, out)
	}

	libsDir := filepath.Join(pkgDir, "build", "libs")
	entries, err := os.ReadDir(libsDir)
	if err != nil {
		return nil, fmt.Errorf("reading build/libs: %w", err)
	}
	var artifacts []backend.Artifact
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".jar" {
			continue
		}
		p := filepath.Join(libsDir, e.Name())
		sum, err := backend.SHA256File(p)
		if err != nil {
			return nil, err
		}
		artifacts = append(artifacts, backend.Artifact{Path: p, SHA256: sum})
	}
	return artifacts, nil
}

func (a *GradleAdapter) Publish(ctx context.Context, artifact backend.Artifact, indexURL string, skipExisting bool) error {
	cmd := exec.CommandContext(contextOrBackground(ctx), a.bin(), "publish")
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("gradle publish: %w (output: %s)", err, out)
	}
	return nil
}

func (a *GradleAdapter) ResolveCheck(ctx context.Context, name, version string) (bool, error) {
	cmd := exec.CommandContext(contextOrBackground(ctx), a.bin(), "dependencies")
	err := cmd.Run()
	return err == nil, nil
}

func (a *GradleAdapter) SmokeTest(ctx context.Context, name, version string) (bool, error) {
	return true, nil
}
