package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "releasekit.toml")
	writeFile(t, path, `
forge = "github"
repo_owner = "acme"
repo_name = "monorepo"
`)

	root, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if root.Concurrency != 4 {
		t.Errorf("Concurrency = %d, want default 4", root.Concurrency)
	}
	if root.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want default 3", root.MaxRetries)
	}
	if root.ReleaseMode != ReleaseModePR {
		t.Errorf("ReleaseMode = %q, want %q", root.ReleaseMode, ReleaseModePR)
	}
	if root.VersioningScheme != "semver" {
		t.Errorf("VersioningScheme = %q, want semver", root.VersioningScheme)
	}
}

func TestLoadWorkspaceSections(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "releasekit.toml")
	writeFile(t, path, `
forge = "github"

[workspace.python-libs]
ecosystem = "python"
tool = "uv"
root = "python"
tag_format = "py-{name}-v{version}"

[workspace.go-libs]
ecosystem = "go"
tool = "gomod"
root = "go"
`)

	root, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	ws, ok := root.Workspaces["python-libs"]
	if !ok {
		t.Fatal("expected workspace python-libs")
	}
	if ws.Ecosystem != "python" || ws.Tool != "uv" {
		t.Errorf("unexpected workspace: %+v", ws)
	}
	if ws.TagFormat != "py-{name}-v{version}" {
		t.Errorf("TagFormat = %q", ws.TagFormat)
	}
}

func TestResolvePrecedence(t *testing.T) {
	root := &Root{Concurrency: 4, MaxRetries: 3, TagFormat: "{name}-v{version}"}
	applyDefaults(root)

	ws := &Workspace{Concurrency: 8}
	pkg := &Package{MaxRetries: 1, Hooks: map[string]string{"post_build": "echo pkg"}}

	resolved := Resolve(root, ws, pkg)

	if resolved.Concurrency != 8 {
		t.Errorf("Concurrency = %d, want 8 (workspace override)", resolved.Concurrency)
	}
	if resolved.MaxRetries != 1 {
		t.Errorf("MaxRetries = %d, want 1 (package override)", resolved.MaxRetries)
	}
	if resolved.TagFormat != "{name}-v{version}" {
		t.Errorf("TagFormat = %q, want root default", resolved.TagFormat)
	}
	if resolved.Hooks["post_build"] != "echo pkg" {
		t.Errorf("Hooks not merged: %+v", resolved.Hooks)
	}
}

func TestResolveHooksReplace(t *testing.T) {
	root := &Root{}
	applyDefaults(root)
	pkg := &Package{HooksReplace: true, Hooks: map[string]string{"only": "this"}}

	resolved := Resolve(root, nil, pkg)
	if len(resolved.Hooks) != 1 || resolved.Hooks["only"] != "this" {
		t.Errorf("HooksReplace not honored: %+v", resolved.Hooks)
	}
}

func TestLoadPackageMissingFile(t *testing.T) {
	dir := t.TempDir()
	pkg, err := LoadPackage(dir)
	if err != nil {
		t.Fatalf("LoadPackage: %v", err)
	}
	if pkg.Group != "" {
		t.Errorf("expected zero-value Package, got %+v", pkg)
	}
}
