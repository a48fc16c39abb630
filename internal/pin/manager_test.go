package pin

import (
	"os"
	"path/filepath"
	"testing"
)

func TestScopedMutationRestoresOnRelease(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "go.mod")
	if err := os.WriteFile(path, []byte("module example\n"), 0644); err != nil {
		t.Fatal(err)
	}

	m, err := NewManager(filepath.Join(dir, ".backups"), nil)
	if err != nil {
		t.Fatal(err)
	}

	h, err := m.ScopedMutation([]string{path}, func() error {
		return os.WriteFile(path, []byte("module example\n\nrequire other v1.2.3\n"), 0644)
	})
	if err != nil {
		t.Fatal(err)
	}

	mutated, _ := os.ReadFile(path)
	if string(mutated) == "module example\n" {
		t.Fatal("expected mutation to have been applied")
	}

	if err := m.Release(h); err != nil {
		t.Fatal(err)
	}

	restored, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(restored) != "module example\n" {
		t.Errorf("restored content = %q, want original", restored)
	}
}

func TestReleaseTwiceIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pyproject.toml")
	if err := os.WriteFile(path, []byte("version = \"1.0.0\"\n"), 0644); err != nil {
		t.Fatal(err)
	}

	m, err := NewManager(filepath.Join(dir, ".backups"), nil)
	if err != nil {
		t.Fatal(err)
	}

	h, err := m.ScopedMutation([]string{path}, func() error {
		return os.WriteFile(path, []byte("version = \"1.1.0\"\n"), 0644)
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := m.Release(h); err != nil {
		t.Fatal(err)
	}
	if err := m.Release(h); err != nil {
		t.Fatalf("second Release should be a no-op, got error: %v", err)
	}
}

func TestMutationFailureStillRestores(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Cargo.toml")
	original := []byte("[package]\nversion = \"1.0.0\"\n")
	if err := os.WriteFile(path, original, 0644); err != nil {
		t.Fatal(err)
	}

	m, err := NewManager(filepath.Join(dir, ".backups"), nil)
	if err != nil {
		t.Fatal(err)
	}

	_, err = m.ScopedMutation([]string{path}, func() error {
		if writeErr := os.WriteFile(path, []byte("garbage"), 0644); writeErr != nil {
			return writeErr
		}
		return errIntentional
	})
	if err == nil {
		t.Fatal("expected mutation error to propagate")
	}

	restored, _ := os.ReadFile(path)
	if string(restored) != string(original) {
		t.Errorf("restored content = %q, want original after failed mutation", restored)
	}
}

func TestCloseFailsWithOutstandingHandles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "go.mod")
	if err := os.WriteFile(path, []byte("module example\n"), 0644); err != nil {
		t.Fatal(err)
	}

	m, err := NewManager(filepath.Join(dir, ".backups"), nil)
	if err != nil {
		t.Fatal(err)
	}

	_, err = m.ScopedMutation([]string{path}, func() error { return nil })
	if err != nil {
		t.Fatal(err)
	}

	if err := m.Close(); err == nil {
		t.Fatal("expected Close to fail while a handle is outstanding")
	}
}

func TestNewManagerRecoversIndexAfterRestart(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "go.mod")
	original := []byte("module example\n")
	if err := os.WriteFile(path, original, 0644); err != nil {
		t.Fatal(err)
	}

	backupDir := filepath.Join(dir, ".backups")
	m, err := NewManager(backupDir, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.ScopedMutation([]string{path}, func() error {
		return os.WriteFile(path, []byte("module example\n\nrequire other v1.2.3\n"), 0644)
	}); err != nil {
		t.Fatal(err)
	}
	// Simulate the process dying here, before it could call Release or
	// RestoreAll: m is simply discarded, leaving pin-index.json and the
	// .bak file behind in backupDir.

	recovered, err := NewManager(backupDir, nil)
	if err != nil {
		t.Fatal(err)
	}
	if errs := recovered.RestoreAll(); len(errs) != 0 {
		t.Fatalf("RestoreAll() errs = %v, want none", errs)
	}

	restored, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(restored) != string(original) {
		t.Errorf("restored content = %q, want original", restored)
	}
}

var errIntentional = intentionalError{}

type intentionalError struct{}

func (intentionalError) Error() string { return "intentional mutation failure" }
