package publisher_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Spencerx/releasekit/internal/backend"
	"github.com/Spencerx/releasekit/internal/commit"
	"github.com/Spencerx/releasekit/internal/depgraph"
	"github.com/Spencerx/releasekit/internal/pin"
	"github.com/Spencerx/releasekit/internal/publisher"
	"github.com/Spencerx/releasekit/internal/runstate"
	"github.com/Spencerx/releasekit/internal/version"
)

type fakeWorkspace struct {
	rewrites []string
	manifest string
}

func (f *fakeWorkspace) Discover(ctx context.Context, root string) ([]backend.PackageInfo, error) {
	return nil, nil
}
func (f *fakeWorkspace) RewriteVersion(ctx context.Context, pkgDir, newVersion string) error {
	return nil
}
func (f *fakeWorkspace) RewriteDependencyVersion(ctx context.Context, pkgDir, depName, versionOrReq string) (backend.MutationHandle, error) {
	original := []byte(f.manifest)
	f.manifest = f.manifest + ";" + depName + "@" + versionOrReq
	if err := os.WriteFile(pkgDir, []byte(f.manifest), 0644); err != nil {
		return backend.MutationHandle{}, err
	}
	f.rewrites = append(f.rewrites, depName)
	return backend.MutationHandle{Path: pkgDir, OriginalContent: original}, nil
}

type fakePackageManager struct {
	buildErr   error
	publishErr error
}

func (f *fakePackageManager) Lock(ctx context.Context, workspaceRoot, upgradePackage string) error {
	return nil
}
func (f *fakePackageManager) Build(ctx context.Context, pkgDir string, noSources bool) ([]backend.Artifact, error) {
	if f.buildErr != nil {
		return nil, f.buildErr
	}
	return []backend.Artifact{{Path: pkgDir + ".tar.gz", SHA256: "abc123"}}, nil
}
func (f *fakePackageManager) Publish(ctx context.Context, artifact backend.Artifact, indexURL string, skipExisting bool) error {
	return f.publishErr
}
func (f *fakePackageManager) ResolveCheck(ctx context.Context, name, version string) (bool, error) {
	return true, nil
}
func (f *fakePackageManager) SmokeTest(ctx context.Context, name, version string) (bool, error) {
	return true, nil
}

type fakeRegistry struct {
	checksumMatch bool
}

func (f *fakeRegistry) CheckPublished(ctx context.Context, name, version string) (bool, error) {
	return true, nil
}
func (f *fakeRegistry) PollAvailable(ctx context.Context, name, version string, timeout, interval time.Duration) (bool, error) {
	return true, nil
}
func (f *fakeRegistry) LatestVersion(ctx context.Context, name string) (string, bool, error) {
	return "", false, nil
}
func (f *fakeRegistry) VerifyChecksum(ctx context.Context, name, version, expectedSHA256 string) (backend.ChecksumResult, error) {
	return backend.ChecksumResult{Match: f.checksumMatch, Actual: "abc123", Expected: expectedSHA256}, nil
}

func newGraph() *depgraph.Graph {
	g := depgraph.NewGraph()
	g.AddNode(&depgraph.Node{Name: "core"})
	g.AddNode(&depgraph.Node{Name: "plugin"})
	g.AddEdge("plugin", "core")
	return g
}

func newBumps() map[string]*version.PackageBump {
	return map[string]*version.PackageBump{
		"core":   {Package: "core", FromVersion: "1.0.0", ToVersion: "1.1.0", Kind: commit.KindMinor, Reason: version.ReasonDirect},
		"plugin": {Package: "plugin", FromVersion: "2.0.0", ToVersion: "2.0.1", Kind: commit.KindPatch, Reason: version.ReasonTransitive},
	}
}

func newJournal(t *testing.T) *runstate.Journal {
	path := filepath.Join(t.TempDir(), "run.json")
	return runstate.New(path, "run-1", "deadbeef", "hash-1", []*version.PackageBump{
		{Package: "core"}, {Package: "plugin"},
	}, time.Now())
}

func newPinManager(t *testing.T) *pin.Manager {
	m, err := pin.NewManager(filepath.Join(t.TempDir(), ".backups"), nil)
	require.NoError(t, err)
	return m
}

func TestPublish_HappyPathRunsEveryState(t *testing.T) {
	dir := t.TempDir()
	manifestPath := filepath.Join(dir, "manifest")
	require.NoError(t, os.WriteFile(manifestPath, []byte("original"), 0644))

	ws := &fakeWorkspace{manifest: "original"}
	pkgMgr := &fakePackageManager{}
	reg := &fakeRegistry{checksumMatch: true}

	graph := newGraph()
	pins := newPinManager(t)
	journal := newJournal(t)

	sources := map[string]*publisher.Source{
		"plugin": {Dir: manifestPath, Workspace: ws, PackageMgr: pkgMgr, Registry: reg},
		"core":   {Dir: manifestPath, Workspace: ws, PackageMgr: pkgMgr, Registry: reg},
	}

	p := publisher.New(graph, sources, pins, journal)
	bumps := newBumps()

	err := p.Publish(context.Background(), "plugin", bumps)
	require.NoError(t, err)

	assert.Equal(t, "done", journal.PerPackage["plugin"].Status)
	assert.Contains(t, ws.rewrites, "core")

	restored, err := os.ReadFile(manifestPath)
	require.NoError(t, err)
	assert.Equal(t, "original", string(restored), "pinning mutation must be restored after publish")
}

func TestPublish_BuildFailureRestoresAndFails(t *testing.T) {
	dir := t.TempDir()
	manifestPath := filepath.Join(dir, "manifest")
	require.NoError(t, os.WriteFile(manifestPath, []byte("original"), 0644))

	ws := &fakeWorkspace{manifest: "original"}
	pkgMgr := &fakePackageManager{buildErr: errors.New("build failed")}
	reg := &fakeRegistry{checksumMatch: true}

	graph := newGraph()
	pins := newPinManager(t)
	journal := newJournal(t)

	sources := map[string]*publisher.Source{
		"plugin": {Dir: manifestPath, Workspace: ws, PackageMgr: pkgMgr, Registry: reg},
		"core":   {Dir: manifestPath, Workspace: ws, PackageMgr: pkgMgr, Registry: reg},
	}

	p := publisher.New(graph, sources, pins, journal)
	err := p.Publish(context.Background(), "plugin", newBumps())

	require.Error(t, err)
	assert.Equal(t, "failed", journal.PerPackage["plugin"].Status)

	restored, readErr := os.ReadFile(manifestPath)
	require.NoError(t, readErr)
	assert.Equal(t, "original", string(restored), "even a failed build must restore the pinning mutation")
}

func TestPublish_ChecksumMismatchIsPermanentFailure(t *testing.T) {
	dir := t.TempDir()
	manifestPath := filepath.Join(dir, "manifest")
	require.NoError(t, os.WriteFile(manifestPath, []byte("original"), 0644))

	ws := &fakeWorkspace{manifest: "original"}
	pkgMgr := &fakePackageManager{}
	reg := &fakeRegistry{checksumMatch: false}

	graph := newGraph()
	pins := newPinManager(t)
	journal := newJournal(t)

	sources := map[string]*publisher.Source{
		"plugin": {Dir: manifestPath, Workspace: ws, PackageMgr: pkgMgr, Registry: reg},
		"core":   {Dir: manifestPath, Workspace: ws, PackageMgr: pkgMgr, Registry: reg},
	}

	p := publisher.New(graph, sources, pins, journal)
	err := p.Publish(context.Background(), "plugin", newBumps())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "checksum")
}
