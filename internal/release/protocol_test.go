package release_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Spencerx/releasekit/internal/backend"
	"github.com/Spencerx/releasekit/internal/commit"
	"github.com/Spencerx/releasekit/internal/config"
	"github.com/Spencerx/releasekit/internal/depgraph"
	"github.com/Spencerx/releasekit/internal/release"
	"github.com/Spencerx/releasekit/internal/version"
)

type fakeVCS struct {
	sha       string
	tags      map[string]bool
	commits   []string
	pushedRef []string
}

func newFakeVCS(sha string) *fakeVCS {
	return &fakeVCS{sha: sha, tags: make(map[string]bool)}
}

func (f *fakeVCS) IsClean(ctx context.Context) (bool, error)        { return true, nil }
func (f *fakeVCS) IsShallow(ctx context.Context) (bool, error)      { return false, nil }
func (f *fakeVCS) CurrentSHA(ctx context.Context) (backend.SHA, error) {
	return backend.SHA(f.sha), nil
}
func (f *fakeVCS) CurrentBranch(ctx context.Context) (string, error) { return "main", nil }
func (f *fakeVCS) Log(ctx context.Context, sinceTag string, paths []string) ([]backend.Commit, error) {
	return nil, nil
}
func (f *fakeVCS) Diff(ctx context.Context, sha backend.SHA) ([]string, error) { return nil, nil }
func (f *fakeVCS) Commit(ctx context.Context, paths []string, message string) (backend.SHA, error) {
	f.commits = append(f.commits, message)
	return backend.SHA(f.sha), nil
}
func (f *fakeVCS) Tag(ctx context.Context, name, annotatedMessage string) error {
	f.tags[name] = true
	return nil
}
func (f *fakeVCS) TagExists(ctx context.Context, name string) (bool, error) { return f.tags[name], nil }
func (f *fakeVCS) ListTags(ctx context.Context, pattern string) ([]string, error) {
	var names []string
	for n := range f.tags {
		names = append(names, n)
	}
	return names, nil
}
func (f *fakeVCS) Push(ctx context.Context, ref string, force bool) error {
	f.pushedRef = append(f.pushedRef, ref)
	return nil
}
func (f *fakeVCS) Checkout(ctx context.Context, ref string) error      { return nil }
func (f *fakeVCS) CherryPick(ctx context.Context, sha backend.SHA) error { return nil }

type fakeForge struct {
	openPRs     []backend.PRHandle
	mergedPRs   []backend.PRHandle
	bodies      map[int]string
	labels      map[int][]string
	created     []backend.PRHandle
	releases    []string
	nextPRNum   int
	dispatched  []string
}

func newFakeForge() *fakeForge {
	return &fakeForge{bodies: make(map[int]string), labels: make(map[int][]string), nextPRNum: 1}
}

func (f *fakeForge) IsAvailable(ctx context.Context) bool { return true }
func (f *fakeForge) CreatePR(ctx context.Context, branch, base, title, body string, labels []string) (backend.PRHandle, error) {
	h := backend.PRHandle{Number: f.nextPRNum, URL: fmt.Sprintf("https://example.test/pr/%d", f.nextPRNum)}
	f.nextPRNum++
	f.bodies[h.Number] = body
	f.labels[h.Number] = labels
	f.created = append(f.created, h)
	return h, nil
}
func (f *fakeForge) UpdatePR(ctx context.Context, handle backend.PRHandle, body string, labels []string) error {
	f.bodies[handle.Number] = body
	f.labels[handle.Number] = append(f.labels[handle.Number], labels...)
	return nil
}
func (f *fakeForge) ListPRs(ctx context.Context, label string, state backend.PRState) ([]backend.PRHandle, error) {
	switch state {
	case backend.PRStateMerged:
		return f.mergedPRs, nil
	default:
		return f.openPRs, nil
	}
}
func (f *fakeForge) GetPRBody(ctx context.Context, handle backend.PRHandle) (string, error) {
	return f.bodies[handle.Number], nil
}
func (f *fakeForge) MergePR(ctx context.Context, handle backend.PRHandle) error { return nil }
func (f *fakeForge) CreateRelease(ctx context.Context, tag, name, body string, draft, prerelease bool) (backend.ReleaseHandle, error) {
	f.releases = append(f.releases, tag)
	return backend.ReleaseHandle{URL: "https://example.test/release/" + tag}, nil
}
func (f *fakeForge) AddLabels(ctx context.Context, handle backend.PRHandle, labels []string) error {
	f.labels[handle.Number] = append(f.labels[handle.Number], labels...)
	return nil
}
func (f *fakeForge) RemoveLabels(ctx context.Context, handle backend.PRHandle, labels []string) error {
	return nil
}
func (f *fakeForge) RepositoryDispatch(ctx context.Context, eventType string, payload map[string]any) error {
	f.dispatched = append(f.dispatched, eventType)
	return nil
}

type fakeWorkspace struct {
	rewritten map[string]string
}

func (w *fakeWorkspace) Discover(ctx context.Context, root string) ([]backend.PackageInfo, error) {
	return nil, nil
}
func (w *fakeWorkspace) RewriteVersion(ctx context.Context, pkgDir, newVersion string) error {
	w.rewritten[pkgDir] = newVersion
	return nil
}
func (w *fakeWorkspace) RewriteDependencyVersion(ctx context.Context, pkgDir, depName, versionOrReq string) (backend.MutationHandle, error) {
	return backend.MutationHandle{Path: pkgDir}, nil
}

func newGraph(t *testing.T) *depgraph.Graph {
	t.Helper()
	g := depgraph.NewGraph()
	g.AddNode(&depgraph.Node{Name: "core", Ecosystem: "go", Dir: t.TempDir()})
	return g
}

func TestPrepareCreatesReleasePRWithEmbeddedManifest(t *testing.T) {
	graph := newGraph(t)
	vcs := newFakeVCS("abc1234567890")
	forge := newFakeForge()
	ws := &fakeWorkspace{rewritten: make(map[string]string)}
	cfg := &config.Root{DefaultBranch: "main", TagFormat: "{name}-v{version}", Concurrency: 1, MaxRetries: 1}

	proto := release.NewProtocol(cfg, graph, vcs, forge, map[string]backend.Workspace{"core": ws}, t.TempDir())

	commits := map[string][]commit.Parsed{
		"core": {commit.Parse("1111111", "alice", "feat: add widget")},
	}
	fromVersions := map[string]string{"core": "1.0.0"}
	ctxs := map[string]version.PackageContext{
		"core": {Scheme: version.NewSemver()},
	}

	result, err := proto.Prepare(context.Background(), commits, fromVersions, ctxs, false, nil, "Release time")
	require.NoError(t, err)

	assert.Equal(t, 1, result.PR.Number)
	assert.Equal(t, "1.1.0", ws.rewritten[graphDir(graph, "core")])
	assert.Len(t, vcs.commits, 1)
	assert.Contains(t, vcs.commits[0], "chore(release):")
	assert.NotEmpty(t, forge.bodies[result.PR.Number])
	assert.Contains(t, forge.labels[result.PR.Number], release.ManifestLabel)
}

func TestReleaseTagsEveryPackageFromExtractedManifest(t *testing.T) {
	graph := newGraph(t)
	vcs := newFakeVCS("abc1234567890")
	forge := newFakeForge()
	cfg := &config.Root{TagFormat: "{name}-v{version}"}
	proto := release.NewProtocol(cfg, graph, vcs, forge, nil, t.TempDir())

	plan := &release.Plan{
		GitSHA: "abc1234567890",
		Bumps: map[string]*version.PackageBump{
			"core": {Package: "core", FromVersion: "1.0.0", ToVersion: "1.1.0"},
		},
	}
	manifest := release.BuildManifest(plan, cfg.TagFormat, "v1.1.0")
	body, err := release.Render(manifest, "Release time")
	require.NoError(t, err)

	pr := backend.PRHandle{Number: 42}
	forge.mergedPRs = []backend.PRHandle{pr}
	forge.bodies[pr.Number] = body

	result, err := proto.Release(context.Background())
	require.NoError(t, err)

	assert.Contains(t, result.Tags, "core-v1.1.0")
	assert.Contains(t, result.Tags, "v1.1.0")
	assert.True(t, vcs.tags["core-v1.1.0"])
	assert.Len(t, forge.releases, 1)
	assert.Contains(t, forge.labels[pr.Number], "tagged")
}

func TestReleaseIsIdempotentForExistingTags(t *testing.T) {
	graph := newGraph(t)
	vcs := newFakeVCS("abc1234567890")
	vcs.tags["core-v1.1.0"] = true
	forge := newFakeForge()
	cfg := &config.Root{TagFormat: "{name}-v{version}"}
	proto := release.NewProtocol(cfg, graph, vcs, forge, nil, t.TempDir())

	plan := &release.Plan{
		GitSHA: "abc1234567890",
		Bumps: map[string]*version.PackageBump{
			"core": {Package: "core", FromVersion: "1.0.0", ToVersion: "1.1.0"},
		},
	}
	manifest := release.BuildManifest(plan, cfg.TagFormat, "")
	body, err := release.Render(manifest, "")
	require.NoError(t, err)

	pr := backend.PRHandle{Number: 7}
	forge.mergedPRs = []backend.PRHandle{pr}
	forge.bodies[pr.Number] = body

	result, err := proto.Release(context.Background())
	require.NoError(t, err)
	assert.Empty(t, result.Tags)
	assert.Empty(t, forge.releases)
}

func graphDir(g *depgraph.Graph, name string) string {
	n, _ := g.GetNode(name)
	return n.Dir
}

