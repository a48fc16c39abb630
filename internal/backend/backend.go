// Package backend declares the capability interfaces ReleaseKit's core
// depends on (§4.A): VCS, Forge, Registry, PackageManager, and Workspace.
// The core never talks to git, a forge API, a registry, or an ecosystem
// tool directly — only through these five small interfaces, selected by
// (ecosystem, tool) keys from configuration (§9 "Dynamic dispatch").
package backend

import (
	"context"
	"time"
)

// SHA identifies a git commit.
type SHA string

// Commit is a single parsed VCS log entry (see internal/commit for the
// Conventional-Commits parsing that populates the commit-grammar fields).
type Commit struct {
	SHA        SHA
	Message    string
	Author     string
	AuthorDate time.Time
	Subject    string
}

// VCS abstracts the version-control system backing a workspace. The
// default implementation shells out to the `git` binary, exactly as the
// teacher's cmd/release.go and cmd/changelog.go do throughout.
type VCS interface {
	IsClean(ctx context.Context) (bool, error)
	IsShallow(ctx context.Context) (bool, error)
	CurrentSHA(ctx context.Context) (SHA, error)
	CurrentBranch(ctx context.Context) (string, error)
	Log(ctx context.Context, sinceTag string, paths []string) ([]Commit, error)
	Diff(ctx context.Context, sha SHA) ([]string, error)
	Commit(ctx context.Context, paths []string, message string) (SHA, error)
	Tag(ctx context.Context, name, annotatedMessage string) error
	TagExists(ctx context.Context, name string) (bool, error)
	ListTags(ctx context.Context, pattern string) ([]string, error)
	Push(ctx context.Context, ref string, force bool) error
	Checkout(ctx context.Context, ref string) error
	CherryPick(ctx context.Context, sha SHA) error
}

// PRHandle identifies a forge pull request across calls.
type PRHandle struct {
	Number int
	URL    string
}

// ReleaseHandle identifies a forge release across calls.
type ReleaseHandle struct {
	ID  int64
	URL string
}

// PRState filters ListPRs by lifecycle state.
type PRState string

const (
	PRStateOpen   PRState = "open"
	PRStateMerged PRState = "merged"
	PRStateClosed PRState = "closed"
)

// Forge abstracts the forge (GitHub, GitLab, Bitbucket, ...) coordinating
// the Release PR. The default implementation shells out to the `gh` CLI,
// grounded on the teacher's pkg/gh/client.go, which does exactly that for
// every operation it performs. Features a given forge does not support
// (e.g. labels on some Bitbucket tiers) log a warning and return success
// rather than erroring, per §4.A.
type Forge interface {
	IsAvailable(ctx context.Context) bool
	CreatePR(ctx context.Context, branch, base, title, body string, labels []string) (PRHandle, error)
	UpdatePR(ctx context.Context, handle PRHandle, body string, labels []string) error
	ListPRs(ctx context.Context, label string, state PRState) ([]PRHandle, error)
	GetPRBody(ctx context.Context, handle PRHandle) (string, error)
	MergePR(ctx context.Context, handle PRHandle) error
	CreateRelease(ctx context.Context, tag, name, body string, draft, prerelease bool) (ReleaseHandle, error)
	AddLabels(ctx context.Context, handle PRHandle, labels []string) error
	RemoveLabels(ctx context.Context, handle PRHandle, labels []string) error
	RepositoryDispatch(ctx context.Context, eventType string, payload map[string]any) error
}

// ChecksumResult is the outcome of verifying a published artifact.
type ChecksumResult struct {
	Match    bool
	Actual   string
	Expected string
}

// Registry abstracts an ecosystem package registry (PyPI, npm, crates.io,
// pub.dev, Maven, the Go module proxy, ...). All operations are async and
// bounded by configured timeouts (§4.A).
type Registry interface {
	CheckPublished(ctx context.Context, name, version string) (bool, error)
	PollAvailable(ctx context.Context, name, version string, timeout, interval time.Duration) (bool, error)
	LatestVersion(ctx context.Context, name string) (string, bool, error)
	VerifyChecksum(ctx context.Context, name, version, expectedSHA256 string) (ChecksumResult, error)
}

// Artifact is a build output: a local path plus its sha256.
type Artifact struct {
	Path   string
	SHA256 string
}

// PackageManager abstracts the ecosystem-native build/publish tool (uv,
// pnpm, cargo, go, dart pub, gradle, bazel, ...).
type PackageManager interface {
	Lock(ctx context.Context, workspaceRoot string, upgradePackage string) error
	Build(ctx context.Context, pkgDir string, noSources bool) ([]Artifact, error)
	Publish(ctx context.Context, artifact Artifact, indexURL string, skipExisting bool) error
	ResolveCheck(ctx context.Context, name, version string) (bool, error)
	SmokeTest(ctx context.Context, name, version string) (bool, error)
}

// MutationHandle is returned by RewriteDependencyVersion and consumed by
// the ephemeral pin manager (internal/pin) to release the mutation.
type MutationHandle struct {
	Path            string
	OriginalContent []byte
}

// Workspace abstracts ecosystem-specific discovery and manifest rewriting.
// This is the "Workspace adapter" of §4.A / the teacher's ProjectHandler
// (pkg/project/handler.go), generalized from a single-ecosystem interface to
// the full polyglot contract the spec requires.
type Workspace interface {
	Discover(ctx context.Context, root string) ([]PackageInfo, error)
	RewriteVersion(ctx context.Context, pkgDir, newVersion string) error
	RewriteDependencyVersion(ctx context.Context, pkgDir, depName, versionOrRevert string) (MutationHandle, error)
}

// PackageInfo is what a Workspace adapter reports for one discovered
// package, before it is wrapped into the richer depgraph.Node.
type PackageInfo struct {
	Name         string
	Ecosystem    string
	Dir          string
	Version      string
	Dependencies []DependencyRef
}

// DependencyRef is a single dependency edge as reported by a Workspace
// adapter, before internal/external classification (§3).
type DependencyRef struct {
	Name         string
	VersionOrReq string
	WorkspaceSourced bool // true if the manifest declares this as workspace-local (path dep, workspace:*, workspace = true)
}
