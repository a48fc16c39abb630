package release

import (
	"context"
	"fmt"
	"time"

	"github.com/Spencerx/releasekit/internal/backend"
	"github.com/Spencerx/releasekit/internal/changelog"
	"github.com/Spencerx/releasekit/internal/commit"
	"github.com/Spencerx/releasekit/internal/config"
	"github.com/Spencerx/releasekit/internal/depgraph"
	"github.com/Spencerx/releasekit/internal/diagnostics"
	"github.com/Spencerx/releasekit/internal/lock"
	"github.com/Spencerx/releasekit/internal/publisher"
	"github.com/Spencerx/releasekit/internal/scheduler"
	"github.com/Spencerx/releasekit/internal/version"
)

// ManifestLabel is the canonical label used to find the Release PR among
// open (and, once merged, closed) pull requests. Grounded on the
// teacher's submodule-tagging flow (cmd/release.go), reworked here into a
// PR-based protocol since the teacher orchestrates in-place rather than
// through a forge PR.
const ManifestLabel = "releasekit"

// BranchPrefix names the branch prepare pushes the Release PR from.
const BranchPrefix = "releasekit-release"

// CommitPrefix is the canonical commit message prefix for every commit
// prepare makes (§4.H: "a canonical message prefix").
const CommitPrefix = "chore(release): "

// Protocol wires the three independent prepare/release/publish entry
// points (§4.H) over the backend interfaces and the already-built engine,
// changelog, and publisher packages.
type Protocol struct {
	Config    *config.Root
	Graph     *depgraph.Graph
	VCS       backend.VCS
	Forge     backend.Forge
	Workspace map[string]backend.Workspace // keyed by package name
	Engine    *version.Engine
	StateDir  string // directory release_plan.json is persisted under; defaults to ".releasekit"
}

// NewProtocol constructs a Protocol. stateDir may be empty, in which case
// ".releasekit" relative to the process's working directory is used.
func NewProtocol(cfg *config.Root, graph *depgraph.Graph, vcs backend.VCS, forge backend.Forge, workspaces map[string]backend.Workspace, stateDir string) *Protocol {
	return &Protocol{
		Config:    cfg,
		Graph:     graph,
		VCS:       vcs,
		Forge:     forge,
		Workspace: workspaces,
		Engine:    version.NewEngine(graph),
		StateDir:  stateDir,
	}
}

// PrepareResult reports what prepare did, for the CLI layer to render.
type PrepareResult struct {
	Plan   *Plan
	PR     backend.PRHandle
	Branch string
}

// Prepare computes a release plan, applies every package's manifest
// rewrite and changelog update, commits and pushes a release branch, and
// opens (or updates) the Release PR carrying the embedded manifest
// (§4.H "prepare").
func (p *Protocol) Prepare(ctx context.Context, commits map[string][]commit.Parsed, fromVersions map[string]string, ctxs map[string]version.PackageContext, forceUnchanged bool, packageManagers map[string]backend.PackageManager, prose string) (*PrepareResult, error) {
	gitSHA, err := p.VCS.CurrentSHA(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolving current sha: %w", err)
	}

	engPlan, err := p.Engine.Compute(commits, fromVersions, ctxs, forceUnchanged)
	if err != nil {
		return nil, fmt.Errorf("computing release plan: %w", err)
	}
	if len(engPlan.Bumps) == 0 {
		return nil, diagnostics.New(diagnostics.CodeNoChanges, diagnostics.ClassWorkspace,
			"no package has a pending version bump", "nothing to prepare; see --if-needed", nil)
	}

	plan := FromEngine(engPlan, string(gitSHA), time.Now())

	branch := fmt.Sprintf("%s-%s", BranchPrefix, gitSHA[:shortLen(string(gitSHA))])
	for _, name := range sortedBumpNames(plan) {
		bump := plan.Bumps[name]
		ws, ok := p.Workspace[name]
		if !ok {
			return nil, fmt.Errorf("no workspace adapter registered for package %q", name)
		}
		node, ok := p.Graph.GetNode(name)
		if !ok {
			return nil, fmt.Errorf("no graph node for package %q", name)
		}

		if err := ws.RewriteVersion(ctx, node.Dir, bump.ToVersion); err != nil {
			return nil, fmt.Errorf("rewriting version for %s: %w", name, err)
		}

		if pm, ok := packageManagers[name]; ok {
			if err := pm.Lock(ctx, node.Dir, name); err != nil {
				return nil, fmt.Errorf("locking dependencies for %s: %w", name, err)
			}
		}

		section := changelog.RenderSection(name, bump.ToVersion, commits[name], time.Now())
		changelogPath := node.Dir + "/CHANGELOG.md"
		if err := changelog.UpdateFile(changelogPath, section); err != nil {
			return nil, fmt.Errorf("updating changelog for %s: %w", name, err)
		}
	}

	if err := Save(p.stateDir(), plan); err != nil {
		return nil, fmt.Errorf("persisting release plan: %w", err)
	}

	paths := changedPaths(plan, p.Graph)
	commitMsg := CommitPrefix + releaseSummary(plan)
	if _, err := p.VCS.Commit(ctx, paths, commitMsg); err != nil {
		return nil, fmt.Errorf("committing release changes: %w", err)
	}
	if err := p.VCS.Push(ctx, "HEAD:refs/heads/"+branch, false); err != nil {
		return nil, fmt.Errorf("pushing release branch %s: %w", branch, err)
	}

	umbrellaTag := ""
	if p.Config.TagFormat != "" {
		umbrellaTag = FormatTag(p.Config.TagFormat, "umbrella", firstBumpVersion(plan))
	}
	manifest := BuildManifest(plan, p.Config.TagFormat, umbrellaTag)
	body, err := Render(manifest, prose)
	if err != nil {
		return nil, fmt.Errorf("rendering release manifest: %w", err)
	}

	pr, err := p.findOpenManifestPR(ctx)
	if err != nil {
		return nil, err
	}
	title := releaseTitle(p.Config.PRTitleTemplate, plan)
	if pr != nil {
		if err := p.Forge.UpdatePR(ctx, *pr, body, []string{ManifestLabel}); err != nil {
			return nil, fmt.Errorf("updating release PR #%d: %w", pr.Number, err)
		}
		return &PrepareResult{Plan: plan, PR: *pr, Branch: branch}, nil
	}

	handle, err := p.Forge.CreatePR(ctx, branch, p.Config.DefaultBranch, title, body, []string{ManifestLabel})
	if err != nil {
		return nil, fmt.Errorf("creating release PR: %w", err)
	}
	return &PrepareResult{Plan: plan, PR: handle, Branch: branch}, nil
}

// ReleaseResult reports what release did.
type ReleaseResult struct {
	Manifest    *Manifest
	Tags        []string
	ReleaseURLs []string
}

// Release locates the merged Release PR, extracts its manifest, and
// creates every package tag plus the umbrella tag and forge release
// (§4.H "release"). Idempotent: a tag or release that already exists is
// left unchanged and not recreated.
func (p *Protocol) Release(ctx context.Context) (*ReleaseResult, error) {
	prs, err := p.Forge.ListPRs(ctx, ManifestLabel, backend.PRStateMerged)
	if err != nil {
		return nil, fmt.Errorf("listing merged release PRs: %w", err)
	}
	if len(prs) == 0 {
		return nil, fmt.Errorf("no merged release PR found with label %q", ManifestLabel)
	}
	pr := prs[0]

	body, err := p.Forge.GetPRBody(ctx, pr)
	if err != nil {
		return nil, fmt.Errorf("reading release PR #%d body: %w", pr.Number, err)
	}
	manifest, err := Extract(body)
	if err != nil {
		return nil, diagnostics.New(diagnostics.CodeManifestInvalid, diagnostics.ClassPermanent,
			"release PR body does not carry a valid releasekit manifest",
			"ensure the PR was created by releasekit prepare and was not hand-edited", err)
	}

	result := &ReleaseResult{Manifest: manifest}
	for _, pkg := range manifest.Packages {
		exists, err := p.VCS.TagExists(ctx, pkg.Tag)
		if err != nil {
			return nil, fmt.Errorf("checking tag %s: %w", pkg.Tag, err)
		}
		if exists {
			continue
		}
		if err := p.VCS.Tag(ctx, pkg.Tag, fmt.Sprintf("Release %s %s", pkg.Name, pkg.To)); err != nil {
			return nil, fmt.Errorf("tagging %s: %w", pkg.Tag, err)
		}
		if err := p.VCS.Push(ctx, "refs/tags/"+pkg.Tag, false); err != nil {
			return nil, fmt.Errorf("pushing tag %s: %w", pkg.Tag, err)
		}
		result.Tags = append(result.Tags, pkg.Tag)

		notes := changelog.RenderSection(pkg.Name, pkg.To, nil, time.Now())
		rel, err := p.Forge.CreateRelease(ctx, pkg.Tag, fmt.Sprintf("%s %s", pkg.Name, pkg.To), notes, false, false)
		if err != nil {
			return nil, fmt.Errorf("creating forge release for %s: %w", pkg.Tag, err)
		}
		result.ReleaseURLs = append(result.ReleaseURLs, rel.URL)
	}

	if manifest.Umbrella != "" {
		exists, err := p.VCS.TagExists(ctx, manifest.Umbrella)
		if err != nil {
			return nil, fmt.Errorf("checking umbrella tag %s: %w", manifest.Umbrella, err)
		}
		if !exists {
			if err := p.VCS.Tag(ctx, manifest.Umbrella, "Umbrella release"); err != nil {
				return nil, fmt.Errorf("tagging umbrella %s: %w", manifest.Umbrella, err)
			}
			if err := p.VCS.Push(ctx, "refs/tags/"+manifest.Umbrella, false); err != nil {
				return nil, fmt.Errorf("pushing umbrella tag %s: %w", manifest.Umbrella, err)
			}
			result.Tags = append(result.Tags, manifest.Umbrella)
		}
	}

	if err := p.Forge.AddLabels(ctx, pr, []string{"tagged"}); err != nil {
		return nil, fmt.Errorf("labeling release PR #%d tagged: %w", pr.Number, err)
	}

	return result, nil
}

// Publish acquires the process lock and runs the plan through the
// Publisher in the current checkout, labeling the PR "published" and
// dispatching downstream events on success (§4.H "publish"). It does not
// check out the released commit.
func (p *Protocol) Publish(ctx context.Context, pub *publisher.Publisher, bumps map[string]*version.PackageBump, lk *lock.Lock, force bool, alreadyPublished map[string]bool, dispatchEvent string) (*scheduler.Result, error) {
	if err := lk.Acquire("releasekit publish", force); err != nil {
		return nil, fmt.Errorf("acquiring process lock: %w", err)
	}
	defer lk.Release()

	deps := make(map[string][]string, len(bumps))
	for name := range bumps {
		deps[name] = p.Graph.GetDependencies(name)
	}

	sched := scheduler.New(deps, scheduler.Config{
		Concurrency: p.Config.Concurrency,
		MaxRetries:  p.Config.MaxRetries,
		PublishFn: func(ctx context.Context, pkg string) error {
			return pub.Publish(ctx, pkg, bumps)
		},
		IsTransient:      diagnostics.IsTransient,
		AlreadyPublished: alreadyPublished,
	})
	result := sched.Run(ctx)

	if len(result.Failed) > 0 || len(result.Blocked) > 0 {
		if prs, err := p.Forge.ListPRs(ctx, "tagged", backend.PRStateMerged); err == nil && len(prs) > 0 {
			_ = p.Forge.AddLabels(ctx, prs[0], p.partialPublishLabels(result))
		}
		return result, fmt.Errorf("publish finished with %d failed and %d blocked packages", len(result.Failed), len(result.Blocked))
	}

	prs, err := p.Forge.ListPRs(ctx, "tagged", backend.PRStateMerged)
	if err == nil && len(prs) > 0 {
		_ = p.Forge.AddLabels(ctx, prs[0], []string{"published"})
	}

	if dispatchEvent != "" {
		payload := map[string]any{"packages": bumpNames(bumps)}
		if err := p.Forge.RepositoryDispatch(ctx, dispatchEvent, payload); err != nil {
			return result, fmt.Errorf("dispatching downstream event: %w", err)
		}
	}

	return result, nil
}

// partialPublishLabels builds the label set a partial publish applies to
// the release PR: "partial-published" plus one per-ecosystem sub-label
// for every package that finished ("published:<ecosystem>") or did not
// ("failed:<ecosystem>"), per the prepare/release/publish OPEN QUESTION
// decision that a partial publish is labelled this way rather than left
// unlabelled.
func (p *Protocol) partialPublishLabels(result *scheduler.Result) []string {
	labels := []string{"partial-published"}
	seen := map[string]bool{"partial-published": true}
	add := func(prefix, pkg string) {
		label := prefix + ":" + p.ecosystemOf(pkg)
		if !seen[label] {
			seen[label] = true
			labels = append(labels, label)
		}
	}
	for _, name := range result.Done {
		add("published", name)
	}
	for name := range result.Failed {
		add("failed", name)
	}
	for name := range result.Blocked {
		add("failed", name)
	}
	return labels
}

func (p *Protocol) ecosystemOf(pkg string) string {
	if node, ok := p.Graph.GetNode(pkg); ok && node.Ecosystem != "" {
		return node.Ecosystem
	}
	return "unknown"
}

func (p *Protocol) stateDir() string {
	if p.StateDir != "" {
		return p.StateDir
	}
	return ".releasekit"
}

func (p *Protocol) findOpenManifestPR(ctx context.Context) (*backend.PRHandle, error) {
	prs, err := p.Forge.ListPRs(ctx, ManifestLabel, backend.PRStateOpen)
	if err != nil {
		return nil, fmt.Errorf("listing open release PRs: %w", err)
	}
	if len(prs) == 0 {
		return nil, nil
	}
	return &prs[0], nil
}

func changedPaths(plan *Plan, graph *depgraph.Graph) []string {
	var paths []string
	for _, name := range sortedBumpNames(plan) {
		if node, ok := graph.GetNode(name); ok {
			paths = append(paths, node.Dir)
		}
	}
	return paths
}

func releaseSummary(plan *Plan) string {
	names := sortedBumpNames(plan)
	if len(names) == 1 {
		b := plan.Bumps[names[0]]
		return fmt.Sprintf("release %s@%s", b.Package, b.ToVersion)
	}
	return fmt.Sprintf("release %d packages", len(names))
}

func releaseTitle(template string, plan *Plan) string {
	if template == "" {
		return releaseSummary(plan)
	}
	return template
}

func firstBumpVersion(plan *Plan) string {
	for _, name := range sortedBumpNames(plan) {
		return plan.Bumps[name].ToVersion
	}
	return ""
}

func bumpNames(bumps map[string]*version.PackageBump) []string {
	names := make([]string, 0, len(bumps))
	for name := range bumps {
		names = append(names, name)
	}
	return names
}

func shortLen(sha string) int {
	if len(sha) > 12 {
		return 12
	}
	return len(sha)
}
