// Package publisher implements the per-package publish state machine of
// §4.G: pinning -> building -> publishing -> polling -> verifying ->
// restoring -> done, threaded through the backend.Workspace,
// backend.PackageManager, and backend.Registry interfaces the way the
// teacher's cmd/release.go threads pkg/project.ProjectHandler and
// pkg/gh.Client through a release. Any state may fail; restoring always
// runs, via internal/pin, on every path out.
package publisher

import (
	"context"
	"fmt"
	"time"

	"github.com/Spencerx/releasekit/internal/backend"
	"github.com/Spencerx/releasekit/internal/depgraph"
	"github.com/Spencerx/releasekit/internal/diagnostics"
	"github.com/Spencerx/releasekit/internal/pin"
	"github.com/Spencerx/releasekit/internal/runstate"
	"github.com/Spencerx/releasekit/internal/version"
)

// Source bundles everything the publisher needs for one package: its
// workspace/package-manager adapter and the registry it publishes to.
// WorkspaceSourced internal deps are resolved against the plan by name, so
// the publisher itself stays adapter-agnostic.
type Source struct {
	Dir          string
	IndexURL     string
	SkipExisting bool
	SmokeTest    bool
	PollInterval time.Duration
	PollTimeout  time.Duration
	Workspace    backend.Workspace
	PackageMgr   backend.PackageManager
	Registry     backend.Registry
}

// Publisher drives the state machine for every package in a plan.
type Publisher struct {
	Graph   *depgraph.Graph
	Sources map[string]*Source
	Pins    *pin.Manager
	Journal *runstate.Journal
}

// New constructs a Publisher.
func New(graph *depgraph.Graph, sources map[string]*Source, pins *pin.Manager, journal *runstate.Journal) *Publisher {
	return &Publisher{Graph: graph, Sources: sources, Pins: pins, Journal: journal}
}

// Publish runs one package through the full state machine and returns its
// terminal error, if any. bumps maps every package in the plan to its
// PackageBump so the pinning state can resolve internal dependency
// versions. Intended to be wrapped as a scheduler.PublishFunc, one per
// package, closing over its own bump.
func (p *Publisher) Publish(ctx context.Context, pkg string, bumps map[string]*version.PackageBump) (err error) {
	src, ok := p.Sources[pkg]
	if !ok {
		return fmt.Errorf("publisher: no source registered for package %q", pkg)
	}
	bump, ok := bumps[pkg]
	if !ok {
		return fmt.Errorf("publisher: no plan entry for package %q", pkg)
	}

	started := time.Now()
	p.setStatus(pkg, "pinning", func(s *runstate.PackageStatus) {
		s.Attempts++
		if s.StartedAt.IsZero() {
			s.StartedAt = started
		}
	})

	handle, err := p.pin(ctx, pkg, src, bumps)
	if err != nil {
		p.setStatus(pkg, "failed", func(s *runstate.PackageStatus) { s.Error = err.Error() })
		return err
	}
	defer func() {
		p.setStatus(pkg, "restoring", nil)
		if releaseErr := p.Pins.Release(handle); releaseErr != nil && err == nil {
			err = releaseErr
		}
		if err != nil {
			p.setStatus(pkg, "failed", func(s *runstate.PackageStatus) { s.Error = err.Error() })
			return
		}
		p.setStatus(pkg, "done", func(s *runstate.PackageStatus) { s.FinishedAt = time.Now() })
	}()

	p.setStatus(pkg, "building", nil)
	artifacts, err := src.PackageMgr.Build(ctx, src.Dir, true)
	if err != nil {
		p.setStatus(pkg, "failed", func(s *runstate.PackageStatus) { s.Error = err.Error() })
		return fmt.Errorf("building %s: %w", pkg, err)
	}

	hashes := make(map[string]string, len(artifacts))
	for _, a := range artifacts {
		hashes[a.Path] = a.SHA256
	}

	p.setStatus(pkg, "publishing", func(s *runstate.PackageStatus) { s.ArtifactHashes = hashes })
	for _, a := range artifacts {
		if err := src.PackageMgr.Publish(ctx, a, src.IndexURL, src.SkipExisting); err != nil {
			p.setStatus(pkg, "failed", func(s *runstate.PackageStatus) { s.Error = err.Error() })
			return fmt.Errorf("publishing %s: %w", pkg, err)
		}
	}

	p.setStatus(pkg, "polling", nil)
	pollInterval, pollTimeout := resolvePoll(src)
	if _, err := src.Registry.PollAvailable(ctx, pkg, bump.ToVersion, pollTimeout, pollInterval); err != nil {
		p.setStatus(pkg, "failed", func(s *runstate.PackageStatus) { s.Error = err.Error() })
		return fmt.Errorf("polling %s@%s: %w", pkg, bump.ToVersion, err)
	}

	p.setStatus(pkg, "verifying", nil)
	if err := p.verify(ctx, pkg, bump.ToVersion, artifacts, src); err != nil {
		p.setStatus(pkg, "failed", func(s *runstate.PackageStatus) { s.Error = err.Error() })
		return err
	}

	if src.SmokeTest {
		ok, err := src.PackageMgr.SmokeTest(ctx, pkg, bump.ToVersion)
		if err != nil {
			p.setStatus(pkg, "failed", func(s *runstate.PackageStatus) { s.Error = err.Error() })
			return fmt.Errorf("smoke testing %s@%s: %w", pkg, bump.ToVersion, err)
		}
		if !ok {
			smokeErr := diagnostics.New("RK-SMOKE-FAIL", diagnostics.ClassPermanent,
				fmt.Sprintf("smoke test failed for %s@%s", pkg, bump.ToVersion),
				"inspect the installed package manually", nil)
			p.setStatus(pkg, "failed", func(s *runstate.PackageStatus) { s.Error = smokeErr.Error() })
			return smokeErr
		}
	}

	return nil
}

// pin rewrites every internal dependency of pkg to its release-plan
// version and wraps all resulting mutations in one ephemeral Handle
// (§4.G.1).
func (p *Publisher) pin(ctx context.Context, pkg string, src *Source, bumps map[string]*version.PackageBump) (*pin.Handle, error) {
	var muts []backend.MutationHandle
	for _, dep := range p.Graph.GetDependencies(pkg) {
		depBump, ok := bumps[dep]
		if !ok {
			continue
		}
		mh, err := src.Workspace.RewriteDependencyVersion(ctx, src.Dir, dep, depBump.ToVersion)
		if err != nil {
			// roll back whatever we already pinned before surfacing the error.
			if h, adoptErr := p.Pins.Adopt(muts); adoptErr == nil {
				_ = p.Pins.Release(h)
			}
			return nil, fmt.Errorf("pinning %s's dependency on %s: %w", pkg, dep, err)
		}
		muts = append(muts, mh)
	}
	return p.Pins.Adopt(muts)
}

// verify checks the built artifact against the registry's reported
// checksum. A mismatch is always a permanent failure (§4.G.5).
func (p *Publisher) verify(ctx context.Context, pkg, toVersion string, artifacts []backend.Artifact, src *Source) error {
	for _, a := range artifacts {
		result, err := src.Registry.VerifyChecksum(ctx, pkg, toVersion, a.SHA256)
		if err != nil {
			return fmt.Errorf("verifying checksum for %s@%s: %w", pkg, toVersion, err)
		}
		if !result.Match {
			return diagnostics.New("RK-CHECKSUM-MISMATCH", diagnostics.ClassPermanent,
				fmt.Sprintf("published checksum for %s@%s does not match the local artifact", pkg, toVersion),
				"re-run build and publish from a clean worktree", nil)
		}
	}
	return nil
}

func (p *Publisher) setStatus(pkg, status string, mutate func(*runstate.PackageStatus)) {
	if p.Journal == nil {
		return
	}
	_ = p.Journal.SetStatus(pkg, status, func(s *runstate.PackageStatus) {
		if mutate != nil {
			mutate(s)
		}
	})
}

func resolvePoll(src *Source) (interval, timeout time.Duration) {
	if src.PollInterval > 0 {
		interval = src.PollInterval
	} else {
		interval = 5 * time.Second
	}
	if src.PollTimeout > 0 {
		timeout = src.PollTimeout
	} else {
		timeout = 5 * time.Minute
	}
	return interval, timeout
}
