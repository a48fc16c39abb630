package publisher

import (
	"context"

	"github.com/Spencerx/releasekit/internal/backend"
	"github.com/Spencerx/releasekit/internal/depgraph"
	"github.com/Spencerx/releasekit/internal/diagnostics"
	"github.com/Spencerx/releasekit/internal/lock"
)

// PreflightCheck is a single named, independently-reportable pre-flight
// condition (§4.G: "Each check has a code and a remediation hint.").
type PreflightCheck struct {
	Name string
	OK   bool
	Err  error
}

// Preflight runs the gates checked before the scheduler starts: clean
// worktree, forge available, no concurrent release in progress, graph
// acyclic, and at least one releasable package. Registry reachability is
// not checked.
func Preflight(ctx context.Context, vcs backend.VCS, forge backend.Forge, lk *lock.Lock, graph *depgraph.Graph, packagesToPublish int) []PreflightCheck {
	var checks []PreflightCheck

	clean, err := vcs.IsClean(ctx)
	switch {
	case err != nil:
		checks = append(checks, PreflightCheck{"clean_worktree", false, diagnostics.New(
			"RK-PREFLIGHT-VCS", diagnostics.ClassWorkspace, "could not determine worktree cleanliness",
			"ensure git is on PATH and the workspace root is a git repository", err)})
	case !clean:
		checks = append(checks, PreflightCheck{"clean_worktree", false, diagnostics.New(
			"RK-PREFLIGHT-DIRTY", diagnostics.ClassWorkspace, "the worktree has uncommitted changes",
			"commit or stash local changes before releasing", nil)})
	default:
		checks = append(checks, PreflightCheck{"clean_worktree", true, nil})
	}

	if forge.IsAvailable(ctx) {
		checks = append(checks, PreflightCheck{"forge_available", true, nil})
	} else {
		checks = append(checks, PreflightCheck{"forge_available", false, diagnostics.New(
			"RK-PREFLIGHT-FORGE", diagnostics.ClassConfiguration, "the configured forge CLI is not available",
			"install and authenticate the forge CLI (e.g. `gh auth login`)", nil)})
	}

	if lk.IsHeldByOther() {
		checks = append(checks, PreflightCheck{"no_concurrent_release", false, diagnostics.New(
			diagnostics.CodeLockHeld, diagnostics.ClassWorkspace, "another release is already in progress",
			"wait for the other run to finish, or pass --force-lock if it crashed", nil)})
	} else {
		checks = append(checks, PreflightCheck{"no_concurrent_release", true, nil})
	}

	if _, err := graph.TopologicalSort(); err != nil {
		checks = append(checks, PreflightCheck{"graph_acyclic", false, err})
	} else {
		checks = append(checks, PreflightCheck{"graph_acyclic", true, nil})
	}

	if packagesToPublish > 0 {
		checks = append(checks, PreflightCheck{"has_releasable_packages", true, nil})
	} else {
		checks = append(checks, PreflightCheck{"has_releasable_packages", false, diagnostics.New(
			diagnostics.CodeNoChanges, diagnostics.ClassWorkspace, "no package has a pending version bump",
			"nothing to do; this is not necessarily an error (see --if-needed)", nil)})
	}

	return checks
}

// FirstFailure returns the first failing check, if any, for callers that
// want to abort on the first problem rather than collect every failure.
func FirstFailure(checks []PreflightCheck) (PreflightCheck, bool) {
	for _, c := range checks {
		if !c.OK {
			return c, true
		}
	}
	return PreflightCheck{}, false
}
