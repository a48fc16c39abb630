// Package release implements the Prepare/Release/Publish protocol of
// §4.H: computing a release plan, persisting it, embedding it in a
// Release PR body, and extracting it again on merge to drive tag and
// publish. Grounded on the teacher's pkg/release/plan.go
// (ReleasePlan/RepoReleasePlan persisted as indented JSON via
// os.ReadFile/os.WriteFile), reimplemented per-package instead of
// per-repo and without the teacher's unfetchable grovetools/core/pkg/paths
// import — ReleaseKit threads its state directory through explicitly
// instead of resolving a global one.
package release

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Spencerx/releasekit/internal/version"
)

// Plan is the full output of one prepare step: every package's bump plus
// bookkeeping needed to detect a stale resume (§3 VersionBump, §4.H).
type Plan struct {
	CreatedAt time.Time                        `json:"created_at"`
	GitSHA    string                            `json:"git_sha"`
	Bumps     map[string]*version.PackageBump   `json:"bumps"`
	Skipped   []string                          `json:"skipped"`
}

// FromEngine adapts a version.Plan (the engine's output) plus the git sha
// it was computed against into a persistable release Plan.
func FromEngine(engPlan *version.Plan, gitSHA string, createdAt time.Time) *Plan {
	return &Plan{
		CreatedAt: createdAt,
		GitSHA:    gitSHA,
		Bumps:     engPlan.Bumps,
		Skipped:   engPlan.Skipped,
	}
}

// path returns the on-disk location of the persisted plan inside the
// caller-supplied state directory.
func path(stateDir string) string {
	return filepath.Join(stateDir, "release_plan.json")
}

// Save writes the plan to stateDir/release_plan.json, creating stateDir if
// necessary.
func Save(stateDir string, plan *Plan) error {
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return fmt.Errorf("creating release state dir %s: %w", stateDir, err)
	}
	data, err := json.MarshalIndent(plan, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding release plan: %w", err)
	}
	return os.WriteFile(path(stateDir), data, 0644)
}

// Load reads the persisted plan from stateDir. A missing file returns
// (nil, nil): there is no staged plan yet.
func Load(stateDir string) (*Plan, error) {
	data, err := os.ReadFile(path(stateDir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading release plan: %w", err)
	}
	var plan Plan
	if err := json.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("parsing release plan: %w", err)
	}
	return &plan, nil
}

// Clear removes the persisted plan, used once a release has been fully
// tagged and the Release PR closed.
func Clear(stateDir string) error {
	err := os.Remove(path(stateDir))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
