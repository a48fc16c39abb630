// Package runstate persists the publisher's crash-safe run journal (§3
// RunState, §4.J): a single JSON file, written atomically after every
// per-package state transition, that lets a restarted publisher resume
// where a prior run left off. Grounded on the teacher's general
// temp-file-then-rename atomic write idiom (used throughout
// pkg/release for manifest persistence) and encoding/json, the same
// library the teacher uses for its own plan file.
package runstate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Spencerx/releasekit/internal/version"
)

// PackageStatus is one package's entry in the journal's per_package map.
type PackageStatus struct {
	Status         string            `json:"status"`
	Attempts       int               `json:"attempts"`
	ArtifactHashes map[string]string `json:"artifact_hashes,omitempty"`
	StartedAt      time.Time         `json:"started_at,omitempty"`
	FinishedAt     time.Time         `json:"finished_at,omitempty"`
	Error          string            `json:"error,omitempty"`
}

// Journal is the full persisted run state (§3 "RunState").
type Journal struct {
	RunID      string                    `json:"run_id"`
	StartedAt  time.Time                 `json:"started_at"`
	GitSHA     string                    `json:"git_sha"`
	PlanHash   string                    `json:"plan_hash"`
	Plan       []*version.PackageBump    `json:"plan"`
	PerPackage map[string]*PackageStatus `json:"per_package"`

	path string
}

// New starts a fresh journal for one publish run.
func New(path, runID, gitSHA, planHash string, plan []*version.PackageBump, startedAt time.Time) *Journal {
	perPackage := make(map[string]*PackageStatus, len(plan))
	for _, b := range plan {
		perPackage[b.Package] = &PackageStatus{Status: "pending"}
	}
	return &Journal{
		RunID:      runID,
		StartedAt:  startedAt,
		GitSHA:     gitSHA,
		PlanHash:   planHash,
		Plan:       plan,
		PerPackage: perPackage,
		path:       path,
	}
}

// Load reads an existing journal from path. A missing file is not an
// error; it returns (nil, nil) so the caller starts a fresh run.
func Load(path string) (*Journal, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading run journal %s: %w", path, err)
	}

	var j Journal
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parsing run journal %s: %w", path, err)
	}
	j.path = path
	return &j, nil
}

// Resumable reports whether this journal can seed a resumed run: its
// git_sha and plan hash must match the current run's, per §4.J: "the
// journal is consulted only if git_sha and plan hash match; otherwise a
// fresh run is started."
func (j *Journal) Resumable(gitSHA, planHash string) bool {
	return j != nil && j.GitSHA == gitSHA && j.PlanHash == planHash
}

// AlreadyDone returns the set of packages the journal records as done,
// for seeding the scheduler's already_published set on resume.
func (j *Journal) AlreadyDone() map[string]bool {
	done := make(map[string]bool)
	for pkg, st := range j.PerPackage {
		if st.Status == "done" {
			done[pkg] = true
		}
	}
	return done
}

// SetStatus records a per-package state transition and persists the
// journal atomically. Called after every publisher state-machine step
// (§4.J: "written atomically after every per-package state transition").
func (j *Journal) SetStatus(pkg, status string, mutate func(*PackageStatus)) error {
	st, ok := j.PerPackage[pkg]
	if !ok {
		st = &PackageStatus{}
		j.PerPackage[pkg] = st
	}
	st.Status = status
	if mutate != nil {
		mutate(st)
	}
	return j.persist()
}

func (j *Journal) persist() error {
	data, err := json.MarshalIndent(j, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding run journal: %w", err)
	}

	dir := filepath.Dir(j.path)
	tmp, err := os.CreateTemp(dir, ".runstate-*")
	if err != nil {
		return fmt.Errorf("creating temp journal file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp journal file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp journal file: %w", err)
	}
	if err := os.Rename(tmpPath, j.path); err != nil {
		return fmt.Errorf("renaming temp journal file over %s: %w", j.path, err)
	}
	return nil
}
