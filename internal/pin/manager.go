// Package pin implements the Ephemeral Pin Manager (§4.E): scoped manifest
// mutations that are always restored to their pre-mutation content,
// whether the process exits normally, errors, or is killed by a signal.
// No teacher file implements this directly — grove relies on developers
// editing manifests permanently — so this package is new, built in the
// teacher's general style of small structs with an explicit Close/Release
// step and sirupsen/logrus for restoration logging.
package pin

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/Spencerx/releasekit/internal/backend"
	"github.com/Spencerx/releasekit/internal/diagnostics"
)

// Handle identifies one scoped mutation across files. Acquired by
// ScopedMutation, consumed by Release. §4.E invariant 2: "Restoration is
// idempotent... detected by a reference count" — Handle tracks its own
// released state so a double-release is a safe no-op rather than
// double-restoring (which would be wrong the second time since the first
// restore already put originals back).
type Handle struct {
	id       string
	backups  []backupEntry
	released bool
}

type backupEntry struct {
	path       string
	backupPath string
	original   []byte
	sha256     string
}

// Manager owns every outstanding Handle for one run and can restore all of
// them on demand (RestoreAll), which the signal handler and
// `releasekit rollback` call.
type Manager struct {
	mu        sync.Mutex
	backupDir string
	log       *logrus.Entry
	handles   map[string]*Handle
	nextID    int
}

// NewManager creates a Manager whose backups live under backupDir (a
// per-run directory the caller removes on successful completion, per
// §4.E: "keep backups under a per-run directory that is removed on
// successful release"). If backupDir already holds an index from a prior
// process (one killed before it could restore), that index is loaded back
// into m.handles so a fresh `releasekit rollback` invocation can still
// release them.
func NewManager(backupDir string, log *logrus.Entry) (*Manager, error) {
	if err := os.MkdirAll(backupDir, 0755); err != nil {
		return nil, fmt.Errorf("creating pin backup directory: %w", err)
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	m := &Manager{backupDir: backupDir, log: log, handles: make(map[string]*Handle)}
	if err := m.loadIndex(); err != nil {
		return nil, err
	}
	return m, nil
}

// indexEntry and indexHandle mirror backupEntry/Handle for the on-disk
// index (pin-index.json) persisted beside the backup files themselves, so
// that a `releasekit rollback` invoked by a fresh process after the one
// that created these backups was killed can still find and release them.
type indexEntry struct {
	Path       string `json:"path"`
	BackupPath string `json:"backup_path"`
	SHA256     string `json:"sha256"`
}

type indexHandle struct {
	ID      string       `json:"id"`
	Backups []indexEntry `json:"backups"`
}

func (m *Manager) indexPath() string {
	return filepath.Join(m.backupDir, "pin-index.json")
}

// persistIndexLocked writes the current handle set to disk. Callers must
// hold m.mu. Best-effort: a failure here does not unwind an otherwise
// successful mutation, it only narrows what a crash-recovery rollback can
// later find, so it is logged rather than returned.
func (m *Manager) persistIndexLocked() {
	if len(m.handles) == 0 {
		_ = os.Remove(m.indexPath())
		return
	}
	out := make([]indexHandle, 0, len(m.handles))
	for _, h := range m.handles {
		ih := indexHandle{ID: h.id}
		for _, b := range h.backups {
			ih.Backups = append(ih.Backups, indexEntry{Path: b.path, BackupPath: b.backupPath, SHA256: b.sha256})
		}
		out = append(out, ih)
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		m.log.WithError(err).Warn("marshaling pin index")
		return
	}
	if err := os.WriteFile(m.indexPath(), data, 0644); err != nil {
		m.log.WithError(err).Warn("writing pin index")
	}
}

// loadIndex reconstructs m.handles from a pin-index.json left behind by a
// prior process, reading each backup file's content back in so Release can
// restore it exactly as if the mutation had happened in this process. A
// backup file missing from disk is dropped with a warning rather than
// failing the whole load, since a human may have already hand-restored it.
func (m *Manager) loadIndex() error {
	data, err := os.ReadFile(m.indexPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading pin index: %w", err)
	}
	var handles []indexHandle
	if err := json.Unmarshal(data, &handles); err != nil {
		return fmt.Errorf("parsing pin index: %w", err)
	}
	for _, ih := range handles {
		h := &Handle{id: ih.ID}
		for _, ie := range ih.Backups {
			original, err := os.ReadFile(ie.BackupPath)
			if err != nil {
				m.log.WithError(err).WithField("path", ie.Path).Warn("backup file for pinned manifest missing; skipping")
				continue
			}
			h.backups = append(h.backups, backupEntry{
				path:       ie.Path,
				backupPath: ie.BackupPath,
				original:   original,
				sha256:     ie.SHA256,
			})
		}
		if len(h.backups) > 0 {
			m.handles[h.id] = h
		}
	}
	return nil
}

// ScopedMutation backs up every path, invokes mutate (which performs the
// ecosystem-specific rewrite via a Workspace adapter), and returns a
// Handle good for exactly one Release call.
func (m *Manager) ScopedMutation(paths []string, mutate func() error) (*Handle, error) {
	m.mu.Lock()
	m.nextID++
	id := fmt.Sprintf("pin-%d", m.nextID)
	m.mu.Unlock()

	h := &Handle{id: id}

	for _, path := range paths {
		original, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s before mutation: %w", path, err)
		}
		sum := sha256.Sum256(original)
		backupPath := filepath.Join(m.backupDir, id+"-"+filepath.Base(path)+".bak")
		if err := os.WriteFile(backupPath, original, 0644); err != nil {
			return nil, fmt.Errorf("writing backup for %s: %w", path, err)
		}
		h.backups = append(h.backups, backupEntry{
			path:       path,
			backupPath: backupPath,
			original:   original,
			sha256:     hex.EncodeToString(sum[:]),
		})
	}

	if err := mutate(); err != nil {
		// Mutation itself failed; restore what we already backed up and
		// surface the original error.
		m.mu.Lock()
		m.handles[id] = h
		m.persistIndexLocked()
		m.mu.Unlock()
		if restoreErr := m.Release(h); restoreErr != nil {
			return nil, fmt.Errorf("mutation failed (%w) and restoration also failed: %v", err, restoreErr)
		}
		return nil, fmt.Errorf("applying scoped mutation: %w", err)
	}

	m.mu.Lock()
	m.handles[id] = h
	m.persistIndexLocked()
	m.mu.Unlock()
	return h, nil
}

// Adopt registers mutations a Workspace adapter has already applied (each
// backend.RewriteDependencyVersion call captures the file's pre-mutation
// content as it rewrites it) into a single Handle covering every manifest
// touched by one package's pinning step. Used by the publisher's pinning
// state, which performs one RewriteDependencyVersion per internal
// dependency and wants them all released together.
func (m *Manager) Adopt(muts []backend.MutationHandle) (*Handle, error) {
	m.mu.Lock()
	m.nextID++
	id := fmt.Sprintf("pin-%d", m.nextID)
	m.mu.Unlock()

	h := &Handle{id: id}
	for _, mut := range muts {
		sum := sha256.Sum256(mut.OriginalContent)
		backupPath := filepath.Join(m.backupDir, id+"-"+filepath.Base(mut.Path)+".bak")
		if err := os.WriteFile(backupPath, mut.OriginalContent, 0644); err != nil {
			return nil, fmt.Errorf("writing backup for %s: %w", mut.Path, err)
		}
		h.backups = append(h.backups, backupEntry{
			path:       mut.Path,
			backupPath: backupPath,
			original:   mut.OriginalContent,
			sha256:     hex.EncodeToString(sum[:]),
		})
	}

	m.mu.Lock()
	m.handles[id] = h
	m.persistIndexLocked()
	m.mu.Unlock()
	return h, nil
}

// Release restores every path in h to its pre-mutation content via
// write-temp-then-rename, verifies the restored content's hash, and marks
// h released. Calling Release twice on the same handle is a no-op, per
// §4.E invariant 2.
func (m *Manager) Release(h *Handle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.releaseLocked(h)
}

func (m *Manager) releaseLocked(h *Handle) error {
	if h.released {
		return nil
	}

	var firstErr error
	for _, entry := range h.backups {
		if err := atomicRestore(entry.path, entry.original); err != nil {
			if firstErr == nil {
				firstErr = diagnostics.New(diagnostics.CodePinRestoreFail, diagnostics.ClassPinIntegrity,
					fmt.Sprintf("failed to restore %s from ephemeral mutation", entry.path),
					"the worktree is in an inconsistent state; repair manually before retrying", err)
			}
			continue
		}
		if err := verifyRestored(entry.path, entry.sha256); err != nil {
			if firstErr == nil {
				firstErr = diagnostics.New(diagnostics.CodePinRestoreFail, diagnostics.ClassPinIntegrity,
					fmt.Sprintf("post-restore content of %s does not match its pre-mutation hash", entry.path),
					"the worktree is in an inconsistent state; repair manually before retrying", err)
			}
			continue
		}
		_ = os.Remove(entry.backupPath)
	}

	h.released = true
	delete(m.handles, h.id)
	m.persistIndexLocked()

	if firstErr != nil {
		m.log.WithError(firstErr).Error("ephemeral pin restoration failed")
		return firstErr
	}
	m.log.WithField("paths", len(h.backups)).Debug("ephemeral pin restored")
	return nil
}

// RestoreAll releases every still-outstanding handle, used by the signal
// handler and by `releasekit rollback` (§4.E).
func (m *Manager) RestoreAll() []error {
	m.mu.Lock()
	ids := make([]string, 0, len(m.handles))
	for id := range m.handles {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	var errs []error
	for _, id := range ids {
		m.mu.Lock()
		h, ok := m.handles[id]
		m.mu.Unlock()
		if !ok {
			continue
		}
		if err := m.Release(h); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// Close removes the per-run backup directory. Call only after every
// handle has been released and the run succeeded.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.handles) > 0 {
		return fmt.Errorf("cannot close pin manager: %d handles still outstanding", len(m.handles))
	}
	return os.RemoveAll(m.backupDir)
}

func atomicRestore(path string, content []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".pin-restore-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming temp file over %s: %w", path, err)
	}
	return nil
}

func verifyRestored(path, expectedSHA256 string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading restored file: %w", err)
	}
	sum := sha256.Sum256(data)
	actual := hex.EncodeToString(sum[:])
	if actual != expectedSHA256 {
		return fmt.Errorf("sha256 mismatch: got %s, want %s", actual, expectedSHA256)
	}
	return nil
}
