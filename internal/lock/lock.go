// Package lock implements the process lock of §4.J: a file created with
// exclusive-create semantics at the workspace root, carrying pid,
// hostname, started_at, and command metadata, with staleness-based
// stealing. Grounded on github.com/gofrs/flock, used the same way the
// untoldecay-BeadsLog pack repo guards its sync step
// (cmd/bd/sync.go: flock.New(lockPath), TryLock, defer Unlock).
//
// The lock excludes concurrent runs on a single host only; runs on
// different hosts do not coordinate through it.
package lock

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/gofrs/flock"
)

// Info is the JSON payload written inside the lock file, so a competing
// process (or an operator) can tell who holds it and when it started.
type Info struct {
	PID       int       `json:"pid"`
	Hostname  string    `json:"hostname"`
	StartedAt time.Time `json:"started_at"`
	Command   string    `json:"command"`
}

// Lock guards one workspace root against concurrent ReleaseKit runs.
type Lock struct {
	path    string
	flock   *flock.Flock
	stale   time.Duration
	held    bool
	lastErr error
}

// DefaultStaleAfter is how old an unreleased lock file must be before it's
// considered abandoned by a crashed predecessor (§4.J default).
const DefaultStaleAfter = 30 * time.Minute

// New creates a Lock bound to path (conventionally
// "<workspace_root>/.releasekit.lock"). staleAfter <= 0 uses
// DefaultStaleAfter.
func New(path string, staleAfter time.Duration) *Lock {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	return &Lock{path: path, flock: flock.New(path), stale: staleAfter}
}

// Acquire takes the lock. When another holder has it, a lock file younger
// than the stale window makes Acquire fail unless force is true; a stale
// or unreadable lock file is stolen without force. Returns a
// diagnostics-friendly error naming the current holder when acquisition
// fails.
func (l *Lock) Acquire(command string, force bool) error {
	locked, err := l.flock.TryLock()
	if err != nil {
		return fmt.Errorf("acquiring process lock %s: %w", l.path, err)
	}
	if !locked {
		info, readErr := readInfo(l.path)
		fresh := readErr == nil && time.Since(info.StartedAt) < l.stale
		if fresh && !force {
			return fmt.Errorf("release already in progress (pid %d on %s, started %s); pass --force-lock to steal a crashed run's lock",
				info.PID, info.Hostname, info.StartedAt.Format(time.RFC3339))
		}

		// Stale, or explicitly forced: steal it by removing the file and
		// retrying acquisition once.
		_ = os.Remove(l.path)
		l.flock = flock.New(l.path)
		locked, err = l.flock.TryLock()
		if err != nil {
			return fmt.Errorf("stealing stale process lock %s: %w", l.path, err)
		}
		if !locked {
			return fmt.Errorf("could not acquire process lock %s after stealing", l.path)
		}
	}

	hostname, _ := os.Hostname()
	info := Info{PID: os.Getpid(), Hostname: hostname, StartedAt: time.Now(), Command: command}
	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		_ = l.flock.Unlock()
		return fmt.Errorf("encoding lock metadata: %w", err)
	}
	if err := os.WriteFile(l.path, data, 0644); err != nil {
		_ = l.flock.Unlock()
		return fmt.Errorf("writing lock metadata to %s: %w", l.path, err)
	}

	l.held = true
	return nil
}

// Release unlocks and removes the lock file. Safe to call even if Acquire
// was never called or already failed.
func (l *Lock) Release() error {
	if !l.held {
		return nil
	}
	l.held = false
	if err := l.flock.Unlock(); err != nil {
		l.lastErr = err
	}
	_ = os.Remove(l.path)
	return l.lastErr
}

// IsHeldByOther reports whether a fresh lock file exists that this Lock
// instance does not itself hold, used by the publisher's pre-flight check
// without actually attempting acquisition.
func (l *Lock) IsHeldByOther() bool {
	if l.held {
		return false
	}
	info, err := readInfo(l.path)
	if err != nil {
		return false
	}
	return time.Since(info.StartedAt) < l.stale
}

func readInfo(path string) (Info, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Info{}, err
	}
	var info Info
	if err := json.Unmarshal(data, &info); err != nil {
		return Info{}, err
	}
	return info, nil
}
