package lock_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Spencerx/releasekit/internal/lock"
)

func TestAcquireAndRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "releasekit.lock")

	l := lock.New(path, time.Minute)
	require.NoError(t, l.Acquire("releasekit release", false))
	assert.NoError(t, l.Release())

	// A second acquire after release should succeed cleanly.
	l2 := lock.New(path, time.Minute)
	assert.NoError(t, l2.Acquire("releasekit release", false))
	assert.NoError(t, l2.Release())
}

func TestAcquireFailsWhenFreshLockHeld(t *testing.T) {
	path := filepath.Join(t.TempDir(), "releasekit.lock")

	holder := lock.New(path, time.Minute)
	require.NoError(t, holder.Acquire("releasekit release", false))
	defer holder.Release()

	contender := lock.New(path, time.Minute)
	err := contender.Acquire("releasekit release", false)
	assert.Error(t, err)
}

func TestForceLockStealsStaleLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "releasekit.lock")

	holder := lock.New(path, time.Minute)
	require.NoError(t, holder.Acquire("releasekit release", false))
	// Simulate a crashed predecessor: do not release, just abandon it.

	contender := lock.New(path, time.Minute)
	assert.NoError(t, contender.Acquire("releasekit release", true))
	assert.NoError(t, contender.Release())
}

func TestIsHeldByOther(t *testing.T) {
	path := filepath.Join(t.TempDir(), "releasekit.lock")

	l := lock.New(path, time.Minute)
	assert.False(t, l.IsHeldByOther())

	require.NoError(t, l.Acquire("releasekit release", false))
	defer l.Release()

	other := lock.New(path, time.Minute)
	assert.True(t, other.IsHeldByOther())
}
