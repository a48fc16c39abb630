package scheduler_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Spencerx/releasekit/internal/scheduler"
)

func TestRun_DispatchesInDependencyOrder(t *testing.T) {
	// core has no deps; plugin-a and plugin-b both depend on core.
	deps := map[string][]string{
		"core":      {},
		"plugin-a":  {"core"},
		"plugin-b":  {"core"},
	}

	var mu sync.Mutex
	var order []string

	publish := func(ctx context.Context, pkg string) error {
		mu.Lock()
		order = append(order, pkg)
		mu.Unlock()
		return nil
	}

	s := scheduler.New(deps, scheduler.Config{
		Concurrency: 2,
		PublishFn:   publish,
	})

	result := s.Run(context.Background())

	assert.ElementsMatch(t, []string{"core", "plugin-a", "plugin-b"}, result.Done)
	assert.Empty(t, result.Failed)
	assert.Empty(t, result.Blocked)

	require.NotEmpty(t, order)
	assert.Equal(t, "core", order[0], "core must be dispatched before its dependents")
}

func TestRun_PermanentFailureBlocksTransitiveDependents(t *testing.T) {
	deps := map[string][]string{
		"core":     {},
		"mid":      {"core"},
		"leaf":     {"mid"},
		"sibling":  {"core"},
	}

	publish := func(ctx context.Context, pkg string) error {
		if pkg == "mid" {
			return errors.New("permanent failure")
		}
		return nil
	}

	s := scheduler.New(deps, scheduler.Config{
		Concurrency: 2,
		PublishFn:   publish,
	})

	result := s.Run(context.Background())

	assert.ElementsMatch(t, []string{"core", "sibling"}, result.Done)
	require.Contains(t, result.Failed, "mid")
	assert.Equal(t, "mid", result.Blocked["leaf"])
}

func TestRun_TransientFailureRetriesThenSucceeds(t *testing.T) {
	deps := map[string][]string{"pkg": {}}

	var attempts int
	var mu sync.Mutex
	publish := func(ctx context.Context, pkg string) error {
		mu.Lock()
		attempts++
		n := attempts
		mu.Unlock()
		if n < 3 {
			return fmt.Errorf("transient: attempt %d", n)
		}
		return nil
	}

	var retries int
	observer := &countingObserver{}

	s := scheduler.New(deps, scheduler.Config{
		Concurrency: 1,
		MaxRetries:  5,
		PublishFn:   publish,
		IsTransient: func(error) bool { return true },
		Observer:    observer,
	})

	result := s.Run(context.Background())

	assert.ElementsMatch(t, []string{"pkg"}, result.Done)
	mu.Lock()
	retries = attempts
	mu.Unlock()
	assert.Equal(t, 3, retries)
	assert.GreaterOrEqual(t, observer.retryCount(), 2)
}

func TestRun_ExhaustedRetriesFails(t *testing.T) {
	deps := map[string][]string{"pkg": {}}

	publish := func(ctx context.Context, pkg string) error {
		return errors.New("always transient")
	}

	s := scheduler.New(deps, scheduler.Config{
		Concurrency: 1,
		MaxRetries:  1,
		PublishFn:   publish,
		IsTransient: func(error) bool { return true },
	})

	result := s.Run(context.Background())

	assert.Empty(t, result.Done)
	assert.Contains(t, result.Failed, "pkg")
}

func TestRun_AlreadyPublishedSkipsDependency(t *testing.T) {
	deps := map[string][]string{
		"core": {},
		"dep":  {"core"},
	}

	var mu sync.Mutex
	var seen []string
	publish := func(ctx context.Context, pkg string) error {
		mu.Lock()
		seen = append(seen, pkg)
		mu.Unlock()
		return nil
	}

	s := scheduler.New(deps, scheduler.Config{
		Concurrency:      2,
		PublishFn:        publish,
		AlreadyPublished: map[string]bool{"core": true},
	})

	result := s.Run(context.Background())

	assert.ElementsMatch(t, []string{"dep"}, result.Done)
	assert.NotContains(t, seen, "core")
}

func TestRun_ContextCancellationStopsDispatch(t *testing.T) {
	deps := map[string][]string{
		"a": {}, "b": {}, "c": {}, "d": {}, "e": {},
	}

	ctx, cancel := context.WithCancel(context.Background())

	var count int
	var mu sync.Mutex
	publish := func(ctx context.Context, pkg string) error {
		mu.Lock()
		count++
		if count == 1 {
			cancel()
		}
		mu.Unlock()
		time.Sleep(5 * time.Millisecond)
		return nil
	}

	s := scheduler.New(deps, scheduler.Config{
		Concurrency: 1,
		PublishFn:   publish,
	})

	result := s.Run(ctx)

	assert.Less(t, len(result.Done), 5, "cancellation should prevent every package from finishing")
	assert.NotEmpty(t, result.Cancelled)
}

func TestAddPackage_WiresIntoRunningGraph(t *testing.T) {
	deps := map[string][]string{"core": {}}

	var mu sync.Mutex
	var done []string
	publish := func(ctx context.Context, pkg string) error {
		mu.Lock()
		done = append(done, pkg)
		mu.Unlock()
		return nil
	}

	s := scheduler.New(deps, scheduler.Config{
		Concurrency: 1,
		PublishFn:   publish,
	})
	s.AddPackage("extra", nil)

	result := s.Run(context.Background())

	assert.ElementsMatch(t, []string{"core", "extra"}, result.Done)
}

func TestMarkDone_IsIdempotentAcrossReruns(t *testing.T) {
	deps := map[string][]string{"core": {}}

	callCount := 0
	var mu sync.Mutex
	publish := func(ctx context.Context, pkg string) error {
		mu.Lock()
		callCount++
		mu.Unlock()
		return nil
	}

	s := scheduler.New(deps, scheduler.Config{Concurrency: 1, PublishFn: publish})
	result := s.Run(context.Background())

	assert.Equal(t, []string{"core"}, result.Done)
	assert.Equal(t, 1, callCount)

	rerun := s.Run(context.Background())
	assert.Equal(t, []string{"core"}, rerun.Done)
	assert.Equal(t, 1, callCount)
}

func TestPause_BlocksDispatchUntilResume(t *testing.T) {
	deps := map[string][]string{"pkg": {}}

	started := make(chan struct{})
	release := make(chan struct{})
	publish := func(ctx context.Context, pkg string) error {
		close(started)
		<-release
		return nil
	}

	s := scheduler.New(deps, scheduler.Config{Concurrency: 1, PublishFn: publish})
	s.Pause()

	done := make(chan *scheduler.Result, 1)
	go func() { done <- s.Run(context.Background()) }()

	select {
	case <-started:
		t.Fatal("publish ran while scheduler was paused")
	case <-time.After(30 * time.Millisecond):
	}

	s.Resume()

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("publish never ran after Resume")
	}
	close(release)

	result := <-done
	assert.ElementsMatch(t, []string{"pkg"}, result.Done)
}

func TestRemovePackage_WithoutBlockDependentsLeavesDependentsRunnable(t *testing.T) {
	deps := map[string][]string{
		"core": {},
		"dep":  {"core"},
	}

	var mu sync.Mutex
	var seen []string
	publish := func(ctx context.Context, pkg string) error {
		mu.Lock()
		seen = append(seen, pkg)
		mu.Unlock()
		return nil
	}

	s := scheduler.New(deps, scheduler.Config{Concurrency: 1, PublishFn: publish})
	s.RemovePackage("core", false)

	result := s.Run(context.Background())

	assert.NotContains(t, seen, "core")
	assert.Contains(t, result.Cancelled, "core")
	assert.NotContains(t, result.Blocked, "dep")
}

func TestRemovePackage_WithBlockDependentsBlocksTransitiveDependents(t *testing.T) {
	deps := map[string][]string{
		"core": {},
		"mid":  {"core"},
		"leaf": {"mid"},
	}

	publish := func(ctx context.Context, pkg string) error {
		return nil
	}

	s := scheduler.New(deps, scheduler.Config{Concurrency: 2, PublishFn: publish})
	s.RemovePackage("core", true)

	result := s.Run(context.Background())

	assert.Contains(t, result.Cancelled, "core")
	assert.Equal(t, "core", result.Blocked["mid"])
	assert.Equal(t, "core", result.Blocked["leaf"])
}

type countingObserver struct {
	scheduler.NoopObserver
	mu      sync.Mutex
	retries int
}

func (o *countingObserver) OnRetry(pkg string, attempt int, err error) {
	o.mu.Lock()
	o.retries++
	o.mu.Unlock()
}

func (o *countingObserver) retryCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.retries
}
