// SPDX-License-Identifier: Apache-2.0

package runtime

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/jllopis/kairos-bdi/pkg/bdi"
	"github.com/jllopis/kairos-bdi/pkg/config"
	"github.com/jllopis/kairos-bdi/pkg/core"
	"github.com/jllopis/kairos-bdi/pkg/errors"
	bditest "github.com/jllopis/kairos-bdi/pkg/testing"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var quiet = slog.New(slog.DiscardHandler)

func newBridge(t *testing.T, name string) (*bdi.Bridge, *bditest.RecordingEngine, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), name+".yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: "+name+"\n"), 0o600))
	eng := bditest.NewRecordingEngine()
	b, err := bdi.New(name, bditest.NewScriptedMailbox(), eng.Builder(),
		bdi.WithProgram(path), bdi.WithIdleDelay(time.Millisecond), bdi.WithLogger(quiet))
	require.NoError(t, err)
	require.NoError(t, b.Setup(context.Background()))
	return b, eng, path
}

func TestRuntimeRunsUntilCanceled(t *testing.T) {
	b, eng, _ := newBridge(t, "alice")
	events := &core.RecordingEmitter{}
	rt := New(WithLogger(quiet), WithEventEmitter(events), WithMaxCyclesPerSecond(500))
	require.NoError(t, rt.Spawn(b))

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, rt.Start(ctx))
	require.Eventually(t, func() bool { return eng.Steps() >= 3 }, time.Second, time.Millisecond)

	status, ok := rt.Status("alice")
	require.True(t, ok)
	assert.Equal(t, StateRunning, status.State)
	assert.True(t, status.Enabled)

	cancel()
	require.NoError(t, rt.Wait())

	status, _ = rt.Status("alice")
	assert.Equal(t, StateStopped, status.State)
	assert.Positive(t, status.Cycles)
	stopped := events.Events(core.EventAgentStopped)
	require.Len(t, stopped, 1)
	assert.Equal(t, "alice", stopped[0].Agent)
	assert.NotEmpty(t, stopped[0].RunID)
}

func TestFailingAgentStopsAlone(t *testing.T) {
	broken, brokenEng, _ := newBridge(t, "broken")
	brokenEng.FailSteps(os.ErrInvalid)
	healthy, healthyEng, _ := newBridge(t, "healthy")

	rt := New(WithLogger(quiet))
	require.NoError(t, rt.Spawn(broken))
	require.NoError(t, rt.Spawn(healthy))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, rt.Start(ctx))

	require.Eventually(t, func() bool {
		status, _ := rt.Status("broken")
		return status.State == StateFailed
	}, time.Second, time.Millisecond)

	before := healthyEng.Steps()
	require.Eventually(t, func() bool { return healthyEng.Steps() > before }, time.Second, time.Millisecond)
	status, _ := rt.Status("healthy")
	assert.Equal(t, StateRunning, status.State)

	cancel()
	err := rt.Wait()
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrEngine))

	status, _ = rt.Status("broken")
	assert.Contains(t, status.Error, "engine step failed")
}

func TestCyclesAreRateLimited(t *testing.T) {
	b, _, _ := newBridge(t, "alice")
	rt := New(WithLogger(quiet), WithMaxCyclesPerSecond(20))
	require.NoError(t, rt.Spawn(b))

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	require.NoError(t, rt.Start(ctx))
	require.NoError(t, rt.Wait())

	status, _ := rt.Status("alice")
	assert.Positive(t, status.Cycles)
	assert.LessOrEqual(t, status.Cycles, int64(10))
}

func TestSpawnValidation(t *testing.T) {
	a, _, _ := newBridge(t, "alice")
	rt := New(WithLogger(quiet))

	assert.True(t, errors.Is(rt.Spawn(nil), errors.ErrInvalidInput))
	require.NoError(t, rt.Spawn(a))
	assert.True(t, errors.Is(rt.Spawn(a), errors.ErrInvalidInput), "duplicate")

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, rt.Start(ctx))
	b, _, _ := newBridge(t, "bob")
	assert.True(t, errors.Is(rt.Spawn(b), errors.ErrInvalidInput), "after start")
	assert.True(t, errors.Is(rt.Start(ctx), errors.ErrInvalidInput), "second start")
	cancel()
	require.NoError(t, rt.Wait())

	got, ok := rt.Bridge("alice")
	assert.True(t, ok)
	assert.Same(t, a, got)
	_, ok = rt.Bridge("bob")
	assert.False(t, ok)
	assert.Equal(t, []string{"alice"}, rt.Names())
}

func TestRegisterHealth(t *testing.T) {
	a, _, _ := newBridge(t, "alice")
	b, _, _ := newBridge(t, "bob")
	b.Pause(context.Background())

	rt := New(WithLogger(quiet))
	require.NoError(t, rt.Spawn(a))
	require.NoError(t, rt.Spawn(b))
	reg := core.NewHealthRegistry()
	rt.RegisterHealth(reg)

	results, overall := reg.CheckAll(context.Background())
	assert.Len(t, results, 2)
	assert.Equal(t, core.HealthDegraded, overall)
	assert.Len(t, rt.Statuses(), 2)
}

func TestReloaderRebuildsOnChange(t *testing.T) {
	b, eng, path := newBridge(t, "alice")
	require.Equal(t, 1, eng.Builds())

	watcher, err := config.NewSourceWatcher(config.WithDebounce(10*time.Millisecond), config.WithWatchLogger(quiet))
	require.NoError(t, err)
	t.Cleanup(watcher.Stop)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reloader := NewReloader(watcher, quiet)
	require.NoError(t, reloader.Track(ctx, b))
	watcher.Start(ctx)

	require.NoError(t, os.WriteFile(path, []byte("name: alice\n# v2\n"), 0o600))
	require.Eventually(t, func() bool { return eng.Builds() >= 2 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, "name: alice\n# v2\n", eng.Source())
	assert.True(t, b.Enabled())
}

func TestReloaderNeedsProgram(t *testing.T) {
	eng := bditest.NewRecordingEngine()
	b, err := bdi.New("alice", bditest.NewScriptedMailbox(), eng.Builder(), bdi.WithLogger(quiet))
	require.NoError(t, err)

	watcher, err := config.NewSourceWatcher()
	require.NoError(t, err)
	defer watcher.Stop()

	err = NewReloader(watcher, nil).Track(context.Background(), b)
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))
}
