package session_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/ports"
	"github.com/aretw0/tendril/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubDriver counts Quit calls and can be told to fail them.
type stubDriver struct {
	ports.Driver
	quitErr error
	quits   atomic.Int32
}

func (d *stubDriver) Quit(ctx context.Context) error {
	d.quits.Add(1)
	return d.quitErr
}

func TestRegistry_CreateConflict(t *testing.T) {
	reg := session.NewRegistry()

	require.NoError(t, reg.Create("run-1", &stubDriver{}))
	err := reg.Create("run-1", &stubDriver{})
	assert.ErrorIs(t, err, domain.ErrSessionConflict)
	assert.Contains(t, err.Error(), "SessionConflict")

	_, err = reg.Close(context.Background(), "run-1")
	require.NoError(t, err)
	assert.NoError(t, reg.Create("run-1", &stubDriver{}), "id is reusable after close")
}

func TestRegistry_GetMissing(t *testing.T) {
	reg := session.NewRegistry()

	_, err := reg.Get("nope")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	assert.Equal(t, session.StateUninitialized, reg.State("nope"))

	_, err = reg.Close(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestRegistry_CloseTeardownFailureDoesNotLeak(t *testing.T) {
	reg := session.NewRegistry()
	drv := &stubDriver{quitErr: errors.New("appium gone")}
	require.NoError(t, reg.Create("run-1", drv))

	td, err := reg.Close(context.Background(), "run-1")
	require.NoError(t, err, "teardown failure must not propagate")
	assert.EqualError(t, td.Err, "appium gone")
	assert.Equal(t, int32(1), drv.quits.Load())
	assert.False(t, reg.Has("run-1"))
}

func TestRegistry_CloseAllAlwaysEmpties(t *testing.T) {
	var changes []int
	reg := session.NewRegistry(session.WithOnChange(func(n int) { changes = append(changes, n) }))

	ok1 := &stubDriver{}
	bad := &stubDriver{quitErr: errors.New("boom")}
	ok2 := &stubDriver{}
	require.NoError(t, reg.Create("a", ok1))
	require.NoError(t, reg.Create("b", bad))
	require.NoError(t, reg.Create("c", ok2))

	report := reg.CloseAll(context.Background())

	assert.Equal(t, 0, reg.Len())
	assert.Equal(t, []string{"a", "b", "c"}, report.Closed)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, "b", report.Failures[0].ID)
	assert.ErrorContains(t, report.Err(), "boom")
	for _, d := range []*stubDriver{ok1, bad, ok2} {
		assert.Equal(t, int32(1), d.quits.Load())
	}
	assert.Equal(t, 0, changes[len(changes)-1])
}

func TestRegistry_WithSerializesPerSession(t *testing.T) {
	reg := session.NewRegistry()
	require.NoError(t, reg.Create("s", &stubDriver{}))
	ctx := context.Background()

	var inFlight, maxInFlight atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := reg.With(ctx, "s", func(ctx context.Context, d ports.Driver) error {
				n := inFlight.Add(1)
				for {
					m := maxInFlight.Load()
					if n <= m || maxInFlight.CompareAndSwap(m, n) {
						break
					}
				}
				time.Sleep(2 * time.Millisecond)
				inFlight.Add(-1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInFlight.Load())
}

func TestRegistry_CloseWaitsForInFlight(t *testing.T) {
	reg := session.NewRegistry()
	drv := &stubDriver{}
	require.NoError(t, reg.Create("s", drv))
	ctx := context.Background()

	started := make(chan struct{})
	finish := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = reg.With(ctx, "s", func(ctx context.Context, d ports.Driver) error {
			close(started)
			<-finish
			return nil
		})
	}()
	<-started

	closed := make(chan struct{})
	go func() {
		_, _ = reg.Close(ctx, "s")
		close(closed)
	}()

	// While closing, the session is no longer addressable.
	require.Eventually(t, func() bool { return reg.State("s") == session.StateClosed }, time.Second, time.Millisecond)
	_, err := reg.Get("s")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	assert.Equal(t, int32(0), drv.quits.Load(), "quit must wait for the in-flight call")

	close(finish)
	<-done
	<-closed
	assert.Equal(t, int32(1), drv.quits.Load())
	assert.False(t, reg.Has("s"))
}

// spawningDriver registers another session from inside its own teardown.
type spawningDriver struct {
	stubDriver
	reg   *session.Registry
	child *stubDriver
}

func (d *spawningDriver) Quit(ctx context.Context) error {
	d.quits.Add(1)
	return d.reg.Create("late", d.child)
}

func TestRegistry_CloseAllTearsDownSessionsCreatedMidway(t *testing.T) {
	reg := session.NewRegistry()
	late := &stubDriver{quitErr: errors.New("late failure")}
	first := &spawningDriver{reg: reg, child: late}
	require.NoError(t, reg.Create("a", first))

	report := reg.CloseAll(context.Background())

	assert.Equal(t, 0, reg.Len())
	assert.Equal(t, []string{"a", "late"}, report.Closed)
	assert.Equal(t, int32(1), first.quits.Load())
	assert.Equal(t, int32(1), late.quits.Load(), "late session must be quit, not just dropped")
	require.Len(t, report.Failures, 1)
	assert.Equal(t, "late", report.Failures[0].ID)
}
