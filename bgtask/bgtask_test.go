package bgtask

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestShutdownWaitsForTasks(t *testing.T) {
	tracker := NewTracker(NewWatch())
	var finished atomic.Bool
	ok := tracker.Spawn(func(stop <-chan struct{}) {
		<-stop
		time.Sleep(10 * time.Millisecond)
		finished.Store(true)
	})
	require.True(t, ok)
	tracker.Shutdown()
	require.True(t, finished.Load())
}

func TestSpawnAfterShutdownRefused(t *testing.T) {
	tracker := NewTracker(NewWatch())
	tracker.Shutdown()
	require.False(t, tracker.Spawn(func(<-chan struct{}) {}))
}

func TestPeriodicRunsAndStops(t *testing.T) {
	tracker := NewTracker(NewWatch())
	var runs atomic.Int32
	ok := tracker.Periodic(5*time.Millisecond, false, func() error {
		runs.Add(1)
		return nil
	})
	require.True(t, ok)
	require.Eventually(t, func() bool { return runs.Load() >= 2 }, time.Second, time.Millisecond)
	tracker.Shutdown()
}

func TestPeriodicActsOnShutdown(t *testing.T) {
	tracker := NewTracker(NewWatch())
	var finalRan atomic.Bool
	ok := tracker.Periodic(time.Hour, true, func() error {
		finalRan.Store(true)
		return nil
	})
	require.True(t, ok)
	tracker.Shutdown()
	require.True(t, finalRan.Load())
}

func TestWatchTripIsIdempotent(t *testing.T) {
	w := NewWatch()
	require.False(t, w.Tripped())
	w.Trip()
	w.Trip()
	require.True(t, w.Tripped())
}
