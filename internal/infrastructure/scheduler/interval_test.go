package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntervalSchedulerRunsImmediatelyAndRepeats(t *testing.T) {
	t.Parallel()

	var runs atomic.Int32
	s := NewIntervalScheduler(10 * time.Millisecond)
	require.NoError(t, s.Start(context.Background(), func(time.Time) { runs.Add(1) }))

	assert.Eventually(t, func() bool { return runs.Load() >= 3 }, time.Second, 5*time.Millisecond)
	require.NoError(t, s.Stop(context.Background()))

	after := runs.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, runs.Load())
}

func TestIntervalSchedulerStartIsIdempotent(t *testing.T) {
	t.Parallel()

	var runs atomic.Int32
	s := NewIntervalScheduler(time.Hour)
	job := func(time.Time) { runs.Add(1) }

	require.NoError(t, s.Start(context.Background(), job))
	require.NoError(t, s.Start(context.Background(), job))

	assert.Eventually(t, func() bool { return runs.Load() == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, s.Stop(context.Background()))
	require.NoError(t, s.Stop(context.Background()))
	assert.Equal(t, int32(1), runs.Load())
}

func TestIntervalSchedulerStopsWithContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	s := NewIntervalScheduler(time.Hour)
	require.NoError(t, s.Start(ctx, func(time.Time) {}))

	done := s.finished()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("loop did not exit after cancellation")
	}
}

func TestIntervalSchedulerRejectsNonPositiveInterval(t *testing.T) {
	t.Parallel()

	err := NewIntervalScheduler(0).Start(context.Background(), func(time.Time) {})
	assert.Error(t, err)
}
