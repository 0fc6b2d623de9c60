package services

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/contexta-pipeline/internal/platform/logger"
)

func TestRunnerProcessesEveryJob(t *testing.T) {
	ctx := context.Background()
	r := NewRunner(4, logger.Nop())
	r.Start(ctx, 2)

	var done atomic.Int32
	for i := 0; i < 6; i++ {
		job := Job{Pipeline: "test", RunID: "r", Run: func(context.Context) error {
			done.Add(1)
			return nil
		}}
		require.NoError(t, r.Enqueue(ctx, job))
	}
	require.NoError(t, r.Enqueue(ctx, Job{Pipeline: "test", RunID: "boom", Run: func(context.Context) error {
		panic("bad job")
	}}))
	require.NoError(t, r.Enqueue(ctx, Job{Pipeline: "test", RunID: "last", Run: func(context.Context) error {
		done.Add(1)
		return nil
	}}))

	r.Close()
	assert.Equal(t, int32(7), done.Load())
	assert.ErrorIs(t, r.Enqueue(ctx, Job{}), ErrQueueClosed)
}

func TestRunnerEnqueueHonoursContext(t *testing.T) {
	r := NewRunner(1, nil)
	require.NoError(t, r.Enqueue(context.Background(), Job{Run: func(context.Context) error { return nil }}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, r.Enqueue(ctx, Job{}), context.Canceled)
}

func TestRunnerDrainsQueueAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := NewRunner(8, logger.Nop())

	release := make(chan struct{})
	var executed, sawCancel atomic.Int32
	require.NoError(t, r.Enqueue(context.Background(), Job{Pipeline: "test", RunID: "first", Run: func(context.Context) error {
		<-release
		executed.Add(1)
		return nil
	}}))
	for i := 0; i < 5; i++ {
		require.NoError(t, r.Enqueue(context.Background(), Job{Pipeline: "test", RunID: "queued", Run: func(ctx context.Context) error {
			executed.Add(1)
			if ctx.Err() != nil {
				sawCancel.Add(1)
			}
			return ctx.Err()
		}}))
	}

	r.Start(ctx, 1)
	cancel()
	close(release)
	r.Close()

	assert.Equal(t, int32(6), executed.Load())
	assert.Equal(t, int32(5), sawCancel.Load())
}

func TestRunnerCloseReleasesBlockedEnqueue(t *testing.T) {
	r := NewRunner(1, logger.Nop())
	require.NoError(t, r.Enqueue(context.Background(), Job{Run: func(context.Context) error { return nil }}))

	errCh := make(chan error, 1)
	go func() {
		errCh <- r.Enqueue(context.Background(), Job{Run: func(context.Context) error { return nil }})
	}()

	r.Close()
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrQueueClosed)
	case <-time.After(5 * time.Second):
		t.Fatal("Enqueue still blocked after Close")
	}
}
