package media_test

import (
	"context"
	"errors"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dylan0165/EUsuite-Platform-sub002/internal/media"
	"github.com/Dylan0165/EUsuite-Platform-sub002/internal/media/memory"
)

func TestPoolRoundRobin(t *testing.T) {
	pool, err := media.NewPool(context.Background(), memory.New(), 3, nil)
	require.NoError(t, err)
	defer pool.Close()
	require.Equal(t, 3, pool.Size())

	first := []media.Worker{pool.Next(), pool.Next(), pool.Next()}
	assert.NotEqual(t, first[0], first[1])
	assert.NotEqual(t, first[1], first[2])
	assert.NotEqual(t, first[0], first[2])

	// Strict wraparound: the fourth pick is the first worker again.
	for i := 0; i < 3; i++ {
		assert.Equal(t, first[i], pool.Next(), "wrap index %d", i)
	}
}

func TestPoolDefaultSize(t *testing.T) {
	pool, err := media.NewPool(context.Background(), memory.New(), 0, nil)
	require.NoError(t, err)
	defer pool.Close()
	assert.Equal(t, runtime.NumCPU(), pool.Size())
}

type failingEngine struct{}

func (failingEngine) CreateWorker(ctx context.Context) (media.Worker, error) {
	return nil, errors.New("no engine process")
}

func TestPoolCreateFailure(t *testing.T) {
	_, err := media.NewPool(context.Background(), failingEngine{}, 2, nil)
	assert.Error(t, err)
}

func TestPoolWorkerFaultIsReported(t *testing.T) {
	fatal := make(chan error, 1)
	pool, err := media.NewPool(context.Background(), memory.New(), 1, func(err error) {
		fatal <- err
	})
	require.NoError(t, err)

	w, ok := pool.Next().(*memory.Worker)
	require.True(t, ok)
	w.Fail(errors.New("segfault"))

	select {
	case err := <-fatal:
		assert.EqualError(t, err, "segfault")
	case <-time.After(time.Second):
		t.Fatal("worker fault not reported")
	}
}

func TestPoolCloseDoesNotReportFault(t *testing.T) {
	fatal := make(chan error, 1)
	pool, err := media.NewPool(context.Background(), memory.New(), 1, func(err error) {
		fatal <- err
	})
	require.NoError(t, err)

	pool.Close()
	select {
	case err := <-fatal:
		t.Fatalf("unexpected fatal callback: %v", err)
	case <-time.After(50 * time.Millisecond):
	}
}
