package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueProcessesJobs(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	done := make(chan struct{}, 2)

	q := NewQueue("test", func(_ context.Context, job Job) error {
		mu.Lock()
		seen = append(seen, job.ID)
		mu.Unlock()
		done <- struct{}{}
		return nil
	}, QueueConfig{Workers: 2, BufferSize: 4})
	q.Start()
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "a", Type: "noop"}))
	require.NoError(t, q.Enqueue(Job{ID: "b", Type: "noop"}))

	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("job was not processed")
		}
	}
	mu.Lock()
	defer mu.Unlock()
	assert.ElementsMatch(t, []string{"a", "b"}, seen)
}

func TestQueueRetriesFailedJobs(t *testing.T) {
	var mu sync.Mutex
	attempts := 0
	done := make(chan struct{})

	q := NewQueue("test", func(_ context.Context, _ Job) error {
		mu.Lock()
		attempts++
		current := attempts
		mu.Unlock()
		if current < 3 {
			return errors.New("transient")
		}
		close(done)
		return nil
	}, QueueConfig{Workers: 1, BufferSize: 4, MaxRetries: 3, RetryDelay: time.Millisecond})
	q.Start()
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "flaky", Type: "noop"}))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("job was not retried to success")
	}
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 3, attempts)
}

func TestQueueStopWithConcurrentEnqueues(t *testing.T) {
	q := NewQueue("test", func(_ context.Context, _ Job) error { return nil }, QueueConfig{Workers: 2, BufferSize: 8})
	q.Start()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				// Must either succeed or report a full/stopped queue,
				// never panic on the queue channel.
				_ = q.Enqueue(Job{ID: "racer", Type: "noop"})
			}
		}()
	}
	q.Stop()
	wg.Wait()

	err := q.Enqueue(Job{ID: "late"})
	assert.Error(t, err)
}

func TestQueueEnqueueBeforeStart(t *testing.T) {
	q := NewQueue("test", func(_ context.Context, _ Job) error { return nil }, QueueConfig{})
	err := q.Enqueue(Job{ID: "early"})
	assert.Error(t, err)
}
