package queue_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/slava9999-dev/arbarea-backend/internal/queue"
)

func setup(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestEnqueueAndWorkOnce(t *testing.T) {
	t.Parallel()

	client := setup(t)
	enq := queue.Enqueuer{R: client, Prefix: "test"}
	require.NoError(t, enq.Enqueue(context.Background(), queue.Task{
		Kind:    "notify-telegram",
		Payload: []byte(`{"orderId":"ORDER-1"}`),
	}))

	var got []byte
	w := queue.Worker{
		R:      client,
		Prefix: "test",
		Kind:   "notify-telegram",
		Handler: func(_ context.Context, task queue.Task) error {
			got = task.Payload
			return nil
		},
	}
	processed, err := w.WorkOnce(context.Background())
	require.NoError(t, err)
	require.True(t, processed)
	require.JSONEq(t, `{"orderId":"ORDER-1"}`, string(got))

	processed, err = w.WorkOnce(context.Background())
	require.NoError(t, err)
	require.False(t, processed)
}

func TestEnqueueDeduplicatesByKey(t *testing.T) {
	t.Parallel()

	client := setup(t)
	enq := queue.Enqueuer{R: client, Prefix: "test", DedupTTL: time.Hour}
	task := queue.Task{Kind: "notify-telegram", Payload: []byte(`{}`), IdempotencyKey: "ORDER-42"}
	require.NoError(t, enq.Enqueue(context.Background(), task))
	require.NoError(t, enq.Enqueue(context.Background(), task))

	var handled int
	w := queue.Worker{
		R:      client,
		Prefix: "test",
		Kind:   "notify-telegram",
		Handler: func(context.Context, queue.Task) error {
			handled++
			return nil
		},
	}
	for {
		processed, err := w.WorkOnce(context.Background())
		require.NoError(t, err)
		if !processed {
			break
		}
	}
	require.Equal(t, 1, handled)
}

func TestFailedTaskIsRetriedThenDeadLettered(t *testing.T) {
	t.Parallel()

	client := setup(t)
	enq := queue.Enqueuer{R: client, Prefix: "test"}
	require.NoError(t, enq.Enqueue(context.Background(), queue.Task{
		Kind:        "notify-telegram",
		Payload:     []byte(`{}`),
		MaxAttempts: 2,
	}))

	var attempts int
	w := queue.Worker{
		R:         client,
		Prefix:    "test",
		Kind:      "notify-telegram",
		RetryBase: time.Millisecond,
		Handler: func(context.Context, queue.Task) error {
			attempts++
			return context.DeadlineExceeded
		},
	}

	deadline := time.Now().Add(2 * time.Second)
	for attempts < 2 && time.Now().Before(deadline) {
		_, err := w.WorkOnce(context.Background())
		require.NoError(t, err)
		time.Sleep(5 * time.Millisecond)
	}
	require.Equal(t, 2, attempts)

	dlq, err := client.LLen(context.Background(), "test:dlq:notify-telegram").Result()
	require.NoError(t, err)
	require.EqualValues(t, 1, dlq)
}

func TestInvalidKindRejected(t *testing.T) {
	t.Parallel()

	client := setup(t)
	enq := queue.Enqueuer{R: client}
	err := enq.Enqueue(context.Background(), queue.Task{Kind: "Bad Kind!"})
	require.Error(t, err)
}
