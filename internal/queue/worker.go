package queue

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/slava9999-dev/arbarea-backend/internal/resilience"
)

// Worker consumes tasks of a specific kind.
type Worker struct {
	R           *redis.Client
	Prefix      string
	Kind        string
	Handler     func(context.Context, Task) error
	RetryBase   time.Duration
	RetryJitter float64
	PollEvery   time.Duration
}

// Run processes tasks until the context is cancelled. Failed tasks are retried
// with exponential backoff; tasks exhausting their attempts move to a
// dead-letter list.
func (w Worker) Run(ctx context.Context) error {
	if w.R == nil {
		return errors.New("queue: worker redis client not configured")
	}
	if w.Handler == nil {
		return errors.New("queue: worker handler not configured")
	}
	kind := sanitizeKind(w.Kind)
	if kind == "" {
		return errors.New("queue: worker kind is required")
	}
	poll := w.PollEvery
	if poll <= 0 {
		poll = 100 * time.Millisecond
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		processed, err := w.WorkOnce(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}
		if !processed {
			timer := time.NewTimer(poll)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil
			case <-timer.C:
			}
		}
	}
}

// WorkOnce pops and processes at most one due task. It reports whether a task
// was handled, which lets tests drive the worker deterministically.
func (w Worker) WorkOnce(ctx context.Context) (bool, error) {
	kind := sanitizeKind(w.Kind)
	key := queueKey(w.Prefix, kind)

	res, err := w.R.ZPopMin(ctx, key, 1).Result()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return false, err
	}
	if len(res) == 0 {
		return false, nil
	}
	member, ok := res[0].Member.(string)
	if !ok {
		return false, nil
	}
	var msg taskMessage
	if err := json.Unmarshal([]byte(member), &msg); err != nil {
		// poison message, drop it
		return true, nil
	}
	if now := time.Now().UnixNano(); msg.AvailableAt > now {
		// not due yet, put it back
		if err := w.R.ZAdd(ctx, key, redis.Z{Score: float64(msg.AvailableAt), Member: member}).Err(); err != nil {
			return false, err
		}
		return false, nil
	}

	task := Task{Kind: msg.Kind, Payload: msg.Payload, IdempotencyKey: msg.Key, MaxAttempts: msg.MaxAttempts}
	if err := w.Handler(ctx, task); err != nil {
		return true, w.retry(ctx, key, msg)
	}
	return true, nil
}

func (w Worker) retry(ctx context.Context, key string, msg taskMessage) error {
	msg.Attempt++
	if msg.Attempt >= msg.MaxAttempts {
		raw, err := json.Marshal(msg)
		if err != nil {
			return err
		}
		return w.R.LPush(ctx, dlqKey(w.Prefix, sanitizeKind(w.Kind)), raw).Err()
	}
	base := w.RetryBase
	if base <= 0 {
		base = 200 * time.Millisecond
	}
	msg.AvailableAt = time.Now().Add(resilience.Backoff(base, msg.Attempt, w.RetryJitter)).UnixNano()
	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return w.R.ZAdd(ctx, key, redis.Z{Score: float64(msg.AvailableAt), Member: raw}).Err()
}
