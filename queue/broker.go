package queue

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// popPollInterval bounds one blocking Pop round so the consumer can
// renew its lease between polls.
const popPollInterval = 5 * time.Second

var (
	// ErrTimeout represents an awaited job exceeding its deadline
	ErrTimeout = errors.New("timed out waiting for job result")
	// ErrNoJob represents an empty queue after one blocking poll round
	ErrNoJob = errors.New("no job available")
)

// Broker persists queued jobs and fans results out to waiters. The
// redis implementation outlives process restarts, which is what lets
// the API server and the batch worker share one queue and one rate
// limit. The memory implementation serves single-process deployments
// and tests.
type Broker interface {
	// Push appends a job unless a physical job for its cache key is
	// already pending. It reports whether this job was actually queued
	// or collapsed onto the pending one.
	Push(ctx context.Context, job Job) (bool, error)

	// Pop blocks for at most one poll round and returns the next job,
	// or ErrNoJob so the caller can re-assert its consumer lease.
	Pop(ctx context.Context) (Job, error)

	// SetState records a job lifecycle transition.
	SetState(ctx context.Context, jobID string, state State) error

	// Publish stores the result for a cache key, wakes every waiter and
	// clears the pending marker so the key can be fetched again later.
	Publish(ctx context.Context, cacheKey string, res Result) error

	// Await blocks until a result for the cache key is published or the
	// context is done.
	Await(ctx context.Context, cacheKey string) (Result, error)

	// Lease claims or renews the single active consumer slot for ttl.
	// Only the holder may Pop.
	Lease(ctx context.Context, id string, ttl time.Duration) (bool, error)
}
