package queue

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
)

const memoryQueueSize = 1024

// NewMemoryBroker returns a Broker held entirely in process memory.
func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{
		jobs:    make(chan Job, memoryQueueSize),
		pending: make(map[string]bool),
		results: make(map[string]Result),
		waiters: make(map[string]chan struct{}),
		states:  make(map[string]State),
	}
}

// MemoryBroker implements Broker for a single process. Anything queued
// is lost on restart; deployments with a cache service should use the
// redis broker instead.
type MemoryBroker struct {
	jobs chan Job

	m       sync.Mutex
	pending map[string]bool
	results map[string]Result
	waiters map[string]chan struct{}
	states  map[string]State
}

// Push queues the job unless its cache key is already pending.
func (b *MemoryBroker) Push(ctx context.Context, job Job) (bool, error) {
	b.m.Lock()
	if b.pending[job.CacheKey] {
		b.m.Unlock()
		return false, nil
	}
	b.pending[job.CacheKey] = true
	// a fresh fetch supersedes any result left over from an earlier one
	delete(b.results, job.CacheKey)
	b.states[job.ID] = StateQueued
	b.m.Unlock()

	select {
	case b.jobs <- job:
		return true, nil
	default:
		b.m.Lock()
		delete(b.pending, job.CacheKey)
		b.m.Unlock()
		return false, errors.New("job queue is full")
	}
}

// Pop returns the next queued job, or ErrNoJob after one poll round.
func (b *MemoryBroker) Pop(ctx context.Context) (Job, error) {
	timer := time.NewTimer(popPollInterval)
	defer timer.Stop()

	select {
	case job := <-b.jobs:
		return job, nil
	case <-ctx.Done():
		return Job{}, ctx.Err()
	case <-timer.C:
		return Job{}, ErrNoJob
	}
}

// SetState records a job lifecycle transition.
func (b *MemoryBroker) SetState(ctx context.Context, jobID string, state State) error {
	b.m.Lock()
	defer b.m.Unlock()
	b.states[jobID] = state
	return nil
}

// JobState returns the last recorded state for a job id.
func (b *MemoryBroker) JobState(jobID string) (State, bool) {
	b.m.Lock()
	defer b.m.Unlock()
	state, ok := b.states[jobID]
	return state, ok
}

// Publish stores the result, releases the pending marker and wakes all
// waiters on the cache key.
func (b *MemoryBroker) Publish(ctx context.Context, cacheKey string, res Result) error {
	b.m.Lock()
	defer b.m.Unlock()

	b.results[cacheKey] = res
	delete(b.pending, cacheKey)
	if ch, ok := b.waiters[cacheKey]; ok {
		close(ch)
		delete(b.waiters, cacheKey)
	}
	return nil
}

// Await blocks until a result for the cache key exists or ctx is done.
func (b *MemoryBroker) Await(ctx context.Context, cacheKey string) (Result, error) {
	b.m.Lock()
	if res, ok := b.results[cacheKey]; ok {
		b.m.Unlock()
		return res, nil
	}
	ch, ok := b.waiters[cacheKey]
	if !ok {
		ch = make(chan struct{})
		b.waiters[cacheKey] = ch
	}
	b.m.Unlock()

	select {
	case <-ch:
		b.m.Lock()
		res := b.results[cacheKey]
		b.m.Unlock()
		return res, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Lease always succeeds: with one process there is exactly one consumer.
func (b *MemoryBroker) Lease(ctx context.Context, id string, ttl time.Duration) (bool, error) {
	return true, nil
}
