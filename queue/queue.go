package queue

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/refundmyrail/refundmyrail/cache"
	"github.com/refundmyrail/refundmyrail/hsp"
)

const defaultAwaitTimeout = 30 * time.Second

// New returns the producer side of the shared work queue. awaitTimeout
// bounds every Await; zero selects the default of 30s.
func New(broker Broker, awaitTimeout time.Duration) *Queue {
	if awaitTimeout == 0 {
		awaitTimeout = defaultAwaitTimeout
	}
	return &Queue{
		broker:       broker,
		awaitTimeout: awaitTimeout,
	}
}

// Queue is the producer interface used by both the interactive server
// and the batch worker. Neither owns it; it is shared process-wide.
type Queue struct {
	broker       Broker
	awaitTimeout time.Duration
}

// Enqueue fingerprints the request and queues a job for it. When a job
// for the same cache key is already pending the new one collapses onto
// it and the returned handle awaits the shared result.
func (q *Queue) Enqueue(ctx context.Context, kind string, payload hsp.Payload) (Handle, error) {
	payload.Normalize()
	key := cache.Fingerprint(kind, payload)

	job := Job{
		ID:       uuid.NewString(),
		Kind:     kind,
		Payload:  payload,
		CacheKey: key,
	}
	queued, err := q.broker.Push(ctx, job)
	if err != nil {
		return Handle{}, errors.Wrap(err, "failed to enqueue job")
	}
	if !queued {
		log.Debugf("queue: request %s collapsed onto pending fetch", key)
	}

	return Handle{JobID: job.ID, CacheKey: key}, nil
}

// Await blocks until the job behind the handle completes, or ErrTimeout
// after the queue's deadline. A timeout abandons the wait only; the
// underlying fetch still finishes and populates the cache for future
// callers.
func (q *Queue) Await(ctx context.Context, h Handle) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, q.awaitTimeout)
	defer cancel()

	res, err := q.broker.Await(ctx, h.CacheKey)
	if err != nil {
		if errors.Cause(err) == context.DeadlineExceeded {
			return nil, ErrTimeout
		}
		return nil, errors.Wrap(err, "failed to await job result")
	}
	if err := res.Err(); err != nil {
		return nil, err
	}
	return res.Value, nil
}
