package queue

import (
	"context"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/refundmyrail/refundmyrail/cache"
	"github.com/refundmyrail/refundmyrail/hsp"
)

const (
	defaultPause = 1500 * time.Millisecond
	leaseTTL     = 30 * time.Second
	leaseBackoff = 5 * time.Second
)

// Fetcher performs the physical upstream call for a job. Satisfied by
// *hsp.Client.
type Fetcher interface {
	Fetch(ctx context.Context, kind string, payload hsp.Payload) ([]byte, error)
}

// NewConsumer returns the single dispatch loop for the shared queue.
// pause is the fixed delay inserted after every upstream call; zero
// selects the default of 1.5s.
func NewConsumer(broker Broker, fetcher Fetcher, store cache.Store, pause time.Duration) *Consumer {
	if pause == 0 {
		pause = defaultPause
	}
	return &Consumer{
		id:      uuid.NewString(),
		broker:  broker,
		fetcher: fetcher,
		store:   store,
		pause:   pause,
		now:     time.Now,
	}
}

// Consumer drains the queue one job at a time. It is the only
// production caller of the upstream client, which makes it the global
// rate limit boundary; no other component may fetch directly.
type Consumer struct {
	id      string
	broker  Broker
	fetcher Fetcher
	store   cache.Store
	pause   time.Duration
	now     func() time.Time
}

// Run processes jobs until the context is canceled. Only one consumer
// is active per queue; a second instance idles until the lease frees.
func (c *Consumer) Run(ctx context.Context) {
	log.Infof("queue consumer %s: running", c.id)
	for {
		if ctx.Err() != nil {
			log.Infof("queue consumer %s: stopping", c.id)
			return
		}

		leased, err := c.broker.Lease(ctx, c.id, leaseTTL)
		if err != nil {
			log.Errorf("queue consumer: lease check failed: %s", err)
			c.sleep(ctx, leaseBackoff)
			continue
		}
		if !leased {
			c.sleep(ctx, leaseBackoff)
			continue
		}

		job, err := c.broker.Pop(ctx)
		if err != nil {
			if err == ErrNoJob || ctx.Err() != nil {
				continue
			}
			log.Errorf("queue consumer: pop failed: %s", err)
			c.sleep(ctx, leaseBackoff)
			continue
		}
		c.process(ctx, job)
	}
}

func (c *Consumer) process(ctx context.Context, job Job) {
	// another job for this key may have completed and cached while this
	// one sat in the queue
	if val, err := c.store.Get(ctx, job.CacheKey); err == nil {
		log.Debugf("queue consumer: job %s resolved from cache", job.ID)
		c.finish(ctx, job, StateCompleted, Result{Value: []byte(val)})
		return
	}

	c.setState(ctx, job.ID, StateRunning)
	raw, err := c.fetcher.Fetch(ctx, job.Kind, job.Payload)
	if err != nil {
		log.Errorf("queue consumer: job %s failed: %s", job.ID, err)
		res := Result{Failed: true}
		if uerr, ok := hsp.IsUpstream(err); ok {
			res.ErrStatus = uerr.Status
			res.ErrBody = uerr.Body
		} else {
			res.ErrBody = err.Error()
		}
		c.finish(ctx, job, StateFailed, res)
		c.sleep(ctx, c.pause)
		return
	}

	if shouldCache(job.Payload, c.now()) {
		if err := c.store.Set(ctx, job.CacheKey, string(raw), 0); err != nil {
			log.Errorf("queue consumer: cache write failed for %s: %s", job.CacheKey, err)
		}
	}
	c.finish(ctx, job, StateCompleted, Result{Value: raw})
	c.sleep(ctx, c.pause)
}

func (c *Consumer) finish(ctx context.Context, job Job, state State, res Result) {
	c.setState(ctx, job.ID, state)
	if err := c.broker.Publish(ctx, job.CacheKey, res); err != nil {
		log.Errorf("queue consumer: failed to publish result for %s: %s", job.CacheKey, err)
	}
}

func (c *Consumer) setState(ctx context.Context, jobID string, state State) {
	if err := c.broker.SetState(ctx, jobID, state); err != nil {
		log.Errorf("queue consumer: failed to record state %s for %s: %s", state, jobID, err)
	}
}

func (c *Consumer) sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// shouldCache reports whether a response may be stored. Responses for
// today or future dates can still change upstream and are never cached;
// detail lookups carry no date range and refer to runs that already
// happened.
func shouldCache(p hsp.Payload, now time.Time) bool {
	from, hasFrom := p["from_date"]
	to, hasTo := p["to_date"]
	if !hasFrom && !hasTo {
		return true
	}
	last := to
	if !hasTo {
		last = from
	}
	return last < now.Format("2006-01-02")
}
