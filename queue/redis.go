package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const (
	jobsKey     = "rail:search:jobs"
	consumerKey = "rail:search:consumer"

	// pendingTTL is a safety net: a crashed consumer must not leave a
	// cache key blocked forever.
	pendingTTL = 5 * time.Minute
	resultTTL  = 5 * time.Minute
	statusTTL  = 24 * time.Hour
)

// NewRedisBroker returns a Broker persisted in redis. Jobs, in-flight
// markers and results survive restarts of any single producer or
// consumer process.
func NewRedisBroker(client *redis.Client) *RedisBroker {
	return &RedisBroker{client: client}
}

// RedisBroker implements Broker on a shared redis instance so the API
// server and the batch worker observe one queue.
type RedisBroker struct {
	client *redis.Client
}

// Push marks the cache key pending and appends the job to the shared
// work list. A key that is already pending collapses onto the physical
// job in flight.
func (b *RedisBroker) Push(ctx context.Context, job Job) (bool, error) {
	acquired, err := b.client.SetNX(ctx, pendingKey(job.CacheKey), job.ID, pendingTTL).Result()
	if err != nil {
		return false, errors.Wrap(err, "failed to mark job pending")
	}
	if !acquired {
		return false, nil
	}

	if err := b.client.Del(ctx, resultKey(job.CacheKey)).Err(); err != nil {
		log.Errorf("redis queue: failed to clear stale result for %s: %s", job.CacheKey, err)
	}

	data, err := json.Marshal(job)
	if err != nil {
		b.release(ctx, job.CacheKey)
		return false, errors.Wrap(err, "failed to encode job")
	}
	if err := b.client.LPush(ctx, jobsKey, data).Err(); err != nil {
		b.release(ctx, job.CacheKey)
		return false, errors.Wrap(err, "failed to push job")
	}

	if err := b.SetState(ctx, job.ID, StateQueued); err != nil {
		log.Errorf("redis queue: failed to record queued state for %s: %s", job.ID, err)
	}
	return true, nil
}

// Pop blocks for one poll round on the shared work list.
func (b *RedisBroker) Pop(ctx context.Context) (Job, error) {
	res, err := b.client.BRPop(ctx, popPollInterval, jobsKey).Result()
	if err == redis.Nil {
		return Job{}, ErrNoJob
	}
	if err != nil {
		if ctx.Err() != nil {
			return Job{}, ctx.Err()
		}
		return Job{}, errors.Wrap(err, "failed to pop job")
	}

	var job Job
	if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
		return Job{}, errors.Wrap(err, "failed to decode job")
	}
	return job, nil
}

// SetState records a job lifecycle transition in a status hash.
func (b *RedisBroker) SetState(ctx context.Context, jobID string, state State) error {
	key := statusKey(jobID)
	fields := map[string]any{
		"state":      string(state),
		"updated_at": time.Now().UTC().Format(time.RFC3339),
	}
	if err := b.client.HSet(ctx, key, fields).Err(); err != nil {
		return errors.Wrap(err, "failed to write job status")
	}
	if err := b.client.Expire(ctx, key, statusTTL).Err(); err != nil {
		return errors.Wrap(err, "failed to expire job status")
	}
	return nil
}

// Publish stores the result, notifies subscribers and frees the key.
func (b *RedisBroker) Publish(ctx context.Context, cacheKey string, res Result) error {
	data, err := json.Marshal(res)
	if err != nil {
		return errors.Wrap(err, "failed to encode result")
	}

	pipe := b.client.Pipeline()
	pipe.Set(ctx, resultKey(cacheKey), data, resultTTL)
	pipe.Del(ctx, pendingKey(cacheKey))
	pipe.Publish(ctx, doneChannel(cacheKey), data)
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrap(err, "failed to publish result")
	}
	return nil
}

// Await subscribes to the completion channel for the key, then checks
// the result key so a completion between the two is not missed.
func (b *RedisBroker) Await(ctx context.Context, cacheKey string) (Result, error) {
	sub := b.client.Subscribe(ctx, doneChannel(cacheKey))
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		return Result{}, errors.Wrap(err, "failed to subscribe for job result")
	}

	if data, err := b.client.Get(ctx, resultKey(cacheKey)).Result(); err == nil {
		return decodeResult([]byte(data))
	}

	select {
	case msg := <-sub.Channel():
		return decodeResult([]byte(msg.Payload))
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Lease claims the single consumer slot, or renews it when this id
// already holds it.
func (b *RedisBroker) Lease(ctx context.Context, id string, ttl time.Duration) (bool, error) {
	acquired, err := b.client.SetNX(ctx, consumerKey, id, ttl).Result()
	if err != nil {
		return false, errors.Wrap(err, "failed to acquire consumer lease")
	}
	if acquired {
		return true, nil
	}

	holder, err := b.client.Get(ctx, consumerKey).Result()
	if err != nil {
		return false, errors.Wrap(err, "failed to read consumer lease")
	}
	if holder != id {
		return false, nil
	}
	if err := b.client.Expire(ctx, consumerKey, ttl).Err(); err != nil {
		return false, errors.Wrap(err, "failed to renew consumer lease")
	}
	return true, nil
}

func (b *RedisBroker) release(ctx context.Context, cacheKey string) {
	if err := b.client.Del(ctx, pendingKey(cacheKey)).Err(); err != nil {
		log.Errorf("redis queue: failed to release pending marker %s: %s", cacheKey, err)
	}
}

func decodeResult(data []byte) (Result, error) {
	var res Result
	if err := json.Unmarshal(data, &res); err != nil {
		return Result{}, errors.Wrap(err, "failed to decode result")
	}
	return res, nil
}

func pendingKey(cacheKey string) string {
	return "rail:search:pending:" + cacheKey
}

func resultKey(cacheKey string) string {
	return "rail:search:result:" + cacheKey
}

func doneChannel(cacheKey string) string {
	return "rail:search:done:" + cacheKey
}

func statusKey(jobID string) string {
	return "rail:search:job:" + jobID + ":status"
}
