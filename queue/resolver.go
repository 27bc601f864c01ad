package queue

import (
	"context"

	"github.com/refundmyrail/refundmyrail/cache"
	"github.com/refundmyrail/refundmyrail/hsp"
)

// Resolver answers upstream queries from the cache when possible and
// through the shared queue otherwise. It is the pipeline every caller,
// interactive or batch, goes through.
type Resolver struct {
	Store cache.Store
	Queue *Queue
}

// Resolve returns the raw response for a query and whether it was
// served from cache.
func (r *Resolver) Resolve(ctx context.Context, kind string, payload hsp.Payload) ([]byte, bool, error) {
	payload.Normalize()
	key := cache.Fingerprint(kind, payload)

	if val, err := r.Store.Get(ctx, key); err == nil {
		return []byte(val), true, nil
	}

	h, err := r.Queue.Enqueue(ctx, kind, payload)
	if err != nil {
		return nil, false, err
	}
	val, err := r.Queue.Await(ctx, h)
	return val, false, err
}
