package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
)

var (
	// ErrCacheMiss represents a request that is not cached
	ErrCacheMiss = errors.New("entry is not cached")
)

// Store is a key/value cache with optional expiry. Both backends behave
// identically for callers: get-after-set returns the stored value, an
// absent key returns ErrCacheMiss, and a ttl of zero stores forever.
//
// A backend read failure is reported as ErrCacheMiss so that callers
// degrade to an upstream fetch. Write failures are returned for logging
// but must never be treated as fatal, caching is an optimization only.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// Tag marks a response body as served from cache. The flag exists only
// on the read path and is never stored.
func Tag(raw []byte) []byte {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return raw
	}
	obj["_fromCache"] = json.RawMessage("true")
	tagged, err := json.Marshal(obj)
	if err != nil {
		return raw
	}
	return tagged
}
