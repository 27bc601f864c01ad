package queue

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/refundmyrail/refundmyrail/cache"
	"github.com/refundmyrail/refundmyrail/hsp"
)

// memStore is a minimal in-memory cache.Store for queue tests.
type memStore struct {
	m    sync.Mutex
	data map[string]string
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string]string)}
}

func (s *memStore) Get(ctx context.Context, key string) (string, error) {
	s.m.Lock()
	defer s.m.Unlock()
	val, ok := s.data[key]
	if !ok {
		return "", cache.ErrCacheMiss
	}
	return val, nil
}

func (s *memStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	s.m.Lock()
	defer s.m.Unlock()
	s.data[key] = value
	return nil
}

// stubFetcher counts physical upstream calls and records their times.
type stubFetcher struct {
	m     sync.Mutex
	calls int32
	times []time.Time
	delay time.Duration
	resp  []byte
	err   error
}

func (f *stubFetcher) Fetch(ctx context.Context, kind string, payload hsp.Payload) ([]byte, error) {
	atomic.AddInt32(&f.calls, 1)
	f.m.Lock()
	f.times = append(f.times, time.Now())
	f.m.Unlock()
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return f.resp, f.err
}

func startConsumer(t *testing.T, broker Broker, fetcher Fetcher, store cache.Store, pause time.Duration) {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	c := NewConsumer(broker, fetcher, store, pause)
	go c.Run(ctx)
}

// pastPayload queries a date range that is safely in the past, so the
// consumer is allowed to cache the response.
func pastPayload() hsp.Payload {
	return hsp.Payload{
		"from_loc":  "DID",
		"to_loc":    "PAD",
		"from_date": "2020-01-06",
		"to_date":   "2020-01-06",
	}
}

func TestSingleFlight(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	broker := NewMemoryBroker()
	fetcher := &stubFetcher{resp: []byte(`{"Services":[]}`), delay: 50 * time.Millisecond}
	startConsumer(t, broker, fetcher, newMemStore(), time.Millisecond)

	q := New(broker, 5*time.Second)

	// every logical caller enqueues the same request before the fetch
	// completes; all must share one physical upstream call
	const waiters = 8
	handles := make([]Handle, waiters)
	for i := range handles {
		h, err := q.Enqueue(ctx, hsp.KindMetrics, pastPayload())
		require.NoError(t, err)
		handles[i] = h
	}

	var wg sync.WaitGroup
	results := make([][]byte, waiters)
	for i := range handles {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			val, err := q.Await(ctx, handles[i])
			assert.NoError(err)
			results[i] = val
		}(i)
	}
	wg.Wait()

	assert.Equal(int32(1), atomic.LoadInt32(&fetcher.calls))
	for _, val := range results {
		assert.Equal(`{"Services":[]}`, string(val))
	}
}

func TestRateLimitSpacing(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	const pause = 40 * time.Millisecond
	broker := NewMemoryBroker()
	fetcher := &stubFetcher{resp: []byte(`{}`)}
	startConsumer(t, broker, fetcher, newMemStore(), pause)

	q := New(broker, 5*time.Second)

	for _, rid := range []string{"a", "b", "c"} {
		h, err := q.Enqueue(ctx, hsp.KindDetails, hsp.Payload{"rid": rid})
		require.NoError(t, err)
		_, err = q.Await(ctx, h)
		require.NoError(t, err)
	}

	require.Len(t, fetcher.times, 3)
	for i := 1; i < len(fetcher.times); i++ {
		gap := fetcher.times[i].Sub(fetcher.times[i-1])
		assert.GreaterOrEqual(gap, pause, "dispatched calls must be separated by the configured pause")
	}
}

func TestAwaitTimeoutDoesNotCancelJob(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	broker := NewMemoryBroker()
	store := newMemStore()
	fetcher := &stubFetcher{resp: []byte(`{"done":true}`), delay: 100 * time.Millisecond}
	startConsumer(t, broker, fetcher, store, time.Millisecond)

	q := New(broker, 20*time.Millisecond)
	h, err := q.Enqueue(ctx, hsp.KindMetrics, pastPayload())
	require.NoError(t, err)

	_, err = q.Await(ctx, h)
	assert.Equal(ErrTimeout, err)

	// the fetch still completes and populates the cache for later callers
	assert.Eventually(func() bool {
		state, ok := broker.JobState(h.JobID)
		return ok && state == StateCompleted
	}, 2*time.Second, 10*time.Millisecond)

	val, err := store.Get(ctx, h.CacheKey)
	assert.NoError(err)
	assert.Equal(`{"done":true}`, val)
}

func TestFailedJobKeepsUpstreamError(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	broker := NewMemoryBroker()
	fetcher := &stubFetcher{err: &hsp.Error{Status: http.StatusBadRequest, Body: `{"error":"bad dates"}`}}
	startConsumer(t, broker, fetcher, newMemStore(), time.Millisecond)

	q := New(broker, 5*time.Second)
	h, err := q.Enqueue(ctx, hsp.KindMetrics, pastPayload())
	require.NoError(t, err)

	_, err = q.Await(ctx, h)
	uerr, ok := hsp.IsUpstream(err)
	assert.True(ok)
	assert.Equal(http.StatusBadRequest, uerr.Status)
	assert.Equal(`{"error":"bad dates"}`, uerr.Body)
}

func TestConsumerServesQueuedJobFromCache(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	broker := NewMemoryBroker()
	store := newMemStore()
	fetcher := &stubFetcher{resp: []byte(`{}`)}

	// the value lands in the cache while the job sits in the queue
	q := New(broker, 5*time.Second)
	h, err := q.Enqueue(ctx, hsp.KindMetrics, pastPayload())
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, h.CacheKey, `{"cached":true}`, 0))

	startConsumer(t, broker, fetcher, store, time.Millisecond)

	val, err := q.Await(ctx, h)
	assert.NoError(err)
	assert.Equal(`{"cached":true}`, string(val))
	assert.Equal(int32(0), atomic.LoadInt32(&fetcher.calls))
}

func TestShouldCache(t *testing.T) {
	assert := assert.New(t)
	now := time.Date(2025, 3, 12, 9, 0, 0, 0, time.UTC)

	assert.True(shouldCache(hsp.Payload{"from_date": "2025-03-10", "to_date": "2025-03-11"}, now))
	assert.False(shouldCache(hsp.Payload{"from_date": "2025-03-12", "to_date": "2025-03-12"}, now))
	assert.False(shouldCache(hsp.Payload{"from_date": "2025-03-10", "to_date": "2025-03-14"}, now))
	// detail lookups carry no dates and refer to runs already finished
	assert.True(shouldCache(hsp.Payload{"rid": "202503107126728"}, now))
}
