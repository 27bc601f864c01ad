package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/refundmyrail/refundmyrail/cache"
	"github.com/refundmyrail/refundmyrail/hsp"
	"github.com/refundmyrail/refundmyrail/queue"
)

type stubFetcher struct {
	calls int32
	delay time.Duration
	resp  []byte
	err   error
}

func (f *stubFetcher) Fetch(ctx context.Context, kind string, payload hsp.Payload) ([]byte, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return f.resp, f.err
}

func newTestHandlers(t *testing.T, fetcher *stubFetcher, awaitTimeout time.Duration) *handlers {
	store, err := cache.NewFileStore(t.TempDir())
	require.NoError(t, err)

	broker := queue.NewMemoryBroker()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go queue.NewConsumer(broker, fetcher, store, time.Millisecond).Run(ctx)

	return newHandlers(&queue.Resolver{
		Store: store,
		Queue: queue.New(broker, awaitTimeout),
	})
}

func postMetrics(h *handlers, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", "/api/servicemetrics", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	h.Metrics(rec, req)
	return rec
}

const pastQuery = `{"from_loc":"DID","to_loc":"PAD","from_date":"2020-01-06","to_date":"2020-01-06"}`

func TestMetricsTagsCachedResponses(t *testing.T) {
	assert := assert.New(t)

	fetcher := &stubFetcher{resp: []byte(`{"Services":[]}`)}
	h := newTestHandlers(t, fetcher, 5*time.Second)

	// fresh fetch, untagged
	rec := postMetrics(h, pastQuery)
	assert.Equal(http.StatusOK, rec.Code)
	assert.Equal("application/json", rec.Header().Get("Content-Type"))
	assert.Equal(`{"Services":[]}`, rec.Body.String())

	// repeat is cache-served and tagged, with no second upstream call
	rec = postMetrics(h, pastQuery)
	assert.Equal(http.StatusOK, rec.Code)

	var tagged map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tagged))
	assert.Equal("true", string(tagged["_fromCache"]))
	assert.Equal(int32(1), atomic.LoadInt32(&fetcher.calls))
}

func TestMetricsForwardsUpstreamError(t *testing.T) {
	assert := assert.New(t)

	fetcher := &stubFetcher{err: &hsp.Error{Status: http.StatusBadRequest, Body: `{"error":"invalid CRS code"}`}}
	h := newTestHandlers(t, fetcher, 5*time.Second)

	rec := postMetrics(h, pastQuery)
	assert.Equal(http.StatusBadRequest, rec.Code)
	assert.Equal(`{"error":"invalid CRS code"}`, rec.Body.String())
}

func TestMetricsWrapsNonJSONUpstreamBody(t *testing.T) {
	assert := assert.New(t)

	fetcher := &stubFetcher{err: &hsp.Error{Status: http.StatusForbidden, Body: "Forbidden"}}
	h := newTestHandlers(t, fetcher, 5*time.Second)

	rec := postMetrics(h, pastQuery)
	assert.Equal(http.StatusForbidden, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal("Forbidden", body["error"])
}

func TestMetricsRejectsInvalidBody(t *testing.T) {
	assert := assert.New(t)

	h := newTestHandlers(t, &stubFetcher{}, 5*time.Second)

	rec := postMetrics(h, `{not json`)
	assert.Equal(http.StatusBadRequest, rec.Code)
}

func TestMetricsTimesOut(t *testing.T) {
	assert := assert.New(t)

	fetcher := &stubFetcher{resp: []byte(`{}`), delay: 200 * time.Millisecond}
	h := newTestHandlers(t, fetcher, 20*time.Millisecond)

	rec := postMetrics(h, pastQuery)
	assert.Equal(http.StatusGatewayTimeout, rec.Code)
}
