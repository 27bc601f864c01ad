// Package hsp client for the Historical Service Performance rail API.
package hsp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Endpoint kinds accepted by Fetch.
const (
	KindMetrics = "metrics"
	KindDetails = "details"
)

const (
	defaultMetricsURL = "https://api1.raildata.org.uk/1010-historical-service-performance-_hsp_v1/api/v1/serviceMetrics"
	defaultDetailsURL = "https://api1.raildata.org.uk/1010-historical-service-performance-_hsp_v1/api/v1/serviceDetails"

	defaultRetryDelay = 2 * time.Second
	defaultTimeout    = 20 * time.Second
)

// Payload is the JSON body of one upstream query.
type Payload map[string]string

// Normalize fills to_date from from_date when it was omitted, which the
// upstream API otherwise treats as an open-ended range.
func (p Payload) Normalize() {
	if _, ok := p["to_date"]; !ok {
		if from, ok := p["from_date"]; ok {
			p["to_date"] = from
		}
	}
}

// Error represents a non-2xx upstream response. The status and body are
// kept verbatim so interactive callers can forward them unmodified.
type Error struct {
	Status int
	Body   string
}

func (e *Error) Error() string {
	return fmt.Sprintf("upstream responded %d: %s", e.Status, e.Body)
}

// IsUpstream unwraps err into an upstream response error, if it is one.
func IsUpstream(err error) (*Error, bool) {
	uerr, ok := errors.Cause(err).(*Error)
	return uerr, ok
}

// Config represents an upstream client config
type Config struct {
	APIKey     string
	MetricsURL string
	DetailsURL string
	// RetryDelay is how long to back off before the single retry of a
	// rate-limited call. It is deliberately longer than the normal
	// inter-request pause, which is owned by the queue consumer.
	RetryDelay time.Duration
	Timeout    time.Duration
}

// New creates a new upstream client
func New(c *Config) (*Client, error) {
	if c.APIKey == "" {
		return nil, errors.New("no API key provided")
	}
	if c.MetricsURL == "" {
		c.MetricsURL = defaultMetricsURL
	}
	if c.DetailsURL == "" {
		c.DetailsURL = defaultDetailsURL
	}
	if c.RetryDelay == 0 {
		c.RetryDelay = defaultRetryDelay
	}
	if c.Timeout == 0 {
		c.Timeout = defaultTimeout
	}

	return &Client{
		c:    c,
		http: &http.Client{Timeout: c.Timeout},
	}, nil
}

// Client performs calls against the two historical performance
// endpoints. It holds no rate-limiting state of its own; pacing between
// calls belongs to the caller.
type Client struct {
	c    *Config
	http *http.Client
}

// retry states for one Fetch
type attemptState int

const (
	stateAttempting attemptState = iota
	stateRetrying
)

// Fetch posts the payload to the endpoint for kind and returns the raw
// response body. A 429 is retried exactly once after the configured
// backoff; a second 429 and every other non-2xx status are terminal and
// surface as *Error.
func (c *Client) Fetch(ctx context.Context, kind string, payload Payload) ([]byte, error) {
	url, err := c.endpoint(kind)
	if err != nil {
		return nil, err
	}
	payload.Normalize()
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode upstream payload")
	}

	state := stateAttempting
	for {
		raw, err := c.do(ctx, url, body)
		if err == nil {
			return raw, nil
		}
		if state == stateAttempting && isRateLimited(err) {
			state = stateRetrying
			log.Warnf("upstream rate limited on %s, retrying in %s", kind, c.c.RetryDelay)
			if serr := sleep(ctx, c.c.RetryDelay); serr != nil {
				return nil, serr
			}
			continue
		}
		return nil, err
	}
}

func (c *Client) endpoint(kind string) (string, error) {
	switch kind {
	case KindMetrics:
		return c.c.MetricsURL, nil
	case KindDetails:
		return c.c.DetailsURL, nil
	default:
		return "", errors.Errorf("endpoint kind %s not supported", kind)
	}
}

func (c *Client) do(ctx context.Context, url string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "failed to build upstream request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-apikey", c.c.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "upstream request failed")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read upstream response")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Error{Status: resp.StatusCode, Body: string(raw)}
	}

	return raw, nil
}

func isRateLimited(err error) bool {
	uerr, ok := IsUpstream(err)
	return ok && uerr.Status == http.StatusTooManyRequests
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
