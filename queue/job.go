// Package queue implements the deduplicating work queue that every
// upstream call is funneled through. A single consumer loop drains the
// queue, which makes it the one place the upstream rate limit is
// enforced no matter how many producers exist.
package queue

import (
	"github.com/pkg/errors"

	"github.com/refundmyrail/refundmyrail/hsp"
)

// State represents the lifecycle state of a queued job
type State string

const (
	// StateQueued represents a job waiting for the consumer
	StateQueued State = "queued"
	// StateRunning represents a job being fetched upstream
	StateRunning State = "running"
	// StateCompleted represents a job whose result was published
	StateCompleted State = "completed"
	// StateFailed represents a job whose upstream call failed terminally
	StateFailed State = "failed"
)

// Job is one unit of upstream work. Jobs sharing a CacheKey are the
// same logical request and collapse onto one physical fetch.
type Job struct {
	ID       string      `json:"id"`
	Kind     string      `json:"kind"`
	Payload  hsp.Payload `json:"payload"`
	CacheKey string      `json:"cache_key"`
}

// Result carries the outcome of one fetch to every waiter of its cache
// key. Upstream failures keep their status and body so interactive
// callers can forward them verbatim across process boundaries.
type Result struct {
	Value     []byte `json:"value,omitempty"`
	Failed    bool   `json:"failed,omitempty"`
	ErrStatus int    `json:"err_status,omitempty"`
	ErrBody   string `json:"err_body,omitempty"`
}

// Err reconstructs the error a failed result was built from.
func (r Result) Err() error {
	if !r.Failed {
		return nil
	}
	if r.ErrStatus != 0 {
		return &hsp.Error{Status: r.ErrStatus, Body: r.ErrBody}
	}
	return errors.New(r.ErrBody)
}

// Handle identifies an enqueued job for a later Await.
type Handle struct {
	JobID    string
	CacheKey string
}
