// Package subs reads subscriber records. The checker only consumes
// subscriptions; it never creates or modifies them.
package subs

import (
	"context"

	"github.com/pkg/errors"
)

// ErrNotFound represents a subscription id with no stored record
var ErrNotFound = errors.New("subscription not found")

// Window is a departure time window in HH:MM.
type Window struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Route holds the two CRS station codes of a commute.
type Route struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Times groups the two daily legs of a commute.
type Times struct {
	Morning Window `json:"morning"`
	Evening Window `json:"evening"`
}

// Subscription is one commuter's weekly report registration.
type Subscription struct {
	Email  string `json:"email"`
	Route  Route  `json:"route"`
	Times  Times  `json:"times"`
	Active bool   `json:"active"`
}

// Store reads subscription records.
type Store interface {
	ListIDs(ctx context.Context) ([]string, error)
	Get(ctx context.Context, id string) (Subscription, error)
}
