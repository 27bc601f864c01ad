package subs

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscriptionDecodesStoredRecord(t *testing.T) {
	assert := assert.New(t)

	raw := `{
		"email": "alice@example.com",
		"route": {"from": "DID", "to": "PAD"},
		"times": {
			"morning": {"start": "07:00", "end": "08:00"},
			"evening": {"start": "17:00", "end": "18:00"}
		},
		"active": true
	}`

	var sub Subscription
	require.NoError(t, json.Unmarshal([]byte(raw), &sub))

	assert.Equal("alice@example.com", sub.Email)
	assert.Equal(Route{From: "DID", To: "PAD"}, sub.Route)
	assert.Equal(Window{Start: "07:00", End: "08:00"}, sub.Times.Morning)
	assert.Equal(Window{Start: "17:00", End: "18:00"}, sub.Times.Evening)
	assert.True(sub.Active)
}

func TestMemoryStore(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	store := NewMemoryStore()
	store.Put("b", Subscription{Email: "b@example.com"})
	store.Put("a", Subscription{Email: "a@example.com", Active: true})

	ids, err := store.ListIDs(ctx)
	assert.NoError(err)
	assert.Equal([]string{"a", "b"}, ids)

	sub, err := store.Get(ctx, "a")
	assert.NoError(err)
	assert.Equal("a@example.com", sub.Email)
	assert.True(sub.Active)

	_, err = store.Get(ctx, "missing")
	assert.Equal(ErrNotFound, err)
}
