package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFingerprintStableAcrossKeyOrder(t *testing.T) {
	assert := assert.New(t)

	// maps built in different insertion orders must digest identically
	p1 := map[string]string{}
	p1["from_loc"] = "DID"
	p1["to_loc"] = "PAD"
	p1["from_date"] = "2025-03-10"

	p2 := map[string]string{}
	p2["from_date"] = "2025-03-10"
	p2["to_loc"] = "PAD"
	p2["from_loc"] = "DID"

	assert.Equal(Fingerprint("metrics", p1), Fingerprint("metrics", p2))
}

func TestFingerprintDiffers(t *testing.T) {
	assert := assert.New(t)
	base := map[string]string{"from_loc": "DID", "to_loc": "PAD"}

	changedValue := map[string]string{"from_loc": "DID", "to_loc": "RDG"}
	assert.NotEqual(Fingerprint("metrics", base), Fingerprint("metrics", changedValue))

	// same payload against the other endpoint is a different request
	assert.NotEqual(Fingerprint("metrics", base), Fingerprint("details", base))
}

func TestFingerprintLength(t *testing.T) {
	assert := assert.New(t)
	key := Fingerprint("details", map[string]string{"rid": "202503107126728"})
	assert.Len(key, 64)
}
