package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"sort"
)

// Fingerprint derives the cache key for an endpoint kind and request
// payload. The payload is serialized with its keys in sorted order
// before digesting, so two payloads holding the same values always
// collapse to the same key no matter how they were built.
func Fingerprint(kind string, payload map[string]string) string {
	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := sha256.New()
	io.WriteString(h, kind)
	for _, k := range keys {
		io.WriteString(h, "|")
		io.WriteString(h, k)
		io.WriteString(h, "=")
		io.WriteString(h, payload[k])
	}

	return hex.EncodeToString(h.Sum(nil))
}
