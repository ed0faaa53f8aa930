package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// Hash returns the sha256 content hash of data as 64 hex characters.
// It is the identity results are keyed by: byte-identical input
// documents hash identically, anything else does not.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// hashKey builds a namespaced key, "prefix:<sha256 hex>", from the
// JSON encoding of its parts. Parts must marshal deterministically;
// the key spaces of different prefixes never collide.
func hashKey(prefix string, parts ...any) string {
	data, _ := json.Marshal(parts)
	sum := sha256.Sum256(data)
	return prefix + ":" + hex.EncodeToString(sum[:])
}
