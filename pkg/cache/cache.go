// Package cache provides caching for legalization runs: finished
// results keyed by a content hash of their inputs, and rendered
// artifacts keyed by the result they came from.
//
// Three backends share one interface: a file cache for CLI usage, a
// redis cache for the serve mode, and a null cache for tests and
// cache-disabled runs.
package cache

import (
	"context"
	"time"
)

// Cache is the storage interface shared by all backends.
type Cache interface {
	// Get retrieves a value. The second return reports whether the key
	// was present.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value. A zero ttl means no expiration.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes a value. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// ResultKeyOpts captures the configuration that affects a
// legalization result beyond its input files.
type ResultKeyOpts struct {
	Strategy  string
	Seed      string
	PinFilter bool
}

// Keyer generates cache keys. Implementations must be deterministic:
// the same inputs always produce the same key.
type Keyer interface {
	// ResultKey keys a finished legalization result by the content
	// hash of its inputs (architecture, netlist, placement).
	ResultKey(inputsHash string, opts ResultKeyOpts) string

	// ArtifactKey keys a rendered artifact by the hash of the result
	// it was produced from.
	ArtifactKey(resultHash string, format string) string
}

// DefaultKeyer is the standard key generator.
type DefaultKeyer struct{}

// NewDefaultKeyer creates the standard key generator.
func NewDefaultKeyer() Keyer {
	return &DefaultKeyer{}
}

// ResultKey generates a key for a legalization result.
func (k *DefaultKeyer) ResultKey(inputsHash string, opts ResultKeyOpts) string {
	return hashKey("result", inputsHash, opts.Strategy, opts.Seed, opts.PinFilter)
}

// ArtifactKey generates a key for a rendered artifact.
func (k *DefaultKeyer) ArtifactKey(resultHash string, format string) string {
	return hashKey("artifact", resultHash, format)
}
