package cache

// ScopedKeyer wraps a Keyer with a prefix for namespace isolation.
// The serve mode uses it so that concurrent projects sharing one redis
// instance cannot collide.
//
// Example usage:
//
//	// Project-specific keys
//	projKeyer := NewScopedKeyer(NewDefaultKeyer(), "proj:chip42:")
//
//	// Global keys
//	globalKeyer := NewDefaultKeyer()
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
// The prefix is prepended to all generated keys.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{
		inner:  inner,
		prefix: prefix,
	}
}

// ResultKey generates a prefixed key for a legalization result.
func (k *ScopedKeyer) ResultKey(inputsHash string, opts ResultKeyOpts) string {
	return k.prefix + k.inner.ResultKey(inputsHash, opts)
}

// ArtifactKey generates a prefixed key for a rendered artifact.
func (k *ScopedKeyer) ArtifactKey(resultHash string, format string) string {
	return k.prefix + k.inner.ArtifactKey(resultHash, format)
}
