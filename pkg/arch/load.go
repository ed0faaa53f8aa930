package arch

import (
	"io"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/selimozt/fabpack/pkg/errors"
)

// Load reads a TOML architecture description from r, indexes it, and
// validates it. Validation failures are reported with code INVALID_ARCH
// and are fatal to the run: the rest of the flow assumes a well-formed
// architecture.
func Load(r io.Reader) (*Architecture, error) {
	var a Architecture
	if _, err := toml.NewDecoder(r).Decode(&a); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidArch, err, "decoding architecture")
	}
	if err := a.Finalize(); err != nil {
		return nil, err
	}
	return &a, nil
}

// LoadFile reads a TOML architecture description from the given path.
func LoadFile(path string) (*Architecture, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "opening architecture file %s", path)
	}
	defer f.Close()
	return Load(f)
}
