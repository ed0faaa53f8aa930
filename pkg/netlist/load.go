package netlist

import (
	"io"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/selimozt/fabpack/pkg/arch"
	"github.com/selimozt/fabpack/pkg/errors"
)

// atomDecl is the TOML shape of one atom declaration.
type atomDecl struct {
	Name    string            `toml:"name"`
	Model   string            `toml:"model"`
	Inputs  map[string]string `toml:"inputs"`
	Outputs map[string]string `toml:"outputs"`
	Clock   string            `toml:"clock"`
}

type netlistDecl struct {
	Atoms []atomDecl `toml:"atoms"`
}

// Load reads a TOML netlist from r, validating each atom against the
// architecture. Atom IDs are assigned in declaration order; net IDs in
// first-mention order.
func Load(r io.Reader, a *arch.Architecture) (*Netlist, error) {
	var decl netlistDecl
	if _, err := toml.NewDecoder(r).Decode(&decl); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidNetlist, err, "decoding netlist")
	}
	if len(decl.Atoms) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidNetlist, "netlist declares no atoms")
	}

	b := NewBuilder(a)
	for _, ad := range decl.Atoms {
		b.AddAtom(ad.Name, ad.Model, ad.Inputs, ad.Outputs, ad.Clock)
	}
	nl, err := b.Build()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidNetlist, err, "building netlist")
	}
	return nl, nil
}

// LoadFile reads a TOML netlist from the given path.
func LoadFile(path string, a *arch.Architecture) (*Netlist, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "opening netlist file %s", path)
	}
	defer f.Close()
	return Load(f, a)
}
