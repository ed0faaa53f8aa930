// Package place holds the physical side of legalization: the partial
// placement produced upstream, floorplan regions, fixed-offset macros,
// the block-location registry, and the cluster placer that assigns
// concrete (tile, sub-tile, layer) slots.
package place

import (
	"io"
	"os"
	"sort"

	"github.com/BurntSushi/toml"

	"github.com/selimozt/fabpack/pkg/device"
	"github.com/selimozt/fabpack/pkg/errors"
	"github.com/selimozt/fabpack/pkg/netlist"
)

// Partial is the continuous per-atom placement produced by an upstream
// analytical placer. Positions are not legal; they supply the bias
// that legalization should respect. The optional sub-tile hint is -1
// when the upstream pass expressed no preference.
type Partial struct {
	x, y, layer []float64
	subTile     []int
}

// NewPartial returns a partial placement with every atom at the
// origin and no sub-tile hints.
func NewPartial(numAtoms int) *Partial {
	p := &Partial{
		x:       make([]float64, numAtoms),
		y:       make([]float64, numAtoms),
		layer:   make([]float64, numAtoms),
		subTile: make([]int, numAtoms),
	}
	for i := range p.subTile {
		p.subTile[i] = -1
	}
	return p
}

// NumAtoms returns the number of atoms covered.
func (p *Partial) NumAtoms() int { return len(p.x) }

// Set records an atom's continuous position and sub-tile hint.
func (p *Partial) Set(a netlist.AtomID, x, y, layer float64, subTile int) {
	p.x[a], p.y[a], p.layer[a] = x, y, layer
	p.subTile[a] = subTile
}

// Pos returns an atom's continuous position.
func (p *Partial) Pos(a netlist.AtomID) (x, y, layer float64) {
	return p.x[a], p.y[a], p.layer[a]
}

// SubTileHint returns the upstream sub-tile preference for an atom, or
// -1.
func (p *Partial) SubTileHint(a netlist.AtomID) int { return p.subTile[a] }

// DesiredTile returns the grid tile containing an atom's continuous
// position, clamped to the device bounds.
func (p *Partial) DesiredTile(g *device.Grid, a netlist.AtomID) device.TileLoc {
	return g.ContainingTile(p.x[a], p.y[a], int(p.layer[a]))
}

// CentroidTile returns the tile containing the centroid of a group of
// atoms. The centroid of an empty group is the origin tile.
func (p *Partial) CentroidTile(g *device.Grid, atoms []netlist.AtomID) device.TileLoc {
	if len(atoms) == 0 {
		return g.ContainingTile(0, 0, 0)
	}
	var sx, sy, sl float64
	for _, a := range atoms {
		sx += p.x[a]
		sy += p.y[a]
		sl += p.layer[a]
	}
	n := float64(len(atoms))
	return g.ContainingTile(sx/n, sy/n, int(sl/n+0.5))
}

type partialDecl struct {
	Blocks []struct {
		Name    string  `toml:"name"`
		X       float64 `toml:"x"`
		Y       float64 `toml:"y"`
		Layer   float64 `toml:"layer"`
		SubTile *int    `toml:"sub_tile"`
	} `toml:"blocks"`
}

// LoadPartial reads a TOML partial placement and resolves block names
// against the netlist. Atoms the file does not mention stay at the
// origin.
func LoadPartial(r io.Reader, nl *netlist.Netlist) (*Partial, error) {
	var decl partialDecl
	if _, err := toml.NewDecoder(r).Decode(&decl); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidPlacement, err, "malformed placement file")
	}
	p := NewPartial(nl.NumAtoms())
	for _, b := range decl.Blocks {
		a := nl.AtomByName(b.Name)
		if !a.IsValid() {
			return nil, errors.New(errors.ErrCodeInvalidPlacement, "placement references unknown block %q", b.Name)
		}
		hint := -1
		if b.SubTile != nil {
			hint = *b.SubTile
		}
		p.Set(a, b.X, b.Y, b.Layer, hint)
	}
	return p, nil
}

// LoadPartialFile reads a TOML partial placement from disk.
func LoadPartialFile(path string, nl *netlist.Netlist) (*Partial, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "opening placement file %s", path)
	}
	defer f.Close()
	return LoadPartial(f, nl)
}

// SortAtomsByPos orders atoms by (x, y, layer, id). The comparison
// depends only on the two keys, so large sorts may be parallelized
// safely; the id tail keeps the order total and deterministic.
func (p *Partial) SortAtomsByPos(atoms []netlist.AtomID) {
	sort.SliceStable(atoms, func(i, j int) bool {
		ai, aj := atoms[i], atoms[j]
		if p.x[ai] != p.x[aj] {
			return p.x[ai] < p.x[aj]
		}
		if p.y[ai] != p.y[aj] {
			return p.y[ai] < p.y[aj]
		}
		if p.layer[ai] != p.layer[aj] {
			return p.layer[ai] < p.layer[aj]
		}
		return ai < aj
	})
}
