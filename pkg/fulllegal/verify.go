package fulllegal

import (
	"github.com/selimozt/fabpack/pkg/device"
	"github.com/selimozt/fabpack/pkg/errors"
	"github.com/selimozt/fabpack/pkg/netlist"
)

// Verify checks a finished result against the output contract: every
// atom in exactly one cluster, every cluster placed exactly once on a
// compatible sub-tile, and no slot shared. It exists to catch broken
// invariants in strategy implementations, so any failure is an
// internal error.
func Verify(r *Result, nl *netlist.Netlist) error {
	seen := make(map[netlist.AtomID]bool, nl.NumAtoms())
	for _, id := range r.Legalizer.Clusters() {
		for _, a := range r.Legalizer.ClusterAtoms(id) {
			if seen[a] {
				return errors.New(errors.ErrCodeInternal, "atom %d appears in two clusters", a)
			}
			seen[a] = true
		}
	}
	if len(seen) != nl.NumAtoms() {
		return errors.New(errors.ErrCodeInternal,
			"%d of %d atoms missing from the partition", nl.NumAtoms()-len(seen), nl.NumAtoms())
	}

	grid := r.Registry.Grid()
	used := make(map[device.Loc]bool)
	for _, id := range r.Legalizer.Clusters() {
		loc, ok := r.Registry.LocOf(id)
		if !ok {
			return errors.New(errors.ErrCodeInternal, "cluster %d has no slot", id)
		}
		if used[loc] {
			return errors.New(errors.ErrCodeInternal, "slot %v assigned twice", loc)
		}
		used[loc] = true

		tt := grid.TileTypeAt(loc.Tile())
		if tt == nil {
			return errors.New(errors.ErrCodeInternal, "cluster %d placed on empty tile %v", id, loc.Tile())
		}
		bt := r.Legalizer.ClusterType(id)
		if !tt.SubTileCompatible(loc.SubTile, bt.Name) {
			return errors.New(errors.ErrCodeInternal,
				"cluster %d (%s) on incompatible slot %v", id, bt.Name, loc)
		}
	}
	return nil
}
