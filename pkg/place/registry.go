package place

import (
	"sort"

	"github.com/selimozt/fabpack/pkg/device"
	"github.com/selimozt/fabpack/pkg/errors"
	"github.com/selimozt/fabpack/pkg/legalizer"
)

// Registry is the block-location registry: the authoritative mapping
// between clusters and concrete (tile, sub-tile, layer) slots. It
// enforces tile exclusivity; every bind is checked against both
// directions of the mapping.
type Registry struct {
	grid      *device.Grid
	byLoc     map[device.Loc]legalizer.ClusterID
	byCluster map[legalizer.ClusterID]device.Loc
}

// NewRegistry creates an empty registry over a grid.
func NewRegistry(grid *device.Grid) *Registry {
	return &Registry{
		grid:      grid,
		byLoc:     make(map[device.Loc]legalizer.ClusterID),
		byCluster: make(map[legalizer.ClusterID]device.Loc),
	}
}

// Grid returns the device grid the registry covers.
func (r *Registry) Grid() *device.Grid { return r.grid }

// Occupied reports whether a slot is taken.
func (r *Registry) Occupied(loc device.Loc) bool {
	_, ok := r.byLoc[loc]
	return ok
}

// At returns the cluster occupying a slot.
func (r *Registry) At(loc device.Loc) (legalizer.ClusterID, bool) {
	id, ok := r.byLoc[loc]
	return id, ok
}

// LocOf returns a cluster's slot.
func (r *Registry) LocOf(id legalizer.ClusterID) (device.Loc, bool) {
	loc, ok := r.byCluster[id]
	return loc, ok
}

// Placed reports whether a cluster has a slot.
func (r *Registry) Placed(id legalizer.ClusterID) bool {
	_, ok := r.byCluster[id]
	return ok
}

// Bind assigns a cluster to a slot. Binding an occupied slot or a
// cluster that already has a slot is a broken precondition and
// reported as an internal error; callers are expected to check first.
func (r *Registry) Bind(id legalizer.ClusterID, loc device.Loc) error {
	if !r.grid.InBounds(loc.Tile()) {
		return errors.New(errors.ErrCodeInvalidPlacement, "slot %v is off the grid", loc)
	}
	if prev, ok := r.byLoc[loc]; ok {
		return errors.New(errors.ErrCodeInternal, "slot %v already held by cluster %d", loc, prev)
	}
	if prev, ok := r.byCluster[id]; ok {
		return errors.New(errors.ErrCodeInternal, "cluster %d already placed at %v", id, prev)
	}
	r.byLoc[loc] = id
	r.byCluster[id] = loc
	return nil
}

// Unbind frees a cluster's slot, if any.
func (r *Registry) Unbind(id legalizer.ClusterID) {
	if loc, ok := r.byCluster[id]; ok {
		delete(r.byLoc, loc)
		delete(r.byCluster, id)
	}
}

// NumPlaced returns the number of placed clusters.
func (r *Registry) NumPlaced() int { return len(r.byCluster) }

// Clusters returns the placed cluster identifiers in ascending order.
func (r *Registry) Clusters() []legalizer.ClusterID {
	ids := make([]legalizer.ClusterID, 0, len(r.byCluster))
	for id := range r.byCluster {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// FreeSubTile returns the lowest free, type-compatible sub-tile index
// at a tile, or -1. A nil tile type or one with no sub-tiles never
// matches.
func (r *Registry) FreeSubTile(tile device.TileLoc, blockType string) int {
	tt := r.grid.TileTypeAt(tile)
	if tt == nil {
		return -1
	}
	n := tt.NumSubTiles()
	for s := 0; s < n; s++ {
		if !tt.SubTileCompatible(s, blockType) {
			continue
		}
		loc := device.Loc{X: tile.X, Y: tile.Y, Layer: tile.Layer, SubTile: s}
		if !r.Occupied(loc) {
			return s
		}
	}
	return -1
}
