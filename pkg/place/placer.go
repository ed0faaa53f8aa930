package place

import (
	"github.com/charmbracelet/log"

	"github.com/selimozt/fabpack/pkg/device"
	"github.com/selimozt/fabpack/pkg/errors"
	"github.com/selimozt/fabpack/pkg/legalizer"
)

// ClusterPlacer assigns legalized clusters (or whole macros) to
// concrete slots. A targeted attempt tries the desired tile first,
// then every sub-tile there, then falls back to an exhaustive
// expanding search across the cluster's legal region. Failure of the
// fallback means no slot exists anywhere and is fatal to the run.
type ClusterPlacer struct {
	leg     *legalizer.ClusterLegalizer
	reg     *Registry
	regions map[legalizer.ClusterID]PartitionRegion
	macros  *MacroSet
	log     *log.Logger
}

// NewClusterPlacer creates a placer over a registry. A nil logger
// means the default logger.
func NewClusterPlacer(leg *legalizer.ClusterLegalizer, reg *Registry, logger *log.Logger) *ClusterPlacer {
	if logger == nil {
		logger = log.Default()
	}
	return &ClusterPlacer{
		leg:     leg,
		reg:     reg,
		regions: make(map[legalizer.ClusterID]PartitionRegion),
		log:     logger,
	}
}

// SetRegion constrains a cluster to a floorplan region.
func (p *ClusterPlacer) SetRegion(id legalizer.ClusterID, r PartitionRegion) {
	p.regions[id] = r
}

// Region returns a cluster's floorplan constraint; the empty region
// when unconstrained.
func (p *ClusterPlacer) Region(id legalizer.ClusterID) PartitionRegion {
	return p.regions[id]
}

// SetMacros attaches fixed-offset macro membership. Placing any
// member of a macro places the whole macro.
func (p *ClusterPlacer) SetMacros(ms *MacroSet) { p.macros = ms }

// Registry returns the underlying block-location registry.
func (p *ClusterPlacer) Registry() *Registry { return p.reg }

// PlaceClusterAt is the strict single-slot attempt: it succeeds only
// at exactly the given slot. Placing an already-placed cluster is an
// idempotent no-op. The slot must be in the cluster's region, on a
// tile with a compatible free sub-tile at that index.
func (p *ClusterPlacer) PlaceClusterAt(id legalizer.ClusterID, loc device.Loc) error {
	if p.reg.Placed(id) {
		return nil
	}
	tile := loc.Tile()
	tt := p.reg.grid.TileTypeAt(tile)
	if tt == nil || tt.NumSubTiles() == 0 {
		return errors.New(errors.ErrCodeInvalidPlacement, "tile %v has no sub-tiles", tile)
	}
	if !p.regions[id].Contains(tile) {
		return errors.New(errors.ErrCodeInvalidPlacement, "tile %v outside cluster %d's region", tile, id)
	}
	bt := p.leg.ClusterType(id)
	if bt == nil || !tt.SubTileCompatible(loc.SubTile, bt.Name) {
		return errors.New(errors.ErrCodeInvalidPlacement, "slot %v incompatible with cluster %d", loc, id)
	}
	if p.reg.Occupied(loc) {
		return errors.New(errors.ErrCodeInvalidPlacement, "slot %v occupied", loc)
	}
	return p.reg.Bind(id, loc)
}

// PlaceCluster places a cluster as close to the desired tile as
// possible: the desired tile's sub-tiles first, then an expanding
// ring search over the legal region. Clusters belonging to a macro
// are placed together with the whole macro. The returned error is
// ErrCodeUnplaceableCluster only when no slot exists anywhere in the
// region.
func (p *ClusterPlacer) PlaceCluster(id legalizer.ClusterID, desired device.TileLoc) error {
	if p.reg.Placed(id) {
		return nil
	}
	if macro := p.macros.Of(id); macro != nil {
		return p.placeMacro(macro, id, desired)
	}

	if s := p.trySubTiles(id, desired); s >= 0 {
		return p.reg.Bind(id, device.Loc{X: desired.X, Y: desired.Y, Layer: desired.Layer, SubTile: s})
	}

	var found device.Loc
	ok := p.reg.grid.ExpandingSearch(desired, -1, func(t device.TileLoc) bool {
		if s := p.trySubTiles(id, t); s >= 0 {
			found = device.Loc{X: t.X, Y: t.Y, Layer: t.Layer, SubTile: s}
			return true
		}
		return false
	})
	if !ok {
		return errors.New(errors.ErrCodeUnplaceableCluster,
			"no free compatible slot for cluster %d anywhere in its region", id)
	}
	p.log.Debug("placed by fallback search", "cluster", id, "desired", desired, "slot", found)
	return p.reg.Bind(id, found)
}

// PlaceClusterHinted is PlaceCluster with an upstream sub-tile
// preference: the hinted slot at the desired tile is tried before the
// regular sub-tile scan. A hint of -1 means no preference. Hints do
// not apply to macro members, which place as a unit.
func (p *ClusterPlacer) PlaceClusterHinted(id legalizer.ClusterID, desired device.TileLoc, subTile int) error {
	if subTile >= 0 && !p.reg.Placed(id) && p.macros.Of(id) == nil {
		loc := device.Loc{X: desired.X, Y: desired.Y, Layer: desired.Layer, SubTile: subTile}
		if p.hintBindable(id, loc) {
			p.log.Debug("placed at hinted slot", "cluster", id, "slot", loc)
			return p.reg.Bind(id, loc)
		}
	}
	return p.PlaceCluster(id, desired)
}

// hintBindable reports whether the hinted slot can take the cluster.
func (p *ClusterPlacer) hintBindable(id legalizer.ClusterID, loc device.Loc) bool {
	tile := loc.Tile()
	tt := p.reg.grid.TileTypeAt(tile)
	if tt == nil || !p.regions[id].Contains(tile) {
		return false
	}
	bt := p.leg.ClusterType(id)
	if bt == nil || !tt.SubTileCompatible(loc.SubTile, bt.Name) {
		return false
	}
	return !p.reg.Occupied(loc)
}

// trySubTiles returns a bindable sub-tile index at the tile for the
// cluster, or -1. It enforces the region constraint.
func (p *ClusterPlacer) trySubTiles(id legalizer.ClusterID, tile device.TileLoc) int {
	if !p.regions[id].Contains(tile) {
		return -1
	}
	bt := p.leg.ClusterType(id)
	if bt == nil {
		return -1
	}
	return p.reg.FreeSubTile(tile, bt.Name)
}

// placeMacro places every member of a macro, anchored so that the
// requesting member's tile is as close to desired as possible. All
// members bind or none do.
func (p *ClusterPlacer) placeMacro(m *Macro, id legalizer.ClusterID, desired device.TileLoc) error {
	// Translate the desired tile of the requesting member into a head
	// anchor.
	anchor := desired
	for _, mem := range m.Members {
		if mem.Cluster == id {
			anchor = device.TileLoc{X: desired.X - mem.DX, Y: desired.Y - mem.DY, Layer: desired.Layer - mem.DLayer}
			break
		}
	}

	if locs := p.tryMacroAt(m, anchor); locs != nil {
		return p.bindMacro(m, locs)
	}
	var found []device.Loc
	ok := p.reg.grid.ExpandingSearch(anchor, -1, func(t device.TileLoc) bool {
		if locs := p.tryMacroAt(m, t); locs != nil {
			found = locs
			return true
		}
		return false
	})
	if !ok {
		return errors.New(errors.ErrCodeUnplaceableCluster,
			"no anchor fits macro of cluster %d anywhere on the device", m.Head())
	}
	return p.bindMacro(m, found)
}

// tryMacroAt returns one slot per member for the macro anchored at
// head, or nil when any member has none.
func (p *ClusterPlacer) tryMacroAt(m *Macro, head device.TileLoc) []device.Loc {
	locs := make([]device.Loc, 0, len(m.Members))
	for _, mem := range m.Members {
		tile := device.TileLoc{X: head.X + mem.DX, Y: head.Y + mem.DY, Layer: head.Layer + mem.DLayer}
		s := p.trySubTiles(mem.Cluster, tile)
		if s < 0 {
			return nil
		}
		locs = append(locs, device.Loc{X: tile.X, Y: tile.Y, Layer: tile.Layer, SubTile: s})
	}
	return locs
}

func (p *ClusterPlacer) bindMacro(m *Macro, locs []device.Loc) error {
	for i, mem := range m.Members {
		if err := p.reg.Bind(mem.Cluster, locs[i]); err != nil {
			// Roll back the partial bind; the registry must never hold
			// half a macro.
			for j := 0; j < i; j++ {
				p.reg.Unbind(m.Members[j].Cluster)
			}
			return err
		}
	}
	return nil
}
