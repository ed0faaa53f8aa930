package place

import "github.com/selimozt/fabpack/pkg/device"

// Rect is one inclusive tile rectangle of a floorplan region. A
// negative Layer matches every device layer.
type Rect struct {
	XLo   int `toml:"x_lo" json:"x_lo"`
	YLo   int `toml:"y_lo" json:"y_lo"`
	XHi   int `toml:"x_hi" json:"x_hi"`
	YHi   int `toml:"y_hi" json:"y_hi"`
	Layer int `toml:"layer" json:"layer"`
}

func (r Rect) contains(t device.TileLoc) bool {
	if r.Layer >= 0 && r.Layer != t.Layer {
		return false
	}
	return t.X >= r.XLo && t.X <= r.XHi && t.Y >= r.YLo && t.Y <= r.YHi
}

// PartitionRegion is an optional floorplan constraint: the union of
// its rectangles is the set of tiles a cluster may occupy. The empty
// region places no restriction.
type PartitionRegion struct {
	Rects []Rect `toml:"rects" json:"rects"`
}

// Empty reports whether the region is unconstrained.
func (p PartitionRegion) Empty() bool { return len(p.Rects) == 0 }

// Contains reports whether the tile is inside the region. Every tile
// is inside the empty region.
func (p PartitionRegion) Contains(t device.TileLoc) bool {
	if p.Empty() {
		return true
	}
	for _, r := range p.Rects {
		if r.contains(t) {
			return true
		}
	}
	return false
}
