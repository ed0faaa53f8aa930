// Package device models the physical device grid: a width x height x
// layers arrangement of tiles, each bound to an architecture tile type
// offering zero or more sub-tile slots.
//
// The grid is static input, built once from a TOML description and only
// queried afterwards. It also provides the deterministic ring iteration
// used by every expanding spatial search in the flow (see Rings and
// ExpandingSearch): traversal order is fixed, so searches are
// reproducible run to run.
package device

import (
	"fmt"
	"math"

	"github.com/selimozt/fabpack/pkg/arch"
)

// TileLoc addresses a root tile on the grid.
type TileLoc struct {
	X     int `json:"x"`
	Y     int `json:"y"`
	Layer int `json:"layer"`
}

// Loc addresses one placement site: a sub-tile slot of a root tile.
type Loc struct {
	X       int `json:"x"`
	Y       int `json:"y"`
	Layer   int `json:"layer"`
	SubTile int `json:"sub_tile"`
}

// Tile returns the root tile of the site.
func (l Loc) Tile() TileLoc { return TileLoc{X: l.X, Y: l.Y, Layer: l.Layer} }

// ManhattanDist returns the Manhattan distance between two tiles,
// ignoring layers.
func ManhattanDist(a, b TileLoc) int {
	return abs(a.X-b.X) + abs(a.Y-b.Y)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// Grid is the device grid.
type Grid struct {
	width  int
	height int
	layers int
	tiles  []*arch.TileType // indexed layer*width*height + x*height + y
}

// New creates a grid with every tile bound to the given default type.
func New(width, height, layers int, def *arch.TileType) *Grid {
	g := &Grid{
		width:  width,
		height: height,
		layers: layers,
		tiles:  make([]*arch.TileType, width*height*layers),
	}
	for i := range g.tiles {
		g.tiles[i] = def
	}
	return g
}

// Width returns the grid width in tiles.
func (g *Grid) Width() int { return g.width }

// Height returns the grid height in tiles.
func (g *Grid) Height() int { return g.height }

// Layers returns the number of device layers.
func (g *Grid) Layers() int { return g.layers }

// InBounds reports whether the tile location is on the grid.
func (g *Grid) InBounds(loc TileLoc) bool {
	return loc.X >= 0 && loc.X < g.width &&
		loc.Y >= 0 && loc.Y < g.height &&
		loc.Layer >= 0 && loc.Layer < g.layers
}

func (g *Grid) idx(loc TileLoc) int {
	return loc.Layer*g.width*g.height + loc.X*g.height + loc.Y
}

// SetTileType rebinds one tile to a different type.
func (g *Grid) SetTileType(loc TileLoc, t *arch.TileType) {
	g.tiles[g.idx(loc)] = t
}

// TileTypeAt returns the tile type at the location, or nil if out of
// bounds.
func (g *Grid) TileTypeAt(loc TileLoc) *arch.TileType {
	if !g.InBounds(loc) {
		return nil
	}
	return g.tiles[g.idx(loc)]
}

// ContainingTile maps a continuous position to the root tile containing
// it, clamping to the grid.
func (g *Grid) ContainingTile(x, y float64, layer int) TileLoc {
	loc := TileLoc{X: int(math.Floor(x)), Y: int(math.Floor(y)), Layer: layer}
	loc.X = clamp(loc.X, 0, g.width-1)
	loc.Y = clamp(loc.Y, 0, g.height-1)
	loc.Layer = clamp(loc.Layer, 0, g.layers-1)
	return loc
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// CapacityFor returns the total number of sub-tile slots on the device
// that accept the given logical block type. Used for capacity
// conservation diagnostics.
func (g *Grid) CapacityFor(blockType string) int {
	total := 0
	for layer := 0; layer < g.layers; layer++ {
		for x := 0; x < g.width; x++ {
			for y := 0; y < g.height; y++ {
				tt := g.tiles[g.idx(TileLoc{X: x, Y: y, Layer: layer})]
				if tt == nil {
					continue
				}
				for _, st := range tt.SubTiles {
					for _, c := range st.Compatible {
						if c == blockType {
							total += st.Capacity
							break
						}
					}
				}
			}
		}
	}
	return total
}

// String returns a short human-readable summary.
func (g *Grid) String() string {
	return fmt.Sprintf("grid{%dx%dx%d}", g.width, g.height, g.layers)
}
