package device

import (
	"io"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/selimozt/fabpack/pkg/arch"
	"github.com/selimozt/fabpack/pkg/errors"
)

// regionDecl overrides the tile type on a rectangle of the grid.
type regionDecl struct {
	X0    int    `toml:"x0"`
	Y0    int    `toml:"y0"`
	X1    int    `toml:"x1"`
	Y1    int    `toml:"y1"`
	Layer int    `toml:"layer"`
	Type  string `toml:"type"`
}

type gridDecl struct {
	Width   int          `toml:"width"`
	Height  int          `toml:"height"`
	Layers  int          `toml:"layers"`
	Default string       `toml:"default"`
	Regions []regionDecl `toml:"regions"`
}

type deviceDecl struct {
	Grid gridDecl `toml:"grid"`
}

// Load reads a TOML device grid description from r. The grid starts
// filled with the default tile type and region declarations override
// rectangles in order.
func Load(r io.Reader, a *arch.Architecture) (*Grid, error) {
	var decl deviceDecl
	if _, err := toml.NewDecoder(r).Decode(&decl); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidArch, err, "decoding device grid")
	}
	gd := decl.Grid
	if gd.Width <= 0 || gd.Height <= 0 {
		return nil, errors.New(errors.ErrCodeInvalidArch,
			"device grid must have positive dimensions, got %dx%d", gd.Width, gd.Height)
	}
	if gd.Layers <= 0 {
		gd.Layers = 1
	}
	def := a.TileType(gd.Default)
	if def == nil {
		return nil, errors.New(errors.ErrCodeInvalidArch,
			"device grid default tile type %q not found", gd.Default)
	}

	g := New(gd.Width, gd.Height, gd.Layers, def)
	for _, reg := range gd.Regions {
		tt := a.TileType(reg.Type)
		if tt == nil {
			return nil, errors.New(errors.ErrCodeInvalidArch,
				"device grid region references unknown tile type %q", reg.Type)
		}
		for x := reg.X0; x <= reg.X1; x++ {
			for y := reg.Y0; y <= reg.Y1; y++ {
				loc := TileLoc{X: x, Y: y, Layer: reg.Layer}
				if !g.InBounds(loc) {
					return nil, errors.New(errors.ErrCodeInvalidArch,
						"device grid region (%d,%d)-(%d,%d) exceeds %s",
						reg.X0, reg.Y0, reg.X1, reg.Y1, g)
				}
				g.SetTileType(loc, tt)
			}
		}
	}
	return g, nil
}

// LoadFile reads a TOML device grid description from the given path.
func LoadFile(path string, a *arch.Architecture) (*Grid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "opening device file %s", path)
	}
	defer f.Close()
	return Load(f, a)
}
