package report

import (
	"github.com/selimozt/fabpack/pkg/device"
	"github.com/selimozt/fabpack/pkg/errors"
)

// Validate checks the internal consistency of a stored report: every
// slot holds one cluster, every atom appears once, and the recorded
// displacement figures match the block list. A report straight out of
// [Build] always passes; Validate exists for reports that crossed a
// store or the network.
func (r *Report) Validate() error {
	if r.RunID == "" {
		return errors.New(errors.ErrCodeInvalidPlacement, "report has no run id")
	}

	slots := make(map[device.Loc]int)
	atoms := make(map[string]int)
	total, displaced, max := 0, 0, 0
	for _, blk := range r.Blocks {
		if prev, ok := slots[blk.Loc]; ok {
			return errors.New(errors.ErrCodeInvalidPlacement,
				"clusters %d and %d share slot (%d,%d,%d/%d)",
				prev, blk.Cluster, blk.Loc.X, blk.Loc.Y, blk.Loc.Layer, blk.Loc.SubTile)
		}
		slots[blk.Loc] = blk.Cluster

		for _, name := range blk.Atoms {
			if prev, ok := atoms[name]; ok {
				return errors.New(errors.ErrCodeInvalidPlacement,
					"atom %q appears in clusters %d and %d", name, prev, blk.Cluster)
			}
			atoms[name] = blk.Cluster
		}

		if d := device.ManhattanDist(blk.Loc.Tile(), blk.Desired); d != blk.Displacement {
			return errors.New(errors.ErrCodeInvalidPlacement,
				"cluster %d records displacement %d but sits %d from its desired tile",
				blk.Cluster, blk.Displacement, d)
		}
		total += blk.Displacement
		if blk.Displacement > 0 {
			displaced++
		}
		if blk.Displacement > max {
			max = blk.Displacement
		}
	}

	if r.Quality.Placed != len(r.Blocks) {
		return errors.New(errors.ErrCodeInvalidPlacement,
			"report claims %d placed clusters but lists %d", r.Quality.Placed, len(r.Blocks))
	}
	if r.Quality.TotalDisplacement != total || r.Quality.Displaced != displaced || r.Quality.MaxDisplacement != max {
		return errors.New(errors.ErrCodeInvalidPlacement, "displacement summary does not match block list")
	}
	return nil
}
