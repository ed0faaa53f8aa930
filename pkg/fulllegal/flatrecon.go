package fulllegal

import (
	"sort"

	"github.com/selimozt/fabpack/pkg/device"
	"github.com/selimozt/fabpack/pkg/errors"
	"github.com/selimozt/fabpack/pkg/legalizer"
	"github.com/selimozt/fabpack/pkg/prepack"
)

// neighborSearchRadius bounds the ring scan of the expansion pass.
// Molecules further apart than this are not worth forcing into one
// cluster; the reconciliation search will still find them a slot.
const neighborSearchRadius = 8

// flatRecon reconstructs clusters so that each one stays close to the
// continuous position that produced it. Three phases: a direct pass
// packing molecules at their own desired tiles, a ring-expanding
// neighbor pass for the overflow (run fast, then full), and a
// reconciliation pass binding every cluster to a concrete slot.
type flatRecon struct {
	in Inputs

	leg     *legalizer.ClusterLegalizer
	desired map[legalizer.ClusterID]device.TileLoc
	// clustersAt tracks phase-1 clusters by the tile they were created
	// for.
	clustersAt map[device.TileLoc][]legalizer.ClusterID
}

func (f *flatRecon) Legalize() (*Result, error) {
	if err := checkDeviceCapacity(f.in); err != nil {
		return nil, err
	}
	f.leg = legalizer.New(f.in.Netlist, f.in.Prepack, f.in.Arch, legalizer.Config{
		Strategy:         legalizer.StrategyFast,
		TargetExtPinUtil: f.in.TargetExtPinUtil,
		Logger:           f.in.Logger,
	})
	f.desired = make(map[legalizer.ClusterID]device.TileLoc)
	f.clustersAt = make(map[device.TileLoc][]legalizer.ClusterID)

	f.directPass()
	if err := f.expansionPass(); err != nil {
		return nil, err
	}

	// Identifier space may have holes from destroyed clusters; compact
	// it before recording placements.
	remap := f.leg.Compress()
	desired := make(map[legalizer.ClusterID]device.TileLoc, len(f.desired))
	for old, t := range f.desired {
		if nid, ok := remap[old]; ok {
			desired[nid] = t
		}
	}
	f.desired = desired

	reg, ms, err := placeAll(f.in, f.leg, f.desired)
	if err != nil {
		return nil, err
	}
	return &Result{
		Legalizer: f.leg,
		Registry:  reg,
		Macros:    ms,
		Desired:   f.desired,
		Pack:      packStats(f.in, f.leg),
	}, nil
}

// molTile returns the tile a molecule wants, from the centroid of its
// atoms' continuous positions.
func (f *flatRecon) molTile(mol prepack.MoleculeID) device.TileLoc {
	return f.in.Partial.CentroidTile(f.in.Grid, f.in.Prepack.Molecule(mol).Atoms)
}

// byPackPriority orders molecules for packing: carry-chain members
// first, longer chains ahead of shorter ones, then descending external
// pin count, ties by identifier. Chains go early because their fixed
// relative offsets leave the placer the least freedom.
func (f *flatRecon) byPackPriority(mols []prepack.MoleculeID) {
	pp := f.in.Prepack
	sort.SliceStable(mols, func(i, j int) bool {
		mi, mj := pp.Molecule(mols[i]), pp.Molecule(mols[j])
		li, lj := 0, 0
		if mi.Chain.IsValid() {
			li = pp.ChainLen(mi.Chain)
		}
		if mj.Chain.IsValid() {
			lj = pp.ChainLen(mj.Chain)
		}
		if li != lj {
			return li > lj
		}
		si, sj := pp.Stats(mols[i]), pp.Stats(mols[j])
		pi, pj := si.ExtInputs+si.ExtOutputs, sj.ExtInputs+sj.ExtOutputs
		if pi != pj {
			return pi > pj
		}
		return mols[i] < mols[j]
	})
}

// directPass packs each molecule at its own desired tile: into an
// existing cluster there with a free leaf, or as the seed of a new
// cluster when the tile's physical type can host one. Molecules
// fitting neither stay unclustered for the expansion pass. Each
// tile's batch is re-validated with the full check afterwards; the
// molecules of failing clusters get one retry with the full strategy
// forced before overflowing.
func (f *flatRecon) directPass() {
	mols := append([]prepack.MoleculeID(nil), f.in.Prepack.Molecules()...)
	f.byPackPriority(mols)

	for _, mol := range mols {
		f.tryDirect(mol, f.molTile(mol))
	}

	tiles := make([]device.TileLoc, 0, len(f.clustersAt))
	for t := range f.clustersAt {
		tiles = append(tiles, t)
	}
	sortTiles(tiles)

	for _, t := range tiles {
		failed := f.revalidateTile(t)
		if len(failed) == 0 {
			continue
		}
		f.leg.SetStrategy(legalizer.StrategyFull)
		f.byPackPriority(failed)
		for _, mol := range failed {
			f.tryDirect(mol, t)
		}
		f.leg.SetStrategy(legalizer.StrategyFast)
	}

	// Phase-1 survivors are final; freeze them.
	for _, t := range tiles {
		for _, id := range f.clustersAt[t] {
			f.leg.CleanCluster(id)
		}
	}
}

// tryDirect attempts to host the molecule at exactly the given tile.
func (f *flatRecon) tryDirect(mol prepack.MoleculeID, t device.TileLoc) bool {
	for _, id := range f.clustersAt[t] {
		if !f.leg.ClusterHasFreeLeaf(id) || !f.leg.IsMoleculeCompatible(mol, id) {
			continue
		}
		if f.leg.AddMolToCluster(mol, id) == legalizer.StatusPassed {
			return true
		}
	}
	tt := f.in.Grid.TileTypeAt(t)
	if tt == nil {
		return false
	}
	for _, bt := range f.in.Arch.CandidateBlockTypes(f.in.Prepack.RootModel(mol)) {
		if !tt.CompatibleWith(bt.Name) {
			continue
		}
		if id, st := f.leg.StartNewCluster(mol, bt, legalizer.AnyMode); st == legalizer.StatusPassed {
			f.clustersAt[t] = append(f.clustersAt[t], id)
			f.desired[id] = t
			return true
		}
	}
	return false
}

// revalidateTile runs the full legality proof over every cluster
// created at the tile, destroys the failures, and returns their
// molecules.
func (f *flatRecon) revalidateTile(t device.TileLoc) []prepack.MoleculeID {
	var failed []prepack.MoleculeID
	kept := f.clustersAt[t][:0]
	for _, id := range f.clustersAt[t] {
		if f.leg.CheckClusterLegality(id) {
			kept = append(kept, id)
			continue
		}
		failed = append(failed, f.leg.ClusterMolecules(id)...)
		delete(f.desired, id)
		f.leg.DestroyCluster(id)
	}
	f.clustersAt[t] = kept
	return failed
}

// expansionPass clusters the overflow: each leftover molecule seeds a
// cluster at its desired tile and absorbs compatible leftovers from
// tiles at increasing Manhattan distance. The pass runs twice, fast
// then full; fast-built clusters that fail the final proof dissolve
// back into the pool for the full round.
func (f *flatRecon) expansionPass() error {
	for _, strategy := range []legalizer.Strategy{legalizer.StrategyFast, legalizer.StrategyFull} {
		f.leg.SetStrategy(strategy)

		pool := f.leg.UnclusteredMolecules()
		f.byPackPriority(pool)
		poolByTile := make(map[device.TileLoc][]prepack.MoleculeID)
		for _, mol := range pool {
			t := f.molTile(mol)
			poolByTile[t] = append(poolByTile[t], mol)
		}

		for _, seed := range pool {
			if f.leg.MoleculeCluster(seed).IsValid() {
				continue
			}
			t := f.molTile(seed)
			id, err := seedAnywhere(f.in, f.leg, seed)
			if err != nil {
				if strategy == legalizer.StrategyFast {
					// Leave it for the full round.
					continue
				}
				return err
			}

			f.absorbRings(id, t, poolByTile)

			if strategy == legalizer.StrategyFast && !f.leg.CheckClusterLegality(id) {
				f.leg.DestroyCluster(id)
				continue
			}
			f.leg.CleanCluster(id)
			f.desired[id] = t
		}
	}

	if left := f.leg.UnclusteredMolecules(); len(left) > 0 {
		return errors.New(errors.ErrCodeSeedUnclusterable,
			"%d molecules remain unclustered after the expansion pass", len(left))
	}
	return nil
}

// absorbRings grows the cluster from nearby leftovers, ring by ring,
// stopping as soon as the internal hierarchy runs out of free leaves.
func (f *flatRecon) absorbRings(id legalizer.ClusterID, center device.TileLoc, poolByTile map[device.TileLoc][]prepack.MoleculeID) {
	for r := 0; r <= neighborSearchRadius; r++ {
		if !f.leg.ClusterHasFreeLeaf(id) {
			return
		}
		for _, t := range f.in.Grid.Ring(center, r) {
			for _, mol := range poolByTile[t] {
				if f.leg.MoleculeCluster(mol).IsValid() {
					continue
				}
				if !f.leg.ClusterHasFreeLeaf(id) {
					return
				}
				if f.leg.IsMoleculeCompatible(mol, id) {
					f.leg.AddMolToCluster(mol, id)
				}
			}
		}
	}
}

func sortTiles(tiles []device.TileLoc) {
	sort.Slice(tiles, func(i, j int) bool {
		a, b := tiles[i], tiles[j]
		if a.Layer != b.Layer {
			return a.Layer < b.Layer
		}
		if a.X != b.X {
			return a.X < b.X
		}
		return a.Y < b.Y
	})
}
