package fulllegal

import (
	"github.com/selimozt/fabpack/pkg/device"
	"github.com/selimozt/fabpack/pkg/errors"
	"github.com/selimozt/fabpack/pkg/legalizer"
	"github.com/selimozt/fabpack/pkg/netlist"
	"github.com/selimozt/fabpack/pkg/pack"
	"github.com/selimozt/fabpack/pkg/place"
	"github.com/selimozt/fabpack/pkg/prepack"
)

// seedAnywhere founds a cluster on the seed, trying every candidate
// block type. Failure under the configured strategy is fatal here:
// callers use it only where no further fallback exists.
func seedAnywhere(in Inputs, leg *legalizer.ClusterLegalizer, seed prepack.MoleculeID) (legalizer.ClusterID, error) {
	model := in.Prepack.RootModel(seed)
	for _, bt := range in.Arch.CandidateBlockTypes(model) {
		if id, st := leg.StartNewCluster(seed, bt, legalizer.AnyMode); st == legalizer.StatusPassed {
			return id, nil
		}
	}
	return legalizer.InvalidCluster, errors.New(errors.ErrCodeSeedUnclusterable,
		"molecule %d (%s) cannot seed any cluster", seed, model)
}

// placeAll derives macros and binds every cluster to a concrete slot,
// nearest its desired tile first. Any placement failure aborts with no
// partial assignment surviving.
func placeAll(in Inputs, leg *legalizer.ClusterLegalizer, desired map[legalizer.ClusterID]device.TileLoc) (*place.Registry, *place.MacroSet, error) {
	reg := place.NewRegistry(in.Grid)
	ms := place.BuildMacros(leg, in.Prepack)
	p := place.NewClusterPlacer(leg, reg, in.Logger)
	p.SetMacros(ms)

	for _, id := range leg.Clusters() {
		if err := p.PlaceClusterHinted(id, desired[id], clusterSubTileHint(in, leg, id)); err != nil {
			return nil, nil, errors.Wrap(errors.ErrCodeDeviceExhausted, err,
				"placing cluster %d near %v", id, desired[id])
		}
	}
	return reg, ms, nil
}

// clusterSubTileHint returns the upstream sub-tile preference for a
// cluster: the hint of the position-wise first atom that carries one,
// or -1 when none does.
func clusterSubTileHint(in Inputs, leg *legalizer.ClusterLegalizer, id legalizer.ClusterID) int {
	if in.Partial == nil {
		return -1
	}
	atoms := append([]netlist.AtomID(nil), leg.ClusterAtoms(id)...)
	in.Partial.SortAtomsByPos(atoms)
	for _, a := range atoms {
		if h := in.Partial.SubTileHint(a); h >= 0 {
			return h
		}
	}
	return -1
}

// packStats recomputes run statistics from the finished partition.
func packStats(in Inputs, leg *legalizer.ClusterLegalizer) pack.Stats {
	st := pack.Stats{
		UsageByType:   make(map[string]int),
		LogicElements: make(map[string]int),
	}
	for _, id := range leg.Clusters() {
		st.NumClusters++
		st.UsageByType[leg.ClusterType(id).Name]++
		for _, a := range leg.ClusterAtoms(id) {
			st.LogicElements[in.Netlist.Atom(a).Model]++
		}
	}
	return st
}
