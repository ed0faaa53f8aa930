package fulllegal

import (
	"github.com/selimozt/fabpack/pkg/device"
	"github.com/selimozt/fabpack/pkg/legalizer"
	"github.com/selimozt/fabpack/pkg/pack"
)

// hintPack delegates clustering entirely to the greedy clusterer with
// the continuous placement wired in as a soft candidate-selection
// bias, then places each cluster near the centroid of its atoms.
type hintPack struct {
	in Inputs
}

func (h *hintPack) Legalize() (*Result, error) {
	if err := checkDeviceCapacity(h.in); err != nil {
		return nil, err
	}
	leg := legalizer.New(h.in.Netlist, h.in.Prepack, h.in.Arch, legalizer.Config{
		TargetExtPinUtil: h.in.TargetExtPinUtil,
		Logger:           h.in.Logger,
	})
	g := pack.NewGreedyClusterer(h.in.Netlist, h.in.Prepack, h.in.Arch, leg, pack.Config{
		Hint:   h.in.Partial,
		Grid:   h.in.Grid,
		Oracle: h.in.Oracle,
		Logger: h.in.Logger,
	})
	stats, err := g.Run()
	if err != nil {
		return nil, err
	}

	desired := make(map[legalizer.ClusterID]device.TileLoc)
	for _, id := range leg.Clusters() {
		desired[id] = h.in.Partial.CentroidTile(h.in.Grid, leg.ClusterAtoms(id))
	}
	reg, ms, err := placeAll(h.in, leg, desired)
	if err != nil {
		return nil, err
	}
	return &Result{
		Legalizer: leg,
		Registry:  reg,
		Macros:    ms,
		Desired:   desired,
		Pack:      stats,
	}, nil
}
