package fulllegal

import (
	"sort"

	"github.com/selimozt/fabpack/pkg/device"
	"github.com/selimozt/fabpack/pkg/legalizer"
	"github.com/selimozt/fabpack/pkg/prepack"
)

// naive is the tile-bucketing legalizer: every molecule falls into the
// tile containing its continuous position, each bucket is clustered
// greedily with the full strategy, and clusters land at their bucket's
// tile when possible.
type naive struct {
	in Inputs
}

func (n *naive) Legalize() (*Result, error) {
	if err := checkDeviceCapacity(n.in); err != nil {
		return nil, err
	}
	leg := legalizer.New(n.in.Netlist, n.in.Prepack, n.in.Arch, legalizer.Config{
		Strategy:         legalizer.StrategyFull,
		TargetExtPinUtil: n.in.TargetExtPinUtil,
		Logger:           n.in.Logger,
	})

	buckets := make(map[device.TileLoc][]prepack.MoleculeID)
	var tiles []device.TileLoc
	for _, mol := range n.in.Prepack.Molecules() {
		t := n.in.Partial.CentroidTile(n.in.Grid, n.in.Prepack.Molecule(mol).Atoms)
		if _, ok := buckets[t]; !ok {
			tiles = append(tiles, t)
		}
		buckets[t] = append(buckets[t], mol)
	}
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

	desired := make(map[legalizer.ClusterID]device.TileLoc)
	for _, tile := range tiles {
		for _, seed := range buckets[tile] {
			if leg.MoleculeCluster(seed).IsValid() {
				continue
			}
			id, err := seedAnywhere(n.in, leg, seed)
			if err != nil {
				return nil, err
			}
			// Absorb everything compatible from the same bucket.
			for _, mol := range buckets[tile] {
				if leg.MoleculeCluster(mol).IsValid() || !leg.IsMoleculeCompatible(mol, id) {
					continue
				}
				leg.AddMolToCluster(mol, id)
			}
			leg.CleanCluster(id)
			desired[id] = tile
		}
	}

	reg, ms, err := placeAll(n.in, leg, desired)
	if err != nil {
		return nil, err
	}
	return &Result{
		Legalizer: leg,
		Registry:  reg,
		Macros:    ms,
		Desired:   desired,
		Pack:      packStats(n.in, leg),
	}, nil
}
