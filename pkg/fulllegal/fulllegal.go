// Package fulllegal turns a partial (continuous) placement into a
// complete, legal cluster partition with a concrete slot per cluster.
//
// Three interchangeable strategies share one contract: Naive buckets
// blocks into tiles and clusters within each bucket; HintPack
// delegates to the greedy clusterer with the placement as a soft
// hint; FlatRecon reconstructs clusters in three phases while
// minimizing displacement from the continuous positions. All three
// either produce a fully legal result or fail the run; none emit a
// partial answer.
package fulllegal

import (
	"github.com/charmbracelet/log"

	"github.com/selimozt/fabpack/pkg/arch"
	"github.com/selimozt/fabpack/pkg/device"
	"github.com/selimozt/fabpack/pkg/errors"
	"github.com/selimozt/fabpack/pkg/legalizer"
	"github.com/selimozt/fabpack/pkg/netlist"
	"github.com/selimozt/fabpack/pkg/pack"
	"github.com/selimozt/fabpack/pkg/place"
	"github.com/selimozt/fabpack/pkg/prepack"
)

// Kind selects a full legalizer strategy.
type Kind string

const (
	// KindNaive is the tile-bucketing legalizer.
	KindNaive Kind = "naive"
	// KindHintPack delegates to the greedy clusterer with a placement
	// hint.
	KindHintPack Kind = "hintpack"
	// KindFlatRecon is the displacement-minimizing reconstruction.
	KindFlatRecon Kind = "flatrecon"
)

// Kinds lists the supported strategies.
func Kinds() []Kind { return []Kind{KindNaive, KindHintPack, KindFlatRecon} }

// Inputs is everything a full legalizer consumes. All fields are
// read-only to the legalizer except the grid-backed registry it
// creates itself.
type Inputs struct {
	Netlist *netlist.Netlist
	Prepack *prepack.Prepacker
	Arch    *arch.Architecture
	Grid    *device.Grid
	Partial *place.Partial

	// Oracle optionally drives timing-aware seeding where the strategy
	// supports it.
	Oracle pack.CriticalityOracle

	// TargetExtPinUtil scales the external input pin budget during
	// packing. Zero means no scaling.
	TargetExtPinUtil float64

	// Logger receives progress output. Nil means the default logger.
	Logger *log.Logger
}

// Result is the output of a successful legalization: the cluster
// partition, the slot per cluster, macro membership, and the desired
// tile each cluster was aiming for (for displacement reporting).
type Result struct {
	Legalizer *legalizer.ClusterLegalizer
	Registry  *place.Registry
	Macros    *place.MacroSet
	Desired   map[legalizer.ClusterID]device.TileLoc
	Pack      pack.Stats
}

// Displacement returns the Manhattan distance between a cluster's
// final tile and its desired tile.
func (r *Result) Displacement(id legalizer.ClusterID) int {
	loc, ok := r.Registry.LocOf(id)
	if !ok {
		return 0
	}
	return device.ManhattanDist(loc.Tile(), r.Desired[id])
}

// TotalDisplacement sums Displacement over all placed clusters.
func (r *Result) TotalDisplacement() int {
	total := 0
	for _, id := range r.Registry.Clusters() {
		total += r.Displacement(id)
	}
	return total
}

// FullLegalizer is the common contract of the strategy family.
type FullLegalizer interface {
	// Legalize runs the strategy to completion. A non-nil error means
	// the run failed and no output exists for any block.
	Legalize() (*Result, error)
}

// New returns the legalizer for a kind.
func New(kind Kind, in Inputs) (FullLegalizer, error) {
	if in.Logger == nil {
		in.Logger = log.Default()
	}
	switch kind {
	case KindNaive:
		return &naive{in: in}, nil
	case KindHintPack:
		return &hintPack{in: in}, nil
	case KindFlatRecon:
		return &flatRecon{in: in}, nil
	}
	return nil, errors.New(errors.ErrCodeInvalidConfig, "unknown full legalizer %q", kind)
}

// checkDeviceCapacity fails fast when the netlist needs more cluster
// slots of some block type than the whole device offers. The bound is
// optimistic (it assumes maximal packing), so failing it guarantees
// the instance is infeasible.
func checkDeviceCapacity(in Inputs) error {
	needed := make(map[string]int)
	for _, mol := range in.Prepack.Molecules() {
		model := in.Prepack.RootModel(mol)
		cands := in.Arch.CandidateBlockTypes(model)
		if len(cands) == 0 {
			return errors.New(errors.ErrCodeInvalidArch, "no block type can host model %q", model)
		}
		// Attribute the molecule to its first candidate type.
		needed[cands[0].Name]++
	}
	for bt, mols := range needed {
		capacity := in.Grid.CapacityFor(bt)
		minClusters := minClustersFor(in, bt, mols)
		if minClusters > capacity {
			return errors.New(errors.ErrCodeDeviceExhausted,
				"netlist needs at least %d %s clusters but the device offers %d slots",
				minClusters, bt, capacity)
		}
	}
	return nil
}

// minClustersFor lower-bounds the cluster count for a block type given
// the number of molecules attributed to it.
func minClustersFor(in Inputs, blockType string, mols int) int {
	bt := in.Arch.BlockType(blockType)
	if bt == nil {
		return mols
	}
	perCluster := 0
	for i := range bt.Modes {
		if n := bt.Modes[i].NumLeaves(); n > perCluster {
			perCluster = n
		}
	}
	if perCluster == 0 {
		return mols
	}
	return (mols + perCluster - 1) / perCluster
}
