// Package legalizer builds and proves legality of clusters: groups of
// molecules bound to an architecture block type and mode.
//
// # Two-Tier Checking
//
// Proving that a cluster can route its internal nets is expensive, so
// the legalizer runs in one of two strategies. The fast tier checks
// only necessary conditions (leaf capacity and boundary pin budgets)
// on every mutation; a cluster filled this way is authoritative only
// after CheckClusterLegality. The full tier additionally enforces the
// routing bound per mutation and never defers.
//
// All statuses short of success are recoverable by the caller. The
// legalizer never aborts a run.
package legalizer

import (
	"sort"

	"github.com/charmbracelet/log"

	"github.com/selimozt/fabpack/pkg/arch"
	"github.com/selimozt/fabpack/pkg/netlist"
	"github.com/selimozt/fabpack/pkg/prepack"
)

// Config tunes a ClusterLegalizer. The zero value is usable: fast
// strategy, pin filter on, full pin budgets.
type Config struct {
	// Strategy is the initial checking tier.
	Strategy Strategy

	// TargetExtPinUtil scales the external input pin budget of every
	// mode, in (0, 1]. Leaving headroom on cluster inputs helps the
	// downstream router. Zero means 1.0 (no headroom).
	TargetExtPinUtil float64

	// DisablePinFilter turns off the boundary pin feasibility check on
	// both tiers. Leaf capacity is always enforced.
	DisablePinFilter bool

	// Logger receives per-mutation trace output at debug level. Nil
	// means the default logger.
	Logger *log.Logger
}

// ClusterLegalizer owns every cluster of one run. It is constructed
// once and handed to whichever packing driver runs; it is not safe for
// concurrent use.
type ClusterLegalizer struct {
	nl  *netlist.Netlist
	pp  *prepack.Prepacker
	ar  *arch.Architecture
	cfg Config
	log *log.Logger

	strategy Strategy

	clusters   []*cluster
	molCluster []ClusterID
	atomOf     map[netlist.AtomID]ClusterID
}

// New creates a legalizer over a prepacked netlist.
func New(nl *netlist.Netlist, pp *prepack.Prepacker, ar *arch.Architecture, cfg Config) *ClusterLegalizer {
	if cfg.TargetExtPinUtil <= 0 || cfg.TargetExtPinUtil > 1 {
		cfg.TargetExtPinUtil = 1.0
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	mc := make([]ClusterID, pp.NumMolecules())
	for i := range mc {
		mc[i] = InvalidCluster
	}
	return &ClusterLegalizer{
		nl:         nl,
		pp:         pp,
		ar:         ar,
		cfg:        cfg,
		log:        logger,
		strategy:   cfg.Strategy,
		molCluster: mc,
		atomOf:     make(map[netlist.AtomID]ClusterID),
	}
}

// SetStrategy switches the checking tier for subsequent mutations.
// Existing clusters are unaffected.
func (l *ClusterLegalizer) SetStrategy(s Strategy) { l.strategy = s }

// Strategy returns the currently configured checking tier.
func (l *ClusterLegalizer) Strategy() Strategy { return l.strategy }

// AnyMode requests that StartNewCluster pick the first mode of the
// block type that accepts the seed.
const AnyMode = -1

// StartNewCluster founds a cluster around a seed molecule. When mode
// is AnyMode, the block type's modes are tried in declaration order
// and the first one that accepts the seed wins. StatusNoLegalMode
// means no mode of the type can hold the seed's primitives at all;
// other failure statuses report why the last attempted mode refused
// it.
func (l *ClusterLegalizer) StartNewCluster(mol prepack.MoleculeID, bt *arch.BlockType, mode int) (ClusterID, Status) {
	m := l.pp.Molecule(mol)
	if l.molCluster[mol].IsValid() {
		return InvalidCluster, StatusUndefined
	}

	modes := []int{mode}
	if mode == AnyMode {
		modes = modes[:0]
		for i := range bt.Modes {
			modes = append(modes, i)
		}
	}

	anyFits := false
	last := StatusNoLegalMode
	for _, mi := range modes {
		if mi < 0 || mi >= len(bt.Modes) {
			continue
		}
		if !modeFits(&bt.Modes[mi], m, l.nl) {
			continue
		}
		anyFits = true
		c := &cluster{
			blockType: bt,
			modeIdx:   mi,
			atoms:     make(map[netlist.AtomID]struct{}),
			tree:      newPBTree(&bt.Modes[mi]),
		}
		st := l.tryAdd(c, mol)
		if st == StatusPassed {
			id := ClusterID(len(l.clusters))
			l.clusters = append(l.clusters, c)
			l.commit(c, id, mol)
			l.log.Debug("started cluster", "cluster", id, "type", bt.Name, "mode", bt.Modes[mi].Name, "seed", mol)
			return id, StatusPassed
		}
		last = st
	}
	if !anyFits {
		return InvalidCluster, StatusNoLegalMode
	}
	return InvalidCluster, last
}

// modeFits reports whether a mode declares enough leaf slots for every
// primitive model the molecule uses. It ignores occupancy.
func modeFits(mode *arch.Mode, m *prepack.Molecule, nl *netlist.Netlist) bool {
	need := make(map[string]int)
	for _, a := range m.Atoms {
		need[nl.Atom(a).Model]++
	}
	for model, n := range need {
		if mode.ModelCapacity(model) < n {
			return false
		}
	}
	return true
}

// AddMolToCluster attempts to add a molecule to an existing cluster
// under the currently configured strategy. On success the molecule
// leaves the unclustered pool and the cluster's sub-block assignment
// is extended.
func (l *ClusterLegalizer) AddMolToCluster(mol prepack.MoleculeID, id ClusterID) Status {
	c := l.clusterAt(id)
	if c == nil || c.cleaned || l.molCluster[mol].IsValid() {
		return StatusUndefined
	}
	st := l.tryAdd(c, mol)
	if st == StatusPassed {
		l.commit(c, id, mol)
	}
	return st
}

// IsMoleculeCompatible is a cheap pre-filter: it rejects molecules
// that cannot possibly join the cluster (no free leaf slots of the
// right models) without touching pin or routing state.
func (l *ClusterLegalizer) IsMoleculeCompatible(mol prepack.MoleculeID, id ClusterID) bool {
	c := l.clusterAt(id)
	if c == nil || c.cleaned || l.molCluster[mol].IsValid() {
		return false
	}
	m := l.pp.Molecule(mol)
	need := make(map[string]int)
	for _, a := range m.Atoms {
		need[l.nl.Atom(a).Model]++
	}
	for model, n := range need {
		if c.tree.freeLeaves(model) < n {
			return false
		}
	}
	return true
}

// tryAdd runs the strategy-appropriate checks for adding a molecule to
// a cluster and, if they pass, mutates the cluster's tree. Membership
// bookkeeping is left to commit.
func (l *ClusterLegalizer) tryAdd(c *cluster, mol prepack.MoleculeID) Status {
	m := l.pp.Molecule(mol)

	need := make(map[string]int)
	for _, a := range m.Atoms {
		need[l.nl.Atom(a).Model]++
	}
	for model, n := range need {
		if c.tree.freeLeaves(model) < n {
			return StatusCapacityExceeded
		}
	}

	mode := c.mode()
	if !l.cfg.DisablePinFilter || l.strategy == StrategyFull {
		u := c.usageWith(l.nl, m.Atoms)
		if !l.cfg.DisablePinFilter {
			if in := inputBudget(mode.InputPins, l.cfg.TargetExtPinUtil); in > 0 && u.ExtInputs > in {
				return StatusPinFeasibilityFailed
			}
			if mode.OutputPins > 0 && u.ExtOutputs > mode.OutputPins {
				return StatusPinFeasibilityFailed
			}
			if mode.ClockPins > 0 && u.Clocks > mode.ClockPins {
				return StatusPinFeasibilityFailed
			}
		}
		if l.strategy == StrategyFull {
			if mode.RoutingChannels > 0 && u.Nets > mode.RoutingChannels {
				return StatusIntraRouteInfeasible
			}
		}
	}

	for _, a := range m.Atoms {
		leaf := c.tree.findFreeLeaf(l.nl.Atom(a).Model)
		c.tree.assign(leaf, a)
	}
	return StatusPassed
}

// inputBudget applies the external pin utilization target to a mode's
// declared input pin count. A positive declared count always yields a
// budget of at least one pin.
func inputBudget(pins int, util float64) int {
	if pins <= 0 {
		return 0
	}
	b := int(float64(pins) * util)
	if b < 1 {
		b = 1
	}
	return b
}

// commit records molecule and atom membership after a successful add.
func (l *ClusterLegalizer) commit(c *cluster, id ClusterID, mol prepack.MoleculeID) {
	m := l.pp.Molecule(mol)
	c.molecules = append(c.molecules, mol)
	for _, a := range m.Atoms {
		c.atoms[a] = struct{}{}
		l.atomOf[a] = id
	}
	l.molCluster[mol] = id
}

// CheckClusterLegality re-proves a cluster legal under the full tier,
// independent of the strategy used while filling it. The internal tree
// is rebuilt from scratch and every molecule re-placed, so the result
// does not trust any earlier fast-tier acceptance.
func (l *ClusterLegalizer) CheckClusterLegality(id ClusterID) bool {
	c := l.clusterAt(id)
	if c == nil {
		return false
	}
	mode := c.mode()
	tree := newPBTree(mode)
	for _, mol := range c.molecules {
		m := l.pp.Molecule(mol)
		for _, a := range m.Atoms {
			leaf := tree.findFreeLeaf(l.nl.Atom(a).Model)
			if leaf < 0 {
				return false
			}
			tree.assign(leaf, a)
		}
	}
	u := c.usageWith(l.nl, nil)
	if !l.cfg.DisablePinFilter {
		if in := inputBudget(mode.InputPins, l.cfg.TargetExtPinUtil); in > 0 && u.ExtInputs > in {
			return false
		}
		if mode.OutputPins > 0 && u.ExtOutputs > mode.OutputPins {
			return false
		}
		if mode.ClockPins > 0 && u.Clocks > mode.ClockPins {
			return false
		}
	}
	if mode.RoutingChannels > 0 && u.Nets > mode.RoutingChannels {
		return false
	}
	return true
}

// CleanCluster discards a finalized cluster's construction
// bookkeeping. The membership is frozen; further adds are refused.
func (l *ClusterLegalizer) CleanCluster(id ClusterID) {
	c := l.clusterAt(id)
	if c == nil || c.cleaned {
		return
	}
	c.tree = nil
	c.cleaned = true
}

// DestroyCluster tears a cluster down and returns its molecules to the
// unclustered pool. The identifier becomes invalid until Compress
// reclaims the slot.
func (l *ClusterLegalizer) DestroyCluster(id ClusterID) {
	c := l.clusterAt(id)
	if c == nil {
		return
	}
	for _, mol := range c.molecules {
		l.molCluster[mol] = InvalidCluster
	}
	for a := range c.atoms {
		delete(l.atomOf, a)
	}
	l.clusters[id] = nil
	l.log.Debug("destroyed cluster", "cluster", id)
}

// Compress reclaims the identifier space of destroyed clusters.
// Surviving clusters keep their relative order and are renumbered
// densely; the returned map gives old-to-new identifiers so callers
// holding ClusterIDs can rewrite them.
func (l *ClusterLegalizer) Compress() map[ClusterID]ClusterID {
	remap := make(map[ClusterID]ClusterID)
	kept := l.clusters[:0]
	for old, c := range l.clusters {
		if c == nil {
			continue
		}
		id := ClusterID(len(kept))
		kept = append(kept, c)
		remap[ClusterID(old)] = id
	}
	l.clusters = kept
	for mol, id := range l.molCluster {
		if id.IsValid() {
			l.molCluster[mol] = remap[id]
		}
	}
	for a, id := range l.atomOf {
		l.atomOf[a] = remap[id]
	}
	return remap
}

// NumClusters returns the number of live clusters.
func (l *ClusterLegalizer) NumClusters() int {
	n := 0
	for _, c := range l.clusters {
		if c != nil {
			n++
		}
	}
	return n
}

// Clusters returns the live cluster identifiers in ascending order.
func (l *ClusterLegalizer) Clusters() []ClusterID {
	ids := make([]ClusterID, 0, len(l.clusters))
	for i, c := range l.clusters {
		if c != nil {
			ids = append(ids, ClusterID(i))
		}
	}
	return ids
}

// MoleculeCluster returns the cluster a molecule belongs to, or
// InvalidCluster while it is unclustered.
func (l *ClusterLegalizer) MoleculeCluster(mol prepack.MoleculeID) ClusterID {
	return l.molCluster[mol]
}

// AtomCluster returns the cluster an atom belongs to, or
// InvalidCluster.
func (l *ClusterLegalizer) AtomCluster(a netlist.AtomID) ClusterID {
	if id, ok := l.atomOf[a]; ok {
		return id
	}
	return InvalidCluster
}

// ClusterType returns the block type a cluster is bound to.
func (l *ClusterLegalizer) ClusterType(id ClusterID) *arch.BlockType {
	if c := l.clusterAt(id); c != nil {
		return c.blockType
	}
	return nil
}

// ClusterMode returns the mode a cluster is bound to.
func (l *ClusterLegalizer) ClusterMode(id ClusterID) *arch.Mode {
	if c := l.clusterAt(id); c != nil {
		return c.mode()
	}
	return nil
}

// ClusterMolecules returns the molecules of a cluster in the order
// they were added.
func (l *ClusterLegalizer) ClusterMolecules(id ClusterID) []prepack.MoleculeID {
	if c := l.clusterAt(id); c != nil {
		return c.molecules
	}
	return nil
}

// ClusterAtoms returns a cluster's atoms in ascending identifier
// order.
func (l *ClusterLegalizer) ClusterAtoms(id ClusterID) []netlist.AtomID {
	c := l.clusterAt(id)
	if c == nil {
		return nil
	}
	atoms := make([]netlist.AtomID, 0, len(c.atoms))
	for a := range c.atoms {
		atoms = append(atoms, a)
	}
	sort.Slice(atoms, func(i, j int) bool { return atoms[i] < atoms[j] })
	return atoms
}

// ClusterUsage returns the current boundary pin accounting of a
// cluster.
func (l *ClusterLegalizer) ClusterUsage(id ClusterID) Usage {
	if c := l.clusterAt(id); c != nil {
		return c.usageWith(l.nl, nil)
	}
	return Usage{}
}

// ClusterHasFreeLeaf reports whether any leaf slot of the cluster's
// internal hierarchy is still empty. Cleaned clusters have no
// hierarchy and report false.
func (l *ClusterLegalizer) ClusterHasFreeLeaf(id ClusterID) bool {
	c := l.clusterAt(id)
	if c == nil || c.cleaned {
		return false
	}
	return len(c.tree.leafOf) < c.tree.numLeaves()
}

// ClusterIsCleaned reports whether a cluster's membership is frozen.
func (l *ClusterLegalizer) ClusterIsCleaned(id ClusterID) bool {
	c := l.clusterAt(id)
	return c != nil && c.cleaned
}

// UnclusteredMolecules returns the molecules not yet in any cluster,
// in creation order.
func (l *ClusterLegalizer) UnclusteredMolecules() []prepack.MoleculeID {
	var out []prepack.MoleculeID
	for mol, id := range l.molCluster {
		if !id.IsValid() {
			out = append(out, prepack.MoleculeID(mol))
		}
	}
	return out
}

func (l *ClusterLegalizer) clusterAt(id ClusterID) *cluster {
	if !id.IsValid() || int(id) >= len(l.clusters) {
		return nil
	}
	return l.clusters[id]
}
