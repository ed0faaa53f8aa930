package pack

import (
	"sort"

	"github.com/selimozt/fabpack/pkg/device"
	"github.com/selimozt/fabpack/pkg/legalizer"
	"github.com/selimozt/fabpack/pkg/netlist"
	"github.com/selimozt/fabpack/pkg/place"
	"github.com/selimozt/fabpack/pkg/prepack"
)

// DefaultHighFanoutThreshold is the fanout above which a net stops
// contributing connectivity gain. Very wide nets (clocks, resets)
// connect everything to everything and carry no locality signal.
const DefaultHighFanoutThreshold = 64

// candidateSelector scores unclustered molecules against the cluster
// under construction. Gain favors molecules transitively connected
// through the cluster's nets; molecules in the seed's attraction group
// get a flat bonus; an optional placement hint penalizes distance from
// the cluster's desired tile.
type candidateSelector struct {
	nl  *netlist.Netlist
	pp  *prepack.Prepacker
	leg *legalizer.ClusterLegalizer

	highFanout int
	attraction map[prepack.MoleculeID]int
	seedGroup  int

	hint        *place.Partial
	grid        *device.Grid
	desiredTile device.TileLoc

	gain     map[prepack.MoleculeID]float64
	rejected map[prepack.MoleculeID]bool
}

func newCandidateSelector(nl *netlist.Netlist, pp *prepack.Prepacker, leg *legalizer.ClusterLegalizer, highFanout int) *candidateSelector {
	if highFanout <= 0 {
		highFanout = DefaultHighFanoutThreshold
	}
	return &candidateSelector{
		nl:         nl,
		pp:         pp,
		leg:        leg,
		highFanout: highFanout,
		seedGroup:  -1,
		gain:       make(map[prepack.MoleculeID]float64),
		rejected:   make(map[prepack.MoleculeID]bool),
	}
}

// attractionBonus is added to every candidate sharing the seed's
// attraction group. It dominates single-net connectivity but not a
// molecule with several shared nets.
const attractionBonus = 2.0

// reset prepares the selector for a fresh cluster grown from seed.
func (c *candidateSelector) reset(seed prepack.MoleculeID) {
	clear(c.gain)
	clear(c.rejected)
	c.seedGroup = -1
	if c.attraction != nil {
		if g, ok := c.attraction[seed]; ok {
			c.seedGroup = g
		}
	}
	c.absorb(seed)
}

// absorb folds a newly added molecule's nets into the gain map.
// Each net below the fanout threshold contributes 1/fanout to every
// unclustered molecule it reaches, so tightly coupled small nets
// dominate.
func (c *candidateSelector) absorb(mol prepack.MoleculeID) {
	delete(c.gain, mol)
	m := c.pp.Molecule(mol)
	for _, a := range m.Atoms {
		for _, nid := range c.nl.AtomNets(a) {
			net := c.nl.Net(nid)
			pins := len(net.Sinks) + 1
			if pins > c.highFanout {
				continue
			}
			share := 1.0 / float64(pins)
			c.credit(net.Driver.Atom, share)
			for _, s := range net.Sinks {
				c.credit(s.Atom, share)
			}
		}
	}
}

// reject marks a molecule as refused by the current cluster so it is
// not proposed again.
func (c *candidateSelector) reject(mol prepack.MoleculeID) {
	c.rejected[mol] = true
}

func (c *candidateSelector) credit(a netlist.AtomID, share float64) {
	if !a.IsValid() {
		return
	}
	mol := c.pp.MoleculeOf(a)
	if !mol.IsValid() || c.leg.MoleculeCluster(mol).IsValid() {
		return
	}
	c.gain[mol] += share
}

// next returns the best-gain unclustered molecule that passes the
// cluster's compatibility pre-filter, or InvalidMolecule. Ties break
// toward the lower molecule identifier. Molecules the cluster already
// rejected are skipped. When connectivity offers nothing,
// attraction-group members are consulted before giving up.
func (c *candidateSelector) next(id legalizer.ClusterID) prepack.MoleculeID {
	best := prepack.InvalidMolecule
	bestGain := 0.0

	mols := make([]prepack.MoleculeID, 0, len(c.gain))
	for mol := range c.gain {
		mols = append(mols, mol)
	}
	sort.Slice(mols, func(i, j int) bool { return mols[i] < mols[j] })

	for _, mol := range mols {
		if c.leg.MoleculeCluster(mol).IsValid() {
			delete(c.gain, mol)
			continue
		}
		if c.rejected[mol] {
			continue
		}
		g := c.gain[mol]
		if c.seedGroup >= 0 && c.attraction[mol] == c.seedGroup {
			g += attractionBonus
		}
		if c.hint != nil {
			g -= c.distancePenalty(mol)
		}
		if g > bestGain && c.leg.IsMoleculeCompatible(mol, id) {
			best, bestGain = mol, g
		}
	}
	if best.IsValid() {
		return best
	}

	// No connected candidate; fall back to the attraction group.
	if c.seedGroup >= 0 {
		groupMols := make([]prepack.MoleculeID, 0)
		for mol, g := range c.attraction {
			if g == c.seedGroup {
				groupMols = append(groupMols, mol)
			}
		}
		sort.Slice(groupMols, func(i, j int) bool { return groupMols[i] < groupMols[j] })
		for _, mol := range groupMols {
			if c.rejected[mol] || c.leg.MoleculeCluster(mol).IsValid() {
				continue
			}
			if c.leg.IsMoleculeCompatible(mol, id) {
				return mol
			}
		}
	}
	return prepack.InvalidMolecule
}

// distancePenalty converts tile distance from the cluster's desired
// tile into a gain penalty, normalized so a molecule across the whole
// device loses about one net's worth of gain.
func (c *candidateSelector) distancePenalty(mol prepack.MoleculeID) float64 {
	span := c.grid.Width() + c.grid.Height()
	if span == 0 {
		return 0
	}
	t := c.hint.CentroidTile(c.grid, c.pp.Molecule(mol).Atoms)
	return float64(device.ManhattanDist(t, c.desiredTile)) / float64(span)
}
