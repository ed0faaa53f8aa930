// Package pack drives greedy clustering: picking seeds, scoring
// candidate molecules, and growing clusters one molecule at a time
// under the two-tier legality checking of the cluster legalizer.
package pack

import (
	"sort"

	"github.com/selimozt/fabpack/pkg/netlist"
	"github.com/selimozt/fabpack/pkg/prepack"
)

// CriticalityOracle supplies a timing criticality in [0, 1] per atom.
// The packer queries it, never computes it; implementations come from
// an upstream timing analyzer.
type CriticalityOracle interface {
	Criticality(a netlist.AtomID) float64
}

// SeedSelector hands out seed molecules in priority order. Priority is
// the molecule's external input count, blended with the maximum atom
// criticality when an oracle is present. Ties resolve by molecule
// creation order, so the sequence is deterministic for fixed input.
type SeedSelector struct {
	pp     *prepack.Prepacker
	sorted []prepack.MoleculeID
	next   int
	taken  func(prepack.MoleculeID) bool
}

// timingWeight balances criticality against external input count when
// timing-driven seeding is active.
const timingWeight = 0.8

// NewSeedSelector builds the priority order once, up front. The taken
// callback reports whether a molecule has been clustered since; such
// molecules are skipped on Next.
func NewSeedSelector(pp *prepack.Prepacker, oracle CriticalityOracle, taken func(prepack.MoleculeID) bool) *SeedSelector {
	s := &SeedSelector{pp: pp, taken: taken}

	maxExt := pp.MaxStats().ExtInputs
	if maxExt == 0 {
		maxExt = 1
	}
	score := make([]float64, pp.NumMolecules())
	for _, id := range pp.Molecules() {
		st := pp.Stats(id)
		gain := float64(st.ExtInputs) / float64(maxExt)
		if oracle != nil {
			crit := 0.0
			for _, a := range pp.Molecule(id).Atoms {
				if c := oracle.Criticality(a); c > crit {
					crit = c
				}
			}
			gain = timingWeight*crit + (1-timingWeight)*gain
		}
		score[id] = gain
	}

	s.sorted = append(s.sorted, pp.Molecules()...)
	sort.SliceStable(s.sorted, func(i, j int) bool {
		return score[s.sorted[i]] > score[s.sorted[j]]
	})
	return s
}

// Next returns the highest-priority molecule still unclustered, or
// InvalidMolecule when none remain.
func (s *SeedSelector) Next() prepack.MoleculeID {
	for s.next < len(s.sorted) {
		id := s.sorted[s.next]
		s.next++
		if !s.taken(id) {
			return id
		}
	}
	return prepack.InvalidMolecule
}

// Reset rewinds the selector to the start of the priority order.
// Molecules clustered in the meantime are still skipped.
func (s *SeedSelector) Reset() { s.next = 0 }
