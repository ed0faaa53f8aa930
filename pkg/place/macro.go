package place

import (
	"sort"

	"github.com/selimozt/fabpack/pkg/legalizer"
	"github.com/selimozt/fabpack/pkg/prepack"
)

// MacroMember is one cluster of a macro with its offset from the
// macro's head tile.
type MacroMember struct {
	Cluster legalizer.ClusterID
	DX, DY  int
	DLayer  int
}

// Macro is a group of clusters with fixed relative offsets that must
// be placed together. Member zero is the head and has offset zero.
type Macro struct {
	Members []MacroMember
}

// Head returns the head cluster.
func (m *Macro) Head() legalizer.ClusterID { return m.Members[0].Cluster }

// MacroSet indexes macros by member cluster.
type MacroSet struct {
	macros    []Macro
	ofCluster map[legalizer.ClusterID]int
}

// Macros returns all macros.
func (s *MacroSet) Macros() []Macro { return s.macros }

// Of returns the macro a cluster belongs to, or nil.
func (s *MacroSet) Of(id legalizer.ClusterID) *Macro {
	if s == nil {
		return nil
	}
	if i, ok := s.ofCluster[id]; ok {
		return &s.macros[i]
	}
	return nil
}

// BuildMacros derives placement macros from chain molecules: when one
// prepacked chain spans several clusters, those clusters must stay
// vertically adjacent in chain order. Clusters are ordered within a
// macro by the lowest chain index they contain, stacked one tile apart
// in y.
func BuildMacros(leg *legalizer.ClusterLegalizer, pp *prepack.Prepacker) *MacroSet {
	type chainSpan struct {
		cluster  legalizer.ClusterID
		minIndex int
	}
	spans := make(map[prepack.ChainID]map[legalizer.ClusterID]int)

	for _, cid := range leg.Clusters() {
		for _, mol := range leg.ClusterMolecules(cid) {
			m := pp.Molecule(mol)
			if m.Chain == prepack.InvalidChain {
				continue
			}
			byCluster, ok := spans[m.Chain]
			if !ok {
				byCluster = make(map[legalizer.ClusterID]int)
				spans[m.Chain] = byCluster
			}
			if idx, ok := byCluster[cid]; !ok || m.ChainIndex < idx {
				byCluster[cid] = m.ChainIndex
			}
		}
	}

	chains := make([]prepack.ChainID, 0, len(spans))
	for c := range spans {
		chains = append(chains, c)
	}
	sort.Slice(chains, func(i, j int) bool { return chains[i] < chains[j] })

	set := &MacroSet{ofCluster: make(map[legalizer.ClusterID]int)}
	for _, chain := range chains {
		byCluster := spans[chain]
		if len(byCluster) < 2 {
			continue
		}
		members := make([]chainSpan, 0, len(byCluster))
		for cid, idx := range byCluster {
			members = append(members, chainSpan{cluster: cid, minIndex: idx})
		}
		sort.Slice(members, func(i, j int) bool {
			if members[i].minIndex != members[j].minIndex {
				return members[i].minIndex < members[j].minIndex
			}
			return members[i].cluster < members[j].cluster
		})

		var macro Macro
		for i, m := range members {
			macro.Members = append(macro.Members, MacroMember{Cluster: m.cluster, DY: i})
		}
		for _, m := range macro.Members {
			set.ofCluster[m.Cluster] = len(set.macros)
		}
		set.macros = append(set.macros, macro)
	}
	return set
}
