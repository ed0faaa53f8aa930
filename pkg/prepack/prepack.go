// Package prepack groups primitive netlist atoms into molecules: the
// fixed-shape units that clustering operates on. A molecule is atomic
// with respect to cluster membership; all its atoms join a cluster
// together or not at all.
//
// Grouping follows the architecture's pack patterns: carry chains are
// followed through their dedicated chain ports and split into
// cluster-sized links, pair patterns capture single-fanout driver/sink
// couples (for example a LUT feeding its flip-flop), and every remaining
// atom becomes a singleton molecule. Molecules are computed once, up
// front, and are immutable for the rest of the run.
package prepack

import (
	"github.com/selimozt/fabpack/pkg/arch"
	"github.com/selimozt/fabpack/pkg/netlist"
)

// MoleculeID identifies a molecule. IDs are dense and assigned in a
// deterministic order derived from atom creation order.
type MoleculeID int32

// ChainID identifies a carry chain spanning one or more molecules.
type ChainID int32

// Invalid sentinel IDs.
const (
	InvalidMolecule MoleculeID = -1
	InvalidChain    ChainID    = -1
)

// IsValid reports whether the ID refers to a molecule.
func (id MoleculeID) IsValid() bool { return id >= 0 }

// IsValid reports whether the ID refers to a chain.
func (id ChainID) IsValid() bool { return id >= 0 }

// Molecule is an ordered, fixed-shape group of atoms. The first atom is
// the root.
type Molecule struct {
	Atoms   []netlist.AtomID
	Pattern string // matching pack pattern name, empty for singletons

	// Chain membership: molecules of one chain must be placed at fixed
	// relative offsets (they become a placement macro downstream).
	Chain      ChainID
	ChainIndex int // link position within the chain
}

// Root returns the molecule's root atom.
func (m *Molecule) Root() netlist.AtomID { return m.Atoms[0] }

// Stats are per-molecule external pin statistics used by downstream
// heuristics.
type Stats struct {
	NumAtoms   int
	ExtInputs  int // distinct input nets entering the molecule
	ExtOutputs int // distinct output nets leaving the molecule
}

// Prepacker holds the molecule partition of an atom netlist.
type Prepacker struct {
	nl        *netlist.Netlist
	molecules []Molecule
	stats     []Stats
	atomMol   []MoleculeID
	numChains int
	chainLens []int
	maxStats  Stats
}

// NumMolecules returns the number of molecules.
func (p *Prepacker) NumMolecules() int { return len(p.molecules) }

// NumChains returns the number of carry chains found.
func (p *Prepacker) NumChains() int { return p.numChains }

// ChainLen returns the number of molecules making up the chain.
func (p *Prepacker) ChainLen(id ChainID) int { return p.chainLens[id] }

// Molecule returns the molecule with the given ID.
func (p *Prepacker) Molecule(id MoleculeID) *Molecule { return &p.molecules[id] }

// Molecules returns all molecule IDs in creation order.
func (p *Prepacker) Molecules() []MoleculeID {
	ids := make([]MoleculeID, len(p.molecules))
	for i := range ids {
		ids[i] = MoleculeID(i)
	}
	return ids
}

// MoleculeOf returns the molecule containing the atom.
func (p *Prepacker) MoleculeOf(atom netlist.AtomID) MoleculeID { return p.atomMol[atom] }

// Stats returns the external pin statistics of the molecule.
func (p *Prepacker) Stats(id MoleculeID) Stats { return p.stats[id] }

// MaxStats returns the component-wise maximum over all molecule stats,
// used to normalize gain terms.
func (p *Prepacker) MaxStats() Stats { return p.maxStats }

// RootModel returns the architecture model of the molecule's root atom.
func (p *Prepacker) RootModel(id MoleculeID) string {
	return p.nl.Atom(p.molecules[id].Root()).Model
}

// New computes the molecule partition for the netlist.
func New(nl *netlist.Netlist, a *arch.Architecture) *Prepacker {
	p := &Prepacker{
		nl:      nl,
		atomMol: make([]MoleculeID, nl.NumAtoms()),
	}
	for i := range p.atomMol {
		p.atomMol[i] = InvalidMolecule
	}

	p.packChains(a)
	p.packPairs(a)

	// Singleton fallback for everything left over.
	for _, atom := range nl.Atoms() {
		if !p.atomMol[atom].IsValid() {
			p.add(Molecule{Atoms: []netlist.AtomID{atom}, Chain: InvalidChain})
		}
	}

	p.computeStats()
	return p
}

func (p *Prepacker) add(m Molecule) MoleculeID {
	id := MoleculeID(len(p.molecules))
	p.molecules = append(p.molecules, m)
	for _, atom := range m.Atoms {
		p.atomMol[atom] = id
	}
	return id
}

// chainSuccessor returns the next same-model atom downstream through the
// chain ports, or an invalid ID at the chain tail.
func (p *Prepacker) chainSuccessor(atom netlist.AtomID, m *arch.Model) netlist.AtomID {
	out := p.nl.Atom(atom).NetOn(m.ChainOut)
	if !out.IsValid() {
		return netlist.InvalidAtom
	}
	for _, sink := range p.nl.Net(out).Sinks {
		next := p.nl.Atom(sink.Atom)
		if next.Model == m.Name && sink.Port == m.ChainIn {
			return sink.Atom
		}
	}
	return netlist.InvalidAtom
}

// chainHead reports whether the atom starts a chain: nothing of the same
// model drives its chain input.
func (p *Prepacker) chainHead(atom netlist.AtomID, m *arch.Model) bool {
	in := p.nl.Atom(atom).NetOn(m.ChainIn)
	if !in.IsValid() {
		return true
	}
	drv := p.nl.Net(in).Driver
	if !drv.Atom.IsValid() {
		return true
	}
	return p.nl.Atom(drv.Atom).Model != m.Name || drv.Port != m.ChainOut
}

func (p *Prepacker) packChains(a *arch.Architecture) {
	for _, atom := range p.nl.Atoms() {
		if p.atomMol[atom].IsValid() {
			continue
		}
		m := a.Model(p.nl.Atom(atom).Model)
		pat := a.ChainPattern(m.Name)
		if pat == nil || !p.chainHead(atom, m) {
			continue
		}

		// Collect the full chain, then split it into cluster-sized links.
		var chain []netlist.AtomID
		for cur := atom; cur.IsValid(); cur = p.chainSuccessor(cur, m) {
			chain = append(chain, cur)
		}
		link := p.maxChainLink(a, m.Name)
		chainID := ChainID(p.numChains)
		p.numChains++
		p.chainLens = append(p.chainLens, (len(chain)+link-1)/link)
		for i := 0; i < len(chain); i += link {
			end := min(i+link, len(chain))
			p.add(Molecule{
				Atoms:      chain[i:end],
				Pattern:    pat.Name,
				Chain:      chainID,
				ChainIndex: i / link,
			})
		}
	}
}

// maxChainLink returns the largest per-cluster capacity for the chaining
// model over all candidate (type, mode) pairs. Chains longer than this
// split into multiple molecules of one macro.
func (p *Prepacker) maxChainLink(a *arch.Architecture, model string) int {
	link := 1
	for _, bt := range a.CandidateBlockTypes(model) {
		for i := range bt.Modes {
			if c := bt.Modes[i].ModelCapacity(model); c > link {
				link = c
			}
		}
	}
	return link
}

func (p *Prepacker) packPairs(a *arch.Architecture) {
	for pi := range a.Patterns {
		pat := &a.Patterns[pi]
		if pat.Kind != arch.PatternPair {
			continue
		}
		for _, atom := range p.nl.Atoms() {
			if p.atomMol[atom].IsValid() {
				continue
			}
			drv := p.nl.Atom(atom)
			if drv.Model != pat.Driver {
				continue
			}
			net := drv.NetOn(pat.DriverPort)
			if !net.IsValid() || p.nl.Fanout(net) != 1 {
				continue
			}
			sink := p.nl.Net(net).Sinks[0]
			if sink.Port != pat.SinkPort || p.atomMol[sink.Atom].IsValid() {
				continue
			}
			if p.nl.Atom(sink.Atom).Model != pat.Sink {
				continue
			}
			p.add(Molecule{
				Atoms:   []netlist.AtomID{atom, sink.Atom},
				Pattern: pat.Name,
				Chain:   InvalidChain,
			})
		}
	}
}

func (p *Prepacker) computeStats() {
	p.stats = make([]Stats, len(p.molecules))
	for i := range p.molecules {
		mol := &p.molecules[i]
		inside := make(map[netlist.AtomID]bool, len(mol.Atoms))
		for _, atom := range mol.Atoms {
			inside[atom] = true
		}

		extIn := make(map[netlist.NetID]bool)
		extOut := make(map[netlist.NetID]bool)
		for _, atom := range mol.Atoms {
			for _, conn := range p.nl.Atom(atom).Conns {
				if !conn.Net.IsValid() {
					continue
				}
				net := p.nl.Net(conn.Net)
				switch conn.Dir {
				case netlist.DirInput, netlist.DirClock:
					if !net.Driver.Atom.IsValid() || !inside[net.Driver.Atom] {
						extIn[conn.Net] = true
					}
				case netlist.DirOutput:
					// A dangling output net is a primary output.
					ext := len(net.Sinks) == 0
					for _, sink := range net.Sinks {
						if !inside[sink.Atom] {
							ext = true
							break
						}
					}
					if ext {
						extOut[conn.Net] = true
					}
				}
			}
		}

		s := Stats{NumAtoms: len(mol.Atoms), ExtInputs: len(extIn), ExtOutputs: len(extOut)}
		p.stats[i] = s
		if s.NumAtoms > p.maxStats.NumAtoms {
			p.maxStats.NumAtoms = s.NumAtoms
		}
		if s.ExtInputs > p.maxStats.ExtInputs {
			p.maxStats.ExtInputs = s.ExtInputs
		}
		if s.ExtOutputs > p.maxStats.ExtOutputs {
			p.maxStats.ExtOutputs = s.ExtOutputs
		}
	}
}
