// Package netlist models the primitive-level (atom) netlist consumed by
// the packer and legalizers.
//
// Atoms are primitive operations bound to an architecture model; nets
// connect one driver pin to zero or more sink pins. The netlist is built
// once by Load and is read-only afterwards. All identifiers are dense
// integer IDs, stable for the lifetime of a run, and every traversal this
// package offers is in a fixed deterministic order.
package netlist

import (
	"fmt"

	"github.com/selimozt/fabpack/pkg/arch"
)

// AtomID identifies an atom. IDs are dense indices into the netlist.
type AtomID int32

// NetID identifies a net. IDs are dense indices into the netlist.
type NetID int32

// Invalid sentinel IDs.
const (
	InvalidAtom AtomID = -1
	InvalidNet  NetID  = -1
)

// IsValid reports whether the ID refers to an atom.
func (id AtomID) IsValid() bool { return id >= 0 }

// IsValid reports whether the ID refers to a net.
func (id NetID) IsValid() bool { return id >= 0 }

// PortDir is the direction of an atom connection.
type PortDir int

const (
	DirInput PortDir = iota
	DirOutput
	DirClock
)

// Conn is one port-to-net connection of an atom. Conns are stored in
// model port order (inputs, then outputs, then clock), which keeps every
// netlist traversal deterministic.
type Conn struct {
	Port string
	Dir  PortDir
	Net  NetID
}

// Atom is a primitive netlist node.
type Atom struct {
	Name  string
	Model string
	Conns []Conn
}

// NetOn returns the net connected to the named port, or InvalidNet.
func (a *Atom) NetOn(port string) NetID {
	for _, c := range a.Conns {
		if c.Port == port {
			return c.Net
		}
	}
	return InvalidNet
}

// ClockNet returns the atom's clock net, or InvalidNet.
func (a *Atom) ClockNet() NetID {
	for _, c := range a.Conns {
		if c.Dir == DirClock {
			return c.Net
		}
	}
	return InvalidNet
}

// Pin is one endpoint of a net.
type Pin struct {
	Atom AtomID
	Port string
}

// Net is a netlist net: one driver and its sinks. A net with an invalid
// driver atom is a primary input.
type Net struct {
	Name   string
	Driver Pin
	Sinks  []Pin
}

// Netlist is the immutable atom netlist.
type Netlist struct {
	atoms []Atom
	nets  []Net

	netByName  map[string]NetID
	atomByName map[string]AtomID
}

// NumAtoms returns the number of atoms.
func (n *Netlist) NumAtoms() int { return len(n.atoms) }

// NumNets returns the number of nets.
func (n *Netlist) NumNets() int { return len(n.nets) }

// Atom returns the atom with the given ID.
func (n *Netlist) Atom(id AtomID) *Atom { return &n.atoms[id] }

// Net returns the net with the given ID.
func (n *Netlist) Net(id NetID) *Net { return &n.nets[id] }

// NetByName returns the net with the given name, or InvalidNet.
func (n *Netlist) NetByName(name string) NetID {
	if id, ok := n.netByName[name]; ok {
		return id
	}
	return InvalidNet
}

// AtomByName returns the atom with the given name, or InvalidAtom.
func (n *Netlist) AtomByName(name string) AtomID {
	if id, ok := n.atomByName[name]; ok {
		return id
	}
	return InvalidAtom
}

// Atoms returns all atom IDs in creation order.
func (n *Netlist) Atoms() []AtomID {
	ids := make([]AtomID, len(n.atoms))
	for i := range ids {
		ids[i] = AtomID(i)
	}
	return ids
}

// AtomNets returns the distinct nets touching the atom, in connection
// order (first occurrence wins).
func (n *Netlist) AtomNets(id AtomID) []NetID {
	var nets []NetID
	seen := make(map[NetID]bool)
	for _, c := range n.atoms[id].Conns {
		if c.Net.IsValid() && !seen[c.Net] {
			seen[c.Net] = true
			nets = append(nets, c.Net)
		}
	}
	return nets
}

// Fanout returns the number of sink pins on the net.
func (n *Netlist) Fanout(id NetID) int { return len(n.nets[id].Sinks) }

// String returns a short human-readable summary.
func (n *Netlist) String() string {
	return fmt.Sprintf("netlist{atoms: %d, nets: %d}", len(n.atoms), len(n.nets))
}

// Builder accumulates atoms and nets for a Netlist. It is used by Load
// and by tests that construct netlists programmatically.
type Builder struct {
	a       *arch.Architecture
	nl      Netlist
	drivers map[NetID]bool
	err     error
}

// NewBuilder creates a Builder validating against the given architecture.
func NewBuilder(a *arch.Architecture) *Builder {
	return &Builder{
		a:       a,
		nl: Netlist{
			netByName:  make(map[string]NetID),
			atomByName: make(map[string]AtomID),
		},
		drivers: make(map[NetID]bool),
	}
}

func (b *Builder) net(name string) NetID {
	if name == "" {
		return InvalidNet
	}
	if id := b.nl.NetByName(name); id.IsValid() {
		return id
	}
	id := NetID(len(b.nl.nets))
	b.nl.nets = append(b.nl.nets, Net{Name: name, Driver: Pin{Atom: InvalidAtom}})
	b.nl.netByName[name] = id
	return id
}

// AddAtom appends an atom. Port-to-net bindings are given by name; ports
// are resolved against the atom's model in model port order, so the
// resulting netlist is independent of map iteration order. Unconnected
// ports may be omitted. The first error sticks and is returned by Build.
func (b *Builder) AddAtom(name, model string, inputs, outputs map[string]string, clock string) AtomID {
	if b.err != nil {
		return InvalidAtom
	}
	m := b.a.Model(model)
	if m == nil {
		b.err = fmt.Errorf("atom %q references unknown model %q", name, model)
		return InvalidAtom
	}
	if _, dup := b.nl.atomByName[name]; dup {
		b.err = fmt.Errorf("duplicate atom name %q", name)
		return InvalidAtom
	}

	id := AtomID(len(b.nl.atoms))
	atom := Atom{Name: name, Model: model}

	for _, port := range m.Inputs {
		netName, ok := inputs[port]
		if !ok || netName == "" {
			continue
		}
		netID := b.net(netName)
		atom.Conns = append(atom.Conns, Conn{Port: port, Dir: DirInput, Net: netID})
		b.nl.nets[netID].Sinks = append(b.nl.nets[netID].Sinks, Pin{Atom: id, Port: port})
	}
	for port := range inputs {
		if !contains(m.Inputs, port) {
			b.err = fmt.Errorf("atom %q: model %q has no input port %q", name, model, port)
			return InvalidAtom
		}
	}

	for _, port := range m.Outputs {
		netName, ok := outputs[port]
		if !ok || netName == "" {
			continue
		}
		netID := b.net(netName)
		if b.drivers[netID] {
			b.err = fmt.Errorf("net %q has multiple drivers (second: atom %q)", netName, name)
			return InvalidAtom
		}
		b.drivers[netID] = true
		atom.Conns = append(atom.Conns, Conn{Port: port, Dir: DirOutput, Net: netID})
		b.nl.nets[netID].Driver = Pin{Atom: id, Port: port}
	}
	for port := range outputs {
		if !contains(m.Outputs, port) {
			b.err = fmt.Errorf("atom %q: model %q has no output port %q", name, model, port)
			return InvalidAtom
		}
	}

	if clock != "" {
		if !m.Clocked {
			b.err = fmt.Errorf("atom %q: model %q is not clocked", name, model)
			return InvalidAtom
		}
		netID := b.net(clock)
		atom.Conns = append(atom.Conns, Conn{Port: "clk", Dir: DirClock, Net: netID})
		b.nl.nets[netID].Sinks = append(b.nl.nets[netID].Sinks, Pin{Atom: id, Port: "clk"})
	}

	b.nl.atoms = append(b.nl.atoms, atom)
	b.nl.atomByName[name] = id
	return id
}

// Build returns the immutable netlist, or the first accumulated error.
func (b *Builder) Build() (*Netlist, error) {
	if b.err != nil {
		return nil, b.err
	}
	nl := b.nl
	return &nl, nil
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}
