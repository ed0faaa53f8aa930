package legalizer

import (
	"github.com/selimozt/fabpack/pkg/arch"
	"github.com/selimozt/fabpack/pkg/netlist"
	"github.com/selimozt/fabpack/pkg/prepack"
)

// ClusterID identifies a cluster within one ClusterLegalizer. IDs are
// dense and stable until Compress is called; destroyed IDs are not
// reused before then.
type ClusterID int32

// InvalidCluster is the zero identity for unclustered molecules.
const InvalidCluster ClusterID = -1

// IsValid reports whether the identifier refers to a cluster slot.
func (id ClusterID) IsValid() bool { return id >= 0 }

// cluster is the mutable state of one cluster under construction. The
// tree is the expensive part; CleanCluster drops it once the cluster is
// finished, after which the membership is frozen.
type cluster struct {
	blockType *arch.BlockType
	modeIdx   int
	molecules []prepack.MoleculeID
	atoms     map[netlist.AtomID]struct{}
	tree      *pbTree
	cleaned   bool
}

func (c *cluster) mode() *arch.Mode {
	return &c.blockType.Modes[c.modeIdx]
}

// Usage is the cluster-boundary accounting used by the pin feasibility
// filter and the routing bound.
type Usage struct {
	// ExtInputs counts distinct nets entering the cluster.
	ExtInputs int
	// ExtOutputs counts distinct nets leaving the cluster.
	ExtOutputs int
	// Clocks counts distinct clock nets used inside the cluster.
	Clocks int
	// Nets counts every distinct net the cluster touches, internal
	// nets included. It bounds internal routing demand.
	Nets int
}

// usageWith computes boundary pin usage for the cluster's atom set with
// the given extra atoms folded in. An input net is external when its
// driver sits outside the set or it has no driver; an output net is
// external when any sink sits outside the set or it has none.
func (c *cluster) usageWith(nl *netlist.Netlist, extra []netlist.AtomID) Usage {
	in := func(a netlist.AtomID) bool {
		if _, ok := c.atoms[a]; ok {
			return true
		}
		for _, e := range extra {
			if e == a {
				return true
			}
		}
		return false
	}

	var u Usage
	seenIn := make(map[netlist.NetID]struct{})
	seenOut := make(map[netlist.NetID]struct{})
	seenClk := make(map[netlist.NetID]struct{})
	all := make(map[netlist.NetID]struct{})

	visit := func(a netlist.AtomID) {
		atom := nl.Atom(a)
		for _, conn := range atom.Conns {
			if !conn.Net.IsValid() {
				continue
			}
			all[conn.Net] = struct{}{}
			net := nl.Net(conn.Net)
			switch conn.Dir {
			case netlist.DirInput:
				if !net.Driver.Atom.IsValid() || !in(net.Driver.Atom) {
					seenIn[conn.Net] = struct{}{}
				}
			case netlist.DirOutput:
				ext := len(net.Sinks) == 0
				for _, s := range net.Sinks {
					if !in(s.Atom) {
						ext = true
						break
					}
				}
				if ext {
					seenOut[conn.Net] = struct{}{}
				}
			case netlist.DirClock:
				seenClk[conn.Net] = struct{}{}
			}
		}
	}

	for a := range c.atoms {
		visit(a)
	}
	for _, a := range extra {
		visit(a)
	}

	u.ExtInputs = len(seenIn)
	u.ExtOutputs = len(seenOut)
	u.Clocks = len(seenClk)
	u.Nets = len(all)
	return u
}
