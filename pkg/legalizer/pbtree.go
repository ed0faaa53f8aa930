package legalizer

import (
	"github.com/selimozt/fabpack/pkg/arch"
	"github.com/selimozt/fabpack/pkg/netlist"
)

// pbNode is one node of a cluster's internal hierarchy. Nodes live in a
// flat arena and reference each other by index, so traversal is cheap
// and destroying a tree is a single slice drop.
type pbNode struct {
	parent   int32
	children []int32
	// model is non-empty only on leaf nodes.
	model string
	atom  netlist.AtomID
}

// pbTree is the instantiated hierarchy of a single cluster under one
// mode: a root, one node per sub-block instance, and one node per leaf
// slot. Leaves hold at most one atom each.
type pbTree struct {
	nodes []pbNode
	// leafOf maps an assigned atom to its leaf node index.
	leafOf map[netlist.AtomID]int32
}

const pbRoot int32 = 0

// newPBTree instantiates the hierarchy described by a mode. Sub-block
// and leaf instances are expanded in declaration order, so two trees
// built from the same mode have identical node indices.
func newPBTree(mode *arch.Mode) *pbTree {
	t := &pbTree{leafOf: make(map[netlist.AtomID]int32)}
	t.nodes = append(t.nodes, pbNode{parent: -1, atom: netlist.InvalidAtom})
	for i := range mode.SubBlocks {
		sb := &mode.SubBlocks[i]
		n := sb.Count
		if n <= 0 {
			n = 1
		}
		for inst := 0; inst < n; inst++ {
			sbIdx := t.addChild(pbRoot, "")
			for j := range sb.Leaves {
				leaf := &sb.Leaves[j]
				c := leaf.Count
				if c <= 0 {
					c = 1
				}
				for k := 0; k < c; k++ {
					t.addChild(sbIdx, leaf.Model)
				}
			}
		}
	}
	return t
}

func (t *pbTree) addChild(parent int32, model string) int32 {
	idx := int32(len(t.nodes))
	t.nodes = append(t.nodes, pbNode{parent: parent, model: model, atom: netlist.InvalidAtom})
	t.nodes[parent].children = append(t.nodes[parent].children, idx)
	return idx
}

// Nodes are appended during construction in depth-first preorder, so a
// linear scan over the arena is a full tree traversal.

// freeLeaves counts unoccupied leaf slots for a model across the whole
// tree.
func (t *pbTree) freeLeaves(model string) int {
	free := 0
	for i := range t.nodes {
		if t.nodes[i].model == model && t.nodes[i].atom == netlist.InvalidAtom {
			free++
		}
	}
	return free
}

// findFreeLeaf returns the index of the first unoccupied leaf slot for
// a model in traversal order, or -1 when the tree is full for it.
func (t *pbTree) findFreeLeaf(model string) int32 {
	for i := range t.nodes {
		if t.nodes[i].model == model && t.nodes[i].atom == netlist.InvalidAtom {
			return int32(i)
		}
	}
	return -1
}

// assign places an atom on a leaf.
func (t *pbTree) assign(leaf int32, atom netlist.AtomID) {
	t.nodes[leaf].atom = atom
	t.leafOf[atom] = leaf
}

// numLeaves counts all leaf slots regardless of occupancy.
func (t *pbTree) numLeaves() int {
	total := 0
	for i := range t.nodes {
		if t.nodes[i].model != "" {
			total++
		}
	}
	return total
}
