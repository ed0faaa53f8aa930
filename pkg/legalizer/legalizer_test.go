package legalizer

import (
	"fmt"
	"testing"

	"github.com/selimozt/fabpack/pkg/arch"
	"github.com/selimozt/fabpack/pkg/netlist"
	"github.com/selimozt/fabpack/pkg/prepack"
)

func testArch(t *testing.T, routingChannels int) *arch.Architecture {
	t.Helper()
	a := &arch.Architecture{
		Models: []arch.Model{
			{Name: "lut4", Inputs: []string{"a", "b", "c", "d"}, Outputs: []string{"out"}},
			{Name: "ff", Inputs: []string{"d"}, Outputs: []string{"q"}, Clocked: true},
			{Name: "adder", Inputs: []string{"a", "b", "cin"}, Outputs: []string{"sum", "cout"},
				ChainIn: "cin", ChainOut: "cout"},
		},
		BlockTypes: []arch.BlockType{{
			Name: "clb",
			Modes: []arch.Mode{
				{
					Name: "default", InputPins: 10, OutputPins: 4, ClockPins: 1,
					RoutingChannels: routingChannels,
					SubBlocks: []arch.SubBlockSpec{{
						Name: "ble", Count: 4,
						Leaves: []arch.LeafSpec{{Model: "lut4", Count: 1}, {Model: "ff", Count: 1}},
					}},
				},
				{
					Name: "arith", InputPins: 8, OutputPins: 4,
					SubBlocks: []arch.SubBlockSpec{{
						Name: "adder_slice", Count: 2,
						Leaves: []arch.LeafSpec{{Model: "adder", Count: 1}},
					}},
				},
			},
		}},
		Patterns: []arch.PackPattern{
			{Name: "carry_chain", Kind: arch.PatternChain, Model: "adder"},
			{Name: "lut_ff", Kind: arch.PatternPair,
				Driver: "lut4", DriverPort: "out", Sink: "ff", SinkPort: "d"},
		},
	}
	if err := a.Finalize(); err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}
	return a
}

// pairNetlist builds n independent LUT+FF pairs sharing one clock.
// Molecule i is pair i.
func pairNetlist(t *testing.T, a *arch.Architecture, n int) *netlist.Netlist {
	t.Helper()
	b := netlist.NewBuilder(a)
	for i := 0; i < n; i++ {
		b.AddAtom(fmt.Sprintf("l%d", i), "lut4",
			map[string]string{"a": fmt.Sprintf("in%d", i)},
			map[string]string{"out": fmt.Sprintf("w%d", i)}, "")
		b.AddAtom(fmt.Sprintf("f%d", i), "ff",
			map[string]string{"d": fmt.Sprintf("w%d", i)},
			map[string]string{"q": fmt.Sprintf("out%d", i)}, "clk")
	}
	nl, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}
	return nl
}

func newTestLegalizer(t *testing.T, routingChannels, pairs int, cfg Config) (*ClusterLegalizer, *arch.Architecture) {
	t.Helper()
	a := testArch(t, routingChannels)
	nl := pairNetlist(t, a, pairs)
	pp := prepack.New(nl, a)
	if pp.NumMolecules() != pairs {
		t.Fatalf("NumMolecules = %d, want %d", pp.NumMolecules(), pairs)
	}
	return New(nl, pp, a, cfg), a
}

func TestStartNewCluster(t *testing.T) {
	l, a := newTestLegalizer(t, 0, 2, Config{})
	clb := a.BlockType("clb")

	id, st := l.StartNewCluster(0, clb, 0)
	if st != StatusPassed {
		t.Fatalf("status = %v, want PASSED", st)
	}
	if !id.IsValid() {
		t.Fatal("expected a valid cluster id")
	}
	if got := l.MoleculeCluster(0); got != id {
		t.Errorf("MoleculeCluster = %v, want %v", got, id)
	}
	if got := l.ClusterMode(id).Name; got != "default" {
		t.Errorf("mode = %q, want default", got)
	}

	// A molecule already in a cluster cannot seed another.
	if _, st := l.StartNewCluster(0, clb, 0); st != StatusUndefined {
		t.Errorf("re-seed status = %v, want UNDEFINED", st)
	}
}

func TestStartNewClusterNoLegalMode(t *testing.T) {
	a := testArch(t, 0)
	b := netlist.NewBuilder(a)
	b.AddAtom("a0", "adder", map[string]string{"a": "x"}, map[string]string{"sum": "s"}, "")
	nl, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}
	pp := prepack.New(nl, a)
	l := New(nl, pp, a, Config{})
	clb := a.BlockType("clb")

	// The default mode has no adder leaves.
	if _, st := l.StartNewCluster(0, clb, 0); st != StatusNoLegalMode {
		t.Errorf("default-mode status = %v, want NO_LEGAL_MODE", st)
	}
	// AnyMode finds the arith mode.
	id, st := l.StartNewCluster(0, clb, AnyMode)
	if st != StatusPassed {
		t.Fatalf("AnyMode status = %v, want PASSED", st)
	}
	if got := l.ClusterMode(id).Name; got != "arith" {
		t.Errorf("mode = %q, want arith", got)
	}
}

func TestAddMolCapacityExceeded(t *testing.T) {
	l, a := newTestLegalizer(t, 0, 5, Config{})
	clb := a.BlockType("clb")

	id, st := l.StartNewCluster(0, clb, 0)
	if st != StatusPassed {
		t.Fatalf("seed status = %v", st)
	}
	for mol := prepack.MoleculeID(1); mol < 4; mol++ {
		if st := l.AddMolToCluster(mol, id); st != StatusPassed {
			t.Fatalf("add %d status = %v, want PASSED", mol, st)
		}
	}

	// Four BLEs are full; the fifth pair must be refused and stay
	// unclustered for a later cluster to pick up.
	if st := l.AddMolToCluster(4, id); st != StatusCapacityExceeded {
		t.Errorf("status = %v, want CAPACITY_EXCEEDED", st)
	}
	if got := l.MoleculeCluster(4); got != InvalidCluster {
		t.Errorf("molecule 4 in cluster %v, want unclustered", got)
	}
	if l.IsMoleculeCompatible(4, id) {
		t.Error("full cluster should fail the compatibility pre-filter")
	}

	id2, st := l.StartNewCluster(4, clb, 0)
	if st != StatusPassed {
		t.Fatalf("retry seed status = %v", st)
	}
	if id2 == id {
		t.Error("retry must found a new cluster")
	}
}

func TestPinFeasibilityFilter(t *testing.T) {
	// Each pair contributes one distinct external input net, so a 0.2
	// utilization target on 10 input pins caps the cluster at 2.
	l, a := newTestLegalizer(t, 0, 4, Config{TargetExtPinUtil: 0.2})
	clb := a.BlockType("clb")

	id, st := l.StartNewCluster(0, clb, 0)
	if st != StatusPassed {
		t.Fatalf("seed status = %v", st)
	}
	if st := l.AddMolToCluster(1, id); st != StatusPassed {
		t.Fatalf("add 1 status = %v", st)
	}
	if st := l.AddMolToCluster(2, id); st != StatusPinFeasibilityFailed {
		t.Errorf("status = %v, want PIN_FEASIBILITY_FAILED", st)
	}

	// The filter can be turned off; capacity still binds.
	l2, a2 := newTestLegalizer(t, 0, 4, Config{TargetExtPinUtil: 0.2, DisablePinFilter: true})
	id2, _ := l2.StartNewCluster(0, a2.BlockType("clb"), 0)
	for mol := prepack.MoleculeID(1); mol < 3; mol++ {
		if st := l2.AddMolToCluster(mol, id2); st != StatusPassed {
			t.Errorf("unfiltered add %d = %v, want PASSED", mol, st)
		}
	}
}

func TestDisabledPinFilterAgreesWithFullProof(t *testing.T) {
	// With the filter off, the pin budgets are not part of the
	// legality definition, so the full re-proof must accept the same
	// fill every incremental add accepted.
	l, a := newTestLegalizer(t, 0, 4, Config{TargetExtPinUtil: 0.1, DisablePinFilter: true})
	id, st := l.StartNewCluster(0, a.BlockType("clb"), 0)
	if st != StatusPassed {
		t.Fatalf("seed status = %v", st)
	}
	for mol := prepack.MoleculeID(1); mol < 4; mol++ {
		if st := l.AddMolToCluster(mol, id); st != StatusPassed {
			t.Fatalf("add %d = %v, want PASSED", mol, st)
		}
	}
	if !l.CheckClusterLegality(id) {
		t.Error("full proof rejects a cluster every add accepted")
	}
}

func TestFullStrategyRoutingBound(t *testing.T) {
	// Two pairs touch 7 distinct nets (2 inputs, 2 internal wires,
	// 2 outputs, clk); a 5-channel bound admits only one pair.
	l, a := newTestLegalizer(t, 5, 3, Config{Strategy: StrategyFull})
	clb := a.BlockType("clb")

	id, st := l.StartNewCluster(0, clb, 0)
	if st != StatusPassed {
		t.Fatalf("seed status = %v", st)
	}
	if st := l.AddMolToCluster(1, id); st != StatusIntraRouteInfeasible {
		t.Errorf("status = %v, want INTRA_ROUTE_INFEASIBLE", st)
	}

	// The fast strategy defers the routing proof: the add passes but
	// the full check exposes the cluster as illegal.
	lf, af := newTestLegalizer(t, 5, 3, Config{Strategy: StrategyFast})
	idf, _ := lf.StartNewCluster(0, af.BlockType("clb"), 0)
	if st := lf.AddMolToCluster(1, idf); st != StatusPassed {
		t.Fatalf("fast add status = %v, want PASSED", st)
	}
	if lf.CheckClusterLegality(idf) {
		t.Error("full check must reject the over-routed cluster")
	}
	lf.DestroyCluster(idf)

	// Refilled one pair at a time, the cluster is legal again.
	idf, _ = lf.StartNewCluster(0, af.BlockType("clb"), 0)
	if !lf.CheckClusterLegality(idf) {
		t.Error("single-pair cluster should pass the full check")
	}
}

func TestCleanClusterFreezesMembership(t *testing.T) {
	l, a := newTestLegalizer(t, 0, 2, Config{})
	id, _ := l.StartNewCluster(0, a.BlockType("clb"), 0)

	l.CleanCluster(id)
	if !l.ClusterIsCleaned(id) {
		t.Fatal("cluster should report cleaned")
	}
	if st := l.AddMolToCluster(1, id); st != StatusUndefined {
		t.Errorf("add after clean = %v, want UNDEFINED", st)
	}
	if l.IsMoleculeCompatible(1, id) {
		t.Error("cleaned cluster must fail the pre-filter")
	}
	// Membership queries survive cleaning.
	if got := len(l.ClusterAtoms(id)); got != 2 {
		t.Errorf("ClusterAtoms = %d, want 2", got)
	}
}

func TestDestroyAndCompress(t *testing.T) {
	l, a := newTestLegalizer(t, 0, 3, Config{})
	clb := a.BlockType("clb")

	id0, _ := l.StartNewCluster(0, clb, 0)
	id1, _ := l.StartNewCluster(1, clb, 0)
	id2, _ := l.StartNewCluster(2, clb, 0)

	l.DestroyCluster(id1)
	if got := l.MoleculeCluster(1); got != InvalidCluster {
		t.Errorf("molecule 1 in cluster %v after destroy, want unclustered", got)
	}
	if got := l.NumClusters(); got != 2 {
		t.Errorf("NumClusters = %d, want 2", got)
	}
	if got := l.UnclusteredMolecules(); len(got) != 1 || got[0] != 1 {
		t.Errorf("UnclusteredMolecules = %v, want [1]", got)
	}

	remap := l.Compress()
	if got := remap[id0]; got != 0 {
		t.Errorf("remap[%v] = %v, want 0", id0, got)
	}
	if got := remap[id2]; got != 1 {
		t.Errorf("remap[%v] = %v, want 1", id2, got)
	}
	if _, ok := remap[id1]; ok {
		t.Error("destroyed cluster must not appear in the remap")
	}
	if got := l.MoleculeCluster(2); got != 1 {
		t.Errorf("MoleculeCluster(2) = %v after compress, want 1", got)
	}
	if got := l.Clusters(); len(got) != 2 || got[0] != 0 || got[1] != 1 {
		t.Errorf("Clusters = %v, want [0 1]", got)
	}
}

func TestPartitionInvariant(t *testing.T) {
	l, a := newTestLegalizer(t, 0, 6, Config{})
	clb := a.BlockType("clb")

	for len(l.UnclusteredMolecules()) > 0 {
		pool := l.UnclusteredMolecules()
		id, st := l.StartNewCluster(pool[0], clb, 0)
		if st != StatusPassed {
			t.Fatalf("seed %d status = %v", pool[0], st)
		}
		for _, mol := range pool[1:] {
			l.AddMolToCluster(mol, id)
		}
		l.CleanCluster(id)
	}

	seen := make(map[netlist.AtomID]ClusterID)
	for _, id := range l.Clusters() {
		for _, atom := range l.ClusterAtoms(id) {
			if prev, ok := seen[atom]; ok {
				t.Fatalf("atom %d in clusters %v and %v", atom, prev, id)
			}
			seen[atom] = id
			if got := l.AtomCluster(atom); got != id {
				t.Errorf("AtomCluster(%d) = %v, want %v", atom, got, id)
			}
		}
	}
	if len(seen) != 12 {
		t.Errorf("clustered %d atoms, want all 12", len(seen))
	}
}

func TestClusterUsage(t *testing.T) {
	l, a := newTestLegalizer(t, 0, 2, Config{})
	id, _ := l.StartNewCluster(0, a.BlockType("clb"), 0)
	if st := l.AddMolToCluster(1, id); st != StatusPassed {
		t.Fatal("add failed")
	}

	u := l.ClusterUsage(id)
	if u.ExtInputs != 2 {
		t.Errorf("ExtInputs = %d, want 2", u.ExtInputs)
	}
	if u.ExtOutputs != 2 {
		t.Errorf("ExtOutputs = %d, want 2", u.ExtOutputs)
	}
	if u.Clocks != 1 {
		t.Errorf("Clocks = %d, want 1", u.Clocks)
	}
	if u.Nets != 7 {
		t.Errorf("Nets = %d, want 7", u.Nets)
	}
}
