package pack

import (
	"fmt"
	"testing"

	"github.com/selimozt/fabpack/pkg/arch"
	"github.com/selimozt/fabpack/pkg/errors"
	"github.com/selimozt/fabpack/pkg/legalizer"
	"github.com/selimozt/fabpack/pkg/netlist"
	"github.com/selimozt/fabpack/pkg/prepack"
)

func testArch(t *testing.T, routingChannels int) *arch.Architecture {
	t.Helper()
	a := &arch.Architecture{
		Models: []arch.Model{
			{Name: "lut4", Inputs: []string{"a", "b", "c", "d"}, Outputs: []string{"out"}},
			{Name: "ff", Inputs: []string{"d"}, Outputs: []string{"q"}, Clocked: true},
		},
		BlockTypes: []arch.BlockType{{
			Name: "clb",
			Modes: []arch.Mode{{
				Name: "default", InputPins: 10, OutputPins: 4, ClockPins: 1,
				RoutingChannels: routingChannels,
				SubBlocks: []arch.SubBlockSpec{{
					Name: "ble", Count: 4,
					Leaves: []arch.LeafSpec{{Model: "lut4", Count: 1}, {Model: "ff", Count: 1}},
				}},
			}},
		}},
		Patterns: []arch.PackPattern{
			{Name: "lut_ff", Kind: arch.PatternPair,
				Driver: "lut4", DriverPort: "out", Sink: "ff", SinkPort: "d"},
		},
	}
	if err := a.Finalize(); err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}
	return a
}

// linkedPairs builds n LUT+FF pairs where consecutive pairs share an
// input net, so connectivity gain links pair i to pair i+1.
func linkedPairs(t *testing.T, a *arch.Architecture, n int, clock string) *netlist.Netlist {
	t.Helper()
	b := netlist.NewBuilder(a)
	for i := 0; i < n; i++ {
		inputs := map[string]string{"a": fmt.Sprintf("in%d", i)}
		if i > 0 {
			inputs["b"] = fmt.Sprintf("out%d", i-1)
		}
		b.AddAtom(fmt.Sprintf("l%d", i), "lut4", inputs,
			map[string]string{"out": fmt.Sprintf("w%d", i)}, "")
		b.AddAtom(fmt.Sprintf("f%d", i), "ff",
			map[string]string{"d": fmt.Sprintf("w%d", i)},
			map[string]string{"q": fmt.Sprintf("out%d", i)}, clock)
	}
	nl, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}
	return nl
}

func runClusterer(t *testing.T, a *arch.Architecture, nl *netlist.Netlist, cfg Config) (*legalizer.ClusterLegalizer, Stats, error) {
	t.Helper()
	pp := prepack.New(nl, a)
	leg := legalizer.New(nl, pp, a, legalizer.Config{})
	g := NewGreedyClusterer(nl, pp, a, leg, cfg)
	st, err := g.Run()
	return leg, st, err
}

func TestRunClustersEverything(t *testing.T) {
	a := testArch(t, 0)
	nl := linkedPairs(t, a, 8, "clk")
	leg, st, err := runClusterer(t, a, nl, Config{})
	if err != nil {
		t.Fatal(err)
	}

	if got := len(leg.UnclusteredMolecules()); got != 0 {
		t.Fatalf("%d molecules left unclustered", got)
	}
	// 8 connected pairs fit 4 BLEs per cluster.
	if st.NumClusters != 2 {
		t.Errorf("NumClusters = %d, want 2", st.NumClusters)
	}
	if got := st.UsageByType["clb"]; got != st.NumClusters {
		t.Errorf("UsageByType[clb] = %d, want %d", got, st.NumClusters)
	}
	if got := st.LogicElements["lut4"]; got != 8 {
		t.Errorf("LogicElements[lut4] = %d, want 8", got)
	}

	// Every cluster must be cleaned and internally consistent.
	seen := make(map[netlist.AtomID]bool)
	for _, id := range leg.Clusters() {
		if !leg.ClusterIsCleaned(id) {
			t.Errorf("cluster %d not cleaned", id)
		}
		for _, atom := range leg.ClusterAtoms(id) {
			if seen[atom] {
				t.Fatalf("atom %d in two clusters", atom)
			}
			seen[atom] = true
		}
	}
	if len(seen) != nl.NumAtoms() {
		t.Errorf("clustered %d atoms, want %d", len(seen), nl.NumAtoms())
	}
}

func TestRunDeterminism(t *testing.T) {
	a := testArch(t, 0)

	partition := func() [][]prepack.MoleculeID {
		nl := linkedPairs(t, a, 12, "clk")
		leg, _, err := runClusterer(t, a, nl, Config{})
		if err != nil {
			t.Fatal(err)
		}
		var out [][]prepack.MoleculeID
		for _, id := range leg.Clusters() {
			out = append(out, leg.ClusterMolecules(id))
		}
		return out
	}

	first, second := partition(), partition()
	if len(first) != len(second) {
		t.Fatalf("cluster counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if len(first[i]) != len(second[i]) {
			t.Fatalf("cluster %d sizes differ", i)
		}
		for j := range first[i] {
			if first[i][j] != second[i][j] {
				t.Fatalf("cluster %d differs at %d: %d vs %d", i, j, first[i][j], second[i][j])
			}
		}
	}
}

func TestSeedPriority(t *testing.T) {
	a := testArch(t, 0)
	b := netlist.NewBuilder(a)
	// l0 has one external input, l1 has four.
	b.AddAtom("l0", "lut4", map[string]string{"a": "x0"}, map[string]string{"out": "y0"}, "")
	b.AddAtom("l1", "lut4",
		map[string]string{"a": "p", "b": "q", "c": "r", "d": "s"},
		map[string]string{"out": "y1"}, "")
	nl, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}
	pp := prepack.New(nl, a)

	s := NewSeedSelector(pp, nil, func(prepack.MoleculeID) bool { return false })
	if got := s.Next(); got != pp.MoleculeOf(1) {
		t.Errorf("first seed = %d, want the 4-input molecule", got)
	}
}

type fixedOracle map[netlist.AtomID]float64

func (o fixedOracle) Criticality(a netlist.AtomID) float64 { return o[a] }

func TestSeedPriorityTimingDriven(t *testing.T) {
	a := testArch(t, 0)
	b := netlist.NewBuilder(a)
	b.AddAtom("l0", "lut4", map[string]string{"a": "x0"}, map[string]string{"out": "y0"}, "")
	b.AddAtom("l1", "lut4",
		map[string]string{"a": "p", "b": "q", "c": "r", "d": "s"},
		map[string]string{"out": "y1"}, "")
	nl, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}
	pp := prepack.New(nl, a)

	// The single-input molecule is on the critical path; criticality
	// outweighs its lower pin count.
	oracle := fixedOracle{0: 1.0, 1: 0.1}
	s := NewSeedSelector(pp, oracle, func(prepack.MoleculeID) bool { return false })
	if got := s.Next(); got != pp.MoleculeOf(0) {
		t.Errorf("first seed = %d, want the critical molecule", got)
	}
}

func TestFastToFullEscalation(t *testing.T) {
	// Each pair touches 4 nets and two linked pairs touch 7; with 5
	// routing channels the fast tier builds an over-full cluster that
	// the full retry shrinks to one pair each.
	a := testArch(t, 5)
	nl := linkedPairs(t, a, 2, "")
	leg, st, err := runClusterer(t, a, nl, Config{})
	if err != nil {
		t.Fatal(err)
	}
	if st.NumClusters != 2 {
		t.Errorf("NumClusters = %d, want 2", st.NumClusters)
	}
	for _, id := range leg.Clusters() {
		if !leg.CheckClusterLegality(id) {
			t.Errorf("cluster %d illegal after escalation", id)
		}
	}
}

func TestSeedUnclusterable(t *testing.T) {
	// A lone pair needs 4 nets; 2 routing channels make it illegal
	// under both tiers.
	a := testArch(t, 2)
	nl := linkedPairs(t, a, 1, "")
	_, _, err := runClusterer(t, a, nl, Config{})
	if err == nil {
		t.Fatal("expected a fatal error")
	}
	if errors.GetCode(err) != errors.ErrCodeSeedUnclusterable {
		t.Errorf("code = %v, want SEED_UNCLUSTERABLE", errors.GetCode(err))
	}
	if !errors.IsFatal(err) {
		t.Error("unclusterable seed must be fatal")
	}
}

func TestHillClimbing(t *testing.T) {
	a := testArch(t, 0)
	b := netlist.NewBuilder(a)
	// Two pairs with no shared nets at all.
	for i := 0; i < 2; i++ {
		b.AddAtom(fmt.Sprintf("l%d", i), "lut4",
			map[string]string{"a": fmt.Sprintf("in%d", i)},
			map[string]string{"out": fmt.Sprintf("w%d", i)}, "")
		b.AddAtom(fmt.Sprintf("f%d", i), "ff",
			map[string]string{"d": fmt.Sprintf("w%d", i)},
			map[string]string{"q": fmt.Sprintf("out%d", i)}, "")
	}
	nl, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}

	_, st, err := runClusterer(t, a, nl, Config{})
	if err != nil {
		t.Fatal(err)
	}
	if st.NumClusters != 2 {
		t.Fatalf("without hill climbing NumClusters = %d, want 2", st.NumClusters)
	}

	nl2 := func() *netlist.Netlist {
		b := netlist.NewBuilder(a)
		for i := 0; i < 2; i++ {
			b.AddAtom(fmt.Sprintf("l%d", i), "lut4",
				map[string]string{"a": fmt.Sprintf("in%d", i)},
				map[string]string{"out": fmt.Sprintf("w%d", i)}, "")
			b.AddAtom(fmt.Sprintf("f%d", i), "ff",
				map[string]string{"d": fmt.Sprintf("w%d", i)},
				map[string]string{"q": fmt.Sprintf("out%d", i)}, "")
		}
		nl, err := b.Build()
		if err != nil {
			t.Fatal(err)
		}
		return nl
	}()
	_, st2, err := runClusterer(t, a, nl2, Config{HillClimbing: true})
	if err != nil {
		t.Fatal(err)
	}
	if st2.NumClusters != 1 {
		t.Errorf("with hill climbing NumClusters = %d, want 1", st2.NumClusters)
	}
}

func TestAttractionGroups(t *testing.T) {
	a := testArch(t, 0)
	b := netlist.NewBuilder(a)
	for i := 0; i < 2; i++ {
		b.AddAtom(fmt.Sprintf("l%d", i), "lut4",
			map[string]string{"a": fmt.Sprintf("in%d", i)},
			map[string]string{"out": fmt.Sprintf("w%d", i)}, "")
		b.AddAtom(fmt.Sprintf("f%d", i), "ff",
			map[string]string{"d": fmt.Sprintf("w%d", i)},
			map[string]string{"q": fmt.Sprintf("out%d", i)}, "")
	}
	nl, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}

	groups := map[prepack.MoleculeID]int{0: 7, 1: 7}
	_, st, err := runClusterer(t, a, nl, Config{AttractionGroups: groups})
	if err != nil {
		t.Fatal(err)
	}
	if st.NumClusters != 1 {
		t.Errorf("NumClusters = %d, want 1 (attraction pulls the pair in)", st.NumClusters)
	}
}
