package place

import (
	"fmt"
	"strings"
	"testing"

	"github.com/selimozt/fabpack/pkg/arch"
	"github.com/selimozt/fabpack/pkg/device"
	"github.com/selimozt/fabpack/pkg/errors"
	"github.com/selimozt/fabpack/pkg/legalizer"
	"github.com/selimozt/fabpack/pkg/netlist"
	"github.com/selimozt/fabpack/pkg/prepack"
)

func testArch(t *testing.T) *arch.Architecture {
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
		TileTypes: []arch.TileType{
			{Name: "clb_tile", SubTiles: []arch.SubTile{
				{Name: "slot", Capacity: 2, Compatible: []string{"clb"}},
			}},
			{Name: "empty_tile"},
		},
	}
	if err := a.Finalize(); err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}
	return a
}

// pairSetup builds n LUT+FF pairs, clusters each pair on its own, and
// returns the pieces. Cluster i holds pair i.
func pairSetup(t *testing.T, n, gridW, gridH int) (*legalizer.ClusterLegalizer, *Registry, *ClusterPlacer) {
	t.Helper()
	a := testArch(t)
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
	pp := prepack.New(nl, a)
	leg := legalizer.New(nl, pp, a, legalizer.Config{})
	clb := a.BlockType("clb")
	for i := 0; i < n; i++ {
		if _, st := leg.StartNewCluster(prepack.MoleculeID(i), clb, 0); st != legalizer.StatusPassed {
			t.Fatalf("cluster %d: %v", i, st)
		}
	}

	grid := device.New(gridW, gridH, 1, a.TileType("clb_tile"))
	reg := NewRegistry(grid)
	return leg, reg, NewClusterPlacer(leg, reg, nil)
}

func TestRegistryExclusivity(t *testing.T) {
	_, reg, _ := pairSetup(t, 2, 2, 2)
	loc := device.Loc{X: 0, Y: 0, SubTile: 0}

	if err := reg.Bind(0, loc); err != nil {
		t.Fatalf("Bind: %v", err)
	}
	if err := reg.Bind(1, loc); err == nil {
		t.Fatal("double bind of a slot must fail")
	} else if errors.GetCode(err) != errors.ErrCodeInternal {
		t.Errorf("code = %v, want INTERNAL_ERROR", errors.GetCode(err))
	}
	if err := reg.Bind(0, device.Loc{X: 1, Y: 1}); err == nil {
		t.Fatal("double bind of a cluster must fail")
	}

	reg.Unbind(0)
	if reg.Occupied(loc) {
		t.Error("slot still occupied after Unbind")
	}
	if reg.Placed(0) {
		t.Error("cluster still placed after Unbind")
	}
}

func TestPlaceClusterAt(t *testing.T) {
	leg, reg, p := pairSetup(t, 2, 2, 2)
	_ = leg

	loc := device.Loc{X: 1, Y: 0, SubTile: 1}
	if err := p.PlaceClusterAt(0, loc); err != nil {
		t.Fatalf("PlaceClusterAt: %v", err)
	}
	// Idempotent: a second attempt anywhere is a no-op success.
	if err := p.PlaceClusterAt(0, device.Loc{X: 0, Y: 0}); err != nil {
		t.Fatalf("repeat placement: %v", err)
	}
	if got, _ := reg.LocOf(0); got != loc {
		t.Errorf("LocOf = %v, want %v", got, loc)
	}

	if err := p.PlaceClusterAt(1, loc); err == nil {
		t.Fatal("occupied slot must be rejected")
	}
}

func TestPlaceClusterHinted(t *testing.T) {
	_, reg, p := pairSetup(t, 3, 1, 1)
	tile := device.TileLoc{X: 0, Y: 0}

	// The hinted slot is free: the cluster lands exactly there, not
	// on the lower-indexed sub-tile the plain scan would pick.
	if err := p.PlaceClusterHinted(0, tile, 1); err != nil {
		t.Fatalf("PlaceClusterHinted: %v", err)
	}
	if got, _ := reg.LocOf(0); got.SubTile != 1 {
		t.Errorf("SubTile = %d, want the hinted 1", got.SubTile)
	}

	// The hinted slot is occupied: fall back to the regular search.
	if err := p.PlaceClusterHinted(1, tile, 1); err != nil {
		t.Fatalf("fallback: %v", err)
	}
	if got, _ := reg.LocOf(1); got.SubTile != 0 {
		t.Errorf("SubTile = %d, want fallback 0", got.SubTile)
	}

	// No hint behaves exactly like PlaceCluster.
	if err := p.PlaceClusterHinted(2, tile, -1); err == nil {
		t.Fatal("full tile must exhaust")
	}
}

func TestPlaceClusterAtZeroSubTiles(t *testing.T) {
	leg, reg, p := pairSetup(t, 1, 2, 2)
	_ = leg
	reg.Grid().SetTileType(device.TileLoc{X: 0, Y: 0}, nil)

	err := p.PlaceClusterAt(0, device.Loc{X: 0, Y: 0})
	if err == nil {
		t.Fatal("tile without sub-tiles must be rejected")
	}
	if !strings.Contains(err.Error(), "no sub-tiles") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestPlaceClusterRegionConstraint(t *testing.T) {
	_, _, p := pairSetup(t, 1, 4, 4)
	p.SetRegion(0, PartitionRegion{Rects: []Rect{{XLo: 2, YLo: 0, XHi: 3, YHi: 3, Layer: -1}}})

	if err := p.PlaceClusterAt(0, device.Loc{X: 0, Y: 0}); err == nil {
		t.Fatal("tile outside the region must be rejected")
	}
	// The fallback search must respect the region too.
	if err := p.PlaceCluster(0, device.TileLoc{X: 0, Y: 0}); err != nil {
		t.Fatalf("PlaceCluster: %v", err)
	}
	loc, _ := p.Registry().LocOf(0)
	if loc.X < 2 {
		t.Errorf("placed at %v, outside the allowed region", loc)
	}
}

func TestPlaceClusterFallbackLocality(t *testing.T) {
	_, reg, p := pairSetup(t, 3, 3, 3)
	desired := device.TileLoc{X: 1, Y: 1}

	// First two fill the desired tile's two sub-tiles; the third must
	// land on an adjacent tile, not further away.
	for i := legalizer.ClusterID(0); i < 3; i++ {
		if err := p.PlaceCluster(i, desired); err != nil {
			t.Fatalf("PlaceCluster %d: %v", i, err)
		}
	}
	loc0, _ := reg.LocOf(0)
	loc1, _ := reg.LocOf(1)
	if loc0.Tile() != desired || loc1.Tile() != desired {
		t.Errorf("first two clusters at %v and %v, want %v", loc0.Tile(), loc1.Tile(), desired)
	}
	loc2, _ := reg.LocOf(2)
	if d := device.ManhattanDist(loc2.Tile(), desired); d != 1 {
		t.Errorf("third cluster displaced by %d, want 1", d)
	}
}

func TestPlaceClusterExhausted(t *testing.T) {
	// A 1x1 grid with capacity 2 cannot hold 3 clusters.
	_, _, p := pairSetup(t, 3, 1, 1)
	desired := device.TileLoc{}

	for i := legalizer.ClusterID(0); i < 2; i++ {
		if err := p.PlaceCluster(i, desired); err != nil {
			t.Fatalf("PlaceCluster %d: %v", i, err)
		}
	}
	err := p.PlaceCluster(2, desired)
	if err == nil {
		t.Fatal("exhausted device must fail")
	}
	if errors.GetCode(err) != errors.ErrCodeUnplaceableCluster {
		t.Errorf("code = %v, want UNPLACEABLE_CLUSTER", errors.GetCode(err))
	}
	if !errors.IsFatal(err) {
		t.Error("exhaustion must be fatal for the run")
	}
}

func TestMacroPlacement(t *testing.T) {
	a := testArch(t)
	b := netlist.NewBuilder(a)
	for i := 0; i < 5; i++ {
		inputs := map[string]string{"a": fmt.Sprintf("x%d", i)}
		if i > 0 {
			inputs["cin"] = fmt.Sprintf("c%d", i-1)
		}
		b.AddAtom(fmt.Sprintf("add%d", i), "adder", inputs,
			map[string]string{"sum": fmt.Sprintf("s%d", i), "cout": fmt.Sprintf("c%d", i)}, "")
	}
	nl, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}
	pp := prepack.New(nl, a)
	// Two adder slices per cluster: 5 chained adders split into 3
	// molecules sharing one chain.
	if pp.NumMolecules() != 3 {
		t.Fatalf("NumMolecules = %d, want 3", pp.NumMolecules())
	}

	leg := legalizer.New(nl, pp, a, legalizer.Config{})
	clb := a.BlockType("clb")
	for i := 0; i < 3; i++ {
		if _, st := leg.StartNewCluster(prepack.MoleculeID(i), clb, legalizer.AnyMode); st != legalizer.StatusPassed {
			t.Fatalf("cluster %d: %v", i, st)
		}
	}

	ms := BuildMacros(leg, pp)
	if got := len(ms.Macros()); got != 1 {
		t.Fatalf("macros = %d, want 1", got)
	}
	if got := len(ms.Macros()[0].Members); got != 3 {
		t.Fatalf("members = %d, want 3", got)
	}

	grid := device.New(4, 4, 1, a.TileType("clb_tile"))
	reg := NewRegistry(grid)
	p := NewClusterPlacer(leg, reg, nil)
	p.SetMacros(ms)

	if err := p.PlaceCluster(0, device.TileLoc{X: 1, Y: 0}); err != nil {
		t.Fatalf("PlaceCluster: %v", err)
	}
	// All members bound, stacked one tile apart in y.
	for i, mem := range ms.Macros()[0].Members {
		loc, ok := reg.LocOf(mem.Cluster)
		if !ok {
			t.Fatalf("member %d not placed", i)
		}
		want := device.TileLoc{X: 1, Y: mem.DY}
		if loc.Tile() != want {
			t.Errorf("member %d at %v, want %v", i, loc.Tile(), want)
		}
	}
}

func TestPartialCentroid(t *testing.T) {
	a := testArch(t)
	b := netlist.NewBuilder(a)
	b.AddAtom("l0", "lut4", nil, map[string]string{"out": "w0"}, "")
	b.AddAtom("f0", "ff", map[string]string{"d": "w0"}, nil, "clk")
	nl, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}

	p := NewPartial(nl.NumAtoms())
	p.Set(0, 0.2, 3.9, 0, -1)
	p.Set(1, 1.8, 2.1, 0, 2)

	grid := device.New(4, 4, 1, a.TileType("clb_tile"))
	if got := p.DesiredTile(grid, 0); got != (device.TileLoc{X: 0, Y: 3}) {
		t.Errorf("DesiredTile = %v", got)
	}
	if got := p.CentroidTile(grid, []netlist.AtomID{0, 1}); got != (device.TileLoc{X: 1, Y: 3}) {
		t.Errorf("CentroidTile = %v", got)
	}
	if got := p.SubTileHint(1); got != 2 {
		t.Errorf("SubTileHint = %d, want 2", got)
	}
	if got := p.SubTileHint(0); got != -1 {
		t.Errorf("SubTileHint = %d, want -1", got)
	}
}

func TestSortAtomsByPos(t *testing.T) {
	p := NewPartial(4)
	p.Set(0, 2.0, 1.0, 0, -1)
	p.Set(1, 1.0, 5.0, 0, -1)
	p.Set(2, 1.0, 5.0, 1, -1)
	p.Set(3, 1.0, 2.0, 0, -1)

	atoms := []netlist.AtomID{0, 1, 2, 3}
	p.SortAtomsByPos(atoms)
	want := []netlist.AtomID{3, 1, 2, 0}
	for i := range want {
		if atoms[i] != want[i] {
			t.Fatalf("order = %v, want %v", atoms, want)
		}
	}
}
