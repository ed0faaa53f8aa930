package pipeline

import (
	"context"
	"strings"
	"testing"

	"github.com/selimozt/fabpack/pkg/cache"
)

const testArchTOML = `
[[models]]
name = "lut4"
inputs = ["a", "b", "c", "d"]
outputs = ["out"]

[[models]]
name = "ff"
inputs = ["d"]
outputs = ["q"]
clocked = true

[[block_types]]
name = "clb"

[[block_types.modes]]
name = "default"
input_pins = 10
output_pins = 4
clock_pins = 1

[[block_types.modes.sub_blocks]]
name = "ble"
count = 4
leaves = [{ model = "lut4", count = 1 }, { model = "ff", count = 1 }]

[[pack_patterns]]
name = "lut_ff"
kind = "pair"
driver = "lut4"
driver_port = "out"
sink = "ff"
sink_port = "d"

[[tile_types]]
name = "clb_tile"
sub_tiles = [{ name = "slot", capacity = 1, compatible = ["clb"] }]
`

const testNetlistTOML = `
[[atoms]]
name = "l0"
model = "lut4"
inputs = { a = "in0" }
outputs = { out = "w0" }

[[atoms]]
name = "f0"
model = "ff"
inputs = { d = "w0" }
outputs = { q = "out0" }
clock = "clk"
`

const testDeviceTOML = `
[grid]
width = 4
height = 4
default = "clb_tile"
`

const testPlacementTOML = `
[[blocks]]
name = "l0"
x = 2.3
y = 1.3

[[blocks]]
name = "f0"
x = 2.6
y = 1.6
`

func testDocs() Documents {
	return Documents{
		Arch:      []byte(testArchTOML),
		Netlist:   []byte(testNetlistTOML),
		Device:    []byte(testDeviceTOML),
		Placement: []byte(testPlacementTOML),
	}
}

func TestValidateAndSetDefaults(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		wantErr bool
	}{
		{"empty gets defaults", Options{}, false},
		{"explicit strategy", Options{Strategy: "naive"}, false},
		{"unknown strategy", Options{Strategy: "mystery"}, true},
		{"unknown format", Options{Formats: []string{"gif"}}, true},
		{"pin util out of range", Options{TargetExtPinUtil: 1.5}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.ValidateAndSetDefaults()
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && tt.opts.Strategy == "" {
				t.Error("Strategy default not applied")
			}
		})
	}
}

func TestExecute(t *testing.T) {
	r := NewRunner(nil, nil, nil)
	res, err := r.Execute(context.Background(), testDocs(), Options{
		Formats: []string{FormatJSON, FormatDOT},
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Report == nil {
		t.Fatal("no report")
	}
	if res.Report.Packing.NumClusters != 1 {
		t.Errorf("NumClusters = %d, want 1", res.Report.Packing.NumClusters)
	}
	if res.Report.Quality.TotalDisplacement != 0 {
		t.Errorf("TotalDisplacement = %d, want 0", res.Report.Quality.TotalDisplacement)
	}
	if len(res.Artifacts[FormatJSON]) == 0 {
		t.Error("missing json artifact")
	}
	if !strings.Contains(string(res.Artifacts[FormatDOT]), "fabpack_grid") {
		t.Error("dot artifact missing grid graph")
	}
	if res.CacheInfo.ResultHit {
		t.Error("first run should not hit the cache")
	}
}

func TestExecuteCacheHit(t *testing.T) {
	c, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	r := NewRunner(c, nil, nil)
	ctx := context.Background()

	first, err := r.Execute(ctx, testDocs(), Options{})
	if err != nil {
		t.Fatal(err)
	}
	second, err := r.Execute(ctx, testDocs(), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if !second.CacheInfo.ResultHit {
		t.Error("second run should hit the result cache")
	}
	if second.Report.RunID != first.Report.RunID {
		t.Error("cached report should be the stored run")
	}

	// Refresh bypasses the cache and produces a new run.
	third, err := r.Execute(ctx, testDocs(), Options{Refresh: true})
	if err != nil {
		t.Fatal(err)
	}
	if third.CacheInfo.ResultHit {
		t.Error("refresh should not hit the cache")
	}
	if third.Report.RunID == first.Report.RunID {
		t.Error("refresh should produce a new run")
	}
}

func TestExecuteStrategyAffectsKey(t *testing.T) {
	c, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	r := NewRunner(c, nil, nil)
	ctx := context.Background()

	if _, err := r.Execute(ctx, testDocs(), Options{Strategy: "flatrecon"}); err != nil {
		t.Fatal(err)
	}
	res, err := r.Execute(ctx, testDocs(), Options{Strategy: "naive"})
	if err != nil {
		t.Fatal(err)
	}
	if res.CacheInfo.ResultHit {
		t.Error("a different strategy should not reuse the cached result")
	}
}

func TestExecuteNoPlacement(t *testing.T) {
	docs := testDocs()
	docs.Placement = nil

	r := NewRunner(nil, nil, nil)
	res, err := r.Execute(context.Background(), docs, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if res.Report.Packing.NumClusters != 1 {
		t.Errorf("NumClusters = %d, want 1", res.Report.Packing.NumClusters)
	}
}

func TestExecuteBadDocuments(t *testing.T) {
	docs := testDocs()
	docs.Netlist = []byte("[[atoms]]\nname = \"x\"\nmodel = \"unknown\"\n")

	r := NewRunner(nil, nil, nil)
	if _, err := r.Execute(context.Background(), docs, Options{}); err == nil {
		t.Error("bad netlist should fail")
	}
}
