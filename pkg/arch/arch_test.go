package arch

import (
	"strings"
	"testing"
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

[[models]]
name = "adder"
inputs = ["a", "b", "cin"]
outputs = ["sum", "cout"]
chain_in = "cin"
chain_out = "cout"

[[block_types]]
name = "clb"

[[block_types.modes]]
name = "default"
input_pins = 10
output_pins = 4
clock_pins = 1
routing_channels = 24

[[block_types.modes.sub_blocks]]
name = "ble"
count = 4
leaves = [
  { model = "lut4", count = 1 },
  { model = "ff", count = 1 },
]

[[block_types.modes]]
name = "arith"
input_pins = 8
output_pins = 4
clock_pins = 0
routing_channels = 16

[[block_types.modes.sub_blocks]]
name = "adder_slice"
count = 4
leaves = [{ model = "adder", count = 1 }]

[[pack_patterns]]
name = "carry_chain"
kind = "chain"
model = "adder"

[[pack_patterns]]
name = "lut_ff"
kind = "pair"
driver = "lut4"
driver_port = "out"
sink = "ff"
sink_port = "d"

[[tile_types]]
name = "clb_tile"
sub_tiles = [{ name = "clb", capacity = 1, compatible = ["clb"] }]

[[tile_types]]
name = "empty_tile"
sub_tiles = []
`

func loadTestArch(t *testing.T) *Architecture {
	t.Helper()
	a, err := Load(strings.NewReader(testArchTOML))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	return a
}

func TestLoad(t *testing.T) {
	a := loadTestArch(t)

	if got := len(a.Models); got != 3 {
		t.Errorf("len(Models) = %d, want 3", got)
	}
	if a.Model("lut4") == nil || a.Model("ff") == nil || a.Model("adder") == nil {
		t.Error("expected all models to be indexed by name")
	}
	if a.Model("adder") != nil && !a.Model("adder").Chains() {
		t.Error("adder should chain")
	}
	if a.BlockType("clb") == nil {
		t.Fatal("clb block type not indexed")
	}
}

func TestModeCapacities(t *testing.T) {
	a := loadTestArch(t)
	clb := a.BlockType("clb")

	tests := []struct {
		mode  int
		model string
		want  int
	}{
		{0, "lut4", 4},
		{0, "ff", 4},
		{0, "adder", 0},
		{1, "adder", 4},
		{1, "lut4", 0},
	}
	for _, tt := range tests {
		if got := clb.Modes[tt.mode].ModelCapacity(tt.model); got != tt.want {
			t.Errorf("mode %d ModelCapacity(%s) = %d, want %d", tt.mode, tt.model, got, tt.want)
		}
	}

	if got := clb.Modes[0].NumLeaves(); got != 8 {
		t.Errorf("default mode NumLeaves = %d, want 8", got)
	}
	if got := a.MaxClusterSize(); got != 8 {
		t.Errorf("MaxClusterSize = %d, want 8", got)
	}
}

func TestCandidateBlockTypes(t *testing.T) {
	a := loadTestArch(t)

	for _, model := range []string{"lut4", "ff", "adder"} {
		cands := a.CandidateBlockTypes(model)
		if len(cands) != 1 || cands[0].Name != "clb" {
			t.Errorf("CandidateBlockTypes(%s) = %v, want [clb]", model, cands)
		}
	}
	if got := a.CandidateBlockTypes("unknown"); got != nil {
		t.Errorf("CandidateBlockTypes(unknown) = %v, want nil", got)
	}
}

func TestTileCompatibility(t *testing.T) {
	a := loadTestArch(t)
	tile := a.TileType("clb_tile")

	if !tile.CompatibleWith("clb") {
		t.Error("clb_tile should accept clb")
	}
	if tile.CompatibleWith("dsp") {
		t.Error("clb_tile should not accept dsp")
	}
	if !tile.SubTileCompatible(0, "clb") {
		t.Error("sub-tile 0 should accept clb")
	}
	if tile.SubTileCompatible(1, "clb") {
		t.Error("sub-tile 1 is out of range")
	}

	empty := a.TileType("empty_tile")
	if got := empty.NumSubTiles(); got != 0 {
		t.Errorf("empty tile NumSubTiles = %d, want 0", got)
	}
}

func TestChainPattern(t *testing.T) {
	a := loadTestArch(t)

	if p := a.ChainPattern("adder"); p == nil || p.Name != "carry_chain" {
		t.Errorf("ChainPattern(adder) = %v, want carry_chain", p)
	}
	if p := a.ChainPattern("lut4"); p != nil {
		t.Errorf("ChainPattern(lut4) = %v, want nil", p)
	}
}

func TestLoadRejectsMalformed(t *testing.T) {
	tests := []struct {
		name string
		toml string
	}{
		{"no models", `[[block_types]]
name = "clb"`},
		{"unknown leaf model", `[[models]]
name = "lut4"
outputs = ["out"]

[[block_types]]
name = "clb"
[[block_types.modes]]
name = "default"
[[block_types.modes.sub_blocks]]
name = "ble"
count = 1
leaves = [{ model = "nope", count = 1 }]`},
		{"pattern on chainless model", `[[models]]
name = "lut4"
outputs = ["out"]

[[block_types]]
name = "clb"
[[block_types.modes]]
name = "default"
[[block_types.modes.sub_blocks]]
name = "ble"
count = 1
leaves = [{ model = "lut4", count = 1 }]

[[pack_patterns]]
name = "bad_chain"
kind = "chain"
model = "lut4"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(strings.NewReader(tt.toml)); err == nil {
				t.Error("Load should have failed")
			}
		})
	}
}
