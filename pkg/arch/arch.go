// Package arch models the target FPGA architecture: primitive models,
// logical block types with their operating modes and internal sub-block
// structure, packing patterns, and physical tile types.
//
// The architecture is static input to the whole flow. It is loaded once
// (see Load) and queried, never mutated, by the packer and legalizers.
//
// # Structure
//
// A BlockType is a container template (for example a configurable logic
// block). Each of its Modes exposes a different internal sub-block tree:
// sub-blocks that each hold a fixed set of primitive leaf slots, plus a
// pin budget and an internal routing budget. A cluster is always bound to
// exactly one (type, mode) pair.
//
// TileTypes describe the physical side: each tile offers zero or more
// sub-tile slots, and each sub-tile names which logical block types it
// can accommodate.
package arch

import (
	"fmt"

	"github.com/selimozt/fabpack/pkg/errors"
)

// Model describes a primitive netlist model (for example a LUT, a
// flip-flop, or an adder bit).
type Model struct {
	Name    string   `toml:"name" json:"name"`
	Inputs  []string `toml:"inputs" json:"inputs"`
	Outputs []string `toml:"outputs" json:"outputs"`
	Clocked bool     `toml:"clocked" json:"clocked,omitempty"`

	// ChainIn and ChainOut name the dedicated ports through which
	// instances of this model form carry chains. Both empty means the
	// model does not chain.
	ChainIn  string `toml:"chain_in" json:"chain_in,omitempty"`
	ChainOut string `toml:"chain_out" json:"chain_out,omitempty"`
}

// Chains reports whether the model has dedicated chain ports.
func (m *Model) Chains() bool { return m.ChainIn != "" && m.ChainOut != "" }

// LeafSpec declares how many leaf slots for one primitive model a
// sub-block provides.
type LeafSpec struct {
	Model string `toml:"model" json:"model"`
	Count int    `toml:"count" json:"count"`
}

// SubBlockSpec declares a repeated internal sub-block (for example a BLE)
// within a mode.
type SubBlockSpec struct {
	Name   string     `toml:"name" json:"name"`
	Count  int        `toml:"count" json:"count"`
	Leaves []LeafSpec `toml:"leaves" json:"leaves"`
}

// Mode is one operating mode of a block type. The pin and routing budgets
// bound what any cluster bound to this mode may use.
type Mode struct {
	Name       string         `toml:"name" json:"name"`
	InputPins  int            `toml:"input_pins" json:"input_pins"`
	OutputPins int            `toml:"output_pins" json:"output_pins"`
	ClockPins  int            `toml:"clock_pins" json:"clock_pins"`
	SubBlocks  []SubBlockSpec `toml:"sub_blocks" json:"sub_blocks"`

	// RoutingChannels bounds the number of distinct nets the cluster's
	// internal crossbar can carry. Zero means unconstrained.
	RoutingChannels int `toml:"routing_channels" json:"routing_channels"`
}

// ModelCapacity returns the number of leaf slots this mode provides for
// the given primitive model.
func (m *Mode) ModelCapacity(model string) int {
	n := 0
	for _, sb := range m.SubBlocks {
		for _, leaf := range sb.Leaves {
			if leaf.Model == model {
				n += leaf.Count * sb.Count
			}
		}
	}
	return n
}

// NumLeaves returns the total number of leaf slots in this mode.
func (m *Mode) NumLeaves() int {
	n := 0
	for _, sb := range m.SubBlocks {
		for _, leaf := range sb.Leaves {
			n += leaf.Count * sb.Count
		}
	}
	return n
}

// BlockType is a logical block container template.
type BlockType struct {
	Name  string `toml:"name" json:"name"`
	Modes []Mode `toml:"modes" json:"modes"`
}

// PackPattern kinds.
const (
	PatternChain = "chain" // follow chain ports through same-model atoms
	PatternPair  = "pair"  // driver model feeding a single-fanout sink model
)

// PackPattern is an architecture packing pattern matched by the molecule
// grouper.
type PackPattern struct {
	Name string `toml:"name" json:"name"`
	Kind string `toml:"kind" json:"kind"`

	// Chain patterns: the chaining model.
	Model string `toml:"model" json:"model,omitempty"`

	// Pair patterns: driver output port feeding the sink's input port.
	Driver     string `toml:"driver" json:"driver,omitempty"`
	DriverPort string `toml:"driver_port" json:"driver_port,omitempty"`
	Sink       string `toml:"sink" json:"sink,omitempty"`
	SinkPort   string `toml:"sink_port" json:"sink_port,omitempty"`
}

// SubTile is one slot of a physical tile.
type SubTile struct {
	Name       string   `toml:"name" json:"name"`
	Capacity   int      `toml:"capacity" json:"capacity"`
	Compatible []string `toml:"compatible" json:"compatible"`
}

// TileType is a physical tile template on the device grid.
type TileType struct {
	Name     string    `toml:"name" json:"name"`
	SubTiles []SubTile `toml:"sub_tiles" json:"sub_tiles"`
}

// NumSubTiles returns the total sub-tile slot count of the tile.
func (t *TileType) NumSubTiles() int {
	n := 0
	for _, st := range t.SubTiles {
		n += st.Capacity
	}
	return n
}

// CompatibleWith reports whether any sub-tile of this tile accepts the
// given logical block type.
func (t *TileType) CompatibleWith(blockType string) bool {
	for _, st := range t.SubTiles {
		for _, c := range st.Compatible {
			if c == blockType {
				return true
			}
		}
	}
	return false
}

// SubTileCompatible reports whether the sub-tile slot at the given flat
// index accepts the logical block type. Flat indices count through the
// SubTiles list in declaration order, expanding each capacity.
func (t *TileType) SubTileCompatible(subTile int, blockType string) bool {
	for _, st := range t.SubTiles {
		if subTile < st.Capacity {
			for _, c := range st.Compatible {
				if c == blockType {
					return true
				}
			}
			return false
		}
		subTile -= st.Capacity
	}
	return false
}

// Architecture is the full, immutable architecture description.
type Architecture struct {
	Models     []Model       `toml:"models" json:"models"`
	BlockTypes []BlockType   `toml:"block_types" json:"block_types"`
	Patterns   []PackPattern `toml:"pack_patterns" json:"pack_patterns"`
	TileTypes  []TileType    `toml:"tile_types" json:"tile_types"`

	modelByName map[string]*Model
	typeByName  map[string]*BlockType
	tileByName  map[string]*TileType
	candidates  map[string][]*BlockType
}

// Model returns the primitive model with the given name, or nil.
func (a *Architecture) Model(name string) *Model { return a.modelByName[name] }

// BlockType returns the logical block type with the given name, or nil.
func (a *Architecture) BlockType(name string) *BlockType { return a.typeByName[name] }

// TileType returns the physical tile type with the given name, or nil.
func (a *Architecture) TileType(name string) *TileType { return a.tileByName[name] }

// CandidateBlockTypes returns the block types that provide at least one
// leaf slot for the given primitive model, in declaration order. The
// returned slice is shared; callers must not modify it.
func (a *Architecture) CandidateBlockTypes(model string) []*BlockType {
	return a.candidates[model]
}

// MaxClusterSize returns the largest leaf slot count over all
// (type, mode) pairs. Used to bound hill-climbing budget tables.
func (a *Architecture) MaxClusterSize() int {
	maxSize := 0
	for i := range a.BlockTypes {
		for j := range a.BlockTypes[i].Modes {
			if n := a.BlockTypes[i].Modes[j].NumLeaves(); n > maxSize {
				maxSize = n
			}
		}
	}
	return maxSize
}

// ChainPattern returns the chain pack pattern for the given model, or nil
// if the model does not participate in a chain pattern.
func (a *Architecture) ChainPattern(model string) *PackPattern {
	for i := range a.Patterns {
		p := &a.Patterns[i]
		if p.Kind == PatternChain && p.Model == model {
			return p
		}
	}
	return nil
}

// index builds the lookup maps. Called by Load and by tests that
// construct an Architecture literal.
func (a *Architecture) index() {
	a.modelByName = make(map[string]*Model, len(a.Models))
	for i := range a.Models {
		a.modelByName[a.Models[i].Name] = &a.Models[i]
	}
	a.typeByName = make(map[string]*BlockType, len(a.BlockTypes))
	for i := range a.BlockTypes {
		a.typeByName[a.BlockTypes[i].Name] = &a.BlockTypes[i]
	}
	a.tileByName = make(map[string]*TileType, len(a.TileTypes))
	for i := range a.TileTypes {
		a.tileByName[a.TileTypes[i].Name] = &a.TileTypes[i]
	}
	a.candidates = make(map[string][]*BlockType)
	for i := range a.Models {
		model := a.Models[i].Name
		for j := range a.BlockTypes {
			bt := &a.BlockTypes[j]
			for k := range bt.Modes {
				if bt.Modes[k].ModelCapacity(model) > 0 {
					a.candidates[model] = append(a.candidates[model], bt)
					break
				}
			}
		}
	}
}

// Finalize indexes and validates the architecture. It must be called on
// any Architecture constructed directly rather than through Load.
func (a *Architecture) Finalize() error {
	a.index()
	return a.validate()
}

func (a *Architecture) validate() error {
	if len(a.Models) == 0 {
		return errors.New(errors.ErrCodeInvalidArch, "architecture declares no primitive models")
	}
	if len(a.BlockTypes) == 0 {
		return errors.New(errors.ErrCodeInvalidArch, "architecture declares no block types")
	}
	for i := range a.BlockTypes {
		bt := &a.BlockTypes[i]
		if len(bt.Modes) == 0 {
			return errors.New(errors.ErrCodeInvalidArch, "block type %q has no modes", bt.Name)
		}
		for j := range bt.Modes {
			mode := &bt.Modes[j]
			if mode.NumLeaves() == 0 {
				return errors.New(errors.ErrCodeInvalidArch,
					"block type %q mode %q has no leaf slots", bt.Name, mode.Name)
			}
			for _, sb := range mode.SubBlocks {
				for _, leaf := range sb.Leaves {
					if a.modelByName[leaf.Model] == nil {
						return errors.New(errors.ErrCodeInvalidArch,
							"block type %q mode %q references unknown model %q",
							bt.Name, mode.Name, leaf.Model)
					}
				}
			}
		}
	}
	for i := range a.Patterns {
		p := &a.Patterns[i]
		switch p.Kind {
		case PatternChain:
			m := a.modelByName[p.Model]
			if m == nil {
				return errors.New(errors.ErrCodeInvalidArch,
					"pack pattern %q references unknown model %q", p.Name, p.Model)
			}
			if !m.Chains() {
				return errors.New(errors.ErrCodeInvalidArch,
					"pack pattern %q: model %q has no chain ports", p.Name, p.Model)
			}
		case PatternPair:
			if a.modelByName[p.Driver] == nil || a.modelByName[p.Sink] == nil {
				return errors.New(errors.ErrCodeInvalidArch,
					"pack pattern %q references unknown driver or sink model", p.Name)
			}
		default:
			return errors.New(errors.ErrCodeInvalidArch,
				"pack pattern %q has unknown kind %q", p.Name, p.Kind)
		}
	}
	for i := range a.TileTypes {
		tt := &a.TileTypes[i]
		for _, st := range tt.SubTiles {
			if st.Capacity <= 0 {
				return errors.New(errors.ErrCodeInvalidArch,
					"tile type %q sub-tile %q has non-positive capacity", tt.Name, st.Name)
			}
			for _, c := range st.Compatible {
				if a.typeByName[c] == nil {
					return errors.New(errors.ErrCodeInvalidArch,
						"tile type %q sub-tile %q references unknown block type %q",
						tt.Name, st.Name, c)
				}
			}
		}
	}
	return nil
}

// String returns a short human-readable summary.
func (a *Architecture) String() string {
	return fmt.Sprintf("arch{models: %d, block types: %d, tile types: %d, patterns: %d}",
		len(a.Models), len(a.BlockTypes), len(a.TileTypes), len(a.Patterns))
}
