// Package pipeline provides the core legalization pipeline for fabpack.
//
// This package implements the complete load → pack → place → report
// flow that can be used by CLI and API components. By centralizing it,
// we ensure consistent behavior across all entry points and avoid code
// duplication.
//
// # Architecture
//
// The pipeline consists of three stages:
//
//  1. Load: Parse the architecture, netlist, device, and placement TOML
//  2. Legalize: Cluster the atoms and bind every cluster to a slot
//  3. Report: Summarize the run and render optional artifacts
//
// Finished results are cached by a content hash of the inputs, so
// repeated runs over the same documents skip straight to the report.
//
// # Usage
//
// Create a Runner and execute the pipeline:
//
//	runner := pipeline.NewRunner(cache, nil, logger)
//	opts := pipeline.Options{
//	    Strategy: "flatrecon",
//	    Formats:  []string{"json", "svg"},
//	}
//	result, err := runner.Execute(ctx, docs, opts)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	svg := result.Artifacts["svg"]
package pipeline

import (
	"github.com/selimozt/fabpack/pkg/errors"
	"github.com/selimozt/fabpack/pkg/fulllegal"
)

// =============================================================================
// Default Values - Single Source of Truth for CLI and API
// =============================================================================

const (
	// DefaultStrategy is the full legalizer used when none is named.
	// FlatRecon preserves the input placement, which is what callers
	// handing us a continuous placement almost always want.
	DefaultStrategy = string(fulllegal.KindFlatRecon)

	// DefaultHighFanoutNetThreshold bounds the nets drawn in diagram
	// output. Clock-sized nets turn the drawing into a hairball.
	DefaultHighFanoutNetThreshold = 64
)

// Format constants for output formats.
const (
	FormatJSON = "json"
	FormatDOT  = "dot"
	FormatSVG  = "svg"
	FormatPNG  = "png"
)

// ValidFormats is the set of supported output formats.
var ValidFormats = map[string]bool{
	FormatJSON: true,
	FormatDOT:  true,
	FormatSVG:  true,
	FormatPNG:  true,
}

// =============================================================================
// Options - Pipeline Configuration
// =============================================================================

// Options contains all configuration for the legalization pipeline.
// This struct supports JSON serialization for API requests.
type Options struct {
	// Strategy names the full legalizer kind (naive, hintpack,
	// flatrecon).
	Strategy string `json:"strategy,omitempty"`

	// TargetExtPinUtil scales the external input pin budget of a
	// cluster during packing. Zero means no scaling.
	TargetExtPinUtil float64 `json:"target_ext_pin_util,omitempty"`

	// Formats lists the artifacts to produce (json, dot, svg, png).
	Formats []string `json:"formats,omitempty"`

	// Refresh bypasses the result cache.
	Refresh bool `json:"refresh,omitempty"`
}

// ValidateAndSetDefaults checks the options and fills defaults.
func (o *Options) ValidateAndSetDefaults() error {
	if o.Strategy == "" {
		o.Strategy = DefaultStrategy
	}
	valid := false
	for _, k := range fulllegal.Kinds() {
		if o.Strategy == string(k) {
			valid = true
			break
		}
	}
	if !valid {
		return errors.New(errors.ErrCodeInvalidConfig, "unknown strategy %q", o.Strategy)
	}
	if o.TargetExtPinUtil < 0 || o.TargetExtPinUtil > 1 {
		return errors.New(errors.ErrCodeInvalidConfig, "target_ext_pin_util %v outside [0, 1]", o.TargetExtPinUtil)
	}
	if len(o.Formats) == 0 {
		o.Formats = []string{FormatJSON}
	}
	for _, f := range o.Formats {
		if !ValidFormats[f] {
			return errors.New(errors.ErrCodeInvalidConfig, "unknown format %q", f)
		}
	}
	return nil
}

// Documents are the raw TOML inputs of one run. Placement is optional;
// an empty placement leaves every atom at the origin.
type Documents struct {
	Arch      []byte `json:"arch"`
	Netlist   []byte `json:"netlist"`
	Device    []byte `json:"device"`
	Placement []byte `json:"placement,omitempty"`
}
