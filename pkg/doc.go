// Package pkg provides the core libraries for fabpack netlist clustering
// and placement legalization.
//
// # Overview
//
// Fabpack packs a primitive ("atom") netlist into architecture clusters
// and turns a continuous analytical placement into a fully legal one,
// with every cluster on its own device slot. The pkg directory is
// organized into four main areas:
//
//  1. Inputs - arch, netlist, device, place (file formats and models)
//  2. Packing - prepack, legalizer, pack (molecules and clusters)
//  3. Legalization - fulllegal, place (slot assignment strategies)
//  4. Infrastructure - cache, store, pipeline, api, render, report
//
// # Architecture
//
// The typical data flow through fabpack:
//
//	Architecture + Atom Netlist
//	         ↓
//	    [prepack] package (pattern molecules)
//	         ↓
//	    [pack]/[legalizer] packages (greedy clustering, two-tier checks)
//	         ↓
//	    [fulllegal] package (slot per cluster, displacement minimized)
//	         ↓
//	    [report] package (JSON report, DOT/SVG/PNG artifacts)
//
// # Quick Start
//
// Load the inputs and run the flat reconstruction legalizer:
//
//	import (
//	    "github.com/selimozt/fabpack/pkg/arch"
//	    "github.com/selimozt/fabpack/pkg/device"
//	    "github.com/selimozt/fabpack/pkg/fulllegal"
//	    "github.com/selimozt/fabpack/pkg/netlist"
//	    "github.com/selimozt/fabpack/pkg/place"
//	    "github.com/selimozt/fabpack/pkg/prepack"
//	)
//
//	ar, _ := arch.LoadFile("arch.toml")
//	nl, _ := netlist.LoadFile("netlist.toml", ar)
//	grid, _ := device.LoadFile("device.toml", ar)
//	partial, _ := place.LoadPartialFile("place.toml", nl)
//	pp := prepack.New(nl, ar)
//
//	leg, _ := fulllegal.New(fulllegal.KindFlatRecon, fulllegal.Inputs{
//	    Netlist: nl, Prepack: pp, Arch: ar, Grid: grid, Partial: partial,
//	})
//	res, _ := leg.Legalize()
//
// The [pipeline] package wraps this flow with caching and artifact
// rendering, and is what both the CLI and the HTTP API drive.
package pkg
