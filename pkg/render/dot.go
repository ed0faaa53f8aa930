// Package render draws legalization output. Two views exist: the
// clustered netlist as a Graphviz cluster diagram (atoms grouped into
// their clusters, net edges between them) and the placed device grid
// with each cluster pinned at its final tile. Both start as DOT text
// and render to SVG or PNG in process.
package render

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/selimozt/fabpack/pkg/legalizer"
	"github.com/selimozt/fabpack/pkg/netlist"
	"github.com/selimozt/fabpack/pkg/report"
)

// Options configures DOT generation.
type Options struct {
	// Detailed includes the primitive model in atom labels.
	Detailed bool

	// HighFanoutThreshold drops nets with more sinks than this from
	// the diagram. Zero keeps every net. Clock-sized nets drown the
	// drawing, so the CLI sets a default.
	HighFanoutThreshold int
}

// ClusterDOT converts a clustered netlist to Graphviz DOT format.
// Atoms are grouped into subgraph boxes per cluster; edges follow the
// nets. The result renders with [SVG] or [PNG].
func ClusterDOT(nl *netlist.Netlist, leg *legalizer.ClusterLegalizer, opts Options) string {
	var buf bytes.Buffer
	buf.WriteString("digraph fabpack {\n")
	buf.WriteString("  rankdir=LR;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=12];\n")
	buf.WriteString("\n")

	for _, id := range leg.Clusters() {
		typeName := ""
		if bt := leg.ClusterType(id); bt != nil {
			typeName = bt.Name
		}
		fmt.Fprintf(&buf, "  subgraph cluster_%d {\n", id)
		fmt.Fprintf(&buf, "    label=%q;\n", fmt.Sprintf("%s %d", typeName, id))
		buf.WriteString("    style=dashed;\n")
		for _, a := range leg.ClusterAtoms(id) {
			atom := nl.Atom(a)
			fmt.Fprintf(&buf, "    %q [%s];\n", atom.Name, strings.Join(atomAttrs(atom, opts), ", "))
		}
		buf.WriteString("  }\n")
	}

	// Unclustered atoms sit outside any box.
	for _, a := range nl.Atoms() {
		if leg.AtomCluster(a) == legalizer.InvalidCluster {
			atom := nl.Atom(a)
			fmt.Fprintf(&buf, "  %q [%s];\n", atom.Name, strings.Join(atomAttrs(atom, opts), ", "))
		}
	}

	// Clock nets draw dashed so the data flow stays readable.
	clocks := make(map[netlist.NetID]struct{})
	for _, a := range nl.Atoms() {
		if cn := nl.Atom(a).ClockNet(); cn.IsValid() {
			clocks[cn] = struct{}{}
		}
	}

	buf.WriteString("\n")
	for id := netlist.NetID(0); int(id) < nl.NumNets(); id++ {
		net := nl.Net(id)
		if !net.Driver.Atom.IsValid() {
			continue
		}
		if opts.HighFanoutThreshold > 0 && len(net.Sinks) > opts.HighFanoutThreshold {
			continue
		}
		attrs := ""
		if _, ok := clocks[id]; ok {
			attrs = " [style=dashed, color=gray]"
		}
		from := nl.Atom(net.Driver.Atom).Name
		for _, sink := range net.Sinks {
			fmt.Fprintf(&buf, "  %q -> %q%s;\n", from, nl.Atom(sink.Atom).Name, attrs)
		}
	}

	buf.WriteString("}\n")
	return buf.String()
}

func atomAttrs(a *netlist.Atom, opts Options) []string {
	label := a.Name
	if opts.Detailed {
		label = a.Name + "\n" + a.Model
	}
	return []string{fmt.Sprintf("label=%q", label)}
}

// GridDOT converts a report to a pinned-position DOT graph of the
// placed device. Each cluster becomes a node at its tile coordinates.
// The output needs the neato engine; [SVG] and [PNG] select it when
// pinned positions are present.
func GridDOT(r *report.Report) string {
	var buf bytes.Buffer
	buf.WriteString("graph fabpack_grid {\n")
	buf.WriteString("  layout=neato;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=filled, fillcolor=lightyellow, fontsize=10, width=0.8, height=0.8, fixedsize=true];\n")
	buf.WriteString("\n")

	for _, blk := range r.Blocks {
		label := fmt.Sprintf("%s %d", blk.Type, blk.Cluster)
		attrs := []string{
			fmt.Sprintf("label=%q", label),
			fmt.Sprintf("pos=\"%d,%d!\"", blk.Loc.X, blk.Loc.Y),
		}
		if blk.Displacement > 0 {
			attrs = append(attrs, "fillcolor=lightsalmon")
		}
		fmt.Fprintf(&buf, "  c%d [%s];\n", blk.Cluster, strings.Join(attrs, ", "))
	}

	buf.WriteString("}\n")
	return buf.String()
}
