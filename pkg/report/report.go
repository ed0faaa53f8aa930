// Package report summarizes a finished legalization run into a
// serializable document: per-block-type cluster usage, the final slot
// of every cluster, and displacement from the desired positions. The
// document is what the store persists, what the renderer draws, and
// what the checker re-verifies.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/selimozt/fabpack/pkg/device"
	"github.com/selimozt/fabpack/pkg/fulllegal"
	"github.com/selimozt/fabpack/pkg/netlist"
	"github.com/selimozt/fabpack/pkg/prepack"
)

// Report is the persistent record of one legalization run.
type Report struct {
	RunID     string    `json:"run_id" bson:"run_id"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	Strategy  string    `json:"strategy" bson:"strategy"`

	Device  DeviceInfo  `json:"device" bson:"device"`
	Netlist NetlistInfo `json:"netlist" bson:"netlist"`
	Packing PackingInfo `json:"packing" bson:"packing"`
	Quality QualityInfo `json:"quality" bson:"quality"`

	// Blocks lists every placed cluster in cluster-ID order.
	Blocks []Block `json:"blocks" bson:"blocks"`
}

// DeviceInfo records the grid the run targeted.
type DeviceInfo struct {
	Width  int `json:"width" bson:"width"`
	Height int `json:"height" bson:"height"`
	Layers int `json:"layers" bson:"layers"`
}

// NetlistInfo records input sizes.
type NetlistInfo struct {
	Atoms     int `json:"atoms" bson:"atoms"`
	Nets      int `json:"nets" bson:"nets"`
	Molecules int `json:"molecules" bson:"molecules"`
	Chains    int `json:"chains" bson:"chains"`
}

// PackingInfo records the cluster partition.
type PackingInfo struct {
	NumClusters int `json:"num_clusters" bson:"num_clusters"`
	// UsageByType counts clusters per block type name.
	UsageByType map[string]int `json:"usage_by_type" bson:"usage_by_type"`
	// LogicElements counts clustered atoms per primitive model name.
	LogicElements map[string]int `json:"logic_elements" bson:"logic_elements"`
}

// QualityInfo records how far the final slots drifted from the
// desired positions.
type QualityInfo struct {
	Placed            int     `json:"placed" bson:"placed"`
	Displaced         int     `json:"displaced" bson:"displaced"`
	TotalDisplacement int     `json:"total_displacement" bson:"total_displacement"`
	MaxDisplacement   int     `json:"max_displacement" bson:"max_displacement"`
	MeanDisplacement  float64 `json:"mean_displacement" bson:"mean_displacement"`
}

// Block is one placed cluster.
type Block struct {
	Cluster      int            `json:"cluster" bson:"cluster"`
	Type         string         `json:"type" bson:"type"`
	Loc          device.Loc     `json:"loc" bson:"loc"`
	Desired      device.TileLoc `json:"desired" bson:"desired"`
	Displacement int            `json:"displacement" bson:"displacement"`
	Atoms        []string       `json:"atoms" bson:"atoms"`
}

// Build assembles a report from a legalization result. The strategy
// string names the full legalizer kind that produced the result.
func Build(strategy string, nl *netlist.Netlist, pp *prepack.Prepacker, res *fulllegal.Result) *Report {
	grid := res.Registry.Grid()
	r := &Report{
		RunID:     uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		Strategy:  strategy,
		Device: DeviceInfo{
			Width:  grid.Width(),
			Height: grid.Height(),
			Layers: grid.Layers(),
		},
		Netlist: NetlistInfo{
			Atoms:     nl.NumAtoms(),
			Nets:      nl.NumNets(),
			Molecules: pp.NumMolecules(),
			Chains:    pp.NumChains(),
		},
		Packing: PackingInfo{
			NumClusters:   res.Pack.NumClusters,
			UsageByType:   res.Pack.UsageByType,
			LogicElements: res.Pack.LogicElements,
		},
	}

	for _, id := range res.Registry.Clusters() {
		loc, _ := res.Registry.LocOf(id)
		disp := res.Displacement(id)
		atoms := res.Legalizer.ClusterAtoms(id)
		names := make([]string, len(atoms))
		for i, a := range atoms {
			names[i] = nl.Atom(a).Name
		}
		typeName := ""
		if bt := res.Legalizer.ClusterType(id); bt != nil {
			typeName = bt.Name
		}
		r.Blocks = append(r.Blocks, Block{
			Cluster:      int(id),
			Type:         typeName,
			Loc:          loc,
			Desired:      res.Desired[id],
			Displacement: disp,
			Atoms:        names,
		})

		r.Quality.Placed++
		r.Quality.TotalDisplacement += disp
		if disp > 0 {
			r.Quality.Displaced++
		}
		if disp > r.Quality.MaxDisplacement {
			r.Quality.MaxDisplacement = disp
		}
	}
	if r.Quality.Placed > 0 {
		r.Quality.MeanDisplacement = float64(r.Quality.TotalDisplacement) / float64(r.Quality.Placed)
	}
	return r
}

// WriteJSON encodes the report as indented JSON.
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}

// ExportJSON writes the report to a JSON file at path.
func (r *Report) ExportJSON(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	return r.WriteJSON(f)
}

// ReadJSON decodes a report written by [Report.WriteJSON].
func ReadJSON(rd io.Reader) (*Report, error) {
	var r Report
	if err := json.NewDecoder(rd).Decode(&r); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}
	return &r, nil
}

// LoadJSON reads a report from a JSON file at path.
func LoadJSON(path string) (*Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return ReadJSON(f)
}

// Log writes the run summary through the given logger, one line per
// block type plus the displacement totals.
func (r *Report) Log(logger *log.Logger) {
	if logger == nil {
		logger = log.Default()
	}
	logger.Info("legalization complete",
		"run", r.RunID,
		"strategy", r.Strategy,
		"clusters", r.Packing.NumClusters)

	types := make([]string, 0, len(r.Packing.UsageByType))
	for t := range r.Packing.UsageByType {
		types = append(types, t)
	}
	sort.Strings(types)
	for _, t := range types {
		logger.Info("block type usage", "type", t, "clusters", r.Packing.UsageByType[t])
	}

	logger.Info("placement quality",
		"placed", r.Quality.Placed,
		"displaced", r.Quality.Displaced,
		"total_displacement", r.Quality.TotalDisplacement,
		"max_displacement", r.Quality.MaxDisplacement)
}
