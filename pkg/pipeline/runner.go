package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/selimozt/fabpack/pkg/arch"
	"github.com/selimozt/fabpack/pkg/cache"
	"github.com/selimozt/fabpack/pkg/device"
	"github.com/selimozt/fabpack/pkg/fulllegal"
	"github.com/selimozt/fabpack/pkg/netlist"
	"github.com/selimozt/fabpack/pkg/observability"
	"github.com/selimozt/fabpack/pkg/place"
	"github.com/selimozt/fabpack/pkg/prepack"
	"github.com/selimozt/fabpack/pkg/render"
	"github.com/selimozt/fabpack/pkg/report"
)

// resultTTL bounds how long cached run results live.
const resultTTL = 7 * 24 * time.Hour

// Runner encapsulates pipeline execution with caching.
// Both CLI and API can use this to avoid duplicating caching logic.
//
// The Runner is stateless except for the cache and logger - it doesn't
// store pipeline results. Multiple goroutines can safely use the same
// Runner with different options.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger
}

// NewRunner creates a runner with the given cache and keyer.
// If keyer is nil, a DefaultKeyer is used.
// If cache is nil, a NullCache is used (caching disabled).
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Cache:  c,
		Keyer:  keyer,
		Logger: logger,
	}
}

// Result is the output of one pipeline execution.
type Result struct {
	Report    *report.Report
	Artifacts map[string][]byte

	// InputsHash is the content hash the result cache was keyed by.
	InputsHash string

	Stats struct {
		LegalizeTime time.Duration
		RenderTime   time.Duration
	}
	CacheInfo struct {
		ResultHit bool
	}
}

// Execute runs the complete load → legalize → report pipeline with
// caching.
func (r *Runner) Execute(ctx context.Context, docs Documents, opts Options) (*Result, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}

	result := &Result{
		Artifacts:  make(map[string][]byte),
		InputsHash: hashDocuments(docs),
	}
	key := r.Keyer.ResultKey(result.InputsHash, cache.ResultKeyOpts{
		Strategy: opts.Strategy,
		Seed:     fmt.Sprintf("util=%v", opts.TargetExtPinUtil),
	})

	if !opts.Refresh {
		if data, hit, err := r.Cache.Get(ctx, key); err == nil && hit {
			var rep report.Report
			if err := json.Unmarshal(data, &rep); err == nil {
				observability.Cache().OnCacheHit(ctx, "result")
				result.Report = &rep
				result.CacheInfo.ResultHit = true
				r.Logger.Debug("result cache hit", "run", rep.RunID)
				return result, r.renderArtifacts(ctx, result, opts)
			}
		}
		observability.Cache().OnCacheMiss(ctx, "result")
	}

	start := time.Now()
	rep, err := r.legalize(ctx, docs, opts)
	if err != nil {
		return nil, err
	}
	result.Report = rep
	result.Stats.LegalizeTime = time.Since(start)

	r.Logger.Info("legalized netlist",
		"strategy", opts.Strategy,
		"clusters", rep.Packing.NumClusters,
		"duration", result.Stats.LegalizeTime)

	if data, err := json.Marshal(rep); err == nil {
		if err := r.Cache.Set(ctx, key, data, resultTTL); err == nil {
			observability.Cache().OnCacheSet(ctx, "result", len(data))
		}
	}

	return result, r.renderArtifacts(ctx, result, opts)
}

// legalize loads the documents and runs the full legalizer.
func (r *Runner) legalize(ctx context.Context, docs Documents, opts Options) (*report.Report, error) {
	ar, err := arch.Load(bytes.NewReader(docs.Arch))
	if err != nil {
		return nil, err
	}
	nl, err := netlist.Load(bytes.NewReader(docs.Netlist), ar)
	if err != nil {
		return nil, err
	}
	grid, err := device.Load(bytes.NewReader(docs.Device), ar)
	if err != nil {
		return nil, err
	}
	partial := place.NewPartial(nl.NumAtoms())
	if len(docs.Placement) > 0 {
		partial, err = place.LoadPartial(bytes.NewReader(docs.Placement), nl)
		if err != nil {
			return nil, err
		}
	}
	pp := prepack.New(nl, ar)

	observability.Run().OnPackStart(ctx, opts.Strategy, pp.NumMolecules())
	start := time.Now()

	fl, err := fulllegal.New(fulllegal.Kind(opts.Strategy), fulllegal.Inputs{
		Netlist:          nl,
		Prepack:          pp,
		Arch:             ar,
		Grid:             grid,
		Partial:          partial,
		TargetExtPinUtil: opts.TargetExtPinUtil,
		Logger:           r.Logger,
	})
	if err != nil {
		return nil, err
	}
	res, err := fl.Legalize()
	if err != nil {
		observability.Run().OnPackComplete(ctx, opts.Strategy, 0, time.Since(start), err)
		return nil, err
	}
	observability.Run().OnPackComplete(ctx, opts.Strategy, res.Pack.NumClusters, time.Since(start), nil)
	if err := fulllegal.Verify(res, nl); err != nil {
		return nil, err
	}
	observability.Run().OnPlaceComplete(ctx, res.Registry.NumPlaced(), res.TotalDisplacement(), time.Since(start), nil)

	return report.Build(opts.Strategy, nl, pp, res), nil
}

// renderArtifacts fills Result.Artifacts for each requested format.
// Rendered artifacts are cached by the report hash.
func (r *Runner) renderArtifacts(ctx context.Context, result *Result, opts Options) error {
	repJSON, err := json.Marshal(result.Report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	repHash := cache.Hash(repJSON)

	start := time.Now()
	for _, format := range opts.Formats {
		if format == FormatJSON {
			var buf bytes.Buffer
			if err := result.Report.WriteJSON(&buf); err != nil {
				return err
			}
			result.Artifacts[FormatJSON] = buf.Bytes()
			continue
		}

		key := r.Keyer.ArtifactKey(repHash, format)
		if data, hit, err := r.Cache.Get(ctx, key); err == nil && hit {
			observability.Cache().OnCacheHit(ctx, "artifact")
			result.Artifacts[format] = data
			continue
		}

		observability.Run().OnRenderStart(ctx, format)
		data, err := renderFormat(ctx, result.Report, format)
		observability.Run().OnRenderComplete(ctx, format, time.Since(start), err)
		if err != nil {
			return err
		}
		result.Artifacts[format] = data
		if err := r.Cache.Set(ctx, key, data, resultTTL); err == nil {
			observability.Cache().OnCacheSet(ctx, "artifact", len(data))
		}
	}
	result.Stats.RenderTime = time.Since(start)
	return nil
}

func renderFormat(ctx context.Context, rep *report.Report, format string) ([]byte, error) {
	dot := render.GridDOT(rep)
	switch format {
	case FormatDOT:
		return []byte(dot), nil
	case FormatSVG:
		return render.SVG(ctx, dot)
	case FormatPNG:
		return render.PNG(ctx, dot)
	}
	return nil, fmt.Errorf("unknown format %q", format)
}

// hashDocuments derives the result cache key input from the raw
// documents. Length prefixes keep distinct document splits distinct.
func hashDocuments(docs Documents) string {
	var buf bytes.Buffer
	for _, doc := range [][]byte{docs.Arch, docs.Netlist, docs.Device, docs.Placement} {
		fmt.Fprintf(&buf, "%d:", len(doc))
		buf.Write(doc)
	}
	return cache.Hash(buf.Bytes())
}
