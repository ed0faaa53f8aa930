package cli

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/selimozt/fabpack/pkg/pipeline"
)

// legalizeCommand creates the legalize command.
func (c *CLI) legalizeCommand() *cobra.Command {
	var (
		archPath      string
		netlistPath   string
		devicePath    string
		placePath     string
		strategy      string
		formats       string
		output        string
		targetPinUtil float64
		noCache       bool
		refresh       bool
		noSave        bool
	)

	cmd := &cobra.Command{
		Use:   "legalize",
		Short: "Cluster a netlist and produce a fully legal placement",
		Long: `Legalize packs the atom netlist into clusters and assigns every
cluster a distinct slot on the device, honoring the partial placement
as a hint when one is given. The run is recorded in the local run
store and the requested artifacts are written next to the output base.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := withLogger(cmd.Context(), c.Logger)

			opts := pipeline.Options{
				Strategy:         strategy,
				TargetExtPinUtil: targetPinUtil,
				Formats:          parseFormats(formats),
				Refresh:          refresh,
			}
			if err := opts.ValidateAndSetDefaults(); err != nil {
				return err
			}

			docs, err := readDocuments(archPath, netlistPath, devicePath, placePath)
			if err != nil {
				return err
			}

			runner, err := c.newRunner(noCache)
			if err != nil {
				return err
			}

			spinner := newSpinnerWithContext(ctx, "Legalizing "+filepath.Base(netlistPath))
			spinner.Start()
			res, err := runner.Execute(ctx, docs, opts)
			if err != nil {
				spinner.StopWithError("Legalization failed")
				return err
			}
			spinner.StopWithSuccess("Legalized " + filepath.Base(netlistPath))

			if !noSave {
				st, err := runStore()
				if err != nil {
					return err
				}
				if err := st.Save(ctx, res.Report); err != nil {
					return err
				}
			}

			printStats(res.Report.Packing.NumClusters, res.Report.Quality.TotalDisplacement, res.CacheInfo.ResultHit)
			base := output
			if base == "" {
				base = strings.TrimSuffix(netlistPath, filepath.Ext(netlistPath))
			}
			for _, format := range opts.Formats {
				path := base + "." + format
				if err := os.WriteFile(path, res.Artifacts[format], 0o644); err != nil {
					return err
				}
				printFile(path)
			}
			printKeyValue("run", res.Report.RunID)
			printNextStep("Inspect the run", "fabpack check "+res.Report.RunID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&archPath, "arch", "a", "", "architecture description file (required)")
	cmd.Flags().StringVarP(&netlistPath, "netlist", "n", "", "atom netlist file (required)")
	cmd.Flags().StringVarP(&devicePath, "device", "d", "", "device grid file (required)")
	cmd.Flags().StringVarP(&placePath, "placement", "p", "", "partial placement hint file")
	cmd.Flags().StringVarP(&strategy, "strategy", "s", pipeline.DefaultStrategy, "full legalization strategy (naive, hintpack, flatrecon)")
	cmd.Flags().StringVarP(&formats, "formats", "f", pipeline.FormatJSON, "comma-separated artifact formats (json, dot, svg, png)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output base path (default: netlist path without extension)")
	cmd.Flags().Float64Var(&targetPinUtil, "target-ext-pin-util", 0, "external input pin utilization target in (0, 1]")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "bypass the result cache")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "recompute even when a cached result exists")
	cmd.Flags().BoolVar(&noSave, "no-save", false, "do not record the run in the run store")
	_ = cmd.MarkFlagRequired("arch")
	_ = cmd.MarkFlagRequired("netlist")
	_ = cmd.MarkFlagRequired("device")

	return cmd
}

// readDocuments reads the input files into a pipeline document set.
// The placement path may be empty.
func readDocuments(archPath, netlistPath, devicePath, placePath string) (pipeline.Documents, error) {
	var docs pipeline.Documents
	var err error
	if docs.Arch, err = os.ReadFile(archPath); err != nil {
		return docs, err
	}
	if docs.Netlist, err = os.ReadFile(netlistPath); err != nil {
		return docs, err
	}
	if docs.Device, err = os.ReadFile(devicePath); err != nil {
		return docs, err
	}
	if placePath != "" {
		if docs.Placement, err = os.ReadFile(placePath); err != nil {
			return docs, err
		}
	}
	return docs, nil
}
