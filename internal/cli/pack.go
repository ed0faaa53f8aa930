package cli

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/selimozt/fabpack/pkg/arch"
	"github.com/selimozt/fabpack/pkg/legalizer"
	"github.com/selimozt/fabpack/pkg/netlist"
	"github.com/selimozt/fabpack/pkg/pack"
	"github.com/selimozt/fabpack/pkg/prepack"
	"github.com/selimozt/fabpack/pkg/render"
)

// packCommand creates the pack command, which clusters a netlist
// without assigning device locations.
func (c *CLI) packCommand() *cobra.Command {
	var (
		archPath         string
		netlistPath      string
		dotPath          string
		targetPinUtil    float64
		disablePinFilter bool
		hillClimb        bool
	)

	cmd := &cobra.Command{
		Use:   "pack",
		Short: "Cluster an atom netlist without placing it",
		Long: `Pack groups the atoms of the netlist into clusters that fit the
architecture's block types and reports how much of each type the
result needs. Nothing is placed; use legalize for a full run.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := c.Logger

			ar, err := arch.LoadFile(archPath)
			if err != nil {
				return err
			}
			nl, err := netlist.LoadFile(netlistPath, ar)
			if err != nil {
				return err
			}
			pp := prepack.New(nl, ar)

			tracker := newProgress(logger)
			leg := legalizer.New(nl, pp, ar, legalizer.Config{
				Strategy:         legalizer.StrategyFast,
				TargetExtPinUtil: targetPinUtil,
				DisablePinFilter: disablePinFilter,
				Logger:           logger,
			})
			clusterer := pack.NewGreedyClusterer(nl, pp, ar, leg, pack.Config{
				HillClimbing: hillClimb,
				Logger:       logger,
			})
			stats, err := clusterer.Run()
			if err != nil {
				printError("Packing failed")
				return err
			}
			tracker.done("Packed " + filepath.Base(netlistPath))

			printSuccess("Packed %d atoms into %d clusters", nl.NumAtoms(), stats.NumClusters)
			types := make([]string, 0, len(stats.UsageByType))
			for name := range stats.UsageByType {
				types = append(types, name)
			}
			sort.Strings(types)
			for _, name := range types {
				printDetail("%s: %d", name, stats.UsageByType[name])
			}
			if dotPath != "" {
				dot := render.ClusterDOT(nl, leg, render.Options{Detailed: true})
				if err := os.WriteFile(dotPath, []byte(dot), 0o644); err != nil {
					return err
				}
				printFile(dotPath)
			}
			printNextStep("Place the result", "fabpack legalize -a "+archPath+" -n "+netlistPath+" -d <device>")
			return nil
		},
	}

	cmd.Flags().StringVarP(&archPath, "arch", "a", "", "architecture description file (required)")
	cmd.Flags().StringVarP(&netlistPath, "netlist", "n", "", "atom netlist file (required)")
	cmd.Flags().StringVar(&dotPath, "dot", "", "write the clustered netlist as Graphviz DOT to this path")
	cmd.Flags().Float64Var(&targetPinUtil, "target-ext-pin-util", 0, "external input pin utilization target in (0, 1]")
	cmd.Flags().BoolVar(&disablePinFilter, "no-pin-filter", false, "disable the boundary pin feasibility check")
	cmd.Flags().BoolVar(&hillClimb, "hill-climb", false, "top up partially filled clusters with a second pass")
	_ = cmd.MarkFlagRequired("arch")
	_ = cmd.MarkFlagRequired("netlist")

	return cmd
}
