package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/selimozt/fabpack/pkg/report"
)

// checkCommand creates the check command, which re-verifies a stored
// run or an exported report file.
func (c *CLI) checkCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check [run-id|report.json]",
		Short: "Verify a run's placement and list stored runs",
		Long: `Check re-validates a recorded run: every cluster on a distinct
slot, every atom in exactly one cluster, displacements consistent
with the desired positions. With no argument it lists stored runs.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if len(args) == 0 {
				return c.listRuns(cmd)
			}

			rep, err := loadReport(ctx, args[0])
			if err != nil {
				return err
			}
			if err := rep.Validate(); err != nil {
				printError("Run %s is inconsistent", rep.RunID)
				return err
			}

			printSuccess("Run %s is legal", rep.RunID)
			printKeyValue("clusters", fmt.Sprintf("%d", rep.Packing.NumClusters))
			printKeyValue("displacement", fmt.Sprintf("%d", rep.Quality.TotalDisplacement))
			printKeyValue("strategy", rep.Strategy)
			printKeyValue("device", fmt.Sprintf("%dx%dx%d", rep.Device.Width, rep.Device.Height, rep.Device.Layers))
			printKeyValue("displaced", fmt.Sprintf("%d of %d", rep.Quality.Displaced, rep.Quality.Placed))
			return nil
		},
	}

	return cmd
}

// listRuns prints the stored runs, newest first.
func (c *CLI) listRuns(cmd *cobra.Command) error {
	st, err := runStore()
	if err != nil {
		return err
	}
	runs, err := st.List(cmd.Context())
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		printInfo("No stored runs")
		return nil
	}
	for _, s := range runs {
		created := s.CreatedAt
		if t, err := time.Parse(time.RFC3339, s.CreatedAt); err == nil {
			created = t.Format("2006-01-02 15:04")
		}
		printKeyValue(created, fmt.Sprintf("%s  %s  %d clusters", s.RunID, s.Strategy, s.Clusters))
	}
	return nil
}

// loadReport resolves ref as a report file path when it names an
// existing file, and as a run store ID otherwise.
func loadReport(ctx context.Context, ref string) (*report.Report, error) {
	if strings.HasSuffix(ref, ".json") {
		return report.LoadJSON(ref)
	}
	if _, err := os.Stat(ref); err == nil {
		return report.LoadJSON(ref)
	}
	st, err := runStore()
	if err != nil {
		return nil, err
	}
	return st.Get(ctx, ref)
}
