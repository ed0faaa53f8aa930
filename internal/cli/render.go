package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/selimozt/fabpack/pkg/errors"
	"github.com/selimozt/fabpack/pkg/pipeline"
	"github.com/selimozt/fabpack/pkg/render"
)

// renderCommand creates the render command, which draws a stored run's
// device grid.
func (c *CLI) renderCommand() *cobra.Command {
	var (
		format string
		output string
	)

	cmd := &cobra.Command{
		Use:   "render <run-id|report.json>",
		Short: "Draw a run's device grid as DOT, SVG, or PNG",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			rep, err := loadReport(ctx, args[0])
			if err != nil {
				return err
			}

			dot := render.GridDOT(rep)
			var data []byte
			switch format {
			case pipeline.FormatDOT:
				data = []byte(dot)
			case pipeline.FormatSVG:
				data, err = render.SVG(ctx, dot)
			case pipeline.FormatPNG:
				data, err = render.PNG(ctx, dot)
			default:
				return errors.New(errors.ErrCodeInvalidConfig, "unknown render format %q", format)
			}
			if err != nil {
				return err
			}

			path := output
			if path == "" {
				path = rep.RunID + "." + format
			}
			if err := os.WriteFile(path, data, 0o644); err != nil {
				return err
			}
			printSuccess("Rendered run %s", rep.RunID)
			printFile(path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", pipeline.FormatSVG, "output format (dot, svg, png)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output path (default: <run-id>.<format>)")

	return cmd
}
