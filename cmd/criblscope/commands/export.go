package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/quietops/criblscope/pkg/model"
	"github.com/quietops/criblscope/pkg/report"
)

var (
	exportFormat  string
	exportOut     string
	exportProduct string
)

var exportCmd = &cobra.Command{
	Use:   "export <run.json>",
	Short: "Re-render a stored run artifact as Markdown or JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		var run model.AnalysisRun
		if err := json.Unmarshal(data, &run); err != nil {
			return fmt.Errorf("parse %s: %w", args[0], err)
		}

		view := &run
		if exportProduct != "" {
			view = run.FilterByProduct(model.Product(exportProduct))
		}

		var out []byte
		switch strings.ToLower(exportFormat) {
		case "markdown", "md":
			out = []byte(report.RenderMarkdown(view))
		case "json":
			out, err = report.RenderJSON(view)
			if err != nil {
				return err
			}
		default:
			return fmt.Errorf("unknown format %q (markdown, json)", exportFormat)
		}

		if exportOut == "" {
			_, err = os.Stdout.Write(out)
			return err
		}
		return os.WriteFile(exportOut, out, 0o644)
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", "markdown", "Output format (markdown, json)")
	exportCmd.Flags().StringVar(&exportOut, "out", "", "Output file (default stdout)")
	exportCmd.Flags().StringVar(&exportProduct, "product-filter", "", "Keep only items relevant to one product")
}
