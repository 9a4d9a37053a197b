package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ike-ops/expedientes-cli/internal/model"
	"github.com/ike-ops/expedientes-cli/internal/report"
)

var (
	exportFormat string
	exportOutput string
)

var exportCmd = &cobra.Command{
	Use:   "export <run-id>",
	Short: "Export a stored run as csv, html, xlsx or text",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		runID := args[0]

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		run, err := st.GetRun(ctx, runID)
		if err != nil {
			return err
		}
		expedientes, err := st.ListOutcomes(ctx, runID)
		if err != nil {
			return err
		}
		if len(expedientes) == 0 {
			return eris.Errorf("run %s has no stored outcomes", runID)
		}

		r := model.NewRunReport(runID, expedientes)
		r.SetMetadata("source_file", run.SourceFile)

		out := exportOutput
		if out == "" {
			out = "reporte-" + runID + "." + exportFormat
		}

		if exportFormat == "all" {
			return exportAll(r, runID)
		}

		switch exportFormat {
		case "csv":
			err = report.ExportCSV(r, out)
		case "html":
			err = report.ExportHTML(r, out)
		case "xlsx":
			err = report.ExportXLSX(r, out)
		case "text", "txt":
			err = os.WriteFile(out, []byte(report.FormatText(r)), 0o644)
		default:
			return eris.Errorf("unknown format %q (expected csv, html, xlsx or text)", exportFormat)
		}
		if err != nil {
			return err
		}

		fmt.Printf("exported run %s to %s\n", runID, out)
		return nil
	},
}

// exportAll writes every format side by side.
func exportAll(r *model.RunReport, runID string) error {
	var g errgroup.Group
	g.Go(func() error { return report.ExportCSV(r, "reporte-"+runID+".csv") })
	g.Go(func() error { return report.ExportHTML(r, "reporte-"+runID+".html") })
	g.Go(func() error { return report.ExportXLSX(r, "reporte-"+runID+".xlsx") })
	g.Go(func() error {
		return os.WriteFile("reporte-"+runID+".txt", []byte(report.FormatText(r)), 0o644)
	})
	if err := g.Wait(); err != nil {
		return err
	}
	fmt.Printf("exported run %s to reporte-%s.{csv,html,xlsx,txt}\n", runID, runID)
	return nil
}

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", "csv", "output format (csv|html|xlsx|text|all)")
	exportCmd.Flags().StringVar(&exportOutput, "output", "", "output path (defaults to reporte-<run-id>.<ext>)")
	rootCmd.AddCommand(exportCmd)
}
