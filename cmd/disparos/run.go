package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"disparos/internal/core"
	"disparos/internal/export"
	"disparos/internal/services"
)

var (
	outPath    string
	appendRun  bool
	appendMode string
)

var runCmd = &cobra.Command{
	Use:   "run <export>",
	Short: "Summarize a dispatch export",
	Long: `Read a ';'-separated (or .xlsx) dispatch export and print the summary.

The summary is written to stdout, or to --out. With --append the summary rows
are also appended to the configured store, directly or through the queue
depending on APPEND_MODE (or --mode). A failed append does not discard the
summary file.

Examples:
  disparos run export.csv
  disparos run --out resumo.csv export.csv
  disparos run --append --mode queue export.xlsx`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVarP(&outPath, "out", "o", "", "write the summary to this file instead of stdout")
	runCmd.Flags().BoolVarP(&appendRun, "append", "a", false, "append the summary to the configured store")
	runCmd.Flags().StringVar(&appendMode, "mode", "", "direct or queue (overrides APPEND_MODE)")
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	access := ledgerOnly
	if appendRun {
		access = storeWrite
	}
	a, err := newApp(ctx, access)
	if err != nil {
		return err
	}
	defer a.close()

	svc, err := a.service()
	if err != nil {
		return err
	}

	run, err := svc.ComputeFile(ctx, args[0])
	if err != nil {
		return err
	}

	if outPath != "" {
		if err := export.WriteFile(outPath, run.Result.Aggregates); err != nil {
			return err
		}
	} else if err := export.Write(cmd.OutOrStdout(), run.Result.Aggregates); err != nil {
		return err
	}
	printReport(cmd.ErrOrStderr(), run)

	if !appendRun {
		return nil
	}
	if err := svc.Deliver(ctx, run, a.mode); err != nil {
		return err
	}
	if len(run.Plan.Rows) > 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "appended %d rows at row %d\n", len(run.Plan.Rows), run.Plan.SheetRow())
	} else {
		fmt.Fprintf(cmd.ErrOrStderr(), "run %s: %s\n", run.ID, run.Status)
	}
	return nil
}

func printReport(w io.Writer, run *services.Run) {
	res := run.Result
	d := res.Diagnostics
	fmt.Fprintf(w, "run %s: %d dispatches, %d groups, total %d, cost %s\n",
		run.ID, d.InputRows, len(res.Aggregates),
		core.TotalCount(res.Aggregates), core.TotalCost(res.Aggregates).StringFixedBank(core.CostDecimal))
	if d.PartnerFallbacks > 0 || d.ProductFallbacks > 0 {
		fmt.Fprintf(w, "unclassified: %d agreement, %d product\n", d.PartnerFallbacks, d.ProductFallbacks)
	}
	for _, pw := range d.ParseWarnings {
		fmt.Fprintf(w, "line %d: unparsable timestamp %q\n", pw.Line, pw.Value)
	}
}
