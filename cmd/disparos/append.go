package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"disparos/internal/export"
)

var checkOnly bool

var appendCmd = &cobra.Command{
	Use:   "append [summary.csv]",
	Short: "Append a saved summary to the store, or check the store",
	Long: `Append a summary previously written with "disparos run --out" to the
configured store. With --check the store is read but nothing is written; the
command reports the header state, the number of data rows and the row the next
append would start at.

Examples:
  disparos append resumo.csv
  disparos append --check`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAppend,
}

func init() {
	appendCmd.Flags().BoolVar(&checkOnly, "check", false, "test the store connection without writing")
	appendCmd.Flags().StringVar(&appendMode, "mode", "", "direct or queue (overrides APPEND_MODE)")
}

func runAppend(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if !checkOnly && len(args) == 0 {
		return fmt.Errorf("a summary file is required unless --check is set")
	}

	access := storeWrite
	if checkOnly {
		access = storeRead
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

	if checkOnly {
		st, err := svc.Check(ctx)
		if err != nil {
			return fmt.Errorf("store check failed: %w", err)
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "backend: %s\n", a.cfg.StoreBackend)
		fmt.Fprintf(out, "header present: %t\n", st.HeaderPresent)
		fmt.Fprintf(out, "data rows: %d\n", st.DataRows)
		fmt.Fprintf(out, "next row: %d\n", st.NextRow)
		return nil
	}

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("open summary: %w", err)
	}
	records, err := export.Read(f)
	f.Close()
	if err != nil {
		return fmt.Errorf("read summary %s: %w", args[0], err)
	}

	run := svc.ImportSummary(ctx, args[0], records)
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
