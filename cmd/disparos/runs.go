package main

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"disparos/internal/core"
)

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent runs from the ledger",
	Long: `List the most recent runs recorded in the SQLite ledger (SQLITE_DB_PATH),
newest first, with their append status.

Examples:
  disparos runs
  disparos runs --limit 5`,
	Args: cobra.NoArgs,
	RunE: runRuns,
}

func init() {
	runsCmd.Flags().IntVarP(&runsLimit, "limit", "n", 20, "number of runs to show")
}

func runRuns(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := newApp(ctx, ledgerOnly)
	if err != nil {
		return err
	}
	defer a.close()

	if a.backend == nil || a.backend.Ledger == nil {
		return errors.New("run ledger disabled: set SQLITE_DB_PATH")
	}
	runs, err := a.backend.Ledger.ListRuns(ctx, runsLimit)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tSOURCE\tROWS\tGROUPS\tCOST\tWARNINGS\tSTATUS\tSHEET ROW")
	for _, r := range runs {
		sheetRow := "-"
		if r.SheetRow > 0 {
			sheetRow = fmt.Sprint(r.SheetRow)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\t%d\t%s\t%s\n",
			r.ID, r.StartedAt.Local().Format("02/01/2006 15:04"), r.Source,
			r.InputRows, r.Groups, r.TotalCost.StringFixedBank(core.CostDecimal),
			r.ParseWarnings, r.Status, sheetRow)
	}
	return tw.Flush()
}
