package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"order-mart/internal/pipeline"
	"order-mart/internal/store"
)

var viewSpecs = map[string]store.TableSpec{
	store.TableFactOrders:     pipeline.FactOrdersSpec,
	store.ViewMonthlyKPIs:     pipeline.MonthlyKPIsSpec,
	store.ViewTopStateByMonth: pipeline.TopStateSpec,
	store.ViewCityRevenue:     pipeline.CityRevenueSpec,
	store.ViewRecentOrders:    pipeline.RecentOrdersSpec,
}

var viewsLimit int

var viewsCmd = &cobra.Command{
	Use:   "views <name>",
	Short: "Print a materialized view as a table",
	Long: `Prints the rows the store holds for one output: fact_orders,
mv_monthly_kpis, mv_top_state_by_month, mv_city_revenue or v_recent_orders.`,
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{store.TableFactOrders, store.ViewMonthlyKPIs, store.ViewTopStateByMonth, store.ViewCityRevenue, store.ViewRecentOrders},
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		defer e.close()

		rows, err := e.store.Query(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("query %s: %w", args[0], err)
		}
		return printRows(cmd.OutOrStdout(), viewSpecs[args[0]], rows, viewsLimit)
	},
}

func init() {
	rootCmd.AddCommand(viewsCmd)
	viewsCmd.Flags().IntVarP(&viewsLimit, "limit", "n", 20, "maximum rows to print (0 prints all)")
}

func printRows(w io.Writer, spec store.TableSpec, rows []store.Row, limit int) error {
	cols := spec.ColumnNames()
	shown := rows
	if limit > 0 && len(shown) > limit {
		shown = shown[:limit]
	}

	table := make([][]string, 0, len(shown)+1)
	table = append(table, cols)
	for _, row := range shown {
		cells := make([]string, len(cols))
		for i, c := range cols {
			cells[i] = store.FormatValue(row[c])
		}
		table = append(table, cells)
	}

	if err := writeTable(w, table); err != nil {
		return err
	}
	if len(shown) < len(rows) {
		_, err := fmt.Fprintf(w, "(%d of %d rows)\n", len(shown), len(rows))
		return err
	}
	return nil
}
