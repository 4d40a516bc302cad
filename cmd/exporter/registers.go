package exporter

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/deye-exporter/pkg/metrics"
	"github.com/deye-exporter/pkg/registers"
)

// newRegistersCmd 列出寄存器目录（不连接设备）
func newRegistersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "registers",
		Short: "List the register catalog and the metric name derived for each entry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tADDRESS\tTYPE\tUNIT\tMETRIC\tDESCRIPTION")
			for _, r := range registers.All() {
				unit := r.Unit
				if unit == "" {
					unit = "-"
				}
				fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\t%s\n",
					r.ID, r.Address, r.Type, unit, metrics.MetricName(r.Description, metrics.Numeric), r.Description)
			}
			return w.Flush()
		},
	}
}
