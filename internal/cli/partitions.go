package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var partitionsCmd = &cobra.Command{
	Use:   "partitions <location>",
	Short: "Show a table's partition columns",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		service := newService()
		data, err := service.PartitionData(cmd.Context(), newRequest(args[0]))
		if err != nil {
			return err
		}
		if flagOutput == "json" {
			return printJSON(cmd.OutOrStdout(), data)
		}
		out := cmd.OutOrStdout()
		if data.PartitionCount == 0 {
			fmt.Fprintln(out, "table is not partitioned")
		} else {
			fmt.Fprintf(out, "partition columns (%d): %s\n", data.PartitionCount, strings.Join(data.PartitionColumns, ", "))
		}
		if data.TableType != "" {
			fmt.Fprintf(out, "table type: %s\n", data.TableType)
		}
		return nil
	},
}

func init() {
	RootCmd.AddCommand(partitionsCmd)
}
