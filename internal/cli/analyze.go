package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/metalens/metalens/internal/metastore"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <location>",
	Short: "Extract the full metadata summary for a table",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		service := newService()
		result, err := service.Analyze(cmd.Context(), newRequest(args[0]))
		if err != nil {
			return err
		}
		if flagOutput == "json" {
			return printJSON(cmd.OutOrStdout(), result)
		}
		printResult(cmd.OutOrStdout(), result)
		return nil
	},
}

func init() {
	RootCmd.AddCommand(analyzeCmd)
}

func printResult(out writer, result metastore.MetadataResult) {
	fmt.Fprintf(out, "Format: %s\n\n", result.Format)

	fmt.Fprintln(out, "Schema:")
	if len(result.Schema) == 0 {
		fmt.Fprintln(out, "  (none)")
	}
	for _, column := range result.Schema {
		partition := ""
		if column.Partition {
			partition = "  [partition]"
		}
		fmt.Fprintf(out, "  %-32s %s%s\n", column.Name, column.Type, partition)
	}

	fmt.Fprintln(out, "\nProperties:")
	for _, key := range sortedKeys(result.Properties) {
		fmt.Fprintf(out, "  %-24s %s\n", key, result.Properties[key])
	}

	fmt.Fprintln(out, "\nStatistics:")
	fmt.Fprintf(out, "  %-24s %s\n", "files", result.Statistics.Files)
	fmt.Fprintf(out, "  %-24s %s\n", "size", result.Statistics.Size)
	fmt.Fprintf(out, "  %-24s %s\n", "rows", result.Statistics.Rows)
	fmt.Fprintf(out, "  %-24s %d\n", "partitions", result.Statistics.Partitions)

	if len(result.Versions) > 0 {
		fmt.Fprintln(out, "\nVersions:")
		for _, version := range result.Versions {
			fmt.Fprintf(out, "  %-24s %-16s %s\n", version.Version, version.Operation, version.Timestamp)
		}
	}

	if result.Preview != nil {
		fmt.Fprintln(out, "\nPreview:")
		fmt.Fprintf(out, "  %s\n", strings.Join(result.Preview.Columns, " | "))
		for _, row := range result.Preview.Rows {
			cells := make([]string, len(row))
			for i, value := range row {
				cells[i] = fmt.Sprint(value)
			}
			fmt.Fprintf(out, "  %s\n", strings.Join(cells, " | "))
		}
	}

	for _, warning := range result.Warnings {
		fmt.Fprintf(out, "\nwarning: %s\n", warning)
	}
}
