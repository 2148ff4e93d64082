package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var versionsCmd = &cobra.Command{
	Use:   "versions <location>",
	Short: "List a table's commit/snapshot history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		service := newService()
		versions, err := service.Versions(cmd.Context(), newRequest(args[0]))
		if err != nil {
			return err
		}
		if flagOutput == "json" {
			return printJSON(cmd.OutOrStdout(), versions)
		}
		if len(versions) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no version history")
			return nil
		}
		for _, version := range versions {
			fmt.Fprintf(cmd.OutOrStdout(), "%-24s %-16s %s\n", version.Version, version.Operation, version.Timestamp)
		}
		return nil
	},
}

func init() {
	RootCmd.AddCommand(versionsCmd)
}
