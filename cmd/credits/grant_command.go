package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newGrantCommand(ctx *commandContext) *cobra.Command {
	var dryRun bool
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "grant",
		Short: "Grant every profile its plan's monthly credits",
		RunE: func(cmd *cobra.Command, args []string) error {
			job, _, err := ctx.grantJob()
			if err != nil {
				return err
			}
			report, err := job.Run(cmd.Context(), dryRun)
			if report != nil {
				if jsonOutput {
					enc := json.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent("", "  ")
					if encErr := enc.Encode(report); encErr != nil {
						return encErr
					}
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), renderReport(report))
				}
			}
			return err
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report what would be granted without writing")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the report as JSON")
	return cmd
}
