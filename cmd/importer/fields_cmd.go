package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/atelierops/api/internal/importer"
)

func newFieldsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fields",
		Short: "List the fields a column can be mapped to",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			for _, f := range importer.Fields() {
				fmt.Fprintln(out, f)
			}
			fmt.Fprintf(out, "%s[:key]\n", importer.FieldCustom)
			return nil
		},
	}
}
