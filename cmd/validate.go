package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/ike-ops/expedientes-cli/internal/excel"
)

var validateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Check that a spreadsheet is usable as a run source",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		count, err := excel.Validate(args[0])
		if err != nil {
			return eris.Wrap(err, "validate")
		}
		fmt.Printf("%s: %d expedientes\n", args[0], count)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
