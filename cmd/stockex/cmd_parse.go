package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/nxreporting/stockex/internal/parser"
)

var parseFlags struct {
	pretty bool
}

var parseCmd = &cobra.Command{
	Use:   "parse [file]",
	Short: "Parse already-extracted text into stock records",
	Long: `Parse plain text through the strategy parser, skipping the provider
cascade entirely. Reads the file argument, or stdin when omitted.
Useful for debugging which strategy claims which line.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			text []byte
			err  error
		)
		if len(args) == 1 {
			text, err = os.ReadFile(args[0])
		} else {
			text, err = io.ReadAll(os.Stdin)
		}
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}

		records := parser.NewEngine().Parse(string(text))
		return printJSON(records, parseFlags.pretty)
	},
}

func init() {
	parseCmd.Flags().BoolVar(&parseFlags.pretty, "pretty", false, "indent JSON output")
}
