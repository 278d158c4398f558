package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nxreporting/stockex/internal/common"
	"github.com/nxreporting/stockex/internal/model"
)

var extractFlags struct {
	pretty bool
}

var extractCmd = &cobra.Command{
	Use:   "extract <file>",
	Short: "Run one document through the provider cascade",
	Long: `Extract stock-item records from a single stock report.

The response is printed to stdout as JSON; logs go to stderr. The exit
code is non-zero when extraction fails outright.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger()
		cfg, err := common.LoadConfig()
		if err != nil {
			return err
		}

		bytes, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read %s: %w", args[0], err)
		}

		orch, closeLog, err := buildOrchestrator(cfg, logger)
		if err != nil {
			return err
		}
		if closeLog != nil {
			defer closeLog()
		}

		resp := orch.Extract(context.Background(), model.RawDocument{
			Bytes:    bytes,
			Filename: filepath.Base(args[0]),
		})
		if err := printJSON(resp, extractFlags.pretty); err != nil {
			return err
		}
		if !resp.Success {
			return fmt.Errorf("extraction failed: %s", resp.Error)
		}
		return nil
	},
}

func init() {
	extractCmd.Flags().BoolVar(&extractFlags.pretty, "pretty", false, "indent JSON output")
}

func printJSON(v any, pretty bool) error {
	enc := json.NewEncoder(os.Stdout)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}
