package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/nxreporting/stockex/constants"
	"github.com/nxreporting/stockex/internal/common"
	"github.com/nxreporting/stockex/internal/model"
)

var batchFlags struct {
	concurrency int
	pretty      bool
}

type batchResult struct {
	File     string                   `json:"file"`
	Response model.ExtractionResponse `json:"response"`
}

var batchCmd = &cobra.Command{
	Use:   "batch <dir>",
	Short: "Extract every supported document in a directory",
	Long: `Run the cascade over all supported files in a directory. Documents are
processed concurrently but each one still walks the provider order on
its own. Results are printed as one JSON array, sorted by filename.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger()
		cfg, err := common.LoadConfig()
		if err != nil {
			return err
		}

		entries, err := os.ReadDir(args[0])
		if err != nil {
			return fmt.Errorf("read dir %s: %w", args[0], err)
		}
		var files []string
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			ext := constants.NormalizeExt(filepath.Ext(e.Name()))
			if constants.MapExtToFormat(ext) == "" {
				continue
			}
			files = append(files, filepath.Join(args[0], e.Name()))
		}
		if len(files) == 0 {
			return fmt.Errorf("no supported documents in %s", args[0])
		}

		orch, closeLog, err := buildOrchestrator(cfg, logger)
		if err != nil {
			return err
		}
		if closeLog != nil {
			defer closeLog()
		}

		var (
			mu      sync.Mutex
			results []batchResult
		)
		g, ctx := errgroup.WithContext(context.Background())
		g.SetLimit(batchFlags.concurrency)
		for _, file := range files {
			file := file
			g.Go(func() error {
				bytes, err := os.ReadFile(file)
				if err != nil {
					return fmt.Errorf("read %s: %w", file, err)
				}
				resp := orch.Extract(ctx, model.RawDocument{
					Bytes:    bytes,
					Filename: filepath.Base(file),
				})
				mu.Lock()
				results = append(results, batchResult{File: file, Response: resp})
				mu.Unlock()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		sort.Slice(results, func(i, j int) bool { return results[i].File < results[j].File })
		return printJSON(results, batchFlags.pretty)
	},
}

func init() {
	batchCmd.Flags().IntVarP(&batchFlags.concurrency, "concurrency", "c", 4, "documents processed in parallel")
	batchCmd.Flags().BoolVar(&batchFlags.pretty, "pretty", false, "indent JSON output")
}
