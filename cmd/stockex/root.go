package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/nxreporting/stockex/internal/attemptlog"
	"github.com/nxreporting/stockex/internal/common"
	"github.com/nxreporting/stockex/internal/model"
	"github.com/nxreporting/stockex/internal/ocr"
	"github.com/nxreporting/stockex/internal/pipeline"
	"github.com/nxreporting/stockex/internal/provider"
	"github.com/nxreporting/stockex/internal/provider/aivision"
	"github.com/nxreporting/stockex/internal/provider/docstrange"
	"github.com/nxreporting/stockex/internal/provider/local"
	"github.com/nxreporting/stockex/internal/provider/metadata"
	"github.com/nxreporting/stockex/internal/provider/nanonets"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootFlags struct {
	verbose bool
}

var rootCmd = &cobra.Command{
	Use:   "stockex",
	Short: "Extract stock records from pharmaceutical stock reports",
	Long: "stockex runs documents through a cascade of extraction backends\n" +
		"(cloud OCR, local tools, an AI model) and parses the result into\n" +
		"structured stock-item records.",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&rootFlags.verbose, "verbose", "v", false, "debug logging")
	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(parseCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(providersCmd)
	rootCmd.Version = version
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newLogger logs to stderr so stdout stays clean for JSON output.
func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if rootFlags.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// buildProviders assembles the cascade in its fixed order. Order is part of
// the contract: layout-aware OCR first, the metadata fallback last.
func buildProviders(cfg *common.Config, logger *slog.Logger) []provider.Provider {
	ttl := cfg.Extraction.ConfiguredTTL
	extractor := ocr.NewExtractor(ocr.Config{
		Pdftotext:     cfg.OCR.Pdftotext,
		Pdftoppm:      cfg.OCR.Pdftoppm,
		Tesseract:     cfg.OCR.Tesseract,
		TesseractLang: cfg.OCR.TesseractLang,
		DPI:           cfg.OCR.DPI,
		MaxPages:      cfg.OCR.MaxPages,
	}, logger)

	prepare := func(ctx context.Context, doc model.RawDocument) (string, error) {
		res, err := extractor.Extract(ctx, doc)
		if err != nil {
			return "", err
		}
		return res.Text, nil
	}

	return []provider.Provider{
		docstrange.NewClient(docstrange.Config{
			APIKey:        cfg.DocStrange.APIKey,
			BaseURL:       cfg.DocStrange.BaseURL,
			Timeout:       cfg.DocStrange.Timeout,
			ConfiguredTTL: ttl,
		}, logger),
		nanonets.NewClient(nanonets.Config{
			APIKey:        cfg.Nanonets.APIKey,
			ModelID:       cfg.Nanonets.ModelID,
			BaseURL:       cfg.Nanonets.BaseURL,
			Timeout:       cfg.Nanonets.Timeout,
			ConfiguredTTL: ttl,
		}, logger),
		local.New(extractor, logger),
		aivision.NewClient(aivision.Config{
			APIKey:        cfg.AI.APIKey,
			BaseURL:       cfg.AI.BaseURL,
			Model:         cfg.AI.Model,
			Temperature:   cfg.AI.Temperature,
			Timeout:       cfg.AI.Timeout,
			ConfiguredTTL: ttl,
		}, prepare, logger),
		metadata.New(logger),
	}
}

// buildOrchestrator wires the full cascade, including the sqlite attempt
// log when one is configured. The returned closer may be nil.
func buildOrchestrator(cfg *common.Config, logger *slog.Logger) (*pipeline.Orchestrator, func() error, error) {
	o := pipeline.NewOrchestrator(pipeline.Config{
		MaxFileSizeMB: cfg.Extraction.MaxFileSizeMB,
		Timeout:       cfg.Extraction.Timeout,
		MaxAttempts:   cfg.Extraction.MaxAttempts,
		BaseDelay:     cfg.Extraction.BaseDelay,
	}, buildProviders(cfg, logger), logger)

	if cfg.AttemptLog.Path == "" {
		return o, nil, nil
	}
	store, err := attemptlog.Open(cfg.AttemptLog.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("open attempt log: %w", err)
	}
	return o.WithRecorder(store), store.Close, nil
}
