// Package ocr is the credential-free local extraction backend. It picks a
// strategy per document format: digital PDF text first, rasterized OCR for
// scanned PDFs, tesseract for images, excelize for exported spreadsheets,
// and a passthrough for plain text.
package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/nxreporting/stockex/constants"
	"github.com/nxreporting/stockex/internal/model"
)

type Config struct {
	Pdftotext string // binary name or absolute path; if empty -> "pdftotext"
	Pdftoppm  string // binary name or absolute path; if empty -> "pdftoppm"
	Tesseract string // binary name or absolute path; if empty -> "tesseract"

	TesseractLang string // default "eng"
	DPI           int    // rasterization DPI for scanned PDFs, default 300
	MaxPages      int    // 0 = no limit

	// digital PDF text shorter than this falls back to page OCR
	MinPDFTextLen int
}

type Result struct {
	Text       string
	Records    []model.StockItemRecord // structured rows, spreadsheets only
	Pages      int
	SourceType string // constants.PDF | IMAGE | SPREADSHEET | TEXT
	Method     string // "pdf-text" | "pdf-ocr" | "image-ocr" | "xlsx-rows" | "plain-text"
	Duration   time.Duration
	Warnings   []string
	Confidence float32
}

type Extractor struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

func NewExtractor(cfg Config, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftotext == "" {
		cfg.Pdftotext = "pdftotext"
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.TesseractLang == "" {
		cfg.TesseractLang = "eng"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	if cfg.MinPDFTextLen <= 0 {
		cfg.MinPDFTextLen = 100
	}
	return &Extractor{cfg: cfg, runner: execRunner{logger: logger}, logger: logger}
}

// Extract picks a strategy based on the document's file extension.
func (e *Extractor) Extract(ctx context.Context, doc model.RawDocument) (Result, error) {
	start := time.Now()
	ext := constants.NormalizeExt(filepath.Ext(doc.Filename))
	format := constants.MapExtToFormat(ext)
	e.logger.Debug("ocr.extract.start", "filename", doc.Filename, "ext", ext, "format", format, "bytes", len(doc.Bytes))

	var res Result
	var err error
	switch format {
	case constants.PDF:
		res, err = e.extractPDF(ctx, doc.Bytes)
	case constants.IMAGE:
		res, err = e.extractImage(ctx, doc.Bytes, ext)
	case constants.SPREADSHEET:
		res, err = e.extractSpreadsheet(doc.Bytes)
	case constants.TEXT:
		res = Result{
			Text:       string(doc.Bytes),
			Pages:      1,
			SourceType: constants.TEXT,
			Method:     "plain-text",
			Confidence: heuristicConfidence(string(doc.Bytes)),
		}
	default:
		return Result{}, fmt.Errorf("unsupported extension: %q", ext)
	}
	res.Duration = time.Since(start)
	return res, err
}

// writeTemp materializes document bytes for the external binaries that need
// a real path. Caller must invoke cleanup.
func writeTemp(data []byte, pattern string) (path string, cleanup func(), err error) {
	f, err := os.CreateTemp("", pattern)
	if err != nil {
		return "", nil, err
	}
	cleanup = func() { _ = os.Remove(f.Name()) }
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		cleanup()
		return "", nil, err
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, err
	}
	return f.Name(), cleanup, nil
}
