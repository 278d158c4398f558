package ocr

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/nxreporting/stockex/constants"
)

func (e *Extractor) extractPDF(ctx context.Context, data []byte) (Result, error) {
	// digital text layer first: cheap and exact when present
	text, pages, err := pdfTextLayer(data)
	if err == nil && len(strings.TrimSpace(text)) >= e.cfg.MinPDFTextLen {
		return Result{
			Text:       text,
			Pages:      pages,
			SourceType: constants.PDF,
			Method:     "pdf-text",
			Confidence: heuristicConfidence(text),
		}, nil
	}

	var warns []string
	if err != nil {
		warns = append(warns, fmt.Sprintf("pdf text layer: %v", err))
	} else {
		warns = append(warns, "pdf text layer too short, rasterizing")
	}

	// pdftotext handles some encodings the pure-Go reader chokes on
	if txt, p, w, terr := e.pdfToText(ctx, data); terr == nil && len(strings.TrimSpace(txt)) >= e.cfg.MinPDFTextLen {
		return Result{
			Text:       txt,
			Pages:      p,
			SourceType: constants.PDF,
			Method:     "pdf-text",
			Warnings:   append(warns, w...),
			Confidence: heuristicConfidence(txt),
		}, nil
	}

	txt, p, w, oerr := e.pdfToOCR(ctx, data)
	warns = append(warns, w...)
	if oerr != nil {
		return Result{SourceType: constants.PDF, Warnings: warns}, oerr
	}
	return Result{
		Text:       txt,
		Pages:      p,
		SourceType: constants.PDF,
		Method:     "pdf-ocr",
		Warnings:   warns,
		Confidence: heuristicConfidence(txt),
	}, nil
}

// pdfTextLayer reads the embedded text layer without shelling out.
func pdfTextLayer(data []byte) (string, int, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", 0, err
	}
	var b strings.Builder
	pages := r.NumPage()
	for i := 1; i <= pages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			continue
		}
		for _, row := range rows {
			for _, word := range row.Content {
				b.WriteString(word.S)
				b.WriteString(" ")
			}
			b.WriteString("\n")
		}
		if i < pages {
			b.WriteString("\f\n")
		}
	}
	return b.String(), pages, nil
}

func (e *Extractor) pdfToText(ctx context.Context, data []byte) (text string, pages int, warnings []string, err error) {
	path, cleanup, err := writeTemp(data, "sx-*.pdf")
	if err != nil {
		return "", 0, nil, err
	}
	defer cleanup()

	// pdftotext -layout -enc UTF-8 -eol unix <path> -
	out, errb, err := e.runner.Run(ctx, e.cfg.Pdftotext, "-layout", "-enc", "UTF-8", "-eol", "unix", path, "-")
	if err != nil {
		return "", 0, []string{string(errb)}, err
	}
	text = string(out)
	// A form-feed \f is used as page separator by default
	pages = 1 + strings.Count(text, "\f")
	return text, pages, nil, nil
}

func (e *Extractor) pdfToOCR(ctx context.Context, data []byte) (text string, pages int, warnings []string, err error) {
	path, cleanup, err := writeTemp(data, "sx-*.pdf")
	if err != nil {
		return "", 0, nil, err
	}
	defer cleanup()

	tmpDir, err := os.MkdirTemp("", "sx-pp-*")
	if err != nil {
		return "", 0, nil, err
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()

	prefix := filepath.Join(tmpDir, "page")
	// pdftoppm -r 300 -png <in.pdf> <tmp/page>
	_, errb, err := e.runner.Run(ctx, e.cfg.Pdftoppm, "-r", fmt.Sprintf("%d", e.cfg.DPI), "-png", path, prefix)
	if err != nil {
		return "", 0, []string{string(errb)}, err
	}

	// collect generated pngs (prefix-1.png, prefix-2.png, ...)
	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(matches)
	if e.cfg.MaxPages > 0 && len(matches) > e.cfg.MaxPages {
		matches = matches[:e.cfg.MaxPages]
	}
	if len(matches) == 0 {
		return "", 0, []string{"pdftoppm produced no images"}, fmt.Errorf("no pages rendered")
	}

	var b strings.Builder
	var warns []string
	for _, img := range matches {
		txt, w, err := e.tesseractOCR(ctx, img)
		if err != nil {
			warns = append(warns, err.Error())
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\f\n") // keep a clear page break marker
		}
		b.WriteString(txt)
		warns = append(warns, w...)
	}
	pages = len(matches)
	return b.String(), pages, warns, nil
}
