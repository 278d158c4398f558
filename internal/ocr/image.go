package ocr

import (
	"context"
	"fmt"

	"github.com/nxreporting/stockex/constants"
)

func (e *Extractor) extractImage(ctx context.Context, data []byte, ext string) (Result, error) {
	path, cleanup, err := writeTemp(data, "sx-*."+ext)
	if err != nil {
		return Result{SourceType: constants.IMAGE}, err
	}
	defer cleanup()

	txt, warn, err := e.tesseractOCR(ctx, path)
	if err != nil {
		return Result{SourceType: constants.IMAGE, Warnings: warn}, err
	}
	return Result{
		Text:       txt,
		Pages:      1,
		SourceType: constants.IMAGE,
		Method:     "image-ocr",
		Warnings:   warn,
		Confidence: heuristicConfidence(txt),
	}, nil
}

func (e *Extractor) tesseractOCR(ctx context.Context, path string) (string, []string, error) {
	// tesseract <file> stdout -l <lang>
	out, errb, err := e.runner.Run(ctx, e.cfg.Tesseract, path, "stdout", "-l", e.cfg.TesseractLang)
	if err != nil {
		return "", []string{string(errb)}, fmt.Errorf("tesseract: %w", err)
	}
	return string(out), nil, nil
}
