// Package local wraps on-host extraction tools as a cascade provider. It
// has no credentials to check, so it is always configured; whether it can
// actually produce text depends on the binaries installed on the machine.
package local

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nxreporting/stockex/internal/model"
	"github.com/nxreporting/stockex/internal/ocr"
)

const providerName = "local-ocr"

type Provider struct {
	extractor *ocr.Extractor
	logger    *slog.Logger
}

func New(extractor *ocr.Extractor, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{extractor: extractor, logger: logger}
}

func (p *Provider) Name() string { return providerName }

func (p *Provider) IsConfigured(ctx context.Context) bool { return true }

func (p *Provider) Extract(ctx context.Context, doc model.RawDocument) (model.ProviderResult, error) {
	res, err := p.extractor.Extract(ctx, doc)
	if err != nil {
		return model.ProviderResult{}, fmt.Errorf("local extraction: %w", err)
	}
	p.logger.Info("local.extract.ok",
		"filename", doc.Filename,
		"method", res.Method,
		"text_len", len(res.Text),
		"records", len(res.Records),
	)
	return model.ProviderResult{
		ProviderName:      providerName,
		ExtractedText:     res.Text,
		StructuredRecords: res.Records,
		Confidence:        res.Confidence,
	}, nil
}
