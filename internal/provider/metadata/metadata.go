// Package metadata is the terminal fallback of the cascade. When every real
// backend has failed it manufactures a single record from the filename so
// the caller still gets a trace of what was submitted.
package metadata

import (
	"context"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/nxreporting/stockex/internal/model"
)

const providerName = "file-metadata"

var reSeparators = regexp.MustCompile(`[_\-.]+`)
var reSpaces = regexp.MustCompile(`\s+`)

type Provider struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{logger: logger}
}

func (p *Provider) Name() string { return providerName }

func (p *Provider) IsConfigured(ctx context.Context) bool { return true }

// Extract never fails. All numeric fields stay nil; there is nothing real
// to report, only that the document existed.
func (p *Provider) Extract(ctx context.Context, doc model.RawDocument) (model.ProviderResult, error) {
	name := stemName(doc.Filename)
	p.logger.Warn("metadata.extract.fallback", "filename", doc.Filename, "item_name", name)
	return model.ProviderResult{
		ProviderName:      providerName,
		StructuredRecords: []model.StockItemRecord{{ItemName: name}},
		Confidence:        0.1,
	}, nil
}

func stemName(filename string) string {
	base := filepath.Base(filename)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	stem = reSeparators.ReplaceAllString(stem, " ")
	stem = strings.TrimSpace(reSpaces.ReplaceAllString(stem, " "))
	if stem == "" {
		return model.PlaceholderItemName
	}
	return stem
}
