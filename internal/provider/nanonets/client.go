// Package nanonets adapts the Nanonets OCR model API, the second backend in
// the cascade. Unlike DocStrange it returns labelled field predictions, so
// this client maps prediction labels straight onto stock records and only
// falls back to joined OCR text when no labels line up.
package nanonets

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/nxreporting/stockex/internal/common"
	"github.com/nxreporting/stockex/internal/model"
	"github.com/nxreporting/stockex/internal/parser"
	"github.com/nxreporting/stockex/internal/provider"
)

const providerName = "nanonets"

// Config for the Nanonets client. Both APIKey and ModelID are required for
// the provider to report itself configured.
type Config struct {
	APIKey        string
	ModelID       string
	BaseURL       string // default https://app.nanonets.com
	Timeout       time.Duration
	ConfiguredTTL time.Duration
}

type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
	cache  *provider.ConfiguredCache
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://app.nanonets.com"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 45 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
	c.cache = provider.NewConfiguredCache(cfg.ConfiguredTTL, func(ctx context.Context) bool {
		return provider.UsableKey(cfg.APIKey) && strings.TrimSpace(cfg.ModelID) != ""
	})
	return c
}

func (c *Client) Name() string { return providerName }

func (c *Client) IsConfigured(ctx context.Context) bool { return c.cache.Get(ctx) }

type prediction struct {
	Label   string `json:"label"`
	OcrText string `json:"ocr_text"`
}

type labelFileResponse struct {
	Message string `json:"message"`
	Result  []struct {
		Prediction []prediction `json:"prediction"`
	} `json:"result"`
}

// Extract posts the document to the trained OCR model and converts its
// labelled predictions. An item_name label opens a new record; numeric
// labels fill the current one. Pages without usable labels still
// contribute their raw text.
func (c *Client) Extract(ctx context.Context, doc model.RawDocument) (model.ProviderResult, error) {
	start := time.Now()
	c.logger.Info("nanonets.extract.start", "filename", doc.Filename, "bytes", len(doc.Bytes))

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", doc.Filename)
	if err != nil {
		return model.ProviderResult{}, fmt.Errorf("build multipart: %w", err)
	}
	if _, err := fw.Write(doc.Bytes); err != nil {
		return model.ProviderResult{}, fmt.Errorf("write multipart: %w", err)
	}
	if err := mw.Close(); err != nil {
		return model.ProviderResult{}, fmt.Errorf("close multipart: %w", err)
	}

	url := fmt.Sprintf("%s/api/v2/OCR/Model/%s/LabelFile/", strings.TrimRight(c.cfg.BaseURL, "/"), c.cfg.ModelID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return model.ProviderResult{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.SetBasicAuth(c.cfg.APIKey, "")

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error("nanonets.extract.send_error", "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return model.ProviderResult{}, fmt.Errorf("nanonets request: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode/100 != 2 {
		c.logger.Error("nanonets.extract.http_error", "status", resp.StatusCode, "elapsed_ms", time.Since(start).Milliseconds())
		return model.ProviderResult{}, common.FromStatus(providerName, resp.StatusCode, string(raw))
	}

	var parsed labelFileResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return model.ProviderResult{}, common.NewError(common.KindParse, providerName, "decode response", err)
	}

	records, text := mapPredictions(parsed)
	c.logger.Info("nanonets.extract.ok",
		"records", len(records),
		"text_len", len(text),
		"pages", len(parsed.Result),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return model.ProviderResult{
		ProviderName:      providerName,
		ExtractedText:     text,
		StructuredRecords: records,
		Confidence:        0.85,
	}, nil
}

// mapPredictions walks pages in order. Field labels follow the model's
// training schema; anything unrecognised only feeds the text fallback.
func mapPredictions(resp labelFileResponse) ([]model.StockItemRecord, string) {
	var (
		records []model.StockItemRecord
		current *model.StockItemRecord
		text    strings.Builder
	)
	flush := func() {
		if current != nil && strings.TrimSpace(current.ItemName) != "" {
			records = append(records, *current)
		}
		current = nil
	}
	for _, page := range resp.Result {
		for _, p := range page.Prediction {
			if p.OcrText != "" {
				text.WriteString(p.OcrText)
				text.WriteString("\n")
			}
			switch p.Label {
			case "item_name", "medicine_name":
				flush()
				current = &model.StockItemRecord{ItemName: strings.TrimSpace(p.OcrText)}
			case "opening_qty":
				if current != nil {
					current.OpeningQty = parser.ParseNumber(p.OcrText)
				}
			case "purchase_qty":
				if current != nil {
					current.PurchaseQty = parser.ParseNumber(p.OcrText)
				}
			case "purchase_free":
				if current != nil {
					current.PurchaseFree = parser.ParseNumber(p.OcrText)
				}
			case "sales_qty":
				if current != nil {
					current.SalesQty = parser.ParseNumber(p.OcrText)
				}
			case "sales_value":
				if current != nil {
					current.SalesValue = parser.ParseNumber(p.OcrText)
				}
			case "closing_qty":
				if current != nil {
					current.ClosingQty = parser.ParseNumber(p.OcrText)
				}
			case "closing_value":
				if current != nil {
					current.ClosingValue = parser.ParseNumber(p.OcrText)
				}
			}
		}
	}
	flush()
	return records, strings.TrimSpace(text.String())
}
