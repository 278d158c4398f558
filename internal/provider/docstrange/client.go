// Package docstrange adapts the DocStrange document-extraction API, the
// layout-aware backend tried first in the cascade. It uploads the raw
// document and prefers the markdown rendering of the layout analysis, which
// keeps table rows on their own lines for the downstream parser.
package docstrange

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

	"github.com/google/uuid"

	"github.com/nxreporting/stockex/internal/common"
	"github.com/nxreporting/stockex/internal/model"
	"github.com/nxreporting/stockex/internal/provider"
)

const providerName = "docstrange"

// Config for the DocStrange client.
type Config struct {
	APIKey        string
	BaseURL       string        // default https://extraction-api.nanonets.com
	Timeout       time.Duration // http client timeout
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
		cfg.BaseURL = "https://extraction-api.nanonets.com"
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
		return provider.UsableKey(cfg.APIKey)
	})
	return c
}

func (c *Client) Name() string { return providerName }

func (c *Client) IsConfigured(ctx context.Context) bool { return c.cache.Get(ctx) }

type extractResponse struct {
	Content string `json:"content"`
	Pages   []struct {
		Elements []struct {
			Text string     `json:"text"`
			Bbox [4]float64 `json:"bbox"`
		} `json:"elements"`
	} `json:"pages"`
	Error string `json:"error"`
}

// Extract uploads the document and flattens the layout response to plain
// text. DocStrange returns either rendered content or per-page elements
// tagged with bounding boxes; both reduce to lines here.
func (c *Client) Extract(ctx context.Context, doc model.RawDocument) (model.ProviderResult, error) {
	rid := uuid.New().String()
	start := time.Now()
	c.logger.Info("docstrange.extract.start", "req_id", rid, "filename", doc.Filename, "bytes", len(doc.Bytes))

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", doc.Filename)
	if err != nil {
		return model.ProviderResult{}, fmt.Errorf("build multipart: %w", err)
	}
	if _, err := fw.Write(doc.Bytes); err != nil {
		return model.ProviderResult{}, fmt.Errorf("write multipart: %w", err)
	}
	if err := mw.WriteField("output_type", "markdown"); err != nil {
		return model.ProviderResult{}, fmt.Errorf("write multipart field: %w", err)
	}
	if err := mw.Close(); err != nil {
		return model.ProviderResult{}, fmt.Errorf("close multipart: %w", err)
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/extract"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return model.ProviderResult{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error("docstrange.extract.send_error", "req_id", rid, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return model.ProviderResult{}, fmt.Errorf("docstrange request: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.logger.Warn("docstrange.extract.body_close_error", "req_id", rid, "error", cerr)
		}
	}()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode/100 != 2 {
		c.logger.Error("docstrange.extract.http_error", "req_id", rid, "status", resp.StatusCode, "elapsed_ms", time.Since(start).Milliseconds())
		return model.ProviderResult{}, common.FromStatus(providerName, resp.StatusCode, string(raw))
	}

	var parsed extractResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return model.ProviderResult{}, common.NewError(common.KindParse, providerName, "decode response", err)
	}
	if parsed.Error != "" {
		return model.ProviderResult{}, common.NewError(common.KindProviderProcessing, providerName, parsed.Error, nil)
	}

	text := strings.TrimSpace(parsed.Content)
	if text == "" {
		var b strings.Builder
		for _, page := range parsed.Pages {
			for _, el := range page.Elements {
				b.WriteString(el.Text)
				b.WriteString("\n")
			}
		}
		text = strings.TrimSpace(b.String())
	}

	c.logger.Info("docstrange.extract.ok",
		"req_id", rid,
		"text_len", len(text),
		"pages", len(parsed.Pages),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return model.ProviderResult{
		ProviderName:  providerName,
		ExtractedText: text,
		Confidence:    0.9,
	}, nil
}
