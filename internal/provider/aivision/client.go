// Package aivision adapts a chat-completions model as the fourth cascade
// backend. Instead of positional heuristics it hands the extracted text to
// the model with a strict output contract and validates the reply against a
// JSON schema before trusting a single field.
package aivision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/nxreporting/stockex/internal/common"
	"github.com/nxreporting/stockex/internal/model"
	"github.com/nxreporting/stockex/internal/provider"
)

const providerName = "ai-vision"

// maxPromptChars caps the text sent to the model. Stock reports past this
// size have already blown the useful context window anyway.
const maxPromptChars = 24000

const systemPrompt = `You extract pharmaceutical stock report rows.
Return ONLY a JSON array, no markdown and no commentary.
Each element: {"itemName": string, "openingQty": number|null, "purchaseQty": number|null, "purchaseFree": number|null, "salesQty": number|null, "salesValue": number|null, "closingQty": number|null, "closingValue": number|null}.
Use null for any quantity you cannot read. Never invent rows.`

// Preparer turns a raw document into text for the prompt. The local
// extraction stack is the usual implementation.
type Preparer func(ctx context.Context, doc model.RawDocument) (string, error)

// Config for the AI extraction client.
type Config struct {
	APIKey        string
	BaseURL       string // default https://api.openai.com/v1
	Model         string // default gpt-4o-mini
	Temperature   float32
	Timeout       time.Duration
	ConfiguredTTL time.Duration
}

type Client struct {
	cfg     Config
	http    *http.Client
	logger  *slog.Logger
	cache   *provider.ConfiguredCache
	prepare Preparer
}

func NewClient(cfg Config, prepare Preparer, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 45 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		logger:  logger,
		prepare: prepare,
	}
	c.cache = provider.NewConfiguredCache(cfg.ConfiguredTTL, func(ctx context.Context) bool {
		return provider.UsableKey(cfg.APIKey)
	})
	return c
}

func (c *Client) Name() string { return providerName }

func (c *Client) IsConfigured(ctx context.Context) bool { return c.cache.Get(ctx) }

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float32       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func (c *Client) Extract(ctx context.Context, doc model.RawDocument) (model.ProviderResult, error) {
	rid := uuid.New().String()
	start := time.Now()

	text, err := c.documentText(ctx, doc)
	if err != nil {
		return model.ProviderResult{}, err
	}
	text = truncatePrompt(text)
	c.logger.Info("aivision.extract.start", "req_id", rid, "filename", doc.Filename, "text_len", len(text), "model", c.cfg.Model)

	content, err := c.complete(ctx, rid, text)
	if err != nil {
		return model.ProviderResult{}, err
	}
	records, err := decodeRecords(content)
	if err != nil {
		c.logger.Error("aivision.extract.decode_error", "req_id", rid, "error", err)
		return model.ProviderResult{}, err
	}

	c.logger.Info("aivision.extract.ok", "req_id", rid, "records", len(records), "elapsed_ms", time.Since(start).Milliseconds())
	return model.ProviderResult{
		ProviderName:      providerName,
		ExtractedText:     text,
		StructuredRecords: records,
		Confidence:        0.8,
	}, nil
}

// truncatePrompt caps the prompt text on a rune boundary so the request
// body stays valid UTF-8.
func truncatePrompt(text string) string {
	if len(text) <= maxPromptChars {
		return text
	}
	cut := maxPromptChars
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}

// documentText prefers the configured preparer and falls back to treating
// the payload as UTF-8 when none produced anything.
func (c *Client) documentText(ctx context.Context, doc model.RawDocument) (string, error) {
	if c.prepare != nil {
		text, err := c.prepare(ctx, doc)
		if err == nil && strings.TrimSpace(text) != "" {
			return text, nil
		}
		if err != nil {
			c.logger.Warn("aivision.prepare_failed", "filename", doc.Filename, "error", err)
		}
	}
	text := strings.TrimSpace(string(doc.Bytes))
	if text == "" || !strings.ContainsAny(text, "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz") {
		return "", common.NewError(common.KindProviderProcessing, providerName, "no text available for prompt", nil)
	}
	return text, nil
}

func (c *Client) complete(ctx context.Context, rid, text string) (string, error) {
	payload, err := json.Marshal(chatRequest{
		Model:       c.cfg.Model,
		Temperature: c.cfg.Temperature,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: text},
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error("aivision.complete.send_error", "req_id", rid, "error", err)
		return "", fmt.Errorf("chat completion request: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode/100 != 2 {
		c.logger.Error("aivision.complete.http_error", "req_id", rid, "status", resp.StatusCode)
		return "", common.FromStatus(providerName, resp.StatusCode, string(raw))
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", common.NewError(common.KindParse, providerName, "decode chat response", err)
	}
	if parsed.Error != nil {
		return "", common.NewError(common.KindProviderProcessing, providerName, parsed.Error.Message, nil)
	}
	if len(parsed.Choices) == 0 {
		return "", common.NewError(common.KindProviderProcessing, providerName, "chat response has no choices", nil)
	}
	return parsed.Choices[0].Message.Content, nil
}
