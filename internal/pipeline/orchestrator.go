// Package pipeline runs the provider cascade. Providers are tried strictly
// in order; the first one that yields a non-empty result wins and later
// providers are never touched. Each provider call goes through the retry
// policy, and every attempt is recorded on the response.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/nxreporting/stockex/internal/common"
	"github.com/nxreporting/stockex/internal/model"
	"github.com/nxreporting/stockex/internal/parser"
	"github.com/nxreporting/stockex/internal/provider"
	"github.com/nxreporting/stockex/internal/retry"
)

const previewLen = 200

// AttemptRecorder receives every provider attempt after the run completes,
// typically backed by the sqlite attempt log. It may be nil.
type AttemptRecorder interface {
	Record(ctx context.Context, filename string, attempts []model.ExtractionAttempt) error
}

// Config bounds a single extraction run.
type Config struct {
	MaxFileSizeMB int           // reject larger uploads before any provider runs
	Timeout       time.Duration // overall deadline for the whole cascade
	MaxAttempts   int
	BaseDelay     time.Duration
}

type Orchestrator struct {
	cfg       Config
	providers []provider.Provider
	policy    retry.Policy
	engine    *parser.Engine
	logger    *slog.Logger
	recorder  AttemptRecorder
}

func NewOrchestrator(cfg Config, providers []provider.Provider, logger *slog.Logger) *Orchestrator {
	if cfg.MaxFileSizeMB <= 0 {
		cfg.MaxFileSizeMB = 50
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		cfg:       cfg,
		providers: providers,
		policy:    retry.NewPolicy(cfg.MaxAttempts, cfg.BaseDelay),
		engine:    parser.NewEngine(),
		logger:    logger,
	}
}

// WithRecorder attaches an attempt recorder. Recording failures are logged,
// never surfaced to the caller.
func (o *Orchestrator) WithRecorder(r AttemptRecorder) *Orchestrator {
	o.recorder = r
	return o
}

// Extract runs the cascade over doc and always returns a response; the
// error form lives inside it. The only inputs rejected up front are
// oversized ones.
func (o *Orchestrator) Extract(ctx context.Context, doc model.RawDocument) model.ExtractionResponse {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, o.cfg.Timeout)
	defer cancel()

	maxBytes := int64(o.cfg.MaxFileSizeMB) << 20
	if doc.Size() > maxBytes {
		msg := fmt.Sprintf("file too large: %d bytes exceeds the %dMB limit", doc.Size(), o.cfg.MaxFileSizeMB)
		o.logger.Warn("pipeline.size_limit", "filename", doc.Filename, "bytes", doc.Size())
		return model.ExtractionResponse{
			Success:       false,
			Error:         msg,
			ElapsedMillis: time.Since(start).Milliseconds(),
		}
	}

	var attempts []model.ExtractionAttempt
	observe := func(a model.ExtractionAttempt) { attempts = append(attempts, a) }
	defer func() {
		if o.recorder != nil && len(attempts) > 0 {
			if err := o.recorder.Record(context.WithoutCancel(ctx), doc.Filename, attempts); err != nil {
				o.logger.Warn("pipeline.attempt_log_error", "error", err)
			}
		}
	}()

	for _, p := range o.providers {
		if ctx.Err() != nil {
			return o.timeout(ctx, doc, attempts, start)
		}
		if !p.IsConfigured(ctx) {
			o.logger.Info("pipeline.provider.skipped", "provider", p.Name(), "reason", "not configured")
			continue
		}
		o.logger.Info("pipeline.provider.start", "provider", p.Name(), "filename", doc.Filename)
		res, err := retry.Do(ctx, o.policy, p.Name(), func(ctx context.Context) (model.ProviderResult, error) {
			return p.Extract(ctx, doc)
		}, observe)
		if err != nil {
			if ctx.Err() != nil {
				return o.timeout(ctx, doc, attempts, start)
			}
			o.logger.Warn("pipeline.provider.failed", "provider", p.Name(), "error", err, "kind", common.KindOf(err))
			continue
		}
		if res.Empty() {
			o.logger.Info("pipeline.provider.empty", "provider", p.Name())
			continue
		}
		return o.respond(doc, res, attempts, start)
	}

	o.logger.Error("pipeline.all_failed", "filename", doc.Filename, "attempts", len(attempts))
	return model.ExtractionResponse{
		Success:       false,
		Error:         "all providers failed to extract the document",
		Attempts:      attempts,
		ElapsedMillis: time.Since(start).Milliseconds(),
	}
}

// timeout reports an expired run deadline. The later providers are never
// consulted; a deadline hit must not degrade into a fabricated success.
func (o *Orchestrator) timeout(ctx context.Context, doc model.RawDocument, attempts []model.ExtractionAttempt, start time.Time) model.ExtractionResponse {
	err := common.NewError(common.KindTransient, "", fmt.Sprintf("extraction timed out after %s", o.cfg.Timeout), ctx.Err())
	o.logger.Error("pipeline.timeout", "filename", doc.Filename, "timeout", o.cfg.Timeout, "attempts", len(attempts))
	return model.ExtractionResponse{
		Success:       false,
		Error:         err.Error(),
		Attempts:      attempts,
		ElapsedMillis: time.Since(start).Milliseconds(),
	}
}

// respond turns the winning provider result into the final response.
// Structured records are validated as-is; raw text goes through the
// strategy parser first.
func (o *Orchestrator) respond(doc model.RawDocument, res model.ProviderResult, attempts []model.ExtractionAttempt, start time.Time) model.ExtractionResponse {
	var records []model.StockItemRecord
	if len(res.StructuredRecords) > 0 {
		records = parser.Validate(res.StructuredRecords)
	} else {
		records = o.engine.Parse(res.ExtractedText)
	}

	o.logger.Info("pipeline.done",
		"provider", res.ProviderName,
		"filename", doc.Filename,
		"records", len(records),
		"text_len", len(res.ExtractedText),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return model.ExtractionResponse{
		Success:       true,
		Data:          records,
		Provider:      res.ProviderName,
		TextLength:    len(res.ExtractedText),
		TextPreview:   preview(res.ExtractedText),
		Attempts:      attempts,
		ElapsedMillis: time.Since(start).Milliseconds(),
	}
}

// preview truncates on a rune boundary; the response is JSON and must stay
// valid UTF-8.
func preview(text string) string {
	text = strings.TrimSpace(text)
	if len(text) <= previewLen {
		return text
	}
	cut := previewLen
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}
