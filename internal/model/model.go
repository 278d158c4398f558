// Package model defines the value types that flow through the extraction
// core: the inbound document, per-provider results, the attempt log, and the
// canonical stock-item records handed back to callers.
package model

import "time"

// RawDocument is the immutable input to one extraction call. The core never
// retains a reference to Bytes past response construction.
type RawDocument struct {
	Bytes    []byte
	Filename string
}

// Size returns the document size in bytes.
func (d RawDocument) Size() int64 { return int64(len(d.Bytes)) }

// ExtractionAttempt records one provider invocation, including each retry.
// Created once per call and never mutated afterwards.
type ExtractionAttempt struct {
	Provider   string    `json:"provider"`
	Attempt    int       `json:"attempt"`
	StartedAt  time.Time `json:"startedAt"`
	DurationMs int64     `json:"durationMs"`
	Succeeded  bool      `json:"succeeded"`
	ErrorKind  string    `json:"errorKind,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// ProviderResult is what a provider adapter hands back to the cascade.
// ExtractedText and StructuredRecords are alternatives; neither is assumed
// present on success.
type ProviderResult struct {
	ProviderName      string
	ExtractedText     string
	StructuredRecords []StockItemRecord
	Confidence        float32
}

// Empty reports whether the result carries nothing the cascade can use.
func (r ProviderResult) Empty() bool {
	return len(r.StructuredRecords) == 0 && len(r.ExtractedText) == 0
}

// PlaceholderItemName is reserved; records carrying it are dropped during
// validation.
const PlaceholderItemName = "Unknown Item"

// StockItemRecord is the canonical output unit: one pharmaceutical product's
// inventory movement. Numeric fields are either finite or nil, never NaN.
type StockItemRecord struct {
	ItemName     string   `json:"itemName"`
	OpeningQty   *float64 `json:"openingQty"`
	PurchaseQty  *float64 `json:"purchaseQty"`
	PurchaseFree *float64 `json:"purchaseFree"`
	SalesQty     *float64 `json:"salesQty"`
	SalesValue   *float64 `json:"salesValue"`
	ClosingQty   *float64 `json:"closingQty"`
	ClosingValue *float64 `json:"closingValue"`
}

// ExtractionResponse is the terminal output of the core. Expected failure
// modes surface here with Success=false; the core never panics for them.
type ExtractionResponse struct {
	Success       bool                `json:"success"`
	Data          []StockItemRecord   `json:"data,omitempty"`
	Error         string              `json:"error,omitempty"`
	Provider      string              `json:"provider,omitempty"`
	TextLength    int                 `json:"extractedTextLength,omitempty"`
	TextPreview   string              `json:"textPreview,omitempty"`
	Attempts      []ExtractionAttempt `json:"attempts,omitempty"`
	ElapsedMillis int64               `json:"elapsedMs,omitempty"`
}
