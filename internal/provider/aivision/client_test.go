package aivision

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/go-cmp/cmp"

	"github.com/nxreporting/stockex/internal/common"
	"github.com/nxreporting/stockex/internal/model"
)

func f(v float64) *float64 { return &v }

func newTestClient(t *testing.T, prepare Preparer, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{
		APIKey:  "sk-test",
		BaseURL: srv.URL,
		Model:   "test-model",
		Timeout: 5 * time.Second,
	}, prepare, nil)
}

func chatReply(content string) string {
	b, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"role": "assistant", "content": content}},
		},
	})
	return string(b)
}

func TestExtractParsesValidatedArray(t *testing.T) {
	var gotPrompt chatRequest
	prepare := func(ctx context.Context, doc model.RawDocument) (string, error) {
		return "PARACETAMOL 500MG TAB 40 8 0 60 4881.60 12 0.00", nil
	}
	c := newTestClient(t, prepare, func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotPrompt); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		w.Write([]byte(chatReply("Here are the rows:\n```json\n" +
			`[{"itemName":"PARACETAMOL 500MG TAB","openingQty":40,"purchaseQty":8,"purchaseFree":0,"salesQty":60,"salesValue":4881.60,"closingQty":12,"closingValue":null}]` +
			"\n```")))
	})

	res, err := c.Extract(context.Background(), model.RawDocument{Bytes: []byte("%PDF"), Filename: "stock.pdf"})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	want := []model.StockItemRecord{{
		ItemName:     "PARACETAMOL 500MG TAB",
		OpeningQty:   f(40),
		PurchaseQty:  f(8),
		PurchaseFree: f(0),
		SalesQty:     f(60),
		SalesValue:   f(4881.60),
		ClosingQty:   f(12),
	}}
	if diff := cmp.Diff(want, res.StructuredRecords); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}
	if gotPrompt.Model != "test-model" || len(gotPrompt.Messages) != 2 {
		t.Errorf("request: model=%q messages=%d", gotPrompt.Model, len(gotPrompt.Messages))
	}
	if !strings.Contains(gotPrompt.Messages[1].Content, "PARACETAMOL") {
		t.Errorf("user message should carry prepared text, got %q", gotPrompt.Messages[1].Content)
	}
}

func TestExtractRejectsSchemaViolations(t *testing.T) {
	prepare := func(ctx context.Context, doc model.RawDocument) (string, error) {
		return "some stock text", nil
	}
	c := newTestClient(t, prepare, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(chatReply(`[{"itemName":"OK","openingQty":"forty"}]`)))
	})
	_, err := c.Extract(context.Background(), model.RawDocument{Bytes: []byte("x"), Filename: "a.pdf"})
	var xerr *common.ExtractionError
	if !errors.As(err, &xerr) || xerr.Kind != common.KindParse {
		t.Fatalf("want parse error, got %v", err)
	}
}

func TestExtractNoArrayInReply(t *testing.T) {
	prepare := func(ctx context.Context, doc model.RawDocument) (string, error) {
		return "some stock text", nil
	}
	c := newTestClient(t, prepare, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(chatReply("I could not find any stock rows in this document.")))
	})
	_, err := c.Extract(context.Background(), model.RawDocument{Bytes: []byte("x"), Filename: "a.pdf"})
	var xerr *common.ExtractionError
	if !errors.As(err, &xerr) || xerr.Kind != common.KindParse {
		t.Fatalf("want parse error, got %v", err)
	}
}

func TestExtractRateLimitIsRetryable(t *testing.T) {
	prepare := func(ctx context.Context, doc model.RawDocument) (string, error) {
		return "some stock text", nil
	}
	c := newTestClient(t, prepare, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"rate limited"}}`, http.StatusTooManyRequests)
	})
	_, err := c.Extract(context.Background(), model.RawDocument{Bytes: []byte("x"), Filename: "a.pdf"})
	if !common.Retryable(err) {
		t.Fatalf("429 should be retryable, got %v", err)
	}
}

func TestDocumentTextFallsBackToRawBytes(t *testing.T) {
	c := NewClient(Config{APIKey: "sk-test"}, nil, nil)
	text, err := c.documentText(context.Background(), model.RawDocument{
		Bytes:    []byte("CROCIN 650  10  2  0  8  640.00"),
		Filename: "report.txt",
	})
	if err != nil {
		t.Fatalf("documentText: %v", err)
	}
	if !strings.Contains(text, "CROCIN") {
		t.Errorf("text = %q", text)
	}

	if _, err := c.documentText(context.Background(), model.RawDocument{Bytes: []byte("123 456"), Filename: "n.bin"}); err == nil {
		t.Error("numeric-only payload should not become a prompt")
	}
}

func TestTruncatePromptKeepsRuneBoundaries(t *testing.T) {
	text := strings.Repeat("x", maxPromptChars-1) + "₹1,200.50"
	got := truncatePrompt(text)
	if len(got) > maxPromptChars {
		t.Errorf("length = %d, want <= %d", len(got), maxPromptChars)
	}
	if !utf8.ValidString(got) {
		t.Errorf("truncation split a rune: %q", got[len(got)-8:])
	}
	short := "CROCIN 650"
	if truncatePrompt(short) != short {
		t.Error("short prompts must pass through unchanged")
	}
}

func TestLocateJSONArray(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{`[]`, `[]`, true},
		{"junk before [1, 2] junk after", "[1, 2]", true},
		{`[{"itemName":"A ] B"}]`, `[{"itemName":"A ] B"}]`, true},
		{`[{"itemName":"esc \" ]"}]`, `[{"itemName":"esc \" ]"}]`, true},
		{"no array here", "", false},
		{"[unterminated", "", false},
	}
	for _, tc := range cases {
		got, ok := locateJSONArray(tc.in)
		if ok != tc.ok || got != tc.want {
			t.Errorf("locateJSONArray(%q) = %q, %v; want %q, %v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}
