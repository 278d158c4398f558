package pipeline

import (
	"context"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/go-cmp/cmp"

	"github.com/nxreporting/stockex/internal/common"
	"github.com/nxreporting/stockex/internal/model"
	"github.com/nxreporting/stockex/internal/provider"
	"github.com/nxreporting/stockex/internal/provider/metadata"
)

type fakeProvider struct {
	name       string
	configured bool
	calls      int
	result     model.ProviderResult
	err        error
}

func (p *fakeProvider) Name() string                           { return p.name }
func (p *fakeProvider) IsConfigured(ctx context.Context) bool  { return p.configured }
func (p *fakeProvider) Extract(ctx context.Context, doc model.RawDocument) (model.ProviderResult, error) {
	p.calls++
	if p.err != nil {
		return model.ProviderResult{}, p.err
	}
	return p.result, nil
}

func f(v float64) *float64 { return &v }

func newOrch(providers ...provider.Provider) *Orchestrator {
	return NewOrchestrator(Config{
		MaxFileSizeMB: 50,
		Timeout:       5 * time.Second,
		MaxAttempts:   2,
		BaseDelay:     time.Millisecond,
	}, providers, nil)
}

func TestExtractFirstSuccessShortCircuits(t *testing.T) {
	first := &fakeProvider{name: "first", configured: true, result: model.ProviderResult{
		ProviderName:  "first",
		ExtractedText: "PARACETAMOL 500MG TAB 40 8 0 60 4881.60 12 0.00",
	}}
	second := &fakeProvider{name: "second", configured: true}

	resp := newOrch(first, second).Extract(context.Background(), model.RawDocument{Bytes: []byte("%PDF"), Filename: "s.pdf"})
	if !resp.Success {
		t.Fatalf("response: %+v", resp)
	}
	if resp.Provider != "first" {
		t.Errorf("provider = %q", resp.Provider)
	}
	if second.calls != 0 {
		t.Errorf("later provider was called %d times", second.calls)
	}
	want := []model.StockItemRecord{{
		ItemName:     "PARACETAMOL 500MG TAB",
		OpeningQty:   f(40),
		PurchaseQty:  f(8),
		PurchaseFree: f(0),
		SalesQty:     f(60),
		SalesValue:   f(4881.60),
		ClosingQty:   f(12),
		ClosingValue: f(0),
	}}
	if diff := cmp.Diff(want, resp.Data); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}
	if len(resp.Attempts) != 1 || !resp.Attempts[0].Succeeded {
		t.Errorf("attempts = %+v", resp.Attempts)
	}
}

func TestExtractSkipsUnconfigured(t *testing.T) {
	skipped := &fakeProvider{name: "skipped", configured: false}
	wins := &fakeProvider{name: "wins", configured: true, result: model.ProviderResult{
		ProviderName:  "wins",
		ExtractedText: "CROCIN 650MG TAB  10  2  0  8  640.00  4  320.00",
	}}
	resp := newOrch(skipped, wins).Extract(context.Background(), model.RawDocument{Bytes: []byte("x"), Filename: "a.pdf"})
	if skipped.calls != 0 {
		t.Errorf("unconfigured provider called %d times", skipped.calls)
	}
	if !resp.Success || resp.Provider != "wins" {
		t.Errorf("response: %+v", resp)
	}
}

func TestExtractSizeLimit(t *testing.T) {
	p := &fakeProvider{name: "p", configured: true}
	o := NewOrchestrator(Config{MaxFileSizeMB: 1, Timeout: time.Second}, []provider.Provider{p}, nil)
	resp := o.Extract(context.Background(), model.RawDocument{
		Bytes:    make([]byte, 2<<20),
		Filename: "huge.pdf",
	})
	if resp.Success {
		t.Fatal("oversized file must fail")
	}
	if !strings.Contains(resp.Error, "1MB") {
		t.Errorf("error = %q", resp.Error)
	}
	if p.calls != 0 {
		t.Errorf("provider was called %d times for a rejected file", p.calls)
	}
}

func TestExtractTransientErrorRetriesThenMovesOn(t *testing.T) {
	flaky := &fakeProvider{name: "flaky", configured: true,
		err: common.NewError(common.KindTransient, "flaky", "upstream 503", nil)}
	terminal := &fakeProvider{name: "terminal", configured: true,
		err: common.NewError(common.KindConfiguration, "terminal", "bad key", nil)}
	wins := &fakeProvider{name: "wins", configured: true, result: model.ProviderResult{
		ProviderName:      "wins",
		StructuredRecords: []model.StockItemRecord{{ItemName: "DOLO 650", ClosingQty: f(3)}},
	}}

	resp := newOrch(flaky, terminal, wins).Extract(context.Background(), model.RawDocument{Bytes: []byte("x"), Filename: "a.pdf"})
	if !resp.Success || resp.Provider != "wins" {
		t.Fatalf("response: %+v", resp)
	}
	if flaky.calls != 2 {
		t.Errorf("transient provider calls = %d, want 2 (MaxAttempts)", flaky.calls)
	}
	if terminal.calls != 1 {
		t.Errorf("terminal provider calls = %d, want 1", terminal.calls)
	}
	// two flaky attempts, one terminal, one success
	if len(resp.Attempts) != 4 {
		t.Errorf("attempts = %d, want 4", len(resp.Attempts))
	}
}

func TestExtractEmptyResultIsNotAWin(t *testing.T) {
	empty := &fakeProvider{name: "empty", configured: true, result: model.ProviderResult{ProviderName: "empty"}}
	wins := &fakeProvider{name: "wins", configured: true, result: model.ProviderResult{
		ProviderName:  "wins",
		ExtractedText: "ZINCOVIT TAB 12 5 9",
	}}
	resp := newOrch(empty, wins).Extract(context.Background(), model.RawDocument{Bytes: []byte("x"), Filename: "a.pdf"})
	if !resp.Success || resp.Provider != "wins" {
		t.Fatalf("response: %+v", resp)
	}
}

func TestExtractAllProvidersFail(t *testing.T) {
	a := &fakeProvider{name: "a", configured: true,
		err: common.NewError(common.KindProviderProcessing, "a", "corrupt", nil)}
	b := &fakeProvider{name: "b", configured: false}

	resp := newOrch(a, b).Extract(context.Background(), model.RawDocument{Bytes: []byte("x"), Filename: "a.pdf"})
	if resp.Success {
		t.Fatal("want failure when every provider fails")
	}
	if !strings.Contains(resp.Error, "all providers failed") {
		t.Errorf("error = %q", resp.Error)
	}
	if len(resp.Attempts) != 1 {
		t.Errorf("attempts = %d, want 1", len(resp.Attempts))
	}
}

// slowProvider blocks until the run deadline expires.
type slowProvider struct{ calls int }

func (p *slowProvider) Name() string                          { return "slow" }
func (p *slowProvider) IsConfigured(ctx context.Context) bool { return true }
func (p *slowProvider) Extract(ctx context.Context, doc model.RawDocument) (model.ProviderResult, error) {
	p.calls++
	<-ctx.Done()
	return model.ProviderResult{}, ctx.Err()
}

func TestExtractDeadlineSurfacesAsTimeout(t *testing.T) {
	slow := &slowProvider{}
	fallback := metadata.New(nil)
	o := NewOrchestrator(Config{
		MaxFileSizeMB: 50,
		Timeout:       50 * time.Millisecond,
		MaxAttempts:   3,
		BaseDelay:     time.Millisecond,
	}, []provider.Provider{slow, fallback}, nil)

	resp := o.Extract(context.Background(), model.RawDocument{Bytes: []byte("x"), Filename: "q1_stock.pdf"})
	if resp.Success {
		t.Fatalf("expired deadline must not become a success: %+v", resp)
	}
	if !strings.Contains(resp.Error, "timed out") {
		t.Errorf("error = %q, want a timeout error", resp.Error)
	}
	if resp.Provider != "" || len(resp.Data) != 0 {
		t.Errorf("no provider may win after the deadline: provider=%q data=%+v", resp.Provider, resp.Data)
	}
}

func TestExtractMetadataFallbackWhenAllBackendsDown(t *testing.T) {
	down := &fakeProvider{name: "down", configured: true,
		err: common.NewError(common.KindProviderProcessing, "down", "backend offline", nil)}
	o := newOrch(down, metadata.New(nil))

	resp := o.Extract(context.Background(), model.RawDocument{
		Bytes:    []byte("scan"),
		Filename: "q1_stock_2026.pdf",
	})
	if !resp.Success {
		t.Fatalf("response: %+v", resp)
	}
	if resp.Provider != "file-metadata" {
		t.Errorf("provider = %q", resp.Provider)
	}
	want := []model.StockItemRecord{{ItemName: "q1 stock 2026"}}
	if diff := cmp.Diff(want, resp.Data); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}
}

func TestPreviewKeepsRuneBoundaries(t *testing.T) {
	text := strings.Repeat("x", previewLen-1) + "₹420.00"
	got := preview(text)
	if len(got) > previewLen {
		t.Errorf("preview length = %d, want <= %d", len(got), previewLen)
	}
	if !utf8.ValidString(got) {
		t.Errorf("preview split a rune: %q", got)
	}
}

type captureRecorder struct {
	filename string
	attempts []model.ExtractionAttempt
}

func (c *captureRecorder) Record(ctx context.Context, filename string, attempts []model.ExtractionAttempt) error {
	c.filename = filename
	c.attempts = attempts
	return nil
}

func TestExtractRecordsAttempts(t *testing.T) {
	p := &fakeProvider{name: "p", configured: true,
		err: common.NewError(common.KindParse, "p", "garbled", nil)}
	rec := &captureRecorder{}
	o := newOrch(p).WithRecorder(rec)

	o.Extract(context.Background(), model.RawDocument{Bytes: []byte("x"), Filename: "q.pdf"})
	if rec.filename != "q.pdf" {
		t.Errorf("recorded filename = %q", rec.filename)
	}
	if len(rec.attempts) != 1 || rec.attempts[0].ErrorKind != string(common.KindParse) {
		t.Errorf("recorded attempts = %+v", rec.attempts)
	}
}
