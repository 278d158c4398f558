package parser

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/nxreporting/stockex/internal/model"
)

func f(v float64) *float64 { return &v }

func TestParse_FixedColumnScenario(t *testing.T) {
	text := "PARACETAMOL 500MG TAB 40 8 0 60 4881.60 12 0 0 0.00"
	e := NewEngine()
	got := e.Parse(text)
	if len(got) != 1 {
		t.Fatalf("Parse() returned %d records, want 1: %+v", len(got), got)
	}
	want := model.StockItemRecord{
		ItemName:     "PARACETAMOL 500MG TAB",
		OpeningQty:   f(40),
		PurchaseQty:  f(8),
		PurchaseFree: f(0),
		SalesQty:     f(60),
		SalesValue:   f(4881.60),
		ClosingQty:   f(12),
		ClosingValue: f(0),
	}
	if diff := cmp.Diff(want, got[0]); diff != "" {
		t.Errorf("record mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_Idempotent(t *testing.T) {
	text := strings.Join([]string{
		"AZITHROMYCIN 250 TAB 10 5 0 8 1240.00 7 0",
		"CROCIN SYRUP 60ML   12  3  9   820.50",
		"DOLO 650 4 2 1 5 310.00 2 0",
	}, "\n")
	e := NewEngine()
	first := e.Parse(text)
	second := e.Parse(text)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("parse not idempotent (-first +second):\n%s", diff)
	}
	if len(first) == 0 {
		t.Fatal("expected at least one record")
	}
}

func TestParse_SkipsHeadersAndShortLines(t *testing.T) {
	text := strings.Join([]string{
		"ITEM NAME OPENING PURCHASE SALES CLOSING",
		"S.NO QTY QUANTITY",
		"page 3",
		"----------",
		"ab",
		"",
		"IBUPROFEN 400 TAB 10 2 0 5 450.00 7 0",
	}, "\n")
	got := NewEngine().Parse(text)
	if len(got) != 1 {
		t.Fatalf("Parse() returned %d records, want 1: %+v", len(got), got)
	}
	if got[0].ItemName != "IBUPROFEN 400 TAB" {
		t.Errorf("ItemName = %q, want %q", got[0].ItemName, "IBUPROFEN 400 TAB")
	}
}

func TestParse_WideGap(t *testing.T) {
	// name separated from the numeric tail by runs of spaces; only four
	// numbers, so the fixed-column strategy cannot claim it
	text := "CETIRIZINE 10MG      15  4  11  230.40"
	got := NewEngine().Parse(text)
	if len(got) != 1 {
		t.Fatalf("Parse() returned %d records, want 1: %+v", len(got), got)
	}
	rec := got[0]
	if rec.ItemName != "CETIRIZINE 10MG" {
		t.Errorf("ItemName = %q, want %q", rec.ItemName, "CETIRIZINE 10MG")
	}
	if rec.OpeningQty == nil || *rec.OpeningQty != 15 {
		t.Errorf("OpeningQty = %v, want 15", rec.OpeningQty)
	}
	if rec.SalesValue != nil {
		// only four numbers: positions past the tail stay nil
		t.Errorf("SalesValue = %v, want nil", *rec.SalesValue)
	}
}

func TestParse_DosageKeyword(t *testing.T) {
	// too few numbers for fixed-column or generic mapping order, but the
	// dosage vocabulary identifies it
	text := "Amoxicillin capsule 30 1520.75"
	got := NewEngine().Parse(text)
	if len(got) != 1 {
		t.Fatalf("Parse() returned %d records, want 1: %+v", len(got), got)
	}
	rec := got[0]
	if rec.ItemName != "Amoxicillin capsule" {
		t.Errorf("ItemName = %q, want %q", rec.ItemName, "Amoxicillin capsule")
	}
	if rec.OpeningQty == nil || *rec.OpeningQty != 30 {
		t.Errorf("OpeningQty = %v, want 30", rec.OpeningQty)
	}
	if rec.SalesValue == nil || *rec.SalesValue != 1520.75 {
		t.Errorf("SalesValue = %v, want 1520.75", rec.SalesValue)
	}
}

func TestParse_GenericFallback(t *testing.T) {
	text := "Zincovit 12 5 9"
	got := NewEngine().Parse(text)
	if len(got) != 1 {
		t.Fatalf("Parse() returned %d records, want 1: %+v", len(got), got)
	}
	rec := got[0]
	if rec.ItemName != "Zincovit" {
		t.Errorf("ItemName = %q, want %q", rec.ItemName, "Zincovit")
	}
	if rec.OpeningQty == nil || *rec.OpeningQty != 12 {
		t.Errorf("OpeningQty = %v, want 12", rec.OpeningQty)
	}
	if rec.PurchaseQty == nil || *rec.PurchaseQty != 5 {
		t.Errorf("PurchaseQty = %v, want 5", rec.PurchaseQty)
	}
	if rec.PurchaseFree == nil || *rec.PurchaseFree != 9 {
		t.Errorf("PurchaseFree = %v, want 9", rec.PurchaseFree)
	}
}

func TestCandidates_LineClaimedOnce(t *testing.T) {
	// a strict tabular line also satisfies the generic fallback; the claim
	// must stop the looser strategy from emitting a second, differently
	// parsed record
	text := "METFORMIN 500 TAB 40 8 0 60 4881.60 12 0"
	cands := NewEngine().Candidates(text)
	if len(cands) != 1 {
		t.Fatalf("Candidates() returned %d records, want 1: %+v", len(cands), cands)
	}
	if cands[0].ItemName != "METFORMIN 500 TAB" {
		t.Errorf("ItemName = %q, want the full tabular name", cands[0].ItemName)
	}
}

func TestParse_StrategyCap(t *testing.T) {
	var lines []string
	for i := 0; i < 80; i++ {
		lines = append(lines, "PRODUCT"+string(rune('A'+i%26))+strings.Repeat("X", i/26+1)+" TAB 1 2 3 4 5.00 6 7")
	}
	got := NewEngine().Parse(strings.Join(lines, "\n"))
	if len(got) > maxRecords {
		t.Errorf("Parse() returned %d records, want <= %d", len(got), maxRecords)
	}
}

func TestParse_EmptyAndGarbage(t *testing.T) {
	for _, text := range []string{"", "\n\n\n", "%%% ### @@@", "1234 5678 9012"} {
		if got := NewEngine().Parse(text); len(got) != 0 {
			t.Errorf("Parse(%q) = %+v, want empty", text, got)
		}
	}
}
