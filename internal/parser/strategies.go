package parser

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/nxreporting/stockex/internal/model"
)

// A strategy is one heuristic for turning a raw text line into a candidate
// record. Strategies are ordered strictest first; a line claimed by one is
// never reprocessed by a looser one. Each bounds its own output as a safety
// valve against pathological matches on non-tabular text.
type strategy struct {
	name  string
	limit int
	match func(line string) (model.StockItemRecord, bool)
}

func defaultStrategies() []strategy {
	return []strategy{
		{name: "fixed-column", limit: 50, match: matchFixedColumn},
		{name: "wide-gap", limit: 40, match: matchWideGap},
		{name: "dosage-keyword", limit: 30, match: matchDosageKeyword},
		{name: "generic", limit: 20, match: matchGeneric},
	}
}

// canonical positional order: opening, purchase, free, sales qty,
// sales value, closing qty, closing value. Missing trailing columns map to
// nil rather than erroring.
func assignPositional(rec *model.StockItemRecord, numbers []string) {
	fields := []**float64{
		&rec.OpeningQty, &rec.PurchaseQty, &rec.PurchaseFree,
		&rec.SalesQty, &rec.SalesValue, &rec.ClosingQty, &rec.ClosingValue,
	}
	for i, f := range fields {
		if i >= len(numbers) {
			break
		}
		*f = ParseNumber(numbers[i])
	}
}

// matchFixedColumn handles the strict tabular layout: an uppercase name run
// followed by at least six numeric columns in fixed order.
func matchFixedColumn(line string) (model.StockItemRecord, bool) {
	tokens := strings.Fields(line)
	tail := 0
	for i := len(tokens) - 1; i >= 0 && isNumericToken(tokens[i]); i-- {
		tail++
	}
	if tail < 6 || tail == len(tokens) {
		return model.StockItemRecord{}, false
	}
	name := strings.Join(tokens[:len(tokens)-tail], " ")
	if !startsUpper(name) || !isValidMedicineName(name) {
		return model.StockItemRecord{}, false
	}
	rec := model.StockItemRecord{ItemName: name}
	assignPositional(&rec, tokens[len(tokens)-tail:])
	return rec, true
}

var reWideGap = regexp.MustCompile(`\s{2,}|\t+`)

// matchWideGap handles reports where the name column is separated from the
// numeric tail by runs of whitespace (merged-column OCR output).
func matchWideGap(line string) (model.StockItemRecord, bool) {
	parts := reWideGap.Split(strings.TrimSpace(line), -1)
	if len(parts) < 2 {
		return model.StockItemRecord{}, false
	}
	name := strings.TrimSpace(parts[0])
	tail := strings.Join(parts[1:], " ")
	numbers := reNumber.FindAllString(tail, -1)
	if len(numbers) < 4 {
		return model.StockItemRecord{}, false
	}
	if !startsUpper(name) || !isValidMedicineName(name) {
		return model.StockItemRecord{}, false
	}
	rec := model.StockItemRecord{ItemName: name}
	assignPositional(&rec, numbers)
	return rec, true
}

var (
	dosageKeywords = []string{"tablet", "capsule", "syrup", "injection", "gel", "cream"}
	reUnitMarker   = regexp.MustCompile(`(?i)\b\d+\s?(mg|ml|gm)\b`)
)

// matchDosageKeyword keys off pharmaceutical vocabulary rather than column
// structure. Numbers are partitioned into quantities (integers in [0,10000])
// and values (>1000 or carrying a decimal point) and assigned positionally
// within each group. Accuracy loss on odd layouts is accepted; the strict
// strategies get first claim on well-formed lines.
func matchDosageKeyword(line string) (model.StockItemRecord, bool) {
	lower := strings.ToLower(line)
	hasKeyword := false
	for _, kw := range dosageKeywords {
		if strings.Contains(lower, kw) {
			hasKeyword = true
			break
		}
	}
	if !hasKeyword && !reUnitMarker.MatchString(line) {
		return model.StockItemRecord{}, false
	}
	numbers := reNumber.FindAllString(line, -1)
	if len(numbers) < 2 {
		return model.StockItemRecord{}, false
	}

	name := nameBeforeNumbers(line)
	if !isValidMedicineName(name) {
		return model.StockItemRecord{}, false
	}

	var quantities, values []string
	for _, n := range numbers {
		v := ParseNumber(n)
		if v == nil {
			continue
		}
		if strings.Contains(n, ".") || *v > 1000 {
			values = append(values, n)
		} else if *v >= 0 && *v <= 10000 {
			quantities = append(quantities, n)
		}
	}

	rec := model.StockItemRecord{ItemName: name}
	qtySlots := []**float64{&rec.OpeningQty, &rec.PurchaseQty, &rec.SalesQty, &rec.ClosingQty}
	for i, f := range qtySlots {
		if i >= len(quantities) {
			break
		}
		*f = ParseNumber(quantities[i])
	}
	valSlots := []**float64{&rec.SalesValue, &rec.ClosingValue}
	for i, f := range valSlots {
		if i >= len(values) {
			break
		}
		*f = ParseNumber(values[i])
	}
	return rec, true
}

// matchGeneric is the permissive fallback: a capitalized line with at least
// three numeric tokens. Only the first word is trusted as the name.
func matchGeneric(line string) (model.StockItemRecord, bool) {
	trimmed := strings.TrimSpace(line)
	if !startsUpper(trimmed) {
		return model.StockItemRecord{}, false
	}
	numbers := reNumber.FindAllString(trimmed, -1)
	if len(numbers) < 3 {
		return model.StockItemRecord{}, false
	}
	name := strings.Fields(trimmed)[0]
	if !isValidMedicineName(name) {
		return model.StockItemRecord{}, false
	}
	if len(numbers) > 6 {
		numbers = numbers[:6]
	}
	rec := model.StockItemRecord{ItemName: name}
	assignPositional(&rec, numbers)
	return rec, true
}

// nameBeforeNumbers joins leading tokens up to the first token that starts
// with a digit.
func nameBeforeNumbers(line string) string {
	var name []string
	for _, tok := range strings.Fields(line) {
		if len(tok) > 0 && tok[0] >= '0' && tok[0] <= '9' {
			break
		}
		name = append(name, tok)
	}
	return strings.Join(name, " ")
}

func startsUpper(s string) bool {
	for _, r := range s {
		return unicode.IsUpper(r)
	}
	return false
}

var reBareNumber = regexp.MustCompile(`^\d+\.?\d*$`)

// isValidMedicineName applies the shape checks a plausible product name must
// pass: bounded length, contains letters, not a bare number, and not mostly
// punctuation noise.
func isValidMedicineName(name string) bool {
	name = strings.TrimSpace(name)
	if len(name) < 3 || len(name) > 60 {
		return false
	}
	hasLetter := false
	special := 0
	for _, r := range name {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r) || unicode.IsSpace(r):
		case r == '-' || r == '.' || r == '(' || r == ')' || r == '/':
		default:
			special++
		}
	}
	if !hasLetter || reBareNumber.MatchString(name) {
		return false
	}
	return special*10 <= len(name)*3
}
