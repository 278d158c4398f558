package parser

import (
	"regexp"
	"strings"

	"github.com/nxreporting/stockex/internal/model"
)

// non-product words that sometimes survive the line heuristics as standalone
// "names"
var reservedNames = map[string]struct{}{
	"STOCK":   {},
	"REPORT":  {},
	"TOTAL":   {},
	"OPENING": {},
	"CLOSING": {},
}

var reInnerSpace = regexp.MustCompile(`\s+`)

// Validate enforces the record shape on candidates from any source,
// strategy output and provider structured records alike. It normalizes
// names and numbers, drops degenerate rows, and deduplicates by
// case-normalized item name keeping the first occurrence, so input order
// decides which duplicate wins.
func Validate(candidates []model.StockItemRecord) []model.StockItemRecord {
	seen := make(map[string]struct{}, len(candidates))
	out := make([]model.StockItemRecord, 0, len(candidates))

	for _, c := range candidates {
		name := reInnerSpace.ReplaceAllString(strings.TrimSpace(c.ItemName), " ")
		if name == "" || name == model.PlaceholderItemName {
			continue
		}
		key := strings.ToUpper(name)
		if _, reserved := reservedNames[key]; reserved {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		c.ItemName = name
		c.OpeningQty = sanitizeNumber(c.OpeningQty)
		c.PurchaseQty = sanitizeNumber(c.PurchaseQty)
		c.PurchaseFree = sanitizeNumber(c.PurchaseFree)
		c.SalesQty = sanitizeNumber(c.SalesQty)
		c.SalesValue = sanitizeNumber(c.SalesValue)
		c.ClosingQty = sanitizeNumber(c.ClosingQty)
		c.ClosingValue = sanitizeNumber(c.ClosingValue)
		out = append(out, c)

		if len(out) >= maxRecords {
			break
		}
	}
	return out
}
