// Package parser turns loosely structured OCR text from pharmaceutical
// stock reports into validated, deduplicated inventory records. It is a set
// of ordered line heuristics, strictest first, with no state between calls:
// identical input always yields identical output.
package parser

import (
	"regexp"
	"strings"

	"github.com/nxreporting/stockex/internal/model"
)

const (
	minLineLength = 5
	// global safety valve, after dedup
	maxRecords = 50
)

// header / footer fragments that disqualify a line outright
var headerFragments = []string{
	"ITEM", "NAME", "MEDICINE", "DRUG", "S.NO", "SR.NO",
	"OPENING", "PURCHASE", "SALES", "CLOSING", "QTY", "QUANTITY",
}

var rePageFooter = regexp.MustCompile(`(?i)^\s*(page\s*\d+|-{3,}|={3,}|\*{3,})`)

// Engine runs the strategy set over raw text. The zero value is not usable;
// call NewEngine.
type Engine struct {
	strategies []strategy
}

func NewEngine() *Engine {
	return &Engine{strategies: defaultStrategies()}
}

// Parse converts raw text into validated records. It never fails: internal
// misses degrade to an empty result.
func (e *Engine) Parse(text string) []model.StockItemRecord {
	return Validate(e.Candidates(text))
}

// Candidates runs every strategy over the full text and concatenates the
// results in strategy order. A line claimed by a stricter strategy is not
// reprocessed by a looser one, so overlapping heuristics cannot emit two
// differently parsed records for the same line.
func (e *Engine) Candidates(text string) []model.StockItemRecord {
	lines := strings.Split(text, "\n")
	claimed := make(map[int]bool, len(lines))

	var out []model.StockItemRecord
	for _, s := range e.strategies {
		emitted := 0
		for i, line := range lines {
			if claimed[i] || emitted >= s.limit {
				continue
			}
			line = strings.TrimSpace(line)
			if skipLine(line) {
				continue
			}
			rec, ok := s.match(line)
			if !ok {
				continue
			}
			claimed[i] = true
			emitted++
			out = append(out, rec)
		}
	}
	return out
}

// skipLine drops blanks, short fragments, column headers and page footers
// before any strategy sees the line.
func skipLine(line string) bool {
	if len(line) < minLineLength {
		return true
	}
	if rePageFooter.MatchString(line) {
		return true
	}
	upper := strings.ToUpper(line)
	for _, h := range headerFragments {
		if strings.Contains(upper, h) {
			return true
		}
	}
	return false
}
