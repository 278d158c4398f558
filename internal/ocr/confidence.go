package ocr

import (
	"regexp"
	"strings"
)

var (
	reTabular = regexp.MustCompile(`\b\d+(?:\.\d+)?\s+\d+(?:\.\d+)?\s+\d+(?:\.\d+)?\b`)
	rePharma  = regexp.MustCompile(`(?i)\b(tab|tablet|cap|capsule|syrup|injection|cream|gel|mg|ml|gm)\b`)
	reAmount  = regexp.MustCompile(`\b\d{1,3}(,\d{3})*(\.\d{2})\b|\b\d+\.\d{2}\b`)
)

// naive heuristic confidence based on decoded text characteristics
func heuristicConfidence(txt string) float32 {
	// boost when the text shows stock-report artifacts: numeric columns,
	// dosage vocabulary, money-shaped amounts, enough content
	txtL := strings.ToLower(txt)
	score := float32(0.2) // base
	if reTabular.MatchString(txtL) {
		score += 0.2
	}
	if rePharma.MatchString(txtL) {
		score += 0.15
	}
	if reAmount.MatchString(txtL) {
		score += 0.15
	}
	if len(txt) > 120 {
		score += 0.1
	} // enough content
	if score > 1.0 {
		score = 1.0
	}
	return score
}
