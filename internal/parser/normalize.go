package parser

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	reCurrency = regexp.MustCompile(`(?i)^(rs\.?|inr)\s*`)
	reNumber   = regexp.MustCompile(`\d+(?:\.\d+)?`)
	// a whole token that reads as a single number, currency noise included
	reNumericToken = regexp.MustCompile(`^[₹$€£]?-?[\d,]+(?:\.\d+)?$`)
)

// ParseNumber coerces a loosely formatted token into a number. Currency
// symbols, thousands separators and stray whitespace are stripped before
// parsing. Returns nil for empty, non-numeric and non-finite input.
func ParseNumber(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	s = reCurrency.ReplaceAllString(s, "")
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '₹', '$', '€', '£', ',', ' ', '\t':
			continue
		}
		b.WriteRune(r)
	}
	cleaned := b.String()
	if cleaned == "" {
		return nil
	}
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// sanitizeNumber drops non-finite values that slipped in from provider
// structured output.
func sanitizeNumber(v *float64) *float64 {
	if v == nil {
		return nil
	}
	if math.IsNaN(*v) || math.IsInf(*v, 0) {
		return nil
	}
	return v
}

func isNumericToken(tok string) bool {
	return reNumericToken.MatchString(tok)
}
