package parser

import "testing"

func TestParseNumber(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		nil_ bool
	}{
		{"₹1,200.50", 1200.50, false},
		{"1,200.50", 1200.50, false},
		{"$99", 99, false},
		{"Rs. 4881.60", 4881.60, false},
		{"Rs4881.60", 4881.60, false},
		{"  42 ", 42, false},
		{"-3.5", -3.5, false},
		{"0", 0, false},
		{"", 0, true},
		{"abc", 0, true},
		{"12abc", 0, true},
		{"NaN", 0, true},
		{"Inf", 0, true},
		{"₹", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := ParseNumber(tt.in)
			if tt.nil_ {
				if got != nil {
					t.Fatalf("ParseNumber(%q) = %v, want nil", tt.in, *got)
				}
				return
			}
			if got == nil {
				t.Fatalf("ParseNumber(%q) = nil, want %v", tt.in, tt.want)
			}
			if *got != tt.want {
				t.Errorf("ParseNumber(%q) = %v, want %v", tt.in, *got, tt.want)
			}
		})
	}
}

func TestIsNumericToken(t *testing.T) {
	for _, tok := range []string{"40", "4881.60", "₹1,200.50", "-7"} {
		if !isNumericToken(tok) {
			t.Errorf("isNumericToken(%q) = false, want true", tok)
		}
	}
	for _, tok := range []string{"500MG", "TAB", "", "4881.60MG", "1.2.3"} {
		if isNumericToken(tok) {
			t.Errorf("isNumericToken(%q) = true, want false", tok)
		}
	}
}
