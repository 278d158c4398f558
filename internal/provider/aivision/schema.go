package aivision

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/nxreporting/stockex/internal/common"
	"github.com/nxreporting/stockex/internal/model"
)

// recordArraySchema pins down the shape the model is asked to produce:
// an array of stock rows where every quantity is a number or null. The
// model occasionally emits prose or quoted numbers; both fail here and
// surface as parse errors instead of corrupt records.
const recordArraySchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "array",
	"items": {
		"type": "object",
		"required": ["itemName"],
		"properties": {
			"itemName": {"type": "string", "minLength": 1},
			"openingQty": {"type": ["number", "null"]},
			"purchaseQty": {"type": ["number", "null"]},
			"purchaseFree": {"type": ["number", "null"]},
			"salesQty": {"type": ["number", "null"]},
			"salesValue": {"type": ["number", "null"]},
			"closingQty": {"type": ["number", "null"]},
			"closingValue": {"type": ["number", "null"]}
		}
	}
}`

var recordSchema = jsonschema.MustCompileString("records.json", recordArraySchema)

// decodeRecords pulls the JSON array out of the model reply, validates it
// and unmarshals it. Content around the array (markdown fences, apologies)
// is tolerated; a missing or malformed array is not.
func decodeRecords(content string) ([]model.StockItemRecord, error) {
	raw, ok := locateJSONArray(content)
	if !ok {
		return nil, common.NewError(common.KindParse, providerName, "no JSON array in model reply", nil)
	}
	var generic any
	if err := json.Unmarshal([]byte(raw), &generic); err != nil {
		return nil, common.NewError(common.KindParse, providerName, "model reply is not valid JSON", err)
	}
	if err := recordSchema.Validate(generic); err != nil {
		return nil, common.NewError(common.KindParse, providerName, fmt.Sprintf("model reply failed schema validation: %v", err), nil)
	}
	var records []model.StockItemRecord
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		return nil, common.NewError(common.KindParse, providerName, "decode records", err)
	}
	return records, nil
}

// locateJSONArray returns the first balanced top-level JSON array in s.
// Bracket depth is tracked outside string literals so a "]" inside an item
// name does not end the scan early.
func locateJSONArray(s string) (string, bool) {
	start := strings.IndexByte(s, '[')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
