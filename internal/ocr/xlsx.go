package ocr

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/nxreporting/stockex/constants"
	"github.com/nxreporting/stockex/internal/model"
	"github.com/nxreporting/stockex/internal/parser"
)

// extractSpreadsheet reads an exported workbook directly: rows become
// structured records where the leading cell looks like a product name, and
// the whole sheet is also flattened to tab-joined text so the strategy set
// can take a second pass if the rows were merged oddly.
func (e *Extractor) extractSpreadsheet(data []byte) (Result, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return Result{SourceType: constants.SPREADSHEET}, fmt.Errorf("open workbook: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			e.logger.Warn("ocr.xlsx.close_error", "error", cerr)
		}
	}()

	var b strings.Builder
	var records []model.StockItemRecord
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			e.logger.Warn("ocr.xlsx.read_sheet_error", "sheet", sheet, "error", err)
			continue
		}
		for _, row := range rows {
			if len(row) == 0 {
				continue
			}
			b.WriteString(strings.Join(row, "\t"))
			b.WriteString("\n")
			if rec, ok := rowToRecord(row); ok {
				records = append(records, rec)
			}
		}
	}

	text := b.String()
	return Result{
		Text:       text,
		Records:    records,
		Pages:      len(f.GetSheetList()),
		SourceType: constants.SPREADSHEET,
		Method:     "xlsx-rows",
		Confidence: heuristicConfidence(text),
	}, nil
}

// rowToRecord maps a sheet row onto the canonical columns: name first, then
// opening, purchase, free, sales qty, sales value, closing qty, closing
// value. Rows whose first cell is numeric or header-like are rejected.
func rowToRecord(row []string) (model.StockItemRecord, bool) {
	name := strings.TrimSpace(row[0])
	if name == "" || parser.ParseNumber(name) != nil {
		return model.StockItemRecord{}, false
	}
	numbers := make([]*float64, 0, len(row)-1)
	for _, cell := range row[1:] {
		numbers = append(numbers, parser.ParseNumber(cell))
	}
	// a product row carries at least two parseable figures
	parseable := 0
	for _, n := range numbers {
		if n != nil {
			parseable++
		}
	}
	if parseable < 2 {
		return model.StockItemRecord{}, false
	}

	rec := model.StockItemRecord{ItemName: name}
	fields := []**float64{
		&rec.OpeningQty, &rec.PurchaseQty, &rec.PurchaseFree,
		&rec.SalesQty, &rec.SalesValue, &rec.ClosingQty, &rec.ClosingValue,
	}
	for i, field := range fields {
		if i >= len(numbers) {
			break
		}
		*field = numbers[i]
	}
	return rec, true
}
