package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const (
	quotesSheet  = "Quotes"
	defaultSheet = "Sheet1"
	columnWidth  = 14
)

// WriteXLSX writes rows as a single-sheet workbook. Amounts are stored as numbers.
func WriteXLSX(w io.Writer, rows []Row) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(defaultSheet, quotesSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	headerRow := make([]any, len(header))
	for i, h := range header {
		headerRow[i] = h
	}
	if err := f.SetSheetRow(quotesSheet, "A1", &headerRow); err != nil {
		return fmt.Errorf("write xlsx header: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}
	lastCol, err := excelize.ColumnNumberToName(len(header))
	if err != nil {
		return fmt.Errorf("resolve last column: %w", err)
	}
	if err := f.SetCellStyle(quotesSheet, "A1", lastCol+"1", bold); err != nil {
		return fmt.Errorf("style xlsx header: %w", err)
	}
	if err := f.SetColWidth(quotesSheet, "A", lastCol, columnWidth); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}

	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("resolve row %d: %w", i+2, err)
		}
		values := r.cells()
		if err := f.SetSheetRow(quotesSheet, cell, &values); err != nil {
			return fmt.Errorf("write xlsx row %d: %w", i+2, err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}

func (r Row) cells() []any {
	e := r.Estimate
	return []any{
		r.QuoteID,
		r.CreatedAt,
		r.Title,
		e.JobType,
		e.Region,
		e.Quantity,
		string(e.UnitKey),
		e.UnitPrice,
		e.RateSource,
		e.Labor,
		e.Materials,
		modifiers(e.Modifiers),
		e.Subtotal,
		e.Tax,
		e.Total,
		e.Currency,
		e.EstDaysLow,
		e.EstDaysHigh,
	}
}
