package report

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"receipts/internal/core"
)

const (
	receiptsSheet = "Receipts"
	summarySheet  = "Summary"
)

// ToXLSX builds a workbook with a Receipts sheet holding the CSV columns and a
// Summary sheet holding totals and the category and month breakdowns.
func ToXLSX(receipts []core.Receipt, summary core.Summary) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	// Rename the default sheet instead of leaving an empty "Sheet1" behind.
	if err := f.SetSheetName(f.GetSheetName(0), receiptsSheet); err != nil {
		return nil, fmt.Errorf("xlsx rename sheet: %w", err)
	}
	if _, err := f.NewSheet(summarySheet); err != nil {
		return nil, fmt.Errorf("xlsx new sheet: %w", err)
	}
	idx, _ := f.GetSheetIndex(receiptsSheet)
	f.SetActiveSheet(idx)

	w := sheetWriter{f: f, sheet: receiptsSheet}
	headers := make([]any, len(CSVHeader))
	for i, h := range CSVHeader {
		headers[i] = h
	}
	w.row(1, headers...)
	for i, r := range receipts {
		w.row(i+2, RowOf(r).Values()...)
	}

	_ = f.SetColWidth(receiptsSheet, "A", "A", 14)
	_ = f.SetColWidth(receiptsSheet, "B", "B", 28)
	_ = f.SetColWidth(receiptsSheet, "C", "D", 12)
	_ = f.SetColWidth(receiptsSheet, "E", "F", 20)

	s := sheetWriter{f: f, sheet: summarySheet}
	line := 1
	s.row(line, "Period", summary.Period.Start, summary.Period.End)
	line++
	s.row(line, "Receipts", summary.Totals.Receipts)
	line++
	s.row(line, "Total", summary.Totals.Amount)
	line++
	s.row(line, "Average", summary.Totals.Average)
	line += 2
	s.row(line, "Category", "Amount")
	for _, c := range summary.ByCategory {
		line++
		s.row(line, c.Category, c.Amount)
	}
	line += 2
	s.row(line, "Month", "Amount")
	for _, m := range summary.ByMonth {
		line++
		s.row(line, m.Month, m.Amount)
	}
	_ = f.SetColWidth(summarySheet, "A", "A", 22)

	if w.err != nil {
		return nil, w.err
	}
	if s.err != nil {
		return nil, s.err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

type sheetWriter struct {
	f     *excelize.File
	sheet string
	err   error
}

func (w *sheetWriter) row(n int, values ...any) {
	if w.err != nil {
		return
	}
	for col, v := range values {
		cell, err := excelize.CoordinatesToCellName(col+1, n)
		if err != nil {
			w.err = fmt.Errorf("xlsx cell: %w", err)
			return
		}
		if err := w.f.SetCellValue(w.sheet, cell, v); err != nil {
			w.err = fmt.Errorf("xlsx set %s!%s: %w", w.sheet, cell, err)
			return
		}
	}
}
