package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"receipts/internal/core"
	"receipts/internal/report"
	"receipts/internal/sheets"
	"receipts/internal/store"
)

// DefaultExportLimit caps how many recent receipts an export reads.
const DefaultExportLimit = 1000

// ErrSheetsNotConfigured is returned by ExportToSheets without an exporter.
var ErrSheetsNotConfigured = errors.New("google sheets export is not configured")

// ExportRequest selects the receipts to export.
type ExportRequest struct {
	Limit  int    `json:"limit"`
	Period string `json:"period"`
}

// CSVExport is a rendered CSV with its summary.
type CSVExport struct {
	CSV           string       `json:"csv"`
	Summary       core.Summary `json:"summary"`
	Filename      string       `json:"filename"`
	Period        string       `json:"period"`
	ReceiptsCount int          `json:"receipts_count"`
}

// SummaryExport is a summary of the most recent receipts.
type SummaryExport struct {
	Summary       core.Summary `json:"summary"`
	Filename      string       `json:"filename"`
	ReceiptsCount int          `json:"receipts_count"`
}

// XLSXExport is a rendered workbook.
type XLSXExport struct {
	Data          []byte
	Filename      string
	ReceiptsCount int
}

// SheetsExport describes a completed spreadsheet mirror.
type SheetsExport struct {
	Range         string `json:"range"`
	Period        string `json:"period"`
	ReceiptsCount int    `json:"receipts_count"`
}

// ExportService reads recent receipts from the store and renders them.
type ExportService struct {
	store        store.Store
	sheets       sheets.ReceiptExporter
	defaultLimit int
	now          func() time.Time
}

// NewExportService wires the service. exporter may be nil.
func NewExportService(st store.Store, exporter sheets.ReceiptExporter, defaultLimit int) *ExportService {
	if defaultLimit <= 0 {
		defaultLimit = DefaultExportLimit
	}
	return &ExportService{store: st, sheets: exporter, defaultLimit: defaultLimit, now: time.Now}
}

// HasSheets reports whether ExportToSheets is available.
func (s *ExportService) HasSheets() bool { return s.sheets != nil }

// Recent returns up to limit receipts, newest processed first, then filtered
// to period.
func (s *ExportService) Recent(ctx context.Context, limit int, period string) ([]core.Receipt, error) {
	if _, err := report.GetPeriodWindow(period); err != nil {
		return nil, err
	}
	receipts, err := s.latest(ctx, limit)
	if err != nil {
		return nil, err
	}
	return report.FilterByPeriod(receipts, period, s.now())
}

// exportable is Recent for the file exports: an empty source after the limit
// is core.ErrNothingToExport, while a period that matches nothing is not.
func (s *ExportService) exportable(ctx context.Context, req ExportRequest) ([]core.Receipt, error) {
	if _, err := report.GetPeriodWindow(req.Period); err != nil {
		return nil, err
	}
	receipts, err := s.latest(ctx, req.Limit)
	if err != nil {
		return nil, err
	}
	if len(receipts) == 0 {
		return nil, core.ErrNothingToExport
	}
	return report.FilterByPeriod(receipts, req.Period, s.now())
}

func (s *ExportService) latest(ctx context.Context, limit int) ([]core.Receipt, error) {
	if limit <= 0 {
		limit = s.defaultLimit
	}
	recs, err := s.store.GetAll(ctx, core.CollectionReceipts,
		store.OrderBy(core.FieldProcessedAt, true), store.Limit(limit))
	if err != nil {
		return nil, core.NewDependencyError("store", fmt.Errorf("list receipts: %w", err))
	}
	return core.ReceiptsFromRecords(recs), nil
}

// CSV renders the selected receipts. It returns core.ErrNothingToExport when
// the store holds no receipts.
func (s *ExportService) CSV(ctx context.Context, req ExportRequest) (CSVExport, error) {
	receipts, err := s.exportable(ctx, req)
	if err != nil {
		return CSVExport{}, err
	}
	out := CSVExport{
		CSV:           report.ToCSV(receipts),
		Summary:       report.Summarize(receipts),
		Filename:      report.Filename("", "csv", s.now()),
		Period:        periodName(req.Period),
		ReceiptsCount: len(receipts),
	}
	slog.InfoContext(ctx, "CSV export generated", "receipts", out.ReceiptsCount, "period", out.Period)
	return out, nil
}

// Summary summarizes the most recent receipts without a period filter.
func (s *ExportService) Summary(ctx context.Context, limit int) (SummaryExport, error) {
	receipts, err := s.Recent(ctx, limit, report.PeriodAll)
	if err != nil {
		return SummaryExport{}, err
	}
	return SummaryExport{
		Summary:       report.Summarize(receipts),
		Filename:      report.Filename("receipts-summary", "json", s.now()),
		ReceiptsCount: len(receipts),
	}, nil
}

// XLSX renders the selected receipts as a workbook.
func (s *ExportService) XLSX(ctx context.Context, req ExportRequest) (XLSXExport, error) {
	receipts, err := s.exportable(ctx, req)
	if err != nil {
		return XLSXExport{}, err
	}
	data, err := report.ToXLSX(receipts, report.Summarize(receipts))
	if err != nil {
		return XLSXExport{}, fmt.Errorf("render xlsx: %w", err)
	}
	return XLSXExport{
		Data:          data,
		Filename:      report.Filename("", "xlsx", s.now()),
		ReceiptsCount: len(receipts),
	}, nil
}

// ExportToSheets writes the CSV projection of the selected receipts to the
// configured spreadsheet tab, replacing its contents.
func (s *ExportService) ExportToSheets(ctx context.Context, req ExportRequest) (SheetsExport, error) {
	if s.sheets == nil {
		return SheetsExport{}, ErrSheetsNotConfigured
	}
	receipts, err := s.exportable(ctx, req)
	if err != nil {
		return SheetsExport{}, err
	}

	rows := make([][]string, 0, len(receipts))
	for _, r := range receipts {
		rows = append(rows, report.RowOf(r).Strings())
	}
	ref, err := s.sheets.ExportRows(ctx, report.CSVHeader, rows)
	if err != nil {
		return SheetsExport{}, core.NewDependencyError("sheets", err)
	}
	return SheetsExport{Range: ref, Period: periodName(req.Period), ReceiptsCount: len(receipts)}, nil
}

func periodName(p string) string {
	if p == "" {
		return report.PeriodAll
	}
	return p
}
