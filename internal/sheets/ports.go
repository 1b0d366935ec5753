package sheets

import "context"

// Ports for outbound spreadsheet adapters.
type (
	// ReceiptExporter replaces the contents of the export tab with header and rows.
	ReceiptExporter interface {
		ExportRows(ctx context.Context, header []string, rows [][]string) (rangeRef string, err error)
	}

	// CategoryReader lists category names maintained in a spreadsheet.
	CategoryReader interface {
		ListCategories(ctx context.Context) ([]string, error)
	}
)
