package google

import (
	"context"
	"reflect"
	"strings"
	"testing"
)

func TestNewFromEnv_MissingSpreadsheetID(t *testing.T) {
	t.Setenv("GOOGLE_SPREADSHEET_ID", "")

	_, err := NewFromEnv(context.Background())
	if err == nil {
		t.Fatal("expected error for missing GOOGLE_SPREADSHEET_ID")
	}
	if err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNewFromEnv_MissingCredentials(t *testing.T) {
	t.Setenv("GOOGLE_SPREADSHEET_ID", "test-id")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_JSON", "")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_FILE", "")
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")

	_, err := NewFromEnv(context.Background())
	if err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
		t.Fatalf("expected credentials error, got: %v", err)
	}
}

func TestServiceAccountCredentials_FileNotFound(t *testing.T) {
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_JSON", "")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_FILE", "/nonexistent/sa.json")

	_, err := serviceAccountCredentials()
	if err == nil || !strings.Contains(err.Error(), "read service account file") {
		t.Fatalf("expected read error, got: %v", err)
	}
}

func TestServiceAccountCredentials_InlineWins(t *testing.T) {
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_JSON", `{"type":"service_account"}`)
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_FILE", "/nonexistent/sa.json")

	b, err := serviceAccountCredentials()
	if err != nil || string(b) != `{"type":"service_account"}` {
		t.Fatalf("got %q, %v", b, err)
	}
}

func TestClient_NotInitialized(t *testing.T) {
	c := &Client{spreadsheetID: "test", receiptsSheet: "Receipts"}

	if _, err := c.ExportRows(context.Background(), []string{"A"}, nil); err == nil {
		t.Error("ExportRows should fail without a service")
	}
	if _, err := c.ListCategories(context.Background()); err == nil {
		t.Error("ListCategories should fail without a service")
	}
}

func TestParseColumn(t *testing.T) {
	values := [][]any{
		{"Food"},
		{" Transport "},
		{""},
		{},
		{"#Comment"},
		{"Food"},
		{"Shopping", "ignored"},
	}
	got := parseColumn(values)
	want := []string{"Food", "Transport", "Shopping"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("parseColumn() = %v, want %v", got, want)
	}
}

func TestColumnName(t *testing.T) {
	tests := []struct {
		n    int
		want string
	}{
		{1, "A"},
		{9, "I"},
		{26, "Z"},
		{27, "AA"},
		{52, "AZ"},
		{703, "AAA"},
	}
	for _, tt := range tests {
		if got := columnName(tt.n); got != tt.want {
			t.Errorf("columnName(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

func TestExportRange(t *testing.T) {
	if got := exportRange("Receipts", 9, 4); got != "Receipts!A1:I4" {
		t.Errorf("exportRange = %q", got)
	}
	if got := exportRange("Receipts", 0, 1); got != "Receipts!A1:A1" {
		t.Errorf("exportRange with no columns = %q", got)
	}
}

func TestToValues(t *testing.T) {
	got := toValues([]string{"Vendor", "Total"}, [][]string{{"A", "1.00"}})
	want := [][]any{{"Vendor", "Total"}, {"A", "1.00"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("toValues() = %v, want %v", got, want)
	}
}
