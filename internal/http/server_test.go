package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"receipts/internal/core"
	"receipts/internal/insights"
	"receipts/internal/metrics"
	"receipts/internal/services"
	sheetsmem "receipts/internal/sheets/memory"
	"receipts/internal/store"
	"receipts/internal/store/memory"
)

type testEnv struct {
	srv   *Server
	store *memory.Store
	sheet *sheetsmem.Store
}

func newTestEnv(t *testing.T, withSheets bool) *testEnv {
	t.Helper()
	st := memory.New()
	env := &testEnv{store: st}

	var exports *services.ExportService
	if withSheets {
		env.sheet = sheetsmem.New(nil)
		exports = services.NewExportService(st, env.sheet, 0)
	} else {
		exports = services.NewExportService(st, nil, 0)
	}

	env.srv = NewServer(Config{Addr: ":0", RateLimitPerMinute: 1000}, Deps{
		Ingestion:  services.NewIngestionService(st, nil, nil, services.IngestionConfig{}),
		Exports:    exports,
		Insights:   insights.NewEngine(insights.Options{}),
		Advisor:    insights.NewBudgetAdvisor(insights.Options{}),
		Categories: services.NewCategoryService(st, nil),
		Receipts:   services.NewReceiptService(st),
		Metrics:    metrics.New(),
	})
	t.Cleanup(func() { env.srv.rateLimiter.Stop() })
	return env
}

func (e *testEnv) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	e.srv.Handler.ServeHTTP(rr, req)
	return rr
}

func (e *testEnv) seed(t *testing.T, recs ...core.Record) []string {
	t.Helper()
	ids := make([]string, 0, len(recs))
	for _, r := range recs {
		id, err := e.store.Append(context.Background(), core.CollectionReceipts, r)
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, id)
	}
	return ids
}

func TestHealthAndReady(t *testing.T) {
	env := newTestEnv(t, false)

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := env.do(http.MethodGet, path, "")
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
		if rr.Header().Get("X-Request-ID") == "" {
			t.Errorf("%s missing X-Request-ID", path)
		}
		if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
			t.Errorf("%s missing security headers", path)
		}
	}
}

type brokenReceipts struct{ ReceiptManager }

func (brokenReceipts) Ping(context.Context) error { return errors.New("database is locked") }

func TestReadyReportsStoreFailure(t *testing.T) {
	env := newTestEnv(t, false)
	env.srv.deps.Receipts = brokenReceipts{}

	rr := env.do(http.MethodGet, "/readyz", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d, want 503", rr.Code)
	}
	if body := decodeBody(t, rr); body["status"] != "not_ready" {
		t.Errorf("body=%v", body)
	}
}

func TestIngestEndpoint(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		check      func(t *testing.T, body map[string]any)
	}{
		{
			name:       "valid receipt",
			body:       `{"vendor":"Corner Shop","date":"2024-05-01","total":12.5,"category":"Groceries"}`,
			wantStatus: http.StatusOK,
			check: func(t *testing.T, body map[string]any) {
				if body["success"] != true || body["message"] != "Receipt saved successfully" {
					t.Errorf("body=%v", body)
				}
				if id, _ := body["id"].(string); id == "" {
					t.Error("missing id")
				}
				data, _ := body["data"].(map[string]any)
				if data["vendor"] != "Corner Shop" || data["total"] != 12.5 || data["date"] != "2024-05-01" {
					t.Errorf("data=%v", data)
				}
			},
		},
		{
			name:       "missing fields",
			body:       `{"vendor":"Corner Shop","total":0}`,
			wantStatus: http.StatusBadRequest,
			check: func(t *testing.T, body map[string]any) {
				if body["error"] != "Missing required fields" {
					t.Errorf("error=%v", body["error"])
				}
				missing, _ := body["missing_fields"].([]any)
				if len(missing) != 3 {
					t.Errorf("missing_fields=%v", missing)
				}
				received, _ := body["received_fields"].([]any)
				if len(received) != 2 {
					t.Errorf("received_fields=%v", received)
				}
			},
		},
		{
			name:       "upstream error",
			body:       `{"error":"OCR failed","success":false}`,
			wantStatus: http.StatusBadRequest,
			check: func(t *testing.T, body map[string]any) {
				if body["error"] != "Invalid receipt data received from workflow" {
					t.Errorf("error=%v", body["error"])
				}
				if _, ok := body["details"]; !ok {
					t.Error("missing details")
				}
			},
		},
		{
			name:       "empty body",
			body:       ``,
			wantStatus: http.StatusBadRequest,
			check: func(t *testing.T, body map[string]any) {
				if body["error"] != "Missing required fields" {
					t.Errorf("error=%v", body["error"])
				}
				missing, _ := body["missing_fields"].([]any)
				want := []any{"vendor", "date", "total", "category"}
				if !reflect.DeepEqual(missing, want) {
					t.Errorf("missing_fields=%v, want %v", missing, want)
				}
				if received, ok := body["received_fields"].([]any); !ok || len(received) != 0 {
					t.Errorf("received_fields=%v, want []", body["received_fields"])
				}
			},
		},
		{
			name:       "array body",
			body:       `[{"vendor":"x"}]`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "malformed",
			body:       `{"vendor":`,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, false)
			rr := env.do(http.MethodPost, "/api/receipts/ingest", tt.body)
			if rr.Code != tt.wantStatus {
				t.Fatalf("status=%d, want %d (%s)", rr.Code, tt.wantStatus, rr.Body.String())
			}
			body := decodeBody(t, rr)
			if tt.wantStatus != http.StatusOK && body["success"] != false {
				t.Errorf("success=%v", body["success"])
			}
			if tt.check != nil {
				tt.check(t, body)
			}
		})
	}
}

func TestIngestStoresServerFields(t *testing.T) {
	env := newTestEnv(t, false)
	rr := env.do(http.MethodPost, "/api/receipts/ingest",
		`{"vendor":"Acme","date":"2024-05-01","total":3,"category":"Other","id":"client-id"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	id := decodeBody(t, rr)["id"].(string)

	recs, _ := env.store.GetByField(context.Background(), core.CollectionReceipts, core.FieldID, id)
	if len(recs) != 1 {
		t.Fatalf("stored %d records under %s", len(recs), id)
	}
	got := recs[0]
	if got.String("status") != "processed" || got.String("source") != "n8n-workflow" || got.String("processed_at") == "" {
		t.Errorf("server fields not stamped: %v", got)
	}
}

type failingAppendStore struct{ store.Store }

func (failingAppendStore) Append(context.Context, string, core.Record) (string, error) {
	return "", errors.New("disk full")
}

func TestIngestStoreFailureIs500(t *testing.T) {
	env := newTestEnv(t, false)
	env.srv.deps.Ingestion = services.NewIngestionService(failingAppendStore{env.store}, nil, nil, services.IngestionConfig{})

	rr := env.do(http.MethodPost, "/api/receipts/ingest",
		`{"vendor":"Acme","date":"2024-05-01","total":3,"category":"Other"}`)
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d, want 500", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["success"] != false || body["timestamp"] == nil {
		t.Errorf("body=%v", body)
	}
}

func TestReceiptMaintenance(t *testing.T) {
	env := newTestEnv(t, false)
	ids := env.seed(t,
		core.Record{"vendor": "Acme", "category": "Groceries", "total": 10.0, "processed_at": "2024-03-01T00:00:00Z"},
		core.Record{"vendor": "Shell", "category": "Gas", "total": 40.0, "processed_at": "2024-03-02T00:00:00Z"},
	)

	t.Run("list", func(t *testing.T) {
		rr := env.do(http.MethodGet, "/api/receipts?vendor=Shell", "")
		if rr.Code != http.StatusOK {
			t.Fatalf("status=%d", rr.Code)
		}
		body := decodeBody(t, rr)
		if body["count"] != float64(1) {
			t.Errorf("count=%v", body["count"])
		}
	})

	t.Run("list bad limit", func(t *testing.T) {
		if rr := env.do(http.MethodGet, "/api/receipts?limit=abc", ""); rr.Code != http.StatusBadRequest {
			t.Errorf("status=%d, want 400", rr.Code)
		}
	})

	t.Run("patch", func(t *testing.T) {
		rr := env.do(http.MethodPatch, "/api/receipts/"+ids[0], `{"category":"Restaurants"}`)
		if rr.Code != http.StatusOK {
			t.Fatalf("status=%d (%s)", rr.Code, rr.Body.String())
		}
		rec, _ := decodeBody(t, rr)["receipt"].(map[string]any)
		if rec["category"] != "Restaurants" {
			t.Errorf("receipt=%v", rec)
		}
	})

	t.Run("patch empty", func(t *testing.T) {
		if rr := env.do(http.MethodPatch, "/api/receipts/"+ids[0], `{}`); rr.Code != http.StatusBadRequest {
			t.Errorf("status=%d, want 400", rr.Code)
		}
	})

	t.Run("patch unknown", func(t *testing.T) {
		if rr := env.do(http.MethodPatch, "/api/receipts/nope", `{"total":1}`); rr.Code != http.StatusNotFound {
			t.Errorf("status=%d, want 404", rr.Code)
		}
	})

	t.Run("delete", func(t *testing.T) {
		if rr := env.do(http.MethodDelete, "/api/receipts/"+ids[1], ""); rr.Code != http.StatusOK {
			t.Fatalf("status=%d", rr.Code)
		}
		if rr := env.do(http.MethodDelete, "/api/receipts/"+ids[1], ""); rr.Code != http.StatusNotFound {
			t.Errorf("second delete status=%d, want 404", rr.Code)
		}
	})

	t.Run("stats", func(t *testing.T) {
		env.do(http.MethodGet, "/api/categories", "")
		body := decodeBody(t, env.do(http.MethodGet, "/api/stats", ""))
		if body["receipts"] != float64(1) || body["categories"] != float64(len(core.DefaultCategories)) {
			t.Errorf("stats=%v", body)
		}
	})
}

func TestCategoriesSeedsDefaults(t *testing.T) {
	env := newTestEnv(t, false)
	body := decodeBody(t, env.do(http.MethodGet, "/api/categories", ""))
	cats, _ := body["categories"].([]any)
	if len(cats) != len(core.DefaultCategories) {
		t.Errorf("categories=%v", cats)
	}
}

func TestExportEndpoints(t *testing.T) {
	env := newTestEnv(t, true)

	rr := env.do(http.MethodPost, "/api/export/csv", `{"limit":10}`)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("empty csv status=%d, want 404", rr.Code)
	}
	if body := decodeBody(t, rr); body["message"] != "No receipts found to export" {
		t.Errorf("empty csv body=%v", body)
	}

	env.seed(t,
		core.Record{"vendor": "Acme", "date": "2024-03-01", "total": 10.0, "category": "Groceries", "processed_at": "2024-03-01T00:00:00Z"},
		core.Record{"vendor": "Shell", "date": "2024-03-02", "total": 40.0, "category": "Gas", "processed_at": "2024-03-02T00:00:00Z"},
	)

	t.Run("csv", func(t *testing.T) {
		rr := env.do(http.MethodPost, "/api/export/csv", `{"period":"all"}`)
		if rr.Code != http.StatusOK {
			t.Fatalf("status=%d (%s)", rr.Code, rr.Body.String())
		}
		data, _ := decodeBody(t, rr)["data"].(map[string]any)
		if data["receipts_count"] != float64(2) || data["period"] != "all" {
			t.Errorf("data=%v", data)
		}
		if csv, _ := data["csv"].(string); !strings.HasPrefix(csv, "Date,Vendor") {
			t.Errorf("csv=%q", csv)
		}
	})

	t.Run("csv bad period", func(t *testing.T) {
		if rr := env.do(http.MethodPost, "/api/export/csv", `{"period":"decade"}`); rr.Code != http.StatusBadRequest {
			t.Errorf("status=%d, want 400", rr.Code)
		}
	})

	t.Run("summary", func(t *testing.T) {
		rr := env.do(http.MethodPost, "/api/export/summary", "")
		data, _ := decodeBody(t, rr)["data"].(map[string]any)
		if rr.Code != http.StatusOK || data["receipts_count"] != float64(2) {
			t.Errorf("status=%d data=%v", rr.Code, data)
		}
	})

	t.Run("xlsx", func(t *testing.T) {
		rr := env.do(http.MethodPost, "/api/export/xlsx", `{}`)
		if rr.Code != http.StatusOK {
			t.Fatalf("status=%d", rr.Code)
		}
		if ct := rr.Header().Get("Content-Type"); ct != xlsxContentType {
			t.Errorf("Content-Type=%q", ct)
		}
		if !strings.HasPrefix(rr.Header().Get("Content-Disposition"), "attachment;") {
			t.Errorf("Content-Disposition=%q", rr.Header().Get("Content-Disposition"))
		}
		if !strings.HasPrefix(rr.Body.String(), "PK") {
			t.Error("body is not a zip container")
		}
	})

	t.Run("sheets", func(t *testing.T) {
		rr := env.do(http.MethodPost, "/api/export/sheets", `{}`)
		if rr.Code != http.StatusOK {
			t.Fatalf("status=%d (%s)", rr.Code, rr.Body.String())
		}
		if env.sheet.Exports() != 1 {
			t.Errorf("exports=%d", env.sheet.Exports())
		}
	})
}

func TestExportSheetsNotConfigured(t *testing.T) {
	env := newTestEnv(t, false)
	env.seed(t, core.Record{"vendor": "Acme", "date": "2024-03-01", "total": 10.0, "category": "Gas"})
	if rr := env.do(http.MethodPost, "/api/export/sheets", `{}`); rr.Code != http.StatusServiceUnavailable {
		t.Errorf("status=%d, want 503", rr.Code)
	}
}

func TestInsightEndpoints(t *testing.T) {
	receipts := `[{"vendor":"Acme","date":"2024-03-01","total":10,"category":"Groceries"},` +
		`{"vendor":"Shell","date":"2024-03-02","total":40,"category":"Gas"}]`

	tests := []struct {
		name       string
		path       string
		body       string
		wantStatus int
		wantField  string
	}{
		{"insights", "/api/insights", `{"receipts":` + receipts + `,"maxInsights":3}`, http.StatusOK, "insights"},
		{"insights empty", "/api/insights", `{"receipts":[]}`, http.StatusBadRequest, "error"},
		{"insights no body", "/api/insights", "", http.StatusBadRequest, "error"},
		{"advice", "/api/budget/advice", `{"receipts":` + receipts + `}`, http.StatusOK, "advice"},
		{"advice empty", "/api/budget/advice", `{}`, http.StatusBadRequest, "error"},
		{"suggestions", "/api/budget/suggestions", `{"categories":[{"category":"Gas","lastThreeMonthTotal":300}]}`, http.StatusOK, "suggestions"},
		{"suggestions empty", "/api/budget/suggestions", `{"categories":[]}`, http.StatusBadRequest, "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, false)
			rr := env.do(http.MethodPost, tt.path, tt.body)
			if rr.Code != tt.wantStatus {
				t.Fatalf("status=%d, want %d (%s)", rr.Code, tt.wantStatus, rr.Body.String())
			}
			body := decodeBody(t, rr)
			if _, ok := body[tt.wantField]; !ok {
				t.Errorf("missing %q in %v", tt.wantField, body)
			}
			if _, ok := body["fallback"]; ok {
				t.Error("fallback must be omitted without a model configured")
			}
		})
	}
}

func TestRateLimitAppliesToPostOnly(t *testing.T) {
	env := newTestEnv(t, false)
	deps := env.srv.deps
	deps.Metrics = nil
	env.srv.rateLimiter.Stop()
	env.srv = NewServer(Config{RateLimitPerMinute: 1}, deps)

	if rr := env.do(http.MethodPost, "/api/export/summary", ""); rr.Code != http.StatusOK {
		t.Fatalf("first POST status=%d", rr.Code)
	}
	rr := env.do(http.MethodPost, "/api/export/summary", "")
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("second POST status=%d, want 429", rr.Code)
	}
	if rr.Header().Get("Retry-After") != "60" {
		t.Errorf("Retry-After=%q", rr.Header().Get("Retry-After"))
	}
	for i := 0; i < 3; i++ {
		if rr := env.do(http.MethodGet, "/healthz", ""); rr.Code != http.StatusOK {
			t.Fatalf("GET status=%d", rr.Code)
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, false)
	env.do(http.MethodGet, "/healthz", "")

	rr := env.do(http.MethodGet, "/metrics", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	for _, want := range []string{`http_request_duration_seconds_count{method="GET",route="GET /healthz",status="200"}`, "rate_limit_active_clients"} {
		if !strings.Contains(rr.Body.String(), want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
