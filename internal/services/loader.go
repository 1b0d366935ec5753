package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"receipts/internal/core"
)

// Ingester is the part of IngestionService the loader needs.
type Ingester interface {
	Ingest(ctx context.Context, rec core.Record) (IngestResult, error)
}

// LoaderConfig tunes bulk loading.
type LoaderConfig struct {
	// ChunkSize is the number of receipts written concurrently (default: 25)
	ChunkSize int
	// ChunkDelay is the pause between chunks (default: 200ms)
	ChunkDelay time.Duration
}

// LoadReport counts per-receipt outcomes of a bulk load.
type LoadReport struct {
	Written  int `json:"written"`
	Rejected int `json:"rejected"`
	Failed   int `json:"failed"`
}

// Loader writes many receipts through an Ingester in rate-limited chunks.
// Ordering inside a chunk is not preserved.
type Loader struct {
	ingester Ingester
	cfg      LoaderConfig
}

func NewLoader(ing Ingester, cfg LoaderConfig) *Loader {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 25
	}
	if cfg.ChunkDelay < 0 {
		cfg.ChunkDelay = 0
	}
	return &Loader{ingester: ing, cfg: cfg}
}

// Load ingests recs. Individual failures are counted, not returned; the
// returned error is non-nil only when ctx ends before every chunk ran.
func (l *Loader) Load(ctx context.Context, recs []core.Record) (LoadReport, error) {
	var written, rejected, failed atomic.Int64

	for start := 0; start < len(recs); start += l.cfg.ChunkSize {
		if start > 0 && l.cfg.ChunkDelay > 0 {
			select {
			case <-ctx.Done():
				return tally(&written, &rejected, &failed), ctx.Err()
			case <-time.After(l.cfg.ChunkDelay):
			}
		}

		end := min(start+l.cfg.ChunkSize, len(recs))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(l.cfg.ChunkSize)
		for _, rec := range recs[start:end] {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				_, err := l.ingester.Ingest(gctx, rec)
				switch {
				case err == nil:
					written.Add(1)
				case core.IsClientError(err):
					rejected.Add(1)
				default:
					failed.Add(1)
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return tally(&written, &rejected, &failed), err
		}

		slog.DebugContext(ctx, "Chunk loaded", "from", start, "to", end)
	}

	r := tally(&written, &rejected, &failed)
	slog.InfoContext(ctx, "Bulk load finished", "written", r.Written, "rejected", r.Rejected, "failed", r.Failed)
	return r, nil
}

func tally(written, rejected, failed *atomic.Int64) LoadReport {
	return LoadReport{
		Written:  int(written.Load()),
		Rejected: int(rejected.Load()),
		Failed:   int(failed.Load()),
	}
}

// ReadRecordsFile reads a JSON array of receipt objects.
func ReadRecordsFile(path string) ([]core.Record, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var recs []core.Record
	if err := json.Unmarshal(b, &recs); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return recs, nil
}

var sampleVendors = []struct {
	name     string
	category string
	low      float64
	high     float64
}{
	{"Whole Foods", "Groceries", 25, 180},
	{"Trader Joe's", "Groceries", 15, 90},
	{"Chipotle", "Restaurants", 9, 35},
	{"Olive Garden", "Restaurants", 30, 120},
	{"Shell", "Gas", 30, 75},
	{"Amazon", "Shopping", 10, 400},
	{"Target", "Shopping", 12, 150},
	{"PG&E", "Utilities", 60, 220},
	{"CVS Pharmacy", "Healthcare", 8, 80},
	{"AMC Theatres", "Entertainment", 14, 60},
	{"Netflix", "Entertainment", 15.49, 15.49},
}

var samplePayments = []string{"Credit Card", "Debit Card", "Cash", "Apple Pay"}

// SampleReceipts generates n plausible receipts dated within the 120 days
// before now. The same seed yields the same receipts.
func SampleReceipts(n int, now time.Time, seed uint64) []core.Record {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	out := make([]core.Record, 0, n)
	for i := 0; i < n; i++ {
		v := sampleVendors[rng.IntN(len(sampleVendors))]
		total := core.Round2(v.low + rng.Float64()*(v.high-v.low))
		tax := core.Round2(total * 0.0825)
		date := now.AddDate(0, 0, -rng.IntN(120)).Format("2006-01-02")
		out = append(out, core.Record{
			core.FieldVendor:        v.name,
			core.FieldDate:          date,
			core.FieldTotal:         total,
			core.FieldSubtotal:      core.Round2(total - tax),
			core.FieldTax:           tax,
			core.FieldCurrency:      "USD",
			core.FieldCategory:      v.category,
			core.FieldPaymentMethod: samplePayments[rng.IntN(len(samplePayments))],
		})
	}
	return out
}
