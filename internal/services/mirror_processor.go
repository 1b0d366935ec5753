package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"receipts/internal/core"
	"receipts/internal/store"
)

// MirrorConfig holds configuration for the spreadsheet mirror.
type MirrorConfig struct {
	// PollInterval is how often the receipt count is checked (default: 5m)
	PollInterval time.Duration

	// Limit is the number of recent receipts mirrored (default: DefaultExportLimit)
	Limit int

	// Period restricts the mirrored receipts (default: all)
	Period string
}

// DefaultMirrorConfig returns sensible defaults
func DefaultMirrorConfig() MirrorConfig {
	return MirrorConfig{
		PollInterval: 5 * time.Minute,
		Limit:        DefaultExportLimit,
	}
}

// MirrorStats reports the processor's progress.
type MirrorStats struct {
	Runs       int64     `json:"runs"`
	Exports    int64     `json:"exports"`
	LastExport time.Time `json:"last_export"`
	LastError  string    `json:"last_error,omitempty"`
}

// MirrorProcessor re-exports recent receipts to Google Sheets whenever the
// receipt count changes.
type MirrorProcessor struct {
	store   store.Store
	exports *ExportService
	config  MirrorConfig

	mu        sync.Mutex
	running   bool
	stopCh    chan struct{}
	doneCh    chan struct{}
	lastCount int
	stats     MirrorStats
}

func NewMirrorProcessor(st store.Store, exports *ExportService, config MirrorConfig) *MirrorProcessor {
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultMirrorConfig().PollInterval
	}
	return &MirrorProcessor{
		store:     st,
		exports:   exports,
		config:    config,
		lastCount: -1,
	}
}

// Start begins the polling loop. Returns an error if already running.
func (p *MirrorProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("mirror processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.runLoop(ctx)

	slog.InfoContext(ctx, "Mirror processor started", "poll_interval", p.config.PollInterval)
	return nil
}

// Stop gracefully stops the processor and waits for completion.
func (p *MirrorProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	close(p.stopCh)

	select {
	case <-p.doneCh:
		slog.InfoContext(ctx, "Mirror processor stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Mirror processor stop timed out")
		return ctx.Err()
	}

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()
	return nil
}

func (p *MirrorProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *MirrorProcessor) Stats() MirrorStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

func (p *MirrorProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	p.SyncOnce(ctx)

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.SyncOnce(ctx)
		}
	}
}

// SyncOnce exports when the receipt count differs from the last export.
// It reports whether an export ran.
func (p *MirrorProcessor) SyncOnce(ctx context.Context) bool {
	p.mu.Lock()
	p.stats.Runs++
	last := p.lastCount
	p.mu.Unlock()

	n, err := p.store.Count(ctx, core.CollectionReceipts)
	if err != nil {
		p.fail(ctx, fmt.Errorf("count receipts: %w", err))
		return false
	}
	if n == last || n == 0 {
		return false
	}

	res, err := p.exports.ExportToSheets(ctx, ExportRequest{Limit: p.config.Limit, Period: p.config.Period})
	if errors.Is(err, core.ErrNothingToExport) {
		p.mu.Lock()
		p.lastCount = n
		p.mu.Unlock()
		return false
	}
	if err != nil {
		p.fail(ctx, err)
		return false
	}

	p.mu.Lock()
	p.lastCount = n
	p.stats.Exports++
	p.stats.LastExport = time.Now()
	p.stats.LastError = ""
	p.mu.Unlock()

	slog.InfoContext(ctx, "Mirrored receipts to Google Sheets",
		"range", res.Range,
		"receipts", res.ReceiptsCount)
	return true
}

func (p *MirrorProcessor) fail(ctx context.Context, err error) {
	slog.ErrorContext(ctx, "Mirror sync failed", "error", err)
	p.mu.Lock()
	p.stats.LastError = err.Error()
	p.mu.Unlock()
}
