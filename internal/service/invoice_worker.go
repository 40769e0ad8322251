package service

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// InvoiceWorker runs invoice generation on a fixed interval in the background
type InvoiceWorker struct {
	invoiceService *InvoiceService
	logger         zerolog.Logger
	interval       time.Duration
	runOnStart     bool
	stopCh         chan struct{}
	doneCh         chan struct{}
	mu             sync.Mutex
	running        bool
}

// InvoiceWorkerConfig holds configuration for the invoice worker
type InvoiceWorkerConfig struct {
	Interval   time.Duration // How often to run invoice generation
	RunOnStart bool          // Run once immediately when started
}

// DefaultInvoiceWorkerConfig returns a daily schedule that also runs at startup
func DefaultInvoiceWorkerConfig() InvoiceWorkerConfig {
	return InvoiceWorkerConfig{
		Interval:   24 * time.Hour,
		RunOnStart: true,
	}
}

// NewInvoiceWorker creates a new invoice worker
func NewInvoiceWorker(invoiceService *InvoiceService, logger zerolog.Logger, config InvoiceWorkerConfig) *InvoiceWorker {
	if config.Interval <= 0 {
		config.Interval = 24 * time.Hour
	}

	return &InvoiceWorker{
		invoiceService: invoiceService,
		logger:         logger.With().Str("component", "invoice_worker").Logger(),
		interval:       config.Interval,
		runOnStart:     config.RunOnStart,
		stopCh:         make(chan struct{}),
		doneCh:         make(chan struct{}),
	}
}

// Start begins the background invoice cycle
func (w *InvoiceWorker) Start(ctx context.Context) {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	w.running = true
	w.mu.Unlock()

	w.logger.Info().
		Dur("interval", w.interval).
		Bool("run_on_start", w.runOnStart).
		Msg("Starting invoice worker")

	go w.run(ctx)
}

// Stop gracefully stops the invoice worker and waits for an in-flight run
func (w *InvoiceWorker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.mu.Unlock()

	w.logger.Info().Msg("Stopping invoice worker")
	close(w.stopCh)
	<-w.doneCh
	w.logger.Info().Msg("Invoice worker stopped")
}

func (w *InvoiceWorker) run(ctx context.Context) {
	defer close(w.doneCh)
	defer func() {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
	}()

	if w.runOnStart {
		w.RunNow(ctx)
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.RunNow(ctx)
		}
	}
}

// RunNow performs one invoice generation run and logs the outcome. Errors
// are logged, never returned, so a bad run cannot stop the schedule.
func (w *InvoiceWorker) RunNow(ctx context.Context) *InvoiceRunResult {
	w.logger.Debug().Msg("Starting invoice generation")
	startTime := time.Now()

	result, err := w.invoiceService.RunInvoiceGeneration(ctx)
	if err != nil {
		w.logger.Error().Err(err).Msg("Invoice generation failed")
		return result
	}

	for _, msg := range result.Errors {
		w.logger.Warn().Str("error", msg).Msg("Invoice generation error")
	}

	w.logger.Info().
		Int("generated", result.Generated).
		Int("skipped", result.Skipped).
		Int64("overdue", result.Overdue).
		Int("errors", len(result.Errors)).
		Dur("elapsed", time.Since(startTime)).
		Msg("Completed invoice generation")
	return result
}

// IsRunning returns whether the worker is currently running
func (w *InvoiceWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}
