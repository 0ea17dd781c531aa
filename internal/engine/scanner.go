package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"stock_go/internal/domain"
	"stock_go/internal/infra"
	"stock_go/internal/infra/storage"
)

// Scanner is the periodic driver of limit order re-evaluation. Every tick
// it selects all pending limit orders oldest-first and fans them out to
// the executor, one goroutine per order, then waits for the batch with a
// bounded timeout. The scheduler itself must survive anything a tick
// throws at it and keep ticking.
type Scanner struct {
	store        *storage.Store
	executor     *Executor
	market       domain.MarketCalendar
	interval     time.Duration
	batchTimeout time.Duration
	metrics      *infra.Metrics
}

// NewScanner creates a new Scanner instance
func NewScanner(store *storage.Store, executor *Executor, market domain.MarketCalendar, interval, batchTimeout time.Duration) *Scanner {
	return &Scanner{
		store:        store,
		executor:     executor,
		market:       market,
		interval:     interval,
		batchTimeout: batchTimeout,
		metrics:      infra.GlobalMetrics,
	}
}

// Run ticks until the context is cancelled.
func (s *Scanner) Run(ctx context.Context) {
	slog.Info("limit order scanner started", slog.Duration("interval", s.interval))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("limit order scanner stopping...")
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick runs one scan pass. Exported so tests can drive the scanner
// deterministically without the ticker.
func (s *Scanner) Tick(ctx context.Context) {
	if !s.market.IsOpen() {
		return
	}

	started := time.Now()
	defer func() {
		if r := recover(); r != nil {
			s.metrics.RecordError()
			slog.Error("scan tick panicked", slog.Any("panic", r))
		}
		// Every pass counts, including empty and failed ones.
		s.metrics.RecordScanTick(time.Since(started).Nanoseconds())
	}()

	pending, err := s.store.PendingLimitOrders()
	if err != nil {
		s.metrics.RecordError()
		slog.Error("pending order fetch failed", slog.Any("error", err))
		return
	}
	if len(pending) == 0 {
		return
	}

	s.processBatch(ctx, pending)
}

// processBatch dispatches every order concurrently and waits up to the
// batch timeout. On timeout, in-flight executions are not killed; they run
// to completion and the next tick simply skips whatever they resolved.
func (s *Scanner) processBatch(ctx context.Context, orders []domain.Order) {
	slog.Debug("processing pending limit orders", slog.Int("count", len(orders)))

	var wg sync.WaitGroup
	for i := range orders {
		wg.Add(1)
		go func(orderID int64) {
			defer wg.Done()
			s.executor.ProcessOrder(ctx, orderID)
		}(orders[i].ID)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.Debug("order batch completed", slog.Int("count", len(orders)))
	case <-time.After(s.batchTimeout):
		s.metrics.RecordBatchTimeout()
		slog.Warn("order batch timed out, executions continue in background",
			slog.Int("count", len(orders)))
	case <-ctx.Done():
	}
}
