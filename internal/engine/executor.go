package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"stock_go/internal/domain"
	"stock_go/internal/infra"
	"stock_go/internal/infra/storage"
)

// Portfolios is the position-bookkeeping collaborator the executor
// delegates quantity/cost updates to.
type Portfolios interface {
	ApplyBuy(tx *storage.Store, memberID int64, stockCode, stockName string, quantity, price int64) error
	ApplySell(tx *storage.Store, memberID int64, stockCode string, quantity int64) error
}

// Executor re-evaluates a single pending limit order against the current
// price and fills it when the limit condition holds. Each order runs in
// its own transaction so one order's failure cannot taint another's.
type Executor struct {
	store      *storage.Store
	oracle     domain.PriceOracle
	portfolios Portfolios
	notifier   domain.Notifier
	locks      domain.LockProvider
	metrics    *infra.Metrics
}

// NewExecutor creates a new Executor instance
func NewExecutor(
	store *storage.Store,
	oracle domain.PriceOracle,
	portfolios Portfolios,
	notifier domain.Notifier,
	locks domain.LockProvider,
) *Executor {
	return &Executor{
		store:      store,
		oracle:     oracle,
		portfolios: portfolios,
		notifier:   notifier,
		locks:      locks,
		metrics:    infra.GlobalMetrics,
	}
}

// ProcessOrder attempts to execute one order. Every outcome other than an
// unexpected failure is silent: resolved-elsewhere, missing quote, unmet
// condition and lock contention all leave the order for the next scan.
// Nothing propagates to the batch driver.
func (e *Executor) ProcessOrder(ctx context.Context, orderID int64) {
	defer func() {
		if r := recover(); r != nil {
			e.metrics.RecordError()
			slog.Error("order processing panicked",
				slog.Int64("order_id", orderID), slog.Any("panic", r))
		}
	}()

	if err := e.processOrder(ctx, orderID); err != nil {
		e.metrics.RecordError()
		slog.Error("order processing failed, order stays pending",
			slog.Int64("order_id", orderID), slog.Any("error", err))
	}
}

func (e *Executor) processOrder(ctx context.Context, orderID int64) error {
	// 1. Authoritative current state. Already resolved is the expected
	// outcome under concurrent re-evaluation, not an error.
	order, err := e.store.OrderByID(orderID)
	if err != nil {
		return err
	}
	if !order.IsPending() {
		return nil
	}

	// 2-3. Quote and match condition.
	quote, ok := e.oracle.LatestPrice(order.StockCode)
	if !ok {
		e.metrics.RecordPriceMiss()
		return nil
	}
	if !order.Matches(quote.Price) {
		return nil
	}

	// 4. Per-member serialization, non-blocking: on contention the order
	// stays PENDING and is retried next scan.
	if !e.locks.TryLock(order.MemberID) {
		e.metrics.RecordLockSkip()
		slog.Debug("member lock busy, skipping order for this tick",
			slog.Int64("order_id", order.ID), slog.Int64("member_id", order.MemberID))
		return nil
	}
	defer e.locks.Unlock(order.MemberID)

	// 5. The price may have moved while we waited for the lock.
	quote, ok = e.oracle.LatestPrice(order.StockCode)
	if !ok {
		e.metrics.RecordPriceMiss()
		return nil
	}
	if !order.Matches(quote.Price) {
		return nil
	}

	return e.fill(ctx, order.ID, quote.Price)
}

// fill runs the ledger mutation in its own transaction at the
// finally-confirmed price.
func (e *Executor) fill(ctx context.Context, orderID int64, executionPrice int64) error {
	var executed, cancelled bool
	var filled domain.Order

	err := e.store.InTx(func(tx *storage.Store) error {
		// Status re-check under the member lock and row lock: another path
		// may have resolved the order between step 1 and here.
		order, err := tx.OrderForUpdate(orderID)
		if err != nil {
			return err
		}
		if !order.IsPending() {
			return nil
		}

		member, err := tx.MemberForUpdate(order.MemberID)
		if err != nil {
			return err
		}

		// 6. Sells re-validate holdings under the portfolio row lock. A
		// shortfall cancels the order: a business outcome, not an error.
		if order.Side == domain.SideSell {
			held, ok, err := currentHolding(tx, order.MemberID, order.StockCode)
			if err != nil {
				return err
			}
			if !ok || held < order.Quantity {
				if err := order.Cancel(); err != nil {
					return err
				}
				if err := tx.SaveOrder(order); err != nil {
					return err
				}
				cancelled = true
				slog.Warn("limit sell cancelled: insufficient holdings",
					slog.Int64("order_id", order.ID),
					slog.Int64("held", held),
					slog.Int64("requested", order.Quantity))
				return nil
			}
		}

		// 7. Execute: transition, trade record, cash, position.
		if err := order.Execute(); err != nil {
			return err
		}
		if err := tx.SaveOrder(order); err != nil {
			return err
		}
		if err := tx.CreateTrade(&domain.Trade{
			StockCode: order.StockCode,
			StockName: order.StockName,
			Side:      order.Side,
			Quantity:  order.Quantity,
			Price:     executionPrice,
			MemberID:  order.MemberID,
			CreatedAt: time.Now(),
		}); err != nil {
			return err
		}

		switch order.Side {
		case domain.SideBuy:
			// Refund the frozen reservation down to actual spend.
			frozenAmount := order.Price * order.Quantity
			actualAmount := executionPrice * order.Quantity
			member.CashBalance += frozenAmount - actualAmount
			if err := tx.SaveMember(member); err != nil {
				return err
			}
			if err := e.portfolios.ApplyBuy(tx, member.ID, order.StockCode, order.StockName, order.Quantity, executionPrice); err != nil {
				return err
			}
		case domain.SideSell:
			member.CashBalance += executionPrice * order.Quantity
			if err := tx.SaveMember(member); err != nil {
				return err
			}
			if err := e.portfolios.ApplySell(tx, member.ID, order.StockCode, order.Quantity); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unknown order side: %s", order.Side)
		}

		executed = true
		filled = *order
		return nil
	})
	if err != nil {
		return err
	}

	if cancelled {
		e.metrics.RecordOrderCancelled()
	}
	if executed {
		e.metrics.RecordOrderExecuted()
		e.notifyTradeSafely(ctx, &filled, executionPrice)
		slog.Info("limit order executed",
			slog.Int64("order_id", filled.ID),
			slog.Int64("member_id", filled.MemberID),
			slog.String("side", filled.Side),
			slog.Int64("price", executionPrice),
			slog.Int64("quantity", filled.Quantity))
	}
	return nil
}

// notification is best-effort and after commit: its failure is observed
// only via logging, never via the transaction's outcome.
func (e *Executor) notifyTradeSafely(ctx context.Context, order *domain.Order, executionPrice int64) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.NotifyTrade(ctx, order.MemberID, order.StockCode, order.StockName, order.Side, order.Quantity, executionPrice); err != nil {
		slog.Error("trade notification failed",
			slog.Int64("order_id", order.ID),
			slog.Int64("member_id", order.MemberID),
			slog.Any("error", err))
	}
}

func currentHolding(tx *storage.Store, memberID int64, stockCode string) (int64, bool, error) {
	p, err := tx.PortfolioForUpdate(memberID, stockCode)
	if errors.Is(err, domain.ErrNotFoundPortfolio) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return p.Quantity, true, nil
}
