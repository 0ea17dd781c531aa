package service

import (
	"context"
	"log/slog"
	"time"

	"stock_go/internal/domain"
	"stock_go/internal/infra/storage"

	"github.com/google/uuid"
)

// OrderResult is the synchronous outcome of an order placement.
// Executed=false with a message is a soft deferral (e.g. no quote yet or a
// limit order left pending), distinct from a business rejection error.
type OrderResult struct {
	Executed bool   `json:"executed"`
	Message  string `json:"message"`
	Price    int64  `json:"price"`
	OrderNo  string `json:"order_no"`
}

// MarketOrderRequest places an order at whatever the market trades at now.
type MarketOrderRequest struct {
	StockCode string
	StockName string
	Quantity  int64
}

// LimitOrderRequest places an order that fills at Price or better.
type LimitOrderRequest struct {
	StockCode string
	StockName string
	Quantity  int64
	Price     int64
}

// OrderService is the synchronous order intake: it validates, fills
// immediately when possible, and queues limit orders otherwise. Per-member
// serialization against the scheduled execution path comes from the shared
// lock registry (blocking here: the user is waiting) plus the row locks
// taken inside the transaction.
type OrderService struct {
	store      *storage.Store
	oracle     domain.PriceOracle
	portfolios *PortfolioService
	notifier   domain.Notifier
	locks      domain.LockProvider
	market     domain.MarketCalendar
}

// NewOrderService creates a new OrderService instance
func NewOrderService(
	store *storage.Store,
	oracle domain.PriceOracle,
	portfolios *PortfolioService,
	notifier domain.Notifier,
	locks domain.LockProvider,
	market domain.MarketCalendar,
) *OrderService {
	return &OrderService{
		store:      store,
		oracle:     oracle,
		portfolios: portfolios,
		notifier:   notifier,
		locks:      locks,
		market:     market,
	}
}

// PlaceMarketBuy fills a buy immediately at the current price.
func (s *OrderService) PlaceMarketBuy(ctx context.Context, memberID int64, req MarketOrderRequest) (*OrderResult, error) {
	if !s.market.IsOpen() {
		return nil, domain.ErrMarketClosed
	}

	s.locks.Lock(memberID)
	defer s.locks.Unlock(memberID)

	var result *OrderResult
	err := s.store.InTx(func(tx *storage.Store) error {
		member, err := tx.MemberForUpdate(memberID)
		if err != nil {
			return err
		}

		quote, ok := s.oracle.LatestPrice(req.StockCode)
		if !ok {
			result = &OrderResult{Executed: false, Message: "market buy deferred: no current price available"}
			return nil
		}
		currentPrice := quote.Price

		totalPrice := currentPrice * req.Quantity
		if member.CashBalance < totalPrice {
			return &domain.NotEnoughCashError{Balance: member.CashBalance, Required: totalPrice}
		}

		order := newOrder(memberID, req.StockCode, req.StockName, domain.OrderKindMarket, domain.SideBuy, req.Quantity, currentPrice)
		if err := order.Execute(); err != nil {
			return err
		}
		if err := tx.CreateOrder(order); err != nil {
			return err
		}
		if err := tx.CreateTrade(newTrade(order, currentPrice)); err != nil {
			return err
		}

		member.CashBalance -= totalPrice
		if err := tx.SaveMember(member); err != nil {
			return err
		}
		if err := s.portfolios.ApplyBuy(tx, memberID, req.StockCode, req.StockName, req.Quantity, currentPrice); err != nil {
			return err
		}

		result = &OrderResult{Executed: true, Message: "market buy executed", Price: currentPrice, OrderNo: order.OrderNo}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Executed {
		s.notifyTradeSafely(ctx, memberID, req.StockCode, req.StockName, domain.SideBuy, req.Quantity, result.Price)
		slog.Info("market buy executed",
			slog.Int64("member_id", memberID),
			slog.String("stock_code", req.StockCode),
			slog.Int64("quantity", req.Quantity),
			slog.Int64("price", result.Price))
	}
	return result, nil
}

// PlaceMarketSell fills a sell immediately at the current price.
func (s *OrderService) PlaceMarketSell(ctx context.Context, memberID int64, req MarketOrderRequest) (*OrderResult, error) {
	if !s.market.IsOpen() {
		return nil, domain.ErrMarketClosed
	}

	s.locks.Lock(memberID)
	defer s.locks.Unlock(memberID)

	var result *OrderResult
	err := s.store.InTx(func(tx *storage.Store) error {
		member, err := tx.MemberForUpdate(memberID)
		if err != nil {
			return err
		}

		portfolio, err := tx.PortfolioForUpdate(memberID, req.StockCode)
		if err != nil {
			return err
		}
		if portfolio.Quantity < req.Quantity {
			return &domain.InvalidSellQuantityError{Requested: req.Quantity, Held: portfolio.Quantity}
		}

		quote, ok := s.oracle.LatestPrice(req.StockCode)
		if !ok {
			result = &OrderResult{Executed: false, Message: "market sell deferred: no current price available"}
			return nil
		}
		currentPrice := quote.Price

		order := newOrder(memberID, req.StockCode, req.StockName, domain.OrderKindMarket, domain.SideSell, req.Quantity, currentPrice)
		if err := order.Execute(); err != nil {
			return err
		}
		if err := tx.CreateOrder(order); err != nil {
			return err
		}
		if err := tx.CreateTrade(newTrade(order, currentPrice)); err != nil {
			return err
		}

		if err := s.portfolios.ApplySell(tx, memberID, req.StockCode, req.Quantity); err != nil {
			return err
		}
		member.CashBalance += currentPrice * req.Quantity
		if err := tx.SaveMember(member); err != nil {
			return err
		}

		result = &OrderResult{Executed: true, Message: "market sell executed", Price: currentPrice, OrderNo: order.OrderNo}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Executed {
		s.notifyTradeSafely(ctx, memberID, req.StockCode, req.StockName, domain.SideSell, req.Quantity, result.Price)
		slog.Info("market sell executed",
			slog.Int64("member_id", memberID),
			slog.String("stock_code", req.StockCode),
			slog.Int64("quantity", req.Quantity),
			slog.Int64("price", result.Price))
	}
	return result, nil
}

// PlaceLimitBuy executes immediately at the current price when it already
// satisfies the limit; otherwise it freezes limit*quantity from cash and
// stores the order PENDING.
func (s *OrderService) PlaceLimitBuy(ctx context.Context, memberID int64, req LimitOrderRequest) (*OrderResult, error) {
	if !s.market.IsOpen() {
		return nil, domain.ErrMarketClosed
	}

	s.locks.Lock(memberID)
	defer s.locks.Unlock(memberID)

	var result *OrderResult
	err := s.store.InTx(func(tx *storage.Store) error {
		member, err := tx.MemberForUpdate(memberID)
		if err != nil {
			return err
		}

		frozenAmount := req.Price * req.Quantity
		if member.CashBalance < frozenAmount {
			return &domain.NotEnoughCashError{Balance: member.CashBalance, Required: frozenAmount}
		}

		quote, ok := s.oracle.LatestPrice(req.StockCode)
		if !ok {
			result = &OrderResult{Executed: false, Message: "limit buy deferred: no current price available"}
			return nil
		}
		currentPrice := quote.Price

		order := newOrder(memberID, req.StockCode, req.StockName, domain.OrderKindLimit, domain.SideBuy, req.Quantity, req.Price)

		if currentPrice <= req.Price {
			// Immediate fill at the current (better or equal) price.
			if err := order.Execute(); err != nil {
				return err
			}
			if err := tx.CreateOrder(order); err != nil {
				return err
			}
			if err := tx.CreateTrade(newTrade(order, currentPrice)); err != nil {
				return err
			}

			member.CashBalance -= currentPrice * req.Quantity
			if err := tx.SaveMember(member); err != nil {
				return err
			}
			if err := s.portfolios.ApplyBuy(tx, memberID, req.StockCode, req.StockName, req.Quantity, currentPrice); err != nil {
				return err
			}

			result = &OrderResult{Executed: true, Message: "limit buy executed immediately", Price: currentPrice, OrderNo: order.OrderNo}
			return nil
		}

		// Queue: freeze the full reservation until the scanner fills it.
		order.Status = domain.OrderStatusPending
		if err := tx.CreateOrder(order); err != nil {
			return err
		}
		member.CashBalance -= frozenAmount
		if err := tx.SaveMember(member); err != nil {
			return err
		}

		result = &OrderResult{Executed: false, Message: "limit buy pending", Price: req.Price, OrderNo: order.OrderNo}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Executed {
		s.notifyTradeSafely(ctx, memberID, req.StockCode, req.StockName, domain.SideBuy, req.Quantity, result.Price)
	}
	slog.Info("limit buy placed",
		slog.Int64("member_id", memberID),
		slog.String("stock_code", req.StockCode),
		slog.Int64("limit_price", req.Price),
		slog.Bool("executed", result.Executed))
	return result, nil
}

// PlaceLimitSell executes immediately at the current price when it already
// satisfies the limit; otherwise it stores the order PENDING with no cash
// effect. Shares are not reserved at placement; a shortfall at execution
// time cancels the order.
func (s *OrderService) PlaceLimitSell(ctx context.Context, memberID int64, req LimitOrderRequest) (*OrderResult, error) {
	if !s.market.IsOpen() {
		return nil, domain.ErrMarketClosed
	}

	s.locks.Lock(memberID)
	defer s.locks.Unlock(memberID)

	var result *OrderResult
	err := s.store.InTx(func(tx *storage.Store) error {
		member, err := tx.MemberForUpdate(memberID)
		if err != nil {
			return err
		}

		portfolio, err := tx.PortfolioForUpdate(memberID, req.StockCode)
		if err != nil {
			return err
		}
		if portfolio.Quantity < req.Quantity {
			return &domain.InvalidSellQuantityError{Requested: req.Quantity, Held: portfolio.Quantity}
		}

		quote, ok := s.oracle.LatestPrice(req.StockCode)
		if !ok {
			result = &OrderResult{Executed: false, Message: "limit sell deferred: no current price available"}
			return nil
		}
		currentPrice := quote.Price

		order := newOrder(memberID, req.StockCode, req.StockName, domain.OrderKindLimit, domain.SideSell, req.Quantity, req.Price)

		if currentPrice >= req.Price {
			if err := order.Execute(); err != nil {
				return err
			}
			if err := tx.CreateOrder(order); err != nil {
				return err
			}
			if err := tx.CreateTrade(newTrade(order, currentPrice)); err != nil {
				return err
			}

			if err := s.portfolios.ApplySell(tx, memberID, req.StockCode, req.Quantity); err != nil {
				return err
			}
			member.CashBalance += currentPrice * req.Quantity
			if err := tx.SaveMember(member); err != nil {
				return err
			}

			result = &OrderResult{Executed: true, Message: "limit sell executed immediately", Price: currentPrice, OrderNo: order.OrderNo}
			return nil
		}

		order.Status = domain.OrderStatusPending
		if err := tx.CreateOrder(order); err != nil {
			return err
		}

		result = &OrderResult{Executed: false, Message: "limit sell pending", Price: req.Price, OrderNo: order.OrderNo}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Executed {
		s.notifyTradeSafely(ctx, memberID, req.StockCode, req.StockName, domain.SideSell, req.Quantity, result.Price)
	}
	slog.Info("limit sell placed",
		slog.Int64("member_id", memberID),
		slog.String("stock_code", req.StockCode),
		slog.Int64("limit_price", req.Price),
		slog.Bool("executed", result.Executed))
	return result, nil
}

// Remove bulk-deletes a member's orders when the account is closed.
func (s *OrderService) Remove(ctx context.Context, memberID int64) error {
	if _, err := s.store.Member(memberID); err != nil {
		return err
	}
	return s.store.DeleteOrdersByMember(memberID)
}

func (s *OrderService) notifyTradeSafely(ctx context.Context, memberID int64, stockCode, stockName, side string, quantity, price int64) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifyTrade(ctx, memberID, stockCode, stockName, side, quantity, price); err != nil {
		slog.Error("trade notification failed",
			slog.Int64("member_id", memberID),
			slog.String("stock_code", stockCode),
			slog.Any("error", err))
	}
}

func newOrder(memberID int64, stockCode, stockName, kind, side string, quantity, price int64) *domain.Order {
	return &domain.Order{
		OrderNo:   uuid.NewString(),
		StockCode: stockCode,
		StockName: stockName,
		Kind:      kind,
		Side:      side,
		Quantity:  quantity,
		Price:     price,
		MemberID:  memberID,
		CreatedAt: time.Now(),
	}
}

func newTrade(order *domain.Order, executedPrice int64) *domain.Trade {
	return &domain.Trade{
		StockCode: order.StockCode,
		StockName: order.StockName,
		Side:      order.Side,
		Quantity:  order.Quantity,
		Price:     executedPrice,
		MemberID:  order.MemberID,
		CreatedAt: time.Now(),
	}
}
