package service

import (
	"errors"
	"time"

	"stock_go/internal/domain"
	"stock_go/internal/infra/storage"
)

// PortfolioService owns position bookkeeping: quantity and average cost.
// Mutating methods take the transaction-bound store of the caller so a
// position update commits or rolls back together with the fill.
type PortfolioService struct{}

// NewPortfolioService creates a new PortfolioService instance
func NewPortfolioService() *PortfolioService {
	return &PortfolioService{}
}

// ApplyBuy adds quantity at price to the (member, stock) position,
// recomputing the average cost. Creates the position when missing.
func (s *PortfolioService) ApplyBuy(tx *storage.Store, memberID int64, stockCode, stockName string, quantity, price int64) error {
	p, err := tx.PortfolioForUpdate(memberID, stockCode)
	if errors.Is(err, domain.ErrNotFoundPortfolio) {
		return tx.CreatePortfolio(&domain.Portfolio{
			MemberID:  memberID,
			StockCode: stockCode,
			StockName: stockName,
			Quantity:  quantity,
			AvgPrice:  price,
			CreatedAt: time.Now(),
		})
	}
	if err != nil {
		return err
	}

	totalCost := p.AvgPrice*p.Quantity + price*quantity
	p.Quantity += quantity
	p.AvgPrice = totalCost / p.Quantity
	return tx.SavePortfolio(p)
}

// ApplySell removes quantity from the position. An emptied position row is
// deleted. The caller has already validated the held quantity under a lock.
func (s *PortfolioService) ApplySell(tx *storage.Store, memberID int64, stockCode string, quantity int64) error {
	p, err := tx.PortfolioForUpdate(memberID, stockCode)
	if err != nil {
		return err
	}
	if p.Quantity < quantity {
		return &domain.InvalidSellQuantityError{Requested: quantity, Held: p.Quantity}
	}

	p.Quantity -= quantity
	if p.Quantity == 0 {
		return tx.DeletePortfolio(p)
	}
	return tx.SavePortfolio(p)
}

// CurrentHolding returns the held quantity under an exclusive row lock, or
// false when the member holds none of the stock.
func (s *PortfolioService) CurrentHolding(tx *storage.Store, memberID int64, stockCode string) (int64, bool, error) {
	p, err := tx.PortfolioForUpdate(memberID, stockCode)
	if errors.Is(err, domain.ErrNotFoundPortfolio) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return p.Quantity, true, nil
}

// TotalValuation values every position of a member at the latest quote,
// falling back to average cost for stocks without a quote yet.
func (s *PortfolioService) TotalValuation(store *storage.Store, oracle domain.PriceOracle, memberID int64) (int64, error) {
	portfolios, err := store.PortfoliosByMember(memberID)
	if err != nil {
		return 0, err
	}

	var total int64
	for i := range portfolios {
		p := &portfolios[i]
		price := p.AvgPrice
		if q, ok := oracle.LatestPrice(p.StockCode); ok {
			price = q.Price
		}
		total += p.Valuation(price)
	}
	return total, nil
}
