package service

import (
	"context"
	"log/slog"
	"time"

	"stock_go/internal/domain"
	"stock_go/internal/infra/storage"

	"github.com/shopspring/decimal"
)

// ProfitService refreshes every member's yesterday-profit-rate once a day
// and aggregates the leaderboard summary. Rates are computed with decimal
// arithmetic; integer KRW would truncate sub-percent differences.
type ProfitService struct {
	store      *storage.Store
	portfolios *PortfolioService
	oracle     domain.PriceOracle
	loc        *time.Location
}

// NewProfitService creates a new ProfitService instance
func NewProfitService(store *storage.Store, portfolios *PortfolioService, oracle domain.PriceOracle, loc *time.Location) *ProfitService {
	return &ProfitService{
		store:      store,
		portfolios: portfolios,
		oracle:     oracle,
		loc:        loc,
	}
}

// RankSummary aggregates all members for the leaderboard.
type RankSummary struct {
	TotalMembers  int    `json:"total_members"`
	PlusRate      string `json:"plus_rate"`  // e.g. "+75.2%"
	MinusRate     string `json:"minus_rate"` // e.g. "-24.8%"
	BankruptCount int    `json:"bankrupt_count"`
}

// UpdateYesterdayProfitRates recomputes and persists each member's profit
// rate from current cash plus portfolio valuation.
func (s *ProfitService) UpdateYesterdayProfitRates(ctx context.Context) error {
	members, err := s.store.AllMembers()
	if err != nil {
		return err
	}

	for i := range members {
		m := &members[i]
		rate, err := s.profitRate(m)
		if err != nil {
			slog.Error("profit rate computation failed",
				slog.Int64("member_id", m.ID), slog.Any("error", err))
			continue
		}
		m.YesterdayProfitRate = rate
		if err := s.store.SaveMember(m); err != nil {
			slog.Error("profit rate save failed",
				slog.Int64("member_id", m.ID), slog.Any("error", err))
		}
	}

	slog.Info("daily profit rates updated", slog.Int("members", len(members)))
	return nil
}

// profitRate = 100 * (cash + holdings valuation - seed) / seed
func (s *ProfitService) profitRate(m *domain.Member) (float64, error) {
	if m.SeedMoney == 0 {
		return 0, nil
	}

	valuation, err := s.portfolios.TotalValuation(s.store, s.oracle, m.ID)
	if err != nil {
		return 0, err
	}

	total := decimal.NewFromInt(m.CashBalance + valuation)
	seed := decimal.NewFromInt(m.SeedMoney)
	rate := total.Sub(seed).Div(seed).Mul(decimal.NewFromInt(100))
	f, _ := rate.Round(2).Float64()
	return f, nil
}

// Summary builds the leaderboard aggregate from the stored profit rates.
func (s *ProfitService) Summary() (*RankSummary, error) {
	members, err := s.store.AllMembers()
	if err != nil {
		return nil, err
	}

	var plus, bankrupt int
	for i := range members {
		m := &members[i]
		if m.YesterdayProfitRate > 0 {
			plus++
		}
		if m.CashBalance == 0 {
			holdings, err := s.store.PortfoliosByMember(m.ID)
			if err != nil {
				return nil, err
			}
			if len(holdings) == 0 {
				bankrupt++
			}
		}
	}

	summary := &RankSummary{TotalMembers: len(members), BankruptCount: bankrupt}
	if len(members) > 0 {
		total := decimal.NewFromInt(int64(len(members)))
		plusPct := decimal.NewFromInt(int64(plus)).Div(total).Mul(decimal.NewFromInt(100)).Round(1)
		minusPct := decimal.NewFromInt(100).Sub(plusPct).Round(1)
		summary.PlusRate = "+" + plusPct.String() + "%"
		summary.MinusRate = "-" + minusPct.String() + "%"
	}
	return summary, nil
}

// RunDaily updates profit rates every midnight (market time zone) until
// the context is cancelled.
func (s *ProfitService) RunDaily(ctx context.Context) {
	for {
		now := time.Now().In(s.loc)
		next := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc).AddDate(0, 0, 1)

		select {
		case <-ctx.Done():
			return
		case <-time.After(next.Sub(now)):
			if err := s.UpdateYesterdayProfitRates(ctx); err != nil {
				slog.Error("daily profit update failed", slog.Any("error", err))
			}
		}
	}
}
