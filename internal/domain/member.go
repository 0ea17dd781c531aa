package domain

import "time"

// Member represents a brokerage account holder.
// CashBalance is integer KRW and must never go negative as a result of a fill.
type Member struct {
	ID       int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	Nickname string `gorm:"size:32" json:"nickname"`
	// CashBalance is the spendable cash. Frozen amounts for pending limit
	// buys are already subtracted from it.
	CashBalance int64 `json:"cash_balance"`
	// SeedMoney is the initial deposit, the baseline for profit rates.
	SeedMoney int64 `json:"seed_money"`
	// YesterdayProfitRate is refreshed once a day by the profit scheduler.
	YesterdayProfitRate float64   `json:"yesterday_profit_rate"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}
