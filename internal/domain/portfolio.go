package domain

import "time"

// Portfolio is a (member, stock) position: held quantity and average cost.
// Quantity is mutated only under a row lock.
type Portfolio struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	MemberID  int64     `gorm:"index:idx_portfolio_member_stock,unique" json:"member_id"`
	StockCode string    `gorm:"size:12;index:idx_portfolio_member_stock,unique" json:"stock_code"`
	StockName string    `gorm:"size:64" json:"stock_name"`
	Quantity  int64     `json:"quantity"`
	AvgPrice  int64     `json:"avg_price"` // average cost, integer KRW
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Valuation returns the position value at currentPrice.
// When no quote is known yet, callers pass the average cost instead.
func (p *Portfolio) Valuation(currentPrice int64) int64 {
	return p.Quantity * currentPrice
}
