package domain

import "time"

// Trade is an immutable record of a completed fill.
// Exactly one Trade is appended per order transition into EXECUTED.
type Trade struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	StockCode string    `gorm:"size:12;index" json:"stock_code"`
	StockName string    `gorm:"size:64" json:"stock_name"`
	Side      string    `gorm:"size:4" json:"side"` // "BUY", "SELL"
	Quantity  int64     `json:"quantity"`
	Price     int64     `json:"price"` // executed price, integer KRW
	MemberID  int64     `gorm:"index" json:"member_id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}
