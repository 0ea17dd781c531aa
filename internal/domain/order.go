package domain

import (
	"fmt"
	"time"
)

// Order represents a buy/sell order placed by a member.
// All monetary values are strictly integer KRW.
type Order struct {
	ID        int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderNo   string `gorm:"size:36;uniqueIndex" json:"order_no"` // external reference (UUID)
	StockCode string `gorm:"size:12;index" json:"stock_code"`
	StockName string `gorm:"size:64" json:"stock_name"`
	Kind      string `gorm:"size:8;index" json:"kind"` // "MARKET", "LIMIT"
	Side      string `gorm:"size:4" json:"side"`       // "BUY", "SELL"
	Quantity  int64  `json:"quantity"`
	// Price is the limit price for LIMIT orders.
	// For an already-executed MARKET order it records the fill price.
	Price     int64     `json:"price"`
	Status    string    `gorm:"size:10;index" json:"status"` // "PENDING", "EXECUTED", "CANCELLED"
	MemberID  int64     `gorm:"index" json:"member_id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

const (
	SideBuy  = "BUY"
	SideSell = "SELL"

	OrderKindMarket = "MARKET"
	OrderKindLimit  = "LIMIT"

	OrderStatusPending   = "PENDING"
	OrderStatusExecuted  = "EXECUTED"
	OrderStatusCancelled = "CANCELLED"
)

// IsPending checks if the order is still waiting for a fill.
func (o *Order) IsPending() bool {
	return o.Status == OrderStatusPending
}

// Matches reports whether the limit condition holds at currentPrice:
// BUY fills at or below the limit price, SELL fills at or above it.
func (o *Order) Matches(currentPrice int64) bool {
	switch o.Side {
	case SideBuy:
		return currentPrice <= o.Price
	case SideSell:
		return currentPrice >= o.Price
	}
	return false
}

// Execute transitions the order into EXECUTED.
// Only a PENDING (or freshly built, status-less) order may transition.
func (o *Order) Execute() error {
	if o.Status != "" && o.Status != OrderStatusPending {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidOrderState, o.Status, OrderStatusExecuted)
	}
	o.Status = OrderStatusExecuted
	return nil
}

// Cancel transitions the order into CANCELLED.
func (o *Order) Cancel() error {
	if o.Status != OrderStatusPending {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidOrderState, o.Status, OrderStatusCancelled)
	}
	o.Status = OrderStatusCancelled
	return nil
}

// TotalAmount returns price * quantity at the order's own price.
// For a pending limit buy this is the frozen reservation amount.
func (o *Order) TotalAmount() int64 {
	return o.Price * o.Quantity
}
