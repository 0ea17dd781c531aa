package domain

import "time"

// Quote represents the latest known price for a stock from the feed.
type Quote struct {
	StockCode  string    `json:"stock_code"`
	Price      int64     `json:"price"` // integer KRW
	Volume     int64     `json:"volume"`
	ReceivedAt time.Time `json:"received_at"`
}
