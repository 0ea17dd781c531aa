package domain

import "context"

// PriceOracle returns the latest known price for a stock code.
// Absence is a normal condition (the feed may not be warmed up yet) and is
// never an error.
type PriceOracle interface {
	LatestPrice(stockCode string) (*Quote, bool)
}

// Notifier delivers trade notifications. Delivery is best-effort; callers
// log and discard any error.
type Notifier interface {
	NotifyTrade(ctx context.Context, memberID int64, stockCode, stockName, side string, quantity, price int64) error
}

// LockProvider serializes mutating operations per member without
// serializing unrelated members. TryLock is the non-blocking variant used
// by the scheduled execution path; Lock blocks and is used by order intake.
type LockProvider interface {
	Lock(memberID int64)
	TryLock(memberID int64) bool
	Unlock(memberID int64)
}

// MarketCalendar gates order placement and limit re-evaluation.
type MarketCalendar interface {
	IsOpen() bool
}
