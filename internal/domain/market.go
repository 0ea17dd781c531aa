package domain

import (
	"time"
)

// Clock abstracts time.Now so market-hours checks are testable.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// MarketHours gates all order placement and limit re-evaluation.
// The Korean market is open Monday-Friday 09:00:00-15:30:00 inclusive,
// evaluated in a fixed zone (Asia/Seoul).
type MarketHours struct {
	loc   *time.Location
	clock Clock
}

// NewMarketHours loads the market time zone. A nil clock falls back to the
// system clock.
func NewMarketHours(timezone string, clock Clock) (*MarketHours, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, err
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &MarketHours{loc: loc, clock: clock}, nil
}

// IsOpen reports whether the market is currently open.
func (m *MarketHours) IsOpen() bool {
	now := m.clock.Now().In(m.loc)

	switch now.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}

	open := time.Date(now.Year(), now.Month(), now.Day(), 9, 0, 0, 0, m.loc)
	close := time.Date(now.Year(), now.Month(), now.Day(), 15, 30, 0, 0, m.loc)

	return !now.Before(open) && !now.After(close)
}
