package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrMarketClosed is returned when an order arrives outside market hours.
	ErrMarketClosed = errors.New("market is closed")

	// ErrNotFoundOrder is returned when an order id resolves to nothing.
	ErrNotFoundOrder = errors.New("order not found")

	// ErrNotFoundPortfolio is returned when a sell references a stock the
	// member does not hold.
	ErrNotFoundPortfolio = errors.New("portfolio not found")

	// ErrInvalidOrderState guards the PENDING -> EXECUTED/CANCELLED machine.
	ErrInvalidOrderState = errors.New("invalid order state transition")
)

// NotFoundMemberError carries the member id that failed to resolve.
type NotFoundMemberError struct {
	MemberID int64
}

func (e *NotFoundMemberError) Error() string {
	return fmt.Sprintf("member not found: id=%d", e.MemberID)
}

// NotEnoughCashError is a business rejection: the buy total exceeds the
// member's spendable cash.
type NotEnoughCashError struct {
	Balance  int64
	Required int64
}

func (e *NotEnoughCashError) Error() string {
	return fmt.Sprintf("not enough cash: balance=%d required=%d", e.Balance, e.Required)
}

// InvalidSellQuantityError is a business rejection: the member holds fewer
// shares than the sell requests.
type InvalidSellQuantityError struct {
	Requested int64
	Held      int64
}

func (e *InvalidSellQuantityError) Error() string {
	return fmt.Sprintf("invalid sell quantity: requested=%d held=%d", e.Requested, e.Held)
}

// IsBusinessRejection reports whether err is one of the typed rejections a
// caller should render as a user-facing message rather than a server fault.
func IsBusinessRejection(err error) bool {
	var cash *NotEnoughCashError
	var qty *InvalidSellQuantityError
	var member *NotFoundMemberError
	return errors.Is(err, ErrMarketClosed) ||
		errors.Is(err, ErrNotFoundPortfolio) ||
		errors.As(err, &cash) ||
		errors.As(err, &qty) ||
		errors.As(err, &member)
}
