package book

import (
	"github.com/shopspring/decimal"
)

// Side represents the order side (Buy/Sell).
type Side int8

const (
	Buy  Side = 1
	Sell Side = 2
)

// String returns the lowercase side name.
func (s Side) String() string {
	switch s {
	case Buy:
		return "buy"
	case Sell:
		return "sell"
	}
	return "unknown"
}

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// Order is a limit order as submitted by a client and as it rests in the book.
// Quantity is the remaining quantity and decreases on partial fills.
// A zero Timestamp on submission means "stamp with the book clock on admission";
// any other value is preserved verbatim.
type Order struct {
	ID        uint64          `json:"id"`
	Side      Side            `json:"side"`
	Price     decimal.Decimal `json:"price"`
	Quantity  uint64          `json:"quantity"`
	Timestamp uint64          `json:"timestamp"` // nanoseconds, monotonic within a book
}

// PriceLevel is one aggregated level of a depth snapshot.
type PriceLevel struct {
	Price         decimal.Decimal `json:"price"`
	TotalQuantity uint64          `json:"total_quantity"`
	Orders        int64           `json:"orders"`
}

// Depth is the aggregated top-of-book view returned by depth queries.
type Depth struct {
	UpdateID uint64       `json:"update_id"`
	Bids     []PriceLevel `json:"bids"`
	Asks     []PriceLevel `json:"asks"`
}

// BookStats contains usage statistics for one book.
type BookStats struct {
	BidDepthCount int64
	BidOrderCount int64
	AskDepthCount int64
	AskOrderCount int64
}
