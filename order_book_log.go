package book

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// LogType represents the type of event log.
type LogType string

const (
	LogTypeOpen   LogType = "open"
	LogTypeMatch  LogType = "match"
	LogTypeCancel LogType = "cancel"
	LogTypeAmend  LogType = "amend"
)

// BookLog represents an event in the order book.
// SequenceID is a per-book increasing ID for every event, used for ordering,
// deduplication, and rebuild synchronization in downstream consumers.
//
// For match events, Price is the execution price, Quantity the traded
// quantity, and BuyOrderID/SellOrderID identify the two resting orders.
// BuyPrice and SellPrice are the book prices of the two orders, which can
// differ from the execution price when the book was crossed; replay consumers
// need them to relieve depth on both sides.
type BookLog struct {
	SequenceID  uint64          `json:"seq_id"`
	TradeID     uint64          `json:"trade_id,omitempty"` // only set for match events
	Type        LogType         `json:"type"`
	MarketID    string          `json:"market_id,omitempty"`
	Side        Side            `json:"side,omitempty"` // aggressor side for match events
	Price       decimal.Decimal `json:"price"`
	Quantity    uint64          `json:"quantity"`
	OldPrice    decimal.Decimal `json:"old_price,omitempty"` // amend only
	OldQuantity uint64          `json:"old_quantity,omitempty"`
	OrderID     uint64          `json:"order_id,omitempty"`
	BuyOrderID  uint64          `json:"buy_order_id,omitempty"` // match only
	SellOrderID uint64          `json:"sell_order_id,omitempty"`
	BuyPrice    decimal.Decimal `json:"buy_price,omitempty"` // match only
	SellPrice   decimal.Decimal `json:"sell_price,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

var bookLogPool = sync.Pool{
	New: func() any {
		return new(BookLog)
	},
}

func acquireBookLog() *BookLog {
	return bookLogPool.Get().(*BookLog)
}

func releaseBookLog(log *BookLog) {
	// Reset structure to zero values.
	// For decimal.Decimal, the zero value (nil internal pointer) represents 0, which is valid.
	*log = BookLog{}
	bookLogPool.Put(log)
}

func newOpenLog(seqID uint64, marketID string, order *Order) *BookLog {
	log := acquireBookLog()
	log.SequenceID = seqID
	log.Type = LogTypeOpen
	log.MarketID = marketID
	log.Side = order.Side
	log.Price = order.Price
	log.Quantity = order.Quantity
	log.OrderID = order.ID
	log.CreatedAt = time.Now().UTC()
	return log
}

func newMatchLog(seqID uint64, tradeID uint64, marketID string, bid *Order, ask *Order, price decimal.Decimal, qty uint64, aggressor Side) *BookLog {
	log := acquireBookLog()
	log.SequenceID = seqID
	log.TradeID = tradeID
	log.Type = LogTypeMatch
	log.MarketID = marketID
	log.Side = aggressor
	log.Price = price
	log.Quantity = qty
	log.BuyOrderID = bid.ID
	log.SellOrderID = ask.ID
	log.BuyPrice = bid.Price
	log.SellPrice = ask.Price
	log.CreatedAt = time.Now().UTC()
	return log
}

func newCancelLog(seqID uint64, marketID string, order *Order) *BookLog {
	log := acquireBookLog()
	log.SequenceID = seqID
	log.Type = LogTypeCancel
	log.MarketID = marketID
	log.Side = order.Side
	log.Price = order.Price
	log.Quantity = order.Quantity
	log.OrderID = order.ID
	log.CreatedAt = time.Now().UTC()
	return log
}

func newAmendLog(seqID uint64, marketID string, order *Order, oldPrice decimal.Decimal, oldQty uint64) *BookLog {
	log := acquireBookLog()
	log.SequenceID = seqID
	log.Type = LogTypeAmend
	log.MarketID = marketID
	log.Side = order.Side
	log.Price = order.Price
	log.Quantity = order.Quantity
	log.OldPrice = oldPrice
	log.OldQuantity = oldQty
	log.OrderID = order.ID
	log.CreatedAt = time.Now().UTC()
	return log
}
