package book

import (
	"sync/atomic"

	"github.com/shopspring/decimal"
)

// Book is a single-instrument limit order book with an embedded continuous
// matching engine. All methods assume exclusive access for the duration of the
// call; there is no internal locking. Callers that multiplex submitters onto
// one book serialize through OrderBook, the command-loop front end.
type Book struct {
	marketID string
	seqID    atomic.Uint64 // increasing sequence ID for every published BookLog
	tradeID  atomic.Uint64 // sequential trade ID, only incremented for match events
	arena    *arena
	bids     *sideBook
	asks     *sideBook
	orders   map[uint64]Handle
	clock    func() uint64
	pub      PublishLog
}

// Option configures a Book at construction.
type Option func(*Book)

// WithCapacity fixes the arena size. The book holds at most capacity live
// orders; further adds fail with ErrCapacityExhausted.
func WithCapacity(capacity int) Option {
	return func(b *Book) {
		if capacity > 0 {
			b.arena = newArena(capacity)
		}
	}
}

// WithMarket tags every published BookLog with a market identifier.
func WithMarket(marketID string) Option {
	return func(b *Book) {
		b.marketID = marketID
	}
}

// WithClock overrides the monotonic nanosecond clock used to stamp orders
// submitted with a zero timestamp.
func WithClock(clock func() uint64) Option {
	return func(b *Book) {
		if clock != nil {
			b.clock = clock
		}
	}
}

// NewBook creates a book publishing events to pub. A nil pub discards events.
func NewBook(pub PublishLog, opts ...Option) *Book {
	if pub == nil {
		pub = DiscardLogs()
	}

	b := &Book{
		arena:  newArena(DefaultCapacity),
		orders: make(map[uint64]Handle),
		clock:  monotonicNanos,
		pub:    pub,
	}

	for _, opt := range opts {
		opt(b)
	}

	b.bids = newBidBook(b.arena)
	b.asks = newAskBook(b.arena)
	return b
}

// sideFor returns the side book an order rests in.
func (b *Book) sideFor(side Side) *sideBook {
	if side == Buy {
		return b.bids
	}
	return b.asks
}

// AddOrder admits a limit order and resolves any resulting cross.
//
// A zero order timestamp is replaced with the current clock reading; any other
// value is preserved. The order id must not be live and the quantity must be
// positive. On error no state is committed. Match events the add causes are
// published synchronously, in matching order, before AddOrder returns.
func (b *Book) AddOrder(order Order) error {
	if order.Quantity == 0 {
		return ErrInvalidQuantity
	}
	if _, exists := b.orders[order.ID]; exists {
		return ErrDuplicateOrderID
	}

	h, err := b.arena.alloc()
	if err != nil {
		return err
	}

	if order.Timestamp == 0 {
		order.Timestamp = b.clock()
	}
	b.arena.at(h).order = order

	b.orders[order.ID] = h
	b.sideFor(order.Side).push(h)

	logs := make([]*BookLog, 0, 8)
	logs = append(logs, newOpenLog(b.seqID.Add(1), b.marketID, &order))

	logs = b.match(logs)

	b.publish(logs)
	return nil
}

// CancelOrder removes a live order. Returns true iff the id was live.
func (b *Book) CancelOrder(id uint64) bool {
	h, ok := b.orders[id]
	if !ok {
		return false
	}

	s := b.arena.at(h)
	log := newCancelLog(b.seqID.Add(1), b.marketID, &s.order)

	b.sideFor(s.order.Side).remove(h)
	delete(b.orders, id)
	b.arena.release(h)

	b.publish([]*BookLog{log})
	return true
}

// AmendOrder modifies a live order. Returns false if the id is not live or the
// new quantity is zero.
//
// When newPrice equals the current price exactly, the quantity is updated in
// place: the order keeps its FIFO position and timestamp, and no matching is
// attempted even on a size increase. Any price change is an internal cancel
// plus add under the same id with a fresh timestamp; priority is fully lost
// and the order matches like any new arrival.
func (b *Book) AmendOrder(id uint64, newPrice decimal.Decimal, newQty uint64) bool {
	h, ok := b.orders[id]
	if !ok {
		return false
	}
	if newQty == 0 {
		return false
	}

	s := b.arena.at(h)
	oldPrice := s.order.Price
	oldQty := s.order.Quantity

	if oldPrice.Equal(newPrice) {
		sb := b.sideFor(s.order.Side)
		sb.updateQty(h, newQty)

		b.publish([]*BookLog{newAmendLog(b.seqID.Add(1), b.marketID, &s.order, oldPrice, oldQty)})
		return true
	}

	amended := s.order
	amended.Price = newPrice
	amended.Quantity = newQty
	amended.Timestamp = b.clock()

	b.sideFor(s.order.Side).remove(h)
	delete(b.orders, id)

	// Reuse the slot for the reinserted order; the arena cannot be full here.
	s.order = amended
	b.orders[id] = h
	b.sideFor(amended.Side).push(h)

	logs := make([]*BookLog, 0, 8)
	logs = append(logs, newAmendLog(b.seqID.Add(1), b.marketID, &amended, oldPrice, oldQty))
	logs = append(logs, newOpenLog(b.seqID.Add(1), b.marketID, &amended))

	logs = b.match(logs)

	b.publish(logs)
	return true
}

// match runs the cross-resolution loop until the book is no longer crossed,
// appending one match log per fill. Each iteration fully consumes at least one
// order, so the loop is bounded by the number of live orders.
func (b *Book) match(logs []*BookLog) []*BookLog {
	for {
		bidEl := b.bids.best()
		askEl := b.asks.best()
		if bidEl == nil || askEl == nil {
			return logs
		}

		bidPrice, _ := bidEl.Key().(decimal.Decimal)
		askPrice, _ := askEl.Key().(decimal.Decimal)
		if bidPrice.LessThan(askPrice) {
			return logs
		}

		bidUnit, _ := bidEl.Value.(*priceUnit)
		askUnit, _ := askEl.Value.(*priceUnit)

		bh := bidUnit.head
		ah := askUnit.head
		bo := &b.arena.at(bh).order
		ao := &b.arena.at(ah).order

		// The resting order arrived first and sets the price. On equal
		// timestamps the bid's price is used.
		price := bo.Price
		aggressor := Sell
		if ao.Timestamp < bo.Timestamp {
			price = ao.Price
			aggressor = Buy
		}

		qty := min(bo.Quantity, ao.Quantity)

		logs = append(logs, newMatchLog(b.seqID.Add(1), b.tradeID.Add(1), b.marketID, bo, ao, price, qty, aggressor))

		b.bids.reduceQty(bh, qty)
		b.asks.reduceQty(ah, qty)

		if bo.Quantity == 0 {
			id := bo.ID
			b.bids.remove(bh)
			delete(b.orders, id)
			b.arena.release(bh)
		}
		if ao.Quantity == 0 {
			id := ao.ID
			b.asks.remove(ah)
			delete(b.orders, id)
			b.arena.release(ah)
		}
	}
}

// Snapshot returns up to depth aggregated levels per side in best-first order.
// Read-only; lists are shorter than depth when the book is thin.
func (b *Book) Snapshot(depth int) (bids []PriceLevel, asks []PriceLevel) {
	return b.bids.depth(depth), b.asks.depth(depth)
}

// Order returns a copy of the live order with the given id.
func (b *Book) Order(id uint64) (Order, bool) {
	h, ok := b.orders[id]
	if !ok {
		return Order{}, false
	}
	return b.arena.at(h).order, true
}

// Len returns the number of live orders.
func (b *Book) Len() int {
	return len(b.orders)
}

// Stats returns usage statistics for the book.
func (b *Book) Stats() BookStats {
	return BookStats{
		BidDepthCount: b.bids.depthCount(),
		BidOrderCount: b.bids.orderCount(),
		AskDepthCount: b.asks.depthCount(),
		AskOrderCount: b.asks.orderCount(),
	}
}

// SequenceID returns the sequence ID of the last published event.
func (b *Book) SequenceID() uint64 {
	return b.seqID.Load()
}

// Close releases every live order back to the arena and empties the book.
func (b *Book) Close() {
	for id, h := range b.orders {
		b.sideFor(b.arena.at(h).order.Side).remove(h)
		b.arena.release(h)
		delete(b.orders, id)
	}
}

func (b *Book) publish(logs []*BookLog) {
	if len(logs) == 0 {
		return
	}
	b.pub.Publish(logs...)
	for _, log := range logs {
		releaseBookLog(log)
	}
}
