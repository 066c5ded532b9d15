package book

// BookSnapshot contains the full state of a single book: every resting order
// in priority order (best level first, FIFO within each level), plus the
// sequence counters needed to resume event publication without gaps.
type BookSnapshot struct {
	MarketID string  `json:"market_id"`
	SeqID    uint64  `json:"seq_id"`
	TradeID  uint64  `json:"trade_id"`
	Bids     []Order `json:"bids"`
	Asks     []Order `json:"asks"`
}

// snapshot captures the current state of the book.
func (b *Book) snapshot() *BookSnapshot {
	snap := &BookSnapshot{
		MarketID: b.marketID,
		SeqID:    b.seqID.Load(),
		TradeID:  b.tradeID.Load(),
		Bids:     make([]Order, 0, b.bids.orderCount()),
		Asks:     make([]Order, 0, b.asks.orderCount()),
	}

	snap.Bids = b.bids.appendOrders(snap.Bids)
	snap.Asks = b.asks.appendOrders(snap.Asks)
	return snap
}

// Restore rebuilds the book from a snapshot, replacing any current state.
// Orders are reinserted in the listed order, which preserves FIFO priority,
// bypassing the matching loop; no events are published. Fails with
// ErrCapacityExhausted if the snapshot holds more orders than the arena.
func (b *Book) Restore(snap *BookSnapshot) error {
	if len(snap.Bids)+len(snap.Asks) > b.arena.capacity() {
		return ErrCapacityExhausted
	}

	b.Close()
	b.seqID.Store(snap.SeqID)
	b.tradeID.Store(snap.TradeID)
	b.marketID = snap.MarketID

	restore := func(orders []Order, sb *sideBook) {
		for _, o := range orders {
			h, _ := b.arena.alloc()
			b.arena.at(h).order = o
			b.orders[o.ID] = h
			sb.push(h)
		}
	}

	restore(snap.Bids, b.bids)
	restore(snap.Asks, b.asks)
	return nil
}
