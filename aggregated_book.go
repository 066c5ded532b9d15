package book

import (
	"sync"

	"github.com/igrmk/treemap/v2"
	"github.com/shopspring/decimal"
)

// AggregatedBook maintains a simplified view of the order book, tracking only
// price levels and their aggregated quantities. It is designed for downstream
// consumers that rebuild depth state from the BookLog stream without touching
// the book itself.
type AggregatedBook struct {
	mu    sync.RWMutex
	seqID uint64 // last applied SequenceID, for gap detection
	bid   *treemap.TreeMap[decimal.Decimal, uint64]
	ask   *treemap.TreeMap[decimal.Decimal, uint64]
}

// NewAggregatedBook creates a new AggregatedBook with empty bid and ask sides.
func NewAggregatedBook() *AggregatedBook {
	less := func(a, b decimal.Decimal) bool {
		return a.LessThan(b)
	}
	return &AggregatedBook{
		bid: treemap.NewWithKeyCompare[decimal.Decimal, uint64](less),
		ask: treemap.NewWithKeyCompare[decimal.Decimal, uint64](less),
	}
}

// SequenceID returns the last applied sequence ID.
func (ab *AggregatedBook) SequenceID() uint64 {
	ab.mu.RLock()
	defer ab.mu.RUnlock()
	return ab.seqID
}

// Replay applies a BookLog event to the aggregated state. Events must arrive
// in sequence order; a gap returns ErrSequenceGap and leaves the state
// untouched. The first event observed seeds the sequence.
func (ab *AggregatedBook) Replay(log *BookLog) error {
	ab.mu.Lock()
	defer ab.mu.Unlock()

	if ab.seqID != 0 && log.SequenceID != ab.seqID+1 {
		return ErrSequenceGap
	}
	ab.seqID = log.SequenceID

	for _, change := range DepthChanges(log) {
		ab.applyChange(change)
	}
	return nil
}

func (ab *AggregatedBook) applyChange(change DepthChange) {
	side := ab.bid
	if change.Side == Sell {
		side = ab.ask
	}

	current, _ := side.Get(change.Price)
	next := int64(current) + change.QtyDiff
	if next <= 0 {
		side.Del(change.Price)
		return
	}
	side.Set(change.Price, uint64(next))
}

// Depth returns the aggregated quantity at a specific price level for the
// given side. Returns zero if the price level does not exist.
func (ab *AggregatedBook) Depth(side Side, price decimal.Decimal) uint64 {
	ab.mu.RLock()
	defer ab.mu.RUnlock()

	tm := ab.bid
	if side == Sell {
		tm = ab.ask
	}

	qty, _ := tm.Get(price)
	return qty
}

// Top returns up to n levels for the side in best-first order: descending
// prices for bids, ascending for asks.
func (ab *AggregatedBook) Top(side Side, n int) []PriceLevel {
	ab.mu.RLock()
	defer ab.mu.RUnlock()

	result := make([]PriceLevel, 0, n)

	if side == Buy {
		for it := ab.bid.Reverse(); it.Valid() && len(result) < n; it.Next() {
			result = append(result, PriceLevel{Price: it.Key(), TotalQuantity: it.Value()})
		}
		return result
	}

	for it := ab.ask.Iterator(); it.Valid() && len(result) < n; it.Next() {
		result = append(result, PriceLevel{Price: it.Key(), TotalQuantity: it.Value()})
	}
	return result
}
