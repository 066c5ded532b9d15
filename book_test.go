package book

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// checkInvariants walks every structure and asserts the cross-structure
// invariants that must hold after any public operation.
func checkInvariants(t *testing.T, b *Book) {
	t.Helper()

	seen := make(map[uint64]bool)
	live := 0

	for _, sb := range []*sideBook{b.bids, b.asks} {
		var levels, orders int64
		for el := sb.levels.Front(); el != nil; el = el.Next() {
			unit, _ := el.Value.(*priceUnit)
			levelPrice, _ := el.Key().(decimal.Decimal)

			// no empty levels
			require.Greater(t, unit.count, int64(0))

			var n int64
			var total uint64
			for h := unit.head; h != nilHandle; h = b.arena.at(h).next {
				o := b.arena.at(h).order

				// each id appears exactly once across both sides
				require.False(t, seen[o.ID], "order %d appears twice", o.ID)
				seen[o.ID] = true

				// identity index resolves to the same handle
				indexed, ok := b.orders[o.ID]
				require.True(t, ok, "order %d missing from identity index", o.ID)
				require.Equal(t, indexed, h)

				// live orders have positive quantity and rest at the level price
				require.Greater(t, o.Quantity, uint64(0))
				require.True(t, o.Price.Equal(levelPrice))
				require.Equal(t, sb.side, o.Side)

				total += o.Quantity
				n++
				live++
			}
			require.Equal(t, unit.count, n)
			require.Equal(t, unit.totalQty, total)
			levels++
			orders += n
		}
		require.Equal(t, sb.depthCount(), levels)
		require.Equal(t, sb.orderCount(), orders)
	}

	// identity index holds nothing beyond the FIFOs
	require.Equal(t, len(b.orders), live)

	// the book is never left crossed
	if bidEl, askEl := b.bids.best(), b.asks.best(); bidEl != nil && askEl != nil {
		bidPrice, _ := bidEl.Key().(decimal.Decimal)
		askPrice, _ := askEl.Key().(decimal.Decimal)
		require.True(t, bidPrice.LessThan(askPrice),
			"book is crossed: bid %s >= ask %s", bidPrice, askPrice)
	}

	// free slots plus live orders account for the whole arena
	require.Equal(t, b.arena.capacity(), b.arena.freeCount()+live)
}

func addLimit(t *testing.T, b *Book, id uint64, side Side, price string, qty uint64) {
	t.Helper()
	require.NoError(t, b.AddOrder(Order{ID: id, Side: side, Price: d(price), Quantity: qty}))
	checkInvariants(t, b)
}

func TestAddOrderValidation(t *testing.T) {
	pub := NewLogRecorder()
	b := NewBook(pub)

	err := b.AddOrder(Order{ID: 1, Side: Buy, Price: d("100"), Quantity: 0})
	assert.Equal(t, ErrInvalidQuantity, err)

	addLimit(t, b, 1, Buy, "100", 10)

	err = b.AddOrder(Order{ID: 1, Side: Sell, Price: d("101"), Quantity: 10})
	assert.Equal(t, ErrDuplicateOrderID, err)
	checkInvariants(t, b)

	// rejected adds publish nothing beyond the original open
	assert.Equal(t, 1, pub.Count())
}

func TestCapacityExhausted(t *testing.T) {
	b := NewBook(nil, WithCapacity(2))

	addLimit(t, b, 1, Buy, "100", 10)
	addLimit(t, b, 2, Buy, "99", 10)

	err := b.AddOrder(Order{ID: 3, Side: Buy, Price: d("98"), Quantity: 10})
	assert.Equal(t, ErrCapacityExhausted, err)

	// no partial state committed
	_, live := b.Order(3)
	assert.False(t, live)
	checkInvariants(t, b)

	// matching frees slots again
	mustAdd := func(id uint64, side Side, price string, qty uint64) {
		require.NoError(t, b.AddOrder(Order{ID: id, Side: side, Price: d(price), Quantity: qty}))
	}
	require.True(t, b.CancelOrder(2))
	mustAdd(4, Sell, "100", 10) // fully fills order 1, both slots return
	checkInvariants(t, b)
	assert.Equal(t, 0, b.Len())

	mustAdd(5, Buy, "97", 1)
	mustAdd(6, Buy, "96", 1)
	checkInvariants(t, b)
}

func TestTimestampSentinel(t *testing.T) {
	var now uint64 = 1_000
	b := NewBook(nil, WithClock(func() uint64 {
		now++
		return now
	}))

	require.NoError(t, b.AddOrder(Order{ID: 1, Side: Buy, Price: d("100"), Quantity: 10}))
	o, ok := b.Order(1)
	require.True(t, ok)
	assert.Equal(t, uint64(1_001), o.Timestamp)

	// a non-zero timestamp is preserved verbatim, with no validation
	require.NoError(t, b.AddOrder(Order{ID: 2, Side: Buy, Price: d("99"), Quantity: 10, Timestamp: 5}))
	o, ok = b.Order(2)
	require.True(t, ok)
	assert.Equal(t, uint64(5), o.Timestamp)
}

func TestFIFOWithinLevel(t *testing.T) {
	pub := NewLogRecorder()
	b := NewBook(pub)

	addLimit(t, b, 20, Buy, "95.00", 100)
	addLimit(t, b, 21, Buy, "95.00", 200)
	addLimit(t, b, 22, Buy, "95.00", 300)

	addLimit(t, b, 23, Sell, "95.00", 250)

	matches := pub.Trades()
	require.Len(t, matches, 2)

	assert.Equal(t, uint64(100), matches[0].Quantity)
	assert.True(t, matches[0].Price.Equal(d("95.00")))
	assert.Equal(t, uint64(20), matches[0].BuyOrderID)
	assert.Equal(t, uint64(23), matches[0].SellOrderID)

	assert.Equal(t, uint64(150), matches[1].Quantity)
	assert.True(t, matches[1].Price.Equal(d("95.00")))
	assert.Equal(t, uint64(21), matches[1].BuyOrderID)
	assert.Equal(t, uint64(23), matches[1].SellOrderID)

	_, live := b.Order(20)
	assert.False(t, live)
	o, live := b.Order(21)
	require.True(t, live)
	assert.Equal(t, uint64(50), o.Quantity)
	o, live = b.Order(22)
	require.True(t, live)
	assert.Equal(t, uint64(300), o.Quantity)
	_, live = b.Order(23)
	assert.False(t, live)
}

func TestAggressiveCrossConsumesMultipleLevels(t *testing.T) {
	pub := NewLogRecorder()
	b := NewBook(pub)

	addLimit(t, b, 1, Buy, "100.50", 100)
	addLimit(t, b, 3, Buy, "100.50", 50)
	addLimit(t, b, 2, Buy, "100.25", 150)
	addLimit(t, b, 4, Buy, "99.75", 200)
	addLimit(t, b, 5, Sell, "101.00", 100)

	addLimit(t, b, 10, Sell, "99.00", 600)

	matches := pub.Trades()
	require.Len(t, matches, 4)

	expected := []struct {
		qty   uint64
		price string
		buyID uint64
	}{
		{100, "100.50", 1},
		{50, "100.50", 3},
		{150, "100.25", 2},
		{200, "99.75", 4},
	}
	for i, want := range expected {
		assert.Equal(t, want.qty, matches[i].Quantity)
		assert.True(t, matches[i].Price.Equal(d(want.price)), "trade %d price %s", i, matches[i].Price)
		assert.Equal(t, want.buyID, matches[i].BuyOrderID)
		assert.Equal(t, uint64(10), matches[i].SellOrderID)
	}

	// the remainder rests as the new best ask; the bid side is empty
	o, live := b.Order(10)
	require.True(t, live)
	assert.Equal(t, uint64(100), o.Quantity)

	bids, asks := b.Snapshot(10)
	assert.Empty(t, bids)
	require.Len(t, asks, 2)
	assert.True(t, asks[0].Price.Equal(d("99.00")))
	assert.Equal(t, uint64(100), asks[0].TotalQuantity)
}

func TestCancelOrder(t *testing.T) {
	b := NewBook(nil)

	addLimit(t, b, 5, Sell, "101.00", 100)
	addLimit(t, b, 7, Sell, "101.00", 75)

	assert.True(t, b.CancelOrder(5))
	checkInvariants(t, b)

	_, asks := b.Snapshot(10)
	require.Len(t, asks, 1)
	assert.True(t, asks[0].Price.Equal(d("101.00")))
	assert.Equal(t, uint64(75), asks[0].TotalQuantity)

	assert.False(t, b.CancelOrder(5))
	checkInvariants(t, b)
}

func TestCancelRestoresPreAddState(t *testing.T) {
	b := NewBook(nil)

	addLimit(t, b, 1, Buy, "100.50", 100)
	addLimit(t, b, 2, Buy, "100.25", 150)

	beforeBids, beforeAsks := b.Snapshot(10)
	beforeStats := b.Stats()
	beforeFree := b.arena.freeCount()

	addLimit(t, b, 9, Buy, "100.10", 42)
	require.True(t, b.CancelOrder(9))
	checkInvariants(t, b)

	afterBids, afterAsks := b.Snapshot(10)
	assert.Equal(t, beforeBids, afterBids)
	assert.Equal(t, beforeAsks, afterAsks)
	assert.Equal(t, beforeStats, b.Stats())
	assert.Equal(t, beforeFree, b.arena.freeCount())
}

func TestAmendPriceChange(t *testing.T) {
	b := NewBook(nil)

	addLimit(t, b, 1, Buy, "100.50", 100)
	addLimit(t, b, 3, Buy, "100.50", 50)

	assert.True(t, b.AmendOrder(1, d("100.75"), 100))
	checkInvariants(t, b)

	bids, _ := b.Snapshot(10)
	require.Len(t, bids, 2)
	assert.True(t, bids[0].Price.Equal(d("100.75")))
	assert.Equal(t, uint64(100), bids[0].TotalQuantity)
	assert.True(t, bids[1].Price.Equal(d("100.50")))
	assert.Equal(t, uint64(50), bids[1].TotalQuantity)
}

func TestAmendQuantityPreservesPriority(t *testing.T) {
	pub := NewLogRecorder()
	b := NewBook(pub)

	addLimit(t, b, 1, Buy, "100.50", 100)
	addLimit(t, b, 3, Buy, "100.50", 50)

	// size-up in place keeps queue position and does not match
	assert.True(t, b.AmendOrder(3, d("100.50"), 200))
	checkInvariants(t, b)
	assert.Empty(t, pub.Trades())

	addLimit(t, b, 77, Sell, "100.50", 150)

	matches := pub.Trades()
	require.Len(t, matches, 2)
	assert.Equal(t, uint64(1), matches[0].BuyOrderID)
	assert.Equal(t, uint64(100), matches[0].Quantity)
	assert.Equal(t, uint64(3), matches[1].BuyOrderID)
	assert.Equal(t, uint64(50), matches[1].Quantity)

	o, live := b.Order(3)
	require.True(t, live)
	assert.Equal(t, uint64(150), o.Quantity)
}

func TestAmendPriceForfeitsPriority(t *testing.T) {
	pub := NewLogRecorder()
	b := NewBook(pub)

	addLimit(t, b, 1, Buy, "100.50", 100)
	addLimit(t, b, 2, Buy, "100.50", 50)

	// amend away and back; order 1 now queues behind order 2
	assert.True(t, b.AmendOrder(1, d("100.60"), 100))
	checkInvariants(t, b)
	assert.True(t, b.AmendOrder(1, d("100.50"), 100))
	checkInvariants(t, b)

	addLimit(t, b, 9, Sell, "100.50", 60)

	matches := pub.Trades()
	require.Len(t, matches, 2)
	assert.Equal(t, uint64(2), matches[0].BuyOrderID)
	assert.Equal(t, uint64(50), matches[0].Quantity)
	assert.Equal(t, uint64(1), matches[1].BuyOrderID)
	assert.Equal(t, uint64(10), matches[1].Quantity)
}

func TestAmendNotFoundAndInvalid(t *testing.T) {
	b := NewBook(nil)

	assert.False(t, b.CancelOrder(9999))
	assert.False(t, b.AmendOrder(9999, d("100"), 100))
	checkInvariants(t, b)

	addLimit(t, b, 1, Buy, "100", 10)
	assert.False(t, b.AmendOrder(1, d("100"), 0))
	o, _ := b.Order(1)
	assert.Equal(t, uint64(10), o.Quantity)
}

func TestEqualBestPricesTrade(t *testing.T) {
	pub := NewLogRecorder()
	b := NewBook(pub)

	addLimit(t, b, 1, Buy, "100.00", 10)
	addLimit(t, b, 2, Sell, "100.00", 10)

	matches := pub.Trades()
	require.Len(t, matches, 1)
	assert.True(t, matches[0].Price.Equal(d("100.00")))
	assert.Equal(t, uint64(10), matches[0].Quantity)
	assert.Equal(t, 0, b.Len())
}

func TestTradePriceSetByRestingOrder(t *testing.T) {
	t.Run("resting bid sets the price", func(t *testing.T) {
		pub := NewLogRecorder()
		b := NewBook(pub)

		addLimit(t, b, 1, Buy, "101.00", 10)
		addLimit(t, b, 2, Sell, "99.00", 10)

		matches := pub.Trades()
		require.Len(t, matches, 1)
		assert.True(t, matches[0].Price.Equal(d("101.00")))
		assert.Equal(t, Sell, matches[0].Side)
	})

	t.Run("resting ask sets the price", func(t *testing.T) {
		pub := NewLogRecorder()
		b := NewBook(pub)

		addLimit(t, b, 1, Sell, "99.00", 10)
		addLimit(t, b, 2, Buy, "101.00", 10)

		matches := pub.Trades()
		require.Len(t, matches, 1)
		assert.True(t, matches[0].Price.Equal(d("99.00")))
		assert.Equal(t, Buy, matches[0].Side)
	})

	t.Run("equal timestamps use the bid price", func(t *testing.T) {
		pub := NewLogRecorder()
		b := NewBook(pub)

		require.NoError(t, b.AddOrder(Order{ID: 1, Side: Buy, Price: d("101.00"), Quantity: 10, Timestamp: 42}))
		require.NoError(t, b.AddOrder(Order{ID: 2, Side: Sell, Price: d("99.00"), Quantity: 10, Timestamp: 42}))

		matches := pub.Trades()
		require.Len(t, matches, 1)
		assert.True(t, matches[0].Price.Equal(d("101.00")))
	})
}

func TestSnapshotDepth(t *testing.T) {
	b := NewBook(nil)

	addLimit(t, b, 1, Buy, "100.50", 100)
	addLimit(t, b, 2, Buy, "100.25", 150)
	addLimit(t, b, 3, Buy, "100.50", 50)
	addLimit(t, b, 4, Buy, "99.75", 200)
	addLimit(t, b, 5, Sell, "101.00", 100)

	bids, asks := b.Snapshot(2)
	require.Len(t, bids, 2)
	assert.True(t, bids[0].Price.Equal(d("100.50")))
	assert.Equal(t, uint64(150), bids[0].TotalQuantity)
	assert.Equal(t, int64(2), bids[0].Orders)
	assert.True(t, bids[1].Price.Equal(d("100.25")))

	// lists are shorter than depth when the book is thin
	require.Len(t, asks, 1)
	assert.True(t, asks[0].Price.Equal(d("101.00")))
}

func TestCloseReleasesEverything(t *testing.T) {
	b := NewBook(nil, WithCapacity(16))

	addLimit(t, b, 1, Buy, "100", 10)
	addLimit(t, b, 2, Buy, "99", 10)
	addLimit(t, b, 3, Sell, "105", 10)

	b.Close()

	assert.Equal(t, 0, b.Len())
	assert.Equal(t, 16, b.arena.freeCount())
	assert.Equal(t, int64(0), b.bids.orderCount())
	assert.Equal(t, int64(0), b.asks.orderCount())
	assert.Equal(t, int64(0), b.bids.depthCount())
	assert.Equal(t, int64(0), b.asks.depthCount())
}

func TestSnapshotRestore(t *testing.T) {
	pub := NewLogRecorder()
	b := NewBook(pub, WithMarket("BTC-USDT"))

	addLimit(t, b, 1, Buy, "100.50", 100)
	addLimit(t, b, 2, Buy, "100.50", 50)
	addLimit(t, b, 3, Buy, "100.25", 150)
	addLimit(t, b, 4, Sell, "101.00", 75)

	snap := b.snapshot()
	assert.Equal(t, "BTC-USDT", snap.MarketID)
	require.Len(t, snap.Bids, 3)
	require.Len(t, snap.Asks, 1)
	assert.Equal(t, uint64(1), snap.Bids[0].ID)
	assert.Equal(t, uint64(2), snap.Bids[1].ID)
	assert.Equal(t, uint64(3), snap.Bids[2].ID)

	pub2 := NewLogRecorder()
	restored := NewBook(pub2)
	require.NoError(t, restored.Restore(snap))
	checkInvariants(t, restored)
	assert.Equal(t, snap.SeqID, restored.SequenceID())

	// FIFO priority survives the round trip
	require.NoError(t, restored.AddOrder(Order{ID: 9, Side: Sell, Price: d("100.50"), Quantity: 120}))
	matches := pub2.Trades()
	require.Len(t, matches, 2)
	assert.Equal(t, uint64(1), matches[0].BuyOrderID)
	assert.Equal(t, uint64(100), matches[0].Quantity)
	assert.Equal(t, uint64(2), matches[1].BuyOrderID)
	assert.Equal(t, uint64(20), matches[1].Quantity)
}

func TestRestoreOverCapacity(t *testing.T) {
	b := NewBook(nil)
	addLimit(t, b, 1, Buy, "100", 10)
	addLimit(t, b, 2, Buy, "99", 10)
	snap := b.snapshot()

	small := NewBook(nil, WithCapacity(1))
	assert.Equal(t, ErrCapacityExhausted, small.Restore(snap))
}

func TestLogSequenceIsContiguous(t *testing.T) {
	pub := NewLogRecorder()
	b := NewBook(pub)

	addLimit(t, b, 1, Buy, "100.50", 100)
	addLimit(t, b, 2, Buy, "100.50", 50)
	require.True(t, b.AmendOrder(2, d("100.50"), 80))
	require.True(t, b.AmendOrder(1, d("100.60"), 100))
	addLimit(t, b, 3, Sell, "100.50", 200)
	require.True(t, b.CancelOrder(3))

	logs := pub.Logs()
	require.NotEmpty(t, logs)
	for i, log := range logs {
		assert.Equal(t, uint64(i+1), log.SequenceID)
	}
}
