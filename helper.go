package book

import "github.com/shopspring/decimal"

// DepthChange represents a change in the order book depth.
type DepthChange struct {
	Side    Side
	Price   decimal.Decimal
	QtyDiff int64
}

// DepthChanges derives the per-level depth deltas implied by a BookLog.
// Match events relieve liquidity on both sides at each order's book price,
// which may differ from the execution price when the book was crossed.
// Price-changing amends only remove the old level entry here; the new state
// arrives through the subsequent open and match events of the reinsert.
func DepthChanges(log *BookLog) []DepthChange {
	switch log.Type {
	case LogTypeOpen:
		return []DepthChange{{
			Side:    log.Side,
			Price:   log.Price,
			QtyDiff: int64(log.Quantity),
		}}
	case LogTypeCancel:
		return []DepthChange{{
			Side:    log.Side,
			Price:   log.Price,
			QtyDiff: -int64(log.Quantity),
		}}
	case LogTypeMatch:
		return []DepthChange{
			{
				Side:    Buy,
				Price:   log.BuyPrice,
				QtyDiff: -int64(log.Quantity),
			},
			{
				Side:    Sell,
				Price:   log.SellPrice,
				QtyDiff: -int64(log.Quantity),
			},
		}
	case LogTypeAmend:
		if !log.OldPrice.Equal(log.Price) {
			return []DepthChange{{
				Side:    log.Side,
				Price:   log.OldPrice,
				QtyDiff: -int64(log.OldQuantity),
			}}
		}

		return []DepthChange{{
			Side:    log.Side,
			Price:   log.Price,
			QtyDiff: int64(log.Quantity) - int64(log.OldQuantity),
		}}
	}

	return nil
}
