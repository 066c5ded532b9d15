package book

import (
	"github.com/huandu/skiplist"
	"github.com/shopspring/decimal"
)

// priceUnit is one active price level: an intrusive FIFO of arena handles in
// arrival order, plus the maintained aggregate used by depth snapshots.
type priceUnit struct {
	totalQty uint64
	head     Handle
	tail     Handle
	count    int64
}

// sideBook maintains the ordered set of active price levels for one side.
// Iterating the skiplist from the front yields the most aggressive level first
// (highest price for bids, lowest for asks). FIFO links live in the arena
// slots, so the level itself only stores the head and tail handles.
type sideBook struct {
	side   Side
	arena  *arena
	levels *skiplist.SkipList
	orders int64
	depths int64
}

// newBidBook creates the buy side. Levels are sorted by price in descending
// order (highest price first).
func newBidBook(a *arena) *sideBook {
	return &sideBook{
		side:  Buy,
		arena: a,
		levels: skiplist.New(skiplist.GreaterThanFunc(func(lhs, rhs any) int {
			d1, _ := lhs.(decimal.Decimal)
			d2, _ := rhs.(decimal.Decimal)

			if d1.LessThan(d2) {
				return 1
			} else if d1.GreaterThan(d2) {
				return -1
			}

			return 0
		})),
	}
}

// newAskBook creates the sell side. Levels are sorted by price in ascending
// order (lowest price first).
func newAskBook(a *arena) *sideBook {
	return &sideBook{
		side:  Sell,
		arena: a,
		levels: skiplist.New(skiplist.GreaterThanFunc(func(lhs, rhs any) int {
			d1, _ := lhs.(decimal.Decimal)
			d2, _ := rhs.(decimal.Decimal)

			if d1.GreaterThan(d2) {
				return 1
			} else if d1.LessThan(d2) {
				return -1
			}

			return 0
		})),
	}
}

// push appends the handle to the tail of the FIFO at its order's price,
// creating the level if absent.
func (sb *sideBook) push(h Handle) {
	s := sb.arena.at(h)
	price := s.order.Price

	el := sb.levels.Get(price)
	if el != nil {
		unit, _ := el.Value.(*priceUnit)
		s.prev = unit.tail
		s.next = nilHandle
		if unit.tail != nilHandle {
			sb.arena.at(unit.tail).next = h
		}
		unit.tail = h
		if unit.head == nilHandle {
			unit.head = h
		}
		unit.totalQty += s.order.Quantity
		unit.count++
	} else {
		s.next = nilHandle
		s.prev = nilHandle
		sb.levels.Set(price, &priceUnit{
			totalQty: s.order.Quantity,
			head:     h,
			tail:     h,
			count:    1,
		})
		sb.depths++
	}

	sb.orders++
}

// remove unlinks the handle from the FIFO at its price and deletes the level
// if it becomes empty. The handle must currently rest in this side book.
func (sb *sideBook) remove(h Handle) {
	s := sb.arena.at(h)

	el := sb.levels.Get(s.order.Price)
	if el == nil {
		return
	}
	unit, _ := el.Value.(*priceUnit)

	if s.prev != nilHandle {
		sb.arena.at(s.prev).next = s.next
	} else {
		unit.head = s.next
	}

	if s.next != nilHandle {
		sb.arena.at(s.next).prev = s.prev
	} else {
		unit.tail = s.prev
	}

	s.next = nilHandle
	s.prev = nilHandle

	unit.totalQty -= s.order.Quantity
	unit.count--
	sb.orders--

	if unit.count == 0 {
		sb.levels.RemoveElement(el)
		sb.depths--
	}
}

// peekHead returns the handle at the front of the best level without removing
// it, or nilHandle if the side is empty.
func (sb *sideBook) peekHead() Handle {
	el := sb.levels.Front()
	if el == nil {
		return nilHandle
	}

	unit, _ := el.Value.(*priceUnit)
	return unit.head
}

// popHead removes and returns the handle at the front of the best level.
func (sb *sideBook) popHead() Handle {
	h := sb.peekHead()
	if h != nilHandle {
		sb.remove(h)
	}
	return h
}

// best returns the most aggressive level, or nil if the side is empty.
func (sb *sideBook) best() *skiplist.Element {
	return sb.levels.Front()
}

// reduceQty decrements the order's remaining quantity and the level aggregate
// by delta. Used by the matching loop for fills; the order stays in place.
func (sb *sideBook) reduceQty(h Handle, delta uint64) {
	s := sb.arena.at(h)

	el := sb.levels.Get(s.order.Price)
	if el == nil {
		return
	}
	unit, _ := el.Value.(*priceUnit)

	unit.totalQty -= delta
	s.order.Quantity -= delta
}

// updateQty sets the order's remaining quantity in place, preserving its FIFO
// position. Used by the quantity-only amend path.
func (sb *sideBook) updateQty(h Handle, newQty uint64) {
	s := sb.arena.at(h)

	el := sb.levels.Get(s.order.Price)
	if el == nil {
		return
	}
	unit, _ := el.Value.(*priceUnit)

	unit.totalQty = unit.totalQty - s.order.Quantity + newQty
	s.order.Quantity = newQty
}

// depth returns up to limit aggregated levels in best-first order.
func (sb *sideBook) depth(limit int) []PriceLevel {
	result := make([]PriceLevel, 0, limit)

	el := sb.levels.Front()
	for i := 0; i < limit && el != nil; i++ {
		unit, _ := el.Value.(*priceUnit)
		price, _ := el.Key().(decimal.Decimal)
		result = append(result, PriceLevel{
			Price:         price,
			TotalQuantity: unit.totalQty,
			Orders:        unit.count,
		})
		el = el.Next()
	}

	return result
}

// appendOrders copies every resting order into dst in priority order
// (best level first, FIFO within each level).
func (sb *sideBook) appendOrders(dst []Order) []Order {
	el := sb.levels.Front()
	for el != nil {
		unit, _ := el.Value.(*priceUnit)

		h := unit.head
		for h != nilHandle {
			s := sb.arena.at(h)
			dst = append(dst, s.order)
			h = s.next
		}

		el = el.Next()
	}
	return dst
}

// orderCount returns the total number of orders resting on this side.
func (sb *sideBook) orderCount() int64 {
	return sb.orders
}

// depthCount returns the number of active price levels.
func (sb *sideBook) depthCount() int64 {
	return sb.depths
}
