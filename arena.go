package book

// Handle is a stable reference to an order slot in the arena. Handles stay
// valid for the lifetime of the order regardless of arena internals, so both
// the identity index and the side-book FIFOs can hold the same handle.
type Handle int32

const nilHandle Handle = -1

// DefaultCapacity is the arena size used when no WithCapacity option is given.
const DefaultCapacity = 10_000

// slot is one arena cell: the order record plus the intrusive FIFO links used
// by the price level the order rests in.
type slot struct {
	order Order
	next  Handle
	prev  Handle
}

// arena is a fixed-capacity pool of order slots with a LIFO free list.
// Capacity is fixed at construction; alloc fails with ErrCapacityExhausted
// rather than growing, which keeps worst-case latency bounded.
type arena struct {
	slots []slot
	free  []Handle
}

func newArena(capacity int) *arena {
	a := &arena{
		slots: make([]slot, capacity),
		free:  make([]Handle, 0, capacity),
	}
	for i := capacity - 1; i >= 0; i-- {
		a.free = append(a.free, Handle(i))
	}
	return a
}

// alloc hands out a free slot. The slot contents are not reset; the caller
// overwrites them.
func (a *arena) alloc() (Handle, error) {
	if len(a.free) == 0 {
		return nilHandle, ErrCapacityExhausted
	}
	h := a.free[len(a.free)-1]
	a.free = a.free[:len(a.free)-1]
	return h, nil
}

// release returns a slot to the free list. The handle must have been returned
// by alloc and not released since.
func (a *arena) release(h Handle) {
	a.free = append(a.free, h)
}

func (a *arena) at(h Handle) *slot {
	return &a.slots[h]
}

func (a *arena) capacity() int {
	return len(a.slots)
}

func (a *arena) freeCount() int {
	return len(a.free)
}
