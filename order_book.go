package book

import (
	"context"
	"log/slog"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
)

// commandType identifies the payload of a command sent to the book loop.
type commandType uint8

const (
	cmdAddOrder commandType = iota + 1
	cmdCancelOrder
	cmdAmendOrder
	cmdDepth
	cmdGetStats
	cmdSnapshot
)

type amendRequest struct {
	orderID  uint64
	newPrice decimal.Decimal
	newQty   uint64
}

// command is the unified carrier for everything entering the book loop.
// Read commands carry a response channel; mutating commands are fire-and-forget.
type command struct {
	typ     commandType
	payload any
	resp    chan any
}

// OrderBook serializes access to a Book through a single-consumer command
// loop. Multiple goroutines may submit concurrently; the loop applies mutating
// commands in arrival order and answers read commands on their response
// channel. This is the serialization layer the core itself does not provide.
type OrderBook struct {
	marketID         string
	book             *Book
	log              *slog.Logger
	isShutdown       atomic.Bool
	cmdChan          chan command
	done             chan struct{}
	shutdownComplete chan struct{}
}

// NewOrderBook creates a serialized order book for one market.
func NewOrderBook(marketID string, pub PublishLog, opts ...Option) *OrderBook {
	opts = append(opts, WithMarket(marketID))
	return &OrderBook{
		marketID:         marketID,
		book:             NewBook(pub, opts...),
		log:              marketLogger(marketID),
		cmdChan:          make(chan command, 32768),
		done:             make(chan struct{}),
		shutdownComplete: make(chan struct{}),
	}
}

// AddOrder submits an order to the order book asynchronously.
// Returns ErrShutdown if the order book is shutting down and ErrInvalidQuantity
// for a zero quantity. Other admission failures (duplicate id, full arena) are
// logged by the loop.
func (ob *OrderBook) AddOrder(ctx context.Context, order Order) error {
	if ob.isShutdown.Load() {
		return ErrShutdown
	}

	if order.Quantity == 0 {
		return ErrInvalidQuantity
	}

	select {
	case ob.cmdChan <- command{typ: cmdAddOrder, payload: order}:
		return nil
	case <-ctx.Done():
		return ErrTimeout
	}
}

// CancelOrder submits a cancellation request for an order asynchronously.
func (ob *OrderBook) CancelOrder(ctx context.Context, id uint64) error {
	if ob.isShutdown.Load() {
		return ErrShutdown
	}

	select {
	case ob.cmdChan <- command{typ: cmdCancelOrder, payload: id}:
		return nil
	case <-ctx.Done():
		return ErrTimeout
	}
}

// AmendOrder submits a request to modify an existing order asynchronously.
func (ob *OrderBook) AmendOrder(ctx context.Context, id uint64, newPrice decimal.Decimal, newQty uint64) error {
	if ob.isShutdown.Load() {
		return ErrShutdown
	}

	if newQty == 0 {
		return ErrInvalidQuantity
	}

	select {
	case ob.cmdChan <- command{typ: cmdAmendOrder, payload: amendRequest{orderID: id, newPrice: newPrice, newQty: newQty}}:
		return nil
	case <-ctx.Done():
		return ErrTimeout
	}
}

// Depth returns the current depth of the order book up to the specified limit.
func (ob *OrderBook) Depth(limit int) (*Depth, error) {
	if limit <= 0 {
		return nil, ErrInvalidParam
	}

	res, err := ob.query(cmdDepth, limit)
	if err != nil {
		return nil, err
	}

	depth, _ := res.(*Depth)
	return depth, nil
}

// GetStats returns usage statistics for the order book.
func (ob *OrderBook) GetStats() (*BookStats, error) {
	res, err := ob.query(cmdGetStats, nil)
	if err != nil {
		return nil, err
	}

	stats, _ := res.(*BookStats)
	return stats, nil
}

// TakeSnapshot captures the current state of the order book.
// It is thread-safe and interacts with the book loop via a channel.
func (ob *OrderBook) TakeSnapshot() (*BookSnapshot, error) {
	res, err := ob.query(cmdSnapshot, nil)
	if err != nil {
		return nil, err
	}

	snap, _ := res.(*BookSnapshot)
	return snap, nil
}

// Restore rebuilds the underlying book from a snapshot.
// Call before Start; the loop must not be consuming yet.
func (ob *OrderBook) Restore(snap *BookSnapshot) error {
	return ob.book.Restore(snap)
}

// query sends a read command and waits for its response.
func (ob *OrderBook) query(typ commandType, payload any) (any, error) {
	respChan := make(chan any, 1)

	select {
	case ob.cmdChan <- command{typ: typ, payload: payload, resp: respChan}:
	case <-time.After(time.Second):
		return nil, ErrTimeout
	}

	select {
	case res := <-respChan:
		return res, nil
	case <-time.After(time.Second):
		return nil, ErrTimeout
	}
}

// Start starts the order book loop to process orders, cancellations, and
// depth requests. Returns nil when Shutdown is called and all pending
// commands are drained.
func (ob *OrderBook) Start() error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	for {
		select {
		case <-ob.done:
			return ob.drain()
		case cmd := <-ob.cmdChan:
			ob.apply(cmd)
		}
	}
}

// Shutdown signals the order book to stop accepting new commands and waits
// for all pending commands to be processed. Returns ctx.Err() if the context
// expires first.
func (ob *OrderBook) Shutdown(ctx context.Context) error {
	if ob.isShutdown.CompareAndSwap(false, true) {
		close(ob.done)
	}

	select {
	case <-ob.shutdownComplete:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// drain processes all remaining commands in the channel before returning.
func (ob *OrderBook) drain() error {
	defer close(ob.shutdownComplete)

	for {
		select {
		case cmd := <-ob.cmdChan:
			ob.apply(cmd)
		default:
			return nil
		}
	}
}

// apply executes one command against the underlying book.
func (ob *OrderBook) apply(cmd command) {
	switch cmd.typ {
	case cmdAddOrder:
		if order, ok := cmd.payload.(Order); ok {
			if err := ob.book.AddOrder(order); err != nil {
				ob.log.Warn("order rejected", "order_id", order.ID, "error", err)
			}
		}
	case cmdCancelOrder:
		if id, ok := cmd.payload.(uint64); ok {
			ob.book.CancelOrder(id)
		}
	case cmdAmendOrder:
		if req, ok := cmd.payload.(amendRequest); ok {
			ob.book.AmendOrder(req.orderID, req.newPrice, req.newQty)
		}
	case cmdDepth:
		if limit, ok := cmd.payload.(int); ok {
			bids, asks := ob.book.Snapshot(limit)
			ob.respond(cmd, &Depth{
				UpdateID: ob.book.SequenceID(),
				Bids:     bids,
				Asks:     asks,
			})
		}
	case cmdGetStats:
		stats := ob.book.Stats()
		ob.respond(cmd, &stats)
	case cmdSnapshot:
		ob.respond(cmd, ob.book.snapshot())
	}
}

func (ob *OrderBook) respond(cmd command, res any) {
	if cmd.resp == nil {
		return
	}
	select {
	case cmd.resp <- res:
	default:
		// Non-blocking send, if no one is listening, just drop it
	}
}
