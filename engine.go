package book

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/shopspring/decimal"
)

// Engine manages independent order books for different markets. Each book has
// its own command loop; the engine only routes by market id.
type Engine struct {
	isShutdown atomic.Bool
	orderbooks sync.Map
	pub        PublishLog
}

// NewEngine creates a new engine instance. All books publish to pub.
func NewEngine(pub PublishLog) *Engine {
	return &Engine{
		pub: pub,
	}
}

// CreateMarket creates and starts an order book for the market id.
// Creating an existing market is a no-op.
func (engine *Engine) CreateMarket(marketID string, opts ...Option) error {
	if engine.isShutdown.Load() {
		return ErrShutdown
	}

	if len(marketID) == 0 {
		return ErrInvalidParam
	}

	if _, exists := engine.orderbooks.Load(marketID); exists {
		marketLogger(marketID).Warn("market already exists")
		return nil
	}

	newbook := NewOrderBook(marketID, engine.pub, opts...)
	engine.orderbooks.Store(marketID, newbook)

	go func() {
		_ = newbook.Start()
	}()

	return nil
}

// PlaceOrder routes an order to the book for the market id.
// Returns ErrNotFound if the market does not exist.
func (engine *Engine) PlaceOrder(ctx context.Context, marketID string, order Order) error {
	if engine.isShutdown.Load() {
		return ErrShutdown
	}

	orderbook := engine.Book(marketID)
	if orderbook == nil {
		return ErrNotFound
	}

	return orderbook.AddOrder(ctx, order)
}

// CancelOrder routes a cancellation to the book for the market id.
func (engine *Engine) CancelOrder(ctx context.Context, marketID string, id uint64) error {
	if engine.isShutdown.Load() {
		return ErrShutdown
	}

	orderbook := engine.Book(marketID)
	if orderbook == nil {
		return ErrNotFound
	}

	return orderbook.CancelOrder(ctx, id)
}

// AmendOrder routes an amendment to the book for the market id.
func (engine *Engine) AmendOrder(ctx context.Context, marketID string, id uint64, newPrice decimal.Decimal, newQty uint64) error {
	if engine.isShutdown.Load() {
		return ErrShutdown
	}

	orderbook := engine.Book(marketID)
	if orderbook == nil {
		return ErrNotFound
	}

	return orderbook.AmendOrder(ctx, id, newPrice, newQty)
}

// Book retrieves the order book for a specific market id.
// Returns nil if the market does not exist.
func (engine *Engine) Book(marketID string) *OrderBook {
	b, found := engine.orderbooks.Load(marketID)
	if !found {
		return nil
	}

	orderbook, _ := b.(*OrderBook)
	return orderbook
}

// Shutdown gracefully shuts down all order books in the engine.
// It blocks until all books have drained or the context is cancelled.
func (engine *Engine) Shutdown(ctx context.Context) error {
	engine.isShutdown.Store(true)

	var wg sync.WaitGroup
	var errs []error
	var errMu sync.Mutex

	engine.orderbooks.Range(func(key, value any) bool {
		wg.Add(1)
		go func(ob *OrderBook) {
			defer wg.Done()
			if err := ob.Shutdown(ctx); err != nil {
				errMu.Lock()
				errs = append(errs, err)
				errMu.Unlock()
			}
		}(value.(*OrderBook))
		return true
	})

	wg.Wait()

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
