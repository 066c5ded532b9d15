package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/rs/xid"
	"github.com/shopspring/decimal"

	book "github.com/0x7ee2/limitbook"
)

var (
	capacity = flag.Int("capacity", book.DefaultCapacity, "order arena capacity")
	depth    = flag.Int("depth", 5, "levels per side to render")
)

// tradePrinter prints match events as the book emits them.
type tradePrinter struct{}

func (tradePrinter) Publish(logs ...*book.BookLog) {
	for _, log := range logs {
		if log.Type != book.LogTypeMatch {
			continue
		}
		fmt.Printf("[MATCH] %d @ %s (Buy Order #%d <-> Sell Order #%d)\n",
			log.Quantity, log.Price.StringFixed(2), log.BuyOrderID, log.SellOrderID)
	}
}

func section(title string) {
	fmt.Printf("\n%s\n%s\n%s\n", strings.Repeat("=", 50), title, strings.Repeat("=", 50))
}

func printBook(b *book.Book, depth int) {
	bids, asks := b.Snapshot(depth)

	fmt.Println("\n========== ORDER BOOK ==========")
	fmt.Printf("%15s\n", "ASKS (Sell)")
	fmt.Printf("%10s%15s\n", "Price", "Quantity")
	fmt.Println("--------------------------------")

	// Asks rendered highest to lowest so the spread sits in the middle
	for i := len(asks) - 1; i >= 0; i-- {
		fmt.Printf("%10s%15d\n", asks[i].Price.StringFixed(2), asks[i].TotalQuantity)
	}

	fmt.Println("================================")

	for _, level := range bids {
		fmt.Printf("%10s%15d\n", level.Price.StringFixed(2), level.TotalQuantity)
	}

	fmt.Println("--------------------------------")
	fmt.Printf("%15s\n", "BIDS (Buy)")
	fmt.Println("================================")
}

func buy(b *book.Book, id uint64, price string, qty uint64) {
	add(b, id, book.Buy, price, qty)
}

func sell(b *book.Book, id uint64, price string, qty uint64) {
	add(b, id, book.Sell, price, qty)
}

func add(b *book.Book, id uint64, side book.Side, price string, qty uint64) {
	err := b.AddOrder(book.Order{
		ID:       id,
		Side:     side,
		Price:    decimal.RequireFromString(price),
		Quantity: qty,
	})
	if err != nil {
		slog.Error("add failed", "order_id", id, "error", err)
		os.Exit(1)
	}
}

func main() {
	flag.Parse()

	slog.Info("bookdemo starting", "run_id", xid.New().String(), "capacity", *capacity)

	b := book.NewBook(tradePrinter{}, book.WithCapacity(*capacity), book.WithMarket("DEMO"))
	defer b.Close()

	section("TEST 1: Adding Multiple Buy and Sell Orders")

	buy(b, 1, "100.50", 100)
	buy(b, 2, "100.25", 150)
	buy(b, 3, "100.50", 50) // same price as order 1
	buy(b, 4, "99.75", 200)

	sell(b, 5, "101.00", 100)
	sell(b, 6, "101.25", 150)
	sell(b, 7, "101.00", 75) // same price as order 5
	sell(b, 8, "102.00", 200)

	printBook(b, *depth)

	section("TEST 2: Cancel Order")
	fmt.Println("Cancelling order #5 (Sell @ 101.00, qty 100)")
	if b.CancelOrder(5) {
		fmt.Println("Order #5 cancelled successfully")
	} else {
		fmt.Println("Failed to cancel order #5")
	}
	printBook(b, *depth)

	section("TEST 3: Amend Order - Quantity Only")
	fmt.Println("Amending order #3 (Buy @ 100.50): changing quantity from 50 to 200")
	if b.AmendOrder(3, decimal.RequireFromString("100.50"), 200) {
		fmt.Println("Order #3 amended successfully")
	}
	printBook(b, *depth)

	section("TEST 4: Amend Order - Price Change")
	fmt.Println("Amending order #2 (Buy @ 100.25): changing price to 100.75, qty to 100")
	if b.AmendOrder(2, decimal.RequireFromString("100.75"), 100) {
		fmt.Println("Order #2 amended successfully")
	}
	printBook(b, *depth)

	section("TEST 5: Add Orders That Trigger Matching")
	fmt.Println("Adding aggressive buy order @ 101.50 (will cross the spread)")
	buy(b, 9, "101.50", 80)
	printBook(b, *depth)

	section("TEST 6: More Matching - Full Order Fill")
	fmt.Println("Adding aggressive sell order @ 99.00 (will match across every bid level, leaving 100 at 99.75)")
	sell(b, 10, "99.00", 500)
	printBook(b, *depth)

	section("TEST 7: Get Snapshot (Top 3 Levels)")
	buy(b, 11, "98.00", 100)
	buy(b, 12, "97.50", 150)
	buy(b, 13, "97.00", 200)
	sell(b, 14, "102.50", 100)
	sell(b, 15, "103.00", 150)

	bids, asks := b.Snapshot(3)
	fmt.Println("Top 3 Bid Levels:")
	for _, level := range bids {
		fmt.Printf("  Price: %s, Qty: %d\n", level.Price.StringFixed(2), level.TotalQuantity)
	}
	fmt.Println("\nTop 3 Ask Levels:")
	for _, level := range asks {
		fmt.Printf("  Price: %s, Qty: %d\n", level.Price.StringFixed(2), level.TotalQuantity)
	}
	printBook(b, *depth)

	section("TEST 8: Edge Cases")
	fmt.Println("Cancel non-existent order:", b.CancelOrder(9999))
	fmt.Println("Amend non-existent order:", b.AmendOrder(9999, decimal.RequireFromString("100.00"), 100))

	fmt.Println("\nFIFO at one price level (on a fresh book):")
	fifo := book.NewBook(tradePrinter{}, book.WithCapacity(*capacity), book.WithMarket("DEMO"))
	defer fifo.Close()
	buy(fifo, 20, "95.00", 100)
	buy(fifo, 21, "95.00", 200)
	buy(fifo, 22, "95.00", 300)
	fmt.Println("Added 3 buy orders @ 95.00 with quantities 100, 200, 300")
	fmt.Println("Adding sell order @ 95.00 with qty 250 (matches the first two in FIFO order)")
	sell(fifo, 23, "95.00", 250)
	printBook(fifo, *depth)

	section("ALL TESTS COMPLETED")
}
