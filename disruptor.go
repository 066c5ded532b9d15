package book

import (
	"context"
	"runtime"
	"sync/atomic"
)

// EventHandler consumes events drained from a RingBuffer.
type EventHandler[T any] interface {
	OnEvent(event T)
}

// EventHandlerFunc adapts a plain function to the EventHandler interface.
type EventHandlerFunc[T any] func(event T)

// OnEvent calls the wrapped function.
func (f EventHandlerFunc[T]) OnEvent(event T) {
	f(event)
}

// RingBuffer is a multi-producer single-consumer ring buffer. Producers claim
// a sequence with CAS, write their slot, then mark it published; the consumer
// spins on the per-slot publish marker, so slots become visible strictly in
// claim order.
type RingBuffer[T any] struct {
	// Cache line padding to avoid false sharing
	_                [56]byte
	producerSequence atomic.Int64
	_                [56]byte
	consumerSequence atomic.Int64
	_                [56]byte

	buffer     []T
	bufferMask int64
	capacity   int64

	// published[i] holds the sequence whose write to slot i is complete
	published []int64

	handler EventHandler[T]

	isShutdown atomic.Bool
}

// NewRingBuffer creates an MPSC ring buffer. capacity must be a power of two.
func NewRingBuffer[T any](capacity int64, handler EventHandler[T]) *RingBuffer[T] {
	if capacity <= 0 || (capacity&(capacity-1)) != 0 {
		panic("capacity must be a power of 2")
	}

	rb := &RingBuffer[T]{
		buffer:     make([]T, capacity),
		published:  make([]int64, capacity),
		capacity:   capacity,
		bufferMask: capacity - 1,
		handler:    handler,
	}

	rb.producerSequence.Store(-1)
	rb.consumerSequence.Store(-1)

	for i := range rb.published {
		atomic.StoreInt64(&rb.published[i], -1)
	}

	return rb
}

// Publish writes an event into the ring. Safe for concurrent producers.
// Blocks (spinning) while the ring is full; drops the event after shutdown.
func (rb *RingBuffer[T]) Publish(event T) {
	if rb.isShutdown.Load() {
		return
	}

	var nextSeq int64
	for {
		currentProducerSeq := rb.producerSequence.Load()
		nextSeq = currentProducerSeq + 1

		// The producer may not lap the consumer by more than one buffer.
		wrapPoint := nextSeq - rb.capacity
		consumerSeq := rb.consumerSequence.Load()

		if wrapPoint > consumerSeq {
			runtime.Gosched()
			continue
		}

		if rb.producerSequence.CompareAndSwap(currentProducerSeq, nextSeq) {
			break
		}
		runtime.Gosched()
	}

	index := nextSeq & rb.bufferMask
	rb.buffer[index] = event

	atomic.StoreInt64(&rb.published[index], nextSeq)
}

// Start launches the consumer goroutine.
func (rb *RingBuffer[T]) Start() {
	go rb.consumerLoop()
}

// Shutdown stops accepting events and waits until the consumer has processed
// everything already claimed, or the context expires.
func (rb *RingBuffer[T]) Shutdown(ctx context.Context) error {
	rb.isShutdown.Store(true)

	for {
		select {
		case <-ctx.Done():
			return ErrTimeout
		default:
			if rb.ConsumerSequence() >= rb.ProducerSequence() {
				return nil
			}
			runtime.Gosched()
		}
	}
}

func (rb *RingBuffer[T]) consumerLoop() {
	nextConsumerSeq := rb.consumerSequence.Load() + 1

	for {
		availableSeq := rb.producerSequence.Load()

		if rb.isShutdown.Load() {
			rb.processRemainingEvents(nextConsumerSeq)
			return
		}

		processed := false
		for nextConsumerSeq <= availableSeq {
			index := nextConsumerSeq & rb.bufferMask

			// Wait for the slot's write to be published
			for atomic.LoadInt64(&rb.published[index]) != nextConsumerSeq {
				runtime.Gosched()
			}

			event := rb.buffer[index]
			rb.handler.OnEvent(event)

			rb.consumerSequence.Store(nextConsumerSeq)
			nextConsumerSeq++
			processed = true
		}

		if !processed {
			runtime.Gosched()
		}
	}
}

func (rb *RingBuffer[T]) processRemainingEvents(nextConsumerSeq int64) {
	availableSeq := rb.producerSequence.Load()

	for nextConsumerSeq <= availableSeq {
		index := nextConsumerSeq & rb.bufferMask

		for atomic.LoadInt64(&rb.published[index]) != nextConsumerSeq {
			runtime.Gosched()
		}

		event := rb.buffer[index]
		rb.handler.OnEvent(event)

		rb.consumerSequence.Store(nextConsumerSeq)
		nextConsumerSeq++
	}
}

// ConsumerSequence returns the last consumed sequence.
func (rb *RingBuffer[T]) ConsumerSequence() int64 {
	return rb.consumerSequence.Load()
}

// ProducerSequence returns the last claimed sequence.
func (rb *RingBuffer[T]) ProducerSequence() int64 {
	return rb.producerSequence.Load()
}

// PendingEvents returns the number of claimed but unconsumed events.
func (rb *RingBuffer[T]) PendingEvents() int64 {
	return rb.producerSequence.Load() - rb.consumerSequence.Load()
}

// RingPublishLog hands BookLogs to a consumer goroutine through a RingBuffer,
// keeping downstream work off the matching hot path. Logs are copied by value
// into the ring because the book recycles them after Publish returns.
type RingPublishLog struct {
	ring *RingBuffer[BookLog]
}

// NewRingPublishLog creates a ring-backed publisher delivering each log to fn
// on the consumer goroutine. capacity must be a power of two.
func NewRingPublishLog(capacity int64, fn func(*BookLog)) *RingPublishLog {
	handler := EventHandlerFunc[BookLog](func(event BookLog) {
		fn(&event)
	})
	return &RingPublishLog{
		ring: NewRingBuffer[BookLog](capacity, handler),
	}
}

// Start launches the consumer goroutine.
func (p *RingPublishLog) Start() {
	p.ring.Start()
}

// Publish copies the logs into the ring.
func (p *RingPublishLog) Publish(logs ...*BookLog) {
	for _, log := range logs {
		p.ring.Publish(*log)
	}
}

// Shutdown drains the ring and stops the consumer.
func (p *RingPublishLog) Shutdown(ctx context.Context) error {
	return p.ring.Shutdown(ctx)
}
