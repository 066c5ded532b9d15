package book

import "sync"

// PublishLog receives every event the book emits, in emission order.
//
// The book recycles BookLog objects to a sync.Pool after Publish returns, so
// implementations must either finish with the logs synchronously or copy them
// before returning.
type PublishLog interface {
	Publish(...*BookLog)
}

// PublishFunc adapts a function to the PublishLog interface.
type PublishFunc func(...*BookLog)

// Publish calls the wrapped function.
func (f PublishFunc) Publish(logs ...*BookLog) {
	f(logs...)
}

// DiscardLogs returns a publisher that drops every event, useful for
// benchmarking the matching path alone.
func DiscardLogs() PublishLog {
	return PublishFunc(func(...*BookLog) {})
}

// LogRecorder retains published events in memory, splitting out match events
// as they arrive. Events are stored by value because the book reclaims the
// published pointers. Useful for tests and for feeding replay consumers.
type LogRecorder struct {
	mu     sync.RWMutex
	events []BookLog
	trades []BookLog
}

// NewLogRecorder creates an empty recorder.
func NewLogRecorder() *LogRecorder {
	return &LogRecorder{}
}

// Publish copies the logs into the recorder.
func (r *LogRecorder) Publish(logs ...*BookLog) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, log := range logs {
		r.events = append(r.events, *log)
		if log.Type == LogTypeMatch {
			r.trades = append(r.trades, *log)
		}
	}
}

// Count returns the number of events recorded.
func (r *LogRecorder) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.events)
}

// Logs returns a copy of all recorded events in emission order.
func (r *LogRecorder) Logs() []BookLog {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]BookLog(nil), r.events...)
}

// Trades returns a copy of the recorded match events in emission order.
func (r *LogRecorder) Trades() []BookLog {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]BookLog(nil), r.trades...)
}
