package book

import "time"

var (
	clockAnchor = time.Now()
	anchorNanos = uint64(clockAnchor.UnixNano())
)

// monotonicNanos returns a nondecreasing nanosecond reading anchored to the
// wall clock at process start. time.Since carries the runtime's monotonic
// reading, so later calls never observe a smaller value even across NTP steps.
func monotonicNanos() uint64 {
	return anchorNanos + uint64(time.Since(clockAnchor))
}
