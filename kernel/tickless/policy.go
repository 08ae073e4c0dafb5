package tickless

// Policy returns the longest period the hardware timer may be programmed for,
// given the number of pending events and the running average of requested
// delays. Zero means no limit.
type Policy func(pending int, avgDelay uint64) uint64

const (
	busyPeriod   = 100_000    // 100µs
	normalPeriod = 1_000_000  // 1ms
	quietPeriod  = 10_000_000 // 10ms
	adaptiveCap  = 50_000_000 // 50ms
)

const (
	busyThreshold  = 10
	quietThreshold = 3
)

// DefaultPolicy wakes the timer finely under load and coarsely when quiet,
// stretching toward a tenth of the average requested delay.
func DefaultPolicy(pending int, avgDelay uint64) uint64 {
	period := uint64(normalPeriod)
	switch {
	case pending > busyThreshold:
		period = busyPeriod
	case pending < quietThreshold:
		period = quietPeriod
	}
	if avgDelay > 0 {
		if adaptive := avgDelay / 10; adaptive > period && adaptive < adaptiveCap {
			period = adaptive
		}
	}
	return period
}

// FixedPolicy caps the timer period at d.
func FixedPolicy(d uint64) Policy {
	return func(int, uint64) uint64 { return d }
}
