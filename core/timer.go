package core

import "time"

// Clock is a monotonic millisecond tick source. The counter wraps modulo
// 2^32; compare ticks only through TicksDiff.
type Clock interface {
	TicksMS() uint32
}

var (
	systemTicks uint32
	bootTicks   uint32
)

// GetTime returns the current system time in milliseconds
func GetTime() uint32 {
	return getSystemTicks()
}

// SetTime sets the current system time (for testing/hardware integration)
func SetTime(ticks uint32) {
	setSystemTicks(ticks)
}

// TimerInit records the boot tick so Uptime can be reported
func TimerInit() {
	bootTicks = GetTime()
}

// Uptime returns milliseconds since TimerInit, valid across one wraparound
func Uptime() uint32 {
	return GetTime() - bootTicks
}

// TicksDiff returns a - b as a signed delta. The subtraction is done in
// modular uint32 arithmetic and reinterpreted, so the result is correct
// whenever the true distance is below 2^31 ms, including across wraparound.
func TicksDiff(a, b uint32) int32 {
	return int32(a - b)
}

// TicksAdd offsets t by delta milliseconds with wraparound
func TicksAdd(t uint32, delta int32) uint32 {
	return t + uint32(delta)
}

// SystemClock reads the global tick counter maintained by the target's
// main loop (see SetTime).
type SystemClock struct{}

func (SystemClock) TicksMS() uint32 {
	return GetTime()
}

// MonotonicClock derives ticks from the runtime monotonic clock. It is the
// clock used by hosted builds.
type MonotonicClock struct {
	start time.Time
	base  uint32
}

// NewMonotonicClock creates a clock whose first reading is base
func NewMonotonicClock(base uint32) *MonotonicClock {
	return &MonotonicClock{start: time.Now(), base: base}
}

func (c *MonotonicClock) TicksMS() uint32 {
	return c.base + uint32(time.Since(c.start).Milliseconds())
}

// ManualClock only moves when told to. Simulations and tests step it.
type ManualClock struct {
	now uint32
}

// NewManualClock creates a manual clock reading start
func NewManualClock(start uint32) *ManualClock {
	return &ManualClock{now: start}
}

func (c *ManualClock) TicksMS() uint32 {
	return c.now
}

// Advance moves the clock forward by ms milliseconds
func (c *ManualClock) Advance(ms uint32) {
	c.now += ms
}

// Set jumps the clock to an absolute tick value
func (c *ManualClock) Set(ticks uint32) {
	c.now = ticks
}
