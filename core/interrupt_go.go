//go:build !tinygo

package core

// irqState is a placeholder for interrupt state on regular Go
type irqState uintptr

// disableInterrupts is a no-op on regular Go. Hosted builds run every task
// from one goroutine, so there is no interrupt context to mask.
func disableInterrupts() irqState {
	return 0
}

// restoreInterrupts is a no-op on regular Go
func restoreInterrupts(state irqState) {
	// No-op
}
