package serial

import (
	"io"
)

// Port represents a serial port interface
// This abstraction allows for different implementations:
// - tarm/serial (default)
// - go.bug.st/serial (needed for flush and port discovery)
// - in-memory pipes (for testing)
type Port interface {
	io.ReadWriteCloser

	// Flush discards any unread input
	Flush() error
}

// Backend names a serial implementation
type Backend string

const (
	BackendTarm  Backend = "tarm"
	BackendBugst Backend = "bugst"
)

// Config holds serial port configuration
type Config struct {
	// Device path (e.g., "/dev/ttyACM0", "COM3"); empty to auto-detect
	Device string

	// Baud rate (USB CDC ignores this)
	Baud int

	// Read timeout in milliseconds (0 = blocking)
	ReadTimeout int

	Backend Backend
}

// DefaultConfig returns a default configuration for the step-response board
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        115200,
		ReadTimeout: 1000,
		Backend:     BackendTarm,
	}
}
