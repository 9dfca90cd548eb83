// Package protocol implements the line protocol between the board and the
// host. Each sample is one line, "elapsed position\r\n", with elapsed in
// milliseconds and position in radians. A run ends with a marker line,
// "End of motor N data.". The host answers the board's period prompt with
// one integer line.
package protocol

// Version represents the steplab firmware version
const Version = "0.1.0"

// Protocol constants
const (
	LineMax    = 64 // Longest line either side sends
	LineEnding = "\r\n"

	endMarkerPrefix = "End of motor "
	endMarkerSuffix = " data."

	// PeriodPrompt is written by the board before reading a controller period
	PeriodPrompt = "Set Controller Period: "
)
