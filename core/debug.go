package core

// DebugWriter is a function type for writing debug messages
type DebugWriter func(string)

// TraceEvent captures one scheduler event for post-mortem analysis
type TraceEvent struct {
	EventType uint8  // Event type code
	Task      uint8  // Task ID (registration index)
	Clock     uint32 // System tick at event
	Value1    int32  // Context-dependent value
	Value2    int32  // Context-dependent value
}

// Event type codes
const (
	EvtTaskState = 1 // Tick returned a different state than last time
	EvtTaskLate  = 2 // Tick ran more than one period late
	EvtTaskFault = 3 // Task removed after an error or panic
	EvtReset     = 4 // Task reset between runs
)

const (
	TraceRingSize = 32 // Keep last 32 events for post-mortem
)

var (
	// debugPrintln is the global debug print function (can be set by platform code)
	debugPrintln DebugWriter = func(s string) {} // No-op by default

	// debugEnabled controls whether debug output is active
	debugEnabled bool = false

	// Trace ring buffer (non-blocking, for post-mortem)
	traceRing     [TraceRingSize]TraceEvent
	traceRingHead uint8
	traceEnabled  bool = true
)

// SetDebugWriter sets the platform-specific debug output function
// This allows platforms to redirect debug output to UART, USB, stdout etc.
func SetDebugWriter(writer DebugWriter) {
	debugPrintln = writer
}

// SetDebugEnabled enables or disables debug output
func SetDebugEnabled(enabled bool) {
	debugEnabled = enabled
}

// IsDebugEnabled returns whether debug output is enabled
func IsDebugEnabled() bool {
	return debugEnabled
}

// SetTraceEnabled turns trace capture on or off
func SetTraceEnabled(enabled bool) {
	traceEnabled = enabled
}

// DebugPrintln writes a debug message using the platform-specific writer
func DebugPrintln(msg string) {
	if debugEnabled && debugPrintln != nil {
		debugPrintln(msg)
	}
}

// RecordTrace captures an event in the ring buffer. It never blocks and
// never allocates, so tasks may call it from inside a tick.
func RecordTrace(eventType, task uint8, clock uint32, value1, value2 int32) {
	if !traceEnabled {
		return
	}
	idx := traceRingHead
	traceRing[idx] = TraceEvent{
		EventType: eventType,
		Task:      task,
		Clock:     clock,
		Value1:    value1,
		Value2:    value2,
	}
	traceRingHead = (idx + 1) % TraceRingSize
}

// TraceEvents returns the captured events, oldest first
func TraceEvents() []TraceEvent {
	events := make([]TraceEvent, 0, TraceRingSize)
	start := traceRingHead
	for i := uint8(0); i < TraceRingSize; i++ {
		evt := traceRing[(start+i)%TraceRingSize]
		if evt.EventType == 0 {
			continue // Empty slot
		}
		events = append(events, evt)
	}
	return events
}

// DumpTraceRing outputs the trace ring buffer (call on shutdown/error)
func DumpTraceRing() {
	if debugPrintln == nil {
		return
	}

	debugPrintln("[TRACE] === Trace Ring Dump ===")
	for _, evt := range TraceEvents() {
		var name string
		switch evt.EventType {
		case EvtTaskState:
			name = "STATE"
		case EvtTaskLate:
			name = "LATE"
		case EvtTaskFault:
			name = "FAULT!"
		case EvtReset:
			name = "RESET"
		default:
			name = "UNKNOWN"
		}

		debugPrintln("[TRACE] " + name +
			" task=" + itoa(int(evt.Task)) +
			" clock=" + utoa(evt.Clock) +
			" v1=" + itoa(int(evt.Value1)) +
			" v2=" + itoa(int(evt.Value2)))
	}
	debugPrintln("[TRACE] === End Dump ===")
}

// ClearTraceRing clears the trace buffer
func ClearTraceRing() {
	for i := range traceRing {
		traceRing[i] = TraceEvent{}
	}
	traceRingHead = 0
}
