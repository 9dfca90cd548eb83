package core

import (
	"strings"
	"testing"
)

func TestTraceRingKeepsNewest(t *testing.T) {
	ClearTraceRing()
	SetTraceEnabled(true)
	for i := 0; i < TraceRingSize+5; i++ {
		RecordTrace(EvtTaskState, 1, uint32(i), int32(i), 0)
	}

	events := TraceEvents()
	if len(events) != TraceRingSize {
		t.Fatalf("Expected %d events, got %d", TraceRingSize, len(events))
	}
	if events[0].Clock != 5 {
		t.Errorf("Expected oldest surviving event at clock 5, got %d", events[0].Clock)
	}
	if events[len(events)-1].Clock != TraceRingSize+4 {
		t.Errorf("Expected newest event last, got %d", events[len(events)-1].Clock)
	}
}

func TestTraceDisabled(t *testing.T) {
	ClearTraceRing()
	SetTraceEnabled(false)
	defer SetTraceEnabled(true)
	RecordTrace(EvtReset, 0, 0, 0, 0)
	if len(TraceEvents()) != 0 {
		t.Errorf("Expected no events while tracing is disabled")
	}
}

func TestDumpTraceRing(t *testing.T) {
	ClearTraceRing()
	SetTraceEnabled(true)
	var lines []string
	SetDebugWriter(func(s string) { lines = append(lines, s) })
	defer SetDebugWriter(func(string) {})

	RecordTrace(EvtTaskFault, 2, 40, 1, 0)
	DumpTraceRing()

	out := strings.Join(lines, "\n")
	if !strings.Contains(out, "FAULT! task=2 clock=40") {
		t.Errorf("Dump missing fault line:\n%s", out)
	}
}

func TestDebugPrintlnGated(t *testing.T) {
	var got []string
	SetDebugWriter(func(s string) { got = append(got, s) })
	defer SetDebugWriter(func(string) {})

	SetDebugEnabled(false)
	DebugPrintln("hidden")
	SetDebugEnabled(true)
	DebugPrintln("shown")
	SetDebugEnabled(false)

	if len(got) != 1 || got[0] != "shown" {
		t.Errorf("Expected only the enabled message, got %v", got)
	}
}
