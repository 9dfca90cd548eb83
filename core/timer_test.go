package core

import (
	"math"
	"testing"
)

func TestTicksDiffWraparound(t *testing.T) {
	tests := []struct {
		a, b uint32
		want int32
	}{
		{0, math.MaxUint32, 1},
		{math.MaxUint32, 0, -1},
		{100, 40, 60},
		{40, 100, -60},
		{5, math.MaxUint32 - 4, 10},
		{7, 7, 0},
	}
	for _, tt := range tests {
		if got := TicksDiff(tt.a, tt.b); got != tt.want {
			t.Errorf("TicksDiff(%d, %d) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestTicksAdd(t *testing.T) {
	if got := TicksAdd(math.MaxUint32, 2); got != 1 {
		t.Errorf("Expected wrap to 1, got %d", got)
	}
	if got := TicksAdd(10, -3); got != 7 {
		t.Errorf("Expected 7, got %d", got)
	}
}

func TestManualClock(t *testing.T) {
	c := NewManualClock(math.MaxUint32 - 1)
	start := c.TicksMS()
	c.Advance(5)
	if d := TicksDiff(c.TicksMS(), start); d != 5 {
		t.Errorf("Expected 5ms elapsed across wrap, got %d", d)
	}
	c.Set(1000)
	if c.TicksMS() != 1000 {
		t.Errorf("Expected 1000, got %d", c.TicksMS())
	}
}

func TestSystemClock(t *testing.T) {
	SetTime(1234)
	var c Clock = SystemClock{}
	if c.TicksMS() != 1234 {
		t.Errorf("Expected 1234, got %d", c.TicksMS())
	}
	TimerInit()
	SetTime(1300)
	if Uptime() != 66 {
		t.Errorf("Expected uptime 66, got %d", Uptime())
	}
}
