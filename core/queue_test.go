package core

import (
	"errors"
	"testing"
)

func TestQueueFIFO(t *testing.T) {
	q := NewQueue[int]("fifo", 3)

	for i := 1; i <= 3; i++ {
		if !q.Put(i) {
			t.Fatalf("Put(%d) rejected on a non-full queue", i)
		}
	}
	if !q.Full() {
		t.Errorf("Expected queue to be full after 3 puts")
	}

	for want := 1; want <= 3; want++ {
		got, err := q.Get()
		if err != nil {
			t.Fatalf("Get returned error: %v", err)
		}
		if got != want {
			t.Errorf("Expected %d, got %d", want, got)
		}
	}
	if !q.Empty() {
		t.Errorf("Expected queue to be empty")
	}
}

func TestQueueDropsNewestWhenFull(t *testing.T) {
	q := NewQueue[int]("drop", 2)
	q.Put(10)
	q.Put(20)

	if q.Put(30) {
		t.Errorf("Put on a full queue should report false")
	}
	if q.Len() != 2 {
		t.Errorf("Expected length 2, got %d", q.Len())
	}
	if q.Overflows() != 1 {
		t.Errorf("Expected 1 overflow, got %d", q.Overflows())
	}

	first, _ := q.Get()
	second, _ := q.Get()
	if first != 10 || second != 20 {
		t.Errorf("Expected 10, 20 to survive, got %d, %d", first, second)
	}
}

func TestQueueEmptyGet(t *testing.T) {
	q := NewQueue[float64]("empty", 4)
	v, err := q.Get()
	if !errors.Is(err, ErrQueueEmpty) {
		t.Errorf("Expected ErrQueueEmpty, got %v", err)
	}
	if v != 0 {
		t.Errorf("Expected zero value, got %v", v)
	}
}

func TestQueueWrapsAround(t *testing.T) {
	q := NewQueue[int]("wrap", 3)
	next := 0
	expect := 0
	// Interleave so head walks past the end of the ring several times
	for round := 0; round < 10; round++ {
		q.Put(next)
		next++
		q.Put(next)
		next++
		for i := 0; i < 2; i++ {
			got, err := q.Get()
			if err != nil || got != expect {
				t.Fatalf("Round %d: expected %d, got %d (%v)", round, expect, got, err)
			}
			expect++
		}
	}
	if q.Len() < 0 || q.Len() > q.Cap() {
		t.Errorf("Length %d out of bounds", q.Len())
	}
}

func TestQueueClear(t *testing.T) {
	q := NewQueue[int]("clear", 2, ThreadProtect())
	q.Put(1)
	q.Put(2)
	q.Put(3)
	q.Clear()

	if !q.Empty() || q.Overflows() != 0 || q.MaxFull() != 0 {
		t.Errorf("Clear left state behind: %s", q.String())
	}
	if !q.Put(4) {
		t.Errorf("Put after Clear rejected")
	}
}

func TestQueueMinimumSize(t *testing.T) {
	q := NewQueue[int]("tiny", 0)
	if q.Cap() != 1 {
		t.Errorf("Expected capacity clamped to 1, got %d", q.Cap())
	}
}

func TestQueueString(t *testing.T) {
	q := NewQueue[int]("m1", 4)
	q.Put(1)
	want := "Queue m1 1/4 max 1 dropped 0"
	if q.String() != want {
		t.Errorf("Expected %q, got %q", want, q.String())
	}
}
