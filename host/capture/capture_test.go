package capture

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"
)

// fakeBoard replays canned output in chunks, returning empty reads in
// between like a serial port with a read timeout
type fakeBoard struct {
	chunks  []string
	idle    int // empty reads before the first chunk
	written bytes.Buffer
	closed  bool
}

func (f *fakeBoard) Read(p []byte) (int, error) {
	if f.idle > 0 {
		f.idle--
		return 0, nil
	}
	if len(f.chunks) == 0 {
		return 0, io.EOF
	}
	n := copy(p, f.chunks[0])
	f.chunks[0] = f.chunks[0][n:]
	if f.chunks[0] == "" {
		f.chunks = f.chunks[1:]
	}
	return n, nil
}

func (f *fakeBoard) Write(p []byte) (int, error) { return f.written.Write(p) }
func (f *fakeBoard) Close() error                { f.closed = true; return nil }

func TestSendPeriod(t *testing.T) {
	board := &fakeBoard{}
	c := New(board)
	if err := c.SendPeriod(20); err != nil {
		t.Fatalf("SendPeriod failed: %v", err)
	}
	if board.written.String() != "20\r" {
		t.Errorf("Expected \"20\\r\", got %q", board.written.String())
	}
	c.Close()
	if !board.closed {
		t.Errorf("Expected Close to close the port")
	}
	if err := c.SendPeriod(20); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Expected ErrNotConnected after Close, got %v", err)
	}
}

func TestCollectWaitsThenStopsWhenQuiet(t *testing.T) {
	board := &fakeBoard{
		idle: 5,
		chunks: []string{
			"Set Controller Period: 20\r\n20 0.1",
			"00000\r\n40 0.2\r\nnoise\r\n",
			"End of motor 1 data.\r\n\r\n",
		},
	}
	c := New(board)
	var lines []string
	c.Progress = func(l string) { lines = append(lines, l) }

	runs, err := c.Collect(context.Background(), 0)
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("Expected 1 run, got %d", len(runs))
	}
	r := runs[0]
	if r.Axis != 1 || len(r.Points) != 2 || r.Skipped != 2 {
		t.Errorf("Unexpected run %+v", r)
	}
	if r.Points[0].Position != 0.1 {
		t.Errorf("Expected a line split across reads to be joined, got %v", r.Points[0].Position)
	}
	if len(lines) != 6 {
		t.Errorf("Expected 6 progress lines, got %d", len(lines))
	}
}

func TestCollectStopsAtWantedRuns(t *testing.T) {
	board := &fakeBoard{chunks: []string{
		"20 1\r\nEnd of motor 1 data.\r\n20 2\r\nEnd of motor 2 data.\r\n20 3\r\n",
	}}
	runs, err := New(board).Collect(context.Background(), 2)
	if err != nil || len(runs) != 2 || runs[1].Axis != 2 {
		t.Errorf("Expected two runs, got %+v %v", runs, err)
	}
}

func TestCollectHonorsContext(t *testing.T) {
	board := &fakeBoard{idle: 1 << 30}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := New(board).Collect(ctx, 0)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline error, got %v", err)
	}
}
