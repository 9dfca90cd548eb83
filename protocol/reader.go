package protocol

import (
	"bufio"
	"io"
	"strings"
)

// Run is the data for one completed axis run as seen by the host
type Run struct {
	Axis    int // 1-based; 0 when the stream ended without a marker
	Points  []Point
	Skipped int // Lines that did not parse
}

// RunReader splits a board's output stream into runs
type RunReader struct {
	scanner *bufio.Scanner
	onLine  func(string)
}

// NewRunReader creates a reader over r
func NewRunReader(r io.Reader) *RunReader {
	return &RunReader{scanner: bufio.NewScanner(r)}
}

// OnLine registers a callback that sees every raw line, for progress output
func (rr *RunReader) OnLine(fn func(string)) {
	rr.onLine = fn
}

// Next returns the next run. Lines that are neither samples nor markers
// (prompts, echoes, noise) are skipped and counted. At end of input any
// samples without a marker are returned as a run with Axis 0; after that
// Next returns io.EOF.
func (rr *RunReader) Next() (Run, error) {
	var run Run
	for rr.scanner.Scan() {
		line := strings.TrimRight(rr.scanner.Text(), "\r")
		if rr.onLine != nil {
			rr.onLine(line)
		}
		if axis, ok := ParseEndMarker(line); ok {
			run.Axis = axis
			return run, nil
		}
		p, err := ParseSample(line)
		if err != nil {
			if strings.TrimSpace(line) != "" {
				run.Skipped++
			}
			continue
		}
		run.Points = append(run.Points, p)
	}
	if err := rr.scanner.Err(); err != nil {
		return run, err
	}
	if len(run.Points) > 0 {
		return run, nil
	}
	return Run{}, io.EOF
}
