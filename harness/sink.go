package harness

import (
	"io"

	"steplab/control"
	"steplab/protocol"
)

// Sink receives drained samples. Axis numbers are 1-based.
type Sink interface {
	Sample(axis int, s control.Sample) error
	EndOfRun(axis int) error
}

// Discard drops everything
type Discard struct{}

func (Discard) Sample(int, control.Sample) error { return nil }
func (Discard) EndOfRun(int) error               { return nil }

// LineSink writes the serial line protocol
type LineSink struct {
	w    io.Writer
	line protocol.LineBuffer
}

// NewLineSink creates a sink writing to w
func NewLineSink(w io.Writer) *LineSink {
	return &LineSink{w: w}
}

func (l *LineSink) Sample(_ int, s control.Sample) error {
	l.line.Reset()
	protocol.WriteSample(&l.line, s.ElapsedMS, s.Position)
	_, err := l.w.Write(l.line.Bytes())
	return err
}

func (l *LineSink) EndOfRun(axis int) error {
	_, err := io.WriteString(l.w, protocol.EndMarker(axis)+protocol.LineEnding+protocol.LineEnding)
	return err
}

// Recorder keeps every drained run in memory
type Recorder struct {
	runs    map[int][][]control.Sample
	current map[int][]control.Sample
}

// NewRecorder creates an empty recorder
func NewRecorder() *Recorder {
	return &Recorder{
		runs:    make(map[int][][]control.Sample),
		current: make(map[int][]control.Sample),
	}
}

func (r *Recorder) Sample(axis int, s control.Sample) error {
	r.current[axis] = append(r.current[axis], s)
	return nil
}

func (r *Recorder) EndOfRun(axis int) error {
	r.runs[axis] = append(r.runs[axis], r.current[axis])
	delete(r.current, axis)
	return nil
}

// Runs returns the completed runs for an axis, oldest first
func (r *Recorder) Runs(axis int) [][]control.Sample {
	return r.runs[axis]
}

// MultiSink fans samples out to several sinks, stopping at the first error
type MultiSink []Sink

func (m MultiSink) Sample(axis int, s control.Sample) error {
	for _, sink := range m {
		if err := sink.Sample(axis, s); err != nil {
			return err
		}
	}
	return nil
}

func (m MultiSink) EndOfRun(axis int) error {
	for _, sink := range m {
		if err := sink.EndOfRun(axis); err != nil {
			return err
		}
	}
	return nil
}
