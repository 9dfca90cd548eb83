package protocol

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

var (
	ErrMalformedLine = errors.New("malformed sample line")
	ErrBadPeriod     = errors.New("controller period must be a positive integer")
)

// Point is one parsed sample
type Point struct {
	TimeMS   float64
	Position float64
}

// AppendSample appends the line for one sample to dst
func AppendSample(dst []byte, elapsedMS uint32, position float64) []byte {
	dst = strconv.AppendUint(dst, uint64(elapsedMS), 10)
	dst = append(dst, ' ')
	dst = strconv.AppendFloat(dst, position, 'f', 6, 64)
	return append(dst, LineEnding...)
}

// WriteSample formats a sample into a LineBuffer
func WriteSample(out *LineBuffer, elapsedMS uint32, position float64) {
	var scratch [LineMax]byte
	out.Output(AppendSample(scratch[:0], elapsedMS, position))
}

// EndMarker returns the end-of-run line for a 1-based axis number
func EndMarker(axis int) string {
	return endMarkerPrefix + strconv.Itoa(axis) + endMarkerSuffix
}

// ParseEndMarker reports whether line is an end-of-run marker and for
// which axis
func ParseEndMarker(line string) (int, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, endMarkerPrefix) || !strings.HasSuffix(line, endMarkerSuffix) {
		return 0, false
	}
	n, err := strconv.Atoi(line[len(endMarkerPrefix) : len(line)-len(endMarkerSuffix)])
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

// ParseSample parses one sample line. Both fields must be finite numbers
// and the time must not be negative.
func ParseSample(line string) (Point, error) {
	fields := strings.Fields(line)
	if len(fields) != 2 {
		return Point{}, ErrMalformedLine
	}
	t, err := strconv.ParseFloat(fields[0], 64)
	if err != nil || t < 0 || math.IsInf(t, 0) || math.IsNaN(t) {
		return Point{}, ErrMalformedLine
	}
	p, err := strconv.ParseFloat(fields[1], 64)
	if err != nil || math.IsInf(p, 0) || math.IsNaN(p) {
		return Point{}, ErrMalformedLine
	}
	return Point{TimeMS: t, Position: p}, nil
}

// ParsePeriod parses the operator's controller period line
func ParsePeriod(line string) (uint32, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(line), 10, 32)
	if err != nil || n == 0 {
		return 0, ErrBadPeriod
	}
	return uint32(n), nil
}
