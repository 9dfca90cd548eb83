// Package analysis characterizes a captured step response
package analysis

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"steplab/protocol"
)

var ErrTooFewPoints = errors.New("step response needs at least 3 points")

// SettlingBand is the fraction of the setpoint a settled response stays within
const SettlingBand = 0.02

// Response summarizes one step response. Times are in milliseconds.
type Response struct {
	Setpoint     float64
	Final        float64 // Mean of the last tenth of the run
	FinalStdDev  float64
	SteadyError  float64 // Setpoint minus Final
	Peak         float64
	PeakTimeMS   float64
	OvershootPct float64 // Peak above setpoint, percent of setpoint
	RiseTimeMS   float64 // 10% to 90% of setpoint; NaN if never reached
	SettlingMS   float64 // Time after which the response stays in band; NaN if it never settles
	SlewRate     float64 // rad/ms fitted over the rise
}

// Analyze computes the response metrics for points sorted by time
func Analyze(points []protocol.Point, setpoint float64) (Response, error) {
	if len(points) < 3 {
		return Response{}, ErrTooFewPoints
	}
	ts := make([]float64, len(points))
	ys := make([]float64, len(points))
	for i, p := range points {
		ts[i] = p.TimeMS
		ys[i] = p.Position
	}

	r := Response{Setpoint: setpoint}

	tail := len(ys) / 10
	if tail < 1 {
		tail = 1
	}
	r.Final, r.FinalStdDev = stat.MeanStdDev(ys[len(ys)-tail:], nil)
	if tail == 1 {
		r.FinalStdDev = 0
	}
	r.SteadyError = setpoint - r.Final

	peak := floats.MaxIdx(ys)
	if setpoint < 0 {
		peak = floats.MinIdx(ys)
	}
	r.Peak = ys[peak]
	r.PeakTimeMS = ts[peak]
	if setpoint != 0 {
		r.OvershootPct = math.Max(0, (r.Peak-setpoint)/setpoint*100)
	}

	lo := crossing(ts, ys, 0.1*setpoint)
	hi := crossing(ts, ys, 0.9*setpoint)
	r.RiseTimeMS = hi - lo

	r.SettlingMS = settling(ts, ys, setpoint)
	r.SlewRate = slew(ts, ys, setpoint)
	return r, nil
}

// crossing returns the first time the response reaches level, linearly
// interpolated between samples, or NaN
func crossing(ts, ys []float64, level float64) float64 {
	rising := level >= 0
	for i := range ys {
		if (rising && ys[i] >= level) || (!rising && ys[i] <= level) {
			if i == 0 {
				return ts[0]
			}
			dy := ys[i] - ys[i-1]
			if dy == 0 {
				return ts[i]
			}
			return ts[i-1] + (level-ys[i-1])/dy*(ts[i]-ts[i-1])
		}
	}
	return math.NaN()
}

func settling(ts, ys []float64, setpoint float64) float64 {
	band := math.Abs(setpoint) * SettlingBand
	last := -1
	for i, y := range ys {
		if math.Abs(y-setpoint) > band {
			last = i
		}
	}
	switch {
	case last < 0:
		return ts[0]
	case last == len(ys)-1:
		return math.NaN()
	default:
		return ts[last+1]
	}
}

// slew fits a line to the samples between 10% and 90% of the setpoint
func slew(ts, ys []float64, setpoint float64) float64 {
	var xs, vs []float64
	lo, hi := 0.1*setpoint, 0.9*setpoint
	if lo > hi {
		lo, hi = hi, lo
	}
	for i, y := range ys {
		if y >= lo && y <= hi {
			xs = append(xs, ts[i])
			vs = append(vs, y)
		}
	}
	if len(xs) < 2 {
		return math.NaN()
	}
	_, beta := stat.LinearRegression(xs, vs, nil, false)
	return beta
}

// String formats the metrics for the operator
func (r Response) String() string {
	return fmt.Sprintf("setpoint %.4f rad  final %.4f rad (sd %.4f)  error %.4f rad\n"+
		"peak %.4f rad at %.0f ms  overshoot %.1f%%\n"+
		"rise %.1f ms  settling %.1f ms  slew %.4f rad/ms",
		r.Setpoint, r.Final, r.FinalStdDev, r.SteadyError,
		r.Peak, r.PeakTimeMS, r.OvershootPct,
		r.RiseTimeMS, r.SettlingMS, r.SlewRate)
}
