package config

import (
	"errors"
	"fmt"

	"github.com/google/shlex"

	"steplab/protocol"
)

var ErrNoPeriod = errors.New("no controller period given")

// ParsePeriods splits an operator line into controller periods, one per
// axis in order. "20", "20 35" and "'20' 35" are all accepted.
func ParsePeriods(line string) ([]uint32, error) {
	fields, err := shlex.Split(line)
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, ErrNoPeriod
	}
	periods := make([]uint32, 0, len(fields))
	for _, f := range fields {
		p, err := protocol.ParsePeriod(f)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", f, err)
		}
		periods = append(periods, p)
	}
	return periods, nil
}

// ApplyPeriods sets controller periods on the axes in order. Axes beyond
// the given periods keep their current value. A motor period that tracked
// the old controller period follows the new one.
func ApplyPeriods(s *Settings, periods []uint32) {
	for i, p := range periods {
		if i >= len(s.Axes) {
			return
		}
		a := &s.Axes[i]
		if a.MotorPeriodMS == a.ControllerPeriodMS {
			a.MotorPeriodMS = p
		}
		a.ControllerPeriodMS = p
	}
}
