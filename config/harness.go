package config

import (
	"fmt"

	"steplab/control"
	"steplab/core"
	"steplab/harness"
)

// Drivers supplies the hardware behind one axis
type Drivers struct {
	Motor   control.MotorDriver
	Encoder control.EncoderDriver
}

// Harness builds the harness configuration for the given clock and sink.
// drivers must line up with s.Axes.
func (s *Settings) Harness(clock core.Clock, sink harness.Sink, drivers []Drivers) (harness.Config, error) {
	d, err := ParseDiscipline(s.Discipline)
	if err != nil {
		return harness.Config{}, err
	}
	if len(drivers) != len(s.Axes) {
		return harness.Config{}, fmt.Errorf("%d axes configured but %d driver sets given", len(s.Axes), len(drivers))
	}

	cfg := harness.Config{
		Discipline:    d,
		Clock:         clock,
		Sink:          sink,
		Runs:          s.Runs,
		ThreadProtect: s.ThreadProtect,
		Trace:         s.Trace,
	}
	for i, a := range s.Axes {
		cfg.Axes = append(cfg.Axes, harness.AxisConfig{
			Name:               a.Name,
			Setpoint:           a.Setpoint,
			LimitMS:            a.LimitMS,
			ControllerPeriodMS: a.ControllerPeriodMS,
			EncoderPeriodMS:    a.EncoderPeriodMS,
			MotorPeriodMS:      a.MotorPeriodMS,
			QueueSize:          a.QueueSize,
			Gains:              a.Gains,
			MaxReadFailures:    a.MaxReadFailures,
			Motor:              drivers[i].Motor,
			Encoder:            drivers[i].Encoder,
		})
	}
	return cfg, nil
}
