// Package config holds the harness settings, their defaults, and the two
// file formats they load from: JSON (embedded in firmware builds) and the
// sectioned key=value format used on the host.
package config

import (
	"encoding/json"
	"errors"
	"math"

	"steplab/control"
	"steplab/core"
)

var ErrBadDiscipline = errors.New("discipline must be priority or round-robin")

// AxisSettings configures one axis
type AxisSettings struct {
	Name               string        `json:"name"`
	Setpoint           float64       `json:"setpoint"`            // rad
	LimitMS            uint32        `json:"limit_ms"`            // step-response duration
	ControllerPeriodMS uint32        `json:"controller_period_ms"`
	EncoderPeriodMS    uint32        `json:"encoder_period_ms"`
	MotorPeriodMS      uint32        `json:"motor_period_ms"`
	QueueSize          int           `json:"queue_size"`
	MaxReadFailures    int           `json:"max_read_failures"`
	Gains              control.Gains `json:"gains"`
}

// Settings is the complete harness configuration
type Settings struct {
	Discipline    string         `json:"discipline"`
	Runs          int            `json:"runs"`
	ThreadProtect bool           `json:"thread_protect"`
	Trace         bool           `json:"trace"`
	Axes          []AxisSettings `json:"axes"`

	// Host side
	Device string `json:"device"`
	Baud   int    `json:"baud"`
}

// LoadJSON parses a JSON configuration and applies defaults
func LoadJSON(data []byte) (*Settings, error) {
	var s Settings
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	var given struct {
		Axes []struct {
			Setpoint *float64 `json:"setpoint"`
		} `json:"axes"`
	}
	if err := json.Unmarshal(data, &given); err != nil {
		return nil, err
	}
	for i, a := range given.Axes {
		if a.Setpoint == nil {
			s.Axes[i].Setpoint = DefaultSetpoint(i)
		}
	}
	ApplyDefaults(&s)
	return &s, nil
}

// DefaultSetpoint is the target for axis i (0-based) when none is
// configured: i+1 full turns. A configured 0 is a valid target.
func DefaultSetpoint(i int) float64 {
	return 2 * math.Pi * float64(i+1)
}

// ApplyDefaults fills in missing configuration values. Setpoints are left
// alone since zero is a legal target; the loaders default absent ones.
func ApplyDefaults(s *Settings) {
	if s.Discipline == "" {
		s.Discipline = core.PriorityOrder.String()
	}
	if s.Baud == 0 {
		s.Baud = 115200
	}
	if len(s.Axes) == 0 {
		s.Axes = Default().Axes[:1]
	}
	for i := range s.Axes {
		a := &s.Axes[i]
		if a.Name == "" {
			a.Name = "motor" + string(rune('1'+i))
		}
		if a.LimitMS == 0 {
			a.LimitMS = 2000
		}
		if a.ControllerPeriodMS == 0 {
			a.ControllerPeriodMS = 20
		}
		if a.EncoderPeriodMS == 0 {
			a.EncoderPeriodMS = 10
		}
		if a.MotorPeriodMS == 0 {
			a.MotorPeriodMS = a.ControllerPeriodMS
		}
		if a.QueueSize == 0 {
			a.QueueSize = 100
		}
		if a.MaxReadFailures == 0 {
			a.MaxReadFailures = control.DefaultMaxReadFailures
		}
		if a.Gains == (control.Gains{}) {
			a.Gains = control.DefaultGains()
		}
	}
}

// Default returns the two-axis flywheel rig: one and two turns, 2 s runs
func Default() *Settings {
	s := &Settings{
		Axes: []AxisSettings{
			{Name: "motor1", Setpoint: DefaultSetpoint(0)},
			{Name: "motor2", Setpoint: DefaultSetpoint(1)},
		},
	}
	ApplyDefaults(s)
	return s
}

// ParseDiscipline maps a discipline name to its scheduler value
func ParseDiscipline(name string) (core.Discipline, error) {
	switch name {
	case "", "priority":
		return core.PriorityOrder, nil
	case "round-robin", "rr":
		return core.RoundRobin, nil
	default:
		return 0, ErrBadDiscipline
	}
}
