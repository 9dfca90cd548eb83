package harness

import (
	"context"
	"errors"
	"time"

	"steplab/control"
	"steplab/core"
)

// MaxAxes is the number of axes one harness drives
const MaxAxes = 2

var (
	ErrNoAxes        = errors.New("no axes configured")
	ErrTooManyAxes   = errors.New("too many axes")
	ErrMissingDriver = errors.New("axis has no motor or encoder driver")
	ErrNoClock       = errors.New("no clock configured")
	ErrNoSuchAxis    = errors.New("no such axis")
)

// Default task priorities. Larger runs first, so within a pass the encoder
// publishes before the controller reads and the controller writes before
// the motor applies.
const (
	EncoderPriority    = 3
	ControllerPriority = 2
	MotorPriority      = 1
)

// AxisConfig describes one motor/encoder/controller triple
type AxisConfig struct {
	Name     string
	Setpoint float64 // Radians from the run's starting angle
	LimitMS  uint32  // Step-response duration

	ControllerPeriodMS uint32
	EncoderPeriodMS    uint32
	MotorPeriodMS      uint32

	QueueSize       int
	Gains           control.Gains
	MaxReadFailures int

	Motor   control.MotorDriver
	Encoder control.EncoderDriver
}

// IdleFunc is called between passes with the time until the next task is
// due. It paces the loop; simulations use it to advance a manual clock.
type IdleFunc func(ctx context.Context, wait time.Duration)

// Config holds the harness configuration
type Config struct {
	Axes       []AxisConfig
	Discipline core.Discipline
	Clock      core.Clock
	Sink       Sink

	// Runs per axis before the harness stops; 0 repeats until cancelled
	Runs int

	// ThreadProtect masks interrupts around share and queue access
	ThreadProtect bool

	// Trace records task state changes into the core trace ring
	Trace bool

	Idle IdleFunc
}

// applyDefaults sets default values for unset fields
func applyDefaults(cfg *Config) {
	for i := range cfg.Axes {
		a := &cfg.Axes[i]
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
		if a.Gains == (control.Gains{}) {
			a.Gains = control.DefaultGains()
		}
	}
	if cfg.Sink == nil {
		cfg.Sink = Discard{}
	}
	if cfg.Idle == nil {
		cfg.Idle = SleepIdle
	}
}

func validate(cfg *Config) error {
	if len(cfg.Axes) == 0 {
		return ErrNoAxes
	}
	if len(cfg.Axes) > MaxAxes {
		return ErrTooManyAxes
	}
	if cfg.Clock == nil {
		return ErrNoClock
	}
	for _, a := range cfg.Axes {
		if a.Motor == nil || a.Encoder == nil {
			return ErrMissingDriver
		}
	}
	return nil
}

// SleepIdle blocks for wait or until ctx is done. A task already due
// returns immediately.
func SleepIdle(ctx context.Context, wait time.Duration) {
	if wait <= 0 {
		return
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// ManualIdle advances a manual clock instead of sleeping. It always moves
// at least one millisecond so the loop makes progress.
func ManualIdle(clock *core.ManualClock) IdleFunc {
	return func(_ context.Context, wait time.Duration) {
		ms := uint32(wait / time.Millisecond)
		if ms == 0 {
			ms = 1
		}
		clock.Advance(ms)
	}
}
