package sim

import (
	"errors"
	"math"

	"steplab/control"
	"steplab/core"
)

// ErrEncoderTimeout is returned by Update while a read failure is injected
var ErrEncoderTimeout = errors.New("sim: encoder read timeout")

var (
	_ control.MotorDriver   = (*Motor)(nil)
	_ control.EncoderDriver = (*Encoder)(nil)
)

// Motor drives a Plant
type Motor struct {
	plant   *Plant
	enabled bool
}

// NewMotor creates a motor driver for p
func NewMotor(p *Plant) *Motor {
	return &Motor{plant: p}
}

func (m *Motor) Enable() error {
	m.enabled = true
	m.plant.setDrive(true, m.plant.duty)
	return nil
}

func (m *Motor) Disable() error {
	m.enabled = false
	m.plant.setDrive(false, 0)
	return nil
}

// SetDutyCycle clamps duty to the driver range
func (m *Motor) SetDutyCycle(duty int) error {
	if duty > control.DutyLimit {
		duty = control.DutyLimit
	} else if duty < -control.DutyLimit {
		duty = -control.DutyLimit
	}
	m.plant.setDrive(m.enabled, duty)
	return nil
}

// Encoder reads a Plant through a 16-bit counter. Each Update folds the
// signed counter delta into a 64-bit position, so the counter may wrap
// freely as long as fewer than 32768 counts pass between updates.
type Encoder struct {
	plant    *Plant
	prev     uint16
	position int64
	primed   bool
	failures int
}

// NewEncoder creates an encoder reading p
func NewEncoder(p *Plant) *Encoder {
	return &Encoder{plant: p}
}

func (e *Encoder) Zero() {
	e.prev = e.plant.counter()
	e.primed = true
	e.position = 0
}

func (e *Encoder) Update() error {
	if e.failures > 0 {
		e.failures--
		return ErrEncoderTimeout
	}
	raw := e.plant.counter()
	if !e.primed {
		e.prev = raw
		e.primed = true
	}
	e.position += int64(int16(raw - e.prev))
	e.prev = raw
	return nil
}

func (e *Encoder) Read() float64 {
	return float64(e.position) * 2 * math.Pi / float64(e.plant.params.CPR)
}

// Count returns the accumulated position in encoder counts
func (e *Encoder) Count() int64 {
	return e.position
}

// FailNext makes the next n Updates fail
func (e *Encoder) FailNext(n int) {
	e.failures = n
}

// NewAxis builds a plant with its motor and encoder
func NewAxis(p Params, clock core.Clock) (*Plant, *Motor, *Encoder) {
	plant := NewPlant(p, clock)
	return plant, NewMotor(plant), NewEncoder(plant)
}
