// Package sim models a DC motor with a quadrature encoder so the harness
// can run without hardware. The plant integrates lazily: its state is
// brought up to the clock's current tick whenever a driver touches it.
package sim

import (
	"math"

	"steplab/core"
)

// Params describes the simulated motor
type Params struct {
	MaxSpeed     float64 // Steady-state speed at full duty, rad/s
	TimeConstant float64 // Mechanical time constant, seconds
	CPR          int     // Encoder counts per output revolution
	Deadband     int     // Duty magnitude that does not overcome friction
}

// DefaultParams approximates a small geared flywheel rig
func DefaultParams() Params {
	return Params{
		MaxSpeed:     30,
		TimeConstant: 0.05,
		CPR:          16384,
		Deadband:     3,
	}
}

// Plant is the shared physical state behind one Motor and one Encoder
type Plant struct {
	params Params
	clock  core.Clock

	last    uint32
	started bool
	enabled bool
	duty    int

	omega float64 // rad/s
	theta float64 // rad
}

// NewPlant creates a motor at rest at angle zero
func NewPlant(p Params, clock core.Clock) *Plant {
	if p.TimeConstant <= 0 {
		p.TimeConstant = DefaultParams().TimeConstant
	}
	if p.CPR <= 0 {
		p.CPR = DefaultParams().CPR
	}
	return &Plant{params: p, clock: clock}
}

// advance integrates from the last update to now. The input is constant
// over the interval so the first-order response is solved exactly.
func (p *Plant) advance() {
	now := p.clock.TicksMS()
	if !p.started {
		p.last = now
		p.started = true
		return
	}
	d := core.TicksDiff(now, p.last)
	if d <= 0 {
		return
	}
	p.last = now

	dt := float64(d) / 1000
	tau := p.params.TimeConstant
	target := p.targetSpeed()
	decay := math.Exp(-dt / tau)
	p.theta += target*dt + (p.omega-target)*tau*(1-decay)
	p.omega = target + (p.omega-target)*decay
}

func (p *Plant) targetSpeed() float64 {
	if !p.enabled {
		return 0
	}
	d := p.duty
	if d > -p.params.Deadband && d < p.params.Deadband {
		return 0
	}
	return float64(d) / 100 * p.params.MaxSpeed
}

// Angle returns the shaft angle in radians
func (p *Plant) Angle() float64 {
	p.advance()
	return p.theta
}

// Speed returns the shaft speed in rad/s
func (p *Plant) Speed() float64 {
	p.advance()
	return p.omega
}

// Duty returns the duty currently driving the plant
func (p *Plant) Duty() int {
	return p.duty
}

// Enabled reports whether the driver stage is energized
func (p *Plant) Enabled() bool {
	return p.enabled
}

// counter returns the raw 16-bit hardware count
func (p *Plant) counter() uint16 {
	ticks := int64(math.Floor(p.Angle() * float64(p.params.CPR) / (2 * math.Pi)))
	return uint16(ticks)
}

func (p *Plant) setDrive(enabled bool, duty int) {
	p.advance()
	p.enabled = enabled
	p.duty = duty
}
