//go:build rp2040

package main

import (
	"machine"
	"math"

	"tinygo.org/x/drivers/encoders"
	"tinygo.org/x/drivers/l293x"

	"steplab/control"
)

const (
	// countsPerRev is the quadrature count for one flywheel revolution
	countsPerRev = 16384

	pwmPeriodNS = 50000 // 20 kHz
)

// pinout for one axis on the bench board
type pinout struct {
	dir1, dir2 machine.Pin
	enable     machine.Pin
	pwm        l293x.PWM
	encA, encB machine.Pin
}

var boardAxes = []pinout{
	{dir1: machine.GPIO2, dir2: machine.GPIO3, enable: machine.GPIO4, pwm: machine.PWM2, encA: machine.GPIO6, encB: machine.GPIO7},
	{dir1: machine.GPIO8, dir2: machine.GPIO9, enable: machine.GPIO10, pwm: machine.PWM5, encA: machine.GPIO12, encB: machine.GPIO13},
}

// bridgeMotor drives one channel of an L293 H-bridge
type bridgeMotor struct {
	dev        l293x.PWMDevice
	pwm        l293x.PWM
	configured bool
	enabled    bool
}

func newBridgeMotor(p pinout) *bridgeMotor {
	return &bridgeMotor{
		dev: l293x.NewWithSpeed(p.dir1, p.dir2, p.enable, p.pwm),
		pwm: p.pwm,
	}
}

func (m *bridgeMotor) Enable() error {
	if !m.configured {
		if err := m.pwm.Configure(machine.PWMConfig{Period: pwmPeriodNS}); err != nil {
			return err
		}
		if err := m.dev.Configure(); err != nil {
			return err
		}
		m.configured = true
	}
	m.enabled = true
	return nil
}

func (m *bridgeMotor) Disable() error {
	if m.configured {
		m.dev.Stop()
	}
	m.enabled = false
	return nil
}

// SetDutyCycle maps signed percent duty onto bridge direction and speed
func (m *bridgeMotor) SetDutyCycle(duty int) error {
	if !m.enabled {
		return nil
	}
	switch {
	case duty > 0:
		m.dev.Forward(m.speed(duty))
	case duty < 0:
		m.dev.Backward(m.speed(-duty))
	default:
		m.dev.Stop()
	}
	return nil
}

// speed scales a percent duty to the PWM counter range
func (m *bridgeMotor) speed(duty int) uint32 {
	if duty > control.DutyLimit {
		duty = control.DutyLimit
	}
	return uint32(uint64(m.pwm.Top()) * uint64(duty) / control.DutyLimit)
}

// quadEncoder counts A/B edges in pin interrupts
type quadEncoder struct {
	dev   *encoders.QuadratureDevice
	count int
}

func newQuadEncoder(p pinout) (*quadEncoder, error) {
	dev := encoders.NewQuadratureViaInterrupt(p.encA, p.encB)
	if err := dev.Configure(encoders.QuadratureConfig{Precision: 4}); err != nil {
		return nil, err
	}
	return &quadEncoder{dev: dev}, nil
}

func (e *quadEncoder) Zero() {
	e.dev.SetPosition(0)
	e.count = 0
}

func (e *quadEncoder) Update() error {
	e.count = e.dev.Position()
	return nil
}

func (e *quadEncoder) Read() float64 {
	return float64(e.count) * 2 * math.Pi / countsPerRev
}

var (
	_ control.MotorDriver   = (*bridgeMotor)(nil)
	_ control.EncoderDriver = (*quadEncoder)(nil)
)
