//go:build linux

package main

import (
	"math"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"

	"steplab/control"
)

// bridgeMotor drives an H-bridge from one PWM channel and two direction
// lines
type bridgeMotor struct {
	pwm      *hwPWM
	in1, in2 *gpio
	period   time.Duration
	enabled  bool
	dir      int // -1, 0, 1, or dirUnknown before the first write
}

const dirUnknown = 2

func newBridgeMotor(pwm *hwPWM, in1, in2 *gpio, period time.Duration) *bridgeMotor {
	return &bridgeMotor{pwm: pwm, in1: in1, in2: in2, period: period, dir: dirUnknown}
}

func (m *bridgeMotor) Enable() error {
	if err := m.pwm.Enable(true); err != nil {
		return err
	}
	m.enabled = true
	return nil
}

// Disable lets the motor coast and turns the PWM output off
func (m *bridgeMotor) Disable() error {
	m.enabled = false
	if err := m.setDirection(0); err != nil {
		return err
	}
	if err := m.pwm.Set(m.period, 0); err != nil {
		return err
	}
	return m.pwm.Enable(false)
}

func (m *bridgeMotor) SetDutyCycle(duty int) error {
	if !m.enabled {
		return nil
	}
	if duty > control.DutyLimit {
		duty = control.DutyLimit
	} else if duty < -control.DutyLimit {
		duty = -control.DutyLimit
	}
	dir := 0
	if duty > 0 {
		dir = 1
	} else if duty < 0 {
		dir = -1
	}
	if err := m.setDirection(dir); err != nil {
		return err
	}
	mag := duty
	if mag < 0 {
		mag = -mag
	}
	return m.pwm.Set(m.period, mag)
}

func (m *bridgeMotor) setDirection(dir int) error {
	if dir == m.dir {
		return nil
	}
	a, b := 0, 0
	switch dir {
	case 1:
		a = 1
	case -1:
		b = 1
	}
	if err := m.in1.Set(a); err != nil {
		return err
	}
	if err := m.in2.Set(b); err != nil {
		return err
	}
	m.dir = dir
	return nil
}

func (m *bridgeMotor) Close() {
	m.Disable()
	m.pwm.Close()
	m.in1.Close()
	m.in2.Close()
}

// quadStep maps (previous<<2 | current) A/B states to a count step
var quadStep = [16]int8{0, 1, -1, 0, -1, 0, 0, 1, 1, 0, 0, -1, 0, -1, 1, 0}

// quadEncoder counts A/B edges from a watcher goroutine
type quadEncoder struct {
	a, b  *gpio
	cpr   float64
	count atomic.Int64
	state uint8

	mu       sync.Mutex
	err      error
	snapshot int64

	done chan struct{}
	wg   sync.WaitGroup
}

func newQuadEncoder(a, b *gpio, cpr int) (*quadEncoder, error) {
	e := &quadEncoder{a: a, b: b, cpr: float64(cpr), done: make(chan struct{})}
	s, err := e.levels()
	if err != nil {
		return nil, err
	}
	e.state = s
	e.wg.Add(1)
	go e.watch()
	return e, nil
}

func (e *quadEncoder) levels() (uint8, error) {
	va, err := e.a.Get()
	if err != nil {
		return 0, err
	}
	vb, err := e.b.Get()
	if err != nil {
		return 0, err
	}
	return uint8(va<<1 | vb), nil
}

// step folds a new A/B state into the count
func (e *quadEncoder) step(s uint8) {
	e.count.Add(int64(quadStep[e.state<<2|s]))
	e.state = s
}

func (e *quadEncoder) watch() {
	defer e.wg.Done()
	fds := []unix.PollFd{e.a.pollFd(), e.b.pollFd()}
	for {
		select {
		case <-e.done:
			return
		default:
		}
		fds[0].Revents, fds[1].Revents = 0, 0
		n, err := unix.Poll(fds, 100)
		if err == unix.EINTR || n == 0 {
			continue
		}
		if err == nil {
			var s uint8
			s, err = e.levels()
			if err == nil {
				e.step(s)
				continue
			}
		}
		e.mu.Lock()
		e.err = err
		e.mu.Unlock()
		return
	}
}

func (e *quadEncoder) Zero() {
	e.count.Store(0)
	e.snapshot = 0
}

// Update latches the current count, or reports why the watcher stopped
func (e *quadEncoder) Update() error {
	e.mu.Lock()
	err := e.err
	e.mu.Unlock()
	if err != nil {
		return err
	}
	e.snapshot = e.count.Load()
	return nil
}

func (e *quadEncoder) Read() float64 {
	return float64(e.snapshot) * 2 * math.Pi / e.cpr
}

func (e *quadEncoder) Close() {
	close(e.done)
	e.wg.Wait()
	e.a.Close()
	e.b.Close()
}

var (
	_ control.MotorDriver   = (*bridgeMotor)(nil)
	_ control.EncoderDriver = (*quadEncoder)(nil)
)
