package control

import (
	"errors"
	"math"
	"testing"

	"steplab/core"
)

type fakeMotor struct {
	enabled bool
	duties  []int
	failSet error
}

func (m *fakeMotor) Enable() error  { m.enabled = true; return nil }
func (m *fakeMotor) Disable() error { m.enabled = false; return nil }
func (m *fakeMotor) SetDutyCycle(d int) error {
	if m.failSet != nil {
		return m.failSet
	}
	m.duties = append(m.duties, d)
	return nil
}

type fakeEncoder struct {
	angle   float64
	zeroed  int
	failing bool
}

func (e *fakeEncoder) Zero() { e.zeroed++; e.angle = 0 }
func (e *fakeEncoder) Update() error {
	if e.failing {
		return errors.New("bus timeout")
	}
	return nil
}
func (e *fakeEncoder) Read() float64 { return e.angle }

func TestDuty(t *testing.T) {
	tests := []struct {
		in   float64
		want int
	}{
		{0, 0},
		{12.4, 12},
		{12.5, 13},
		{-12.5, -13},
		{99.6, 100},
		{314.16, 100},
		{-1e9, -100},
		{math.Inf(1), 100},
		{math.Inf(-1), -100},
		{math.NaN(), 0},
	}
	for _, tt := range tests {
		if got := Duty(tt.in, DutyLimit); got != tt.want {
			t.Errorf("Duty(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestClosedLoopProportional(t *testing.T) {
	c := NewClosedLoop(DefaultGains(), 2*math.Pi)
	out := c.Update(0, 0.02)
	if math.Abs(out-50*2*math.Pi) > 1e-9 {
		t.Errorf("Expected Kp*error, got %v", out)
	}
	c.ChangeSetpoint(1)
	if out := c.Update(1, 0.02); out != 0 {
		t.Errorf("Expected zero output at setpoint, got %v", out)
	}
}

func TestClosedLoopIntegralLimit(t *testing.T) {
	c := NewClosedLoop(Gains{Ki: 1, IntegralLimit: 0.5}, 1)
	for i := 0; i < 100; i++ {
		c.Update(0, 0.1)
	}
	if out := c.Update(0, 0.1); math.Abs(out-0.5) > 1e-9 {
		t.Errorf("Expected integral clamped to 0.5, got %v", out)
	}
	c.Reset()
	if out := c.Update(1, 0.1); out != 0 {
		t.Errorf("Expected Reset to clear integral, got %v", out)
	}
}

func TestClosedLoopDerivative(t *testing.T) {
	c := NewClosedLoop(Gains{Kd: 2}, 0)
	if out := c.Update(0, 0.5); out != 0 {
		t.Errorf("Expected no derivative kick on first update, got %v", out)
	}
	// error goes 0 -> -1 over 0.5s
	if out := c.Update(1, 0.5); math.Abs(out-(-4)) > 1e-9 {
		t.Errorf("Expected -4, got %v", out)
	}
}

func TestAxisControllerStateSequence(t *testing.T) {
	clock := core.NewManualClock(0)
	shares := NewAxisShares("m1", 2*math.Pi, 100)
	ctrl := NewAxisController(shares, NewClosedLoop(DefaultGains(), 0), clock, 100)

	step := func() AxisState {
		ctrl.Tick()
		clock.Advance(20)
		return ctrl.State()
	}

	if ctrl.State() != StateInit {
		t.Fatalf("Expected INIT before first tick")
	}
	if s := step(); s != StateRunning {
		t.Fatalf("Expected RUNNING after one tick, got %v", s)
	}
	for ms := 20; ms < 100; ms += 20 {
		if s := step(); s != StateRunning {
			t.Fatalf("Expected RUNNING at %dms, got %v", ms, s)
		}
		if shares.Duty.Get() != DutyLimit {
			t.Errorf("Expected saturated duty at %dms, got %d", ms, shares.Duty.Get())
		}
	}
	if s := step(); s != StateStopped {
		t.Fatalf("Expected STOPPED at the limit, got %v", s)
	}
	if shares.Duty.Get() != 0 {
		t.Errorf("Expected duty forced to 0, got %d", shares.Duty.Get())
	}
	if shares.Finished.Get() != 1 || !shares.Pending() {
		t.Errorf("Expected one finished run pending drain")
	}
	if shares.Samples.Len() != 4 {
		t.Errorf("Expected 4 samples (20..80ms), got %d", shares.Samples.Len())
	}

	// Holds until the run is drained
	for i := 0; i < 3; i++ {
		if s := step(); s != StateStopped {
			t.Fatalf("Expected to hold STOPPED before drain, got %v", s)
		}
	}

	shares.Drained.Put(shares.Finished.Get())
	if s := step(); s != StateInit {
		t.Fatalf("Expected INIT after drain, got %v", s)
	}
	if s := step(); s != StateRunning {
		t.Fatalf("Expected a new run to start, got %v", s)
	}
}

func TestAxisControllerExternalStop(t *testing.T) {
	clock := core.NewManualClock(0)
	shares := NewAxisShares("m1", 1, 10)
	ctrl := NewAxisController(shares, NewClosedLoop(DefaultGains(), 0), clock, 10000)

	ctrl.Tick()
	clock.Advance(20)
	ctrl.Tick()

	shares.Stop.Put(true)
	clock.Advance(20)
	ctrl.Tick()
	if ctrl.State() != StateStopped || shares.Duty.Get() != 0 {
		t.Fatalf("Expected Stop to force STOPPED with zero duty")
	}

	// Drained but Stop still raised
	shares.Drained.Put(shares.Finished.Get())
	ctrl.Tick()
	if ctrl.State() != StateStopped {
		t.Errorf("Expected STOPPED while Stop is raised")
	}

	shares.Stop.Put(false)
	ctrl.Tick()
	if ctrl.State() != StateInit {
		t.Errorf("Expected INIT once Stop clears, got %v", ctrl.State())
	}
}

func TestAxisControllerInitHonorsStop(t *testing.T) {
	shares := NewAxisShares("m1", 1, 10)
	shares.Stop.Put(true)
	ctrl := NewAxisController(shares, NewClosedLoop(DefaultGains(), 0), core.NewManualClock(0), 100)
	ctrl.Tick()
	if ctrl.State() != StateInit {
		t.Errorf("Expected INIT to wait while Stop is raised, got %v", ctrl.State())
	}
}

func TestAxisControllerOriginAndWraparound(t *testing.T) {
	clock := core.NewManualClock(math.MaxUint32 - 30)
	shares := NewAxisShares("m1", 1, 10)
	shares.Position.Put(5)
	ctrl := NewAxisController(shares, NewClosedLoop(DefaultGains(), 0), clock, 1000)

	ctrl.Tick()
	clock.Advance(50)
	shares.Position.Put(5.25)
	ctrl.Tick()

	s, err := shares.Samples.Get()
	if err != nil {
		t.Fatalf("Expected a sample: %v", err)
	}
	if s.ElapsedMS != 50 {
		t.Errorf("Expected 50ms elapsed across wraparound, got %d", s.ElapsedMS)
	}
	if math.Abs(s.Position-0.25) > 1e-12 {
		t.Errorf("Expected position relative to origin, got %v", s.Position)
	}
}

func TestAxisControllerDropsWhenFull(t *testing.T) {
	clock := core.NewManualClock(0)
	shares := NewAxisShares("m1", 1, 3)
	ctrl := NewAxisController(shares, NewClosedLoop(DefaultGains(), 0), clock, 1000)

	for i := 0; i < 10; i++ {
		ctrl.Tick()
		clock.Advance(10)
	}
	if shares.Samples.Len() != 3 {
		t.Fatalf("Expected queue capped at 3, got %d", shares.Samples.Len())
	}
	for _, want := range []uint32{10, 20, 30} {
		s, _ := shares.Samples.Get()
		if s.ElapsedMS != want {
			t.Errorf("Expected first samples kept, wanted %d got %d", want, s.ElapsedMS)
		}
	}
	if ctrl.Dropped() != 6 {
		t.Errorf("Expected 6 dropped, got %d", ctrl.Dropped())
	}
}

func TestMotorTask(t *testing.T) {
	motor := &fakeMotor{}
	duty := core.NewShare("duty", 0)
	task := NewMotorTask(motor, duty)

	duty.Put(-40)
	task.Tick()
	if !motor.enabled || task.Applied() != -40 {
		t.Errorf("Expected enabled motor at -40, got enabled=%v duty=%d", motor.enabled, task.Applied())
	}

	if err := task.Disable(); err != nil || motor.enabled {
		t.Errorf("Expected Disable to de-energize the motor")
	}

	errStall := errors.New("stall")
	motor.failSet = errStall
	if _, err := task.Tick(); !errors.Is(err, errStall) {
		t.Errorf("Expected wrapped driver error, got %v", err)
	}
}

func TestEncoderTask(t *testing.T) {
	enc := &fakeEncoder{angle: 3}
	pos := core.NewShare("pos", 0.0)
	task := NewEncoderTask(enc, pos, 3)

	task.Tick()
	if enc.zeroed != 1 || pos.Get() != 0 {
		t.Errorf("Expected encoder zeroed on first tick")
	}
	enc.angle = 1.5
	task.Tick()
	if pos.Get() != 1.5 {
		t.Errorf("Expected 1.5, got %v", pos.Get())
	}

	enc.failing = true
	for i := 0; i < 2; i++ {
		if _, err := task.Tick(); err != nil {
			t.Fatalf("Expected failure %d to be tolerated: %v", i+1, err)
		}
	}
	if pos.Get() != 1.5 || task.Skipped() != 2 {
		t.Errorf("Expected stale position kept and 2 skipped")
	}
	if _, err := task.Tick(); err == nil {
		t.Errorf("Expected third consecutive failure to fault")
	}
}
