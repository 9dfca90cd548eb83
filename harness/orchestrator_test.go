package harness

import (
	"bytes"
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"steplab/control"
	"steplab/core"
	"steplab/protocol"
	"steplab/sim"
)

func simAxis(clock core.Clock, setpoint float64, limitMS uint32) (AxisConfig, *sim.Plant, *sim.Encoder) {
	plant, motor, enc := sim.NewAxis(sim.DefaultParams(), clock)
	return AxisConfig{
		Setpoint:           setpoint,
		LimitMS:            limitMS,
		ControllerPeriodMS: 20,
		EncoderPeriodMS:    10,
		Motor:              motor,
		Encoder:            enc,
	}, plant, enc
}

func TestNewValidates(t *testing.T) {
	clock := core.NewManualClock(0)
	axis, _, _ := simAxis(clock, 1, 100)

	tests := []struct {
		cfg  Config
		want error
	}{
		{Config{Clock: clock}, ErrNoAxes},
		{Config{Clock: clock, Axes: []AxisConfig{axis, axis, axis}}, ErrTooManyAxes},
		{Config{Axes: []AxisConfig{axis}}, ErrNoClock},
		{Config{Clock: clock, Axes: []AxisConfig{{Setpoint: 1}}}, ErrMissingDriver},
	}
	for _, tt := range tests {
		if _, err := New(tt.cfg); !errors.Is(err, tt.want) {
			t.Errorf("Expected %v, got %v", tt.want, err)
		}
	}
}

func TestDefaultsAndPriorities(t *testing.T) {
	clock := core.NewManualClock(0)
	axis, _, _ := simAxis(clock, 1, 0)
	axis.ControllerPeriodMS = 0
	axis.EncoderPeriodMS = 0
	o, err := New(Config{Clock: clock, Axes: []AxisConfig{axis}})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	a := o.Axes()[0]
	if a.Config.Name != "motor1" || a.Config.LimitMS != 2000 || a.Config.QueueSize != 100 {
		t.Errorf("Unexpected defaults %+v", a.Config)
	}
	if a.Config.Gains.Kp != 50 {
		t.Errorf("Expected default Kp 50, got %v", a.Config.Gains.Kp)
	}

	want := map[string]struct {
		priority int
		period   uint32
	}{
		"motor1_motor":      {MotorPriority, 20},
		"motor1_encoder":    {EncoderPriority, 10},
		"motor1_controller": {ControllerPriority, 20},
	}
	for _, task := range o.Scheduler().Tasks() {
		w, ok := want[task.Name()]
		if !ok {
			t.Errorf("Unexpected task %s", task.Name())
			continue
		}
		if task.Priority() != w.priority || task.Period() != w.period {
			t.Errorf("%s: expected P%d %dms, got P%d %dms", task.Name(), w.priority, w.period, task.Priority(), task.Period())
		}
	}
}

func TestSingleAxisStepResponse(t *testing.T) {
	clock := core.NewManualClock(0)
	axis, plant, _ := simAxis(clock, 2*math.Pi, 2000)
	rec := NewRecorder()

	o, err := New(Config{
		Clock: clock,
		Axes:  []AxisConfig{axis},
		Sink:  rec,
		Runs:  1,
		Idle:  ManualIdle(clock),
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := o.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	runs := rec.Runs(1)
	if len(runs) != 1 {
		t.Fatalf("Expected 1 run, got %d", len(runs))
	}
	samples := runs[0]
	if len(samples) == 0 {
		t.Fatalf("Expected samples")
	}
	for i := 1; i < len(samples); i++ {
		if samples[i].ElapsedMS < samples[i-1].ElapsedMS {
			t.Fatalf("Samples out of order at %d: %d after %d", i, samples[i].ElapsedMS, samples[i-1].ElapsedMS)
		}
	}
	last := samples[len(samples)-1].ElapsedMS
	if last < 1980 || last > 2000+20 {
		t.Errorf("Expected last sample in [1980, 2020], got %d", last)
	}

	a := o.Axes()[0]
	if a.Shares.Duty.Get() != 0 || a.Motor.Applied() != 0 {
		t.Errorf("Expected final duty 0, share=%d applied=%d", a.Shares.Duty.Get(), a.Motor.Applied())
	}
	if plant.Enabled() {
		t.Errorf("Expected motor disabled after shutdown")
	}

	// The proportional loop should have moved the flywheel most of the way
	final := samples[len(samples)-1].Position
	if final < math.Pi || final > 3*math.Pi {
		t.Errorf("Expected position near 2pi, got %v", final)
	}
}

func TestTwoAxesIndependent(t *testing.T) {
	clock := core.NewManualClock(0)
	axis1, _, _ := simAxis(clock, 2*math.Pi, 400)
	axis2, _, _ := simAxis(clock, 4*math.Pi, 2000)
	rec := NewRecorder()

	o, err := New(Config{Clock: clock, Axes: []AxisConfig{axis1, axis2}, Sink: rec})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	a1, a2 := o.Axes()[0], o.Axes()[1]

	for clock.TicksMS() <= 400 {
		if _, err := o.Step(); err != nil {
			t.Fatalf("Step failed: %v", err)
		}
		clock.Advance(10)
	}

	if len(rec.Runs(1)) != 1 {
		t.Fatalf("Expected axis 1 drained once, got %d", len(rec.Runs(1)))
	}
	if len(rec.Runs(2)) != 0 {
		t.Errorf("Axis 2 should not have drained yet")
	}
	if a2.Controller.State() != control.StateRunning {
		t.Errorf("Expected axis 2 still RUNNING, got %v", a2.Controller.State())
	}
	// Axis 2 samples 20..400 are still queued
	if a2.Shares.Samples.Len() != 20 {
		t.Errorf("Expected 20 queued axis 2 samples, got %d", a2.Shares.Samples.Len())
	}
	head, _ := a2.Shares.Samples.Get()
	if head.ElapsedMS != 20 {
		t.Errorf("Expected axis 2 queue untouched, head at %d", head.ElapsedMS)
	}

	// Next controller tick takes axis 1 back through INIT into a new run
	for i := 0; i < 4; i++ {
		o.Step()
		clock.Advance(10)
	}
	if a1.Controller.State() != control.StateRunning {
		t.Errorf("Expected axis 1 to start a new run, got %v", a1.Controller.State())
	}
	if a2.Controller.State() != control.StateRunning {
		t.Errorf("Axis 2 perturbed: %v", a2.Controller.State())
	}
}

func TestDropUnderPressure(t *testing.T) {
	clock := core.NewManualClock(0)
	axis, _, _ := simAxis(clock, 1, 1000)
	axis.QueueSize = 8
	rec := NewRecorder()

	o, err := New(Config{Clock: clock, Axes: []AxisConfig{axis}, Sink: rec, Runs: 1, Idle: ManualIdle(clock)})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	o.Run(context.Background())

	samples := rec.Runs(1)[0]
	if len(samples) != 8 {
		t.Fatalf("Expected exactly 8 samples kept, got %d", len(samples))
	}
	for i, s := range samples {
		if want := uint32(20 * (i + 1)); s.ElapsedMS != want {
			t.Errorf("Sample %d: expected elapsed %d, got %d", i, want, s.ElapsedMS)
		}
	}
	if o.Axes()[0].Controller.Dropped() != 49-8 {
		t.Errorf("Expected 41 dropped, got %d", o.Axes()[0].Controller.Dropped())
	}
}

func TestAbortEndsRunEarly(t *testing.T) {
	clock := core.NewManualClock(0)
	axis, _, _ := simAxis(clock, 1, 2000)
	rec := NewRecorder()
	o, _ := New(Config{Clock: clock, Axes: []AxisConfig{axis}, Sink: rec})

	if o.Abort(1) {
		t.Errorf("Abort should refuse an axis that is not running")
	}
	for clock.TicksMS() < 100 {
		o.Step()
		clock.Advance(10)
	}
	if !o.Abort(1) {
		t.Fatalf("Expected Abort to accept a running axis")
	}
	for i := 0; i < 3; i++ {
		o.Step()
		clock.Advance(10)
	}

	runs := rec.Runs(1)
	if len(runs) != 1 || len(runs[0]) == 0 {
		t.Fatalf("Expected one short run, got %v", runs)
	}
	if last := runs[0][len(runs[0])-1].ElapsedMS; last >= 200 {
		t.Errorf("Expected run cut short, last sample at %d", last)
	}
	if o.Axes()[0].Shares.Stop.Get() {
		t.Errorf("Expected Stop cleared after drain")
	}
}

func TestEncoderFaultParksAxis(t *testing.T) {
	clock := core.NewManualClock(0)
	axis, _, enc := simAxis(clock, 10, 2000)
	axis.MaxReadFailures = 2
	o, _ := New(Config{Clock: clock, Axes: []AxisConfig{axis}, Idle: ManualIdle(clock)})

	for i := 0; i < 5; i++ {
		o.Step()
		clock.Advance(10)
	}
	enc.FailNext(10)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := o.Run(ctx); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	a := o.Axes()[0]
	if !a.Failed() {
		t.Errorf("Expected axis marked failed")
	}
	faults := o.Scheduler().Faults()
	if len(faults) != 1 || !errors.Is(faults[0], sim.ErrEncoderTimeout) {
		t.Errorf("Expected one encoder fault, got %v", faults)
	}
	if a.Shares.Duty.Get() != 0 {
		t.Errorf("Expected duty zeroed on shutdown")
	}
	if !strings.Contains(o.Status(), "FAILED") {
		t.Errorf("Status should flag the failed axis:\n%s", o.Status())
	}
}

func TestCancelShutsDownGracefully(t *testing.T) {
	clock := core.NewManualClock(0)
	axis, plant, _ := simAxis(clock, 2*math.Pi, 2000)
	var out bytes.Buffer

	ctx, cancel := context.WithCancel(context.Background())
	steps := 0
	idle := func(_ context.Context, wait time.Duration) {
		clock.Advance(uint32(wait / time.Millisecond))
		steps++
		if steps == 30 {
			cancel()
		}
	}
	o, _ := New(Config{Clock: clock, Axes: []AxisConfig{axis}, Sink: NewLineSink(&out), Idle: idle})

	if err := o.Run(ctx); err != nil {
		t.Fatalf("Cancellation should not be an error: %v", err)
	}
	if plant.Duty() != 0 || plant.Enabled() {
		t.Errorf("Expected motor zeroed and disabled, duty=%d", plant.Duty())
	}

	// Partial data is flushed with a marker
	text := out.String()
	if !strings.Contains(text, protocol.EndMarker(1)) {
		t.Errorf("Expected end marker in output:\n%s", text)
	}
	rr := protocol.NewRunReader(strings.NewReader(text))
	run, err := rr.Next()
	if err != nil || len(run.Points) == 0 || run.Skipped != 0 {
		t.Errorf("Expected clean partial run, got %+v %v", run, err)
	}

	// A halted harness stays halted
	if done, _ := o.Step(); !done {
		t.Errorf("Expected Step after shutdown to report done")
	}
}

func TestRearmRunsAgain(t *testing.T) {
	clock := core.NewManualClock(0)
	axis, _, _ := simAxis(clock, 2*math.Pi, 200)
	rec := NewRecorder()
	o, err := New(Config{Clock: clock, Axes: []AxisConfig{axis}, Sink: rec, Runs: 1, Idle: ManualIdle(clock)})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := o.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(rec.Runs(1)) != 1 {
		t.Fatalf("Expected one run before rearm, got %d", len(rec.Runs(1)))
	}
	if done, _ := o.Step(); !done {
		t.Errorf("Expected a halted harness to report done")
	}

	// Periods are frozen while a run-set is scheduled
	if err := o.SetControllerPeriod(1, 40); !errors.Is(err, core.ErrSchedulerStarted) {
		t.Errorf("Expected ErrSchedulerStarted, got %v", err)
	}

	if err := o.Rearm(); err != nil {
		t.Fatalf("Rearm failed: %v", err)
	}
	a := o.Axes()[0]
	if a.Runs() != 0 || a.Shares.Stop.Get() || a.Shares.Pending() {
		t.Errorf("Expected a released axis after Rearm: runs=%d %s", a.Runs(), a.Shares)
	}
	if err := o.SetControllerPeriod(1, 40); err != nil {
		t.Fatalf("SetControllerPeriod failed: %v", err)
	}
	if err := o.SetControllerPeriod(3, 40); !errors.Is(err, ErrNoSuchAxis) {
		t.Errorf("Expected ErrNoSuchAxis, got %v", err)
	}

	if err := o.Run(context.Background()); err != nil {
		t.Fatalf("second Run failed: %v", err)
	}
	runs := rec.Runs(1)
	if len(runs) != 2 || len(runs[1]) == 0 {
		t.Fatalf("Expected a second drained run, got %d runs", len(runs))
	}
	if got := runs[1][0].ElapsedMS; got != 40 {
		t.Errorf("Expected first sample of the second run at 40 ms, got %d", got)
	}
	if a.Controller.State() != control.StateStopped {
		t.Errorf("Expected controller parked after second run-set, got %s", a.Controller.State())
	}
}

// brokenMotor fails every duty write and refuses to disable
type brokenMotor struct{ disabled int }

func (m *brokenMotor) Enable() error          { return nil }
func (m *brokenMotor) SetDutyCycle(int) error { return errors.New("pwm write failed") }

func (m *brokenMotor) Disable() error {
	m.disabled++
	return errors.New("bridge stuck")
}

func TestMotorFaultLogsDisableError(t *testing.T) {
	var logged []string
	core.SetDebugWriter(func(s string) { logged = append(logged, s) })
	core.SetDebugEnabled(true)
	defer func() {
		core.SetDebugEnabled(false)
		core.SetDebugWriter(func(string) {})
	}()

	clock := core.NewManualClock(0)
	axis, _, _ := simAxis(clock, 1, 200)
	motor := &brokenMotor{}
	axis.Motor = motor
	o, err := New(Config{Clock: clock, Axes: []AxisConfig{axis}})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	o.Step()

	a := o.Axes()[0]
	if !a.Failed() || motor.disabled != 1 {
		t.Fatalf("Expected motor fault to disable the driver once, failed=%v disabled=%d", a.Failed(), motor.disabled)
	}
	found := false
	for _, line := range logged {
		if strings.Contains(line, "motor1") && strings.Contains(line, "bridge stuck") {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected disable error in debug log, got %q", logged)
	}
}
