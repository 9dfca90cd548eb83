// Package harness wires axes onto a scheduler, loops it, and drains
// finished step-response runs to a sink.
package harness

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"steplab/control"
	"steplab/core"
)

// Axis is one wired motor/encoder/controller triple
type Axis struct {
	Number     int // 1-based, used in end-of-run markers
	Config     AxisConfig
	Shares     *control.AxisShares
	Controller *control.AxisController
	Motor      *control.MotorTask
	Encoder    *control.EncoderTask

	motorTask      *core.Task
	encoderTask    *core.Task
	controllerTask *core.Task

	runs    int
	samples uint32
	failed  bool
}

// Runs returns the number of runs drained in the current run-set
func (a *Axis) Runs() int {
	return a.runs
}

// Failed reports whether one of the axis's tasks has faulted
func (a *Axis) Failed() bool {
	return a.failed
}

// Orchestrator owns the scheduler and every axis
type Orchestrator struct {
	cfg    Config
	sched  *core.Scheduler
	axes   []*Axis
	byTask map[string]*Axis
	halted bool
}

// New builds shares, queues and tasks for every configured axis and
// registers them. Per axis the tasks are registered motor, encoder,
// controller.
func New(cfg Config) (*Orchestrator, error) {
	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}

	o := &Orchestrator{
		cfg:    cfg,
		sched:  core.NewScheduler(cfg.Clock),
		byTask: make(map[string]*Axis),
	}
	o.sched.OnFault = o.handleFault

	var opts []core.Option
	if cfg.ThreadProtect {
		opts = append(opts, core.ThreadProtect())
	}

	for i, ac := range cfg.Axes {
		shares := control.NewAxisShares(ac.Name, ac.Setpoint, ac.QueueSize, opts...)
		law := control.NewClosedLoop(ac.Gains, ac.Setpoint)
		a := &Axis{
			Number:     i + 1,
			Config:     ac,
			Shares:     shares,
			Controller: control.NewAxisController(shares, law, cfg.Clock, ac.LimitMS),
			Motor:      control.NewMotorTask(ac.Motor, shares.Duty),
			Encoder:    control.NewEncoderTask(ac.Encoder, shares.Position, ac.MaxReadFailures),
		}
		a.motorTask = core.NewTask(ac.Name+"_motor", MotorPriority, ac.MotorPeriodMS, a.Motor)
		a.encoderTask = core.NewTask(ac.Name+"_encoder", EncoderPriority, ac.EncoderPeriodMS, a.Encoder)
		a.controllerTask = core.NewTask(ac.Name+"_controller", ControllerPriority, ac.ControllerPeriodMS, a.Controller)

		for _, t := range []*core.Task{a.motorTask, a.encoderTask, a.controllerTask} {
			t.SetTrace(cfg.Trace)
			if err := o.sched.Register(t); err != nil {
				return nil, fmt.Errorf("register %s: %w", t.Name(), err)
			}
			o.byTask[t.Name()] = a
		}
		o.axes = append(o.axes, a)
	}
	return o, nil
}

// Scheduler returns the underlying scheduler
func (o *Orchestrator) Scheduler() *core.Scheduler {
	return o.sched
}

// Axes returns the wired axes
func (o *Orchestrator) Axes() []*Axis {
	return o.axes
}

// Abort asks a running axis to end its current run early. The run is
// drained as usual and the next one starts afterwards. It reports false if
// the axis is not running.
func (o *Orchestrator) Abort(axis int) bool {
	if axis < 1 || axis > len(o.axes) {
		return false
	}
	a := o.axes[axis-1]
	if a.failed || a.Controller.State() != control.StateRunning {
		return false
	}
	a.Shares.Stop.Put(true)
	return true
}

// Step runs one scheduling pass, then drains every axis with a finished
// run. It reports true once every axis has completed its configured runs
// or failed.
func (o *Orchestrator) Step() (bool, error) {
	if o.halted {
		return true, nil
	}
	o.sched.Pass(o.cfg.Discipline)

	for _, a := range o.axes {
		if !a.Shares.Pending() {
			continue
		}
		if err := o.drain(a); err != nil {
			return false, err
		}
	}
	return o.done(), nil
}

// drain empties an axis's queue to the sink, then releases the axis
func (o *Orchestrator) drain(a *Axis) error {
	for !a.Shares.Samples.Empty() {
		s, err := a.Shares.Samples.Get()
		if err != nil {
			return err
		}
		a.samples++
		if err := o.cfg.Sink.Sample(a.Number, s); err != nil {
			return fmt.Errorf("axis %d sample: %w", a.Number, err)
		}
	}
	if err := o.cfg.Sink.EndOfRun(a.Number); err != nil {
		return fmt.Errorf("axis %d end of run: %w", a.Number, err)
	}
	a.runs++
	core.DebugPrintln("axis " + a.Config.Name + " run " + strconv.Itoa(a.runs) + " drained")

	// Holding Stop keeps a finished or failed axis parked in STOPPED
	hold := a.failed || (o.cfg.Runs > 0 && a.runs >= o.cfg.Runs)
	a.Shares.Stop.Put(hold)
	a.Shares.Drained.Put(a.Shares.Finished.Get())
	return nil
}

func (o *Orchestrator) done() bool {
	for _, a := range o.axes {
		if a.Shares.Pending() {
			return false
		}
		if a.failed {
			continue
		}
		if o.cfg.Runs == 0 || a.runs < o.cfg.Runs {
			return false
		}
	}
	return true
}

// handleFault parks the axis that owned the faulted task
func (o *Orchestrator) handleFault(f core.Fault) {
	core.DebugPrintln("fault: " + f.Error())
	a, ok := o.byTask[f.Task]
	if !ok {
		return
	}
	a.failed = true
	a.Shares.Stop.Put(true)
	switch f.Task {
	case a.controllerTask.Name():
		// Nothing else writes duty while the controller is gone
		a.Shares.Duty.Put(0)
	case a.motorTask.Name():
		if err := a.Motor.Disable(); err != nil {
			core.DebugPrintln("axis " + a.Config.Name + ": " + err.Error())
		}
	}
}

// Run loops the scheduler until every axis is done or ctx is cancelled,
// then shuts down. Cancellation is not an error.
func (o *Orchestrator) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return o.Shutdown()
		default:
		}

		done, err := o.Step()
		if err != nil {
			o.Shutdown()
			return err
		}
		if done {
			return o.Shutdown()
		}

		wait := time.Duration(0)
		if o.cfg.Discipline == core.PriorityOrder {
			if next := o.sched.NextDue(); next > 0 {
				wait = time.Duration(next) * time.Millisecond
			}
		}
		o.cfg.Idle(ctx, wait)
	}
}

// Shutdown zeroes every duty output, ticks each motor task once to apply
// it, flushes any buffered samples and disables the motors. The scheduler
// is halted first, so the orchestrator is the only writer left.
func (o *Orchestrator) Shutdown() error {
	if o.halted {
		return nil
	}
	o.halted = true

	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	for _, a := range o.axes {
		a.Shares.Stop.Put(true)
		a.Shares.Duty.Put(0)
		if a.motorTask.Fault() == nil {
			keep(o.sched.RunOnce(a.motorTask))
		}
		keep(a.Motor.Disable())
	}

	for _, a := range o.axes {
		if a.Shares.Samples.Empty() {
			continue
		}
		keep(o.drain(a))
	}

	core.DebugPrintln("harness halted")
	return firstErr
}

// Rearm readies the existing tasks for another run-set. A running harness
// is shut down first and leftover samples are discarded. Healthy axes go
// back to INIT; failed axes stay parked. Controller periods may be changed
// after Rearm and before the next Step.
func (o *Orchestrator) Rearm() error {
	err := o.Shutdown()
	o.sched.Reset()
	for _, a := range o.axes {
		a.Shares.Samples.Clear()
		a.Shares.Duty.Put(0)
		a.Shares.Stop.Put(a.failed)
		a.Shares.Drained.Put(a.Shares.Finished.Get())
		a.runs = 0
	}
	o.halted = false
	core.DebugPrintln("harness rearmed")
	return err
}

// SetControllerPeriod changes an axis's controller period between
// run-sets. A motor period that tracked the controller follows it.
func (o *Orchestrator) SetControllerPeriod(axis int, periodMS uint32) error {
	if axis < 1 || axis > len(o.axes) {
		return fmt.Errorf("axis %d: %w", axis, ErrNoSuchAxis)
	}
	a := o.axes[axis-1]
	if a.motorTask.Period() == a.controllerTask.Period() {
		if err := a.motorTask.SetPeriod(periodMS); err != nil {
			return err
		}
		a.Config.MotorPeriodMS = periodMS
	}
	if err := a.controllerTask.SetPeriod(periodMS); err != nil {
		return err
	}
	a.Config.ControllerPeriodMS = periodMS
	return nil
}

// Status returns a human-readable report of every axis and task
func (o *Orchestrator) Status() string {
	out := ""
	for _, a := range o.axes {
		out += fmt.Sprintf("Axis %d %s: %s runs=%d samples=%d dropped=%d skipped=%d",
			a.Number, a.Config.Name, a.Controller.State(), a.runs, a.samples,
			a.Controller.Dropped(), a.Encoder.Skipped())
		if a.failed {
			out += " FAILED"
		}
		out += "\n" + a.Shares.String() + "\n"
	}
	return out + o.sched.Report()
}
