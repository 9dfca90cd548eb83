package core

import "errors"

// TickState is the value a task body yields from each tick. The scheduler
// does not interpret it beyond tracing changes; state-machine tasks return
// their current state so the trace shows transitions.
type TickState int

// Body is the per-tick step of a task. Tick must do a bounded amount of
// work and return; waiting is expressed by returning and being called
// again next period. A non-nil error removes the task from scheduling.
type Body interface {
	Tick() (TickState, error)
}

// Resetter is implemented by bodies that can re-seed their state between
// runs without being recreated.
type Resetter interface {
	Reset()
}

// BodyFunc adapts a plain function to Body
type BodyFunc func() (TickState, error)

func (f BodyFunc) Tick() (TickState, error) {
	return f()
}

var (
	ErrSchedulerStarted = errors.New("scheduler already started")
	ErrDuplicateTask    = errors.New("duplicate task name")
	ErrNilTask          = errors.New("nil task or body")
	ErrReentrant        = errors.New("scheduler called from inside a task tick")
)

// Profile accumulates timing statistics for a task
type Profile struct {
	Runs        uint32 // Ticks executed
	Late        uint32 // Ticks that started after their due time
	TotalLateMS uint32 // Sum of lateness over all late ticks
	MaxLateMS   uint32 // Worst lateness seen
}

// AverageLateMS returns the mean lateness of late ticks
func (p Profile) AverageLateMS() uint32 {
	if p.Late == 0 {
		return 0
	}
	return p.TotalLateMS / p.Late
}

// Task is a named, prioritized unit of cooperative work run by a Scheduler.
// Priority convention: a larger number runs first.
type Task struct {
	name     string
	id       uint8
	priority int
	period   uint32 // Milliseconds between ticks; 0 runs on every pass
	body     Body

	lastRun   uint32
	hasRun    bool
	lastState TickState
	profile   Profile
	trace     bool
	locked    bool // Set once the owning scheduler has run a pass
	fault     error
}

// NewTask creates a task. The priority is fixed for the task's lifetime.
func NewTask(name string, priority int, periodMS uint32, body Body) *Task {
	return &Task{
		name:     name,
		priority: priority,
		period:   periodMS,
		body:     body,
	}
}

// Name returns the task name
func (t *Task) Name() string {
	return t.name
}

// Priority returns the task priority
func (t *Task) Priority() int {
	return t.priority
}

// Period returns the tick period in milliseconds
func (t *Task) Period() uint32 {
	return t.period
}

// SetPeriod changes the tick period. Periods are configuration: once the
// scheduler has started running passes the period is frozen.
func (t *Task) SetPeriod(periodMS uint32) error {
	if t.locked {
		return ErrSchedulerStarted
	}
	t.period = periodMS
	return nil
}

// SetTrace enables recording of state changes into the trace ring
func (t *Task) SetTrace(enabled bool) {
	t.trace = enabled
}

// Profile returns a copy of the task's timing statistics
func (t *Task) Profile() Profile {
	return t.profile
}

// LastState returns the value returned by the most recent tick
func (t *Task) LastState() TickState {
	return t.lastState
}

// Fault returns the error that removed the task, if any
func (t *Task) Fault() error {
	return t.fault
}

// Reset clears counters and trace state and re-seeds the body if it
// supports it. The task stays registered.
func (t *Task) Reset() {
	t.hasRun = false
	t.lastRun = 0
	t.lastState = 0
	t.profile = Profile{}
	if r, ok := t.body.(Resetter); ok {
		r.Reset()
	}
	if t.trace {
		RecordTrace(EvtReset, t.id, GetTime(), 0, 0)
	}
}

// due reports whether the period has elapsed since the last tick
func (t *Task) due(now uint32) bool {
	if !t.hasRun || t.period == 0 {
		return true
	}
	return TicksDiff(now, t.lastRun) >= int32(t.period)
}

// run executes one tick, converting a panic into an error so a faulty
// body cannot unwind through the scheduler.
func (t *Task) run(now uint32) (err error) {
	if t.hasRun && t.period != 0 {
		late := TicksDiff(now, t.lastRun) - int32(t.period)
		if late > 0 {
			t.profile.Late++
			t.profile.TotalLateMS += uint32(late)
			if uint32(late) > t.profile.MaxLateMS {
				t.profile.MaxLateMS = uint32(late)
			}
			if t.trace && late >= int32(t.period) {
				RecordTrace(EvtTaskLate, t.id, now, late, int32(t.period))
			}
		}
	}

	defer func() {
		if r := recover(); r != nil {
			err = panicError(r)
		}
	}()

	state, err := t.body.Tick()
	t.lastRun = now
	t.hasRun = true
	t.profile.Runs++
	if state != t.lastState {
		if t.trace {
			RecordTrace(EvtTaskState, t.id, now, int32(t.lastState), int32(state))
		}
		t.lastState = state
	}
	return err
}

// String formats one line of the scheduler report
func (t *Task) String() string {
	s := t.name + " P" + itoa(t.priority) + " " + utoa(t.period) + "ms runs " +
		utoa(t.profile.Runs) + " late " + utoa(t.profile.Late) +
		" avg " + utoa(t.profile.AverageLateMS()) + "ms max " + utoa(t.profile.MaxLateMS) + "ms"
	if t.fault != nil {
		s += " FAULT: " + t.fault.Error()
	}
	return s
}

func panicError(r interface{}) error {
	switch v := r.(type) {
	case error:
		return v
	case string:
		return errors.New(v)
	default:
		return errors.New("panic: " + valueToString(v))
	}
}
