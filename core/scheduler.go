package core

// Discipline selects how a scheduling pass orders tasks
type Discipline uint8

const (
	PriorityOrder Discipline = iota // Due tasks only, highest priority first
	RoundRobin                      // Every task once, registration order
)

// String returns the discipline name
func (d Discipline) String() string {
	switch d {
	case PriorityOrder:
		return "priority"
	case RoundRobin:
		return "round-robin"
	default:
		return "unknown"
	}
}

// Fault records a task that was removed from scheduling
type Fault struct {
	Task  string
	Clock uint32
	Err   error
}

func (f Fault) Error() string {
	return "task " + f.Task + " faulted at " + utoa(f.Clock) + ": " + f.Err.Error()
}

func (f Fault) Unwrap() error {
	return f.Err
}

// Scheduler owns the task set and runs cooperative passes over it. It is
// not safe for use from more than one goroutine; everything it runs shares
// its single thread of control.
type Scheduler struct {
	clock      Clock
	tasks      []*Task // Registration order
	byPriority []*Task // Descending priority, registration order among equals
	faults     []Fault
	started    bool
	inPass     bool
	removed    bool

	// OnFault is called once for every task removed after an error
	OnFault func(Fault)
}

// NewScheduler creates an empty scheduler reading time from clock
func NewScheduler(clock Clock) *Scheduler {
	return &Scheduler{clock: clock}
}

// Register adds a task. Tasks are created at setup; registering after the
// first pass is refused.
func (s *Scheduler) Register(t *Task) error {
	if t == nil || t.body == nil {
		return ErrNilTask
	}
	if s.started {
		return ErrSchedulerStarted
	}
	if s.Lookup(t.name) != nil {
		return ErrDuplicateTask
	}
	t.id = uint8(len(s.tasks))
	s.tasks = append(s.tasks, t)
	s.insertByPriority(t)
	return nil
}

// insertByPriority inserts t after every task of equal or higher priority
func (s *Scheduler) insertByPriority(t *Task) {
	i := 0
	for i < len(s.byPriority) && s.byPriority[i].priority >= t.priority {
		i++
	}
	s.byPriority = append(s.byPriority, nil)
	copy(s.byPriority[i+1:], s.byPriority[i:])
	s.byPriority[i] = t
}

// Lookup returns the registered task with the given name, or nil
func (s *Scheduler) Lookup(name string) *Task {
	for _, t := range s.tasks {
		if t.name == name {
			return t
		}
	}
	return nil
}

// Tasks returns the scheduled tasks in registration order
func (s *Scheduler) Tasks() []*Task {
	out := make([]*Task, len(s.tasks))
	copy(out, s.tasks)
	return out
}

// Faults returns every fault recorded so far
func (s *Scheduler) Faults() []Fault {
	out := make([]Fault, len(s.faults))
	copy(out, s.faults)
	return out
}

// Pass runs one pass with the given discipline
func (s *Scheduler) Pass(d Discipline) int {
	if d == RoundRobin {
		return s.RoundRobinPass()
	}
	return s.PriorityPass()
}

// PriorityPass visits tasks from highest to lowest priority and ticks each
// one whose period has elapsed. It returns the number of ticks run.
func (s *Scheduler) PriorityPass() int {
	s.beginPass()
	defer s.endPass()

	ran := 0
	for _, t := range s.byPriority {
		if t.fault != nil {
			continue
		}
		now := s.clock.TicksMS()
		if !t.due(now) {
			continue
		}
		s.tick(t, now)
		ran++
	}
	return ran
}

// RoundRobinPass ticks every task once in registration order, ignoring
// periods. It returns the number of ticks run.
func (s *Scheduler) RoundRobinPass() int {
	s.beginPass()
	defer s.endPass()

	ran := 0
	for _, t := range s.tasks {
		if t.fault != nil {
			continue
		}
		s.tick(t, s.clock.TicksMS())
		ran++
	}
	return ran
}

// RunOnce ticks a single task immediately, outside any pass. The
// orchestrator uses it during shutdown to flush final outputs.
func (s *Scheduler) RunOnce(t *Task) error {
	if s.inPass {
		panic(ErrReentrant)
	}
	if t.fault != nil {
		return t.fault
	}
	s.inPass = true
	defer s.endPass()
	if err := s.tick(t, s.clock.TicksMS()); err != nil {
		return err
	}
	return nil
}

// NextDue returns the milliseconds until the earliest task is due, 0 if a
// task is due now, or -1 when nothing is scheduled.
func (s *Scheduler) NextDue() int32 {
	now := s.clock.TicksMS()
	next := int32(-1)
	for _, t := range s.tasks {
		if t.fault != nil {
			continue
		}
		if t.due(now) {
			return 0
		}
		wait := int32(t.period) - TicksDiff(now, t.lastRun)
		if next < 0 || wait < next {
			next = wait
		}
	}
	return next
}

// Reset resets every task between run-sets. Scheduling counts as not yet
// started again, so periods may be changed before the next pass.
func (s *Scheduler) Reset() {
	if s.inPass {
		panic(ErrReentrant)
	}
	s.started = false
	for _, t := range s.tasks {
		t.locked = false
		t.Reset()
	}
}

// Report returns a one-line-per-task profile summary
func (s *Scheduler) Report() string {
	out := "Task report (" + itoa(len(s.tasks)) + " tasks)\n"
	for _, t := range s.byPriority {
		out += "  " + t.String() + "\n"
	}
	for _, f := range s.faults {
		out += "  " + f.Error() + "\n"
	}
	return out
}

func (s *Scheduler) beginPass() {
	if s.inPass {
		panic(ErrReentrant)
	}
	s.inPass = true
	if !s.started {
		s.started = true
		for _, t := range s.tasks {
			t.locked = true
		}
	}
}

func (s *Scheduler) endPass() {
	s.inPass = false
	if s.removed {
		s.tasks = compact(s.tasks)
		s.byPriority = compact(s.byPriority)
		s.removed = false
	}
}

// tick runs one tick and isolates the task if it fails
func (s *Scheduler) tick(t *Task, now uint32) error {
	err := t.run(now)
	if err == nil {
		return nil
	}
	t.fault = err
	s.removed = true
	f := Fault{Task: t.name, Clock: now, Err: err}
	s.faults = append(s.faults, f)
	RecordTrace(EvtTaskFault, t.id, now, int32(t.lastState), 0)
	DebugPrintln(f.Error())
	if s.OnFault != nil {
		s.OnFault(f)
	}
	return f
}

// compact drops faulted tasks, keeping order
func compact(tasks []*Task) []*Task {
	kept := tasks[:0]
	for _, t := range tasks {
		if t.fault == nil {
			kept = append(kept, t)
		}
	}
	for i := len(kept); i < len(tasks); i++ {
		tasks[i] = nil
	}
	return kept
}
