package control

import "steplab/core"

// AxisState is the phase of one axis's step-response cycle
type AxisState uint8

const (
	StateInit AxisState = iota
	StateRunning
	StateStopped
)

func (s AxisState) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateRunning:
		return "RUNNING"
	case StateStopped:
		return "STOPPED"
	default:
		return "INVALID"
	}
}

// AxisController runs one bounded step response per cycle:
//
//	INIT     snapshot the setpoint, take the current angle as the origin,
//	         record the start tick
//	RUNNING  drive toward the setpoint and buffer samples until the time
//	         limit passes or Stop is raised
//	STOPPED  hold zero duty until the orchestrator has drained the run and
//	         Stop is clear, then go back to INIT
//
// The controller never writes Stop or Drained. Leaving STOPPED is decided
// from Finished (its own counter) and Drained (the orchestrator's), so each
// share keeps a single writer.
type AxisController struct {
	shares  *AxisShares
	law     *ClosedLoop
	clock   core.Clock
	limitMS uint32

	state    AxisState
	origin   float64
	start    uint32
	lastTick uint32
	dropped  uint32
}

// NewAxisController creates a controller that starts in INIT
func NewAxisController(shares *AxisShares, law *ClosedLoop, clock core.Clock, limitMS uint32) *AxisController {
	return &AxisController{
		shares:  shares,
		law:     law,
		clock:   clock,
		limitMS: limitMS,
	}
}

// State returns the current phase
func (c *AxisController) State() AxisState {
	return c.state
}

// LimitMS returns the step-response duration
func (c *AxisController) LimitMS() uint32 {
	return c.limitMS
}

// Dropped returns how many samples were lost to a full queue
func (c *AxisController) Dropped() uint32 {
	return c.dropped
}

// Reset returns the controller to INIT and clears the control law history
func (c *AxisController) Reset() {
	c.state = StateInit
	c.law.Reset()
	c.dropped = 0
}

// Tick advances the state machine by one step
func (c *AxisController) Tick() (core.TickState, error) {
	now := c.clock.TicksMS()
	switch c.state {
	case StateInit:
		c.tickInit(now)
	case StateRunning:
		c.tickRunning(now)
	case StateStopped:
		c.tickStopped()
	}
	return core.TickState(c.state), nil
}

func (c *AxisController) tickInit(now uint32) {
	if c.shares.Stop.Get() {
		c.shares.Duty.Put(0)
		return
	}
	c.law.Reset()
	c.law.ChangeSetpoint(c.shares.Setpoint.Get())
	c.origin = c.shares.Position.Get()
	c.start = now
	c.lastTick = now
	c.state = StateRunning
}

func (c *AxisController) tickRunning(now uint32) {
	elapsed := core.TicksDiff(now, c.start)
	if elapsed < 0 {
		elapsed = 0
	}
	if uint32(elapsed) >= c.limitMS || c.shares.Stop.Get() {
		c.shares.Duty.Put(0)
		c.state = StateStopped
		c.shares.Finished.Put(c.shares.Finished.Get() + 1)
		return
	}

	pos := c.shares.Position.Get() - c.origin
	dt := float64(core.TicksDiff(now, c.lastTick)) / 1000
	c.lastTick = now
	c.shares.Duty.Put(Duty(c.law.Update(pos, dt), DutyLimit))

	sample := Sample{ElapsedMS: uint32(elapsed), Position: pos}
	if !c.shares.Samples.Put(sample) {
		c.dropped++
	}
}

func (c *AxisController) tickStopped() {
	c.shares.Duty.Put(0)
	if c.shares.Drained.Get() == c.shares.Finished.Get() && !c.shares.Stop.Get() {
		c.state = StateInit
	}
}
