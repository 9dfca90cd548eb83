package control

import "steplab/core"

// Sample is one step-response point
type Sample struct {
	ElapsedMS uint32  // Milliseconds since the run started
	Position  float64 // Radians relative to the run's starting angle
}

// AxisShares holds every share and queue belonging to one axis. It is
// built once at setup and handed to each task of the axis.
//
// Writers:
//
//	Setpoint  orchestrator (before a run)
//	Position  EncoderTask
//	Duty      AxisController, and the orchestrator once the scheduler has halted
//	Stop      orchestrator
//	Finished  AxisController
//	Drained   orchestrator
//	Samples   produced by AxisController, consumed by the orchestrator
type AxisShares struct {
	Name     string
	Setpoint *core.Share[float64]
	Position *core.Share[float64]
	Duty     *core.Share[int]
	Stop     *core.Share[bool]
	Finished *core.Share[uint32] // Runs completed
	Drained  *core.Share[uint32] // Runs whose samples have been emitted
	Samples  *core.Queue[Sample]
}

// NewAxisShares creates the shares for an axis with a sample queue of
// queueSize entries
func NewAxisShares(name string, setpoint float64, queueSize int, opts ...core.Option) *AxisShares {
	return &AxisShares{
		Name:     name,
		Setpoint: core.NewShare(name+"_setpoint", setpoint, opts...),
		Position: core.NewShare(name+"_pos", 0.0, opts...),
		Duty:     core.NewShare(name+"_duty", 0, opts...),
		Stop:     core.NewShare(name+"_stop", false, opts...),
		Finished: core.NewShare(name+"_finished", uint32(0), opts...),
		Drained:  core.NewShare(name+"_drained", uint32(0), opts...),
		Samples:  core.NewQueue[Sample](name+"_samples", queueSize, opts...),
	}
}

// Pending reports whether a finished run is waiting to be drained
func (a *AxisShares) Pending() bool {
	return a.Finished.Get() != a.Drained.Get()
}

// String dumps every share and the queue, one per line
func (a *AxisShares) String() string {
	return a.Setpoint.String() + "\n" +
		a.Position.String() + "\n" +
		a.Duty.String() + "\n" +
		a.Stop.String() + "\n" +
		a.Finished.String() + "\n" +
		a.Drained.String() + "\n" +
		a.Samples.String()
}
