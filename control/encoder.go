package control

import (
	"fmt"

	"steplab/core"
)

// DefaultMaxReadFailures is how many consecutive failed encoder updates are
// tolerated before the task gives up
const DefaultMaxReadFailures = 5

// EncoderTask samples an encoder each tick and publishes the angle. A failed
// Update leaves the previous angle in place; a run of failures faults the
// task.
type EncoderTask struct {
	driver      EncoderDriver
	position    *core.Share[float64]
	maxFailures int

	zeroed   bool
	failures int
	skipped  uint32
}

// NewEncoderTask creates the encoder adapter for one axis. maxFailures <= 0
// uses DefaultMaxReadFailures.
func NewEncoderTask(driver EncoderDriver, position *core.Share[float64], maxFailures int) *EncoderTask {
	if maxFailures <= 0 {
		maxFailures = DefaultMaxReadFailures
	}
	return &EncoderTask{
		driver:      driver,
		position:    position,
		maxFailures: maxFailures,
	}
}

// Tick updates the encoder and writes the position share
func (e *EncoderTask) Tick() (core.TickState, error) {
	if !e.zeroed {
		e.driver.Zero()
		e.zeroed = true
	}
	if err := e.driver.Update(); err != nil {
		e.failures++
		e.skipped++
		if e.failures >= e.maxFailures {
			return 0, fmt.Errorf("encoder: %d consecutive update failures: %w", e.failures, err)
		}
		return 0, nil
	}
	e.failures = 0
	e.position.Put(e.driver.Read())
	return 0, nil
}

// Skipped returns the number of samples lost to update failures
func (e *EncoderTask) Skipped() uint32 {
	return e.skipped
}

// Reset clears the failure streak
func (e *EncoderTask) Reset() {
	e.failures = 0
}
