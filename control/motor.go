package control

import (
	"fmt"

	"steplab/core"
)

// MotorTask applies the duty share to a motor driver each tick. The driver
// is enabled on the first tick.
type MotorTask struct {
	driver  MotorDriver
	duty    *core.Share[int]
	enabled bool
	applied int
}

// NewMotorTask creates the motor adapter for one axis
func NewMotorTask(driver MotorDriver, duty *core.Share[int]) *MotorTask {
	return &MotorTask{driver: driver, duty: duty}
}

// Tick writes the latest duty command to the driver
func (m *MotorTask) Tick() (core.TickState, error) {
	if !m.enabled {
		if err := m.driver.Enable(); err != nil {
			return 0, fmt.Errorf("motor enable: %w", err)
		}
		m.enabled = true
	}
	duty := m.duty.Get()
	if err := m.driver.SetDutyCycle(duty); err != nil {
		return 0, fmt.Errorf("motor set duty %d: %w", duty, err)
	}
	m.applied = duty
	return 0, nil
}

// Applied returns the duty most recently sent to the driver
func (m *MotorTask) Applied() int {
	return m.applied
}

// Disable de-energizes the driver if it was enabled
func (m *MotorTask) Disable() error {
	if !m.enabled {
		return nil
	}
	m.enabled = false
	if err := m.driver.Disable(); err != nil {
		return fmt.Errorf("motor disable: %w", err)
	}
	return nil
}
