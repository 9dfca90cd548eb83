package control

// DutyLimit is the magnitude of the duty range accepted by motor drivers,
// in percent. Negative duty reverses the motor.
const DutyLimit = 100

// MotorDriver is the abstract motor interface that tasks use.
// Platform-specific implementations handle actual hardware control.
type MotorDriver interface {
	// Enable energizes the driver stage
	Enable() error

	// Disable de-energizes the driver stage; the motor coasts
	Disable() error

	// SetDutyCycle applies a signed duty in [-DutyLimit, DutyLimit]
	SetDutyCycle(duty int) error
}

// EncoderDriver is the abstract quadrature encoder interface
type EncoderDriver interface {
	// Zero makes the current shaft angle the reference
	Zero()

	// Update samples the hardware counter. It must be called once per
	// tick before Read.
	Update() error

	// Read returns the accumulated angle in radians
	Read() float64
}
