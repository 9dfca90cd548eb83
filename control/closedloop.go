package control

import "math"

// Gains configures a ClosedLoop controller. Ki and Kd default to zero,
// which gives the plain proportional law.
type Gains struct {
	Kp            float64
	Ki            float64
	Kd            float64
	IntegralLimit float64 // Anti-windup bound on the error integral (0 = unbounded)
}

// DefaultGains is a proportional-only controller with Kp = 50
func DefaultGains() Gains {
	return Gains{Kp: 50}
}

// ClosedLoop is a discrete PID position controller. Output units are duty
// percent per radian of error for Kp.
type ClosedLoop struct {
	gains    Gains
	setpoint float64

	integral  float64
	prevError float64
	primed    bool
}

// NewClosedLoop creates a controller targeting setpoint
func NewClosedLoop(g Gains, setpoint float64) *ClosedLoop {
	return &ClosedLoop{gains: g, setpoint: setpoint}
}

// ChangeSetpoint replaces the target position
func (c *ClosedLoop) ChangeSetpoint(setpoint float64) {
	c.setpoint = setpoint
}

// Setpoint returns the target position
func (c *ClosedLoop) Setpoint() float64 {
	return c.setpoint
}

// Gains returns the controller gains
func (c *ClosedLoop) Gains() Gains {
	return c.gains
}

// Reset clears the integral and derivative history
func (c *ClosedLoop) Reset() {
	c.integral = 0
	c.prevError = 0
	c.primed = false
}

// Update computes the control output for the measured position. dt is the
// time since the previous update in seconds; the I and D terms are skipped
// when it is not positive.
func (c *ClosedLoop) Update(position, dt float64) float64 {
	err := c.setpoint - position
	out := c.gains.Kp * err

	if dt > 0 {
		if c.gains.Ki != 0 {
			c.integral += err * dt
			if lim := c.gains.IntegralLimit; lim > 0 {
				c.integral = math.Max(-lim, math.Min(lim, c.integral))
			}
			out += c.gains.Ki * c.integral
		}
		if c.gains.Kd != 0 && c.primed {
			out += c.gains.Kd * (err - c.prevError) / dt
		}
	}

	c.prevError = err
	c.primed = true
	return out
}

// Duty converts a controller output to a driver command: rounded to the
// nearest integer and clamped to [-limit, limit]. NaN maps to 0.
func Duty(output float64, limit int) int {
	if math.IsNaN(output) {
		return 0
	}
	l := float64(limit)
	if output > l {
		return limit
	}
	if output < -l {
		return -limit
	}
	return int(math.Round(output))
}
