package config

import (
	"fmt"

	"github.com/aamcrae/config"
)

// Load reads a sectioned configuration file and applies defaults.
//
//	[harness]
//	discipline=priority       # or round-robin
//	runs=1                    # runs per axis, 0 = until interrupted
//	trace=true
//	device=/dev/ttyACM0       # host serial port
//	baud=115200
//
//	[axis1]                   # and [axis2]
//	setpoint=6.283185         # radians
//	limit=2000                # run length in ms
//	period=20,10,20           # controller, encoder, motor periods in ms
//	queue=100
//	gains=50,0,0              # Kp, Ki, Kd
//	integral_limit=1.0
//	read_failures=5
//
// Keys that are absent keep their defaults.
func Load(path string) (*Settings, error) {
	conf, err := config.ParseFile(path)
	if err != nil {
		return nil, err
	}
	var s Settings
	if sec := conf.GetSection("harness"); sec != nil {
		if err := loadHarness(sec, &s); err != nil {
			return nil, fmt.Errorf("harness: %w", err)
		}
	}
	for i := 1; i <= 2; i++ {
		name := fmt.Sprintf("axis%d", i)
		sec := conf.GetSection(name)
		if sec == nil {
			continue
		}
		a := AxisSettings{Name: fmt.Sprintf("motor%d", i), Setpoint: DefaultSetpoint(i - 1)}
		if err := loadAxis(sec, &a); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		s.Axes = append(s.Axes, a)
	}
	ApplyDefaults(&s)
	if _, err := ParseDiscipline(s.Discipline); err != nil {
		return nil, err
	}
	return &s, nil
}

func has(sec *config.Section, key string) bool {
	_, err := sec.GetArg(key)
	return err == nil
}

// parse scans key into args, requiring exactly want values
func parse(sec *config.Section, key, format string, want int, args ...interface{}) error {
	if !has(sec, key) {
		return nil
	}
	n, err := sec.Parse(key, format, args...)
	if err != nil {
		return fmt.Errorf("%s: %v", key, err)
	}
	if n != want {
		return fmt.Errorf("%s: argument count", key)
	}
	return nil
}

func loadHarness(sec *config.Section, s *Settings) error {
	if has(sec, "discipline") {
		s.Discipline, _ = sec.GetArg("discipline")
	}
	if has(sec, "device") {
		s.Device, _ = sec.GetArg("device")
	}
	if has(sec, "trace") {
		v, _ := sec.GetArg("trace")
		s.Trace = v == "true" || v == "1" || v == "yes"
	}
	if err := parse(sec, "runs", "%d", 1, &s.Runs); err != nil {
		return err
	}
	return parse(sec, "baud", "%d", 1, &s.Baud)
}

func loadAxis(sec *config.Section, a *AxisSettings) error {
	if err := parse(sec, "setpoint", "%f", 1, &a.Setpoint); err != nil {
		return err
	}
	if err := parse(sec, "limit", "%d", 1, &a.LimitMS); err != nil {
		return err
	}
	if err := parse(sec, "period", "%d,%d,%d", 3,
		&a.ControllerPeriodMS, &a.EncoderPeriodMS, &a.MotorPeriodMS); err != nil {
		return err
	}
	if err := parse(sec, "queue", "%d", 1, &a.QueueSize); err != nil {
		return err
	}
	if err := parse(sec, "gains", "%f,%f,%f", 3, &a.Gains.Kp, &a.Gains.Ki, &a.Gains.Kd); err != nil {
		return err
	}
	if err := parse(sec, "integral_limit", "%f", 1, &a.Gains.IntegralLimit); err != nil {
		return err
	}
	return parse(sec, "read_failures", "%d", 1, &a.MaxReadFailures)
}
