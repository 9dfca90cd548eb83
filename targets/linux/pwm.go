//go:build linux

package main

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// hwPWM is one channel of /sys/class/pwm/pwmchip0
type hwPWM struct {
	unit   int
	base   string
	pFile  *os.File
	dFile  *os.File
	period int64
	duty   int64
}

func pwmChip() string {
	return sysfsRoot + "/pwm/pwmchip0/"
}

func openPWM(unit int, period time.Duration) (*hwPWM, error) {
	p := &hwPWM{
		unit:   unit,
		base:   fmt.Sprintf("%spwm%d", pwmChip(), unit),
		period: -1,
		duty:   -1,
	}
	if err := export(p.base+"/period", pwmChip()+"export", unit); err != nil {
		return nil, err
	}
	var err error
	if p.pFile, err = os.OpenFile(p.base+"/period", os.O_RDWR, 0600); err != nil {
		p.unexport()
		return nil, err
	}
	if p.dFile, err = os.OpenFile(p.base+"/duty_cycle", os.O_RDWR, 0600); err != nil {
		p.pFile.Close()
		p.unexport()
		return nil, err
	}
	if err := p.Set(period, 0); err != nil {
		p.Close()
		return nil, err
	}
	return p, nil
}

// Enable turns the output on or off
func (p *hwPWM) Enable(on bool) error {
	v := "0"
	if on {
		v = "1"
	}
	return writeFile(p.base+"/enable", v)
}

// Set writes period and percent duty. The duty cycle must never exceed
// the period, so the write order depends on the direction of change.
func (p *hwPWM) Set(period time.Duration, duty int) error {
	if duty < 0 || duty > 100 {
		return fmt.Errorf("pwm%d: invalid duty cycle %d%%", p.unit, duty)
	}
	pNano := period.Nanoseconds()
	if pNano < 15 {
		return fmt.Errorf("pwm%d: invalid period %v", p.unit, period)
	}
	dNano := pNano * int64(duty) / 100
	if dNano > p.period {
		if err := p.write(p.pFile, pNano); err != nil {
			return err
		}
		if err := p.write(p.dFile, dNano); err != nil {
			return err
		}
	} else {
		if dNano != p.duty {
			if err := p.write(p.dFile, dNano); err != nil {
				return err
			}
		}
		if pNano != p.period {
			if err := p.write(p.pFile, pNano); err != nil {
				return err
			}
		}
	}
	p.period = pNano
	p.duty = dNano
	return nil
}

// write replaces the attribute value; sysfs ignores the file offset
func (p *hwPWM) write(f *os.File, v int64) error {
	_, err := f.WriteAt([]byte(strconv.FormatInt(v, 10)), 0)
	return err
}

func (p *hwPWM) unexport() {
	unexport(pwmChip()+"unexport", p.unit)
}

func (p *hwPWM) Close() {
	p.Enable(false)
	p.pFile.Close()
	p.dFile.Close()
	p.unexport()
}
