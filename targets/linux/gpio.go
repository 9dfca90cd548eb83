//go:build linux

package main

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

type edge string

const (
	edgeNone edge = "none"
	edgeBoth edge = "both"
)

// gpio is one exported sysfs GPIO line
type gpio struct {
	number int
	output bool
	value  *os.File
	buf    []byte
}

func gpioDir(n int) string {
	return fmt.Sprintf("%s/gpio/gpio%d", sysfsRoot, n)
}

func openGPIO(n int, output bool, e edge) (*gpio, error) {
	dir := gpioDir(n)
	if err := export(dir+"/value", sysfsRoot+"/gpio/export", n); err != nil {
		return nil, err
	}
	g := &gpio{number: n, output: output, buf: make([]byte, 1)}

	direction := "in"
	if output {
		direction = "out"
	}
	if err := writeFile(dir+"/direction", direction); err != nil {
		g.unexport()
		return nil, err
	}
	if !output {
		if err := writeFile(dir+"/edge", string(e)); err != nil {
			g.unexport()
			return nil, err
		}
	}
	var err error
	g.value, err = os.OpenFile(dir+"/value", os.O_RDWR, 0600)
	if err != nil {
		g.unexport()
		return nil, err
	}
	return g, nil
}

// outputPin opens a GPIO line as an output
func outputPin(n int) (*gpio, error) {
	return openGPIO(n, true, edgeNone)
}

// edgeInput opens a GPIO line as an input interrupting on both edges
func edgeInput(n int) (*gpio, error) {
	return openGPIO(n, false, edgeBoth)
}

func (g *gpio) Set(v int) error {
	if !g.output {
		return fmt.Errorf("gpio%d: is not output", g.number)
	}
	g.buf[0] = '0'
	if v != 0 {
		g.buf[0] = '1'
	}
	_, err := g.value.WriteAt(g.buf, 0)
	return err
}

// Get reads the current level without waiting for an edge
func (g *gpio) Get() (int, error) {
	if _, err := g.value.ReadAt(g.buf, 0); err != nil {
		return 0, err
	}
	switch g.buf[0] {
	case '0':
		return 0, nil
	case '1':
		return 1, nil
	}
	return 0, fmt.Errorf("gpio%d: unknown value %q", g.number, g.buf)
}

func (g *gpio) pollFd() unix.PollFd {
	return unix.PollFd{Fd: int32(g.value.Fd()), Events: unix.POLLPRI | unix.POLLERR}
}

func (g *gpio) unexport() {
	unexport(sysfsRoot+"/gpio/unexport", g.number)
}

func (g *gpio) Close() {
	if g.value != nil {
		g.value.Close()
	}
	g.unexport()
}
