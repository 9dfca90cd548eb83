//go:build !wasm

package serial

import (
	"errors"
	"fmt"
	"sort"
	"time"

	bugst "go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

var ErrNoPorts = errors.New("no serial ports found")

// BugstPort wraps a go.bug.st/serial port
type BugstPort struct {
	bugst.Port
}

func openBugst(cfg *Config) (Port, error) {
	port, err := bugst.Open(cfg.Device, &bugst.Mode{BaudRate: cfg.Baud})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", cfg.Device, err)
	}
	if cfg.ReadTimeout > 0 {
		if err := port.SetReadTimeout(time.Duration(cfg.ReadTimeout) * time.Millisecond); err != nil {
			port.Close()
			return nil, fmt.Errorf("set read timeout on %s: %w", cfg.Device, err)
		}
	}
	return &BugstPort{Port: port}, nil
}

// Flush discards buffered input
func (p *BugstPort) Flush() error {
	return p.ResetInputBuffer()
}

// PortInfo describes one serial device
type PortInfo struct {
	Name    string
	USB     bool
	VID     string
	PID     string
	Product string
}

// ListPorts enumerates serial devices, USB devices first
func ListPorts() ([]PortInfo, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("enumerate serial ports: %w", err)
	}
	ports := make([]PortInfo, 0, len(details))
	for _, d := range details {
		ports = append(ports, PortInfo{
			Name:    d.Name,
			USB:     d.IsUSB,
			VID:     d.VID,
			PID:     d.PID,
			Product: d.Product,
		})
	}
	sortPorts(ports)
	return ports, nil
}

func sortPorts(ports []PortInfo) {
	sort.SliceStable(ports, func(i, j int) bool {
		return ports[i].USB && !ports[j].USB
	})
}

// Detect returns the most likely board: the first USB serial device, or
// the first device of any kind
func Detect() (string, error) {
	ports, err := ListPorts()
	if err != nil {
		return "", err
	}
	return pickPort(ports)
}

func pickPort(ports []PortInfo) (string, error) {
	if len(ports) == 0 {
		return "", ErrNoPorts
	}
	sortPorts(ports)
	return ports[0].Name, nil
}
