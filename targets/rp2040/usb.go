//go:build rp2040

package main

import (
	"machine"
)

// InitUSB configures machine.Serial, which is USB CDC on the RP2040
func InitUSB() {
	machine.Serial.Configure(machine.UARTConfig{})
}

// USBAvailable returns the number of bytes available to read from USB
func USBAvailable() int {
	return machine.Serial.Buffered()
}

// USBRead reads a single byte from USB
func USBRead() (byte, error) {
	return machine.Serial.ReadByte()
}

// usbWriter writes to USB, retrying partial writes
type usbWriter struct{}

func (usbWriter) Write(data []byte) (int, error) {
	written := 0
	for written < len(data) {
		n, err := machine.Serial.Write(data[written:])
		if err != nil {
			writeFailures++
			return written, err
		}
		if n == 0 {
			writeFailures++
			return written, errUSBStalled
		}
		written += n
	}
	return written, nil
}
