//go:build rp2040

package main

import (
	_ "embed"
	"errors"
	"machine"
	"time"

	"steplab/config"
	"steplab/core"
	"steplab/harness"
	"steplab/protocol"
)

//go:embed board.json
var boardJSON []byte

const ctrlC = 0x03

var errUSBStalled = errors.New("usb write made no progress")

var (
	inputBuffer *protocol.FifoBuffer
	out         usbWriter

	// Debug counters
	writeFailures uint32
	loopPanics    uint32
	inputOverruns uint32
)

func main() {
	// Disable the watchdog left running by a previous image
	if err := machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 0}); err != nil {
		return
	}

	InitUSB()
	UpdateSystemTime()
	core.TimerInit()
	core.SetDebugWriter(func(s string) {
		out.Write([]byte(s + protocol.LineEnding))
	})

	settings, err := config.LoadJSON(boardJSON)
	if err != nil {
		settings = config.Default()
	}
	if len(settings.Axes) > len(boardAxes) {
		settings.Axes = settings.Axes[:len(boardAxes)]
	}

	drivers := make([]config.Drivers, 0, len(settings.Axes))
	for i := range settings.Axes {
		enc, err := newQuadEncoder(boardAxes[i])
		if err != nil {
			core.DebugPrintln("encoder " + settings.Axes[i].Name + ": " + err.Error())
			return
		}
		drivers = append(drivers, config.Drivers{Motor: newBridgeMotor(boardAxes[i]), Encoder: enc})
	}

	cfg, err := settings.Harness(core.SystemClock{}, harness.NewLineSink(out), drivers)
	if err != nil {
		core.DebugPrintln("harness: " + err.Error())
		return
	}
	o, err := harness.New(cfg)
	if err != nil {
		core.DebugPrintln("harness: " + err.Error())
		return
	}

	inputBuffer = protocol.NewFifoBuffer(256)
	go usbReaderLoop()

	for {
		periods := promptPeriods()
		if err := o.Rearm(); err != nil {
			core.DebugPrintln("rearm: " + err.Error())
		}
		for i := range o.Axes() {
			p := periods[len(periods)-1]
			if i < len(periods) {
				p = periods[i]
			}
			if err := o.SetControllerPeriod(i+1, p); err != nil {
				core.DebugPrintln("period: " + err.Error())
			}
		}
		runHarness(o)
	}
}

// promptPeriods asks the operator for controller periods until a valid
// line arrives
func promptPeriods() []uint32 {
	out.Write([]byte(protocol.PeriodPrompt))
	for {
		UpdateSystemTime()
		line, ok := protocol.NextLine(inputBuffer)
		if !ok {
			time.Sleep(1 * time.Millisecond)
			continue
		}
		periods, err := config.ParsePeriods(line)
		if err == nil {
			out.Write([]byte(protocol.LineEnding))
			return periods
		}
		out.Write([]byte(protocol.LineEnding + err.Error() + protocol.LineEnding + protocol.PeriodPrompt))
	}
}

// runHarness runs one run-set to completion. Ctrl-C from the host stops
// it early.
func runHarness(o *harness.Orchestrator) {
	for {
		finished := false
		// Recover from panics in the loop so the motors are always released
		func() {
			defer func() {
				if r := recover(); r != nil {
					loopPanics++
					finished = true
				}
			}()

			UpdateSystemTime()
			if interrupted() {
				finished = true
				return
			}
			done, err := o.Step()
			if err != nil {
				core.DebugPrintln("harness: " + err.Error())
				finished = true
				return
			}
			finished = done
		}()
		if finished {
			break
		}

		// Yield to the USB reader
		time.Sleep(100 * time.Microsecond)
	}

	o.Shutdown()
	if core.IsDebugEnabled() {
		core.DebugPrintln(o.Status())
	}
	if loopPanics > 0 {
		core.DumpTraceRing()
	}
}

// interrupted reports and consumes a pending Ctrl-C
func interrupted() bool {
	data := inputBuffer.Data()
	for i, b := range data {
		if b == ctrlC {
			inputBuffer.Pop(i + 1)
			out.Write([]byte("Program terminated" + protocol.LineEnding))
			return true
		}
	}
	return false
}

// usbReaderLoop moves bytes from USB into the input FIFO
func usbReaderLoop() {
	// Restart after a panic instead of losing input
	defer func() {
		if r := recover(); r != nil {
			time.Sleep(100 * time.Millisecond)
			go usbReaderLoop()
		}
	}()

	for {
		if USBAvailable() > 0 {
			b, err := USBRead()
			if err != nil {
				time.Sleep(1 * time.Millisecond)
				continue
			}
			if inputBuffer.Write([]byte{b}) == 0 {
				inputOverruns++
				time.Sleep(10 * time.Millisecond)
			}
		}
		time.Sleep(100 * time.Microsecond)
	}
}
