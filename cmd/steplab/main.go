// Command steplab runs the step-response harness against simulated
// flywheels and prints the captured runs in the board's line format.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"steplab/config"
	"steplab/core"
	"steplab/harness"
	"steplab/host/stream"
	"steplab/protocol"
	"steplab/sim"
)

var (
	configFile = flag.String("config", "", "Configuration file (.json or sectioned key=value)")
	periods    = flag.String("periods", "", "Controller periods in ms, one per axis (prompted when empty)")
	runs       = flag.Int("runs", -1, "Runs per axis, 0 repeats until interrupted (overrides config)")
	realtime   = flag.Bool("realtime", false, "Pace the harness with the wall clock")
	wsAddr     = flag.String("ws", "", "Serve a live websocket stream on this address")
	debug      = flag.Bool("debug", false, "Log harness debug messages")
	trace      = flag.Bool("trace", false, "Dump the task trace ring on exit")
)

func main() {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds)
	core.SetDebugWriter(func(s string) { log.Println(s) })
	core.SetDebugEnabled(*debug || *trace)

	settings, err := loadSettings(*configFile)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if *runs >= 0 {
		settings.Runs = *runs
	}
	if *trace {
		settings.Trace = true
	}

	if *periods != "" {
		p, err := config.ParsePeriods(*periods)
		if err != nil {
			log.Fatalf("periods: %v", err)
		}
		config.ApplyPeriods(settings, p)
	} else if err := promptPeriods(os.Stdin, os.Stdout, settings); err != nil {
		log.Fatalf("periods: %v", err)
	}

	var sink harness.Sink = harness.NewLineSink(os.Stdout)
	if *wsAddr != "" {
		hub := stream.NewHub()
		defer hub.Close()
		go func() {
			log.Printf("Streaming on ws://%s/", *wsAddr)
			if err := http.ListenAndServe(*wsAddr, hub); err != nil {
				log.Printf("stream server: %v", err)
			}
		}()
		sink = harness.MultiSink{sink, hub}
	}

	o, err := build(settings, sink, *realtime)
	if err != nil {
		log.Fatalf("harness: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := o.Run(ctx); err != nil {
		log.Printf("harness stopped: %v", err)
	}
	fmt.Fprint(os.Stderr, o.Status())
	if *trace {
		core.DumpTraceRing()
	}
	fmt.Fprintln(os.Stderr, "Program terminated")
}

func loadSettings(path string) (*config.Settings, error) {
	if path == "" {
		return config.Default(), nil
	}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return config.LoadJSON(data)
	}
	return config.Load(path)
}

// promptPeriods asks for each axis's controller period. A blank answer
// keeps the configured value.
func promptPeriods(in io.Reader, out io.Writer, s *config.Settings) error {
	scanner := bufio.NewScanner(in)
	for i := range s.Axes {
		a := &s.Axes[i]
		for {
			fmt.Fprintf(out, "%s: %s", a.Name, protocol.PeriodPrompt)
			if !scanner.Scan() {
				return scanner.Err()
			}
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				break
			}
			p, err := config.ParsePeriods(line)
			if err != nil {
				fmt.Fprintf(out, "Invalid period: %v\n", err)
				continue
			}
			if a.MotorPeriodMS == a.ControllerPeriodMS {
				a.MotorPeriodMS = p[0]
			}
			a.ControllerPeriodMS = p[0]
			break
		}
	}
	return nil
}

// build wires one simulated flywheel per configured axis
func build(s *config.Settings, sink harness.Sink, realtime bool) (*harness.Orchestrator, error) {
	var clock core.Clock
	var idle harness.IdleFunc
	if realtime {
		clock = core.NewMonotonicClock(0)
		idle = harness.SleepIdle
	} else {
		manual := core.NewManualClock(0)
		clock = manual
		idle = harness.ManualIdle(manual)
	}

	drivers := make([]config.Drivers, 0, len(s.Axes))
	for range s.Axes {
		_, motor, encoder := sim.NewAxis(sim.DefaultParams(), clock)
		drivers = append(drivers, config.Drivers{Motor: motor, Encoder: encoder})
	}
	cfg, err := s.Harness(clock, sink, drivers)
	if err != nil {
		return nil, err
	}
	cfg.Idle = idle
	return harness.New(cfg)
}
