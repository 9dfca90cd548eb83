package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"steplab/analysis"
	"steplab/config"
	"steplab/host/capture"
	"steplab/host/figure"
	"steplab/host/serial"
	"steplab/host/stream"
	"steplab/protocol"
)

var (
	device     = flag.String("device", "", "Serial device path (empty to auto-detect)")
	baud       = flag.Int("baud", 0, "Baud rate (ignored for USB CDC)")
	backend    = flag.String("backend", string(serial.BackendTarm), "Serial backend: tarm or bugst")
	list       = flag.Bool("list", false, "List serial ports and exit")
	configFile = flag.String("config", "", "Harness configuration file")
	period     = flag.Uint("period", 0, "Controller period in ms (prompted when 0)")
	runs       = flag.Int("runs", 0, "Runs to collect (defaults to one per axis)")
	pngFile    = flag.String("png", "", "Write a position plot to this PNG file")
	wsAddr     = flag.String("ws", "", "Serve a live websocket stream on this address")
	timeout    = flag.Duration("timeout", 30*time.Second, "Give up collecting after this long")
	verbose    = flag.Bool("verbose", false, "Echo every line received")
)

func main() {
	flag.Parse()
	os.Exit(run())
}

// run returns the exit status so deferred closes happen before exit
func run() int {
	fmt.Println("Steplab Host - Step Response Capture")
	fmt.Println("====================================")
	fmt.Println()

	if *list {
		return listPorts()
	}

	settings := config.Default()
	if *configFile != "" {
		s, err := config.Load(*configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: Failed to load %s: %v\n", *configFile, err)
			return 1
		}
		settings = s
	}
	if *device != "" {
		settings.Device = *device
	}
	if *baud != 0 {
		settings.Baud = *baud
	}

	periodMS := uint32(*period)
	if periodMS == 0 {
		p, err := promptPeriod()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		periodMS = p
	}
	config.ApplyPeriods(settings, []uint32{periodMS})

	var hub *stream.Hub
	if *wsAddr != "" {
		hub = stream.NewHub()
		defer hub.Close()
		go func() {
			log.Printf("Streaming on ws://%s/", *wsAddr)
			if err := http.ListenAndServe(*wsAddr, hub); err != nil {
				log.Printf("stream server: %v", err)
			}
		}()
	}

	cfg := serial.DefaultConfig(settings.Device)
	cfg.Baud = settings.Baud
	cfg.Backend = serial.Backend(*backend)

	fmt.Printf("Connecting to board on %s...\n", describe(cfg.Device))
	client, err := capture.Connect(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to connect: %v\n", err)
		return 1
	}
	defer client.Close()
	client.Progress = progress(hub, *verbose)

	if err := client.SendPeriod(periodMS); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	want := *runs
	if want == 0 {
		want = len(settings.Axes)
	}
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	ctx, cancelTimeout := context.WithTimeout(ctx, *timeout)
	defer cancelTimeout()

	captured, err := client.Collect(ctx, want)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: collection stopped early: %v\n", err)
	}
	fmt.Println("Data Collection Complete")

	for i, r := range captured {
		report(i, r, settings)
	}

	if *pngFile != "" && len(captured) > 0 {
		opts := figure.DefaultOptions(periodMS)
		opts.Setpoint = settings.Axes[0].Setpoint
		if err := figure.SavePNG(*pngFile, captured, opts); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		fmt.Printf("Plot written to %s\n", *pngFile)
	}
	return 0
}

// progress returns the per-line callback for Collect: lines are relayed to
// the websocket hub as they are read, and echoed when verbose.
func progress(hub *stream.Hub, verbose bool) func(string) {
	if hub == nil && !verbose {
		return nil
	}
	return func(line string) {
		if verbose {
			fmt.Println(line)
		}
		if hub != nil {
			hub.Relay(line)
		}
	}
}

func promptPeriod() (uint32, error) {
	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Print("Input integer controller period [ms]: ")
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return 0, fmt.Errorf("reading period: %w", err)
		}
		periods, perr := config.ParsePeriods(line)
		if perr == nil {
			return periods[0], nil
		}
		fmt.Printf("Invalid period: %v\n", perr)
		if err != nil {
			return 0, perr
		}
	}
}

func report(i int, run protocol.Run, settings *config.Settings) {
	name := fmt.Sprintf("motor %d", run.Axis)
	setpoint := settings.Axes[0].Setpoint
	if run.Axis == 0 {
		name = "unterminated run"
	} else if run.Axis <= len(settings.Axes) {
		setpoint = settings.Axes[run.Axis-1].Setpoint
	}

	fmt.Printf("\nRun %d (%s): %d points", i+1, name, len(run.Points))
	if run.Skipped > 0 {
		fmt.Printf(", %d malformed lines skipped", run.Skipped)
	}
	fmt.Println()

	resp, err := analysis.Analyze(run.Points, setpoint)
	if err != nil {
		fmt.Printf("  no analysis: %v\n", err)
		return
	}
	fmt.Println(resp)
}

func listPorts() int {
	ports, err := serial.ListPorts()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if len(ports) == 0 {
		fmt.Println("No serial ports found")
		return 0
	}
	for _, p := range ports {
		if p.USB {
			fmt.Printf("  %-20s USB %s:%s %s\n", p.Name, p.VID, p.PID, p.Product)
		} else {
			fmt.Printf("  %s\n", p.Name)
		}
	}
	return 0
}

func describe(device string) string {
	if device == "" {
		return "auto-detected port"
	}
	return device
}
