//go:build linux

// Command steplab-linux runs the step-response harness on a Linux board,
// driving H-bridges through sysfs PWM and reading quadrature encoders on
// GPIO edge interrupts. Sample lines go to stdout.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"steplab/config"
	"steplab/core"
	"steplab/harness"
	"steplab/protocol"
)

// axisPins is the wiring of one axis
type axisPins struct {
	pwm      int // pwmchip0 channel
	in1, in2 int // bridge direction GPIOs
	encA     int
	encB     int
}

// Raspberry Pi header defaults
var boardAxes = []axisPins{
	{pwm: 0, in1: 23, in2: 24, encA: 5, encB: 6},
	{pwm: 1, in1: 25, in2: 8, encA: 16, encB: 20},
}

var (
	configFile = flag.String("config", "", "Configuration file")
	periods    = flag.String("periods", "", "Controller periods in ms (prompted when empty)")
	pwmPeriod  = flag.Duration("pwm-period", 50*time.Microsecond, "PWM period")
	cpr        = flag.Int("cpr", 16384, "Encoder counts per revolution")
	debug      = flag.Bool("debug", false, "Log harness debug messages")
)

func main() {
	flag.Parse()
	core.SetDebugWriter(func(s string) { log.Println(s) })
	core.SetDebugEnabled(*debug)

	settings := config.Default()
	if *configFile != "" {
		s, err := config.Load(*configFile)
		if err != nil {
			log.Fatalf("%s: %v", *configFile, err)
		}
		settings = s
	}
	if len(settings.Axes) > len(boardAxes) {
		log.Fatalf("%d axes configured, board has %d", len(settings.Axes), len(boardAxes))
	}

	line := *periods
	if line == "" {
		fmt.Print(protocol.PeriodPrompt)
		scanner := bufio.NewScanner(os.Stdin)
		if !scanner.Scan() {
			log.Fatal("no controller period given")
		}
		line = scanner.Text()
	}
	p, err := config.ParsePeriods(line)
	if err != nil {
		log.Fatalf("period: %v", err)
	}
	for len(p) < len(settings.Axes) {
		p = append(p, p[0])
	}
	config.ApplyPeriods(settings, p)

	drivers, closeAll, err := openDrivers(settings, *pwmPeriod, *cpr)
	if err != nil {
		log.Fatalf("drivers: %v", err)
	}
	defer closeAll()

	cfg, err := settings.Harness(core.NewMonotonicClock(0), harness.NewLineSink(os.Stdout), drivers)
	if err != nil {
		log.Fatalf("harness: %v", err)
	}
	o, err := harness.New(cfg)
	if err != nil {
		log.Fatalf("harness: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := o.Run(ctx); err != nil {
		log.Printf("harness stopped: %v", err)
	}
	fmt.Fprint(os.Stderr, o.Status())
	fmt.Fprintln(os.Stderr, "Program terminated")
}

func openDrivers(s *config.Settings, period time.Duration, cpr int) ([]config.Drivers, func(), error) {
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) ([]config.Drivers, func(), error) {
		closeAll()
		return nil, nil, err
	}

	var drivers []config.Drivers
	for i := range s.Axes {
		pins := boardAxes[i]
		pwm, err := openPWM(pins.pwm, period)
		if err != nil {
			return fail(fmt.Errorf("pwm%d: %w", pins.pwm, err))
		}
		in1, err := outputPin(pins.in1)
		if err != nil {
			pwm.Close()
			return fail(err)
		}
		in2, err := outputPin(pins.in2)
		if err != nil {
			pwm.Close()
			in1.Close()
			return fail(err)
		}
		motor := newBridgeMotor(pwm, in1, in2, period)
		closers = append(closers, motor.Close)

		a, err := edgeInput(pins.encA)
		if err != nil {
			return fail(err)
		}
		b, err := edgeInput(pins.encB)
		if err != nil {
			a.Close()
			return fail(err)
		}
		enc, err := newQuadEncoder(a, b, cpr)
		if err != nil {
			a.Close()
			b.Close()
			return fail(err)
		}
		closers = append(closers, enc.Close)
		drivers = append(drivers, config.Drivers{Motor: motor, Encoder: enc})
	}
	return drivers, closeAll, nil
}
