// hcsr04 measures distances with HC-SR04 modules sharing one trigger line
// and prints or publishes the results.
//
// Usage:
//
//	hcsr04 -trigger PIN -echo "PIN [PIN ...]" [options]
//
// Options:
//
//	-backend string    GPIO access: periph, cdev or rpi (default: periph)
//	-chip string       GPIO character device for the cdev backend (default: gpiochip0)
//	-trigger string    Trigger pin (periph name, or line offset for cdev and rpi)
//	-echo string       Echo pins, separated by spaces or commas
//	-timeout duration  Echo timeout (default: 100ms)
//	-hold duration     Trigger pulse width (default: 10µs)
//	-settle duration   Wait after the trigger pulse (default: 10µs)
//	-unlock string     Stuck sensor recovery: skip, maybe or forced (default: maybe)
//	-unit string       mm, cm, m, in, ft or yd (default: cm)
//	-temp float        Air temperature in Celsius (default: 19.307)
//	-count int         Measurements to take, 0 runs until interrupted (default: 1)
//	-interval duration Pause between measurements (default: 1s)
//	-polling           Poll every echo pin, even those with edge detection
//	-mqtt string       MQTT broker URL; reports are published instead of printed
//	-topic string      MQTT topic (default: hcsr04)
//	-v int             Log verbosity: 0 errors, 1 info, 2 debug, 3 trace
//
// Every flag can also be set with an environment variable named after it,
// for example HCSR04_TRIGGER or HCSR04_MQTT.
//
// Examples:
//
//	# Two modules on a Raspberry Pi, through periph
//	hcsr04 -trigger GPIO4 -echo "GPIO17 GPIO27" -count 10
//
//	# Kernel edge events, publishing to a broker
//	hcsr04 -backend cdev -trigger 4 -echo 17,27 -count 0 -mqtt tcp://localhost:1883
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/womat/debug"

	"github.com/asjoyner/hcsr04"
	"github.com/asjoyner/hcsr04/internal/publish"
)

func main() {
	opts, err := parseFlags(flag.CommandLine, os.Args[1:], os.Getenv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}
	setVerbosity(opts.verbosity)

	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func setVerbosity(v int) {
	debug.ErrorLog.SetOutput(os.Stderr)
	if v >= 1 {
		debug.InfoLog.SetOutput(os.Stderr)
	}
	if v >= 2 {
		debug.DebugLog.SetOutput(os.Stderr)
	}
	if v >= 3 {
		debug.TraceLog.SetOutput(os.Stderr)
	}
}

func run(opts options) error {
	cfg, closeBackend, err := openBackend(opts)
	if err != nil {
		return err
	}
	defer closeBackend()
	cfg.Timeout = opts.timeout
	cfg.TriggerHold = opts.hold
	cfg.TriggerWait = opts.settle
	cfg.Unlock = opts.unlock
	cfg.ForcePolling = opts.polling

	s, err := hcsr04.New(cfg)
	if err != nil {
		return err
	}
	defer s.Close()
	s.SetTemperature(opts.celsius)

	var pub *publish.Publisher
	if opts.broker != "" {
		pub, err = publish.Dial(opts.broker, fmt.Sprintf("hcsr04-%d", os.Getpid()), opts.topic, 5*time.Second)
		if err != nil {
			return err
		}
		defer pub.Close()
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	for i := 0; opts.count == 0 || i < opts.count; i++ {
		if i > 0 {
			select {
			case <-sigs:
				return nil
			case <-time.After(opts.interval):
			}
		}
		ms := s.Measure()
		if pub == nil {
			fmt.Println(formatMeasurements(ms, opts.unit, opts.celsius))
			continue
		}
		if err := pub.Publish(publish.NewReport(ms, opts.unit, opts.celsius, time.Now())); err != nil {
			debug.ErrorLog.Printf("%v", err)
		}
	}
	return nil
}
