package main

import (
	"flag"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/shlex"
	"github.com/pkg/errors"

	"github.com/asjoyner/hcsr04"
)

// envPrefix is prepended to upper-cased flag names to find their
// environment fallbacks.
const envPrefix = "HCSR04_"

type options struct {
	backend   string
	chip      string
	trigger   string
	echoes    []string
	timeout   time.Duration
	hold      time.Duration
	settle    time.Duration
	unlock    hcsr04.UnlockPolicy
	unit      hcsr04.Unit
	celsius   float64
	count     int
	interval  time.Duration
	polling   bool
	broker    string
	topic     string
	verbosity int
}

func parseFlags(fs *flag.FlagSet, args []string, getenv func(string) string) (options, error) {
	var o options
	var echo, unlock, unit string
	fs.StringVar(&o.backend, "backend", "periph", "GPIO access: periph, cdev or rpi")
	fs.StringVar(&o.chip, "chip", "gpiochip0", "GPIO character device for the cdev backend")
	fs.StringVar(&o.trigger, "trigger", "", "Trigger pin")
	fs.StringVar(&echo, "echo", "", "Echo pins, separated by spaces or commas")
	fs.DurationVar(&o.timeout, "timeout", hcsr04.DefaultTimeout, "Echo timeout")
	fs.DurationVar(&o.hold, "hold", hcsr04.DefaultTriggerHold, "Trigger pulse width")
	fs.DurationVar(&o.settle, "settle", hcsr04.DefaultTriggerWait, "Wait after the trigger pulse")
	fs.StringVar(&unlock, "unlock", hcsr04.UnlockMaybe.String(), "Stuck sensor recovery: skip, maybe or forced")
	fs.StringVar(&unit, "unit", hcsr04.Centimeters.String(), "Distance unit: mm, cm, m, in, ft or yd")
	fs.Float64Var(&o.celsius, "temp", hcsr04.DefaultTemperature, "Air temperature in Celsius")
	fs.IntVar(&o.count, "count", 1, "Measurements to take, 0 runs until interrupted")
	fs.DurationVar(&o.interval, "interval", time.Second, "Pause between measurements")
	fs.BoolVar(&o.polling, "polling", false, "Poll every echo pin")
	fs.StringVar(&o.broker, "mqtt", "", "MQTT broker URL")
	fs.StringVar(&o.topic, "topic", "hcsr04", "MQTT topic")
	fs.IntVar(&o.verbosity, "v", 0, "Log verbosity: 0 errors, 1 info, 2 debug, 3 trace")

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if err := applyEnv(fs, getenv); err != nil {
		return options{}, err
	}

	var err error
	if o.echoes, err = splitPins(echo); err != nil {
		return options{}, err
	}
	if o.unlock, err = hcsr04.ParseUnlockPolicy(unlock); err != nil {
		return options{}, err
	}
	if o.unit, err = hcsr04.ParseUnit(unit); err != nil {
		return options{}, err
	}
	switch {
	case o.trigger == "":
		return options{}, errors.New("-trigger is required")
	case len(o.echoes) == 0:
		return options{}, errors.New("-echo is required")
	case o.count < 0:
		return options{}, errors.Errorf("-count %d is negative", o.count)
	}
	return o, nil
}

// applyEnv sets every flag not given on the command line from its
// environment variable, if there is one.
func applyEnv(fs *flag.FlagSet, getenv func(string) string) error {
	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	var err error
	fs.VisitAll(func(f *flag.Flag) {
		if err != nil || set[f.Name] {
			return
		}
		name := envPrefix + strings.ToUpper(f.Name)
		v := getenv(name)
		if v == "" {
			return
		}
		if e := fs.Set(f.Name, v); e != nil {
			err = errors.Wrapf(e, "%s=%q", name, v)
		}
	})
	return err
}

// splitPins splits a pin list on spaces and commas. Quoted names are kept
// whole.
func splitPins(s string) ([]string, error) {
	fields, err := shlex.Split(strings.ReplaceAll(s, ",", " "))
	if err != nil {
		return nil, errors.Wrapf(err, "pin list %q", s)
	}
	return fields, nil
}

func offsets(pins []string) ([]int, error) {
	out := make([]int, len(pins))
	for i, p := range pins {
		n, err := strconv.Atoi(strings.TrimPrefix(strings.ToUpper(p), "GPIO"))
		if err != nil || n < 0 {
			return nil, errors.Errorf("pin %q is not a line number", p)
		}
		out[i] = n
	}
	return out, nil
}

func formatMeasurements(ms []hcsr04.Measurement, u hcsr04.Unit, celsius float64) string {
	parts := make([]string, len(ms))
	for i, m := range ms {
		switch d := hcsr04.Convert(m.Micros, celsius, u); {
		case m.Err() != nil:
			parts[i] = fmt.Sprintf("#%d: %v", m.Channel, m.Err())
		case d == hcsr04.InvalidDistance:
			parts[i] = fmt.Sprintf("#%d: out of range (%dµs)", m.Channel, m.Micros)
		default:
			parts[i] = fmt.Sprintf("#%d: %.1f%s", m.Channel, d, u)
		}
	}
	return strings.Join(parts, "  ")
}
