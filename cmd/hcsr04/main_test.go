package main

import (
	"flag"
	"io"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"

	"github.com/asjoyner/hcsr04"
)

func parse(args []string, env map[string]string) (options, error) {
	fs := flag.NewFlagSet("hcsr04", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return parseFlags(fs, args, func(k string) string { return env[k] })
}

func TestParseFlagsDefaults(t *testing.T) {
	c := qt.New(t)
	o, err := parse([]string{"-trigger", "GPIO4", "-echo", "GPIO17 GPIO27"}, nil)
	c.Assert(err, qt.IsNil)
	c.Assert(o.backend, qt.Equals, "periph")
	c.Assert(o.trigger, qt.Equals, "GPIO4")
	c.Assert(o.echoes, qt.DeepEquals, []string{"GPIO17", "GPIO27"})
	c.Assert(o.timeout, qt.Equals, hcsr04.DefaultTimeout)
	c.Assert(o.hold, qt.Equals, hcsr04.DefaultTriggerHold)
	c.Assert(o.unlock, qt.Equals, hcsr04.UnlockMaybe)
	c.Assert(o.unit, qt.Equals, hcsr04.Centimeters)
	c.Assert(o.celsius, qt.Equals, hcsr04.DefaultTemperature)
	c.Assert(o.count, qt.Equals, 1)
	c.Assert(o.topic, qt.Equals, "hcsr04")
}

func TestParseFlagsEnvironment(t *testing.T) {
	c := qt.New(t)
	env := map[string]string{
		"HCSR04_TRIGGER": "4",
		"HCSR04_ECHO":    "17,27, 22",
		"HCSR04_UNIT":    "in",
		"HCSR04_TIMEOUT": "30ms",
		"HCSR04_POLLING": "true",
		"HCSR04_COUNT":   "5",
	}
	o, err := parse([]string{"-backend", "cdev", "-count", "2"}, env)
	c.Assert(err, qt.IsNil)
	c.Assert(o.backend, qt.Equals, "cdev")
	c.Assert(o.trigger, qt.Equals, "4")
	c.Assert(o.echoes, qt.DeepEquals, []string{"17", "27", "22"})
	c.Assert(o.unit, qt.Equals, hcsr04.Inches)
	c.Assert(o.timeout, qt.Equals, 30*time.Millisecond)
	c.Assert(o.polling, qt.IsTrue)
	// The command line wins over the environment.
	c.Assert(o.count, qt.Equals, 2)
}

func TestParseFlagsErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		env  map[string]string
		want string
	}{
		{"no trigger", []string{"-echo", "17"}, nil, "-trigger is required"},
		{"no echo", []string{"-trigger", "4"}, nil, "-echo is required"},
		{"bad unit", []string{"-trigger", "4", "-echo", "17", "-unit", "furlong"}, nil, `hcsr04: unknown unit "furlong"`},
		{"bad unlock", []string{"-trigger", "4", "-echo", "17", "-unlock", "always"}, nil, `hcsr04: unknown unlock policy "always"`},
		{"negative count", []string{"-trigger", "4", "-echo", "17", "-count", "-1"}, nil, "-count -1 is negative"},
		{"bad environment", []string{"-trigger", "4", "-echo", "17"}, map[string]string{"HCSR04_TIMEOUT": "soon"}, `HCSR04_TIMEOUT="soon": .*`},
		{"unterminated quote", []string{"-trigger", "4", "-echo", `"17`}, nil, `pin list "\\"17": .*`},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := parse(test.args, test.env)
			qt.Assert(t, err, qt.ErrorMatches, test.want)
		})
	}
}

func TestOffsets(t *testing.T) {
	c := qt.New(t)
	got, err := offsets([]string{"4", "GPIO17", "gpio27"})
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.DeepEquals, []int{4, 17, 27})

	_, err = offsets([]string{"P1_7"})
	c.Assert(err, qt.ErrorMatches, `pin "P1_7" is not a line number`)
}

func TestFormatMeasurements(t *testing.T) {
	c := qt.New(t)
	ms := []hcsr04.Measurement{
		{Channel: 0, Micros: 11662},
		{Channel: 1, Micros: hcsr04.NoEcho},
		{Channel: 2, Micros: 30000},
	}
	c.Assert(formatMeasurements(ms, hcsr04.Centimeters, hcsr04.DefaultTemperature), qt.Equals,
		"#0: 200.0cm  #1: hcsr04: no echo received  #2: out of range (30000µs)")
}

func TestOpenBackendUnknown(t *testing.T) {
	_, _, err := openBackend(options{backend: "serial"})
	qt.Assert(t, err, qt.ErrorMatches, `unknown backend "serial"`)
}
