// Package rpi provides hcsr04 lines driving the Raspberry Pi GPIO registers
// directly through /dev/gpiomem. The registers offer no edge callbacks, so
// every echo line is polled.
package rpi

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/stianeikeland/go-rpio/v4"
	"github.com/womat/debug"
	"periph.io/x/periph/conn/gpio"

	"github.com/asjoyner/hcsr04"
)

// Line is one BCM numbered pin. It satisfies hcsr04.Line.
type Line struct {
	pin rpio.Pin
}

// Pin returns the Line for BCM pin n. Open must have been called.
func Pin(n int) *Line {
	return &Line{pin: rpio.Pin(n)}
}

func (l *Line) String() string {
	return fmt.Sprintf("GPIO%d", int(l.pin))
}

// In configures the pin as an input. The edge is ignored.
func (l *Line) In(pull gpio.Pull, edge gpio.Edge) error {
	l.pin.Input()
	switch pull {
	case gpio.Float:
		l.pin.PullOff()
	case gpio.PullDown:
		l.pin.PullDown()
	case gpio.PullUp:
		l.pin.PullUp()
	}
	return nil
}

// Read returns the current level of the pin.
func (l *Line) Read() gpio.Level {
	return level(l.pin.Read())
}

// Out configures the pin as an output and drives it to lvl.
func (l *Line) Out(lvl gpio.Level) error {
	l.pin.Output()
	l.pin.Write(state(lvl))
	return nil
}

func level(s rpio.State) gpio.Level {
	return gpio.Level(s == rpio.High)
}

func state(l gpio.Level) rpio.State {
	if l == gpio.High {
		return rpio.High
	}
	return rpio.Low
}

// Open maps the GPIO registers and returns an hcsr04.Config using the given
// BCM pins. Close unmaps the registers.
func Open(trigger int, echoes ...int) (hcsr04.Config, error) {
	if err := rpio.Open(); err != nil {
		return hcsr04.Config{}, errors.Wrap(err, "rpi: mapping GPIO registers")
	}
	cfg := hcsr04.Config{Trigger: Pin(trigger)}
	for _, n := range echoes {
		cfg.Echoes = append(cfg.Echoes, Pin(n))
	}
	debug.DebugLog.Printf("rpi: trigger GPIO%d, %d echo pin(s), polled", trigger, len(echoes))
	return cfg, nil
}

// Close unmaps the GPIO registers.
func Close() error {
	return errors.Wrap(rpio.Close(), "rpi")
}
