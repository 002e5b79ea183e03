//go:build tinygo

// Package mcu provides hcsr04 lines and a clock for microcontrollers
// programmed with TinyGo. Echo pins are timed from pin change interrupts.
package mcu

import (
	"machine"
	"sync/atomic"
	"time"
	_ "unsafe"

	"periph.io/x/periph/conn/gpio"

	"github.com/asjoyner/hcsr04"
)

//go:linkname ticks runtime.ticks
func ticks() uint64

//go:linkname ticksToNanoseconds runtime.ticksToNanoseconds
func ticksToNanoseconds(ticks uint64) int64

// Clock reads the runtime tick counter. It satisfies hcsr04.Clock.
type Clock struct{}

//go:inline
func (Clock) Now() time.Duration {
	return time.Duration(ticksToNanoseconds(ticks()))
}

// Wait spins on the tick counter.
func (c Clock) Wait(d time.Duration) {
	t0 := c.Now()
	for c.Now()-t0 < d {
	}
}

type handler struct {
	edge gpio.Edge
	fn   func()
}

// Pin is a machine pin. It satisfies hcsr04.Line and hcsr04.Interrupter.
type Pin struct {
	pin     machine.Pin
	handler atomic.Pointer[handler]
	armed   bool
}

// NewPin wraps p.
func NewPin(p machine.Pin) *Pin {
	return &Pin{pin: p}
}

// In configures the pin as an input. The edge is ignored; interrupts are
// set up by SetInterrupt.
func (p *Pin) In(pull gpio.Pull, edge gpio.Edge) error {
	mode := machine.PinInput
	switch pull {
	case gpio.PullDown:
		mode = machine.PinInputPulldown
	case gpio.PullUp:
		mode = machine.PinInputPullup
	}
	p.pin.Configure(machine.PinConfig{Mode: mode})
	return nil
}

func (p *Pin) Read() gpio.Level {
	return gpio.Level(p.pin.Get())
}

func (p *Pin) Out(l gpio.Level) error {
	p.pin.Configure(machine.PinConfig{Mode: machine.PinOutput})
	p.pin.Set(bool(l))
	return nil
}

// SetInterrupt implements hcsr04.Interrupter. The pin interrupt fires on
// both edges once enabled; the level read in the handler selects the
// callback.
func (p *Pin) SetInterrupt(edge gpio.Edge, fn func()) error {
	if edge == gpio.NoEdge || fn == nil {
		p.handler.Store(nil)
		return nil
	}
	p.handler.Store(&handler{edge: edge, fn: fn})
	if p.armed {
		return nil
	}
	if err := p.pin.SetInterrupt(machine.PinToggle, p.toggle); err != nil {
		p.handler.Store(nil)
		return err
	}
	p.armed = true
	return nil
}

// Halt drops the callback and disables the pin interrupt.
func (p *Pin) Halt() error {
	p.handler.Store(nil)
	if !p.armed {
		return nil
	}
	p.armed = false
	return p.pin.SetInterrupt(machine.PinToggle, nil)
}

//go:noinline
func (p *Pin) toggle(pin machine.Pin) {
	h := p.handler.Load()
	if h == nil {
		return
	}
	high := pin.Get()
	switch {
	case h.edge == gpio.BothEdges,
		h.edge == gpio.RisingEdge && high,
		h.edge == gpio.FallingEdge && !high:
		h.fn()
	}
}

// New returns an hcsr04.Config for the given pins timed by Clock.
func New(trigger machine.Pin, echoes ...machine.Pin) hcsr04.Config {
	cfg := hcsr04.Config{Trigger: NewPin(trigger), Clock: Clock{}}
	for _, e := range echoes {
		cfg.Echoes = append(cfg.Echoes, NewPin(e))
	}
	return cfg
}
