//go:build linux

// Package cdev provides hcsr04 lines backed by the Linux GPIO character
// device. Echo lines receive edge events from the kernel and so are timed
// from interrupt callbacks.
package cdev

import (
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/warthog618/go-gpiocdev"
	"github.com/womat/debug"
	"periph.io/x/periph/conn/gpio"

	"github.com/asjoyner/hcsr04"
)

// Consumer is the label the kernel shows for requested lines.
const Consumer = "hcsr04"

// Line is a requested GPIO line. It satisfies hcsr04.Line.
type Line struct {
	l      *gpiocdev.Line
	name   string
	edges  bool
	mu     sync.Mutex
	output bool
}

func (l *Line) String() string {
	return l.name
}

// In reconfigures the line as an input. Lines requested with edge
// detection keep detecting both edges whatever edge is asked for.
func (l *Line) In(pull gpio.Pull, edge gpio.Edge) error {
	opts := append([]gpiocdev.LineConfigOption{gpiocdev.AsInput}, bias(pull)...)
	if l.edges {
		opts = append(opts, gpiocdev.WithBothEdges)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.l.Reconfigure(opts...); err != nil {
		return errors.Wrapf(err, "%s: input", l.name)
	}
	l.output = false
	return nil
}

// Read returns the current level, LOW if it cannot be read.
func (l *Line) Read() gpio.Level {
	v, err := l.l.Value()
	if err != nil {
		debug.ErrorLog.Printf("%s: read: %v", l.name, err)
		return gpio.Low
	}
	return level(v)
}

// Out drives the line to lvl, switching it to an output first if needed.
func (l *Line) Out(lvl gpio.Level) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.output {
		return errors.Wrapf(l.l.SetValue(value(lvl)), "%s: output", l.name)
	}
	if err := l.l.Reconfigure(gpiocdev.AsOutput(value(lvl))); err != nil {
		return errors.Wrapf(err, "%s: output", l.name)
	}
	l.output = true
	return nil
}

// Close releases the line back to the kernel.
func (l *Line) Close() error {
	return l.l.Close()
}

type handler struct {
	edge gpio.Edge
	fn   func(at time.Duration)
}

// EdgeLine is a Line requested with both edge detection and an event
// handler. It satisfies hcsr04.Interrupter and hcsr04.TimedInterrupter: the
// kernel stamps every event on Clock.
type EdgeLine struct {
	Line
	handler atomic.Pointer[handler]
}

// SetInterrupt implements hcsr04.Interrupter.
func (e *EdgeLine) SetInterrupt(edge gpio.Edge, fn func()) error {
	if fn == nil {
		return e.SetTimedInterrupt(edge, nil)
	}
	return e.SetTimedInterrupt(edge, func(time.Duration) { fn() })
}

// SetTimedInterrupt implements hcsr04.TimedInterrupter. at is the kernel's
// event timestamp.
func (e *EdgeLine) SetTimedInterrupt(edge gpio.Edge, fn func(at time.Duration)) error {
	if edge == gpio.NoEdge || fn == nil {
		e.handler.Store(nil)
		return nil
	}
	e.handler.Store(&handler{edge: edge, fn: fn})
	return nil
}

// EdgeClock implements hcsr04.TimedInterrupter.
func (e *EdgeLine) EdgeClock() hcsr04.Clock {
	return Clock{}
}

// Halt drops the registered callback. The line stays requested.
func (e *EdgeLine) Halt() error {
	e.handler.Store(nil)
	return nil
}

func (e *EdgeLine) event(evt gpiocdev.LineEvent) {
	h := e.handler.Load()
	if h != nil && matches(h.edge, evt.Type) {
		h.fn(evt.Timestamp)
	}
}

// Lines are the lines requested by Open.
type Lines struct {
	Trigger *Line
	Echoes  []hcsr04.Line

	closers []io.Closer
}

// Config returns an hcsr04.Config using the lines, timed by Clock so the
// kernel's event timestamps are used.
func (ls *Lines) Config() hcsr04.Config {
	return hcsr04.Config{Trigger: ls.Trigger, Echoes: ls.Echoes, Clock: Clock{}}
}

// Close releases every line.
func (ls *Lines) Close() error {
	var first error
	for _, l := range ls.closers {
		if err := l.Close(); err != nil && first == nil {
			first = err
		}
	}
	ls.closers = nil
	return first
}

// Open requests the trigger and echo line offsets on chip, for example
// "gpiochip0". Echo lines that refuse edge detection are requested as plain
// inputs and polled.
func Open(chip string, trigger int, echoes ...int) (*Lines, error) {
	ls := &Lines{}
	t, err := gpiocdev.RequestLine(chip, trigger, gpiocdev.AsOutput(0), gpiocdev.WithConsumer(Consumer))
	if err != nil {
		return nil, errors.Wrapf(err, "cdev: trigger line %s:%d", chip, trigger)
	}
	ls.Trigger = &Line{l: t, name: lineName(chip, trigger), output: true}
	ls.closers = append(ls.closers, ls.Trigger)

	for _, offset := range echoes {
		l, err := requestEcho(chip, offset)
		if err != nil {
			ls.Close()
			return nil, err
		}
		ls.Echoes = append(ls.Echoes, l)
		ls.closers = append(ls.closers, l.(io.Closer))
	}
	return ls, nil
}

func requestEcho(chip string, offset int) (hcsr04.Line, error) {
	name := lineName(chip, offset)
	e := &EdgeLine{Line: Line{name: name, edges: true}}
	l, err := gpiocdev.RequestLine(chip, offset,
		gpiocdev.AsInput,
		gpiocdev.WithConsumer(Consumer),
		gpiocdev.WithBothEdges,
		gpiocdev.WithEventHandler(e.event))
	if err == nil {
		e.l = l
		return e, nil
	}
	debug.DebugLog.Printf("%s: no edge detection, polling: %v", name, err)
	l, err = gpiocdev.RequestLine(chip, offset, gpiocdev.AsInput, gpiocdev.WithConsumer(Consumer))
	if err != nil {
		return nil, errors.Wrapf(err, "cdev: echo line %s", name)
	}
	return &Line{l: l, name: name}, nil
}
