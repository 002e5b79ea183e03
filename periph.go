//go:build !tinygo

package hcsr04

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/womat/debug"
	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/gpio/gpioreg"
	"periph.io/x/periph/host"
)

// edgePoll bounds how long the EdgePin watcher blocks before checking
// whether it was halted.
const edgePoll = 10 * time.Millisecond

type edgeHandler struct {
	edge gpio.Edge
	fn   func()
}

// EdgePin turns a periph pin with edge detection into an Interrupter. The
// pin watches both edges once a callback is registered; a goroutine waits
// for edges and dispatches those matching the current registration.
type EdgePin struct {
	gpio.PinIO

	handler atomic.Pointer[edgeHandler]

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

// NewEdgePin wraps p.
func NewEdgePin(p gpio.PinIO) *EdgePin {
	return &EdgePin{PinIO: p}
}

// In configures the pin as an input. While callbacks are enabled the pin
// keeps detecting both edges whatever edge is asked for.
func (p *EdgePin) In(pull gpio.Pull, edge gpio.Edge) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stop != nil {
		edge = gpio.BothEdges
	}
	return p.PinIO.In(pull, edge)
}

// SetInterrupt implements Interrupter.
func (p *EdgePin) SetInterrupt(edge gpio.Edge, fn func()) error {
	if edge == gpio.NoEdge || fn == nil {
		p.handler.Store(nil)
		return nil
	}
	p.handler.Store(&edgeHandler{edge: edge, fn: fn})

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stop != nil {
		return nil
	}
	if err := p.PinIO.In(gpio.PullNoChange, gpio.BothEdges); err != nil {
		p.handler.Store(nil)
		return errors.Wrapf(err, "%s: edge detection", p.PinIO)
	}
	p.stop, p.done = make(chan struct{}), make(chan struct{})
	go p.watch(p.stop, p.done)
	return nil
}

func (p *EdgePin) watch(stop, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-stop:
			return
		default:
		}
		if !p.PinIO.WaitForEdge(edgePoll) {
			continue
		}
		h := p.handler.Load()
		if h == nil {
			continue
		}
		level := p.PinIO.Read()
		switch {
		case h.edge == gpio.BothEdges,
			h.edge == gpio.RisingEdge && level == gpio.High,
			h.edge == gpio.FallingEdge && level == gpio.Low:
			h.fn()
		}
	}
}

// Halt drops the registered callback and stops the watcher goroutine. A
// later SetInterrupt starts it again.
func (p *EdgePin) Halt() error {
	p.handler.Store(nil)
	p.mu.Lock()
	stop, done := p.stop, p.done
	p.stop, p.done = nil, nil
	p.mu.Unlock()
	if stop != nil {
		close(stop)
		<-done
	}
	return p.PinIO.Halt()
}

// Open initializes periph's host drivers and returns a Config using the
// named pins. Echo pins that accept edge detection are wrapped in an
// EdgePin, the others are polled.
//
// Names should be in the format expected by periph's gpioreg.ByName. For a
// Raspberry Pi, this corresponds to the BCM pin number as a string.
func Open(trigger string, echoes ...string) (Config, error) {
	if _, err := host.Init(); err != nil {
		return Config{}, errors.Wrap(err, "hcsr04: periph host")
	}
	trig := gpioreg.ByName(trigger)
	if trig == nil {
		return Config{}, errors.Errorf("hcsr04: no GPIO trigger pin named: %s", trigger)
	}
	cfg := Config{Trigger: trig}
	for _, name := range echoes {
		p := gpioreg.ByName(name)
		if p == nil {
			return Config{}, errors.Errorf("hcsr04: no GPIO echo pin named: %s", name)
		}
		cfg.Echoes = append(cfg.Echoes, echoLine(p))
	}
	return cfg, nil
}

// echoLine probes p for edge detection.
func echoLine(p gpio.PinIO) Line {
	if err := p.In(gpio.PullDown, gpio.BothEdges); err != nil {
		debug.DebugLog.Printf("%s: no edge detection, polling: %v", p, err)
		_ = p.In(gpio.PullDown, gpio.NoEdge)
		return p
	}
	if err := p.In(gpio.PullDown, gpio.NoEdge); err != nil {
		debug.ErrorLog.Printf("%s: %v", p, err)
	}
	return NewEdgePin(p)
}
