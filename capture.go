package hcsr04

import (
	"time"

	"github.com/womat/debug"
	"periph.io/x/periph/conn/gpio"
)

// capturer detects the rising and falling edge of one channel's echo.
type capturer interface {
	// arm prepares the channel for a new cycle.
	arm(c *Channel, clk Clock) error
	// poll is called by the wait loop on every iteration with the current
	// timestamp.
	poll(c *Channel, now uint64)
	// disarm ends the cycle for the channel. It must be safe to call more
	// than once.
	disarm(c *Channel)
}

// interruptCapture registers a rising edge callback, swaps it for a falling
// edge callback once the echo starts and drops it once the echo ends.
type interruptCapture struct{}

func (interruptCapture) arm(c *Channel, clk Clock) error {
	c.setStage(StageArmedRising)
	return c.register(gpio.RisingEdge, clk, onRising)
}

// register attaches fn to edge. fn receives the edge time reported by the
// line when the line reports it on clk, else clk's time at the callback.
func (c *Channel) register(edge gpio.Edge, clk Clock, fn func(c *Channel, clk Clock, at uint64)) error {
	if c.timed != nil && c.timed.EdgeClock() == clk {
		return c.timed.SetTimedInterrupt(edge, func(at time.Duration) { fn(c, clk, micros(at)) })
	}
	return c.irq.SetInterrupt(edge, func() { fn(c, clk, micros(clk.Now())) })
}

func onRising(c *Channel, clk Clock, at uint64) {
	if !c.enter() {
		return
	}
	defer c.leave()
	if !c.casStage(StageArmedRising, StageArmedFalling) {
		return
	}
	c.stampTrigger(at)
	if err := c.register(gpio.FallingEdge, clk, onFalling); err != nil {
		debug.ErrorLog.Printf("%v: falling edge registration: %v", c, err)
	}
}

func onFalling(c *Channel, _ Clock, at uint64) {
	if !c.enter() {
		return
	}
	defer c.leave()
	if !c.casStage(StageArmedFalling, StageResolved) {
		return
	}
	c.stampEcho(at)
	_ = c.irq.SetInterrupt(gpio.NoEdge, nil)
}

func (interruptCapture) poll(*Channel, uint64) {}

// disarm waits for callbacks already running, so nothing registers or
// stamps once it returns.
func (interruptCapture) disarm(c *Channel) {
	c.quiesce()
	_ = c.irq.SetInterrupt(gpio.NoEdge, nil)
}

// polledCapture samples the line level from the wait loop.
type polledCapture struct{}

func (polledCapture) arm(c *Channel, _ Clock) error {
	c.setStage(StageArmedRising)
	return nil
}

func (polledCapture) poll(c *Channel, now uint64) {
	switch c.line.Read() {
	case gpio.High:
		if c.stampTrigger(now) {
			c.setStage(StageArmedFalling)
		}
	case gpio.Low:
		if c.echo.Load() == 0 && c.stampEcho(now) {
			c.setStage(StageResolved)
		}
	}
}

func (polledCapture) disarm(c *Channel) {
	c.setStage(StageIdle)
}
