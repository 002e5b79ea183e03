package hcsr04

import (
	"fmt"
	"runtime"
	"sync/atomic"
	"time"
)

// Stage is a channel's position in the edge capture state machine.
type Stage int32

const (
	// StageIdle means the channel is not taking part in a cycle.
	StageIdle Stage = iota
	// StageArmedRising means the channel waits for the echo to start.
	StageArmedRising
	// StageArmedFalling means the echo started and the channel waits for it
	// to end.
	StageArmedFalling
	// StageResolved means both edges were captured.
	StageResolved
)

func (s Stage) String() string {
	switch s {
	case StageIdle:
		return "idle"
	case StageArmedRising:
		return "armed-rising"
	case StageArmedFalling:
		return "armed-falling"
	case StageResolved:
		return "resolved"
	default:
		return fmt.Sprintf("Stage(%d)", int32(s))
	}
}

// Capability tells how a channel's echo edges are captured.
type Capability int

const (
	// Polled channels are read by the wait loop on every iteration.
	Polled Capability = iota
	// Interrupt channels receive edge callbacks from the platform.
	Interrupt
)

func (c Capability) String() string {
	if c == Interrupt {
		return "interrupt"
	}
	return "polled"
}

// Channel is one echo line and its per-cycle capture state.
//
// The stage and both timestamps are written by exactly one producer at a
// time (the wait loop for polled channels, the edge callback for interrupt
// channels) and read by the wait loop, so they are kept in atomic cells.
// Stage moves made by callbacks are compare-and-swaps, and a callback only
// touches the channel between enter and leave.
type Channel struct {
	index int
	line  Line
	irq   Interrupter      // nil for polled channels
	timed TimedInterrupter // nil unless irq reports edge times
	cap   capturer

	stage    atomic.Int32
	trigger  atomic.Uint64 // µs, 0 = unset
	echo     atomic.Uint64 // µs, 0 = unset
	inflight atomic.Int32  // callbacks between enter and leave
}

func newChannel(index int, line Line, forcePolling bool) *Channel {
	c := &Channel{index: index, line: line}
	if irq, ok := line.(Interrupter); ok && !forcePolling {
		c.irq = irq
		c.timed, _ = line.(TimedInterrupter)
		c.cap = interruptCapture{}
	} else {
		c.cap = polledCapture{}
	}
	return c
}

// Index returns the channel's position in the result vector.
func (c *Channel) Index() int { return c.index }

// Capability returns how the channel captures edges.
func (c *Channel) Capability() Capability {
	if c.irq != nil {
		return Interrupt
	}
	return Polled
}

// Stage returns the channel's current stage.
func (c *Channel) Stage() Stage { return Stage(c.stage.Load()) }

func (c *Channel) String() string {
	return fmt.Sprintf("channel %d (%s, %s)", c.index, c.Capability(), c.Stage())
}

func (c *Channel) setStage(s Stage) { c.stage.Store(int32(s)) }

func (c *Channel) casStage(from, to Stage) bool {
	return c.stage.CompareAndSwap(int32(from), int32(to))
}

// enter admits an edge callback unless the channel is idle. An admitted
// callback must call leave when done.
func (c *Channel) enter() bool {
	c.inflight.Add(1)
	if c.Stage() == StageIdle {
		c.inflight.Add(-1)
		return false
	}
	return true
}

func (c *Channel) leave() { c.inflight.Add(-1) }

// quiesce makes c idle and waits for admitted callbacks to leave. Callbacks
// starting afterwards see the idle stage and do nothing.
func (c *Channel) quiesce() {
	c.stage.Swap(int32(StageIdle))
	for c.inflight.Load() != 0 {
		runtime.Gosched()
	}
}

// stampTrigger records the echo start. It only succeeds once per cycle.
func (c *Channel) stampTrigger(now uint64) bool {
	return c.trigger.CompareAndSwap(0, now)
}

// stampEcho records the echo end. It only succeeds once per cycle and only
// after the trigger stamp is set.
func (c *Channel) stampEcho(now uint64) bool {
	if c.trigger.Load() == 0 {
		return false
	}
	return c.echo.CompareAndSwap(0, now)
}

func (c *Channel) reset() {
	c.setStage(StageIdle)
	c.trigger.Store(0)
	c.echo.Store(0)
}

// micros converts a clock reading to a timestamp. 0 marks an unset stamp, so
// a reading at the clock's origin is moved forward by one microsecond.
func micros(d time.Duration) uint64 {
	us := uint64(d / time.Microsecond)
	if us == 0 {
		us = 1
	}
	return us
}
