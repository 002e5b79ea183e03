//go:build linux

package cdev

import (
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/warthog618/go-gpiocdev"
	"periph.io/x/periph/conn/gpio"

	"github.com/asjoyner/hcsr04"
)

func TestLevels(t *testing.T) {
	c := qt.New(t)
	c.Assert(level(0), qt.Equals, gpio.Low)
	c.Assert(level(1), qt.Equals, gpio.High)
	c.Assert(value(gpio.Low), qt.Equals, 0)
	c.Assert(value(gpio.High), qt.Equals, 1)
	c.Assert(lineName("gpiochip0", 17), qt.Equals, "gpiochip0:17")
}

func TestBias(t *testing.T) {
	c := qt.New(t)
	c.Assert(bias(gpio.PullNoChange), qt.HasLen, 0)
	for _, p := range []gpio.Pull{gpio.Float, gpio.PullDown, gpio.PullUp} {
		c.Assert(bias(p), qt.HasLen, 1, qt.Commentf("%s", p))
	}
}

func TestMatches(t *testing.T) {
	tests := []struct {
		edge gpio.Edge
		t    gpiocdev.LineEventType
		want bool
	}{
		{gpio.RisingEdge, gpiocdev.LineEventRisingEdge, true},
		{gpio.RisingEdge, gpiocdev.LineEventFallingEdge, false},
		{gpio.FallingEdge, gpiocdev.LineEventFallingEdge, true},
		{gpio.FallingEdge, gpiocdev.LineEventRisingEdge, false},
		{gpio.BothEdges, gpiocdev.LineEventRisingEdge, true},
		{gpio.NoEdge, gpiocdev.LineEventRisingEdge, false},
	}
	for _, test := range tests {
		qt.Assert(t, matches(test.edge, test.t), qt.Equals, test.want, qt.Commentf("%s on %v", test.edge, test.t))
	}
}

func TestEdgeLineDispatch(t *testing.T) {
	c := qt.New(t)
	var e EdgeLine
	var _ hcsr04.Interrupter = &e

	var rose, fell int
	c.Assert(e.SetInterrupt(gpio.RisingEdge, func() {
		rose++
		// Registering from inside the callback must not deadlock.
		e.SetInterrupt(gpio.FallingEdge, func() { fell++ })
	}), qt.IsNil)

	e.event(gpiocdev.LineEvent{Type: gpiocdev.LineEventFallingEdge})
	c.Assert(rose+fell, qt.Equals, 0)
	e.event(gpiocdev.LineEvent{Type: gpiocdev.LineEventRisingEdge})
	e.event(gpiocdev.LineEvent{Type: gpiocdev.LineEventRisingEdge})
	c.Assert(rose, qt.Equals, 1)
	e.event(gpiocdev.LineEvent{Type: gpiocdev.LineEventFallingEdge})
	c.Assert(fell, qt.Equals, 1)

	c.Assert(e.Halt(), qt.IsNil)
	e.event(gpiocdev.LineEvent{Type: gpiocdev.LineEventFallingEdge})
	c.Assert(fell, qt.Equals, 1)

	c.Assert(e.SetInterrupt(gpio.FallingEdge, nil), qt.IsNil)
	e.event(gpiocdev.LineEvent{Type: gpiocdev.LineEventFallingEdge})
	c.Assert(fell, qt.Equals, 1)
}

func TestOpenMissingChip(t *testing.T) {
	_, err := Open("hcsr04-no-such-chip", 4, 17)
	qt.Assert(t, err, qt.ErrorMatches, `cdev: trigger line hcsr04-no-such-chip:4: .*`)
}

func TestEdgeLineTimestamps(t *testing.T) {
	c := qt.New(t)
	var e EdgeLine
	var _ hcsr04.TimedInterrupter = &e
	c.Assert(e.EdgeClock(), qt.Equals, hcsr04.Clock(Clock{}))

	var got []time.Duration
	c.Assert(e.SetTimedInterrupt(gpio.BothEdges, func(at time.Duration) { got = append(got, at) }), qt.IsNil)
	e.event(gpiocdev.LineEvent{Type: gpiocdev.LineEventRisingEdge, Timestamp: 1200 * time.Microsecond})
	e.event(gpiocdev.LineEvent{Type: gpiocdev.LineEventFallingEdge, Timestamp: 1780 * time.Microsecond})
	c.Assert(got, qt.DeepEquals, []time.Duration{1200 * time.Microsecond, 1780 * time.Microsecond})

	// Both kinds of registration share one slot.
	c.Assert(e.SetInterrupt(gpio.NoEdge, nil), qt.IsNil)
	e.event(gpiocdev.LineEvent{Type: gpiocdev.LineEventRisingEdge, Timestamp: 2000 * time.Microsecond})
	c.Assert(got, qt.HasLen, 2)
}

func TestLinesConfigUsesKernelClock(t *testing.T) {
	ls := &Lines{}
	qt.Assert(t, ls.Config().Clock, qt.Equals, hcsr04.Clock(Clock{}))
}

func TestClock(t *testing.T) {
	c := qt.New(t)
	var clk Clock
	t0 := clk.Now()
	c.Assert(t0 > 0, qt.IsTrue)
	clk.Wait(50 * time.Microsecond)
	t1 := clk.Now()
	c.Assert(t1-t0 >= 50*time.Microsecond, qt.IsTrue, qt.Commentf("%v", t1-t0))
	clk.Wait(2 * time.Millisecond)
	c.Assert(clk.Now()-t1 >= 2*time.Millisecond, qt.IsTrue)
}
