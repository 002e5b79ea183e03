package hcsr04

import (
	"time"

	"periph.io/x/periph/conn/gpio"
)

// triggerSettle is how long the trigger line is held LOW before the pulse.
const triggerSettle = 2 * time.Microsecond

// pulse drives the shared trigger line LOW, HIGH for hold, LOW again and
// then waits for settle. It returns the clock reading taken just before the
// line is first driven, which is the start of the cycle.
//
// Write errors are not checked: a failing trigger line shows up as channels
// reporting NoTrigger.
func pulse(trig Line, clk Clock, hold, settle time.Duration) uint64 {
	start := micros(clk.Now())

	_ = trig.Out(gpio.Low)
	clk.Wait(triggerSettle)

	// The HC-SR04 needs at least 10µs to recognize the trigger; slower
	// sensors may want longer.
	_ = trig.Out(gpio.High)
	clk.Wait(hold)
	_ = trig.Out(gpio.Low)

	// The sensor sends its burst roughly 200µs after the trigger, so only a
	// short wait is needed before arming.
	clk.Wait(settle)
	return start
}
