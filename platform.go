package hcsr04

import (
	"time"

	"periph.io/x/periph/conn/gpio"
)

// Line is one digital line of the host. Any periph gpio.PinIO satisfies it,
// so pins returned by gpioreg.ByName can be used directly.
type Line interface {
	// In configures the line as an input.
	In(pull gpio.Pull, edge gpio.Edge) error
	// Read returns the current level of the line.
	Read() gpio.Level
	// Out configures the line as an output and drives it to l.
	Out(l gpio.Level) error
}

// Interrupter is implemented by lines that can deliver edge callbacks.
//
// SetInterrupt registers fn to be called on edge, replacing any previous
// registration. Passing gpio.NoEdge or a nil fn removes the registration.
// Implementations must allow SetInterrupt to be called from within fn.
type Interrupter interface {
	SetInterrupt(edge gpio.Edge, fn func()) error
}

// TimedInterrupter is implemented by Interrupters that know when each edge
// happened, as read from EdgeClock. A Sensor whose Clock equals the line's
// EdgeClock uses these times instead of reading its Clock in the callback.
type TimedInterrupter interface {
	EdgeClock() Clock
	// SetTimedInterrupt is SetInterrupt with the edge time passed to fn. It
	// shares its registration with SetInterrupt.
	SetTimedInterrupt(edge gpio.Edge, fn func(at time.Duration)) error
}

// Clock is the host's monotonic microsecond clock.
type Clock interface {
	// Now returns the time elapsed since an arbitrary, fixed origin.
	Now() time.Duration
	// Wait blocks the caller for at least d.
	Wait(d time.Duration)
}

type halter interface {
	Halt() error
}
