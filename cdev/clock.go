//go:build linux

package cdev

import (
	"time"

	"golang.org/x/sys/unix"
)

// Clock reads CLOCK_MONOTONIC, the clock the kernel stamps line events
// with. It satisfies hcsr04.Clock.
type Clock struct{}

func (Clock) Now() time.Duration {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		return 0
	}
	return time.Duration(ts.Nano())
}

// Wait sleeps for a millisecond or more and spins for shorter waits.
func (c Clock) Wait(d time.Duration) {
	if d >= time.Millisecond {
		time.Sleep(d)
		return
	}
	for t0 := c.Now(); c.Now()-t0 < d; {
	}
}
