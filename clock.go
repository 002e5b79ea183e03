//go:build !tinygo

package hcsr04

import "time"

var hostOrigin = time.Now()

// HostClock is the Clock of the machine running the program.
type HostClock struct{}

// Now returns the monotonic time elapsed since the package was loaded.
func (HostClock) Now() time.Duration {
	return time.Since(hostOrigin)
}

// Wait sleeps for a millisecond or more. Shorter waits spin on the monotonic
// clock: a sleep is rounded up to the scheduler's resolution.
func (HostClock) Wait(d time.Duration) {
	if d >= time.Millisecond {
		time.Sleep(d)
		return
	}
	for t0 := time.Now(); time.Since(t0) < d; {
	}
}
