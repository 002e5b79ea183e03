//go:build tinygo

package hcsr04

import "time"

var hostOrigin = time.Now()

// HostClock is the Clock of the machine running the program. On
// microcontrollers the mcu package offers a tick based Clock.
type HostClock struct{}

func (HostClock) Now() time.Duration {
	return time.Since(hostOrigin)
}

func (c HostClock) Wait(d time.Duration) {
	t0 := c.Now()
	for c.Now()-t0 < d {
	}
}
