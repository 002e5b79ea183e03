package hcsr04

import (
	"time"

	"github.com/womat/debug"
)

// measure runs one cycle: trigger pulse, arm, wait, collect. Every slot of
// the returned vector is filled. s.mu must be held.
func (s *Sensor) measure(dst []int64) []int64 {
	dst = grow(dst, len(s.channels))
	if len(s.channels) == 0 {
		return dst
	}
	clk := s.cfg.Clock
	timeout := int64(s.cfg.Timeout / time.Microsecond)

	for _, c := range s.channels {
		c.reset()
	}
	start := pulse(s.cfg.Trigger, clk, s.cfg.TriggerHold, s.cfg.TriggerWait)
	for _, c := range s.channels {
		s.arm(c, clk)
	}

	for {
		clk.Wait(time.Microsecond)
		now := micros(clk.Now())

		finished, waiting := true, false
		for _, c := range s.channels {
			c.cap.poll(c, now)
			if c.echo.Load() == 0 {
				finished = false
			}
			waiting = waiting || c.waiting(now, start, timeout)
		}
		if finished || !waiting {
			break
		}
	}

	// Detach before reading so a late edge cannot land in the next cycle.
	for _, c := range s.channels {
		c.cap.disarm(c)
	}
	for i, c := range s.channels {
		dst[i] = classify(c.trigger.Load(), c.echo.Load())
		c.reset()
	}
	return dst
}

// arm prepares c for the cycle. An interrupt channel whose registration
// fails is switched to polling for good.
func (s *Sensor) arm(c *Channel, clk Clock) {
	err := c.cap.arm(c, clk)
	if err == nil {
		return
	}
	debug.ErrorLog.Printf("%v: falling back to polling: %v", c, err)
	c.cap.disarm(c)
	c.irq, c.timed = nil, nil
	c.cap = polledCapture{}
	_ = c.cap.arm(c, clk)
}

// waiting reports whether c may still change its result. Before the cycle
// deadline every channel waits. After it, a channel whose echo has started
// but not ended keeps waiting until its own deadline, counted from its echo
// start, so an echo that began just before the cycle deadline can finish.
func (c *Channel) waiting(now, start uint64, timeout int64) bool {
	if int64(now-start) < timeout {
		return true
	}
	t := c.trigger.Load()
	return t != 0 && c.echo.Load() == 0 && int64(now)-int64(t) < timeout
}
