package hcsr04

import (
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"periph.io/x/periph/conn/gpio"

	"github.com/asjoyner/hcsr04/hcsr04test"
)

func TestUnlockMaybeLeavesLowLinesAlone(t *testing.T) {
	c := qt.New(t)
	b := hcsr04test.NewBench()
	a, z := b.PolledEcho(), b.InterruptEcho()

	before := b.Now()
	driven, err := unlock(UnlockMaybe, []Line{a, z}, b)
	c.Assert(err, qt.IsNil)
	c.Assert(driven, qt.HasLen, 0)
	c.Assert(a.Outs(), qt.Equals, 0)
	c.Assert(z.Outs(), qt.Equals, 0)
	c.Assert(b.Now(), qt.Equals, before)
}

func TestUnlockMaybeDrivesStuckLines(t *testing.T) {
	c := qt.New(t)
	b := hcsr04test.NewBench()
	low, stuck := b.PolledEcho(), b.PolledEcho()
	stuck.SetStuck(true)

	before := b.Now()
	driven, err := unlock(UnlockMaybe, []Line{low, stuck}, b)
	c.Assert(err, qt.IsNil)
	c.Assert(driven, qt.DeepEquals, []int{1})
	c.Assert(low.Outs(), qt.Equals, 0)
	c.Assert(stuck.Outs(), qt.Equals, 1)
	c.Assert(stuck.Stuck(), qt.IsFalse)
	c.Assert(stuck.Read(), qt.Equals, gpio.Low)
	c.Assert(b.Now()-before, qt.Equals, unlockHold+unlockSettle)
}

func TestUnlockForcedDrivesEveryLine(t *testing.T) {
	c := qt.New(t)
	b := hcsr04test.NewBench()
	lines := []*hcsr04test.Echo{b.PolledEcho(), b.PolledEcho(), b.PolledEcho()}
	lines[2].SetStuck(true)

	before := b.Now()
	driven, err := unlock(UnlockForced, []Line{lines[0], lines[1], lines[2]}, b)
	c.Assert(err, qt.IsNil)
	c.Assert(driven, qt.DeepEquals, []int{0, 1, 2})
	for i, l := range lines {
		c.Assert(l.Outs(), qt.Equals, 1, qt.Commentf("line %d", i))
		c.Assert(l.Stuck(), qt.IsFalse)
	}
	c.Assert(b.Now()-before, qt.Equals, 100*time.Millisecond)
}

func TestUnlockSkip(t *testing.T) {
	c := qt.New(t)
	b := hcsr04test.NewBench()
	stuck := b.PolledEcho()
	stuck.SetStuck(true)

	driven, err := unlock(UnlockSkip, []Line{stuck}, b)
	c.Assert(err, qt.IsNil)
	c.Assert(driven, qt.HasLen, 0)
	c.Assert(stuck.Stuck(), qt.IsTrue)
}

func TestStuckSensorWithoutUnlock(t *testing.T) {
	c := qt.New(t)
	b := hcsr04test.NewBench()
	stuck := b.PolledEcho(hcsr04test.Pulse{Delay: 300 * time.Microsecond, Width: 100 * time.Microsecond})
	stuck.SetStuck(true)
	s := newBenchSensor(c, b, time.Millisecond, stuck)

	// The line reads HIGH from the start and never falls.
	c.Assert(s.MeasureMicroseconds(), qt.DeepEquals, []int64{NoEcho})
}

func TestConfigureUnlocks(t *testing.T) {
	c := qt.New(t)
	b := hcsr04test.NewBench()
	stuck := b.PolledEcho(hcsr04test.Pulse{Delay: 300 * time.Microsecond, Width: 100 * time.Microsecond})
	stuck.SetStuck(true)

	s, err := New(Config{
		Trigger: b.Trigger(),
		Echoes:  []Line{stuck},
		Timeout: time.Millisecond,
		Unlock:  UnlockMaybe,
		Clock:   b,
	})
	c.Assert(err, qt.IsNil)
	c.Assert(stuck.Stuck(), qt.IsFalse)
	c.Assert(s.MeasureMicroseconds(), qt.DeepEquals, []int64{100})
}

func TestParseUnlockPolicy(t *testing.T) {
	c := qt.New(t)
	for _, p := range []UnlockPolicy{UnlockSkip, UnlockMaybe, UnlockForced} {
		got, err := ParseUnlockPolicy(p.String())
		c.Assert(err, qt.IsNil)
		c.Assert(got, qt.Equals, p)
	}
	_, err := ParseUnlockPolicy("always")
	c.Assert(err, qt.ErrorMatches, `hcsr04: unknown unlock policy "always"`)
	c.Assert(UnlockPolicy(7).String(), qt.Equals, "unknown")
}
