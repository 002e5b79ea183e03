// Package hcsr04test is meant to be used to test drivers using fake HC-SR04
// modules on a simulated clock.
//
// A Bench is a Clock whose time only moves when Wait is called. Echo lines
// created from it replay their Pulses after every falling edge of the
// bench's trigger line, so cycles are fully deterministic. Interrupt echo
// lines deliver their edge callbacks from within Wait at the exact time of
// the edge, as an interrupt preempting the caller would.
package hcsr04test

import (
	"sync"
	"time"

	"periph.io/x/periph/conn/gpio"
)

// Endless is a Pulse width for an echo that never ends.
const Endless time.Duration = -1

// Pulse is one echo pulse, relative to the falling edge of the trigger.
type Pulse struct {
	Delay time.Duration
	Width time.Duration
}

// Bench is a simulated clock with a trigger line and echo lines.
//
// The zero value is not usable; use NewBench.
type Bench struct {
	mu     sync.Mutex
	now    time.Duration
	fires  []time.Duration
	trig   *Trigger
	echoes []*Echo
	irqs   []*InterruptEcho
}

// NewBench returns a bench whose clock starts at 1ms.
func NewBench() *Bench {
	b := &Bench{now: time.Millisecond}
	b.trig = &Trigger{b: b}
	return b
}

// Now implements hcsr04.Clock.
func (b *Bench) Now() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.now
}

// Wait implements hcsr04.Clock. It moves the clock forward by d, delivering
// every interrupt edge that falls within.
func (b *Bench) Wait(d time.Duration) {
	b.mu.Lock()
	target := b.now + d
	for {
		e, rising, at, ok := b.nextEdge(target)
		if !ok {
			break
		}
		b.now = at
		b.mu.Unlock()
		e.deliver(rising)
		b.mu.Lock()
	}
	b.now = target
	b.mu.Unlock()
}

// Fires returns the times of every trigger falling edge so far.
func (b *Bench) Fires() []time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]time.Duration(nil), b.fires...)
}

// Trigger returns the bench's trigger line.
func (b *Bench) Trigger() *Trigger { return b.trig }

// PolledEcho returns a new echo line without interrupt support.
func (b *Bench) PolledEcho(pulses ...Pulse) *Echo {
	b.mu.Lock()
	defer b.mu.Unlock()
	e := &Echo{b: b, pulses: pulses}
	b.echoes = append(b.echoes, e)
	return e
}

// InterruptEcho returns a new echo line delivering edge callbacks.
func (b *Bench) InterruptEcho(pulses ...Pulse) *InterruptEcho {
	b.mu.Lock()
	defer b.mu.Unlock()
	e := &InterruptEcho{Echo: Echo{b: b, pulses: pulses}}
	e.delivered = map[edgeKey]bool{}
	b.echoes = append(b.echoes, &e.Echo)
	b.irqs = append(b.irqs, e)
	return e
}

func (b *Bench) fire() {
	b.fires = append(b.fires, b.now)
	for _, e := range b.irqs {
		e.delivered = map[edgeKey]bool{}
	}
}

// lastFire returns the most recent trigger falling edge.
func (b *Bench) lastFire() (time.Duration, bool) {
	if len(b.fires) == 0 {
		return 0, false
	}
	return b.fires[len(b.fires)-1], true
}

type edgeKey struct {
	pulse  int
	rising bool
}

// nextEdge finds the earliest undelivered edge of an interrupt echo line up
// to target and marks it delivered. b.mu must be held.
func (b *Bench) nextEdge(target time.Duration) (*InterruptEcho, bool, time.Duration, bool) {
	f, ok := b.lastFire()
	if !ok {
		return nil, false, 0, false
	}
	var (
		best     *InterruptEcho
		bestKey  edgeKey
		bestTime time.Duration
	)
	consider := func(e *InterruptEcho, k edgeKey, at time.Duration) {
		if at < b.now || at > target || e.delivered[k] {
			return
		}
		if best == nil || at < bestTime {
			best, bestKey, bestTime = e, k, at
		}
	}
	for _, e := range b.irqs {
		if e.output || e.stuck {
			continue
		}
		for i, p := range e.pulses {
			start := f + p.Delay
			consider(e, edgeKey{i, true}, start)
			if p.Width != Endless {
				consider(e, edgeKey{i, false}, start+p.Width)
			}
		}
	}
	if best == nil {
		return nil, false, 0, false
	}
	best.delivered[bestKey] = true
	return best, bestKey.rising, bestTime, true
}

// Trigger is the simulated trigger line. Every HIGH to LOW transition fires
// the echo lines.
type Trigger struct {
	b      *Bench
	level  gpio.Level
	highAt time.Duration
	pulses []time.Duration
	writes []gpio.Level
}

// In implements hcsr04.Line.
func (t *Trigger) In(gpio.Pull, gpio.Edge) error { return nil }

// Read implements hcsr04.Line.
func (t *Trigger) Read() gpio.Level {
	t.b.mu.Lock()
	defer t.b.mu.Unlock()
	return t.level
}

// Out implements hcsr04.Line.
func (t *Trigger) Out(l gpio.Level) error {
	t.b.mu.Lock()
	defer t.b.mu.Unlock()
	t.writes = append(t.writes, l)
	switch {
	case t.level == gpio.Low && l == gpio.High:
		t.highAt = t.b.now
	case t.level == gpio.High && l == gpio.Low:
		t.pulses = append(t.pulses, t.b.now-t.highAt)
		t.b.fire()
	}
	t.level = l
	return nil
}

// Pulses returns how long each trigger pulse was held HIGH.
func (t *Trigger) Pulses() []time.Duration {
	t.b.mu.Lock()
	defer t.b.mu.Unlock()
	return append([]time.Duration(nil), t.pulses...)
}

// Writes returns every level written to the line.
func (t *Trigger) Writes() []gpio.Level {
	t.b.mu.Lock()
	defer t.b.mu.Unlock()
	return append([]gpio.Level(nil), t.writes...)
}

// Echo is a simulated echo line. As an input it reads HIGH during its pulses
// following the latest trigger, or always while stuck. As an output it reads
// what was driven.
type Echo struct {
	b      *Bench
	pulses []Pulse
	stuck  bool
	output bool
	driven gpio.Level
	outs   int
}

// SetPulses replaces the pulses replayed after each trigger.
func (e *Echo) SetPulses(pulses ...Pulse) {
	e.b.mu.Lock()
	defer e.b.mu.Unlock()
	e.pulses = pulses
}

// SetStuck makes the line read HIGH until it is driven LOW, like a module
// left hanging by an aborted measurement.
func (e *Echo) SetStuck(stuck bool) {
	e.b.mu.Lock()
	defer e.b.mu.Unlock()
	e.stuck = stuck
}

// Stuck reports whether the line is still stuck HIGH.
func (e *Echo) Stuck() bool {
	e.b.mu.Lock()
	defer e.b.mu.Unlock()
	return e.stuck
}

// Outs returns how many times the line was driven as an output.
func (e *Echo) Outs() int {
	e.b.mu.Lock()
	defer e.b.mu.Unlock()
	return e.outs
}

// In implements hcsr04.Line.
func (e *Echo) In(gpio.Pull, gpio.Edge) error {
	e.b.mu.Lock()
	defer e.b.mu.Unlock()
	e.output = false
	return nil
}

// Out implements hcsr04.Line. Driving the line LOW clears a stuck module.
func (e *Echo) Out(l gpio.Level) error {
	e.b.mu.Lock()
	defer e.b.mu.Unlock()
	e.outs++
	e.output = true
	e.driven = l
	if l == gpio.Low {
		e.stuck = false
	}
	return nil
}

// Read implements hcsr04.Line.
func (e *Echo) Read() gpio.Level {
	e.b.mu.Lock()
	defer e.b.mu.Unlock()
	return e.levelAt(e.b.now)
}

// levelAt returns the line level at t. e.b.mu must be held.
func (e *Echo) levelAt(t time.Duration) gpio.Level {
	if e.output {
		return e.driven
	}
	if e.stuck {
		return gpio.High
	}
	f, ok := e.b.lastFire()
	if !ok {
		return gpio.Low
	}
	for _, p := range e.pulses {
		start := f + p.Delay
		if t >= start && (p.Width == Endless || t < start+p.Width) {
			return gpio.High
		}
	}
	return gpio.Low
}

// InterruptEcho is an Echo that also implements hcsr04.Interrupter.
type InterruptEcho struct {
	Echo
	edge          gpio.Edge
	fn            func()
	registrations int
	delivered     map[edgeKey]bool
}

// SetInterrupt implements hcsr04.Interrupter.
func (e *InterruptEcho) SetInterrupt(edge gpio.Edge, fn func()) error {
	e.b.mu.Lock()
	defer e.b.mu.Unlock()
	if edge == gpio.NoEdge || fn == nil {
		e.edge, e.fn = gpio.NoEdge, nil
		return nil
	}
	e.edge, e.fn = edge, fn
	e.registrations++
	return nil
}

// Armed reports whether a callback is registered.
func (e *InterruptEcho) Armed() bool {
	e.b.mu.Lock()
	defer e.b.mu.Unlock()
	return e.fn != nil
}

// Registrations returns how many callbacks were registered so far.
func (e *InterruptEcho) Registrations() int {
	e.b.mu.Lock()
	defer e.b.mu.Unlock()
	return e.registrations
}

// Trip delivers an edge right now, whatever the line level, like electrical
// noise would.
func (e *InterruptEcho) Trip(rising bool) {
	e.deliver(rising)
}

func (e *InterruptEcho) deliver(rising bool) {
	e.b.mu.Lock()
	edge, fn := e.edge, e.fn
	e.b.mu.Unlock()
	if fn == nil {
		return
	}
	switch {
	case edge == gpio.BothEdges,
		edge == gpio.RisingEdge && rising,
		edge == gpio.FallingEdge && !rising:
		fn()
	}
}
