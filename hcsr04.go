// Package hcsr04 measures distance with one or more HC-SR04 ultrasonic
// ranging modules sharing a single trigger line.
//
// Every measurement fires one trigger pulse and then times the echo pulse of
// each sensor in parallel. Echo lines that can deliver edge interrupts are
// timed from interrupt callbacks, the others are polled from the wait loop;
// both kinds can be mixed freely on one Sensor.
//
// Results are reported per channel, in microseconds or in a length unit. A
// channel that could not be measured reports one of the sentinels
// InvalidResult, NoTrigger or NoEcho instead of a value, so one broken
// sensor never hides the results of the others.
//
// Datasheet: https://cdn.sparkfun.com/datasheets/Sensors/Proximity/HCSR04.pdf
package hcsr04

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/womat/debug"
	"periph.io/x/periph/conn/gpio"
)

// MaxChannels is the largest number of echo lines one Sensor can time.
const MaxChannels = 10

// Defaults applied to zero Config fields.
const (
	DefaultTimeout     = 100 * time.Millisecond
	DefaultTriggerHold = 10 * time.Microsecond
	DefaultTriggerWait = 10 * time.Microsecond
)

// Config describes the lines and timings of a Sensor.
type Config struct {
	// Trigger is the line connected to every module's "Trig" pin.
	Trigger Line
	// Echoes are the lines connected to the modules' "Echo" pins, in result
	// order. Lines implementing Interrupter are timed from edge callbacks.
	Echoes []Line
	// Timeout bounds the cycle. A channel whose echo started before the
	// deadline is given Timeout from its own echo start to finish.
	Timeout time.Duration
	// TriggerHold is how long the trigger line is held HIGH.
	TriggerHold time.Duration
	// TriggerWait is how long to wait after the trigger pulse before the
	// echo lines are armed.
	TriggerWait time.Duration
	// Unlock selects the stuck sensor recovery run by Configure.
	Unlock UnlockPolicy
	// ForcePolling times every echo line by polling, even those that could
	// deliver interrupts.
	ForcePolling bool
	// Clock defaults to HostClock.
	Clock Clock
}

func (c Config) withDefaults() Config {
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.TriggerHold == 0 {
		c.TriggerHold = DefaultTriggerHold
	}
	if c.TriggerWait == 0 {
		c.TriggerWait = DefaultTriggerWait
	}
	if c.Clock == nil {
		c.Clock = HostClock{}
	}
	return c
}

func (c Config) validate() error {
	if c.Trigger == nil {
		return errors.New("hcsr04: no trigger line")
	}
	if len(c.Echoes) == 0 || len(c.Echoes) > MaxChannels {
		return errors.Errorf("hcsr04: %d echo lines, want 1 to %d", len(c.Echoes), MaxChannels)
	}
	for i, l := range c.Echoes {
		if l == nil {
			return errors.Errorf("hcsr04: echo line %d is nil", i)
		}
	}
	if c.Timeout < 0 || c.TriggerHold < 0 || c.TriggerWait < 0 {
		return errors.New("hcsr04: negative duration")
	}
	return nil
}

// Sensor is a group of HC-SR04 modules sharing one trigger line.
//
// A Sensor serializes its measurements; each call blocks for at most about
// twice the configured timeout.
type Sensor struct {
	mu          sync.Mutex
	cfg         Config
	channels    []*Channel
	temperature float64

	lastMicros    []int64
	lastDistances []float64
}

// New configures and returns a Sensor.
func New(cfg Config) (*Sensor, error) {
	s := &Sensor{temperature: DefaultTemperature}
	if err := s.Configure(cfg); err != nil {
		return nil, err
	}
	return s, nil
}

// Configure releases the current channels, if any, and sets up the lines in
// cfg: the trigger line is driven LOW, the echo lines become inputs and the
// unlock policy is applied.
func (s *Sensor) Configure(cfg Config) error {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.release()

	if err := cfg.Trigger.Out(gpio.Low); err != nil {
		return errors.Wrap(err, "hcsr04: trigger line")
	}
	for i, l := range cfg.Echoes {
		if err := l.In(gpio.PullNoChange, gpio.NoEdge); err != nil {
			return errors.Wrapf(err, "hcsr04: echo line %d", i)
		}
	}
	if _, err := unlock(cfg.Unlock, cfg.Echoes, cfg.Clock); err != nil {
		return errors.Wrap(err, "hcsr04")
	}

	s.cfg = cfg
	s.channels = make([]*Channel, len(cfg.Echoes))
	for i, l := range cfg.Echoes {
		s.channels[i] = newChannel(i, l, cfg.ForcePolling)
		debug.DebugLog.Printf("configured %v", s.channels[i])
	}
	s.lastMicros = make([]int64, len(s.channels))
	s.lastDistances = make([]float64, len(s.channels))
	debug.InfoLog.Printf("hcsr04: %d channel(s), timeout %v, unlock %s", len(s.channels), cfg.Timeout, cfg.Unlock)
	return nil
}

// Close detaches every edge callback, halts the echo lines that support it
// and drives the trigger line LOW. The Sensor must be configured again
// before further use.
func (s *Sensor) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var err error
	if s.cfg.Trigger != nil {
		err = s.cfg.Trigger.Out(gpio.Low)
	}
	s.release()
	s.cfg = Config{}
	return err
}

func (s *Sensor) release() {
	for _, c := range s.channels {
		c.cap.disarm(c)
		c.reset()
		if h, ok := c.line.(halter); ok {
			if err := h.Halt(); err != nil {
				debug.ErrorLog.Printf("%v: halt: %v", c, err)
			}
		}
	}
	s.channels = nil
	s.lastMicros = nil
	s.lastDistances = nil
}

// Channels returns the configured channels in result order.
func (s *Sensor) Channels() []*Channel {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Channel(nil), s.channels...)
}

// Temperature returns the ambient temperature used when none is given.
func (s *Sensor) Temperature() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.temperature
}

// SetTemperature sets the ambient temperature, in Celsius, used when none
// is given.
func (s *Sensor) SetTemperature(celsius float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.temperature = celsius
}

// MeasureMicroseconds runs one cycle and returns the echo time of every
// channel in microseconds, or a sentinel. The returned slice is reused by
// the next measurement.
func (s *Sensor) MeasureMicroseconds() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastMicros = s.measure(s.lastMicros)
	return s.lastMicros
}

// MeasureMicrosecondsInto is like MeasureMicroseconds but fills dst,
// growing it if it is too short, and returns it.
func (s *Sensor) MeasureMicrosecondsInto(dst []int64) []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.measure(dst)
}

// MeasureDistance runs one cycle and returns the distance seen by every
// channel in u at the Sensor's temperature, or InvalidDistance. The
// returned slice is reused by the next measurement.
func (s *Sensor) MeasureDistance(u Unit) []float64 {
	return s.MeasureDistanceAt(u, s.Temperature())
}

// MeasureDistanceAt is like MeasureDistance at the given temperature in
// Celsius.
func (s *Sensor) MeasureDistanceAt(u Unit, celsius float64) []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastDistances = s.distances(s.lastDistances, u, celsius)
	return s.lastDistances
}

// MeasureDistanceInto is like MeasureDistanceAt but fills dst, growing it
// if it is too short, and returns it.
func (s *Sensor) MeasureDistanceInto(dst []float64, u Unit, celsius float64) []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.distances(dst, u, celsius)
}

// Measure runs one cycle and returns a Measurement per channel.
func (s *Sensor) Measure() []Measurement {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastMicros = s.measure(s.lastMicros)
	ms := make([]Measurement, len(s.lastMicros))
	for i, raw := range s.lastMicros {
		ms[i] = Measurement{Channel: i, Micros: raw}
	}
	return ms
}

func (s *Sensor) distances(dst []float64, u Unit, celsius float64) []float64 {
	s.lastMicros = s.measure(s.lastMicros)
	dst = grow(dst, len(s.lastMicros))
	for i, raw := range s.lastMicros {
		dst[i] = Convert(raw, celsius, u)
	}
	return dst
}

func grow[T any](dst []T, n int) []T {
	if cap(dst) < n {
		return make([]T, n)
	}
	return dst[:n]
}
