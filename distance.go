package hcsr04

import (
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"periph.io/x/periph/conn/physic"
)

// DefaultTemperature is the ambient temperature, in Celsius, assumed when the
// caller does not provide one. At this temperature sound travels 343.0 m/s.
const DefaultTemperature = 19.307

// InvalidDistance is reported in place of a distance that could not be
// measured or that falls outside the sensor's range.
const InvalidDistance = float64(InvalidResult)

// The HC-SR04 reliably ranges between 1cm and 400cm. Every unit's
// plausibility window is derived from this envelope.
const (
	minRange = 10 * physic.MilliMetre
	maxRange = 4 * physic.Metre
)

// Unit is a length unit a distance can be reported in.
type Unit int

// Supported units, metric then imperial.
const (
	Millimeters Unit = iota // mm
	Centimeters             // cm
	Meters                  // m
	Inches                  // in
	Feet                    // ft
	Yards                   // yd
	numUnits
)

// unitLength is the length of one of each unit. The conversion rate and the
// plausibility window of a unit are both derived from it.
var unitLength = [numUnits]physic.Distance{
	Millimeters: physic.MilliMetre,
	Centimeters: 10 * physic.MilliMetre,
	Meters:      physic.Metre,
	Inches:      physic.Inch,
	Feet:        physic.Foot,
	Yards:       physic.Yard,
}

var unitNames = [numUnits]string{
	Millimeters: "mm",
	Centimeters: "cm",
	Meters:      "m",
	Inches:      "in",
	Feet:        "ft",
	Yards:       "yd",
}

func (u Unit) String() string {
	if u.valid() {
		return unitNames[u]
	}
	return fmt.Sprintf("Unit(%d)", int(u))
}

func (u Unit) valid() bool { return u >= 0 && u < numUnits }

// perMetre returns how many of u make up one metre.
func (u Unit) perMetre() float64 {
	return float64(physic.Metre) / float64(unitLength[u])
}

// Bounds returns the plausibility window of u: the sensor's 1cm to 400cm
// range expressed in u.
func (u Unit) Bounds() (lo, hi float64) {
	l := float64(unitLength[u])
	return float64(minRange) / l, float64(maxRange) / l
}

// ParseUnit returns the Unit named by s, which is one of the unit symbols
// "mm", "cm", "m", "in", "ft" or "yd".
func ParseUnit(s string) (Unit, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for u, name := range unitNames {
		if s == name {
			return Unit(u), nil
		}
	}
	return 0, errors.Errorf("hcsr04: unknown unit %q", s)
}

// SpeedOfSound returns the speed of sound in dry air at the given temperature
// in Celsius, in metres per second.
func SpeedOfSound(celsius float64) float64 {
	return 331.3 + 0.606*celsius
}

// Convert turns a raw echo time in microseconds into a distance in u at the
// given temperature. The echo covers the distance twice, so only half of it
// counts.
//
// Sentinel input, an unknown unit, and results outside the sensor's range
// all yield InvalidDistance.
func Convert(raw int64, celsius float64, u Unit) float64 {
	if raw < 0 || !u.valid() {
		return InvalidDistance
	}
	// m/s to units per microsecond.
	rate := SpeedOfSound(celsius) * u.perMetre() / 1e6
	d := float64(raw) / 2 * rate
	lo, hi := u.Bounds()
	if d < lo || d > hi {
		return InvalidDistance
	}
	return d
}

// TimeToCentimeters converts a raw echo time in microseconds to centimeters
// at DefaultTemperature.
func TimeToCentimeters(raw int64) float64 {
	return Convert(raw, DefaultTemperature, Centimeters)
}

// CelsiusOf converts a periph temperature, as reported by environmental
// sensors, to the Celsius value the converter expects.
func CelsiusOf(t physic.Temperature) float64 {
	return float64(t-physic.ZeroCelsius) / float64(physic.Kelvin)
}

// Measurement expresses one channel's result and facilitates conversion to
// various units.
type Measurement struct {
	// Channel is the index of the echo line the result belongs to.
	Channel int
	// Micros is the raw echo time in microseconds, or one of the sentinels
	// InvalidResult, NoTrigger or NoEcho.
	Micros int64
}

// Err returns nil for a valid measurement, otherwise ErrInvalidResult,
// ErrNoTrigger or ErrNoEcho.
func (m Measurement) Err() error {
	return Classify(m.Micros)
}

// TimeOfFlight returns the raw echo time, or 0 if there is none.
func (m Measurement) TimeOfFlight() time.Duration {
	if m.Micros < 0 {
		return 0
	}
	return time.Duration(m.Micros) * time.Microsecond
}

// In converts the measurement into u at the given temperature.
func (m Measurement) In(u Unit, celsius float64) float64 {
	return Convert(m.Micros, celsius, u)
}

// InCentimeters converts the measurement into centimeters at
// DefaultTemperature.
func (m Measurement) InCentimeters() float64 {
	return m.In(Centimeters, DefaultTemperature)
}

// InInches converts the measurement into inches at DefaultTemperature.
func (m Measurement) InInches() float64 {
	return m.In(Inches, DefaultTemperature)
}

// Distance converts the measurement into a periph distance at the given
// temperature.
func (m Measurement) Distance(celsius float64) (physic.Distance, error) {
	if err := m.Err(); err != nil {
		return 0, err
	}
	mm := Convert(m.Micros, celsius, Millimeters)
	if mm == InvalidDistance {
		return 0, errors.Wrapf(ErrInvalidResult, "channel %d: %dµs is out of range", m.Channel, m.Micros)
	}
	return physic.Distance(mm * float64(physic.MilliMetre)), nil
}

func (m Measurement) String() string {
	if err := m.Err(); err != nil {
		return fmt.Sprintf("#%d: %v", m.Channel, errors.Cause(err))
	}
	return fmt.Sprintf("#%d: %dµs", m.Channel, m.Micros)
}
