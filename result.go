package hcsr04

import (
	"github.com/pkg/errors"
)

// Sentinel values reported in place of a raw echo time. They are negative so
// they can never be mistaken for a measurement.
const (
	// InvalidResult marks a corrupted capture (echo stamped before trigger)
	// or, after conversion, a distance outside the sensor's range.
	InvalidResult int64 = -1
	// NoTrigger marks a channel that never saw its echo start. This usually
	// means a wiring fault.
	NoTrigger int64 = -2
	// NoEcho marks a channel whose echo started but did not end before its
	// deadline. This usually means nothing is in range.
	NoEcho int64 = -3
)

// Errors returned by Classify and Measurement.Err.
var (
	ErrInvalidResult = errors.New("hcsr04: invalid result")
	ErrNoTrigger     = errors.New("hcsr04: no trigger detected")
	ErrNoEcho        = errors.New("hcsr04: no echo received")
)

// Classify maps a raw result to the error it stands for, or nil for a valid
// measurement.
func Classify(raw int64) error {
	switch {
	case raw >= 0:
		return nil
	case raw == NoTrigger:
		return ErrNoTrigger
	case raw == NoEcho:
		return ErrNoEcho
	default:
		return ErrInvalidResult
	}
}

// classify turns a channel's timestamps into a raw result.
func classify(trigger, echo uint64) int64 {
	switch {
	case trigger != 0 && echo != 0:
		if echo < trigger {
			return InvalidResult
		}
		return int64(echo - trigger)
	case trigger != 0:
		return NoEcho
	default:
		return NoTrigger
	}
}
