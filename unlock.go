package hcsr04

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/womat/debug"
	"periph.io/x/periph/conn/gpio"
)

// UnlockPolicy selects how echo lines stuck HIGH from an aborted earlier
// cycle are recovered when the sensor is configured.
type UnlockPolicy int

const (
	// UnlockSkip never touches the echo lines.
	UnlockSkip UnlockPolicy = iota
	// UnlockMaybe pulls down only the echo lines that read HIGH.
	UnlockMaybe
	// UnlockForced pulls down every echo line regardless of its level.
	UnlockForced
)

// Pulling the line down for unlockHold lets the sensor's logic reset; the
// sensor needs unlockSettle after the line is released before it is
// triggered again.
const (
	unlockHold   = 75 * time.Millisecond
	unlockSettle = 25 * time.Millisecond
)

var unlockNames = []string{
	UnlockSkip:   "skip",
	UnlockMaybe:  "maybe",
	UnlockForced: "forced",
}

func (p UnlockPolicy) String() string {
	if p >= 0 && int(p) < len(unlockNames) {
		return unlockNames[p]
	}
	return "unknown"
}

// ParseUnlockPolicy returns the policy named by s: "skip", "maybe" or
// "forced".
func ParseUnlockPolicy(s string) (UnlockPolicy, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for p, name := range unlockNames {
		if s == name {
			return UnlockPolicy(p), nil
		}
	}
	return 0, errors.Errorf("hcsr04: unknown unlock policy %q", s)
}

// unlock drives the affected echo lines LOW, holds them, then restores them
// to inputs. It returns the indexes of the lines it drove. When no line is
// driven there is no delay at all.
//
// This is a best effort: a sensor that stays stuck is reported as NoEcho or
// InvalidResult by later cycles.
func unlock(policy UnlockPolicy, lines []Line, clk Clock) ([]int, error) {
	if policy == UnlockSkip {
		return nil, nil
	}
	var driven []int
	for i, l := range lines {
		if policy == UnlockMaybe && l.Read() == gpio.Low {
			continue
		}
		debug.TraceLog.Printf("unlock: pulling echo line %d low", i)
		if err := l.Out(gpio.Low); err != nil {
			return driven, errors.Wrapf(err, "unlock echo line %d", i)
		}
		driven = append(driven, i)
	}
	if len(driven) == 0 {
		return nil, nil
	}

	clk.Wait(unlockHold)
	for _, i := range driven {
		if err := lines[i].In(gpio.PullNoChange, gpio.NoEdge); err != nil {
			return driven, errors.Wrapf(err, "restore echo line %d", i)
		}
	}
	clk.Wait(unlockSettle)

	debug.InfoLog.Printf("unlock (%s): released %d echo line(s)", policy, len(driven))
	return driven, nil
}
