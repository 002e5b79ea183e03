//go:build linux

package cdev

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
	"periph.io/x/periph/conn/gpio"
)

func lineName(chip string, offset int) string {
	return fmt.Sprintf("%s:%d", chip, offset)
}

func level(v int) gpio.Level {
	return gpio.Level(v != 0)
}

func value(l gpio.Level) int {
	if l == gpio.High {
		return 1
	}
	return 0
}

// bias maps a periph pull to the matching line bias. PullNoChange leaves the
// bias as it is.
func bias(pull gpio.Pull) []gpiocdev.LineConfigOption {
	switch pull {
	case gpio.Float:
		return []gpiocdev.LineConfigOption{gpiocdev.WithBiasDisabled}
	case gpio.PullDown:
		return []gpiocdev.LineConfigOption{gpiocdev.WithPullDown}
	case gpio.PullUp:
		return []gpiocdev.LineConfigOption{gpiocdev.WithPullUp}
	}
	return nil
}

func matches(edge gpio.Edge, t gpiocdev.LineEventType) bool {
	switch edge {
	case gpio.BothEdges:
		return true
	case gpio.RisingEdge:
		return t == gpiocdev.LineEventRisingEdge
	case gpio.FallingEdge:
		return t == gpiocdev.LineEventFallingEdge
	}
	return false
}
