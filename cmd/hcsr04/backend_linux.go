package main

import (
	"github.com/asjoyner/hcsr04"
	"github.com/asjoyner/hcsr04/cdev"
)

func openCdev(o options) (hcsr04.Config, func(), error) {
	pins, err := offsets(append([]string{o.trigger}, o.echoes...))
	if err != nil {
		return hcsr04.Config{}, nil, err
	}
	lines, err := cdev.Open(o.chip, pins[0], pins[1:]...)
	if err != nil {
		return hcsr04.Config{}, nil, err
	}
	return lines.Config(), func() { lines.Close() }, nil
}
