package main

import (
	"github.com/pkg/errors"

	"github.com/asjoyner/hcsr04"
	"github.com/asjoyner/hcsr04/rpi"
)

func openBackend(o options) (hcsr04.Config, func(), error) {
	switch o.backend {
	case "periph":
		cfg, err := hcsr04.Open(o.trigger, o.echoes...)
		return cfg, func() {}, err
	case "cdev":
		return openCdev(o)
	case "rpi":
		pins, err := offsets(append([]string{o.trigger}, o.echoes...))
		if err != nil {
			return hcsr04.Config{}, nil, err
		}
		cfg, err := rpi.Open(pins[0], pins[1:]...)
		if err != nil {
			return hcsr04.Config{}, nil, err
		}
		return cfg, func() { rpi.Close() }, nil
	}
	return hcsr04.Config{}, nil, errors.Errorf("unknown backend %q", o.backend)
}
