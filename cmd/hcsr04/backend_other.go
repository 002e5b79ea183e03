//go:build !linux

package main

import (
	"github.com/pkg/errors"

	"github.com/asjoyner/hcsr04"
)

func openCdev(options) (hcsr04.Config, func(), error) {
	return hcsr04.Config{}, nil, errors.New("the cdev backend needs Linux")
}
