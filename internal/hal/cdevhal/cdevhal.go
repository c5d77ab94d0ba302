//go:build linux

// Package cdevhal provides digital lines through the Linux GPIO character
// device, by way of go-gpiocdev.
package cdevhal

import (
	"github.com/pkg/errors"
	"github.com/warthog618/go-gpiocdev"
)

// Line is a requested GPIO line.
type Line struct {
	l *gpiocdev.Line
}

// RequestInput requests offset on chip (e.g. "gpiochip0") as an input.
func RequestInput(chip string, offset int, consumer string) (*Line, error) {
	l, err := gpiocdev.RequestLine(chip, offset,
		gpiocdev.AsInput,
		gpiocdev.WithConsumer(consumer))
	if err != nil {
		return nil, errors.Wrapf(err, "request %s line %d as input", chip, offset)
	}
	return &Line{l: l}, nil
}

// RequestOutput requests offset on chip as an output driven to initial.
func RequestOutput(chip string, offset int, initial bool, consumer string) (*Line, error) {
	l, err := gpiocdev.RequestLine(chip, offset,
		gpiocdev.AsOutput(level(initial)),
		gpiocdev.WithConsumer(consumer))
	if err != nil {
		return nil, errors.Wrapf(err, "request %s line %d as output", chip, offset)
	}
	return &Line{l: l}, nil
}

// Read returns true if the line is active (high).
func (line *Line) Read() (bool, error) {
	v, err := line.l.Value()
	if err != nil {
		return false, err
	}
	// Any non-zero value is considered high.
	return v != 0, nil
}

// Write sets the line.
func (line *Line) Write(high bool) error {
	return line.l.SetValue(level(high))
}

// Close releases the line back to the kernel.
func (line *Line) Close() error {
	return line.l.Close()
}

func level(high bool) int {
	if high {
		return 1
	}
	return 0
}
