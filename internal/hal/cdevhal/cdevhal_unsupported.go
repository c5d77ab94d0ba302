//go:build !linux

package cdevhal

import "github.com/pkg/errors"

// ErrUnsupported is returned by every request on platforms without the GPIO
// character device.
var ErrUnsupported = errors.New("gpio character device requires linux")

// Line is implemented in the Linux version.  This one exists so callers
// compile everywhere.
type Line struct{}

// RequestInput always fails off Linux.
func RequestInput(chip string, offset int, consumer string) (*Line, error) {
	return nil, ErrUnsupported
}

// RequestOutput always fails off Linux.
func RequestOutput(chip string, offset int, initial bool, consumer string) (*Line, error) {
	return nil, ErrUnsupported
}

// Read always fails off Linux.
func (line *Line) Read() (bool, error) { return false, ErrUnsupported }

// Write always fails off Linux.
func (line *Line) Write(high bool) error { return ErrUnsupported }

// Close is a no-op.
func (line *Line) Close() error { return nil }
