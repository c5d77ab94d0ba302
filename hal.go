// Package chartplotterhat drives the companion microcontroller on the Chart
// Plotter Hat.  Power watches the shutdown request line and reports the host
// as running; Link speaks the timed SPI command protocol.
//
// Both drivers only see the small hardware capabilities defined in this
// file, so a GPIO character device, a periph.io pin or a test fake can be
// plugged in at construction time.
package chartplotterhat

import (
	"time"

	"github.com/benbjohnson/clock"
)

// DigitalInput reads the logic level of an input line.
type DigitalInput interface {
	Read() (bool, error)
}

// DigitalOutput drives an output line high or low.
type DigitalOutput interface {
	Write(high bool) error
}

// MillisecondDelay blocks the caller for the given number of milliseconds.
type MillisecondDelay interface {
	DelayMs(ms uint32)
}

// MicrosecondDelay blocks the caller for the given number of microseconds.
type MicrosecondDelay interface {
	DelayUs(us uint32)
}

// SPI performs a full-duplex transfer.  The bytes in buf are clocked out and
// overwritten in place with the bytes clocked in.
type SPI interface {
	Transfer(buf []byte) error
}

// Delay implements MillisecondDelay and MicrosecondDelay on top of a clock.
// The zero value sleeps on the wall clock.
type Delay struct {
	Clock clock.Clock
}

// NewDelay returns a Delay sleeping on c.
func NewDelay(c clock.Clock) Delay {
	return Delay{Clock: c}
}

// DelayMs sleeps for ms milliseconds.
func (d Delay) DelayMs(ms uint32) {
	d.sleep(time.Duration(ms) * time.Millisecond)
}

// DelayUs sleeps for us microseconds.  The scheduler may overshoot, never
// undershoot.
func (d Delay) DelayUs(us uint32) {
	d.sleep(time.Duration(us) * time.Microsecond)
}

func (d Delay) sleep(dur time.Duration) {
	if d.Clock == nil {
		time.Sleep(dur)
		return
	}
	d.Clock.Sleep(dur)
}
