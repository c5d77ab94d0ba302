// Package periphhal provides the hardware capabilities on top of the
// periph.io drivers: GPIO pins addressed by their BCM number and a spidev
// port with chip-select left to software.
package periphhal

import (
	"fmt"
	"sync"

	"github.com/pkg/errors"
	// Use the new periph module layout.  See https://periph.io/news/2020/a_new_start/
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

var (
	initOnce sync.Once
	initErr  error
)

// Init loads the periph host drivers.  It is safe to call repeatedly; only
// the first call does any work.
func Init() error {
	initOnce.Do(func() {
		_, initErr = host.Init()
	})
	return errors.Wrap(initErr, "periph host init")
}

// PinName returns the periph name of a BCM GPIO number.
func PinName(bcm int) string {
	return fmt.Sprintf("GPIO%d", bcm)
}

// Pin is a GPIO pin used either as an input or as an output.
type Pin struct {
	p gpio.PinIO
}

func lookup(name string) (gpio.PinIO, error) {
	if err := Init(); err != nil {
		return nil, err
	}
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, errors.Errorf("gpio pin %q not found", name)
	}
	return p, nil
}

// OpenInput configures the named pin as an input, leaving its pull as is.
func OpenInput(name string) (*Pin, error) {
	p, err := lookup(name)
	if err != nil {
		return nil, err
	}
	if err := p.In(gpio.PullNoChange, gpio.NoEdge); err != nil {
		return nil, errors.Wrapf(err, "configure %s as input", name)
	}
	return &Pin{p: p}, nil
}

// OpenOutput configures the named pin as an output driven to initial.
func OpenOutput(name string, initial bool) (*Pin, error) {
	p, err := lookup(name)
	if err != nil {
		return nil, err
	}
	if err := p.Out(gpio.Level(initial)); err != nil {
		return nil, errors.Wrapf(err, "configure %s as output", name)
	}
	return &Pin{p: p}, nil
}

// Read returns true if the voltage level is high.
func (pin *Pin) Read() (bool, error) {
	return pin.p.Read() == gpio.High, nil
}

// Write drives the pin.
func (pin *Pin) Write(high bool) error {
	return pin.p.Out(gpio.Level(high))
}

// Close returns the pin to an input, leaving its pull as is, and stops any
// edge detection.
func (pin *Pin) Close() error {
	if err := pin.p.In(gpio.PullNoChange, gpio.NoEdge); err != nil {
		return err
	}
	return pin.p.Halt()
}

// SPI is a spidev port opened in mode 0, 8 bits per word, without hardware
// chip-select.
type SPI struct {
	port spi.PortCloser
	conn spi.Conn
}

// OpenSPI opens a spidev port, e.g. "/dev/spidev0.0", clocked at hz.
func OpenSPI(device string, hz int64) (*SPI, error) {
	if err := Init(); err != nil {
		return nil, err
	}
	port, err := spireg.Open(device)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", device)
	}
	freq := physic.Frequency(hz) * physic.Hertz
	conn, err := port.Connect(freq, spi.Mode0|spi.NoCS, 8)
	if err != nil {
		_ = port.Close()
		return nil, errors.Wrapf(err, "configure %s", device)
	}
	return &SPI{port: port, conn: conn}, nil
}

// Transfer clocks buf out and replaces it with the bytes clocked in.
func (s *SPI) Transfer(buf []byte) error {
	rx := make([]byte, len(buf))
	if err := s.conn.Tx(buf, rx); err != nil {
		return err
	}
	copy(buf, rx)
	return nil
}

// Close releases the port.
func (s *SPI) Close() error {
	return s.port.Close()
}
