// Package board opens the Chart Plotter Hat lines with the configured GPIO
// backend and hands them to the drivers.
package board

import (
	"io"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	cph "chartplotterhat"
	"chartplotterhat/internal/config"
	"chartplotterhat/internal/hal/cdevhal"
	"chartplotterhat/internal/hal/periphhal"
)

// GPIO consumer labels, shown by gpioinfo.
const (
	MonitorConsumer = "shutdown_monitor"
	ToolConsumer    = "spitool"
)

// Line is an opened GPIO line.
type Line interface {
	cph.DigitalInput
	cph.DigitalOutput
	io.Closer
}

// Bus is an opened SPI port.
type Bus interface {
	cph.SPI
	io.Closer
}

// Opener opens lines and buses.
type Opener interface {
	Input(pin int) (Line, error)
	Output(pin int, initial bool) (Line, error)
	SPI(device string, hz int64) (Bus, error)
}

// NewOpener returns the Opener for the configured backend.  SPI always goes
// through periph.io; only the GPIO lines differ.
func NewOpener(g config.GPIO, consumer string) (Opener, error) {
	switch g.Backend {
	case config.BackendCdev:
		return cdevOpener{chip: g.Chip, consumer: consumer}, nil
	case config.BackendPeriph:
		return periphOpener{}, nil
	default:
		return nil, errors.Errorf("unknown gpio backend %q", g.Backend)
	}
}

type cdevOpener struct {
	chip     string
	consumer string
}

func (o cdevOpener) Input(pin int) (Line, error) {
	return cdevhal.RequestInput(o.chip, pin, o.consumer)
}

func (o cdevOpener) Output(pin int, initial bool) (Line, error) {
	return cdevhal.RequestOutput(o.chip, pin, initial, o.consumer)
}

func (o cdevOpener) SPI(device string, hz int64) (Bus, error) {
	return periphhal.OpenSPI(device, hz)
}

type periphOpener struct{}

func (periphOpener) Input(pin int) (Line, error) {
	return periphhal.OpenInput(periphhal.PinName(pin))
}

func (periphOpener) Output(pin int, initial bool) (Line, error) {
	return periphhal.OpenOutput(periphhal.PinName(pin), initial)
}

func (periphOpener) SPI(device string, hz int64) (Bus, error) {
	return periphhal.OpenSPI(device, hz)
}

// closers closes in reverse order of opening and reports every failure.
type closers []io.Closer

func (c closers) Close() error {
	var err error
	for i := len(c) - 1; i >= 0; i-- {
		err = multierr.Append(err, c[i].Close())
	}
	return err
}

// OpenPower opens the shutdown and running lines and builds the power
// driver.  The returned Closer releases both lines.
func OpenPower(o Opener, cfg config.Monitor, delay cph.MillisecondDelay) (*cph.Power, io.Closer, error) {
	var opened closers
	running, err := o.Output(cfg.RunningPin, true)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "running pin %d", cfg.RunningPin)
	}
	opened = append(opened, running)

	shutdown, err := o.Input(cfg.ShutdownPin)
	if err != nil {
		return nil, nil, multierr.Append(errors.Wrapf(err, "shutdown pin %d", cfg.ShutdownPin), opened.Close())
	}
	opened = append(opened, shutdown)

	return cph.NewPower(shutdown, running, delay), opened, nil
}

// OpenLink opens the SPI port and the chip-select line, idle high, and
// builds the MCU link.  The returned Closer releases both.
func OpenLink(o Opener, cfg config.Tool, delay cph.MicrosecondDelay) (*cph.Link, io.Closer, error) {
	var opened closers
	bus, err := o.SPI(cfg.SPIDevice, cfg.SPISpeedHz)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "spi %s", cfg.SPIDevice)
	}
	opened = append(opened, bus)

	cs, err := o.Output(cfg.CSPin, true)
	if err != nil {
		return nil, nil, multierr.Append(errors.Wrapf(err, "chip-select pin %d", cfg.CSPin), opened.Close())
	}
	opened = append(opened, cs)

	var opts []cph.LinkOption
	if cfg.ReleaseCS {
		opts = append(opts, cph.WithChipSelectRelease())
	}
	return cph.NewLink(bus, cs, delay, opts...), opened, nil
}
