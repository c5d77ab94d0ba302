// Command spitool queries and configures the Chart Plotter Hat MCU over SPI.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	cph "chartplotterhat"
	"chartplotterhat/internal/board"
	"chartplotterhat/internal/config"
	"chartplotterhat/internal/logging"
)

const (
	// Flags.
	flagConfig     = "config"
	flagDebug      = "debug"
	flagEEPROM     = "eeprom"
	flagSet        = "set"
	flagGet        = "get"
	flagRead       = "read"
	flagBootloader = "bootloader"
)

// mcu is the part of *chartplotterhat.Link spitool drives.
type mcu interface {
	Version() (cph.Version, error)
	CANHardware() (bool, error)
	ToggleEEPROM() error
	SyncChannels() error
	SetChannel(ch uint8) error
	ChannelEnabled(ch uint8) (bool, error)
	Reading(ch uint8) (uint16, error)
	EnterBootloader() error
}

// openFunc opens the link described by cfg.
type openFunc func(cfg config.Tool, logger golog.Logger) (mcu, io.Closer, error)

func main() {
	if err := newApp(openBoard).Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func openBoard(cfg config.Tool, logger golog.Logger) (mcu, io.Closer, error) {
	opener, err := board.NewOpener(cfg.GPIO, board.ToolConsumer)
	if err != nil {
		return nil, nil, err
	}
	logger.Debugw("opening link", "spi", cfg.SPIDevice, "hz", cfg.SPISpeedHz, "cs", cfg.CSPin, "backend", cfg.GPIO.Backend)
	link, closer, err := board.OpenLink(opener, cfg, cph.NewDelay(clock.New()))
	if err != nil {
		return nil, nil, err
	}
	return link, closer, nil
}

func newApp(open openFunc) *cli.App {
	return &cli.App{
		Name:  "spitool",
		Usage: "talk to the Chart Plotter Hat MCU",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagConfig,
				Aliases: []string{"c"},
				Usage:   "load settings from JSON `FILE`",
			},
			&cli.BoolFlag{
				Name:  flagDebug,
				Usage: "enable debug logging",
			},
			&cli.BoolFlag{
				Name:    flagEEPROM,
				Aliases: []string{"e"},
				Usage:   "toggle the eeprom write line",
			},
			&cli.UintFlag{
				Name:    flagSet,
				Aliases: []string{"s"},
				Usage:   "enable adc `CHANNEL`",
			},
			&cli.UintFlag{
				Name:    flagGet,
				Aliases: []string{"g"},
				Usage:   "report whether adc `CHANNEL` is enabled",
			},
			&cli.UintFlag{
				Name:    flagRead,
				Aliases: []string{"r"},
				Usage:   "print the last reading of adc `CHANNEL`",
			},
			&cli.BoolFlag{
				Name:  flagBootloader,
				Usage: "restart the MCU into its bootloader",
			},
		},
		Action: func(c *cli.Context) error {
			return action(c, open)
		},
	}
}

func action(c *cli.Context, open openFunc) (err error) {
	var args []string
	if path := c.String(flagConfig); path != "" {
		args = append(args, "--config-file="+path)
	}
	cfg, err := config.LoadTool(args)
	if err != nil {
		return err
	}
	if c.Bool(flagDebug) {
		cfg.Log.Debug = true
	}
	logger, closeLog := logging.New("spitool", cfg.Log)
	defer func() { _ = closeLog() }()

	link, closer, err := open(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := closer.Close(); cerr != nil && err == nil {
			err = errors.Wrap(cerr, "close")
		}
	}()

	return runCommands(c, link, c.App.Writer)
}

// runCommands prints the board identity and then carries out the given
// flags in a fixed order, bootloader last.
func runCommands(c *cli.Context, link mcu, w io.Writer) error {
	version, err := link.Version()
	if err != nil {
		return errors.Wrap(err, "version")
	}
	can, err := link.CANHardware()
	if err != nil {
		return errors.Wrap(err, "can hardware")
	}
	fmt.Fprintln(w, "Chart Plotter Hat")
	fmt.Fprintf(w, " version: %s\n", version)
	fmt.Fprintf(w, " can_hardware: %t\n", can)

	if c.Bool(flagEEPROM) {
		fmt.Fprintln(w, "Toggling the eeprom write line..")
		if err := link.ToggleEEPROM(); err != nil {
			return errors.Wrap(err, "toggle eeprom")
		}
	}

	if c.IsSet(flagSet) {
		ch, err := channel(c.Uint(flagSet))
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "Setting adc channel %d on\n", ch)
		if err := link.SyncChannels(); err != nil {
			return errors.Wrap(err, "read enabled channels")
		}
		if err := link.SetChannel(ch); err != nil {
			return errors.Wrap(err, "set channel")
		}
	}

	if c.IsSet(flagGet) {
		ch, err := channel(c.Uint(flagGet))
		if err != nil {
			return err
		}
		on, err := link.ChannelEnabled(ch)
		if err != nil {
			return errors.Wrap(err, "get channel")
		}
		fmt.Fprintf(w, "Channel %d is operational %t\n", ch, on)
	}

	if c.IsSet(flagRead) {
		ch, err := channel(c.Uint(flagRead))
		if err != nil {
			return err
		}
		v, err := link.Reading(ch)
		if err != nil {
			return errors.Wrap(err, "read channel")
		}
		fmt.Fprintf(w, "Channel %d reading is %d\n", ch, v)
	}

	if c.Bool(flagBootloader) {
		fmt.Fprintln(w, "Entering bootloader..")
		if err := link.EnterBootloader(); err != nil {
			return errors.Wrap(err, "enter bootloader")
		}
	}
	return nil
}

// channel checks a flag value before anything is sent for it.
func channel(n uint) (uint8, error) {
	if n > cph.MaxChannel {
		return 0, errors.Wrapf(cph.ErrInvalidChannel, "channel %d (max %d)", n, cph.MaxChannel)
	}
	return uint8(n), nil
}
