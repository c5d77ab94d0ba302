package chartplotterhat

import (
	"encoding/binary"
	"fmt"

	"go.uber.org/multierr"
)

// Command codes understood by the MCU firmware.
const (
	cmdSetChannel   = 0x01
	cmdGetChannels  = 0x02
	cmdToggleEEPROM = 0x03
	cmdVersion      = 0x04
	cmdBootloader   = 0x05
	cmdCANHardware  = 0x06
	cmdReadBase     = 0x10
)

const (
	// NumChannels is the number of ADC channels on the MCU.
	NumChannels = 5
	// MaxChannel is the highest addressable ADC channel.
	MaxChannel = NumChannels - 1

	channelMask = 1<<NumChannels - 1
)

// Exchange timing in microseconds, fixed by the MCU firmware.  csSetupUs is
// the wait between asserting chip-select and the first byte, frameDelaysUs
// the wait after each byte of the frame.
const csSetupUs = 50

var frameDelaysUs = [3]uint32{40, 20, 10}

// Version is the MCU firmware version.
type Version struct {
	Major uint8
	Minor uint8
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// Link talks to the MCU over SPI with a software driven chip-select.  It is
// not safe for concurrent use; one caller owns the bus and the chip-select
// line for the lifetime of the Link.
type Link struct {
	spi   SPI
	cs    DigitalOutput
	delay MicrosecondDelay

	// mask mirrors the ADC channels last enabled through this Link.
	mask uint8

	releaseOnError bool
}

// LinkOption configures a Link.
type LinkOption func(*Link)

// WithChipSelectRelease makes every failed exchange try to deassert
// chip-select before returning.  Any error from the deassert is appended to
// the original error.
func WithChipSelectRelease() LinkOption {
	return func(l *Link) {
		l.releaseOnError = true
	}
}

// NewLink returns a Link on already opened handles.  The chip-select line
// should be idle (high).  The local channel mask starts empty; see
// SyncChannels.
func NewLink(spi SPI, cs DigitalOutput, delay MicrosecondDelay, opts ...LinkOption) *Link {
	l := &Link{
		spi:   spi,
		cs:    cs,
		delay: delay,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// exchange runs one framed command.  Each byte goes out as its own transfer,
// with a pause after it for the MCU to service its SPI interrupt.  The byte
// clocked in with the command is meaningless, the following two are the
// response.
func (l *Link) exchange(addr, data byte) ([2]byte, error) {
	var resp [2]byte
	if err := l.cs.Write(false); err != nil {
		return resp, l.abort(&PinError{Op: "assert chip-select", Err: err})
	}
	l.delay.DelayUs(csSetupUs)

	frame := [3]byte{addr, data, 0}
	for i := range frame {
		if err := l.spi.Transfer(frame[i : i+1]); err != nil {
			return resp, l.abort(&TransferError{Index: i, Err: err})
		}
		l.delay.DelayUs(frameDelaysUs[i])
	}

	if err := l.cs.Write(true); err != nil {
		return resp, &PinError{Op: "release chip-select", Err: err}
	}
	resp[0], resp[1] = frame[1], frame[2]
	return resp, nil
}

func (l *Link) abort(err error) error {
	if !l.releaseOnError {
		return err
	}
	if relErr := l.cs.Write(true); relErr != nil {
		return multierr.Append(err, &PinError{Op: "release chip-select", Err: relErr})
	}
	return err
}

// Version returns the MCU firmware version.
func (l *Link) Version() (Version, error) {
	resp, err := l.exchange(cmdVersion, 0)
	if err != nil {
		return Version{}, err
	}
	return Version{Major: resp[0], Minor: resp[1]}, nil
}

// EnterBootloader makes the MCU restart into its bootloader.  The MCU stops
// answering commands until it is flashed or reset.
func (l *Link) EnterBootloader() error {
	_, err := l.exchange(cmdBootloader, 0)
	return err
}

// CANHardware reports whether the board carries a CAN transceiver.
func (l *Link) CANHardware() (bool, error) {
	resp, err := l.exchange(cmdCANHardware, 0)
	if err != nil {
		return false, err
	}
	return resp[0] == 1, nil
}

// ToggleEEPROM flips the EEPROM write-protect line.
func (l *Link) ToggleEEPROM() error {
	_, err := l.exchange(cmdToggleEEPROM, 0)
	return err
}

// SetChannel enables ADC channel ch.  The whole mask, including ch, is sent;
// channels are never disabled.
func (l *Link) SetChannel(ch uint8) error {
	if ch > MaxChannel {
		return invalidChannel(ch)
	}
	mask := l.mask | 1<<ch
	if _, err := l.exchange(cmdSetChannel, mask); err != nil {
		return err
	}
	l.mask = mask
	return nil
}

// Channels returns the locally held channel mask.
func (l *Link) Channels() uint8 {
	return l.mask
}

// EnabledChannels returns the channel mask as reported by the MCU.
func (l *Link) EnabledChannels() (uint8, error) {
	resp, err := l.exchange(cmdGetChannels, 0)
	if err != nil {
		return 0, err
	}
	return resp[0], nil
}

// SyncChannels replaces the local channel mask with the one reported by the
// MCU, so a following SetChannel keeps channels enabled by earlier runs.
func (l *Link) SyncChannels() error {
	mask, err := l.EnabledChannels()
	if err != nil {
		return err
	}
	l.mask = mask & channelMask
	return nil
}

// ChannelEnabled reports whether the MCU has ADC channel ch enabled.
func (l *Link) ChannelEnabled(ch uint8) (bool, error) {
	if ch > MaxChannel {
		return false, invalidChannel(ch)
	}
	mask, err := l.EnabledChannels()
	if err != nil {
		return false, err
	}
	return mask&(1<<ch) != 0, nil
}

// Reading returns the last conversion of ADC channel ch.
func (l *Link) Reading(ch uint8) (uint16, error) {
	if ch > MaxChannel {
		return 0, invalidChannel(ch)
	}
	resp, err := l.exchange(cmdReadBase+ch, 0)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(resp[:]), nil
}
