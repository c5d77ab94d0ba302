package chartplotterhat

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrInvalidChannel is returned, wrapped with the offending channel, when an
// ADC channel above MaxChannel is requested.  Nothing is sent to the MCU.
var ErrInvalidChannel = errors.New("invalid adc channel")

// PinError reports a failed read or write on a digital line.
type PinError struct {
	Op  string
	Err error
}

func (e *PinError) Error() string {
	return fmt.Sprintf("pin %s: %v", e.Op, e.Err)
}

func (e *PinError) Unwrap() error { return e.Err }

// TransferError reports a failed SPI transfer.  Index is the position of the
// failing byte within the command frame.  Unless the Link was built with
// WithChipSelectRelease, chip-select is still asserted when this is returned
// and the state of the link is unknown.
type TransferError struct {
	Index int
	Err   error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("spi transfer of frame byte %d: %v", e.Index, e.Err)
}

func (e *TransferError) Unwrap() error { return e.Err }

func invalidChannel(ch uint8) error {
	return errors.Wrapf(ErrInvalidChannel, "channel %d (max %d)", ch, MaxChannel)
}
