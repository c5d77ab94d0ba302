package main

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/edaniels/golog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cph "chartplotterhat"
	"chartplotterhat/internal/config"
	"chartplotterhat/internal/haltest"
)

type nopCloser struct{ closed bool }

func (c *nopCloser) Close() error {
	c.closed = true
	return nil
}

type rig struct {
	bus    *haltest.Bus
	cs     *haltest.Output
	closer *nopCloser
	cfg    config.Tool
	out    bytes.Buffer
}

// newRig answers each exchange with the given response pairs, in order.
func newRig(responses ...[2]byte) *rig {
	r := &rig{
		bus:    &haltest.Bus{},
		cs:     &haltest.Output{Name: "cs", Level: true},
		closer: &nopCloser{},
	}
	for _, resp := range responses {
		r.bus.Rx = append(r.bus.Rx, 0xff, resp[0], resp[1])
	}
	return r
}

func (r *rig) run(args ...string) error {
	app := newApp(func(cfg config.Tool, _ golog.Logger) (mcu, io.Closer, error) {
		r.cfg = cfg
		return cph.NewLink(r.bus, r.cs, &haltest.Delay{}), r.closer, nil
	})
	app.Writer = &r.out
	return app.Run(append([]string{"spitool"}, args...))
}

// commands returns the command byte of every exchange sent.
func (r *rig) commands() []byte {
	var cmds []byte
	sent := r.bus.Sent()
	for i := 0; i+2 < len(sent); i += 3 {
		cmds = append(cmds, sent[i])
	}
	return cmds
}

func TestIdentity(t *testing.T) {
	r := newRig([2]byte{1, 4}, [2]byte{1, 0})

	require.NoError(t, r.run())
	assert.Equal(t, "Chart Plotter Hat\n version: 1.4\n can_hardware: true\n", r.out.String())
	assert.Equal(t, []byte{0x04, 0x06}, r.commands())
	assert.True(t, r.closer.closed)
	assert.True(t, r.cs.Level)
}

func TestSetChannelKeepsEnabledChannels(t *testing.T) {
	r := newRig([2]byte{1, 4}, [2]byte{0, 0}, [2]byte{0b00100, 0}, [2]byte{0, 0})

	require.NoError(t, r.run("-s", "0"))
	assert.Contains(t, r.out.String(), "Setting adc channel 0 on\n")
	assert.Equal(t, []byte{0x04, 0x06, 0x02, 0x01}, r.commands())
	// The set command carries the channels already on plus channel 0.
	assert.Equal(t, byte(0b00101), r.bus.Sent()[10])
}

func TestGetAndRead(t *testing.T) {
	r := newRig([2]byte{2, 0}, [2]byte{0, 0}, [2]byte{0b01000, 0}, [2]byte{0x01, 0x2c})

	require.NoError(t, r.run("--get", "3", "--read", "3"))
	assert.Equal(t, "Chart Plotter Hat\n version: 2.0\n can_hardware: false\n"+
		"Channel 3 is operational true\n"+
		"Channel 3 reading is 300\n", r.out.String())
	assert.Equal(t, []byte{0x04, 0x06, 0x02, 0x13}, r.commands())
}

func TestCommandOrder(t *testing.T) {
	r := newRig([2]byte{1, 0}, [2]byte{0, 0}, [2]byte{0, 0}, [2]byte{0, 0}, [2]byte{0, 0})

	require.NoError(t, r.run("--bootloader", "-r", "1", "-e"))
	assert.Equal(t, []byte{0x04, 0x06, 0x03, 0x11, 0x05}, r.commands())
	assert.Contains(t, r.out.String(), "Toggling the eeprom write line..\n")
	assert.Contains(t, r.out.String(), "Entering bootloader..\n")
}

func TestInvalidChannel(t *testing.T) {
	r := newRig([2]byte{1, 0}, [2]byte{0, 0})

	err := r.run("-s", "5")
	assert.ErrorIs(t, err, cph.ErrInvalidChannel)
	assert.Equal(t, []byte{0x04, 0x06}, r.commands())
	assert.NotContains(t, r.out.String(), "Setting")
	assert.True(t, r.closer.closed)
}

func TestTransferFailure(t *testing.T) {
	r := newRig()
	r.bus.Errs = map[int]error{0: errors.New("spi: input/output error")}

	err := r.run()
	var te *cph.TransferError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, 0, te.Index)
	assert.Empty(t, r.out.String())
}

func TestDebugFlag(t *testing.T) {
	r := newRig([2]byte{1, 0}, [2]byte{0, 0})

	require.NoError(t, r.run("--debug"))
	assert.True(t, r.cfg.Log.Debug)
	assert.Equal(t, int64(32000), r.cfg.SPISpeedHz)
}
