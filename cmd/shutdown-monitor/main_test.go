package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/edaniels/golog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chartplotterhat/internal/board"
	"chartplotterhat/internal/config"
	"chartplotterhat/internal/haltest"
)

type fakeLine struct {
	haltest.Input
	haltest.Output
	closed bool
}

func (l *fakeLine) Close() error {
	l.closed = true
	return nil
}

type fakeOpener struct {
	lines map[int]*fakeLine
	err   error
}

func newFakeOpener() *fakeOpener {
	return &fakeOpener{lines: map[int]*fakeLine{}}
}

func (o *fakeOpener) Input(pin int) (board.Line, error) {
	l := &fakeLine{}
	o.lines[pin] = l
	return l, nil
}

func (o *fakeOpener) Output(pin int, initial bool) (board.Line, error) {
	if o.err != nil {
		return nil, o.err
	}
	l := &fakeLine{}
	l.Level = initial
	o.lines[pin] = l
	return l, nil
}

func (o *fakeOpener) SPI(string, int64) (board.Bus, error) {
	return nil, errors.New("no spi on the monitor")
}

func testConfig() config.Monitor {
	return config.Monitor{
		ShutdownPin:  22,
		RunningPin:   23,
		PollInterval: time.Second,
		PkillUser:    "pi",
		PkillApp:     "opencpn",
		PkillDelay:   time.Second,
	}
}

func cancelled() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ctx
}

func TestRunStopsOnCancel(t *testing.T) {
	o := newFakeOpener()
	reg := prometheus.NewRegistry()

	require.NoError(t, run(cancelled(), testConfig(), golog.NewTestLogger(t), o, reg))

	running, shutdown := o.lines[23], o.lines[22]
	require.NotNil(t, running)
	require.NotNil(t, shutdown)
	assert.Equal(t, []bool{true}, running.Writes())
	assert.Equal(t, 1, shutdown.Reads())
	assert.True(t, running.closed)
	assert.True(t, shutdown.closed)

	n, err := testutil.GatherAndCount(reg, "cph_shutdown_polls_total", "cph_host_running")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestRunWithStatusServer(t *testing.T) {
	o := newFakeOpener()
	cfg := testConfig()
	cfg.Status.Addr = "127.0.0.1:0"

	require.NoError(t, run(cancelled(), cfg, golog.NewTestLogger(t), o, prometheus.NewRegistry()))
	assert.True(t, o.lines[23].closed)
	assert.True(t, o.lines[22].closed)
}

func TestRunShutdownLineFailure(t *testing.T) {
	o := newFakeOpener()
	readErr := errors.New("line read failed")
	errOpener := &failingInputOpener{fakeOpener: o, err: readErr}

	err := run(context.Background(), testConfig(), golog.NewTestLogger(t), errOpener, prometheus.NewRegistry())
	assert.ErrorIs(t, err, readErr)
	assert.True(t, o.lines[23].closed)
	assert.True(t, o.lines[22].closed)
}

func TestRunOpenFailure(t *testing.T) {
	o := newFakeOpener()
	o.err = errors.New("device or resource busy")

	err := run(context.Background(), testConfig(), golog.NewTestLogger(t), o, prometheus.NewRegistry())
	assert.ErrorIs(t, err, o.err)
	assert.Contains(t, err.Error(), "open gpio")
	assert.Empty(t, o.lines)
}

// failingInputOpener hands out a shutdown line whose first read fails.
type failingInputOpener struct {
	*fakeOpener
	err error
}

func (o *failingInputOpener) Input(pin int) (board.Line, error) {
	l, err := o.fakeOpener.Input(pin)
	if err != nil {
		return nil, err
	}
	o.lines[pin].Input.Errs = map[int]error{0: o.err}
	return l, nil
}
