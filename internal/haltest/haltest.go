// Package haltest provides recording fakes for the hardware capabilities
// used by the chartplotterhat drivers.  Fakes sharing a Trace record their
// calls in one ordered list, so tests can check framing and timing without
// any hardware or real sleeping.
package haltest

import (
	"sync"
)

// Op identifies a recorded call.
type Op string

// Recorded operations.
const (
	OpRead     Op = "read"
	OpWrite    Op = "write"
	OpTransfer Op = "transfer"
	OpDelayMs  Op = "delay_ms"
	OpDelayUs  Op = "delay_us"
)

// Event is one recorded call.
type Event struct {
	Op   Op
	Name string
	High bool
	// Tx is a copy of the bytes handed to Transfer.
	Tx  []byte
	Dur uint32
}

// Trace collects events from several fakes in call order.
type Trace struct {
	mu     sync.Mutex
	events []Event
}

func (t *Trace) add(e Event) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, e)
}

// Events returns a copy of everything recorded so far.
func (t *Trace) Events() []Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Event(nil), t.events...)
}

// Filter returns the recorded events with the given op.
func (t *Trace) Filter(op Op) []Event {
	var out []Event
	for _, e := range t.Events() {
		if e.Op == op {
			out = append(out, e)
		}
	}
	return out
}

// Input is a fake DigitalInput returning Levels in order.  Once Levels is
// exhausted the last level repeats; an empty Levels reads low.
type Input struct {
	Name   string
	Trace  *Trace
	Levels []bool
	// Errs maps a 0-based read index to the error that read returns.
	Errs map[int]error

	reads int
}

// Read implements DigitalInput.
func (in *Input) Read() (bool, error) {
	n := in.reads
	in.reads++
	in.Trace.add(Event{Op: OpRead, Name: in.Name})
	if err, ok := in.Errs[n]; ok {
		return false, err
	}
	switch {
	case len(in.Levels) == 0:
		return false, nil
	case n < len(in.Levels):
		return in.Levels[n], nil
	default:
		return in.Levels[len(in.Levels)-1], nil
	}
}

// Reads returns the number of Read calls.
func (in *Input) Reads() int {
	return in.reads
}

// Output is a fake DigitalOutput remembering its level.
type Output struct {
	Name  string
	Trace *Trace
	Level bool
	// Errs maps a 0-based write index to the error that write returns.  A
	// failed write leaves Level unchanged.
	Errs map[int]error

	writes []bool
}

// Write implements DigitalOutput.
func (out *Output) Write(high bool) error {
	n := len(out.writes)
	out.writes = append(out.writes, high)
	out.Trace.add(Event{Op: OpWrite, Name: out.Name, High: high})
	if err, ok := out.Errs[n]; ok {
		return err
	}
	out.Level = high
	return nil
}

// Writes returns every level passed to Write, failed writes included.
func (out *Output) Writes() []bool {
	return append([]bool(nil), out.writes...)
}

// Bus is a fake SPI.  Each transfer overwrites the buffer with the next
// bytes from Rx; missing bytes read as zero.
type Bus struct {
	Trace *Trace
	Rx    []byte
	// Errs maps a 0-based transfer index to the error that transfer returns.
	Errs map[int]error

	transfers int
	rxPos     int
	sent      []byte
}

// Transfer implements SPI.
func (b *Bus) Transfer(buf []byte) error {
	n := b.transfers
	b.transfers++
	b.Trace.add(Event{Op: OpTransfer, Tx: append([]byte(nil), buf...)})
	if err, ok := b.Errs[n]; ok {
		return err
	}
	b.sent = append(b.sent, buf...)
	for i := range buf {
		if b.rxPos < len(b.Rx) {
			buf[i] = b.Rx[b.rxPos]
		} else {
			buf[i] = 0
		}
		b.rxPos++
	}
	return nil
}

// Transfers returns the number of Transfer calls.
func (b *Bus) Transfers() int {
	return b.transfers
}

// Sent returns the bytes of every successful transfer.
func (b *Bus) Sent() []byte {
	return append([]byte(nil), b.sent...)
}

// Delay is a fake millisecond and microsecond delay that only records.
type Delay struct {
	Trace *Trace

	ms []uint32
	us []uint32
}

// DelayMs implements MillisecondDelay.
func (d *Delay) DelayMs(ms uint32) {
	d.ms = append(d.ms, ms)
	d.Trace.add(Event{Op: OpDelayMs, Dur: ms})
}

// DelayUs implements MicrosecondDelay.
func (d *Delay) DelayUs(us uint32) {
	d.us = append(d.us, us)
	d.Trace.add(Event{Op: OpDelayUs, Dur: us})
}

// Ms returns the requested millisecond delays.
func (d *Delay) Ms() []uint32 {
	return append([]uint32(nil), d.ms...)
}

// Us returns the requested microsecond delays.
func (d *Delay) Us() []uint32 {
	return append([]uint32(nil), d.us...)
}
