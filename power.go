package chartplotterhat

const (
	// shutdownRechecks is how many further reads must stay high before a
	// shutdown request is trusted.
	shutdownRechecks = 6
	// shutdownRecheckMs is the wait before each re-read.
	shutdownRecheckMs = 100
)

// Power tells the MCU the host is alive and watches the shutdown request
// line it drives.
type Power struct {
	shutdown DigitalInput
	running  DigitalOutput
	delay    MillisecondDelay
}

// NewPower returns a Power using already opened lines.  The caller keeps
// ownership of the lines and closes them.
func NewPower(shutdown DigitalInput, running DigitalOutput, delay MillisecondDelay) *Power {
	return &Power{
		shutdown: shutdown,
		running:  running,
		delay:    delay,
	}
}

// SetRunning drives the running line high, indicating the host is up.
// Calling it again is harmless.
func (p *Power) SetRunning() error {
	if err := p.running.Write(true); err != nil {
		return &PinError{Op: "set running", Err: err}
	}
	return nil
}

// ShutdownSignal reports whether the MCU is requesting a shutdown.  A low
// line returns false at once.  A high line is re-read every 100ms and must
// stay high for six more reads before true is returned; the first low read
// returns false.
func (p *Power) ShutdownSignal() (bool, error) {
	high, err := p.shutdown.Read()
	if err != nil {
		return false, &PinError{Op: "read shutdown", Err: err}
	}
	if !high {
		return false, nil
	}
	for i := 0; i < shutdownRechecks; i++ {
		p.delay.DelayMs(shutdownRecheckMs)
		high, err := p.shutdown.Read()
		if err != nil {
			return false, &PinError{Op: "read shutdown", Err: err}
		}
		if !high {
			return false, nil
		}
	}
	return true, nil
}
