// Package monitor runs the shutdown watch loop: report the host as running
// once, then poll the debounced shutdown request on a fixed interval and
// hand over to a Shutdowner when it is confirmed.
package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"
	"github.com/pkg/errors"
)

// Power is the part of chartplotterhat.Power the loop needs.
type Power interface {
	SetRunning() error
	ShutdownSignal() (bool, error)
}

// Shutdowner takes the host down.
type Shutdowner interface {
	Shutdown(ctx context.Context) error
}

// State is the loop state reported by Snapshot.
type State string

// Loop states.
const (
	StateStarting  State = "starting"
	StateIdle      State = "idle"
	StateConfirmed State = "confirmed"
	StateStopped   State = "stopped"
)

// Snapshot is a point in time view of the loop.
type Snapshot struct {
	Running  bool      `json:"running"`
	State    State     `json:"state"`
	Polls    uint64    `json:"polls"`
	LastPoll time.Time `json:"last_poll"`
}

// Monitor watches the shutdown request line.  Run must be called at most
// once; Snapshot may be called from any goroutine.
type Monitor struct {
	power      Power
	shutdowner Shutdowner
	interval   time.Duration
	clock      clock.Clock
	metrics    *Metrics
	logger     golog.Logger

	mu   sync.Mutex
	snap Snapshot
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithClock replaces the wall clock, for tests.
func WithClock(c clock.Clock) Option {
	return func(m *Monitor) {
		m.clock = c
	}
}

// WithMetrics records loop activity in metrics.
func WithMetrics(metrics *Metrics) Option {
	return func(m *Monitor) {
		m.metrics = metrics
	}
}

// New returns a Monitor polling power every interval.
func New(power Power, shutdowner Shutdowner, interval time.Duration, logger golog.Logger, opts ...Option) *Monitor {
	m := &Monitor{
		power:      power,
		shutdowner: shutdowner,
		interval:   interval,
		clock:      clock.New(),
		logger:     logger,
		snap:       Snapshot{State: StateStarting},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Run reports the host as running and polls until a shutdown is confirmed,
// a pin fails or ctx is done.  A confirmed shutdown is carried out even if
// ctx is cancelled meanwhile, and its result is returned.  Cancelling ctx
// while idle returns nil.
func (m *Monitor) Run(ctx context.Context) error {
	if err := m.power.SetRunning(); err != nil {
		m.pinError()
		return errors.Wrap(err, "set running")
	}
	m.update(func(s *Snapshot) {
		s.Running = true
		s.State = StateIdle
	})
	if m.metrics != nil {
		m.metrics.running.Set(1)
	}
	m.logger.Infow("host running, watching for shutdown signal", "interval", m.interval)

	ticker := m.clock.Ticker(m.interval)
	defer ticker.Stop()
	for {
		confirmed, err := m.power.ShutdownSignal()
		now := m.clock.Now()
		m.update(func(s *Snapshot) {
			s.Polls++
			s.LastPoll = now
		})
		if m.metrics != nil {
			m.metrics.polls.Inc()
		}
		if err != nil {
			m.pinError()
			return errors.Wrap(err, "shutdown signal")
		}
		if confirmed {
			m.update(func(s *Snapshot) { s.State = StateConfirmed })
			if m.metrics != nil {
				m.metrics.confirmed.Inc()
			}
			m.logger.Info("Detected shutdown signal, powering off..")
			return m.shutdowner.Shutdown(context.WithoutCancel(ctx))
		}

		select {
		case <-ctx.Done():
			m.update(func(s *Snapshot) { s.State = StateStopped })
			m.logger.Info("shutdown monitor stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// Snapshot returns the current loop state.
func (m *Monitor) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap
}

func (m *Monitor) update(fn func(*Snapshot)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(&m.snap)
}

func (m *Monitor) pinError() {
	if m.metrics != nil {
		m.metrics.pinErrors.Inc()
	}
}
