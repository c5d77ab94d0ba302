// Package sysctl takes the host down once the MCU has asked for it: the
// chart plotter application is stopped, given time to exit, and the host is
// powered off.
package sysctl

import (
	"context"
	"os/exec"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"
	"github.com/pkg/errors"
)

// Default command paths.
const (
	PkillPath    = "/usr/bin/pkill"
	SudoPath     = "/usr/bin/sudo"
	PoweroffPath = "/sbin/poweroff"
)

// Runner runs an external command to completion and returns its combined
// output.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run implements Runner.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Shutdowner stops the user's applications and powers off the host.
type Shutdowner struct {
	// User owns the applications to stop.
	User string
	// App is the process name matched by pkill.
	App string
	// Grace is how long the application gets to quit before power off.
	Grace time.Duration

	Runner Runner
	Clock  clock.Clock
	Logger golog.Logger
}

// New returns a Shutdowner using os/exec and the wall clock.
func New(user, app string, grace time.Duration, logger golog.Logger) *Shutdowner {
	return &Shutdowner{
		User:   user,
		App:    app,
		Grace:  grace,
		Runner: ExecRunner{},
		Clock:  clock.New(),
		Logger: logger,
	}
}

// Shutdown stops App, sleeps for Grace and powers off.  A failure to stop
// the application is logged and does not prevent the power off; a failure
// to power off is returned.
func (s *Shutdowner) Shutdown(ctx context.Context) error {
	s.StopApps(ctx)
	// sleep after the pkill to let the application quit gracefully
	s.Clock.Sleep(s.Grace)
	return s.PowerOff(ctx)
}

// StopApps sends SIGTERM to every App process owned by User.
func (s *Shutdowner) StopApps(ctx context.Context) {
	out, err := s.Runner.Run(ctx, PkillPath, "-u", s.User, s.App)
	if err != nil {
		// pkill exits 1 when nothing matched, which is not worth more than
		// a warning either way.
		s.Logger.Warnw("pkill failed", "user", s.User, "app", s.App,
			"error", err, "output", strings.TrimSpace(string(out)))
		return
	}
	s.Logger.Infow("stopped applications", "user", s.User, "app", s.App)
}

// PowerOff asks the system to power off through sudo.
func (s *Shutdowner) PowerOff(ctx context.Context) error {
	s.Logger.Info("powering off")
	out, err := s.Runner.Run(ctx, SudoPath, PoweroffPath)
	if err != nil {
		return errors.Wrapf(err, "poweroff: %s", strings.TrimSpace(string(out)))
	}
	return nil
}
