// Command shutdown-monitor tells the Chart Plotter Hat the host is up and
// powers the host off once the hat holds its shutdown line high.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	cph "chartplotterhat"
	"chartplotterhat/internal/board"
	"chartplotterhat/internal/config"
	"chartplotterhat/internal/logging"
	"chartplotterhat/internal/monitor"
	"chartplotterhat/internal/status"
	"chartplotterhat/internal/sysctl"
)

// Entry point for the shutdown monitor
func main() {
	cfg, err := config.LoadMonitor(os.Args[1:])
	if err != nil {
		golog.Global().Fatalw("failed to load configuration", "error", err)
	}
	logger, closeLog := logging.New("shutdown_monitor", cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	opener, err := board.NewOpener(cfg.GPIO, board.MonitorConsumer)
	if err == nil {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		err = run(ctx, cfg, logger, opener, reg)
	}
	stop()
	if err != nil {
		logger.Errorw("shutdown monitor exited", "error", err)
	}
	_ = closeLog()
	if err != nil {
		os.Exit(1)
	}
}

// run opens the lines through opener and watches them until a shutdown is
// carried out, a line fails or ctx is done.  Monitor metrics are added to
// reg, which the status server also serves.
func run(ctx context.Context, cfg config.Monitor, logger golog.Logger, opener board.Opener, reg *prometheus.Registry) (err error) {
	power, lines, err := board.OpenPower(opener, cfg, cph.NewDelay(clock.New()))
	if err != nil {
		return errors.Wrap(err, "open gpio")
	}
	defer func() {
		if cerr := lines.Close(); cerr != nil && err == nil {
			err = errors.Wrap(cerr, "close gpio")
		}
	}()

	shutdowner := sysctl.New(cfg.PkillUser, cfg.PkillApp, cfg.PkillDelay, logger)
	mon := monitor.New(power, shutdowner, cfg.PollInterval, logger, monitor.WithMetrics(monitor.NewMetrics(reg)))

	if cfg.Status.Addr != "" {
		srv := status.NewServer(cfg.Status, mon, reg, logger)
		srvCtx, cancel := context.WithCancel(ctx)
		done := make(chan struct{})
		go func() {
			defer close(done)
			if err := srv.Serve(srvCtx); err != nil {
				logger.Errorw("status server failed", "error", err)
			}
		}()
		defer func() {
			cancel()
			<-done
		}()
	}

	return mon.Run(ctx)
}
