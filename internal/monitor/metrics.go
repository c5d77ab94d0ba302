package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts shutdown loop activity.
type Metrics struct {
	polls     prometheus.Counter
	confirmed prometheus.Counter
	pinErrors prometheus.Counter
	running   prometheus.Gauge
}

// NewMetrics creates the loop metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		polls: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cph_shutdown_polls_total",
			Help: "Shutdown request line polls.",
		}),
		confirmed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cph_shutdown_confirmed_total",
			Help: "Shutdown requests that survived debouncing.",
		}),
		pinErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cph_pin_errors_total",
			Help: "Failed reads or writes on the power lines.",
		}),
		running: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cph_host_running",
			Help: "1 once the running line has been asserted.",
		}),
	}
	reg.MustRegister(m.polls, m.confirmed, m.pinErrors, m.running)
	return m
}
