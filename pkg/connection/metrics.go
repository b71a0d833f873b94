package connection

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/xconn/xconn-go/pkg/account"
)

// Metrics holds attempt metrics. A nil *Metrics records nothing.
type Metrics struct {
	attempts *prometheus.CounterVec
	disabled *prometheus.CounterVec
	inFlight prometheus.Gauge
}

// NewMetrics creates attempt metrics and registers them with reg, if
// reg is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "xconn",
			Name:      "attempts_total",
			Help:      "Connection attempts by result.",
		}, []string{"result"}),
		disabled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "xconn",
			Name:      "account_disabled_total",
			Help:      "Accounts disabled after a failed attempt, by error kind.",
		}, []string{"kind"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "xconn",
			Name:      "attempts_running",
			Help:      "Connection attempts currently running.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.attempts, m.disabled, m.inFlight)
	}
	return m
}

func (m *Metrics) observeAttempt(r Result) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(r.String()).Inc()
}

func (m *Metrics) observeDisabled(kind account.ErrorKind) {
	if m == nil {
		return
	}
	m.disabled.WithLabelValues(kind.String()).Inc()
}

func (m *Metrics) running(delta float64) {
	if m == nil {
		return
	}
	m.inFlight.Add(delta)
}
