package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"steemauth/internal/domain"
)

const namespace = "steemauth"

// Outcome labels.
const (
	OutcomeSuccess  = "success"
	OutcomePending  = "pending"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// Metrics groups the collectors of the auth and dispatch services.
type Metrics struct {
	sends        *prometheus.CounterVec
	logins       *prometheus.CounterVec
	sendDuration *prometheus.HistogramVec
	pending      prometheus.Gauge
}

// New creates the collectors and registers them with reg when it is not nil.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	sendsOpts := prometheus.CounterOpts{
		Name:      "sends_total",
		Namespace: namespace,
		Help:      "number of transaction sends by signing method and outcome",
	}
	loginsOpts := prometheus.CounterOpts{
		Name:      "logins_total",
		Namespace: namespace,
		Help:      "number of login attempts by auth method and outcome",
	}
	durationOpts := prometheus.HistogramOpts{
		Name:      "send_duration_seconds",
		Namespace: namespace,
		Help:      "time from send to result, including user prompts",
		Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 15, 60, 300},
	}
	pendingOpts := prometheus.GaugeOpts{
		Name:      "pending_transactions",
		Namespace: namespace,
		Help:      "number of transactions awaiting a result",
	}

	m := Metrics{
		sends:        factory.NewCounterVec(sendsOpts, []string{"method", "outcome"}),
		logins:       factory.NewCounterVec(loginsOpts, []string{"method", "outcome"}),
		sendDuration: factory.NewHistogramVec(durationOpts, []string{"method"}),
		pending:      factory.NewGauge(pendingOpts),
	}

	return &m
}

// Login counts one login attempt.
func (m *Metrics) Login(method domain.AuthMethod, err error) {
	m.logins.WithLabelValues(method.String(), Outcome(err)).Inc()
}

// Send counts one send and observes how long it took.
func (m *Metrics) Send(method string, err error, took time.Duration) {
	m.sends.WithLabelValues(method, Outcome(err)).Inc()
	m.sendDuration.WithLabelValues(method).Observe(took.Seconds())
}

// SetPending sets the number of unfinished transactions.
func (m *Metrics) SetPending(n int) {
	m.pending.Set(float64(n))
}

// Outcome maps an error to its outcome label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, domain.ErrPendingExternalSignature):
		return OutcomePending
	case errors.Is(err, domain.ErrUserRejected), errors.Is(err, domain.ErrExtensionSigningRejected):
		return OutcomeRejected
	default:
		return OutcomeError
	}
}
