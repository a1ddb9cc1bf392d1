package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Metrics tracks registrations and verification code jobs.
type Metrics struct {
	Registrations       *prometheus.CounterVec
	RegisterDuration    prometheus.Histogram
	VerificationJobs    *prometheus.CounterVec
	EventPublishFailure prometheus.Counter
}

// New registers every collector on reg. Pass a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Registrations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "healthcare_patient_registrations_total",
			Help: "Patient registration attempts by outcome",
		}, []string{"outcome"}),
		RegisterDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "healthcare_patient_registration_duration_seconds",
			Help:    "Duration of the registration transaction",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
		VerificationJobs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "healthcare_verification_code_jobs_total",
			Help: "Verification code job executions by outcome",
		}, []string{"outcome"}),
		EventPublishFailure: f.NewCounter(prometheus.CounterOpts{
			Name: "healthcare_event_publish_failures_total",
			Help: "Domain events that could not be handed to the bus",
		}),
	}
}

func (m *Metrics) IncRegistration(outcome string) {
	m.Registrations.WithLabelValues(outcome).Inc()
}

// ObserveRegistration records the duration of a registration. Call with time.Now() at the start.
func (m *Metrics) ObserveRegistration(start time.Time) {
	m.RegisterDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncVerificationJob(outcome string) {
	m.VerificationJobs.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncPublishFailure() {
	m.EventPublishFailure.Inc()
}
