package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.IncRegistration(OutcomeSuccess)
	m.IncRegistration(OutcomeSuccess)
	m.IncRegistration(OutcomeFailure)
	m.IncVerificationJob(OutcomeFailure)
	m.IncPublishFailure()
	m.ObserveRegistration(time.Now())

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Registrations.WithLabelValues(OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Registrations.WithLabelValues(OutcomeFailure)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.VerificationJobs.WithLabelValues(OutcomeFailure)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventPublishFailure))
}

func TestNew_IndependentRegistries(t *testing.T) {
	require.NotPanics(t, func() {
		New(prometheus.NewRegistry())
		New(prometheus.NewRegistry())
	})
}
