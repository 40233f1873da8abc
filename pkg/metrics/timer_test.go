package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTimer(t *testing.T) {
	timer := NewTimer()
	require.NotNil(t, timer)
	assert.False(t, timer.start.IsZero())
	assert.Less(t, time.Since(timer.start), time.Second)
}

func TestTimerDuration(t *testing.T) {
	timer := NewTimer()
	time.Sleep(20 * time.Millisecond)

	first := timer.Duration()
	assert.GreaterOrEqual(t, first, 20*time.Millisecond)

	time.Sleep(5 * time.Millisecond)
	assert.Greater(t, timer.Duration(), first)
}

func TestTimerObserveDuration(t *testing.T) {
	histogram := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name: "test_duration_seconds",
		Help: "Test duration histogram",
	})

	reg := prometheus.NewRegistry()
	reg.MustRegister(histogram)

	NewTimer().ObserveDuration(histogram)

	mfs, err := reg.Gather()
	require.NoError(t, err)
	require.Len(t, mfs, 1)
	assert.Equal(t, uint64(1), mfs[0].GetMetric()[0].GetHistogram().GetSampleCount())
}

func TestTimerObserveDurationVec(t *testing.T) {
	vec := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name: "test_duration_vec_seconds",
		Help: "Test duration histogram vec",
	}, []string{"method"})

	reg := prometheus.NewRegistry()
	reg.MustRegister(vec)

	timer := NewTimer()
	timer.ObserveDurationVec(vec, "QueryNodes")
	timer.ObserveDurationVec(vec, "SubmitJob")

	mfs, err := reg.Gather()
	require.NoError(t, err)
	require.Len(t, mfs, 1)
	assert.Len(t, mfs[0].GetMetric(), 2)
}
