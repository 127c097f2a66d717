package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCronJobMetricsNilSafe(t *testing.T) {
	var m *CronJobMetrics
	m.ObserveDuration("job", time.Second)
	m.IncSuccess("job")
	m.IncFailure("job")

	empty := NewCronJobMetrics(nil)
	empty.IncSuccess("job")
}

func TestCronJobMetricsCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)

	m.IncSuccess("reservation-sweeper")
	m.IncSuccess("reservation-sweeper")
	m.IncFailure("")

	if got := testutil.ToFloat64(m.success.WithLabelValues("reservation-sweeper")); got != 2 {
		t.Fatalf("expected 2 successes, got %f", got)
	}
	if got := testutil.ToFloat64(m.failure.WithLabelValues("unknown")); got != 1 {
		t.Fatalf("expected empty job name to normalize to unknown, got %f", got)
	}
}

func TestOrderMetricsCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewOrderMetrics(reg)

	m.IncPlaced()
	m.IncRejected("WEATHER_SUSPENDED")
	m.IncRejected("WEATHER_SUSPENDED")
	m.IncCASConflict()
	m.IncSwept()

	if got := testutil.ToFloat64(m.rejected.WithLabelValues("WEATHER_SUSPENDED")); got != 2 {
		t.Fatalf("expected 2 rejections, got %f", got)
	}
	if got := testutil.ToFloat64(m.placed); got != 1 {
		t.Fatalf("expected 1 placement, got %f", got)
	}
}
