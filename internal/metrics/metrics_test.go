package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordCycle(t *testing.T) {
	r := NewRegistry()

	r.RecordCycle("completed", 12*time.Second)
	r.RecordCycle("completed", 8*time.Second)
	r.RecordCycle("timed_out", 120*time.Second)

	assert.Equal(t, float64(2), testutil.ToFloat64(r.CyclesTotal.WithLabelValues("completed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.CyclesTotal.WithLabelValues("timed_out")))
}

func TestAddItems_IgnoresZero(t *testing.T) {
	r := NewRegistry()

	r.AddItems("acquired", 10)
	r.AddItems("acquired", 0)
	r.AddItems("alerted", 2)

	assert.Equal(t, float64(10), testutil.ToFloat64(r.ItemsTotal.WithLabelValues("acquired")))
	assert.Equal(t, float64(2), testutil.ToFloat64(r.ItemsTotal.WithLabelValues("alerted")))
}

func TestSourceFailuresAndDowngrades(t *testing.T) {
	r := NewRegistry()

	r.RecordSourceFailure("feed:news")
	r.RecordSourceFailure("feed:news")
	r.RecordDowngrade("reduced")

	assert.Equal(t, float64(2), testutil.ToFloat64(r.SourceFailures.WithLabelValues("feed:news")))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.StrategyDowngrades.WithLabelValues("reduced")))
}

func TestHandler_ExposesRegisteredMetrics(t *testing.T) {
	r := NewRegistry()
	r.RecordCycle("completed", time.Second)
	r.DedupHitsTotal.Inc()

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "launchradar_cycles_total"))
	assert.True(t, strings.Contains(body, "launchradar_dedup_hits_total 1"))
}

func TestPhaseTimer(t *testing.T) {
	r := NewRegistry()

	timer := r.StartPhase("acquiring")
	timer.Stop()

	count := testutil.CollectAndCount(r.PhaseDuration, "launchradar_phase_duration_seconds")
	assert.Equal(t, 1, count)
}
