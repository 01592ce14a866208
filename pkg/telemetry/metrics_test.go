package telemetry

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Runs(t *testing.T) {
	m := NewMetrics()

	m.ObserveRun("node", "GIF", nil)
	m.ObserveRun("node", "GIF", nil)
	m.ObserveRun("edge", "IF", errors.New("boom"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.runsTotal.WithLabelValues("node", "GIF", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runsTotal.WithLabelValues("edge", "IF", "error")))
}

func TestMetrics_Jobs(t *testing.T) {
	m := NewMetrics()

	m.JobStarted()
	m.JobStarted()
	assert.Equal(t, 2.0, testutil.ToFloat64(m.jobsInFlight))

	m.JobFinished("completed")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.jobsInFlight))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.jobsTotal.WithLabelValues("completed")))
}

func TestMetrics_Handler(t *testing.T) {
	m := NewMetrics()
	m.SetF1("unlearned", 0.75)
	m.ObservePhase("train", 20*time.Millisecond)
	m.ObserveRequest("node", 3, 12)
	m.ObserveSolver("iterative", 100)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `gif_micro_f1{stage="unlearned"} 0.75`)
	assert.Contains(t, string(body), "gif_phase_duration_seconds_count")
	assert.Contains(t, string(body), "gif_request_nodes_bucket")
	assert.Contains(t, string(body), "gif_solver_iterations_sum")
}
