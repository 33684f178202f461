package metrics_test

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bdskit/ontomake/internal/dag"
	"github.com/bdskit/ontomake/internal/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *metrics.Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	return string(body)
}

func TestObserveRun_CountsOutcomes(t *testing.T) {
	t.Parallel()

	// Arrange
	m := metrics.New()

	// Act
	m.ObserveRun(dag.Summary{Built: 3, Fresh: 2, Failed: 1}, 250*time.Millisecond, errors.New("boom"))
	m.ObserveRun(dag.Summary{Built: 1}, 50*time.Millisecond, nil)

	// Assert
	body := scrape(t, m)
	assert.Contains(t, body, `ontomake_build_runs_total{result="failure"} 1`)
	assert.Contains(t, body, `ontomake_build_runs_total{result="success"} 1`)
	assert.Contains(t, body, `ontomake_targets_total{state="built"} 4`)
	assert.Contains(t, body, `ontomake_targets_total{state="failed"} 1`)
	assert.Contains(t, body, "ontomake_build_duration_seconds_count 2")
}

func TestObserveWatchTrigger_Increments(t *testing.T) {
	t.Parallel()

	// Arrange
	m := metrics.New()

	// Act
	m.ObserveWatchTrigger()
	m.ObserveWatchTrigger()

	// Assert
	assert.Contains(t, scrape(t, m), "ontomake_watch_triggers_total 2")
}

func TestNew_RegistriesAreIsolated(t *testing.T) {
	t.Parallel()

	// Arrange
	a := metrics.New()
	b := metrics.New()

	// Act
	a.ObserveWatchTrigger()

	// Assert
	assert.Contains(t, scrape(t, a), "ontomake_watch_triggers_total 1")
	assert.Contains(t, scrape(t, b), "ontomake_watch_triggers_total 0")
}
