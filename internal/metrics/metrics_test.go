package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveRun(t *testing.T) {
	m := New()
	m.ObserveRun("ok", 120*time.Millisecond)
	m.ObserveRun("ok", 80*time.Millisecond)
	m.ObserveRun("failed", time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Runs.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Runs.WithLabelValues("failed")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveRun("ok", time.Second)
	m.Query("http", "feature")
}

func TestHandler(t *testing.T) {
	m := New()
	m.Query("http", "feature")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `archgraph_queries_total{record="feature",surface="http"} 1`), body)
}
