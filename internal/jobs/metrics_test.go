package jobmetrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackerRecordsOutcome(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	assert.NoError(t, m.Track("room_request:decision").End(nil))
	boom := errors.New("boom")
	assert.ErrorIs(t, m.Track("room_request:decision").End(boom), boom)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("room_request:decision", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("room_request:decision", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("room_request:decision")))
}

func TestCountMailIgnoresNilAndBlank(t *testing.T) {
	var nilMetrics *Metrics
	nilMetrics.CountMail("sent")
	assert.NoError(t, nilMetrics.Track("x").End(nil))

	m := NewMetrics(prometheus.NewRegistry())
	m.CountMail("")
	m.CountMail("sent")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.mails.WithLabelValues("sent")))
}

func TestHandlerExposesMailCounter(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)
	m.CountMail("sent")

	rr := httptest.NewRecorder()
	Handler(registry).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `campusdesk_decision_mails_total{outcome="sent"} 1`)
}
