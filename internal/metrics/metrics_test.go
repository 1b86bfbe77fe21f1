package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorders(t *testing.T) {
	m, err := New()
	require.NoError(t, err)

	m.ObserveUpstream(ServiceStore, "list plants", 200, 30*time.Millisecond)
	m.ObserveUpstream(ServiceStore, "list plants", 0, time.Second)
	m.SpeciesCache(true)
	m.SpeciesCache(false)
	m.SpeciesCache(false)
	m.SetPlantsTracked(4)
	m.ReminderCheck(2)
	m.ReminderCheck(1)
	m.InboxFile(InboxUploaded)
	m.ObserveHTTP("GET", "/api/plants", 200, time.Millisecond)
	m.SSEConnected(1)

	assert.InDelta(t, 1, testutil.ToFloat64(m.upstreamRequestsTotal.WithLabelValues(ServiceStore, "list plants", "200")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.upstreamRequestsTotal.WithLabelValues(ServiceStore, "list plants", "error")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.speciesCacheTotal.WithLabelValues("miss")), 0)
	assert.InDelta(t, 4, testutil.ToFloat64(m.plantsTracked), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.plantsOverdue), 0)
	assert.InDelta(t, 3, testutil.ToFloat64(m.remindersEmittedTotal), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.reminderChecksTotal), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.inboxFilesTotal.WithLabelValues(InboxUploaded)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.sseActiveConnections), 0)
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveUpstream(ServiceSpecies, "search", 500, time.Second)
		m.SpeciesCache(true)
		m.SetPlantsTracked(1)
		m.ReminderCheck(1)
		m.InboxFile(InboxFailed)
		m.ObserveHTTP("GET", "/", 200, time.Second)
		m.SSEConnected(-1)
	})
}

func TestHandlerExposesMetrics(t *testing.T) {
	m, err := New()
	require.NoError(t, err)
	m.ReminderCheck(3)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "plantcare_reminders_emitted_total 3"))
	assert.Contains(t, string(body), "go_goroutines")
}
