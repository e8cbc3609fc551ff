package monitoring

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandler(t *testing.T) {
	MessagesSent.WithLabelValues("doubling", "probe").Inc()
	Elections.WithLabelValues("unidirectional", "elected").Inc()
	ElectionDuration.WithLabelValues("doubling").Observe(0.01)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, `ringelect_messages_sent_total{algorithm="doubling",tag="probe"}`)
	assert.Contains(t, body, `ringelect_elections_total{algorithm="unidirectional",outcome="elected"}`)
	assert.Contains(t, body, `ringelect_election_duration_seconds_count{algorithm="doubling"}`)
	assert.Contains(t, body, "# HELP ringelect_election_duration_seconds Wall time of successful elections")

	rec = httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/other", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
