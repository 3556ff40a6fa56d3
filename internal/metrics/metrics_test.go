package metrics_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"StudentPortal/internal/metrics"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(metrics.Logins.WithLabelValues("rejected"))
	metrics.Logins.WithLabelValues("rejected").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.Logins.WithLabelValues("rejected")))
}

func TestHandler_ExposesPortalMetrics(t *testing.T) {
	metrics.OTPIssued.Inc()

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "portal_otp_issued_total")
}
