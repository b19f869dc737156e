package metrics

import (
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dmitrijs2005/profilekeeper/internal/common"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveStoreOp_Outcomes(t *testing.T) {
	m := New()

	m.ObserveStoreOp("merge_update", nil, time.Millisecond)
	m.ObserveStoreOp("merge_update", fmt.Errorf("user %q: %w", "bob", common.ErrorNotFound), time.Millisecond)
	m.ObserveStoreOp("find_credential", common.ErrInvalidCredentials, time.Millisecond)
	m.ObserveStoreOp("append", errors.New("disk"), time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.storeOps.WithLabelValues("merge_update", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.storeOps.WithLabelValues("merge_update", "not_found")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.storeOps.WithLabelValues("find_credential", "invalid_credentials")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.storeOps.WithLabelValues("append", "error")))
}

func TestRecordHTTPRequest(t *testing.T) {
	m := New()

	m.IncrementInFlight()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpInFlight))
	m.DecrementInFlight()
	assert.Equal(t, 0.0, testutil.ToFloat64(m.httpInFlight))

	m.RecordHTTPRequest("POST", "/api/submit/create", "200", 5*time.Millisecond)
	m.RecordHTTPRequest("POST", "/api/submit/create", "200", 5*time.Millisecond)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("POST", "/api/submit/create", "200")))
}

func TestHandler_ExposesCollectors(t *testing.T) {
	m := New()
	m.ObserveAdvisorCall("predict", nil, 10*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `profilekeeper_advisor_calls_total{endpoint="predict",outcome="ok"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}

func TestNew_IndependentRegistries(t *testing.T) {
	a, b := New(), New()
	a.ObserveStoreOp("append", nil, time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(a.storeOps.WithLabelValues("append", "ok")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.storeOps.WithLabelValues("append", "ok")))
}
