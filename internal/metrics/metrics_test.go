package metrics

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

func TestRecorder_Counters(t *testing.T) {
	r := New()

	r.ScanStarted()
	assert.Equal(t, 1.0, testutil.ToFloat64(r.scansStarted))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.liveScans))

	r.Poll(nil, 10*time.Millisecond)
	r.Poll(errors.New("boom"), time.Millisecond)
	assert.Equal(t, 1.0, testutil.ToFloat64(r.polls.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.polls.WithLabelValues("error")))

	r.ScanFinished("Completed")
	assert.Equal(t, 1.0, testutil.ToFloat64(r.scansFinished.WithLabelValues("Completed")))
	assert.Equal(t, 0.0, testutil.ToFloat64(r.liveScans))

	r.LaunchFailed()
	assert.Equal(t, 1.0, testutil.ToFloat64(r.launchFailures))
}

func TestRecorder_NilSafe(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.ScanStarted()
		r.LaunchFailed()
		r.ScanFinished("Failed")
		r.ScanAbandoned()
		r.Poll(nil, time.Second)
		r.TrackRegistrySize(func() int { return 1 })
	})
	assert.Nil(t, r.Registry())
}

func TestRecorder_Handler(t *testing.T) {
	r := New()
	r.TrackRegistrySize(func() int { return 7 })
	r.ScanStarted()

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "scandash_scans_started_total 1")
	assert.Contains(t, string(body), "scandash_registry_scans 7")
}
