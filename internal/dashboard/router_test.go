package dashboard

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hakim/scandash/internal/metrics"
	"github.com/hakim/scandash/internal/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}

func TestRouterHealthz(t *testing.T) {
	router := NewRouter(newFixture(t).svc, nil, nil)
	w := doJSON(t, router, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = doJSON(t, router, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusNotFound, w.Code, "metrics are off without a recorder")
}

func TestRouterMetrics(t *testing.T) {
	router := NewRouter(newFixture(t).svc, metrics.New(), nil)
	w := doJSON(t, router, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "scandash_scans_started_total")
}

func TestRouterStartScanErrors(t *testing.T) {
	f := newFixture(t)
	router := NewRouter(f.svc, nil, nil)

	w := doJSON(t, router, http.MethodPost, "/api/scans", "{")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, router, http.MethodPost, "/api/scans", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, router, http.MethodPost, "/api/scans", StartRequest{URL: "not-a-url"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid target")

	f.scanner.setLaunchErr(errors.New("connection refused"))
	w = doJSON(t, router, http.MethodPost, "/api/scans", StartRequest{URL: "http://example.com"})
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "launch failed")
}

func TestRouterScanLifecycle(t *testing.T) {
	f := newFixture(t)
	router := NewRouter(f.svc, nil, nil)

	w := doJSON(t, router, http.MethodPost, "/api/scans", StartRequest{URL: "http://example.com"})
	require.Equal(t, http.StatusAccepted, w.Code)
	started := decode[map[string]string](t, w)
	id := started["scan_id"]
	require.NotEmpty(t, id)

	view := decode[Snapshot](t, doJSON(t, router, http.MethodGet, "/api/view", nil))
	assert.Equal(t, "live", view.View)
	assert.Equal(t, id, view.ScanID)

	f.scanner.set(id, scanPollCompleted())
	require.Eventually(t, func() bool {
		return doJSON(t, router, http.MethodGet, "/api/scans/"+id, nil).Code == http.StatusOK
	}, waitFor, time.Millisecond)

	list := decode[[]models.Scan](t, doJSON(t, router, http.MethodGet, "/api/scans", nil))
	require.Len(t, list, 1)
	assert.Equal(t, id, list[0].ID)

	list = decode[[]models.Scan](t, doJSON(t, router, http.MethodGet, "/api/scans?url=http://example.com", nil))
	require.Len(t, list, 1)
	assert.Equal(t, id, list[0].ID)
	w = doJSON(t, router, http.MethodGet, "/api/scans?url=http://other.example.com", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())

	w = doJSON(t, router, http.MethodGet, "/api/view", nil)
	assert.Contains(t, w.Body.String(), `"bar":[{"High":1,"name":"High"}`)
}

func TestRouterSelectionFlow(t *testing.T) {
	f := newFixture(t, completedScan("old", time.Now(), models.RiskHigh, models.RiskLow))
	router := NewRouter(f.svc, nil, nil)

	w := doJSON(t, router, http.MethodPost, "/api/scans/missing/select", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, router, http.MethodPut, "/api/view/finding", map[string]int{"index": 0})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(t, router, http.MethodPost, "/api/scans/old/select", nil)
	require.Equal(t, http.StatusOK, w.Code)
	snap := decode[Snapshot](t, w)
	assert.Equal(t, "historical", snap.View)
	assert.Equal(t, 1, snap.Summary.High)

	w = doJSON(t, router, http.MethodPut, "/api/view/finding", map[string]int{"index": 5})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, router, http.MethodPut, "/api/view/finding", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, router, http.MethodPut, "/api/view/finding", map[string]int{"index": 1})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.RiskLow, decode[models.Finding](t, w).Risk)

	snap = decode[Snapshot](t, doJSON(t, router, http.MethodGet, "/api/view", nil))
	require.NotNil(t, snap.SelectedFinding)
	assert.Equal(t, "finding-1", snap.SelectedFinding.Name)

	w = doJSON(t, router, http.MethodDelete, "/api/view/finding", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	snap = decode[Snapshot](t, doJSON(t, router, http.MethodGet, "/api/view", nil))
	assert.Nil(t, snap.SelectedFinding)
	assert.Equal(t, "historical", snap.View)
}

func TestRouterStopLive(t *testing.T) {
	f := newFixture(t)
	router := NewRouter(f.svc, nil, nil)

	w := doJSON(t, router, http.MethodPost, "/api/scans", StartRequest{URL: "http://example.com"})
	require.Equal(t, http.StatusAccepted, w.Code)

	w = doJSON(t, router, http.MethodDelete, "/api/live", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	snap := decode[Snapshot](t, doJSON(t, router, http.MethodGet, "/api/view", nil))
	assert.Equal(t, "none", snap.View)
	assert.Nil(t, snap.Live)
}
