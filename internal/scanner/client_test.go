package scanner

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hakim/scandash/internal/models"
)

func newTestClient(t *testing.T, h http.Handler, timeout time.Duration) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewHTTPClient(Options{BaseURL: srv.URL + "/", Timeout: timeout})
	require.NoError(t, err)
	return c
}

func TestNewHTTPClient_RejectsBadBase(t *testing.T) {
	for _, base := range []string{"", "not a url", "/relative"} {
		_, err := NewHTTPClient(Options{BaseURL: base})
		assert.Error(t, err, base)
	}
}

func TestLaunch(t *testing.T) {
	var gotBody map[string]string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/scan", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Write([]byte(`{"message":"Scan initiated.","scan_id":"abc-123"}`))
	}), time.Second)

	id, err := c.Launch(context.Background(), "http://example.com")
	require.NoError(t, err)
	assert.Equal(t, "abc-123", id)
	assert.Equal(t, map[string]string{"url": "http://example.com"}, gotBody)
}

func TestLaunch_Errors(t *testing.T) {
	t.Run("non-2xx", func(t *testing.T) {
		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"error":"Database connection failed."}`))
		}), time.Second)
		_, err := c.Launch(context.Background(), "http://example.com")
		require.ErrorIs(t, err, ErrUnexpectedStatus)
		assert.Contains(t, err.Error(), "Database connection failed.")
	})

	t.Run("missing id", func(t *testing.T) {
		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"message":"ok"}`))
		}), time.Second)
		_, err := c.Launch(context.Background(), "http://example.com")
		assert.ErrorIs(t, err, ErrMissingScanID)
	})
}

func TestPoll_Running(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/scan-results/s1", r.URL.Path)
		w.Write([]byte(`{"scan_id":"s1","status":"Scanning...","progress":62.5,"vulnerabilities":[]}`))
	}), time.Second)

	res, err := c.Poll(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusRunning, res.Status)
	assert.Equal(t, 62, res.Progress)
	assert.Nil(t, res.Findings)
}

func TestPoll_Completed(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"Completed","progress":100,"vulnerabilities":[
			{"name":"SQL Injection","risk":"High","url":"http://t/q","description":"d"},
			{"name":"Cookie","risk":"Low"}]}`))
	}), time.Second)

	res, err := c.Poll(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, res.Status)
	require.Len(t, res.Findings, 2)
	assert.Equal(t, models.Finding{Name: "SQL Injection", Risk: models.RiskHigh, URL: "http://t/q", Description: "d"}, res.Findings[0])
}

func TestPoll_CompletedFindingsKey(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"Completed","progress":100,"findings":[{"risk":"Medium"}]}`))
	}), time.Second)

	res, err := c.Poll(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, res.Findings, 1)
	assert.Equal(t, models.RiskMedium, res.Findings[0].Risk)
}

func TestPoll_Failed(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"Failed","progress":100,"error":"timeout"}`))
	}), time.Second)

	res, err := c.Poll(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, res.Status)
	assert.Equal(t, "timeout", res.Error)
}

func TestPoll_Timeout(t *testing.T) {
	release := make(chan struct{})
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}), 50*time.Millisecond)
	defer close(release)

	start := time.Now()
	_, err := c.Poll(context.Background(), "s1")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestListHistorical(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/historical-scans", r.URL.Path)
		w.Write([]byte(`[
			{"scan_id":"b","url":"http://b","status":"Completed","progress":100,"timestamp":"2025-02-01T10:00:00Z","vulnerabilities":[{"risk":"High"}]},
			{"scan_id":"a","url":"http://a","status":"Failed","progress":100,"timestamp":"2025-01-01T10:00:00Z","error":"boom","vulnerabilities":[{"risk":"Low"}]},
			{"url":"http://c","status":"Spidering...","progress":12,"timestamp":"2025-01-01T09:00:00Z"}
		]`))
	}), time.Second)

	scans, err := c.ListHistorical(context.Background())
	require.NoError(t, err)
	require.Len(t, scans, 3)

	assert.Equal(t, "b", scans[0].ID)
	assert.Equal(t, time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC), scans[0].Timestamp)
	assert.Len(t, scans[0].Findings, 1)

	assert.Equal(t, models.StatusFailed, scans[1].Status)
	assert.Equal(t, "boom", scans[1].Error)
	assert.Empty(t, scans[1].Findings, "failed scans carry no findings")

	assert.Equal(t, models.StatusRunning, scans[2].Status)
	assert.NotEmpty(t, scans[2].ID)
	again, err := c.ListHistorical(context.Background())
	require.NoError(t, err)
	assert.Equal(t, scans[2].ID, again[2].ID, "derived ids are stable")
}

func TestNormalizeStatus(t *testing.T) {
	cases := map[string]models.ScanStatus{
		"Completed":    models.StatusCompleted,
		"Failed":       models.StatusFailed,
		"Starting...":  models.StatusStarting,
		"Starting":     models.StatusStarting,
		"Spidering...": models.StatusRunning,
		"Scanning...":  models.StatusRunning,
		"Running":      models.StatusRunning,
		"completed":    models.StatusRunning,
		"":             models.StatusRunning,
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeStatus(in), "input %q", in)
	}
}

func TestClampProgress(t *testing.T) {
	assert.Equal(t, 0, clampProgress(-5))
	assert.Equal(t, 37, clampProgress(37.5))
	assert.Equal(t, 100, clampProgress(140))
}
