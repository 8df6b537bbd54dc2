package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hakim/scandash/internal/aggregate"
	"github.com/hakim/scandash/internal/config"
	"github.com/hakim/scandash/internal/models"
	"github.com/hakim/scandash/internal/pipeline"
)

func TestShortScanID(t *testing.T) {
	assert.Equal(t, "abc", shortScanID("abc"))
	assert.Equal(t, "12345678...", shortScanID("1234567890"))
}

func TestFormatStatus(t *testing.T) {
	assert.Equal(t, "completed", formatStatus(models.StatusCompleted))
	assert.Equal(t, "failed", formatStatus(models.StatusFailed))
	assert.Equal(t, "Weird", formatStatus(models.ScanStatus("Weird")))
}

func TestFormatCounts(t *testing.T) {
	assert.Equal(t, "1/0/2/3", formatCounts(aggregate.Summary{High: 1, Low: 2, Informational: 3}))
}

func TestFormatProgress(t *testing.T) {
	running := pipeline.Event{Type: pipeline.EventStatusChanged, Scan: models.Scan{Status: models.StatusRunning, Progress: 40}}
	assert.Equal(t, "[*] Running    40%", formatProgress(running))

	pending := pipeline.Event{Type: pipeline.EventStatusChanged, Scan: models.Scan{Status: models.StatusPending}}
	assert.Equal(t, "[*] Pending", formatProgress(pending), "no progress outside an active scan")

	done := pipeline.Event{Type: pipeline.EventCompleted, Scan: models.Scan{
		Status: models.StatusCompleted, Progress: 100, Findings: []models.Finding{{Name: "XSS"}},
	}}
	assert.Equal(t, "[+] Completed 100% (1 findings)", formatProgress(done))

	failed := pipeline.Event{Type: pipeline.EventFailed, Scan: models.Scan{Status: models.StatusFailed, Error: "poll failed"}}
	assert.Equal(t, "[!] Failed    poll failed", formatProgress(failed))
}

func TestWriteScanReportDefaultPath(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")
	scan := models.Scan{
		ID:        "s1",
		URL:       "https://example.com/app",
		Status:    models.StatusCompleted,
		Timestamp: time.Date(2026, 4, 5, 6, 7, 8, 0, time.UTC),
		Findings:  []models.Finding{{Name: "XSS", Risk: models.RiskHigh}},
	}

	path, err := writeScanReport(scan, dir, "")
	require.NoError(t, err)
	assert.Equal(t, dir, filepath.Dir(path))
	assert.True(t, strings.HasSuffix(path, "_20260405_060708.md"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "| XSS |")
}

func TestOpenBackendBolt(t *testing.T) {
	sc := config.StorageConfig{Driver: config.DriverBolt, DBPath: filepath.Join(t.TempDir(), "db", "scandash.db")}
	backend, closer, err := openBackend(sc)
	require.NoError(t, err)
	defer closer.Close()

	scans, err := backend.LoadScans()
	require.NoError(t, err)
	assert.Empty(t, scans)
}
