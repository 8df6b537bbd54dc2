package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hakim/scandash/internal/diff"
	"github.com/hakim/scandash/internal/models"
)

func sampleScan() models.Scan {
	return models.Scan{
		ID:        "scan-1",
		URL:       "http://example.com",
		Status:    models.StatusCompleted,
		Progress:  100,
		Timestamp: time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC),
		Findings: []models.Finding{
			{Name: "Cross Site Scripting", Risk: models.RiskHigh, URL: "http://example.com/q", Description: "reflected | in query"},
			{Name: "Cookie without SameSite", Risk: models.RiskLow, URL: "http://example.com/"},
			{Name: "Odd", Risk: "Critical", URL: "http://example.com/x", Description: "line one\nline two"},
		},
	}
}

func TestRenderScan(t *testing.T) {
	out := RenderScan(sampleScan())

	assert.Contains(t, out, "**Target:** http://example.com\n")
	assert.Contains(t, out, "**Date:** 2026-02-03 04:05:06 UTC\n")
	assert.Contains(t, out, "**Total findings:** 3 | **High:** 1 | **Medium:** 0 | **Low:** 1 | **Informational:** 1")
	assert.Contains(t, out, "No medium findings.")
	assert.Contains(t, out, `| Cross Site Scripting | http://example.com/q | reflected \| in query |`)
	assert.Contains(t, out, "| Odd | http://example.com/x | line one line two |", "unknown risk lands under Informational")
	assert.Contains(t, out, "| Cookie without SameSite | http://example.com/ | - |")

	high := strings.Index(out, "## High Findings")
	medium := strings.Index(out, "## Medium Findings")
	low := strings.Index(out, "## Low Findings")
	info := strings.Index(out, "## Informational Findings")
	assert.True(t, high < medium && medium < low && low < info)
	assert.NotContains(t, out, "**Error:**")
}

func TestRenderFailedScan(t *testing.T) {
	scan := models.Scan{ID: "f", URL: "http://example.com", Status: models.StatusFailed, Error: "timeout", Findings: []models.Finding{}}
	out := RenderScan(scan)
	assert.Contains(t, out, "**Status:** Failed")
	assert.Contains(t, out, "**Error:** timeout")
	assert.Contains(t, out, "**Date:** -")
	assert.Contains(t, out, "**Total findings:** 0")
}

func TestWriteScanReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.md")
	require.NoError(t, WriteScanReport(sampleScan(), path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, RenderScan(sampleScan()), string(data))
}

func TestWriteScanReportBadPath(t *testing.T) {
	err := WriteScanReport(sampleScan(), filepath.Join(t.TempDir(), "missing", "report.md"))
	assert.ErrorContains(t, err, "writing report to")
}

func TestRenderDiff(t *testing.T) {
	prev := sampleScan()
	prev.ID = "scan-0"
	curr := sampleScan()
	curr.Findings = append(curr.Findings[:1:1], models.Finding{Name: "SQL Injection", Risk: models.RiskHigh, URL: "http://example.com/login"})

	out := RenderDiff(diff.ComputeDiff(curr, &prev))
	assert.Contains(t, out, "**Previous scan:** scan-0")
	assert.Contains(t, out, "| High | 1 | 2 | +1 |")
	assert.Contains(t, out, "| Low | 1 | 0 | -1 |")
	assert.Contains(t, out, "| Total | 3 | 2 | -1 |")
	assert.Contains(t, out, "## New Findings (+1)")
	assert.Contains(t, out, "| High | SQL Injection | http://example.com/login |")
	assert.Contains(t, out, "## Resolved Findings (-2)")
}

func TestRenderDiffNoChanges(t *testing.T) {
	scan := sampleScan()
	out := RenderDiff(diff.ComputeDiff(scan, &scan))
	assert.Contains(t, out, "No changes detected.")
	assert.NotContains(t, out, "## Summary")
}

func TestRenderDiffWithoutPrevious(t *testing.T) {
	out := RenderDiff(diff.ComputeDiff(sampleScan(), nil))
	assert.Contains(t, out, "**Previous scan:** none")
	assert.Contains(t, out, "## New Findings (+3)")
}
