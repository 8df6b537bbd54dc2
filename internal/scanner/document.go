package scanner

import (
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hakim/scandash/internal/models"
)

// scanDocument mirrors the backend's scan record.
type scanDocument struct {
	ScanID          string           `json:"scan_id"`
	URL             string           `json:"url"`
	Status          string           `json:"status"`
	Progress        float64          `json:"progress"`
	Vulnerabilities []models.Finding `json:"vulnerabilities"`
	Findings        []models.Finding `json:"findings"`
	Timestamp       string           `json:"timestamp"`
	Error           string           `json:"error"`
}

func (d *scanDocument) findings() []models.Finding {
	switch {
	case d.Vulnerabilities != nil:
		return d.Vulnerabilities
	case d.Findings != nil:
		return d.Findings
	default:
		return []models.Finding{}
	}
}

func (d *scanDocument) toScan() models.Scan {
	scan := models.Scan{
		ID:        d.ScanID,
		URL:       d.URL,
		Status:    NormalizeStatus(d.Status),
		Progress:  clampProgress(d.Progress),
		Findings:  d.findings(),
		Timestamp: parseTimestamp(d.Timestamp),
	}
	if scan.Status == models.StatusFailed {
		scan.Error = d.Error
		scan.Findings = []models.Finding{}
	}
	if scan.ID == "" {
		// Stable across restarts so re-seeding does not duplicate rows.
		scan.ID = uuid.NewSHA1(uuid.NameSpaceURL, []byte(d.URL+"@"+d.Timestamp)).String()
	}
	return scan
}

// NormalizeStatus maps the backend's free-form status text onto the scan
// lifecycle. Only Completed and Failed are terminal; anything else the
// backend reports is a running scan.
func NormalizeStatus(remote string) models.ScanStatus {
	s := strings.TrimSpace(strings.TrimRight(strings.TrimSpace(remote), "."))
	switch s {
	case "Completed":
		return models.StatusCompleted
	case "Failed":
		return models.StatusFailed
	case "Starting", "Pending":
		return models.StatusStarting
	default:
		return models.StatusRunning
	}
}

func clampProgress(p float64) int {
	if math.IsNaN(p) || p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return int(p)
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func parseTimestamp(v string) time.Time {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
