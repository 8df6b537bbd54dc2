package models

import (
	"slices"
	"time"
)

// Scan is one attempt to assess a target URL, tracked from request to a
// terminal state. Field names on the wire follow the scanner backend.
type Scan struct {
	ID        string     `json:"scan_id"`
	URL       string     `json:"url"`
	Status    ScanStatus `json:"status"`
	Progress  int        `json:"progress"`
	Findings  []Finding  `json:"vulnerabilities"`
	Timestamp time.Time  `json:"timestamp"`
	Error     string     `json:"error,omitempty"`
}

// NewScan creates a pending scan for url stamped with the request time.
func NewScan(url string, requestedAt time.Time) *Scan {
	return &Scan{
		URL:       url,
		Status:    StatusPending,
		Findings:  []Finding{},
		Timestamp: requestedAt,
	}
}

// Clone returns a deep copy so callers can never alias an owner's record.
func (s *Scan) Clone() Scan {
	out := *s
	out.Findings = slices.Clone(s.Findings)
	if out.Findings == nil {
		out.Findings = []Finding{}
	}
	return out
}

// Finding is a single reported vulnerability. Everything except Risk is
// passed through from the scanner untouched.
type Finding struct {
	Name        string `json:"name"`
	Risk        Risk   `json:"risk"`
	URL         string `json:"url,omitempty"`
	Description string `json:"description,omitempty"`
	Evidence    string `json:"evidence,omitempty"`
}
