// Package diff computes the delta between two scans of the same target:
// which findings appeared since the previous scan and which are gone.
package diff

import (
	"fmt"
	"slices"

	"github.com/hakim/scandash/internal/aggregate"
	"github.com/hakim/scandash/internal/models"
)

// DiffResult holds the changes between a previous and a current scan.
type DiffResult struct {
	URL        string `json:"url"`
	CurrentID  string `json:"current_id"`
	PreviousID string `json:"previous_id,omitempty"`

	NewFindings      []models.Finding `json:"new_findings"`
	ResolvedFindings []models.Finding `json:"resolved_findings"`

	Current  aggregate.Summary `json:"current"`
	Previous aggregate.Summary `json:"previous"`
}

// Empty reports whether nothing changed.
func (d *DiffResult) Empty() bool {
	return len(d.NewFindings) == 0 && len(d.ResolvedFindings) == 0
}

// ComputeDiff calculates the delta between current and previous. Pass a
// nil previous for the "no earlier scan" case; every finding is then new.
func ComputeDiff(current models.Scan, previous *models.Scan) *DiffResult {
	dr := &DiffResult{
		URL:              current.URL,
		CurrentID:        current.ID,
		NewFindings:      []models.Finding{},
		ResolvedFindings: []models.Finding{},
		Current:          aggregate.Aggregate(current.Findings),
	}

	var prevFindings []models.Finding
	if previous != nil {
		dr.PreviousID = previous.ID
		dr.Previous = aggregate.Aggregate(previous.Findings)
		prevFindings = previous.Findings
	}

	diffFindings(dr, current.Findings, prevFindings)
	return dr
}

// Previous picks the newest scan of the same URL older than current from
// scans, which must be ordered newest first.
func Previous(current models.Scan, scans []models.Scan) (models.Scan, bool) {
	seen := false
	for _, s := range scans {
		if s.ID == current.ID {
			seen = true
			continue
		}
		if s.URL != current.URL || s.Status != models.StatusCompleted {
			continue
		}
		if seen || s.Timestamp.Before(current.Timestamp) {
			return s, true
		}
	}
	return models.Scan{}, false
}

// findingKey uniquely identifies a finding across scans.
// Risk is part of the key so a reclassified finding shows up on both sides.
func findingKey(f models.Finding) string {
	return fmt.Sprintf("%s::%s::%s", f.Name, f.URL, f.Risk)
}

// diffFindings computes new and resolved findings, keeping scanner order.
func diffFindings(dr *DiffResult, current, previous []models.Finding) {
	prevKeys := make(map[string]struct{}, len(previous))
	for _, f := range previous {
		prevKeys[findingKey(f)] = struct{}{}
	}

	currKeys := make(map[string]struct{}, len(current))
	for _, f := range current {
		key := findingKey(f)
		if _, dup := currKeys[key]; dup {
			continue
		}
		currKeys[key] = struct{}{}
		if _, exists := prevKeys[key]; !exists {
			dr.NewFindings = append(dr.NewFindings, f)
		}
	}

	reported := make(map[string]struct{})
	for _, f := range previous {
		key := findingKey(f)
		if _, exists := currKeys[key]; exists {
			continue
		}
		if _, dup := reported[key]; dup {
			continue
		}
		reported[key] = struct{}{}
		dr.ResolvedFindings = append(dr.ResolvedFindings, f)
	}

	slices.SortStableFunc(dr.NewFindings, byRisk)
	slices.SortStableFunc(dr.ResolvedFindings, byRisk)
}

func byRisk(a, b models.Finding) int {
	return riskRank(a.Risk) - riskRank(b.Risk)
}

func riskRank(r models.Risk) int {
	return slices.Index(models.RiskLevels, r.Level())
}
