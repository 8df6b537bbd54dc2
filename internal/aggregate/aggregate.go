// Package aggregate turns a list of findings into risk-bucketed counts and
// chart-ready series. Everything here is pure.
package aggregate

import (
	"encoding/json"

	"github.com/hakim/scandash/internal/models"
)

// Summary holds one count per risk level. Every level is always present,
// an empty bucket is zero.
type Summary struct {
	High          int `json:"High"`
	Medium        int `json:"Medium"`
	Low           int `json:"Low"`
	Informational int `json:"Informational"`
}

// Aggregate counts findings per risk level. Unknown risk values are
// counted as Informational.
func Aggregate(findings []models.Finding) Summary {
	var s Summary
	for _, f := range findings {
		switch f.Risk.Level() {
		case models.RiskHigh:
			s.High++
		case models.RiskMedium:
			s.Medium++
		case models.RiskLow:
			s.Low++
		default:
			s.Informational++
		}
	}
	return s
}

// Count returns the bucket for risk after classifying it.
func (s Summary) Count(risk models.Risk) int {
	switch risk.Level() {
	case models.RiskHigh:
		return s.High
	case models.RiskMedium:
		return s.Medium
	case models.RiskLow:
		return s.Low
	default:
		return s.Informational
	}
}

// Total is the sum of all buckets.
func (s Summary) Total() int {
	return s.High + s.Medium + s.Low + s.Informational
}

// BarRow is one stacked-bar row. It encodes as {"name": "High", "High": 3}
// so the risk name doubles as the series key.
type BarRow struct {
	Name  models.Risk
	Value int
}

// MarshalJSON implements json.Marshaler.
func (r BarRow) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{
		"name":         string(r.Name),
		string(r.Name): r.Value,
	})
}

// Slice is one proportional (pie) segment.
type Slice struct {
	Name  models.Risk `json:"name"`
	Value int         `json:"value"`
}

// ChartSeries carries both chart shapes derived from one Summary.
type ChartSeries struct {
	Bars   []BarRow `json:"bar"`
	Slices []Slice  `json:"pie"`
}

// ToChartSeries derives the bar rows (one per risk level, zeros included)
// and the pie slices (non-empty buckets only) in High..Informational order.
func ToChartSeries(s Summary) ChartSeries {
	series := ChartSeries{
		Bars:   make([]BarRow, 0, len(models.RiskLevels)),
		Slices: []Slice{},
	}
	for _, risk := range models.RiskLevels {
		n := s.Count(risk)
		series.Bars = append(series.Bars, BarRow{Name: risk, Value: n})
		if n > 0 {
			series.Slices = append(series.Slices, Slice{Name: risk, Value: n})
		}
	}
	return series
}

// Total returns the bar total. Bars and slices always agree on it.
func (c ChartSeries) Total() int {
	n := 0
	for _, b := range c.Bars {
		n += b.Value
	}
	return n
}
