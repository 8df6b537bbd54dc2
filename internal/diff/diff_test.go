package diff

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hakim/scandash/internal/aggregate"
	"github.com/hakim/scandash/internal/models"
)

func finding(name string, risk models.Risk) models.Finding {
	return models.Finding{Name: name, Risk: risk, URL: "http://example.com/" + name}
}

func scanAt(id string, ts time.Time, findings ...models.Finding) models.Scan {
	return models.Scan{
		ID:        id,
		URL:       "http://example.com",
		Status:    models.StatusCompleted,
		Progress:  100,
		Findings:  findings,
		Timestamp: ts,
	}
}

func TestComputeDiff(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	prev := scanAt("a", t0,
		finding("xss", models.RiskHigh),
		finding("cookie", models.RiskLow),
	)
	curr := scanAt("b", t0.Add(time.Hour),
		finding("header", models.RiskInformational),
		finding("xss", models.RiskHigh),
		finding("sqli", models.RiskHigh),
	)

	dr := ComputeDiff(curr, &prev)
	assert.Equal(t, "b", dr.CurrentID)
	assert.Equal(t, "a", dr.PreviousID)
	assert.False(t, dr.Empty())

	require.Len(t, dr.NewFindings, 2)
	assert.Equal(t, "sqli", dr.NewFindings[0].Name, "sorted most severe first")
	assert.Equal(t, "header", dr.NewFindings[1].Name)

	require.Len(t, dr.ResolvedFindings, 1)
	assert.Equal(t, "cookie", dr.ResolvedFindings[0].Name)

	assert.Equal(t, aggregate.Summary{High: 2, Informational: 1}, dr.Current)
	assert.Equal(t, aggregate.Summary{High: 1, Low: 1}, dr.Previous)
}

func TestComputeDiffReclassifiedFinding(t *testing.T) {
	t0 := time.Now()
	prev := scanAt("a", t0, finding("csp", models.RiskLow))
	curr := scanAt("b", t0, finding("csp", models.RiskMedium))

	dr := ComputeDiff(curr, &prev)
	assert.Len(t, dr.NewFindings, 1)
	assert.Len(t, dr.ResolvedFindings, 1)
}

func TestComputeDiffWithoutPrevious(t *testing.T) {
	curr := scanAt("b", time.Now(), finding("xss", models.RiskHigh), finding("xss", models.RiskHigh))

	dr := ComputeDiff(curr, nil)
	assert.Empty(t, dr.PreviousID)
	assert.Len(t, dr.NewFindings, 1, "duplicates collapse")
	assert.Empty(t, dr.ResolvedFindings)
	assert.Equal(t, aggregate.Summary{}, dr.Previous)
}

func TestComputeDiffIdentical(t *testing.T) {
	t0 := time.Now()
	a := scanAt("a", t0, finding("xss", models.RiskHigh))
	b := scanAt("b", t0.Add(time.Minute), finding("xss", models.RiskHigh))
	assert.True(t, ComputeDiff(b, &a).Empty())
}

func TestPrevious(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	newest := scanAt("c", t0.Add(2*time.Hour))
	middle := scanAt("b", t0.Add(time.Hour))
	other := scanAt("x", t0.Add(30*time.Minute))
	other.URL = "http://other.example"
	failed := scanAt("f", t0.Add(45*time.Minute))
	failed.Status = models.StatusFailed
	oldest := scanAt("a", t0)
	list := []models.Scan{newest, middle, failed, other, oldest}

	got, ok := Previous(newest, list)
	require.True(t, ok)
	assert.Equal(t, "b", got.ID)

	got, ok = Previous(middle, list)
	require.True(t, ok)
	assert.Equal(t, "a", got.ID, "failed and foreign scans are skipped")

	_, ok = Previous(oldest, list)
	assert.False(t, ok)
}
