package report

import (
	"fmt"
	"strings"

	"github.com/hakim/scandash/internal/diff"
	"github.com/hakim/scandash/internal/models"
)

// RenderDiff builds the markdown change report between two scans.
func RenderDiff(result *diff.DiffResult) string {
	var b strings.Builder

	b.WriteString("# Scan Diff Report\n\n")
	b.WriteString(fmt.Sprintf("**Target:** %s\n", result.URL))
	b.WriteString(fmt.Sprintf("**Current scan:** %s\n", result.CurrentID))
	if result.PreviousID == "" {
		b.WriteString("**Previous scan:** none\n\n")
	} else {
		b.WriteString(fmt.Sprintf("**Previous scan:** %s\n\n", result.PreviousID))
	}

	// If there are zero changes, short-circuit.
	if result.Empty() {
		b.WriteString("No changes detected.\n")
		return b.String()
	}

	writeDiffSummaryTable(&b, result)
	writeFindingChanges(&b, "New Findings", "+", result.NewFindings)
	writeFindingChanges(&b, "Resolved Findings", "-", result.ResolvedFindings)

	return b.String()
}

// WriteDiffReport renders result and writes it to outputPath.
func WriteDiffReport(result *diff.DiffResult, outputPath string) error {
	return writeFile(outputPath, RenderDiff(result))
}

// writeDiffSummaryTable writes one comparison row per risk level.
func writeDiffSummaryTable(b *strings.Builder, r *diff.DiffResult) {
	b.WriteString("## Summary\n\n")
	b.WriteString("| Risk | Previous | Current | Change |\n")
	b.WriteString("|------|----------|---------|--------|\n")
	for _, risk := range models.RiskLevels {
		prev, curr := r.Previous.Count(risk), r.Current.Count(risk)
		b.WriteString(fmt.Sprintf("| %s | %d | %d | %s |\n", risk, prev, curr, formatChange(curr-prev)))
	}
	b.WriteString(fmt.Sprintf("| Total | %d | %d | %s |\n\n",
		r.Previous.Total(), r.Current.Total(), formatChange(r.Current.Total()-r.Previous.Total())))
}

// writeFindingChanges renders one change section. Skipped when empty.
func writeFindingChanges(b *strings.Builder, title, sign string, findings []models.Finding) {
	if len(findings) == 0 {
		return
	}
	b.WriteString(fmt.Sprintf("## %s (%s%d)\n\n", title, sign, len(findings)))
	b.WriteString("| Risk | Name | URL |\n")
	b.WriteString("|------|------|-----|\n")
	for _, f := range findings {
		b.WriteString(fmt.Sprintf("| %s | %s | %s |\n", f.Risk.Level(), cell(f.Name), cell(f.URL)))
	}
	b.WriteString("\n")
}

// formatChange returns "+3", "-1" or "none".
func formatChange(delta int) string {
	switch {
	case delta > 0:
		return fmt.Sprintf("+%d", delta)
	case delta < 0:
		return fmt.Sprintf("%d", delta)
	default:
		return "none"
	}
}
