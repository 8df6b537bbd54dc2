package report

import (
	"fmt"
	"strings"

	"github.com/hakim/scandash/internal/aggregate"
	"github.com/hakim/scandash/internal/models"
)

// RenderScan builds the markdown report for a single scan: header, risk
// counts, then one table per risk level, most severe first.
func RenderScan(scan models.Scan) string {
	var b strings.Builder
	summary := aggregate.Aggregate(scan.Findings)

	// Header
	b.WriteString("# Vulnerability Scan Report\n\n")
	b.WriteString(fmt.Sprintf("**Target:** %s\n", scan.URL))
	b.WriteString(fmt.Sprintf("**Scan ID:** %s\n", scan.ID))
	b.WriteString(fmt.Sprintf("**Date:** %s\n", formatTime(scan.Timestamp)))
	b.WriteString(fmt.Sprintf("**Status:** %s\n", scan.Status))
	if scan.Error != "" {
		b.WriteString(fmt.Sprintf("**Error:** %s\n", scan.Error))
	}
	b.WriteString(fmt.Sprintf(
		"**Total findings:** %d | **High:** %d | **Medium:** %d | **Low:** %d | **Informational:** %d\n\n",
		summary.Total(), summary.High, summary.Medium, summary.Low, summary.Informational,
	))

	byRisk := findingsByRisk(scan.Findings)
	for _, risk := range models.RiskLevels {
		b.WriteString(fmt.Sprintf("## %s Findings\n\n", risk))

		findings := byRisk[risk]
		if len(findings) == 0 {
			b.WriteString(fmt.Sprintf("No %s findings.\n\n", strings.ToLower(string(risk))))
			continue
		}
		writeFindingTable(&b, findings)
	}

	return b.String()
}

// WriteScanReport renders scan and writes it to outputPath.
func WriteScanReport(scan models.Scan, outputPath string) error {
	return writeFile(outputPath, RenderScan(scan))
}

func writeFindingTable(b *strings.Builder, findings []models.Finding) {
	b.WriteString("| Name | URL | Description |\n")
	b.WriteString("|------|-----|-------------|\n")
	for _, f := range findings {
		b.WriteString(fmt.Sprintf("| %s | %s | %s |\n",
			cell(f.Name), cell(f.URL), cell(f.Description)))
	}
	b.WriteString("\n")
}

// findingsByRisk partitions findings by their classified level.
func findingsByRisk(findings []models.Finding) map[models.Risk][]models.Finding {
	groups := make(map[models.Risk][]models.Finding)
	for _, f := range findings {
		level := f.Risk.Level()
		groups[level] = append(groups[level], f)
	}
	return groups
}
