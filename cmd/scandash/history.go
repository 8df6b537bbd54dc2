package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hakim/scandash/internal/aggregate"
	"github.com/hakim/scandash/internal/models"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the history of completed scans",
	Long: `Display a formatted table of recorded scans.

Scans are listed newest-first. Each row shows the scan ID (truncated), the time
it was requested, its status, the target and the number of findings per risk level.

Use --url to restrict the list to one target and --limit to cap the number of
rows shown (default: 10).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		target, _ := cmd.Flags().GetString("url")
		limit, _ := cmd.Flags().GetInt("limit")

		if err := requireConfig(); err != nil {
			return err
		}

		a, err := newApp(context.Background(), cfg, nil)
		if err != nil {
			return err
		}
		defer a.Close()

		scans, err := scansFor(a, target)
		if err != nil {
			return err
		}
		if len(scans) == 0 {
			fmt.Println("No scan history found")
			return nil
		}
		total := len(scans)
		if limit > 0 && len(scans) > limit {
			scans = scans[:limit]
		}

		const separator = "────────────────────────────────────────────────────────────────────────────────"

		fmt.Println("\nScan History")
		fmt.Println(separator)
		fmt.Printf("  %-3s  %-12s  %-16s  %-10s  %-15s  %s\n", "#", "Scan ID", "Requested", "Status", "H/M/L/I", "Target")
		fmt.Println(separator)

		for i, scan := range scans {
			fmt.Printf("  %-3d  %-12s  %-16s  %-10s  %-15s  %s\n",
				i+1,
				shortScanID(scan.ID),
				formatTimestamp(scan),
				formatStatus(scan.Status),
				formatCounts(aggregate.Aggregate(scan.Findings)),
				scan.URL)
		}

		fmt.Println(separator)
		fmt.Printf("Showing %d of %d scan(s)\n\n", len(scans), total)

		return nil
	},
}

// scansFor lists every recorded scan, or only those of target when it is
// set. Per-target queries go to the history backend's url index.
func scansFor(a *app, target string) ([]models.Scan, error) {
	if target == "" {
		return a.svc.Scans(), nil
	}
	return a.svc.ScansFor(target)
}

// shortScanID returns the first 8 characters of an id followed by "..." for
// compact table display. Falls back to the full ID when shorter than 8 chars.
func shortScanID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8] + "..."
}

// formatStatus converts a ScanStatus to a consistent lowercase display string.
func formatStatus(s models.ScanStatus) string {
	switch s {
	case models.StatusCompleted:
		return "completed"
	case models.StatusFailed:
		return "failed"
	case models.StatusRunning:
		return "running"
	case models.StatusStarting:
		return "starting"
	case models.StatusPending:
		return "pending"
	default:
		return string(s)
	}
}

func formatTimestamp(s models.Scan) string {
	if s.Timestamp.IsZero() {
		return "-"
	}
	return s.Timestamp.Local().Format("2006-01-02 15:04")
}

func formatCounts(s aggregate.Summary) string {
	return fmt.Sprintf("%d/%d/%d/%d", s.High, s.Medium, s.Low, s.Informational)
}

func init() {
	historyCmd.Flags().StringP("url", "u", "", "Only show scans of this target URL")
	historyCmd.Flags().Int("limit", 10, "Maximum number of scans to display")
	rootCmd.AddCommand(historyCmd)
}
