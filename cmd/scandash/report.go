package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hakim/scandash/internal/models"
	"github.com/hakim/scandash/internal/report"
	"github.com/hakim/scandash/internal/storage"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Write a markdown report for a recorded scan",
	Long: `Generate a markdown report for a recorded scan: header, counts per risk level
and one findings table per risk level, most severe first.

Without --out the report is saved to {dir}/{target}_{YYYYMMDD_HHMMSS}.md.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		id, _ := cmd.Flags().GetString("id")
		dir, _ := cmd.Flags().GetString("dir")
		out, _ := cmd.Flags().GetString("out")

		if err := requireConfig(); err != nil {
			return err
		}

		a, err := newApp(context.Background(), cfg, nil)
		if err != nil {
			return err
		}
		defer a.Close()

		scan, err := a.svc.Scan(id)
		if err != nil {
			return err
		}

		path, err := writeScanReport(scan, dir, out)
		if err != nil {
			return err
		}
		fmt.Printf("[+] Report written to %s\n", path)
		return nil
	},
}

// writeScanReport writes scan to out, or to a timestamped file in dir when
// out is empty, and returns the path used.
func writeScanReport(scan models.Scan, dir, out string) (string, error) {
	if out == "" {
		if err := storage.EnsureDir(dir); err != nil {
			return "", fmt.Errorf("creating report directory: %w", err)
		}
		out = storage.ReportPath(dir, scan.URL, scan.Timestamp)
	}
	if err := report.WriteScanReport(scan, out); err != nil {
		return "", err
	}
	return out, nil
}

func init() {
	reportCmd.Flags().String("id", "", "Scan ID (required)")
	reportCmd.Flags().String("dir", "reports", "Output directory when --out is not set")
	reportCmd.Flags().StringP("out", "o", "", "Output file path")
	reportCmd.MarkFlagRequired("id")
	rootCmd.AddCommand(reportCmd)
}
