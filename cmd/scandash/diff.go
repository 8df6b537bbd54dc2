package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hakim/scandash/internal/diff"
	"github.com/hakim/scandash/internal/models"
	"github.com/hakim/scandash/internal/report"
)

var diffCmd = &cobra.Command{
	Use:   "diff",
	Short: "Compare a scan with an earlier scan of the same target",
	Long: `Compare a recorded scan against a previous one and report which findings are
new and which have been resolved.

When no --compare scan is supplied the most recent earlier completed scan of the
same URL is used. The report is printed to stdout unless --out is given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		id, _ := cmd.Flags().GetString("id")
		compareID, _ := cmd.Flags().GetString("compare")
		out, _ := cmd.Flags().GetString("out")

		if err := requireConfig(); err != nil {
			return err
		}

		a, err := newApp(context.Background(), cfg, nil)
		if err != nil {
			return err
		}
		defer a.Close()

		current, err := a.svc.Scan(id)
		if err != nil {
			return err
		}

		var previous *models.Scan
		if compareID != "" {
			prev, err := a.svc.Scan(compareID)
			if err != nil {
				return err
			}
			previous = &prev
		} else {
			sameURL, err := a.svc.ScansFor(current.URL)
			if err != nil {
				return err
			}
			if prev, ok := diff.Previous(current, sameURL); ok {
				previous = &prev
			}
		}
		if previous == nil {
			fmt.Printf("[!] No previous scan of %s found for comparison\n", current.URL)
		}

		result := diff.ComputeDiff(current, previous)
		if out == "" {
			fmt.Print(report.RenderDiff(result))
			return nil
		}
		if err := report.WriteDiffReport(result, out); err != nil {
			return err
		}
		fmt.Printf("[+] Diff report written to %s (+%d / -%d findings)\n",
			out, len(result.NewFindings), len(result.ResolvedFindings))
		return nil
	},
}

func init() {
	diffCmd.Flags().String("id", "", "Scan ID to compare (required)")
	diffCmd.Flags().String("compare", "", "Scan ID to compare against (default: previous scan of the same URL)")
	diffCmd.Flags().StringP("out", "o", "", "Write the report to this file instead of stdout")
	diffCmd.MarkFlagRequired("id")
	rootCmd.AddCommand(diffCmd)
}
