package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hakim/scandash/internal/aggregate"
	"github.com/hakim/scandash/internal/models"
	"github.com/hakim/scandash/internal/pipeline"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan a target URL and wait for the findings",
	Long: `Launch a scan of the target URL on the configured scanner, print its progress
as it is polled, and print the risk summary once it completes.

Completed scans are added to the local history. Failed scans are only recorded
when history.record_failed is set.

Examples:
  scandash scan --url http://example.com
  scandash scan --url https://app.example.com --report`,
	RunE: func(cmd *cobra.Command, args []string) error {
		target, _ := cmd.Flags().GetString("url")
		writeReport, _ := cmd.Flags().GetBool("report")
		reportDir, _ := cmd.Flags().GetString("report-dir")

		if err := requireConfig(); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		done := make(chan pipeline.Event, 1)
		a, err := newApp(ctx, cfg, func(ev pipeline.Event) {
			printProgress(ev)
			if ev.Terminal() {
				select {
				case done <- ev:
				default:
				}
			}
		})
		if err != nil {
			return err
		}
		defer a.Close()

		fmt.Printf("[*] Launching scan of %s\n", target)
		id, err := a.svc.StartScan(ctx, target)
		if err != nil {
			switch {
			case errors.Is(err, pipeline.ErrInvalidTarget):
				return fmt.Errorf("invalid target: %w", err)
			case errors.Is(err, pipeline.ErrLaunchFailed):
				return fmt.Errorf("scanner rejected the scan: %w", err)
			}
			return err
		}
		fmt.Printf("[+] Scan started: %s\n", id)

		var ev pipeline.Event
		select {
		case ev = <-done:
		case <-ctx.Done():
			a.svc.StopLive()
			fmt.Println()
			fmt.Println("[!] Interrupted. The scanner keeps running the scan on its side.")
			return ctx.Err()
		}

		scan := ev.Scan
		fmt.Println()
		if ev.Type == pipeline.EventFailed {
			fmt.Printf("[!] Scan failed: %s\n", scan.Error)
			return fmt.Errorf("scan %s failed: %s", scan.ID, scan.Error)
		}

		fmt.Printf("[+] Scan complete!\n")
		fmt.Printf("    Target:    %s\n", scan.URL)
		fmt.Printf("    Scan ID:   %s\n", scan.ID)
		fmt.Printf("    Started:   %s\n", scan.Timestamp.Local().Format("2006-01-02 15:04:05"))
		printSummary(aggregate.Aggregate(scan.Findings))

		if writeReport {
			path, err := writeScanReport(scan, reportDir, "")
			if err != nil {
				return err
			}
			fmt.Printf("[+] Report written to %s\n", path)
		}
		return nil
	},
}

// printProgress prints one line per orchestrator event. It runs inside the
// orchestrator's event callback and must not block.
func printProgress(ev pipeline.Event) {
	fmt.Println(formatProgress(ev))
}

func formatProgress(ev pipeline.Event) string {
	switch ev.Type {
	case pipeline.EventCompleted:
		return fmt.Sprintf("[+] %-9s %3d%% (%d findings)", ev.Scan.Status, ev.Scan.Progress, len(ev.Scan.Findings))
	case pipeline.EventFailed:
		return fmt.Sprintf("[!] %-9s %s", ev.Scan.Status, ev.Scan.Error)
	}
	if ev.Scan.Status.Active() {
		return fmt.Sprintf("[*] %-9s %3d%%", ev.Scan.Status, ev.Scan.Progress)
	}
	return fmt.Sprintf("[*] %s", ev.Scan.Status)
}

func printSummary(s aggregate.Summary) {
	fmt.Printf("    Findings:  %d\n", s.Total())
	for _, risk := range models.RiskLevels {
		fmt.Printf("      %-14s %d\n", risk+":", s.Count(risk))
	}
}

func init() {
	scanCmd.Flags().StringP("url", "u", "", "Target URL (required)")
	scanCmd.Flags().Bool("report", false, "Write a markdown report when the scan completes")
	scanCmd.Flags().String("report-dir", "reports", "Directory for --report output")
	scanCmd.MarkFlagRequired("url")
	rootCmd.AddCommand(scanCmd)
}
