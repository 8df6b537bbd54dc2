package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show one recorded scan with its findings",
	Long: `Print a recorded scan: its status, the risk summary and one row per finding.
Use --finding to print the full detail of a single finding by its row number.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		id, _ := cmd.Flags().GetString("id")
		index, _ := cmd.Flags().GetInt("finding")

		if err := requireConfig(); err != nil {
			return err
		}

		a, err := newApp(context.Background(), cfg, nil)
		if err != nil {
			return err
		}
		defer a.Close()

		scan, err := a.svc.SelectHistorical(id)
		if err != nil {
			return err
		}

		if index > 0 {
			f, err := a.svc.SelectFinding(index - 1)
			if err != nil {
				return err
			}
			fmt.Printf("Name:        %s\n", f.Name)
			fmt.Printf("Risk:        %s\n", f.Risk)
			fmt.Printf("URL:         %s\n", f.URL)
			fmt.Printf("Description: %s\n", f.Description)
			if f.Evidence != "" {
				fmt.Printf("Evidence:    %s\n", f.Evidence)
			}
			return nil
		}

		fmt.Printf("Scan ID:   %s\n", scan.ID)
		fmt.Printf("Target:    %s\n", scan.URL)
		if scan.Status.Active() {
			fmt.Printf("Status:    %s (%d%%)\n", scan.Status, scan.Progress)
		} else {
			fmt.Printf("Status:    %s\n", scan.Status)
		}
		fmt.Printf("Requested: %s\n", formatTimestamp(scan))
		if scan.Error != "" {
			fmt.Printf("Error:     %s\n", scan.Error)
		}
		printSummary(a.svc.View().Summary)

		if len(scan.Findings) == 0 {
			return nil
		}
		fmt.Println()
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "#\tRisk\tName\tURL")
		fmt.Fprintln(w, "-\t----\t----\t---")
		for i, f := range scan.Findings {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", i+1, f.Risk.Level(), f.Name, f.URL)
		}
		w.Flush()
		return nil
	},
}

func init() {
	showCmd.Flags().String("id", "", "Scan ID (required)")
	showCmd.Flags().Int("finding", 0, "Print the detail of finding N (1-based)")
	showCmd.MarkFlagRequired("id")
	rootCmd.AddCommand(showCmd)
}
